package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"gym-manager/internal/gym"
	"gym-manager/internal/models"

	"go.uber.org/zap"
)

// ExpenseCategories are offered in the expense form.
var ExpenseCategories = []string{"Rent", "Salaries", "Utilities", "Equipment", "Maintenance", "Marketing", "Other"}

// ExpensesViewModel is the data passed to the expenses template.
type ExpensesViewModel struct {
	Expenses     []models.Expense
	ProfitLoss   models.ProfitLoss
	CurrentMonth string
	Months       []gym.MonthOption
	Categories   []string
	Today        string
}

// Expenses lists a month's expenses with its profit and loss.
func (h *Handlers) Expenses(w http.ResponseWriter, r *http.Request) {
	now := h.gym.Now()
	month := r.URL.Query().Get("month")
	if month == "" {
		month = gym.MonthOf(now)
	}

	vm := ExpensesViewModel{
		CurrentMonth: month,
		Months:       gym.RecentMonthOptions(now, 12),
		Categories:   ExpenseCategories,
		Today:        now.Format(gym.DateLayout),
	}
	err := h.gym.View(r.Context(), owner(r), func(d *gym.Document) error {
		vm.Expenses = d.ExpensesFor(month)
		vm.ProfitLoss = d.ProfitLoss(month)
		return nil
	})
	if err != nil {
		h.logger.Error("list expenses failed", zap.String("owner", owner(r)), zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	h.render(w, r, "expenses.html", "Expenses", vm)
}

// AddExpense records an expense.
func (h *Handlers) AddExpense(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.flash(w, r, flashError, "Invalid form submission")
		http.Redirect(w, r, "/expenses", http.StatusSeeOther)
		return
	}
	amount := parseAmount(r.FormValue("amount"))
	_, err := h.gym.AddExpense(r.Context(), owner(r),
		strings.TrimSpace(r.FormValue("category")),
		amount,
		r.FormValue("date"),
		strings.TrimSpace(r.FormValue("description")),
	)
	switch {
	case errors.Is(err, gym.ErrInvalidDate):
		h.flash(w, r, flashError, "Failed to add expense! Please pick a valid date.")
	case err != nil:
		h.logger.Error("add expense failed", zap.String("owner", owner(r)), zap.Error(err))
		h.flash(w, r, flashError, "Failed to add expense!")
	default:
		h.flash(w, r, flashSuccess, fmt.Sprintf("Expense of %.2f recorded successfully!", amount))
	}
	http.Redirect(w, r, "/expenses", http.StatusSeeOther)
}

// DeleteExpense removes an expense.
func (h *Handlers) DeleteExpense(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.gym.DeleteExpense(r.Context(), owner(r), id); err != nil {
		h.logger.Warn("delete expense failed", zap.String("expense_id", id), zap.Error(err))
		h.flash(w, r, flashError, "Failed to delete expense!")
	} else {
		h.flash(w, r, flashSuccess, "Expense deleted successfully!")
	}
	http.Redirect(w, r, "/expenses", http.StatusSeeOther)
}
