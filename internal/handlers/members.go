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

// DashboardViewModel is the data passed to the dashboard template.
type DashboardViewModel struct {
	Stats  gym.DashboardStats
	Months []gym.MonthOption
}

// Dashboard renders paid and unpaid members and revenue for a month.
func (h *Handlers) Dashboard(w http.ResponseWriter, r *http.Request) {
	now := h.gym.Now()
	month := r.URL.Query().Get("month")
	if month == "" {
		month = gym.MonthOf(now)
	}

	stats, err := h.gym.Dashboard(r.Context(), owner(r), month)
	if errors.Is(err, gym.ErrInvalidMonth) {
		h.flash(w, r, flashError, "Invalid month selected.")
		http.Redirect(w, r, "/dashboard", http.StatusFound)
		return
	}
	if err != nil {
		h.logger.Error("dashboard failed", zap.String("owner", owner(r)), zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	h.render(w, r, "dashboard.html", "Dashboard", DashboardViewModel{
		Stats:  stats,
		Months: gym.RecentMonthOptions(now, 12),
	})
}

// MemberFormViewModel is the data for the add member page.
type MemberFormViewModel struct {
	Months       []gym.MonthOption
	CurrentMonth string
	Today        string
}

// AddMemberForm renders the registration form.
func (h *Handlers) AddMemberForm(w http.ResponseWriter, r *http.Request) {
	now := h.gym.Now()
	h.render(w, r, "add_member.html", "Add Member", MemberFormViewModel{
		Months:       gym.MonthOptions(now),
		CurrentMonth: gym.MonthOf(now),
		Today:        now.Format(gym.DateLayout),
	})
}

// AddMember registers a member, optionally with a photo, a trial or a first payment.
func (h *Handlers) AddMember(w http.ResponseWriter, r *http.Request) {
	if err := h.parseMultipart(w, r); err != nil {
		h.flash(w, r, flashError, uploadMessage(err))
		http.Redirect(w, r, "/add_member", http.StatusSeeOther)
		return
	}

	photo, err := h.saveUpload(r, "photo", "member_")
	if err == nil && photo == "" && r.FormValue("camera_photo") != "" {
		photo, err = h.saveDataURL(r.FormValue("camera_photo"), "camera_")
	}
	if err != nil {
		h.flash(w, r, flashError, uploadMessage(err))
		http.Redirect(w, r, "/add_member", http.StatusSeeOther)
		return
	}

	in := gym.NewMember{
		Name:           strings.TrimSpace(r.FormValue("name")),
		Phone:          strings.TrimSpace(r.FormValue("phone")),
		Email:          strings.TrimSpace(r.FormValue("email")),
		Photo:          photo,
		MembershipType: r.FormValue("membership_type"),
		JoinedDate:     r.FormValue("joined_date"),
		IsTrial:        r.FormValue("start_trial") == "on",
	}
	if in.Name == "" {
		h.flash(w, r, flashError, "Member name is required.")
		http.Redirect(w, r, "/add_member", http.StatusSeeOther)
		return
	}
	month := r.FormValue("initial_month")
	amount := parseAmount(r.FormValue("initial_amount"))
	if month == "" {
		amount = 0
	}

	id, err := h.gym.AddMemberWithPayment(r.Context(), owner(r), in, month, amount)
	if err != nil {
		if errors.Is(err, gym.ErrInvalidDate) || errors.Is(err, gym.ErrInvalidMonth) {
			h.flash(w, r, flashError, fmt.Sprintf("Error adding member: %v", err))
			http.Redirect(w, r, "/add_member", http.StatusSeeOther)
			return
		}
		h.serverError(w, r, "/add_member", "add member failed", err)
		return
	}

	switch {
	case amount > 0:
		h.flash(w, r, flashSuccess, fmt.Sprintf("Member %s added and payment recorded for %s!", in.Name, month))
	case in.IsTrial:
		h.flash(w, r, flashSuccess, fmt.Sprintf("Member %s added on %d-Day Free Trial! 🆓", in.Name, gym.TrialDays))
	default:
		h.flash(w, r, flashSuccess, fmt.Sprintf("Member %s added successfully! (ID: %s)", in.Name, id))
	}
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

// MemberDetailsViewModel is the data for a member's page.
type MemberDetailsViewModel struct {
	Member       models.Member
	History      []models.FeeHistoryEntry
	Attendance   []string
	Months       []gym.MonthOption
	CurrentMonth string
	Today        string
}

// MemberDetails renders a member with their payments and visits.
func (h *Handlers) MemberDetails(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	vm := MemberDetailsViewModel{}
	err := h.gym.View(r.Context(), owner(r), func(d *gym.Document) error {
		m, err := d.Member(id)
		if err != nil {
			return err
		}
		vm.Member = m
		vm.History = d.FeeHistory(id)
		vm.Attendance = d.AttendanceFor(id)
		return nil
	})
	if errors.Is(err, gym.ErrMemberNotFound) {
		h.flash(w, r, flashError, "Member not found!")
		http.Redirect(w, r, "/dashboard", http.StatusFound)
		return
	}
	if err != nil {
		h.logger.Error("member details failed", zap.String("member_id", id), zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	now := h.gym.Now()
	vm.Months = gym.MonthOptions(now)
	vm.CurrentMonth = gym.MonthOf(now)
	vm.Today = now.Format(gym.DateLayout)
	h.render(w, r, "member_details.html", vm.Member.Name, vm)
}

// RecordPayment records a fee from the member page.
func (h *Handlers) RecordPayment(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	back := "/member/" + id
	if err := r.ParseForm(); err != nil {
		h.flash(w, r, flashError, "Invalid form submission")
		http.Redirect(w, r, back, http.StatusSeeOther)
		return
	}
	month := r.FormValue("month")
	err := h.gym.PayFee(r.Context(), owner(r), id, month,
		parseAmount(r.FormValue("amount")),
		paidDate(r.FormValue("payment_date")),
		r.FormValue("notes"),
	)
	if err != nil {
		h.logger.Warn("payment failed", zap.String("member_id", id), zap.String("month", month), zap.Error(err))
		h.flash(w, r, flashError, "Payment failed!")
		http.Redirect(w, r, back, http.StatusSeeOther)
		return
	}
	h.flash(w, r, flashSuccess, fmt.Sprintf("Payment recorded successfully for %s!", month))
	http.Redirect(w, r, back, http.StatusSeeOther)
}

// DeleteFee removes a month's payment.
func (h *Handlers) DeleteFee(w http.ResponseWriter, r *http.Request) {
	id, month := r.PathValue("id"), r.PathValue("month")
	if err := h.gym.DeleteFee(r.Context(), owner(r), id, month); err != nil {
		h.logger.Warn("delete fee failed", zap.String("member_id", id), zap.String("month", month), zap.Error(err))
		h.flash(w, r, flashError, "Delete failed!")
	} else {
		h.flash(w, r, flashSuccess, fmt.Sprintf("Payment for %s deleted!", month))
	}
	http.Redirect(w, r, "/member/"+id, http.StatusSeeOther)
}

// EditFeeViewModel is the data for the fee edit form.
type EditFeeViewModel struct {
	Member models.Member
	Month  string
	Fee    models.FeeRecord
}

// EditFeeForm renders the fee edit form.
func (h *Handlers) EditFeeForm(w http.ResponseWriter, r *http.Request) {
	id, month := r.PathValue("id"), r.PathValue("month")
	vm := EditFeeViewModel{Month: month}
	err := h.gym.View(r.Context(), owner(r), func(d *gym.Document) error {
		m, err := d.Member(id)
		if err != nil {
			return err
		}
		f, err := d.Fee(id, month)
		if err != nil {
			return err
		}
		vm.Member, vm.Fee = m, f
		return nil
	})
	if err != nil {
		h.flash(w, r, flashError, "Fee record not found!")
		http.Redirect(w, r, "/member/"+id, http.StatusFound)
		return
	}
	h.render(w, r, "edit_fee.html", "Edit Payment", vm)
}

// EditFee changes the amount and date of a payment.
func (h *Handlers) EditFee(w http.ResponseWriter, r *http.Request) {
	id, month := r.PathValue("id"), r.PathValue("month")
	if err := r.ParseForm(); err != nil {
		h.flash(w, r, flashError, "Invalid form submission")
		http.Redirect(w, r, r.URL.Path, http.StatusSeeOther)
		return
	}
	var notes *string
	if _, ok := r.PostForm["notes"]; ok {
		v := r.PostFormValue("notes")
		notes = &v
	}
	date := paidDate(r.FormValue("date"))
	if date == "" {
		date = h.gym.Now().Format(gym.TimestampLayout)
	}
	err := h.gym.UpdateFee(r.Context(), owner(r), id, month, parseAmount(r.FormValue("amount")), date, notes)
	if err != nil {
		h.logger.Warn("update fee failed", zap.String("member_id", id), zap.String("month", month), zap.Error(err))
		h.flash(w, r, flashError, "Update failed!")
		http.Redirect(w, r, r.URL.Path, http.StatusSeeOther)
		return
	}
	h.flash(w, r, flashSuccess, fmt.Sprintf("Payment for %s updated!", month))
	http.Redirect(w, r, "/member/"+id, http.StatusSeeOther)
}

// EditMemberForm renders the member edit form.
func (h *Handlers) EditMemberForm(w http.ResponseWriter, r *http.Request) {
	m, err := h.gym.Member(r.Context(), owner(r), r.PathValue("id"))
	if err != nil {
		h.flash(w, r, flashError, "Member not found!")
		http.Redirect(w, r, "/dashboard", http.StatusFound)
		return
	}
	h.render(w, r, "edit_member.html", "Edit Member", m)
}

// EditMember saves member changes.
func (h *Handlers) EditMember(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.parseMultipart(w, r); err != nil {
		h.flash(w, r, flashError, uploadMessage(err))
		http.Redirect(w, r, "/member/"+id+"/edit", http.StatusSeeOther)
		return
	}
	photo, err := h.saveUpload(r, "photo", "member_")
	if err != nil {
		h.flash(w, r, flashError, uploadMessage(err))
		http.Redirect(w, r, "/member/"+id+"/edit", http.StatusSeeOther)
		return
	}
	err = h.gym.UpdateMember(r.Context(), owner(r), id, gym.MemberUpdate{
		Name:           strings.TrimSpace(r.FormValue("name")),
		Phone:          strings.TrimSpace(r.FormValue("phone")),
		Email:          strings.TrimSpace(r.FormValue("email")),
		MembershipType: r.FormValue("membership_type"),
		JoinedDate:     r.FormValue("joined_date"),
		Photo:          photo,
	})
	if err != nil {
		h.logger.Warn("update member failed", zap.String("member_id", id), zap.Error(err))
		h.flash(w, r, flashError, "Update failed!")
		http.Redirect(w, r, "/member/"+id+"/edit", http.StatusSeeOther)
		return
	}
	h.flash(w, r, flashSuccess, "Member updated successfully!")
	http.Redirect(w, r, "/member/"+id, http.StatusSeeOther)
}

// DeleteMember removes a member with all their records.
func (h *Handlers) DeleteMember(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.gym.DeleteMember(r.Context(), owner(r), id); err != nil {
		h.logger.Warn("delete member failed", zap.String("member_id", id), zap.Error(err))
		h.flash(w, r, flashError, "Delete failed!")
	} else {
		h.flash(w, r, flashSuccess, "Member deleted successfully!")
	}
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

// FeesViewModel is the data for the quick fee entry page.
type FeesViewModel struct {
	Members      []models.Member
	Months       []gym.MonthOption
	CurrentMonth string
}

// FeesForm renders the quick fee entry page.
func (h *Handlers) FeesForm(w http.ResponseWriter, r *http.Request) {
	members, err := h.gym.Members(r.Context(), owner(r))
	if err != nil {
		h.logger.Error("list members failed", zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	now := h.gym.Now()
	h.render(w, r, "fees.html", "Fees", FeesViewModel{
		Members:      members,
		Months:       gym.MonthOptions(now),
		CurrentMonth: gym.MonthOf(now),
	})
}

// PayFee records a fee from the quick entry page.
func (h *Handlers) PayFee(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.flash(w, r, flashError, "Invalid form submission")
		http.Redirect(w, r, "/fees", http.StatusSeeOther)
		return
	}
	id, month := r.FormValue("member_id"), r.FormValue("month")
	var name string
	err := h.gym.Update(r.Context(), owner(r), func(d *gym.Document) error {
		m, err := d.Member(id)
		if err != nil {
			return err
		}
		name = m.Name
		return d.PayFee(id, month, parseAmount(r.FormValue("amount")), "", "", h.gym.Now())
	})
	switch {
	case errors.Is(err, gym.ErrMemberNotFound):
		h.flash(w, r, flashError, "Member not found!")
	case err != nil:
		h.logger.Warn("pay fee failed", zap.String("member_id", id), zap.String("month", month), zap.Error(err))
		h.flash(w, r, flashError, "Payment failed!")
	default:
		h.flash(w, r, flashSuccess, fmt.Sprintf("Fee recorded for %s for %s", name, month))
	}
	http.Redirect(w, r, "/fees", http.StatusSeeOther)
}

// Scanner renders the card scanner page.
func (h *Handlers) Scanner(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "scanner.html", "Scanner", nil)
}

// ScanResultViewModel is the outcome of a card scan.
type ScanResultViewModel struct {
	Member      models.Member
	Result      gym.CheckInResult
	Month       string
	IsPaid      bool
	Attendance  []string
	LastPayment *models.FeeHistoryEntry
}

// ScanCheck decides whether a scanned member may enter and logs the visit.
func (h *Handlers) ScanCheck(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	now := h.gym.Now()
	vm := ScanResultViewModel{Month: gym.MonthOf(now)}

	fill := func(d *gym.Document) {
		vm.Member, _ = d.Member(id)
		vm.IsPaid = d.IsFeePaid(id, vm.Month)
		vm.Attendance = d.AttendanceFor(id)
		if history := d.FeeHistory(id); len(history) > 0 {
			vm.LastPayment = &history[0]
		}
	}

	// Only a granted entry is written.
	err := h.gym.View(r.Context(), owner(r), func(d *gym.Document) error {
		result, err := d.Access(id, now)
		if err != nil {
			return err
		}
		vm.Result = result
		fill(d)
		return nil
	})
	if err == nil && vm.Result == gym.AccessGranted {
		err = h.gym.Update(r.Context(), owner(r), func(d *gym.Document) error {
			result, err := d.CheckIn(id, now)
			if err != nil {
				return err
			}
			vm.Result = result
			fill(d)
			return nil
		})
	}
	if errors.Is(err, gym.ErrMemberNotFound) {
		h.flash(w, r, flashError, "Invalid Member ID!")
		http.Redirect(w, r, "/scanner", http.StatusFound)
		return
	}
	if err != nil {
		h.logger.Error("check-in failed", zap.String("member_id", id), zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if h.metrics != nil {
		h.metrics.CheckIn(string(vm.Result))
	}
	h.logger.Info("member checked in",
		zap.String("owner", owner(r)),
		zap.String("member_id", id),
		zap.String("result", string(vm.Result)),
	)
	h.render(w, r, "scan_result.html", "Check-in", vm)
}

// paidDate accepts a date or a full timestamp from a form. A bare date gets
// midnight so stored paid dates share one layout.
func paidDate(v string) string {
	v = strings.TrimSpace(v)
	if len(v) == len(gym.DateLayout) {
		return v + " 00:00:00"
	}
	return v
}
