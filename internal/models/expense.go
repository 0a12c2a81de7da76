package models

// Expense represents a gym operating expense.
type Expense struct {
	ID          string  `json:"id"`
	Category    string  `json:"category"`
	Amount      float64 `json:"amount"`
	Date        string  `json:"date"`
	Description string  `json:"description"`
}

// ProfitLoss summarises one month of revenue against expenses.
// HasRevenue is false when no fee was collected, in which case ProfitMargin
// is reported as 0.
type ProfitLoss struct {
	Month        string  `json:"month"`
	Revenue      float64 `json:"revenue"`
	Expenses     float64 `json:"expenses"`
	NetProfit    float64 `json:"net_profit"`
	ProfitMargin float64 `json:"profit_margin"`
	HasRevenue   bool    `json:"has_revenue"`
}
