package handlers

import (
	"net/http"

	"gym-manager/internal/gym"

	"go.uber.org/zap"
)

// ReportsViewModel is the data passed to the reports template.
type ReportsViewModel struct {
	gym.ReportStats
	MaxRevenue float64
}

// Reports renders membership, attendance and revenue figures.
func (h *Handlers) Reports(w http.ResponseWriter, r *http.Request) {
	stats, err := h.gym.Report(r.Context(), owner(r))
	if err != nil {
		h.logger.Error("report failed", zap.String("owner", owner(r)), zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	vm := ReportsViewModel{ReportStats: stats}
	for _, p := range stats.Trend {
		if p.Revenue > vm.MaxRevenue {
			vm.MaxRevenue = p.Revenue
		}
	}
	h.render(w, r, "reports.html", "Reports", vm)
}
