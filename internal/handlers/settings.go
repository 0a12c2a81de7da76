package handlers

import (
	"net/http"
	"strings"

	"gym-manager/internal/models"
	"gym-manager/internal/subscription"

	"go.uber.org/zap"
)

// SettingsViewModel is the data passed to the settings template.
type SettingsViewModel struct {
	Details  models.GymDetails
	Payments []models.Payment
	State    subscription.State
}

// Settings renders the gym profile form and the account's payments.
func (h *Handlers) Settings(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r)
	details, err := h.gym.Details(r.Context(), user.Username)
	if err != nil {
		h.logger.Error("load gym details failed", zap.String("owner", user.Username), zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	payments, err := h.subs.Payments(user.Username)
	if err != nil {
		h.logger.Warn("list payments failed", zap.String("owner", user.Username), zap.Error(err))
	}
	h.render(w, r, "settings.html", "Settings", SettingsViewModel{
		Details:  details,
		Payments: payments,
		State:    subscription.StateOf(user, h.gym.Now()),
	})
}

// UpdateSettings saves the gym name, currency and logo.
func (h *Handlers) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	if err := h.parseMultipart(w, r); err != nil {
		h.flash(w, r, flashError, uploadMessage(err))
		http.Redirect(w, r, "/settings", http.StatusSeeOther)
		return
	}
	logo, err := h.saveUpload(r, "gym_logo", "logo_")
	if err != nil {
		h.flash(w, r, flashError, uploadMessage(err))
		http.Redirect(w, r, "/settings", http.StatusSeeOther)
		return
	}
	currency := strings.TrimSpace(r.FormValue("currency"))
	if currency == "" {
		currency = "$"
	}
	if err := h.gym.UpdateDetails(r.Context(), owner(r), strings.TrimSpace(r.FormValue("gym_name")), logo, currency); err != nil {
		h.logger.Error("update settings failed", zap.String("owner", owner(r)), zap.Error(err))
		h.flash(w, r, flashError, "Failed to update settings!")
		http.Redirect(w, r, "/settings", http.StatusSeeOther)
		return
	}
	h.flash(w, r, flashSuccess, "Gym settings updated successfully!")
	http.Redirect(w, r, "/settings", http.StatusSeeOther)
}

// ResetData wipes the account's gym data. The account itself stays.
func (h *Handlers) ResetData(w http.ResponseWriter, r *http.Request) {
	if err := h.gym.Reset(r.Context(), owner(r)); err != nil {
		h.serverError(w, r, "/settings", "reset failed", err)
		return
	}
	h.logger.Info("gym data reset", zap.String("owner", owner(r)))
	h.flash(w, r, flashSuccess, "All your data has been reset!")
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}
