package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"gym-manager/internal/auth"
	"gym-manager/internal/billing"
	"gym-manager/internal/subscription"

	"go.uber.org/zap"
)

// SubscriptionViewModel is the data for the plan selection page.
type SubscriptionViewModel struct {
	CardEnabled bool
}

// Subscription shows the pending notice or the payment options. Active
// accounts go straight to the dashboard.
func (h *Handlers) Subscription(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r)
	switch subscription.StateOf(user, time.Now()) {
	case subscription.StateLifetime, subscription.StateActive:
		http.Redirect(w, r, "/dashboard", http.StatusFound)
	case subscription.StatePending:
		h.render(w, r, "payment_pending.html", "Payment Pending", nil)
	default:
		_, disabled := h.billing.(billing.Disabled)
		h.render(w, r, "payment_select.html", "Subscription", SubscriptionViewModel{CardEnabled: !disabled})
	}
}

// CreateCheckoutSession starts a hosted card checkout.
func (h *Handlers) CreateCheckoutSession(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r)
	successURL := h.baseURL + "/payment_success?session_id={CHECKOUT_SESSION_ID}"
	cancelURL := h.baseURL + "/payment_cancel"

	url, err := h.billing.CreateCheckout(r.Context(), user.Username, successURL, cancelURL)
	if err != nil {
		h.logger.Error("checkout creation failed", zap.String("username", user.Username), zap.Error(err))
		msg := "Error creating payment session. Please try again."
		if errors.Is(err, billing.ErrNotConfigured) {
			msg = "Card payments are not available. Please use manual payment."
		}
		h.flash(w, r, flashError, msg)
		http.Redirect(w, r, "/subscription", http.StatusSeeOther)
		return
	}
	h.countSubscription("checkout_started")
	http.Redirect(w, r, url, http.StatusSeeOther)
}

// PaymentSuccess renews the subscription once the provider confirms that the
// checkout was paid by the signed-in account.
func (h *Handlers) PaymentSuccess(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r)
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		h.flash(w, r, flashError, "Missing payment session.")
		http.Redirect(w, r, "/subscription", http.StatusFound)
		return
	}

	paidBy, err := h.billing.VerifyCheckout(r.Context(), sessionID)
	if err != nil {
		h.logger.Warn("checkout verification failed",
			zap.String("username", user.Username),
			zap.String("session_id", sessionID),
			zap.Error(err),
		)
		msg := "We could not confirm your payment."
		if errors.Is(err, billing.ErrNotPaid) {
			msg = "Your payment has not completed yet."
		}
		h.flash(w, r, flashError, msg)
		http.Redirect(w, r, "/subscription", http.StatusFound)
		return
	}
	if paidBy != user.Username {
		h.logger.Warn("checkout belongs to another account",
			zap.String("username", user.Username),
			zap.String("paid_by", paidBy),
		)
		h.flash(w, r, flashError, "This payment belongs to a different account.")
		http.Redirect(w, r, "/subscription", http.StatusFound)
		return
	}

	err = h.subs.Renew(user.Username, 0, sessionID)
	if errors.Is(err, subscription.ErrAlreadyApplied) {
		h.logger.Warn("checkout replayed",
			zap.String("username", user.Username),
			zap.String("session_id", sessionID),
		)
		h.flash(w, r, flashInfo, "This payment has already been applied to your subscription.")
		http.Redirect(w, r, "/subscription", http.StatusFound)
		return
	}
	if err != nil {
		h.serverError(w, r, "/subscription", "subscription renewal failed", err)
		return
	}
	h.countSubscription("renewed")
	h.flash(w, r, flashSuccess, "Payment Successful! Thank you for your subscription. ✅")
	http.Redirect(w, r, "/dashboard", http.StatusFound)
}

// PaymentCancel returns from an abandoned checkout.
func (h *Handlers) PaymentCancel(w http.ResponseWriter, r *http.Request) {
	h.flash(w, r, flashInfo, "Payment cancelled.")
	http.Redirect(w, r, "/subscription", http.StatusFound)
}

// ManualPaymentForm renders the proof upload page.
func (h *Handlers) ManualPaymentForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "payment_manual.html", "Manual Payment", nil)
}

// ManualPayment stores an uploaded payment proof and marks the account pending.
func (h *Handlers) ManualPayment(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r)
	if err := h.parseMultipart(w, r); err != nil {
		h.flash(w, r, flashError, uploadMessage(err))
		http.Redirect(w, r, "/manual_payment", http.StatusSeeOther)
		return
	}
	proof, err := h.saveUpload(r, "payment_proof", "proof_")
	if err != nil {
		h.flash(w, r, flashError, uploadMessage(err))
		http.Redirect(w, r, "/manual_payment", http.StatusSeeOther)
		return
	}
	if proof == "" {
		h.flash(w, r, flashError, "Please choose a payment proof to upload.")
		http.Redirect(w, r, "/manual_payment", http.StatusSeeOther)
		return
	}
	if err := h.subs.SetPaymentPending(user.Username, proof); err != nil {
		h.serverError(w, r, "/manual_payment", "failed to record payment proof", err)
		return
	}
	h.countSubscription("proof_submitted")
	h.flash(w, r, flashSuccess, "Proof uploaded! Waiting for admin approval.")
	http.Redirect(w, r, "/subscription", http.StatusSeeOther)
}

// SuperAdminViewModel lists manual payments waiting for approval.
type SuperAdminViewModel struct {
	Pending []subscription.PendingApproval
}

// SuperAdmin shows pending manual payments to administrators.
func (h *Handlers) SuperAdmin(w http.ResponseWriter, r *http.Request) {
	if !auth.CanApprovePayments(GetUserFromContext(r)) {
		h.flash(w, r, flashError, "Access Denied: Super Admin only.")
		http.Redirect(w, r, "/dashboard", http.StatusFound)
		return
	}
	pending, err := h.subs.PendingApprovals()
	if err != nil {
		h.serverError(w, r, "/dashboard", "failed to list pending approvals", err)
		return
	}
	h.render(w, r, "super_admin.html", "Super Admin", SuperAdminViewModel{Pending: pending})
}

// ApprovePayment activates a pending manual payment.
func (h *Handlers) ApprovePayment(w http.ResponseWriter, r *http.Request) {
	admin := GetUserFromContext(r)
	if !auth.CanApprovePayments(admin) {
		h.flash(w, r, flashError, "Access Denied.")
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		return
	}
	target := r.PathValue("username")
	if err := h.subs.ApproveManualPayment(target); err != nil {
		h.logger.Warn("approval failed", zap.String("admin", admin.Username), zap.String("target", target), zap.Error(err))
		h.flash(w, r, flashError, "Approval failed.")
		http.Redirect(w, r, "/super_admin", http.StatusSeeOther)
		return
	}
	h.logger.Info("manual payment approved", zap.String("admin", admin.Username), zap.String("target", target))
	h.countSubscription("approved")
	h.flash(w, r, flashSuccess, fmt.Sprintf("User %s approved!", target))
	http.Redirect(w, r, "/super_admin", http.StatusSeeOther)
}

func uploadMessage(err error) string {
	switch {
	case errors.Is(err, errUnsupportedFile):
		return "Only PNG, JPG, JPEG and GIF files are allowed."
	case errors.Is(err, errFileTooLarge):
		return "File is too large (16 MB max)."
	default:
		return "Upload failed. Please try again."
	}
}
