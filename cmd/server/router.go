package main

import (
	"net/http"

	"gym-manager/internal/handlers"
	"gym-manager/internal/metrics"
	"gym-manager/web"

	"go.uber.org/zap"
)

type routerOptions struct {
	Metrics *metrics.Metrics
	Logger  *zap.Logger
	CSRFKey []byte
	Secure  bool
}

func setupRouter(h *handlers.Handlers, opts routerOptions) http.Handler {
	mux := http.NewServeMux()
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	handle := func(pattern string, handler http.Handler) {
		if opts.Metrics != nil {
			handler = opts.Metrics.Instrument(pattern, handler)
		}
		mux.Handle(pattern, handler)
	}
	// public needs no login.
	public := func(pattern string, fn http.HandlerFunc) {
		handle(pattern, fn)
	}
	// account needs a login but no active subscription.
	account := func(pattern string, fn http.HandlerFunc) {
		handle(pattern, h.AuthMiddleware(fn))
	}
	// gated needs a login and an active subscription.
	gated := func(pattern string, fn http.HandlerFunc) {
		handle(pattern, h.AuthMiddleware(h.RequireSubscription(fn)))
	}

	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(web.Static())))
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /ready", h.Ready)
	if opts.Metrics != nil {
		mux.Handle("GET /metrics", opts.Metrics.Handler())
	}

	public("GET /{$}", h.Index)
	public("GET /auth", h.AuthForm)
	public("POST /auth", h.Auth)
	public("POST /google_login", h.GoogleLogin)
	public("GET /logout", h.Logout)

	account("GET /subscription", h.Subscription)
	account("POST /create_checkout_session", h.CreateCheckoutSession)
	account("GET /payment_success", h.PaymentSuccess)
	account("GET /payment_cancel", h.PaymentCancel)
	account("GET /manual_payment", h.ManualPaymentForm)
	account("POST /manual_payment", h.ManualPayment)
	account("GET /super_admin", h.SuperAdmin)
	account("POST /approve_payment/{username}", h.ApprovePayment)
	account("GET /uploads/{name}", h.Upload)

	gated("GET /dashboard", h.Dashboard)
	gated("GET /add_member", h.AddMemberForm)
	gated("POST /add_member", h.AddMember)
	gated("GET /fees", h.FeesForm)
	gated("POST /fees", h.PayFee)
	gated("GET /download_excel", h.DownloadExcel)
	gated("GET /card/{id}", h.MemberCard)
	gated("GET /qr/{id}", h.MemberQR)
	gated("GET /scanner", h.Scanner)
	gated("GET /scan_check/{id}", h.ScanCheck)
	gated("GET /member/{id}", h.MemberDetails)
	gated("POST /member/{id}", h.RecordPayment)
	gated("POST /member/{id}/delete_fee/{month}", h.DeleteFee)
	gated("GET /member/{id}/edit_fee/{month}", h.EditFeeForm)
	gated("POST /member/{id}/edit_fee/{month}", h.EditFee)
	gated("GET /member/{id}/edit", h.EditMemberForm)
	gated("POST /member/{id}/edit", h.EditMember)
	gated("POST /member/{id}/delete", h.DeleteMember)
	gated("GET /receipt/{id}/{month}", h.Receipt)
	gated("GET /schedule", h.Schedule)
	gated("POST /schedule", h.AddClass)
	gated("POST /book_class/{id}", h.BookClass)
	gated("GET /expenses", h.Expenses)
	gated("POST /expenses", h.AddExpense)
	gated("POST /delete_expense/{id}", h.DeleteExpense)
	gated("GET /reports", h.Reports)
	gated("GET /settings", h.Settings)
	gated("POST /settings", h.UpdateSettings)
	gated("POST /reset_admin", h.ResetData)

	var handler http.Handler = mux
	if len(opts.CSRFKey) > 0 {
		handler = handlers.CSRF(opts.CSRFKey, opts.Secure, opts.Logger, handler)
	}
	handler = handlers.Recovery(opts.Logger, handler)
	return handlers.RequestLogger(opts.Logger, handler)
}
