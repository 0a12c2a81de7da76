package handlers

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"gym-manager/internal/auth"
	"gym-manager/internal/billing"
	"gym-manager/internal/gym"
	"gym-manager/internal/metrics"
	"gym-manager/internal/models"
	"gym-manager/internal/storage"
	"gym-manager/internal/subscription"

	"github.com/gorilla/csrf"
	"github.com/gorilla/sessions"
	"go.uber.org/zap"
)

// Context key type to avoid collisions.
type contextKey string

const (
	// UserContextKey is the context key for the authenticated user.
	UserContextKey contextKey = "user"
	// SessionCookieName is the name of the session cookie.
	SessionCookieName = "session"
	// SessionDuration is how long sessions last (30 days).
	SessionDuration = 30 * 24 * time.Hour

	flashCookieName = "gym-flash"
)

// Deps are the collaborators the handlers need.
type Deps struct {
	DB             *storage.DB
	Gym            *gym.Service
	Subscriptions  *subscription.Service
	Billing        billing.Provider
	Google         auth.TokenVerifier
	GoogleClientID string
	Metrics        *metrics.Metrics
	Logger         *zap.Logger
	Templates      fs.FS
	UploadDir      string
	MaxUploadBytes int64
	SecureCookie   bool
	BaseURL        string
	SessionSecret  []byte
	LoginLimiter   *LoginLimiter
}

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	db             *storage.DB
	gym            *gym.Service
	subs           *subscription.Service
	billing        billing.Provider
	google         auth.TokenVerifier
	googleClientID string
	metrics        *metrics.Metrics
	logger         *zap.Logger
	views          map[string]*template.Template
	flashes        *sessions.CookieStore
	uploadDir      string
	maxUpload      int64
	secureCookie   bool
	baseURL        string
	limiter        *LoginLimiter
}

// NewHandlers parses the page templates and returns a Handlers instance.
func NewHandlers(d Deps) (*Handlers, error) {
	views, err := parseViews(d.Templates)
	if err != nil {
		return nil, err
	}
	if d.Billing == nil {
		d.Billing = billing.Disabled{}
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.MaxUploadBytes <= 0 {
		d.MaxUploadBytes = 16 << 20
	}
	if d.LoginLimiter == nil {
		d.LoginLimiter = NewLoginLimiter(5, 5)
	}
	if len(d.SessionSecret) == 0 {
		return nil, errors.New("session secret is required")
	}

	store := sessions.NewCookieStore(d.SessionSecret)
	store.Options = &sessions.Options{
		Path:     "/",
		HttpOnly: true,
		Secure:   d.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	}

	return &Handlers{
		db:             d.DB,
		gym:            d.Gym,
		subs:           d.Subscriptions,
		billing:        d.Billing,
		google:         d.Google,
		googleClientID: d.GoogleClientID,
		metrics:        d.Metrics,
		logger:         d.Logger,
		views:          views,
		flashes:        store,
		uploadDir:      d.UploadDir,
		maxUpload:      d.MaxUploadBytes,
		secureCookie:   d.SecureCookie,
		baseURL:        strings.TrimRight(d.BaseURL, "/"),
		limiter:        d.LoginLimiter,
	}, nil
}

// GetUserFromContext retrieves the authenticated user from request context.
func GetUserFromContext(r *http.Request) *models.User {
	if user, ok := r.Context().Value(UserContextKey).(*models.User); ok {
		return user
	}
	return nil
}

// AuthMiddleware wraps handlers to require authentication.
// It also implements rolling sessions: if a session is past the halfway point
// of its lifetime, it automatically renews the session.
func (h *Handlers) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(SessionCookieName)
		if err != nil || cookie.Value == "" {
			http.Redirect(w, r, "/auth", http.StatusFound)
			return
		}

		sessionInfo, err := h.db.ValidateSessionWithInfo(cookie.Value)
		if err != nil {
			h.clearSessionCookie(w)
			http.Redirect(w, r, "/auth", http.StatusFound)
			return
		}

		// Rolling session: renew if past halfway point
		now := time.Now()
		if sessionInfo.ExpiresAt.Sub(now) < SessionDuration/2 {
			if err := h.db.RenewSession(cookie.Value, now.Add(SessionDuration)); err == nil {
				h.setSessionCookie(w, cookie.Value)
			} else {
				h.logger.Warn("session renewal failed", zap.Error(err))
			}
		}

		ctx := context.WithValue(r.Context(), UserContextKey, sessionInfo.User)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireSubscription sends accounts without an active subscription to the
// subscription page. It must run inside AuthMiddleware.
func (h *Handlers) RequireSubscription(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := GetUserFromContext(r)
		if user == nil {
			http.Redirect(w, r, "/auth", http.StatusFound)
			return
		}
		if !subscription.Active(user, time.Now()) {
			http.Redirect(w, r, "/subscription", http.StatusFound)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Index sends visitors to the dashboard or the login page.
func (h *Handlers) Index(w http.ResponseWriter, r *http.Request) {
	if h.currentUser(r) != nil {
		http.Redirect(w, r, "/dashboard", http.StatusFound)
		return
	}
	http.Redirect(w, r, "/auth", http.StatusFound)
}

// currentUser resolves the session cookie outside AuthMiddleware.
func (h *Handlers) currentUser(r *http.Request) *models.User {
	if user := GetUserFromContext(r); user != nil {
		return user
	}
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil || cookie.Value == "" {
		return nil
	}
	user, err := h.db.ValidateSession(cookie.Value)
	if err != nil {
		return nil
	}
	return user
}

// AuthViewModel holds data for the login and signup page.
type AuthViewModel struct {
	GoogleClientID string
}

// AuthForm renders the login and signup page.
func (h *Handlers) AuthForm(w http.ResponseWriter, r *http.Request) {
	if h.currentUser(r) != nil {
		http.Redirect(w, r, "/dashboard", http.StatusFound)
		return
	}
	h.render(w, r, "auth.html", "Login", AuthViewModel{GoogleClientID: h.googleClientID})
}

// Auth handles both the login and the signup form, told apart by the action field.
func (h *Handlers) Auth(w http.ResponseWriter, r *http.Request) {
	if !h.limiter.Allow(clientIP(r)) {
		h.flash(w, r, flashError, "Too many attempts. Please wait a minute and try again.")
		http.Redirect(w, r, "/auth", http.StatusSeeOther)
		return
	}
	if err := r.ParseForm(); err != nil {
		h.flash(w, r, flashError, "Invalid form submission")
		http.Redirect(w, r, "/auth", http.StatusSeeOther)
		return
	}

	username := strings.TrimSpace(r.FormValue("username"))
	password := r.FormValue("password")

	switch r.FormValue("action") {
	case "signup":
		_, err := h.subs.CreateUser(username, password, r.FormValue("referral_code"))
		switch {
		case errors.Is(err, subscription.ErrUserExists):
			h.flash(w, r, flashError, "Username already exists!")
		case errors.Is(err, subscription.ErrMissingCredentials):
			h.flash(w, r, flashError, "Username and password are required")
		case err != nil:
			h.logger.Error("signup failed", zap.String("username", username), zap.Error(err))
			h.flash(w, r, flashError, "An error occurred. Please try again.")
		default:
			h.countSubscription("signup")
			h.flash(w, r, flashSuccess, "Account created successfully! Please login.")
		}
		http.Redirect(w, r, "/auth", http.StatusSeeOther)

	case "login":
		user, err := h.subs.VerifyUser(username, password)
		if err != nil {
			if !errors.Is(err, subscription.ErrInvalidCredentials) {
				h.logger.Error("login failed", zap.String("username", username), zap.Error(err))
			}
			h.flash(w, r, flashError, "Invalid credentials!")
			http.Redirect(w, r, "/auth", http.StatusSeeOther)
			return
		}
		if err := h.startSession(w, user); err != nil {
			h.logger.Error("failed to create session", zap.Error(err))
			h.flash(w, r, flashError, "An error occurred. Please try again.")
			http.Redirect(w, r, "/auth", http.StatusSeeOther)
			return
		}
		h.flash(w, r, flashSuccess, "Login successful!")
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)

	default:
		h.flash(w, r, flashError, "Invalid form submission")
		http.Redirect(w, r, "/auth", http.StatusSeeOther)
	}
}

// GoogleLogin signs in with a Google ID token, creating the account on first use.
func (h *Handlers) GoogleLogin(w http.ResponseWriter, r *http.Request) {
	if !h.limiter.Allow(clientIP(r)) {
		h.flash(w, r, flashError, "Too many attempts. Please wait a minute and try again.")
		http.Redirect(w, r, "/auth", http.StatusSeeOther)
		return
	}
	if h.google == nil {
		h.flash(w, r, flashError, "Google Login is not available.")
		http.Redirect(w, r, "/auth", http.StatusSeeOther)
		return
	}

	email, err := h.google.VerifyEmail(r.Context(), r.FormValue("credential"))
	if err != nil {
		h.logger.Warn("google token rejected", zap.Error(err))
		h.flash(w, r, flashError, "Google Login failed! Invalid token.")
		http.Redirect(w, r, "/auth", http.StatusSeeOther)
		return
	}

	existed := h.subs.UserExists(email)
	user, err := h.subs.EnsureUser(email)
	if err != nil {
		h.logger.Error("google signup failed", zap.String("username", email), zap.Error(err))
		h.flash(w, r, flashError, "An error occurred. Please try again.")
		http.Redirect(w, r, "/auth", http.StatusSeeOther)
		return
	}
	if !existed {
		h.countSubscription("signup")
		h.flash(w, r, flashSuccess, fmt.Sprintf("Account created with Google! Welcome, %s.", email))
	}
	if err := h.startSession(w, user); err != nil {
		h.logger.Error("failed to create session", zap.Error(err))
		h.flash(w, r, flashError, "An error occurred. Please try again.")
		http.Redirect(w, r, "/auth", http.StatusSeeOther)
		return
	}
	h.flash(w, r, flashSuccess, fmt.Sprintf("Logged in as %s!", email))
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

// Logout handles user logout.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(SessionCookieName); err == nil {
		if err := h.db.DeleteSession(cookie.Value); err != nil {
			h.logger.Warn("failed to delete session", zap.Error(err))
		}
	}
	h.clearSessionCookie(w)
	h.flash(w, r, flashSuccess, "Logged out successfully")
	http.Redirect(w, r, "/auth", http.StatusFound)
}

func (h *Handlers) startSession(w http.ResponseWriter, user *models.User) error {
	token, err := auth.GenerateSessionToken()
	if err != nil {
		return fmt.Errorf("generate session token: %w", err)
	}
	if err := h.db.CreateSession(token, user.ID, time.Now().Add(SessionDuration)); err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	h.setSessionCookie(w, token)
	return nil
}

func (h *Handlers) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(SessionDuration.Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *Handlers) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

// Health reports that the process is up.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

// Ready reports whether the database answers.
func (h *Handlers) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := h.db.Ping(ctx); err != nil {
		h.logger.Warn("readiness check failed", zap.Error(err))
		http.Error(w, "database unavailable", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ready"))
}

// Page is the data every template receives. Data holds the view model.
type Page struct {
	Title     string
	User      *models.User
	IsAdmin   bool
	Gym       models.GymDetails
	Flashes   []Flash
	CSRFField template.HTML
	CSRFToken string
	Data      any
}

func (h *Handlers) render(w http.ResponseWriter, r *http.Request, viewName, title string, data any) {
	tmpl, ok := h.views[viewName]
	if !ok {
		h.logger.Error("unknown template", zap.String("view", viewName))
		http.Error(w, "Template error", http.StatusInternalServerError)
		return
	}

	page := Page{
		Title:     title,
		User:      GetUserFromContext(r),
		Gym:       models.GymDetails{Name: "Gym Manager", Currency: "$"},
		CSRFField: csrf.TemplateField(r),
		CSRFToken: csrf.Token(r),
		Data:      data,
	}
	if page.User != nil {
		page.IsAdmin = auth.CanApprovePayments(page.User)
		if details, err := h.gym.Details(r.Context(), page.User.Username); err == nil {
			page.Gym = details
		} else {
			h.logger.Warn("failed to load gym details", zap.String("owner", page.User.Username), zap.Error(err))
		}
	}
	page.Flashes = h.takeFlashes(w, r)

	target := "base.html"
	if r.Header.Get("HX-Request") == "true" {
		target = "main"
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.ExecuteTemplate(w, target, page); err != nil {
		h.logger.Error("template execution error", zap.String("view", viewName), zap.Error(err))
	}
}

// serverError logs err and sends the user back to target with a generic message.
func (h *Handlers) serverError(w http.ResponseWriter, r *http.Request, target, msg string, err error) {
	h.logger.Error(msg, zap.String("path", r.URL.Path), zap.Error(err))
	h.flash(w, r, flashError, "Something went wrong. Please try again.")
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func (h *Handlers) countSubscription(event string) {
	if h.metrics != nil {
		h.metrics.SubscriptionEvent(event)
	}
}

// owner returns the username whose gym data the request works on.
func owner(r *http.Request) string {
	if u := GetUserFromContext(r); u != nil {
		return u.Username
	}
	return ""
}

// parseAmount reads a money field. Anything unparsable counts as zero.
func parseAmount(v string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}
