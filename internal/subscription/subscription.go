package subscription

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"gym-manager/internal/auth"
	"gym-manager/internal/models"
	"gym-manager/internal/storage"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrUserExists         = errors.New("user already exists")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrMissingCredentials = errors.New("username and password are required")
	// ErrAlreadyApplied is returned when a payment reference has already
	// paid for an activation.
	ErrAlreadyApplied = errors.New("payment already applied")
)

// lifetimeExpiry is stored for free lifetime accounts.
var lifetimeExpiry = time.Date(2099, 12, 31, 0, 0, 0, 0, time.UTC)

// State is the derived subscription state of an account.
type State string

const (
	StateLifetime State = "lifetime"
	StateActive   State = "active"
	StatePending  State = "pending"
	StateExpired  State = "expired"
	StateInactive State = "inactive"
)

// Store is the account persistence used by Service. *storage.DB implements it.
type Store interface {
	CreateUser(u *models.User) (*models.User, error)
	GetUserByUsername(username string) (*models.User, error)
	ListUsersByStatus(status models.SubscriptionStatus) ([]models.User, error)
	ListUsersExpiringBetween(from, to time.Time) ([]models.User, error)
	SetPaymentProof(userID int64, proof string, status models.SubscriptionStatus) error
	SetRoleByUsername(username string, role models.Role) (bool, error)
	ActivateSubscription(userID int64, expiry time.Time, status models.SubscriptionStatus, p *models.Payment) error
	AddPayment(p *models.Payment) error
	ListPayments(userID int64) ([]models.Payment, error)
}

// Options configures plans and prices.
type Options struct {
	ReferralCodes []string
	AdminEmails   []string
	RenewalDays   int
	CardAmount    float64
	CardMethod    string
	ManualAmount  float64
	ManualMethod  string
	DataDir       string
}

// DefaultOptions returns the stock plan configuration.
func DefaultOptions() Options {
	return Options{
		ReferralCodes: auth.DefaultReferralCodes,
		RenewalDays:   30,
		CardAmount:    60.00,
		CardMethod:    "Credit Card",
		ManualAmount:  2000.00,
		ManualMethod:  "Manual/JazzCash",
		DataDir:       "gym_data",
	}
}

// Service manages accounts and their subscriptions.
type Service struct {
	store  Store
	opts   Options
	logger *zap.Logger
	now    func() time.Time
}

// NewService returns a Service over store.
func NewService(store Store, opts Options, logger *zap.Logger) *Service {
	if opts.RenewalDays <= 0 {
		opts.RenewalDays = 30
	}
	return &Service{store: store, opts: opts, logger: logger, now: time.Now}
}

// SetClock replaces the time source.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// CreateUser registers an account. A recognised referral code grants the free
// lifetime plan; otherwise the account stays inactive until it pays.
func (s *Service) CreateUser(username, password, referralCode string) (*models.User, error) {
	u := &models.User{
		ReferralCode: strings.TrimSpace(referralCode),
		Plan:         models.PlanStandard,
		Role:         models.RoleMember,
	}
	if auth.IsLifetimeReferral(referralCode, s.opts.ReferralCodes) {
		expiry := lifetimeExpiry
		u.Plan = models.PlanFreeLifetime
		u.SubscriptionExpiry = &expiry
	}
	return s.create(u, username, password)
}

// CreateAdmin registers an administrator on the free lifetime plan.
func (s *Service) CreateAdmin(username, password string) (*models.User, error) {
	expiry := lifetimeExpiry
	return s.create(&models.User{
		Plan:               models.PlanFreeLifetime,
		SubscriptionExpiry: &expiry,
		Role:               models.RoleAdmin,
	}, username, password)
}

func (s *Service) create(u *models.User, username, password string) (*models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, ErrMissingCredentials
	}
	if s.UserExists(username) {
		return nil, fmt.Errorf("%s: %w", username, ErrUserExists)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u.Username = username
	u.PasswordHash = hash

	created, err := s.store.CreateUser(u)
	if errors.Is(err, storage.ErrDuplicate) {
		return nil, fmt.Errorf("%s: %w", username, ErrUserExists)
	}
	if err != nil {
		return nil, err
	}
	s.logger.Info("account created",
		zap.String("username", created.Username),
		zap.String("plan", string(created.Plan)),
		zap.String("role", string(created.Role)),
	)
	return created, nil
}

// Promote grants the admin role to an existing account.
func (s *Service) Promote(username string) error {
	ok, err := s.store.SetRoleByUsername(username, models.RoleAdmin)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s: %w", username, ErrUserNotFound)
	}
	s.logger.Info("admin role granted", zap.String("username", username))
	return nil
}

// VerifyUser checks a password and returns the account.
func (s *Service) VerifyUser(username, password string) (*models.User, error) {
	u, err := s.store.GetUserByUsername(strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !auth.CheckPassword(password, u.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

// EnsureUser returns the named account, creating a standard one with an
// unusable random password when it does not exist. Used for sign-in through
// an external identity provider.
func (s *Service) EnsureUser(username string) (*models.User, error) {
	u, err := s.User(username)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return nil, err
	}
	created, err := s.CreateUser(username, uuid.NewString()+uuid.NewString(), "")
	if errors.Is(err, ErrUserExists) {
		return s.User(username)
	}
	return created, err
}

// User returns the named account.
func (s *Service) User(username string) (*models.User, error) {
	u, err := s.store.GetUserByUsername(username)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%s: %w", username, ErrUserNotFound)
	}
	return u, err
}

// UserExists reports whether an account with this name exists.
func (s *Service) UserExists(username string) bool {
	_, err := s.store.GetUserByUsername(username)
	return err == nil
}

// Active reports whether u may use the gym pages at now. Lifetime accounts
// are always active; others need an expiry date on or after today.
func Active(u *models.User, now time.Time) bool {
	if u == nil {
		return false
	}
	if u.Plan == models.PlanFreeLifetime {
		return true
	}
	if u.SubscriptionExpiry == nil {
		return false
	}
	return u.SubscriptionExpiry.Format(storage.DateLayout) >= now.Format(storage.DateLayout)
}

// StateOf derives the subscription state of u at now.
func StateOf(u *models.User, now time.Time) State {
	switch {
	case u.Plan == models.PlanFreeLifetime:
		return StateLifetime
	case Active(u, now):
		return StateActive
	case u.SubscriptionStatus == models.SubscriptionPending:
		return StatePending
	case u.SubscriptionExpiry != nil:
		return StateExpired
	default:
		return StateInactive
	}
}

// IsActive reports whether the named account has an active subscription.
// Unknown accounts are inactive.
func (s *Service) IsActive(username string) bool {
	u, err := s.store.GetUserByUsername(username)
	if err != nil {
		return false
	}
	return Active(u, s.now())
}

// Status returns the derived state of the named account.
func (s *Service) Status(username string) (State, error) {
	u, err := s.User(username)
	if err != nil {
		return "", err
	}
	return StateOf(u, s.now()), nil
}

// Renew extends the subscription to days from now and records a completed
// card payment. reference identifies the checkout that paid for it.
func (s *Service) Renew(username string, days int, reference string) error {
	if days <= 0 {
		days = s.opts.RenewalDays
	}
	return s.activate(username, days, &models.Payment{
		Amount:    s.opts.CardAmount,
		Method:    s.opts.CardMethod,
		Status:    models.PaymentCompleted,
		Reference: reference,
	})
}

// ApproveManualPayment activates a pending manual payment for the standard
// renewal period and records it.
func (s *Service) ApproveManualPayment(username string) error {
	return s.activate(username, s.opts.RenewalDays, &models.Payment{
		Amount: s.opts.ManualAmount,
		Method: s.opts.ManualMethod,
		Status: models.PaymentCompleted,
	})
}

func (s *Service) activate(username string, days int, p *models.Payment) error {
	u, err := s.User(username)
	if err != nil {
		return err
	}
	now := s.now()
	p.Date = now
	if p.Reference == "" {
		p.Reference = uuid.NewString()
	}
	expiry := now.AddDate(0, 0, days)
	err = s.store.ActivateSubscription(u.ID, expiry, models.SubscriptionActive, p)
	if errors.Is(err, storage.ErrDuplicate) {
		return fmt.Errorf("activate %s with %s: %w", username, p.Reference, ErrAlreadyApplied)
	}
	if err != nil {
		return fmt.Errorf("activate %s: %w", username, err)
	}
	s.logger.Info("subscription activated",
		zap.String("username", username),
		zap.String("expiry", expiry.Format(storage.DateLayout)),
		zap.String("method", p.Method),
		zap.Float64("amount", p.Amount),
	)
	return nil
}

// RecordPayment appends a completed payment without changing the subscription.
func (s *Service) RecordPayment(username string, amount float64, method string) error {
	u, err := s.User(username)
	if err != nil {
		return err
	}
	return s.store.AddPayment(&models.Payment{
		UserID:    u.ID,
		Date:      s.now(),
		Amount:    amount,
		Method:    method,
		Status:    models.PaymentCompleted,
		Reference: uuid.NewString(),
	})
}

// Payments returns the account's payments, newest first.
func (s *Service) Payments(username string) ([]models.Payment, error) {
	u, err := s.User(username)
	if err != nil {
		return nil, err
	}
	return s.store.ListPayments(u.ID)
}

// SetPaymentPending stores a manual payment proof and awaits approval.
func (s *Service) SetPaymentPending(username, proof string) error {
	u, err := s.User(username)
	if err != nil {
		return err
	}
	if err := s.store.SetPaymentProof(u.ID, proof, models.SubscriptionPending); err != nil {
		return err
	}
	s.logger.Info("manual payment submitted", zap.String("username", username), zap.String("proof", proof))
	return nil
}

// PendingApproval is a manual payment waiting for an administrator.
type PendingApproval struct {
	Username string
	Proof    string
	Joined   time.Time
}

// PendingApprovals lists manual payments awaiting approval.
func (s *Service) PendingApprovals() ([]PendingApproval, error) {
	users, err := s.store.ListUsersByStatus(models.SubscriptionPending)
	if err != nil {
		return nil, err
	}
	out := make([]PendingApproval, 0, len(users))
	for _, u := range users {
		out = append(out, PendingApproval{Username: u.Username, Proof: u.PaymentProof, Joined: u.CreatedAt})
	}
	return out, nil
}

// ExpiringWithin lists standard accounts whose subscription ends in the next days days.
func (s *Service) ExpiringWithin(days int) ([]models.User, error) {
	now := s.now()
	return s.store.ListUsersExpiringBetween(now, now.AddDate(0, 0, days))
}

// SeedAdmins grants the admin role to configured accounts that already exist.
func (s *Service) SeedAdmins() error {
	for _, email := range s.opts.AdminEmails {
		email = strings.TrimSpace(email)
		if email == "" {
			continue
		}
		ok, err := s.store.SetRoleByUsername(email, models.RoleAdmin)
		if err != nil {
			return fmt.Errorf("seed admin %s: %w", email, err)
		}
		if ok {
			s.logger.Debug("admin role granted", zap.String("username", email))
		}
	}
	return nil
}

// DataFile returns the path of the account's gym data file.
func (s *Service) DataFile(username string) string {
	return filepath.Join(s.opts.DataDir, storage.FileKey(username)+".json")
}
