package models

import "time"

// Plan is the billing plan of an account.
type Plan string

const (
	PlanStandard     Plan = "standard"
	PlanFreeLifetime Plan = "free_lifetime"
)

// SubscriptionStatus tracks the manual payment workflow. It is empty until
// the account submits a payment proof.
type SubscriptionStatus string

const (
	SubscriptionNone    SubscriptionStatus = ""
	SubscriptionPending SubscriptionStatus = "pending"
	SubscriptionActive  SubscriptionStatus = "active"
)

// Role is the authorization role stored on the account.
type Role string

const (
	RoleMember Role = "member"
	RoleAdmin  Role = "admin"
)

// User represents an account that owns one gym.
type User struct {
	ID                 int64              `json:"id"`
	Username           string             `json:"username"`
	PasswordHash       string             `json:"-"`
	CreatedAt          time.Time          `json:"created_at"`
	ReferralCode       string             `json:"referral_code,omitempty"`
	Plan               Plan               `json:"plan"`
	SubscriptionExpiry *time.Time         `json:"subscription_expiry,omitempty"`
	SubscriptionStatus SubscriptionStatus `json:"subscription_status,omitempty"`
	PaymentProof       string             `json:"payment_proof,omitempty"`
	Role               Role               `json:"role"`
}

// Payment is a subscription payment made by an account.
type Payment struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Date      time.Time `json:"date"`
	Amount    float64   `json:"amount"`
	Method    string    `json:"method"`
	Status    string    `json:"status"`
	Reference string    `json:"reference,omitempty"`
}

// PaymentCompleted is the status recorded for settled payments.
const PaymentCompleted = "Completed"

// Session represents a user session.
type Session struct {
	Token     string    `json:"token"`
	UserID    int64     `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
}
