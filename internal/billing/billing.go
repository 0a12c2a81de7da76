// Package billing creates and verifies hosted checkout sessions for
// subscription renewals.
package billing

import (
	"context"
	"errors"
)

var (
	// ErrNotConfigured is returned when no payment provider is set up.
	ErrNotConfigured = errors.New("card payments are not configured")
	// ErrNotPaid is returned when a checkout session has not been paid.
	ErrNotPaid = errors.New("checkout session is not paid")
	// ErrProvider wraps failures reported by the payment provider.
	ErrProvider = errors.New("payment provider error")
)

// Provider starts and confirms hosted checkouts.
type Provider interface {
	// CreateCheckout returns the URL the customer is redirected to.
	CreateCheckout(ctx context.Context, username, successURL, cancelURL string) (string, error)
	// VerifyCheckout returns the username a paid session belongs to.
	VerifyCheckout(ctx context.Context, sessionID string) (string, error)
}

// Disabled is the Provider used when card payments are off.
type Disabled struct{}

func (Disabled) CreateCheckout(context.Context, string, string, string) (string, error) {
	return "", ErrNotConfigured
}

func (Disabled) VerifyCheckout(context.Context, string) (string, error) {
	return "", ErrNotConfigured
}
