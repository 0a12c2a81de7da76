package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/api/idtoken"
)

var (
	// ErrGoogleDisabled is returned when no Google client ID is configured.
	ErrGoogleDisabled = errors.New("google sign-in is not configured")
	// ErrNoEmail is returned when a verified token carries no email claim.
	ErrNoEmail = errors.New("token has no verified email")
)

// TokenVerifier turns a third-party ID token into a verified email address.
type TokenVerifier interface {
	VerifyEmail(ctx context.Context, token string) (string, error)
}

// GoogleVerifier validates Google ID tokens issued for a client ID.
type GoogleVerifier struct {
	clientID string
	validate func(ctx context.Context, token, audience string) (*idtoken.Payload, error)
}

// NewGoogleVerifier returns a verifier for clientID. An empty clientID yields
// a verifier that always fails with ErrGoogleDisabled.
func NewGoogleVerifier(clientID string) *GoogleVerifier {
	return &GoogleVerifier{clientID: clientID, validate: idtoken.Validate}
}

// VerifyEmail validates the token signature and audience and returns the email claim.
func (g *GoogleVerifier) VerifyEmail(ctx context.Context, token string) (string, error) {
	if g.clientID == "" {
		return "", ErrGoogleDisabled
	}
	payload, err := g.validate(ctx, token, g.clientID)
	if err != nil {
		return "", fmt.Errorf("validate google token: %w", err)
	}
	email, _ := payload.Claims["email"].(string)
	if verified, ok := payload.Claims["email_verified"].(bool); ok && !verified {
		return "", ErrNoEmail
	}
	email = strings.TrimSpace(email)
	if email == "" {
		return "", ErrNoEmail
	}
	return email, nil
}
