package auth

import (
	"crypto/rand"
	"encoding/hex"
	"strings"

	"gym-manager/internal/models"

	"golang.org/x/crypto/bcrypt"
)

// HashPassword returns the bcrypt hash of password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword reports whether password matches the bcrypt hash.
func CheckPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// GenerateSessionToken returns a random 256-bit token, hex encoded.
func GenerateSessionToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// DefaultReferralCodes grant a lifetime plan at sign-up.
var DefaultReferralCodes = []string{"VIP2025", "FREE"}

// IsLifetimeReferral reports whether code is one of codes, ignoring case and
// surrounding space.
func IsLifetimeReferral(code string, codes []string) bool {
	code = strings.TrimSpace(code)
	if code == "" {
		return false
	}
	for _, c := range codes {
		if strings.EqualFold(code, c) {
			return true
		}
	}
	return false
}

// CanApprovePayments reports whether the user may approve manual payments.
func CanApprovePayments(u *models.User) bool {
	return u != nil && u.Role == models.RoleAdmin
}
