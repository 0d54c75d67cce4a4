package users

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/hrdesk/hrdesk/internal/platform/httpx"
)

// MinPasswordLength is enforced on signup, reset and admin creation.
const MinPasswordLength = 8

// bcrypt rejects longer inputs.
const maxPasswordLength = 72

// HashCost is the bcrypt work factor used for new hashes.
var HashCost = bcrypt.DefaultCost

// HashPassword validates and hashes a plaintext password.
func HashPassword(plain string) (string, error) {
	if len(plain) < MinPasswordLength {
		return "", httpx.Errorf(httpx.ErrValidation, "Password must be at least %d characters", MinPasswordLength)
	}
	if len(plain) > maxPasswordLength {
		return "", httpx.Errorf(httpx.ErrValidation, "Password must be at most %d bytes", maxPasswordLength)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), HashCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword reports whether plain matches hash. Only a mismatch yields
// false with a nil error.
func CheckPassword(hash, plain string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	return false, err
}
