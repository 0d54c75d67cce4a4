package shared

import (
	"errors"

	"github.com/hrdesk/hrdesk/internal/platform/httpx"
)

var (
	// ErrInvalidCredentials indicates login failure. The message is shared by
	// the unknown-user and wrong-password cases.
	ErrInvalidCredentials = httpx.Errorf(httpx.ErrUnauthorized, "Invalid email or password")
	// ErrAccountInactive indicates a deactivated account with valid credentials.
	ErrAccountInactive = httpx.Errorf(httpx.ErrForbidden, "Account is inactive. Please contact an administrator.")
	// ErrNotAuthenticated indicates a protected operation without a principal.
	ErrNotAuthenticated = httpx.Errorf(httpx.ErrUnauthorized, "Authentication required")
	// ErrInsufficientRole indicates the principal lacks a required role or permission.
	ErrInsufficientRole = httpx.Errorf(httpx.ErrForbidden, "Insufficient permissions")
	// ErrIdempotencyConflict indicates a duplicate key.
	ErrIdempotencyConflict = errors.New("idempotent request already processed")
)
