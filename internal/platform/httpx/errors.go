// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
)

// Sentinel errors for domain layer.
var (
	ErrNotFound     = errors.New("resource not found")
	ErrDuplicate    = errors.New("duplicate entry")
	ErrValidation   = errors.New("validation failed")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
)

// GenericServerError is the message returned for unclassified failures when
// error detail must not leak.
const GenericServerError = "Server error"

// StatusFor maps a domain error onto an HTTP status code.
func StatusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrDuplicate):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Responder writes error envelopes. Expose controls whether the text of
// unclassified errors reaches the client.
type Responder struct {
	Expose bool
	Logger *slog.Logger
}

// RespondError maps domain errors to HTTP responses.
func (rs Responder) RespondError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	if status != http.StatusInternalServerError {
		Fail(w, status, err.Error())
		return
	}
	if rs.Logger != nil {
		attrs := []any{slog.Any("error", err)}
		if r != nil {
			attrs = append(attrs, slog.String("method", r.Method), slog.String("path", r.URL.Path))
		}
		rs.Logger.Error("request failed", attrs...)
	}
	message := GenericServerError
	if rs.Expose {
		message = err.Error()
	}
	Fail(w, status, message)
}

// Error pairs a client-facing message with one of the sentinel kinds so that
// errors.Is keeps working while the message stays free of the kind prefix.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Kind }

// Errorf builds an *Error of the given kind.
func Errorf(kind error, format string, args ...any) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}
