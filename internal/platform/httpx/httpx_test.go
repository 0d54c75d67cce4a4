package httpx

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, StatusFor(Errorf(ErrValidation, "bad")))
	assert.Equal(t, http.StatusUnauthorized, StatusFor(fmt.Errorf("wrapped: %w", ErrUnauthorized)))
	assert.Equal(t, http.StatusForbidden, StatusFor(ErrForbidden))
	assert.Equal(t, http.StatusNotFound, StatusFor(Errorf(ErrNotFound, "user not found")))
	assert.Equal(t, http.StatusConflict, StatusFor(ErrDuplicate))
	assert.Equal(t, http.StatusInternalServerError, StatusFor(errors.New("boom")))
}

func TestErrorfKeepsMessageClean(t *testing.T) {
	err := Errorf(ErrDuplicate, "User with email %s already exists", "a@b.io")
	assert.Equal(t, "User with email a@b.io already exists", err.Error())
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestRespondErrorHidesServerErrors(t *testing.T) {
	rr := httptest.NewRecorder()
	Responder{}.RespondError(rr, httptest.NewRequest(http.MethodGet, "/", nil), errors.New("mongo: connection refused"))
	require.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.JSONEq(t, `{"success":false,"message":"Server error"}`, rr.Body.String())

	rr = httptest.NewRecorder()
	Responder{Expose: true}.RespondError(rr, nil, errors.New("mongo: connection refused"))
	assert.JSONEq(t, `{"success":false,"message":"mongo: connection refused"}`, rr.Body.String())
}

func TestRespondErrorClassified(t *testing.T) {
	rr := httptest.NewRecorder()
	Responder{}.RespondError(rr, nil, Errorf(ErrUnauthorized, "Invalid email or password"))
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.JSONEq(t, `{"success":false,"message":"Invalid email or password"}`, rr.Body.String())
}

type signupInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

func TestDecodeAndValidate(t *testing.T) {
	v := NewValidator()

	var in signupInput
	err := DecodeJSON(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"nope","password":"short"}`)), &in)
	require.NoError(t, err)

	err = Validate(v, in)
	require.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, "email must be a valid email; password must be at least 8 characters", err.Error())

	err = DecodeJSON(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(``)), &in)
	assert.ErrorIs(t, err, ErrValidation)

	err = DecodeJSON(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{`)), &in)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestOKEnvelope(t *testing.T) {
	rr := httptest.NewRecorder()
	OK(rr, http.StatusCreated, Envelope{Message: "created", Data: map[string]int{"n": 1}})
	require.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"success":true,"message":"created","data":{"n":1}}`, rr.Body.String())
}
