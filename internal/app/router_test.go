package app

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrdesk/hrdesk/internal/rbac"
	"github.com/hrdesk/hrdesk/internal/shared"
)

func testRouter(t *testing.T, checks map[string]HealthCheck) (http.Handler, *shared.TokenManager) {
	t.Helper()
	tokens, err := shared.NewTokenManager("router-secret", "hrdesk-test")
	require.NoError(t, err)
	cfg := &Config{AppEnv: "test", RateLimitPerMinute: 1000, AuthRateLimitPerMinute: 2}
	return NewRouter(RouterParams{
		Config:       cfg,
		Gate:         rbac.Gate{Table: rbac.DefaultRouteTable(), Tokens: tokens},
		HealthChecks: checks,
	}), tokens
}

func TestHealthz(t *testing.T) {
	router, _ := testRouter(t, map[string]HealthCheck{
		"mongo": func(context.Context) error { return nil },
	})
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok","checks":{"mongo":"ok"}}`, rr.Body.String())
}

func TestHealthzDegraded(t *testing.T) {
	router, _ := testRouter(t, map[string]HealthCheck{
		"redis": func(context.Context) error { return errors.New("connection refused") },
	})
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Contains(t, rr.Body.String(), "connection refused")
}

func TestPublicPageServesShell(t *testing.T) {
	router, _ := testRouter(t, nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/login", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `<div id="root">`)
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rr.Header().Get("X-Frame-Options"))
}

func TestProtectedPageRedirectsAnonymous(t *testing.T) {
	router, _ := testRouter(t, nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/leave-requests/new", nil))
	require.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/login?callbackUrl=%2Fleave-requests%2Fnew", rr.Header().Get("Location"))
}

func TestProtectedPageServesShellForRole(t *testing.T) {
	router, tokens := testRouter(t, nil)
	raw, err := tokens.Issue(shared.Claims{ID: "u1", Role: "MANAGER"}, time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/users/42", nil)
	req.AddCookie(&http.Cookie{Name: shared.AccessTokenCookie, Value: raw})
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)

	req = httptest.NewRequest(http.MethodGet, "/settings", nil)
	req.AddCookie(&http.Cookie{Name: shared.AccessTokenCookie, Value: raw})
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, rbac.UnauthorizedPath, rr.Header().Get("Location"))
}

func TestUnknownAPIRouteIsJSON(t *testing.T) {
	router, tokens := testRouter(t, nil)
	raw, err := tokens.Issue(shared.Claims{ID: "u1", Role: "ADMIN"}, time.Hour)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/api/nothing-here", nil)
	req.Header.Set("Authorization", "Bearer "+raw)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusNotFound, rr.Code)
	assert.JSONEq(t, `{"success":false,"message":"Not found"}`, rr.Body.String())
}

func TestStaticAssetsAreCached(t *testing.T) {
	router, _ := testRouter(t, nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/static/app.css", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "public, max-age=3600", rr.Header().Get("Cache-Control"))
	assert.True(t, strings.HasPrefix(rr.Header().Get("Content-Type"), "text/css"))
}

func TestAuthRateLimit(t *testing.T) {
	limited := AuthRateLimit(&Config{AuthRateLimitPerMinute: 2})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
		req.RemoteAddr = "192.0.2.1:1234"
		rr := httptest.NewRecorder()
		limited.ServeHTTP(rr, req)
		codes = append(codes, rr.Code)
	}
	assert.Equal(t, []int{http.StatusNoContent, http.StatusNoContent, http.StatusTooManyRequests}, codes)
}
