package rbac_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrdesk/hrdesk/internal/rbac"
	"github.com/hrdesk/hrdesk/internal/shared"
)

type outcomeCounter map[rbac.Outcome]int

func (c outcomeCounter) ObserveDecision(o rbac.Outcome) { c[o]++ }

func newGate(t *testing.T) (rbac.Gate, *shared.TokenManager, outcomeCounter) {
	t.Helper()
	tokens, err := shared.NewTokenManager("gate-secret", "hrdesk-test")
	require.NoError(t, err)
	counter := outcomeCounter{}
	return rbac.Gate{Table: rbac.DefaultRouteTable(), Tokens: tokens, Observer: counter}, tokens, counter
}

func issue(t *testing.T, tokens *shared.TokenManager, claims shared.Claims) string {
	t.Helper()
	raw, err := tokens.Issue(claims, time.Hour)
	require.NoError(t, err)
	return raw
}

func echoPrincipal() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := rbac.PrincipalFromContext(r.Context())
		if ok {
			w.Header().Set("X-Principal", p.ID+":"+string(p.Role()))
		}
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestGateRedirectsAnonymousPageToLogin(t *testing.T) {
	gate, _, counter := newGate(t)
	rr := httptest.NewRecorder()
	gate.Handler(echoPrincipal()).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/leave-requests/7?tab=history", nil))

	require.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/login?callbackUrl=%2Fleave-requests%2F7%3Ftab%3Dhistory", rr.Header().Get("Location"))
	assert.Equal(t, 1, counter[rbac.RedirectLogin])
}

func TestGateRejectsAnonymousAPIWithJSON(t *testing.T) {
	gate, _, _ := newGate(t)
	rr := httptest.NewRecorder()
	gate.Handler(echoPrincipal()).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/users/1", nil))

	require.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.JSONEq(t, `{"success":false,"message":"Authentication required"}`, rr.Body.String())
}

func TestGateRedirectsWrongRoleToUnauthorized(t *testing.T) {
	gate, tokens, _ := newGate(t)
	req := httptest.NewRequest(http.MethodGet, "/users", nil)
	req.AddCookie(&http.Cookie{Name: shared.AccessTokenCookie, Value: issue(t, tokens, shared.Claims{ID: "u1", Role: "EMPLOYEE"})})
	rr := httptest.NewRecorder()
	gate.Handler(echoPrincipal()).ServeHTTP(rr, req)

	require.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, rbac.UnauthorizedPath, rr.Header().Get("Location"))
}

func TestGateForbidsWrongRoleOnAPI(t *testing.T) {
	gate, tokens, counter := newGate(t)
	req := httptest.NewRequest(http.MethodPost, "/api/leave-requests/approve", nil)
	req.Header.Set("Authorization", "Bearer "+issue(t, tokens, shared.Claims{ID: "u1", Roles: []string{"EMPLOYEE"}}))
	rr := httptest.NewRecorder()
	gate.Handler(echoPrincipal()).ServeHTTP(rr, req)

	require.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, 1, counter[rbac.RedirectUnauthorized])
}

func TestGateAttachesPrincipal(t *testing.T) {
	gate, tokens, _ := newGate(t)
	req := httptest.NewRequest(http.MethodGet, "/api/leave-requests", nil)
	req.Header.Set("Authorization", "Bearer "+issue(t, tokens, shared.Claims{ID: "m1", Role: "employee", Roles: []string{"MANAGER"}}))
	rr := httptest.NewRecorder()
	gate.Handler(echoPrincipal()).ServeHTTP(rr, req)

	require.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "m1:MANAGER", rr.Header().Get("X-Principal"))
}

func TestGateAttachesPrincipalOnPublicRoutes(t *testing.T) {
	gate, tokens, _ := newGate(t)
	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.AddCookie(&http.Cookie{Name: shared.AccessTokenCookie, Value: issue(t, tokens, shared.Claims{ID: "a1", Role: "ADMIN"})})
	rr := httptest.NewRecorder()
	gate.Handler(echoPrincipal()).ServeHTTP(rr, req)

	require.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "a1:ADMIN", rr.Header().Get("X-Principal"))
}

func TestGateTreatsExpiredTokenAsAbsent(t *testing.T) {
	gate, tokens, _ := newGate(t)
	past := tokens.WithClock(func() time.Time { return time.Now().Add(-48 * time.Hour) })
	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.Header.Set("Authorization", "Bearer "+issue(t, past, shared.Claims{ID: "u1", Role: "ADMIN"}))
	rr := httptest.NewRecorder()
	gate.Handler(echoPrincipal()).ServeHTTP(rr, req)

	require.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Contains(t, rr.Header().Get("Location"), rbac.LoginPath)
}

func TestGateRejectsSessionTokenAsAccess(t *testing.T) {
	gate, tokens, _ := newGate(t)
	req := httptest.NewRequest(http.MethodGet, "/api/leave-requests", nil)
	req.Header.Set("Authorization", "Bearer "+issue(t, tokens, shared.Claims{ID: "u1", Role: "ADMIN", Type: shared.TokenTypeSession}))
	rr := httptest.NewRecorder()
	gate.Handler(echoPrincipal()).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestExtractTokenPrefersHeader(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "bearer header-token")
	req.AddCookie(&http.Cookie{Name: shared.AccessTokenCookie, Value: "cookie-token"})
	assert.Equal(t, "header-token", rbac.ExtractToken(req))

	req.Header.Set("Authorization", "Basic abc")
	assert.Equal(t, "cookie-token", rbac.ExtractToken(req))
}

func TestMiddlewareRequireAny(t *testing.T) {
	mw := rbac.Middleware{Registry: rbac.DefaultRegistry()}
	handler := mw.RequireAny(rbac.PermApproveLeaveRequest)(echoPrincipal())

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	for role, want := range map[rbac.Role]int{
		rbac.RoleEmployee: http.StatusForbidden,
		rbac.RoleManager:  http.StatusNoContent,
		rbac.RoleAdmin:    http.StatusNoContent,
	} {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req = req.WithContext(rbac.ContextWithPrincipal(req.Context(), rbac.Principal{ID: "x", Roles: rbac.RoleSet{role}}))
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		assert.Equal(t, want, rr.Code, role)
	}
}

func TestMiddlewareRequireRole(t *testing.T) {
	mw := rbac.Middleware{Registry: rbac.DefaultRegistry()}
	handler := mw.RequireRole(rbac.RoleAdmin)(echoPrincipal())

	req := httptest.NewRequest(http.MethodDelete, "/", nil)
	req = req.WithContext(rbac.ContextWithPrincipal(req.Context(), rbac.Principal{ID: "m", Roles: rbac.RoleSet{rbac.RoleManager}}))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusForbidden, rr.Code)
}
