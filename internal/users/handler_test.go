package users

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrdesk/hrdesk/internal/platform/httpx"
	"github.com/hrdesk/hrdesk/internal/rbac"
)

func newUsersRouter(t *testing.T, seed ...User) (http.Handler, *memoryRepo) {
	t.Helper()
	svc, repo, _, _ := newTestService(seed...)
	mw := rbac.Middleware{Registry: rbac.DefaultRegistry()}
	handler := NewHandler(nil, svc, mw, httpx.Responder{})
	r := chi.NewRouter()
	r.Route("/api/users", handler.MountRoutes)
	return r, repo
}

func asPrincipal(req *http.Request, p rbac.Principal) *http.Request {
	return req.WithContext(rbac.ContextWithPrincipal(req.Context(), p))
}

func TestHandlerGetUserHidesHash(t *testing.T) {
	seeded := employee
	seeded.PasswordHash = "$2a$secret"
	router, _ := newUsersRouter(t, seeded)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, asPrincipal(httptest.NewRequest(http.MethodGet, "/api/users/emp", nil), manager))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"email":"eve@corp.io"`)
	assert.NotContains(t, rr.Body.String(), "secret")
}

func TestHandlerGetUnknownUser(t *testing.T) {
	router, _ := newUsersRouter(t)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, asPrincipal(httptest.NewRequest(http.MethodGet, "/api/users/missing", nil), admin))

	require.Equal(t, http.StatusNotFound, rr.Code)
	assert.JSONEq(t, `{"success":false,"message":"User not found"}`, rr.Body.String())
}

func TestHandlerDeleteRequiresAdmin(t *testing.T) {
	router, repo := newUsersRouter(t, employee)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, asPrincipal(httptest.NewRequest(http.MethodDelete, "/api/users/emp", nil), manager))
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Len(t, repo.users, 1)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, asPrincipal(httptest.NewRequest(http.MethodDelete, "/api/users/emp", nil), admin))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, repo.users)
}

func TestHandlerUpdateUser(t *testing.T) {
	router, repo := newUsersRouter(t, employee)

	body := strings.NewReader(`{"name":"Eve Adams","department":"Finance"}`)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, asPrincipal(httptest.NewRequest(http.MethodPut, "/api/users/emp", body), manager))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Eve Adams", repo.users["emp"].Name)
	assert.Equal(t, "Finance", repo.users["emp"].Department)
}

func TestHandlerUpdateRejectsRole(t *testing.T) {
	router, _ := newUsersRouter(t, employee)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, asPrincipal(httptest.NewRequest(http.MethodPut, "/api/users/emp", strings.NewReader(`{"role":"ADMIN"}`)), admin))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHandlerListUsers(t *testing.T) {
	router, _ := newUsersRouter(t, employee)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, asPrincipal(httptest.NewRequest(http.MethodGet, "/api/users?role=employee", nil), manager))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"users":[`)
	assert.Contains(t, rr.Body.String(), `"pagination":{"page":1,"perPage":20,"total":1,"totalPages":1}`)
}

func TestHandlerCreateUserValidation(t *testing.T) {
	router, _ := newUsersRouter(t)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, asPrincipal(httptest.NewRequest(http.MethodPost, "/api/users", strings.NewReader(`{"name":"X","email":"bad","password":"longenough","roles":["MANAGER"]}`)), admin))
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "email must be a valid email")
}
