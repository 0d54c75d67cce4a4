package rbac_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrdesk/hrdesk/internal/rbac"
)

func permissionsRouter() http.Handler {
	registry := rbac.DefaultRegistry()
	h := rbac.NewPermissionsHandler(nil, registry, rbac.Middleware{Registry: registry})
	r := chi.NewRouter()
	h.MountRoutes(r)
	return r
}

func as(req *http.Request, roles ...rbac.Role) *http.Request {
	return req.WithContext(rbac.ContextWithPrincipal(req.Context(), rbac.Principal{ID: "p1", Roles: rbac.RoleSet(roles)}))
}

func TestListRolesForManager(t *testing.T) {
	rr := httptest.NewRecorder()
	permissionsRouter().ServeHTTP(rr, as(httptest.NewRequest(http.MethodGet, "/roles", nil), rbac.RoleManager))
	require.Equal(t, http.StatusOK, rr.Code)

	var body struct {
		Success bool `json:"success"`
		Data    []struct {
			Role        rbac.Role         `json:"role"`
			Permissions []rbac.Permission `json:"permissions"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.True(t, body.Success)
	require.Len(t, body.Data, 3)
	for _, row := range body.Data {
		if row.Role == rbac.RoleAdmin {
			assert.Equal(t, rbac.AllPermissions(), row.Permissions)
		}
	}
}

func TestListRolesForbiddenForEmployee(t *testing.T) {
	rr := httptest.NewRecorder()
	permissionsRouter().ServeHTTP(rr, as(httptest.NewRequest(http.MethodGet, "/roles", nil), rbac.RoleEmployee))
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestMyPermissions(t *testing.T) {
	rr := httptest.NewRecorder()
	permissionsRouter().ServeHTTP(rr, as(httptest.NewRequest(http.MethodGet, "/permissions/me", nil), rbac.RoleEmployee))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"role":"EMPLOYEE"`)
	assert.Contains(t, rr.Body.String(), string(rbac.PermCreateLeaveRequest))

	rr = httptest.NewRecorder()
	permissionsRouter().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/permissions/me", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}
