package rbac

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecideTable(t *testing.T) {
	table := DefaultRouteTable()

	tests := []struct {
		name    string
		path    string
		token   bool
		role    Role
		outcome Outcome
	}{
		{"public login", "/login", false, "", Allow},
		{"public auth api", "/api/auth/login", false, "", Allow},
		{"public password api", "/api/password", false, "", Allow},
		{"static asset", "/static/app.js", false, "", Allow},
		{"unauthorized page", "/unauthorized", false, "", Allow},
		{"manager jobs api", "/api/jobs/health", true, RoleManager, RedirectUnauthorized},
		{"manager audit api", "/api/audit/export.csv", true, RoleManager, RedirectUnauthorized},
		{"missing token", "/dashboard", false, "", RedirectLogin},
		{"missing token api", "/api/users/1", false, "", RedirectLogin},
		{"admin anywhere", "/settings/branding", true, RoleAdmin, Allow},
		{"manager users", "/users/42", true, RoleManager, Allow},
		{"employee users", "/users", true, RoleEmployee, RedirectUnauthorized},
		{"employee dashboard", "/dashboard", true, RoleEmployee, Allow},
		{"manager reports", "/reports", true, RoleManager, RedirectUnauthorized},
		{"employee approvals page", "/leave-requests/approvals", true, RoleEmployee, RedirectUnauthorized},
		{"employee leave page", "/leave-requests/new", true, RoleEmployee, Allow},
		{"employee approve api", "/api/leave-requests/approve", true, RoleEmployee, RedirectUnauthorized},
		{"manager deny api", "/api/leave-requests/deny", true, RoleManager, Allow},
		{"employee leave api", "/api/leave-requests/abc", true, RoleEmployee, Allow},
		{"plain prefix match", "/users-export", true, RoleEmployee, RedirectUnauthorized},
		{"unlisted fails open", "/help", true, RoleEmployee, Allow},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := table.Decide(tc.path, tc.token, tc.role)
			assert.Equal(t, tc.outcome, got.Outcome)
		})
	}
}

func TestDecideCallbackCarriesPath(t *testing.T) {
	got := DefaultRouteTable().Decide("/leave-requests/7", false, "")
	require.Equal(t, RedirectLogin, got.Outcome)
	assert.Equal(t, "/leave-requests/7", got.Callback)
}

func TestDecidePublicIgnoresRole(t *testing.T) {
	table := DefaultRouteTable()
	for _, role := range []Role{"", RoleAdmin, RoleManager, RoleEmployee} {
		for _, token := range []bool{false, true} {
			got := table.Decide("/signup", token, role)
			assert.Equal(t, Allow, got.Outcome)
			assert.True(t, got.Public)
		}
	}
}

func TestDecideAdminAlwaysAllowedWithToken(t *testing.T) {
	table := DefaultRouteTable(WithDefaultDeny())
	for _, rule := range table.Rules() {
		assert.Equal(t, Allow, table.Decide(rule.Prefix+"/x", true, RoleAdmin).Outcome, rule.Prefix)
	}
	assert.Equal(t, Allow, table.Decide("/not-listed", true, RoleAdmin).Outcome)
}

func TestDecideDefaultDeny(t *testing.T) {
	table := DefaultRouteTable(WithDefaultDeny())
	assert.Equal(t, RedirectUnauthorized, table.Decide("/help", true, RoleManager).Outcome)
	assert.Equal(t, Allow, table.Decide("/dashboard", true, RoleManager).Outcome)
}

func TestDecideMatchesFirstRule(t *testing.T) {
	table := DefaultRouteTable()
	got := table.Decide("/api/leave-requests/approve", true, RoleManager)
	require.NotNil(t, got.Rule)
	assert.Equal(t, "/api/leave-requests/approve", got.Rule.Prefix)
}

func TestDecideRolesUsesAnyRole(t *testing.T) {
	table := DefaultRouteTable()
	set, err := NewRoleSet("EMPLOYEE", "MANAGER")
	require.NoError(t, err)
	assert.Equal(t, Allow, table.DecideRoles("/users", true, set).Outcome)
}

func TestNewRouteTableRejectsShadowedRule(t *testing.T) {
	_, err := NewRouteTable([]RouteRule{
		{Prefix: "/leave-requests", Roles: []Role{RoleEmployee}},
		{Prefix: "/leave-requests/approvals", Roles: []Role{RoleManager}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "shadowed")
}

func TestNewRouteTableRejectsBadRules(t *testing.T) {
	_, err := NewRouteTable([]RouteRule{{Prefix: "users", Roles: []Role{RoleAdmin}}})
	require.Error(t, err)

	_, err = NewRouteTable([]RouteRule{{Prefix: "/users"}})
	require.Error(t, err)

	_, err = NewRouteTable([]RouteRule{{Prefix: "/users", Roles: []Role{"ROOT"}}})
	require.Error(t, err)
}

func TestWithPublicPrefixes(t *testing.T) {
	table := DefaultRouteTable(WithPublicPrefixes("/open"))
	assert.True(t, table.IsPublic("/open/file"))
	assert.False(t, table.IsPublic("/login"))
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "allow", Allow.String())
	assert.Equal(t, "redirect_login", RedirectLogin.String())
	assert.Equal(t, "redirect_unauthorized", RedirectUnauthorized.String())
}
