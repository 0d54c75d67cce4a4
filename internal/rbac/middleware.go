package rbac

import (
	"log/slog"
	"net/http"

	"github.com/hrdesk/hrdesk/internal/platform/httpx"
)

// Middleware wires fine-grained authorization helpers for HTTP handlers.
type Middleware struct {
	Registry *Registry
	Logger   *slog.Logger
}

// RequireAny ensures the current principal has at least one of the required permissions.
func (m Middleware) RequireAny(perms ...Permission) func(http.Handler) http.Handler {
	return m.require(func(p Principal) bool {
		if len(perms) == 0 {
			return true
		}
		for _, perm := range perms {
			if m.Registry.HasAny(p.Roles, perm) {
				return true
			}
		}
		return false
	}, "require any")
}

// RequireAll ensures the current principal has all required permissions.
func (m Middleware) RequireAll(perms ...Permission) func(http.Handler) http.Handler {
	return m.require(func(p Principal) bool {
		for _, perm := range perms {
			if !m.Registry.HasAny(p.Roles, perm) {
				return false
			}
		}
		return true
	}, "require all")
}

// RequireRole ensures the current principal holds one of roles.
func (m Middleware) RequireRole(roles ...Role) func(http.Handler) http.Handler {
	return m.require(func(p Principal) bool {
		for _, role := range roles {
			if p.Roles.Contains(role) {
				return true
			}
		}
		return false
	}, "require role")
}

func (m Middleware) require(check func(Principal) bool, label string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := PrincipalFromContext(r.Context())
			if !ok {
				httpx.Fail(w, http.StatusUnauthorized, "Authentication required")
				return
			}
			if check(principal) {
				next.ServeHTTP(w, r)
				return
			}
			if m.Logger != nil {
				m.Logger.Info("rbac "+label+" denied",
					slog.String("user_id", principal.ID),
					slog.String("path", r.URL.Path))
			}
			httpx.Fail(w, http.StatusForbidden, "Insufficient permissions")
		})
	}
}
