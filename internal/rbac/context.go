package rbac

import (
	"context"

	"github.com/hrdesk/hrdesk/internal/shared"
)

type principalContextKey struct{}

// ContextWithPrincipal stores the principal in context.
func ContextWithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext extracts the principal from context.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalContextKey{}).(Principal)
	return p, ok
}

// PrincipalFromClaims normalises verified claims into a Principal. Tokens
// carrying a single role string, a role list, or both are all accepted.
func PrincipalFromClaims(c *shared.Claims) (Principal, error) {
	roles, err := NewRoleSet(c.AllRoles()...)
	if err != nil {
		return Principal{}, err
	}
	return Principal{ID: c.ID, Email: c.Email, Name: c.Name, Roles: roles}, nil
}

// ClaimsFor builds token claims for p with both the primary role and the full
// role set populated.
func ClaimsFor(p Principal) shared.Claims {
	return shared.Claims{
		ID:    p.ID,
		Email: p.Email,
		Name:  p.Name,
		Role:  string(p.Roles.Primary()),
		Roles: p.Roles.Strings(),
	}
}
