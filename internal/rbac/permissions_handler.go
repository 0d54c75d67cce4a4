package rbac

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hrdesk/hrdesk/internal/platform/httpx"
)

// PermissionsHandler exposes the role and permission tables.
type PermissionsHandler struct {
	logger   *slog.Logger
	registry *Registry
	rbac     Middleware
}

// NewPermissionsHandler builds PermissionsHandler instance.
func NewPermissionsHandler(logger *slog.Logger, registry *Registry, rbac Middleware) *PermissionsHandler {
	return &PermissionsHandler{logger: logger, registry: registry, rbac: rbac}
}

// MountRoutes registers permission routes under /api.
func (h *PermissionsHandler) MountRoutes(r chi.Router) {
	r.With(h.rbac.RequireAny(PermManageRoles, PermViewAllUsers)).Get("/roles", h.listRoles)
	r.Get("/permissions/me", h.myPermissions)
}

type roleView struct {
	Role        Role         `json:"role"`
	Permissions []Permission `json:"permissions"`
}

func (h *PermissionsHandler) listRoles(w http.ResponseWriter, r *http.Request) {
	roles := h.registry.Roles()
	out := make([]roleView, 0, len(roles))
	for _, role := range roles {
		out = append(out, roleView{Role: role, Permissions: h.registry.PermissionsOf(role)})
	}
	httpx.OK(w, http.StatusOK, httpx.Envelope{Data: out})
}

func (h *PermissionsHandler) myPermissions(w http.ResponseWriter, r *http.Request) {
	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		httpx.Fail(w, http.StatusUnauthorized, "Authentication required")
		return
	}
	httpx.OK(w, http.StatusOK, httpx.Envelope{Data: map[string]any{
		"role":        principal.Role(),
		"roles":       principal.Roles,
		"permissions": h.registry.PermissionsOfSet(principal.Roles),
	}})
}
