package users

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/hrdesk/hrdesk/internal/platform/httpx"
	"github.com/hrdesk/hrdesk/internal/rbac"
	"github.com/hrdesk/hrdesk/internal/shared"
)

// Handler manages user management endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	rbac      rbac.Middleware
	responder httpx.Responder
	validate  *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware, responder httpx.Responder) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, rbac: rbac, responder: responder, validate: httpx.NewValidator()}
}

// MountRoutes registers user routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.rbac.RequireAny(rbac.PermViewAllUsers)).Get("/", h.listUsers)
	r.With(h.rbac.RequireAny(rbac.PermCreateUser)).Post("/", h.createUser)
	r.Route("/{id}", func(r chi.Router) {
		r.With(h.rbac.RequireAny(rbac.PermViewAllUsers)).Get("/", h.getUser)
		r.With(h.rbac.RequireAny(rbac.PermUpdateUser)).Put("/", h.updateUser)
		r.With(h.rbac.RequireAny(rbac.PermDeleteUser)).Delete("/", h.deleteUser)
	})
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := ListFilter{Department: q.Get("department"), Query: q.Get("q")}
	if raw := q.Get("role"); raw != "" {
		role, err := rbac.ParseRole(raw)
		if err != nil {
			h.responder.RespondError(w, r, err)
			return
		}
		filter.Role = role
	}
	if raw := q.Get("active"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			h.responder.RespondError(w, r, httpx.Errorf(httpx.ErrValidation, "active must be true or false"))
			return
		}
		filter.Active = &active
	}
	items, page, err := h.service.List(r.Context(), filter, shared.ParsePageRequest(r))
	if err != nil {
		h.responder.RespondError(w, r, err)
		return
	}
	httpx.OK(w, http.StatusOK, httpx.Envelope{Users: items, Pagination: page})
}

type createUserRequest struct {
	Name       string   `json:"name" validate:"required,max=120"`
	Email      string   `json:"email" validate:"required,email"`
	Password   string   `json:"password" validate:"required,min=8,max=72"`
	Roles      []string `json:"roles" validate:"required,min=1"`
	Department string   `json:"department" validate:"max=120"`
	ManagerID  string   `json:"managerId"`
}

func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.responder.RespondError(w, r, err)
		return
	}
	if err := httpx.Validate(h.validate, req); err != nil {
		h.responder.RespondError(w, r, err)
		return
	}
	roles, err := rbac.NewRoleSet(req.Roles...)
	if err != nil {
		h.responder.RespondError(w, r, err)
		return
	}
	actor, _ := rbac.PrincipalFromContext(r.Context())
	user, err := h.service.Create(r.Context(), actor.ID, CreateInput{
		Name:       req.Name,
		Email:      req.Email,
		Password:   req.Password,
		Roles:      roles,
		Department: req.Department,
		ManagerID:  req.ManagerID,
	})
	if err != nil {
		h.responder.RespondError(w, r, err)
		return
	}
	httpx.OK(w, http.StatusCreated, httpx.Envelope{Message: "User created", User: user})
}

func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.responder.RespondError(w, r, err)
		return
	}
	httpx.OK(w, http.StatusOK, httpx.Envelope{User: user})
}

func (h *Handler) updateUser(w http.ResponseWriter, r *http.Request) {
	var req UpdateInput
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.responder.RespondError(w, r, err)
		return
	}
	if err := httpx.Validate(h.validate, req); err != nil {
		h.responder.RespondError(w, r, err)
		return
	}
	actor, _ := rbac.PrincipalFromContext(r.Context())
	user, err := h.service.Update(r.Context(), actor, chi.URLParam(r, "id"), req)
	if err != nil {
		h.responder.RespondError(w, r, err)
		return
	}
	httpx.OK(w, http.StatusOK, httpx.Envelope{Message: "User updated", User: user})
}

func (h *Handler) deleteUser(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.PrincipalFromContext(r.Context())
	if err := h.service.Delete(r.Context(), actor, chi.URLParam(r, "id")); err != nil {
		h.responder.RespondError(w, r, err)
		return
	}
	h.logger.Info("user deleted", slog.String("user_id", chi.URLParam(r, "id")), slog.String("actor_id", actor.ID))
	httpx.OK(w, http.StatusOK, httpx.Envelope{Message: "User deleted"})
}
