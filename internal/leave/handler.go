package leave

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/hrdesk/hrdesk/internal/platform/httpx"
	"github.com/hrdesk/hrdesk/internal/rbac"
	"github.com/hrdesk/hrdesk/internal/shared"
)

// IdempotencyHeader carries the client supplied deduplication key.
const IdempotencyHeader = "Idempotency-Key"

// Handler manages leave request endpoints.
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

// MountRoutes registers leave routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.rbac.RequireAny(rbac.PermViewLeaveRequest, rbac.PermViewAllLeaveRequests)).Get("/", h.list)
	r.With(h.rbac.RequireAny(rbac.PermCreateLeaveRequest)).Post("/", h.create)
	r.With(h.rbac.RequireAny(rbac.PermApproveLeaveRequest)).Post("/approve", h.approve)
	r.With(h.rbac.RequireAny(rbac.PermRejectLeaveRequest)).Post("/deny", h.deny)
	r.Route("/{id}", func(r chi.Router) {
		r.With(h.rbac.RequireAny(rbac.PermViewLeaveRequest, rbac.PermViewAllLeaveRequests)).Get("/", h.get)
		r.With(h.rbac.RequireAny(rbac.PermUpdateLeaveRequest)).Patch("/", h.update)
		r.With(h.rbac.RequireAny(rbac.PermDeleteLeaveRequest)).Delete("/", h.delete)
		r.With(h.rbac.RequireAny(rbac.PermViewLeaveRequest, rbac.PermViewAllLeaveRequests)).Get("/history", h.history)
	})
}

func (h *Handler) principal(w http.ResponseWriter, r *http.Request) (rbac.Principal, bool) {
	p, ok := rbac.PrincipalFromContext(r.Context())
	if !ok {
		h.responder.RespondError(w, r, shared.ErrNotAuthenticated)
	}
	return p, ok
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.principal(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	filter := ListFilter{EmployeeID: q.Get("employeeId")}
	if raw := q.Get("status"); raw != "" {
		status, err := ParseStatus(raw)
		if err != nil {
			h.responder.RespondError(w, r, err)
			return
		}
		filter.Status = status
	}
	items, page, err := h.service.List(r.Context(), actor, filter, shared.ParsePageRequest(r))
	if err != nil {
		h.responder.RespondError(w, r, err)
		return
	}
	httpx.OK(w, http.StatusOK, httpx.Envelope{Data: items, Pagination: page})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.principal(w, r)
	if !ok {
		return
	}
	var in CreateInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		h.responder.RespondError(w, r, err)
		return
	}
	if err := httpx.Validate(h.validate, in); err != nil {
		h.responder.RespondError(w, r, err)
		return
	}
	req, replayed, err := h.service.Create(r.Context(), actor, in, r.Header.Get(IdempotencyHeader))
	if err != nil {
		h.responder.RespondError(w, r, err)
		return
	}
	if replayed {
		httpx.OK(w, http.StatusOK, httpx.Envelope{Message: "Leave request already created", Data: req})
		return
	}
	httpx.OK(w, http.StatusCreated, httpx.Envelope{Message: "Leave request created", Data: req})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.principal(w, r)
	if !ok {
		return
	}
	req, err := h.service.Get(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		h.responder.RespondError(w, r, err)
		return
	}
	httpx.OK(w, http.StatusOK, httpx.Envelope{Data: req})
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.principal(w, r)
	if !ok {
		return
	}
	var in UpdateInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		h.responder.RespondError(w, r, err)
		return
	}
	if err := httpx.Validate(h.validate, in); err != nil {
		h.responder.RespondError(w, r, err)
		return
	}
	req, err := h.service.Update(r.Context(), actor, chi.URLParam(r, "id"), in)
	if err != nil {
		h.responder.RespondError(w, r, err)
		return
	}
	httpx.OK(w, http.StatusOK, httpx.Envelope{Message: "Leave request updated", Data: req})
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.principal(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), actor, chi.URLParam(r, "id")); err != nil {
		h.responder.RespondError(w, r, err)
		return
	}
	httpx.OK(w, http.StatusOK, httpx.Envelope{Message: "Leave request deleted"})
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.principal(w, r)
	if !ok {
		return
	}
	logs, err := h.service.History(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		h.responder.RespondError(w, r, err)
		return
	}
	httpx.OK(w, http.StatusOK, httpx.Envelope{Data: logs})
}

type decisionRequest struct {
	ID   string `json:"id" validate:"required"`
	Note string `json:"note" validate:"max=1000"`
}

func (h *Handler) approve(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, h.service.Approve, "Leave request approved")
}

func (h *Handler) deny(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, h.service.Deny, "Leave request denied")
}

type decideFunc func(ctx context.Context, actor rbac.Principal, id, note string) (Request, error)

func (h *Handler) decide(w http.ResponseWriter, r *http.Request, fn decideFunc, message string) {
	actor, ok := h.principal(w, r)
	if !ok {
		return
	}
	var in decisionRequest
	if err := httpx.DecodeJSON(r, &in); err != nil {
		h.responder.RespondError(w, r, err)
		return
	}
	if err := httpx.Validate(h.validate, in); err != nil {
		h.responder.RespondError(w, r, err)
		return
	}
	req, err := fn(r.Context(), actor, in.ID, in.Note)
	if err != nil {
		h.responder.RespondError(w, r, err)
		return
	}
	h.logger.Info("leave request decided",
		slog.String("leave_id", req.ID),
		slog.String("status", string(req.Status)),
		slog.String("approver_id", actor.ID))
	httpx.OK(w, http.StatusOK, httpx.Envelope{Message: message, Data: req})
}
