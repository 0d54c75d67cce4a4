package reports

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hrdesk/hrdesk/internal/platform/httpx"
	"github.com/hrdesk/hrdesk/internal/rbac"
)

// Handler exposes report endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	rbac      rbac.Middleware
	responder httpx.Responder
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware, responder httpx.Responder) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac, responder: responder}
}

// MountRoutes registers report routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.rbac.RequireAny(rbac.PermViewReports)).Get("/leave-summary", h.leaveSummary)
}

func (h *Handler) leaveSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.LeaveSummary(r.Context())
	if err != nil {
		h.responder.RespondError(w, r, err)
		return
	}
	httpx.OK(w, http.StatusOK, httpx.Envelope{Data: summary})
}
