// Package audithttp serves the audit log to administrators.
package audithttp

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hrdesk/hrdesk/internal/audit"
	"github.com/hrdesk/hrdesk/internal/platform/httpx"
	"github.com/hrdesk/hrdesk/internal/rbac"
	"github.com/hrdesk/hrdesk/internal/shared"
)

const (
	dateLayout       = "2006-01-02"
	defaultDateRange = 7 * 24 * time.Hour
	maxDateRange     = 90 * 24 * time.Hour
	historyLimit     = 50
)

// TimelineService defines the business contract for timeline data.
type TimelineService interface {
	Timeline(ctx context.Context, filters audit.TimelineFilters) (audit.Result, error)
	Export(ctx context.Context, filters audit.TimelineFilters) ([]audit.Entry, error)
}

// EntityHistory lists the latest entries for one record.
type EntityHistory interface {
	ListAudit(ctx context.Context, entity, entityID string, limit int) ([]shared.AuditLog, error)
}

// Handler serves audit endpoints.
type Handler struct {
	logger    *slog.Logger
	service   TimelineService
	history   EntityHistory
	rbac      rbac.Middleware
	responder httpx.Responder
	now       func() time.Time
}

// NewHandler builds an audit Handler.
func NewHandler(logger *slog.Logger, service TimelineService, history EntityHistory, mw rbac.Middleware, responder httpx.Responder) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:    logger,
		service:   service,
		history:   history,
		rbac:      mw,
		responder: responder,
		now:       time.Now,
	}
}

func (h *Handler) handleTimeline(w http.ResponseWriter, r *http.Request) {
	filters, err := h.parseFilters(r)
	if err != nil {
		h.responder.RespondError(w, r, err)
		return
	}
	result, err := h.service.Timeline(r.Context(), filters)
	if err != nil {
		h.responder.RespondError(w, r, err)
		return
	}
	entries := result.Entries
	if entries == nil {
		entries = []audit.Entry{}
	}
	httpx.OK(w, http.StatusOK, httpx.Envelope{Data: entries, Pagination: result.Paging})
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	filters, err := h.parseFilters(r)
	if err != nil {
		h.responder.RespondError(w, r, err)
		return
	}
	entries, err := h.service.Export(r.Context(), filters)
	if err != nil {
		h.responder.RespondError(w, r, err)
		return
	}
	body, err := audit.WriteCSV(entries)
	if err != nil {
		h.responder.RespondError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="audit-timeline.csv"`)
	if _, err := w.Write(body); err != nil {
		h.logger.Warn("write csv", slog.Any("error", err))
	}
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		httpx.Fail(w, http.StatusNotImplemented, "Audit history unavailable")
		return
	}
	entity := strings.TrimSpace(chi.URLParam(r, "entity"))
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	logs, err := h.history.ListAudit(r.Context(), entity, id, historyLimit)
	if err != nil {
		h.responder.RespondError(w, r, err)
		return
	}
	entries := make([]audit.Entry, 0, len(logs))
	for _, l := range logs {
		entries = append(entries, audit.Entry{At: l.At, ActorID: l.ActorID, Action: l.Action, Entity: l.Entity, EntityID: l.EntityID, Meta: l.Meta})
	}
	httpx.OK(w, http.StatusOK, httpx.Envelope{Data: entries})
}

// parseFilters reads from/to as inclusive dates; the returned To is the
// start of the following day.
func (h *Handler) parseFilters(r *http.Request) (audit.TimelineFilters, error) {
	q := r.URL.Query()
	now := h.now().UTC()

	toStr := strings.TrimSpace(q.Get("to"))
	if toStr == "" {
		toStr = now.Format(dateLayout)
	}
	toDate, err := time.Parse(dateLayout, toStr)
	if err != nil {
		return audit.TimelineFilters{}, httpx.Errorf(httpx.ErrValidation, "to must be a YYYY-MM-DD date")
	}
	fromStr := strings.TrimSpace(q.Get("from"))
	if fromStr == "" {
		fromStr = toDate.Add(-defaultDateRange).Format(dateLayout)
	}
	fromDate, err := time.Parse(dateLayout, fromStr)
	if err != nil {
		return audit.TimelineFilters{}, httpx.Errorf(httpx.ErrValidation, "from must be a YYYY-MM-DD date")
	}
	if fromDate.After(toDate) {
		return audit.TimelineFilters{}, httpx.Errorf(httpx.ErrValidation, "from must not be after to")
	}
	if toDate.Sub(fromDate) > maxDateRange {
		return audit.TimelineFilters{}, httpx.Errorf(httpx.ErrValidation, "date range must not exceed 90 days")
	}

	page, err := positiveInt(q.Get("page"), 1, "page")
	if err != nil {
		return audit.TimelineFilters{}, err
	}
	if page > audit.MaxPage {
		return audit.TimelineFilters{}, httpx.Errorf(httpx.ErrValidation, "page must not exceed %d", audit.MaxPage)
	}
	pageSize, err := positiveInt(q.Get("pageSize"), 0, "pageSize")
	if err != nil {
		return audit.TimelineFilters{}, err
	}

	return audit.TimelineFilters{
		From:     fromDate,
		To:       toDate.Add(24 * time.Hour),
		Actor:    strings.TrimSpace(q.Get("actor")),
		Entity:   strings.TrimSpace(q.Get("entity")),
		Action:   strings.TrimSpace(q.Get("action")),
		Page:     page,
		PageSize: pageSize,
	}, nil
}

func positiveInt(raw string, fallback int, field string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return 0, httpx.Errorf(httpx.ErrValidation, "%s must be a positive integer", field)
	}
	return v, nil
}
