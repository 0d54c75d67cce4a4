package leave

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/hrdesk/hrdesk/internal/platform/httpx"
	"github.com/hrdesk/hrdesk/internal/rbac"
	"github.com/hrdesk/hrdesk/internal/shared"
)

// RepositoryPort defines data access methods for leave requests.
type RepositoryPort interface {
	List(ctx context.Context, filter ListFilter, page shared.PageRequest) ([]Request, int64, error)
	Get(ctx context.Context, id string) (Request, error)
	Insert(ctx context.Context, req Request) (Request, error)
	Update(ctx context.Context, id string, patch Patch) (Request, error)
	Decide(ctx context.Context, id string, d Decision) (Request, error)
	Delete(ctx context.Context, id string) error
	Summarize(ctx context.Context) (Summary, error)
}

// ApprovalStore keeps the decision trail of a request.
type ApprovalStore interface {
	Record(ctx context.Context, log shared.ApprovalLog) error
	List(ctx context.Context, module, ref string) ([]shared.ApprovalLog, error)
	EnsureSubmit(ctx context.Context, module, ref, actorID, note string) error
}

// IdempotencyStore deduplicates create calls.
type IdempotencyStore interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Bind(ctx context.Context, key, module, refID string) error
	Lookup(ctx context.Context, key, module string) (string, error)
	Delete(ctx context.Context, key, module string) error
}

// Notifier delivers leave events to people.
type Notifier interface {
	LeaveSubmitted(ctx context.Context, req Request) error
	LeaveDecided(ctx context.Context, req Request) error
}

// Dependencies groups the optional collaborators of Service.
type Dependencies struct {
	Approvals   ApprovalStore
	Idempotency IdempotencyStore
	Audit       shared.AuditRecorder
	Notifier    Notifier
	Logger      *slog.Logger
}

// Service handles leave request business logic.
type Service struct {
	repo      RepositoryPort
	registry  *rbac.Registry
	approvals ApprovalStore
	idem      IdempotencyStore
	audit     shared.AuditRecorder
	notifier  Notifier
	logger    *slog.Logger
	now       func() time.Time
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, registry *rbac.Registry, deps Dependencies) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:      repo,
		registry:  registry,
		approvals: deps.Approvals,
		idem:      deps.Idempotency,
		audit:     deps.Audit,
		notifier:  deps.Notifier,
		logger:    logger,
		now:       time.Now,
	}
}

// ErrKeyInFlight is returned when an Idempotency-Key is reused before the
// first request finished.
var ErrKeyInFlight = httpx.Errorf(httpx.ErrDuplicate, "A request with this Idempotency-Key is already being processed")

// Create files a request for actor. A repeated idempotency key returns the
// request created the first time and replayed=true.
func (s *Service) Create(ctx context.Context, actor rbac.Principal, in CreateInput, idemKey string) (req Request, replayed bool, err error) {
	draft, err := s.buildRequest(actor, in)
	if err != nil {
		return Request{}, false, err
	}

	idemKey = strings.TrimSpace(idemKey)
	if idemKey != "" && s.idem != nil {
		scoped := actor.ID + ":" + idemKey
		if err := s.idem.CheckAndInsert(ctx, scoped, Module); err != nil {
			if !errors.Is(err, shared.ErrIdempotencyConflict) {
				return Request{}, false, err
			}
			ref, err := s.idem.Lookup(ctx, scoped, Module)
			if err != nil {
				return Request{}, false, err
			}
			if ref == "" {
				return Request{}, false, ErrKeyInFlight
			}
			existing, err := s.repo.Get(ctx, ref)
			return existing, err == nil, err
		}
		defer func() {
			if err != nil {
				if delErr := s.idem.Delete(ctx, scoped, Module); delErr != nil {
					s.logger.Warn("release idempotency key", slog.Any("error", delErr))
				}
				return
			}
			if bindErr := s.idem.Bind(ctx, scoped, Module, req.ID); bindErr != nil {
				s.logger.Warn("bind idempotency key", slog.String("leave_id", req.ID), slog.Any("error", bindErr))
			}
		}()
	}

	req, err = s.repo.Insert(ctx, draft)
	if err != nil {
		return Request{}, false, err
	}
	s.record(ctx, actor.ID, "leave.create", req.ID, map[string]any{"status": req.Status, "days": req.Days()})
	if req.Status == StatusPending {
		s.submitted(ctx, actor.ID, req)
	}
	return req, false, nil
}

func (s *Service) buildRequest(actor rbac.Principal, in CreateInput) (Request, error) {
	kind, err := ParseType(in.Type)
	if err != nil {
		return Request{}, err
	}
	status := StatusPending
	if strings.TrimSpace(in.Status) != "" {
		status, err = ParseStatus(in.Status)
		if err != nil {
			return Request{}, err
		}
		if status.Decided() {
			return Request{}, httpx.Errorf(httpx.ErrValidation, "status must be DRAFT or PENDING")
		}
	}
	start, err := parseDate("startDate", in.StartDate)
	if err != nil {
		return Request{}, err
	}
	end, err := parseDate("endDate", in.EndDate)
	if err != nil {
		return Request{}, err
	}
	if err := checkRange(start, end); err != nil {
		return Request{}, err
	}
	return Request{
		EmployeeID: actor.ID,
		Type:       kind,
		Status:     status,
		StartDate:  start,
		EndDate:    end,
		Reason:     strings.TrimSpace(in.Reason),
	}, nil
}

// Get returns a request visible to actor.
func (s *Service) Get(ctx context.Context, actor rbac.Principal, id string) (Request, error) {
	req, err := s.repo.Get(ctx, id)
	if err != nil {
		return Request{}, err
	}
	if !s.canViewAll(actor) && req.EmployeeID != actor.ID {
		return Request{}, shared.ErrInsufficientRole
	}
	return req, nil
}

// List returns a page of requests. Callers without VIEW_ALL_LEAVE_REQUESTS
// only see their own.
func (s *Service) List(ctx context.Context, actor rbac.Principal, filter ListFilter, page shared.PageRequest) ([]Request, shared.Pagination, error) {
	if !s.canViewAll(actor) {
		filter.EmployeeID = actor.ID
	}
	items, total, err := s.repo.List(ctx, filter, page)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return items, shared.NewPagination(page, total), nil
}

// Update edits an undecided request owned by actor, or any undecided request
// when actor can view all requests.
func (s *Service) Update(ctx context.Context, actor rbac.Principal, id string, in UpdateInput) (Request, error) {
	current, err := s.Get(ctx, actor, id)
	if err != nil {
		return Request{}, err
	}
	if current.Status.Decided() {
		return Request{}, ErrDecided
	}

	var patch Patch
	start, end := current.StartDate, current.EndDate
	if in.Type != nil {
		kind, err := ParseType(*in.Type)
		if err != nil {
			return Request{}, err
		}
		patch.Type = &kind
	}
	if in.StartDate != nil {
		if start, err = parseDate("startDate", *in.StartDate); err != nil {
			return Request{}, err
		}
		patch.StartDate = &start
	}
	if in.EndDate != nil {
		if end, err = parseDate("endDate", *in.EndDate); err != nil {
			return Request{}, err
		}
		patch.EndDate = &end
	}
	if err := checkRange(start, end); err != nil {
		return Request{}, err
	}
	if in.Reason != nil {
		reason := strings.TrimSpace(*in.Reason)
		patch.Reason = &reason
	}
	if in.Status != nil {
		status, err := ParseStatus(*in.Status)
		if err != nil {
			return Request{}, err
		}
		if status.Decided() {
			return Request{}, httpx.Errorf(httpx.ErrValidation, "Use approve or deny to decide a leave request")
		}
		patch.Status = &status
	}

	updated, err := s.repo.Update(ctx, id, patch)
	if err != nil {
		return Request{}, err
	}
	s.record(ctx, actor.ID, "leave.update", id, nil)
	if current.Status == StatusDraft && updated.Status == StatusPending {
		s.submitted(ctx, actor.ID, updated)
	}
	return updated, nil
}

// Delete removes a request. Only its owner or an ADMIN may delete it.
func (s *Service) Delete(ctx context.Context, actor rbac.Principal, id string) error {
	req, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if req.EmployeeID != actor.ID && !actor.IsAdmin() {
		return shared.ErrInsufficientRole
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.record(ctx, actor.ID, "leave.delete", id, nil)
	return nil
}

// Approve marks the request APPROVED with actor as approver.
func (s *Service) Approve(ctx context.Context, actor rbac.Principal, id, note string) (Request, error) {
	return s.decide(ctx, actor, id, note, StatusApproved, rbac.PermApproveLeaveRequest, shared.ApprovalApprove)
}

// Deny marks the request REJECTED with actor as approver.
func (s *Service) Deny(ctx context.Context, actor rbac.Principal, id, note string) (Request, error) {
	return s.decide(ctx, actor, id, note, StatusRejected, rbac.PermRejectLeaveRequest, shared.ApprovalReject)
}

func (s *Service) decide(ctx context.Context, actor rbac.Principal, id, note string, status Status, perm rbac.Permission, action shared.ApprovalAction) (Request, error) {
	if actor.ID == "" {
		return Request{}, shared.ErrNotAuthenticated
	}
	if !s.registry.HasAny(actor.Roles, perm) {
		return Request{}, shared.ErrInsufficientRole
	}
	note = strings.TrimSpace(note)
	req, err := s.repo.Decide(ctx, id, Decision{Status: status, ApproverID: actor.ID, Note: note, At: s.now()})
	if err != nil {
		return Request{}, err
	}
	if s.approvals != nil {
		if err := s.approvals.Record(ctx, shared.ApprovalLog{Module: Module, RefID: id, ActorID: actor.ID, Action: action, Note: note}); err != nil {
			s.logger.Warn("record leave decision", slog.String("leave_id", id), slog.Any("error", err))
		}
	}
	s.record(ctx, actor.ID, "leave."+strings.ToLower(string(action)), id, map[string]any{"status": status})
	if s.notifier != nil {
		if err := s.notifier.LeaveDecided(ctx, req); err != nil {
			s.logger.Warn("notify leave decision", slog.String("leave_id", id), slog.Any("error", err))
		}
	}
	return req, nil
}

// History returns the decision trail of a request visible to actor.
func (s *Service) History(ctx context.Context, actor rbac.Principal, id string) ([]shared.ApprovalLog, error) {
	if _, err := s.Get(ctx, actor, id); err != nil {
		return nil, err
	}
	if s.approvals == nil {
		return []shared.ApprovalLog{}, nil
	}
	logs, err := s.approvals.List(ctx, Module, id)
	if err != nil {
		return nil, err
	}
	if logs == nil {
		logs = []shared.ApprovalLog{}
	}
	return logs, nil
}

// Summarize aggregates all requests by status and type.
func (s *Service) Summarize(ctx context.Context) (Summary, error) {
	return s.repo.Summarize(ctx)
}

func (s *Service) canViewAll(actor rbac.Principal) bool {
	return s.registry.HasAny(actor.Roles, rbac.PermViewAllLeaveRequests)
}

func (s *Service) submitted(ctx context.Context, actorID string, req Request) {
	if s.approvals != nil {
		if err := s.approvals.EnsureSubmit(ctx, Module, req.ID, actorID, req.Reason); err != nil {
			s.logger.Warn("record leave submission", slog.String("leave_id", req.ID), slog.Any("error", err))
		}
	}
	if s.notifier != nil {
		if err := s.notifier.LeaveSubmitted(ctx, req); err != nil {
			s.logger.Warn("notify leave submission", slog.String("leave_id", req.ID), slog.Any("error", err))
		}
	}
}

func (s *Service) record(ctx context.Context, actorID, action, id string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{ActorID: actorID, Action: action, Entity: Module, EntityID: id, Meta: meta}); err != nil {
		s.logger.Warn("audit leave change", slog.String("action", action), slog.Any("error", err))
	}
}
