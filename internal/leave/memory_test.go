package leave

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/hrdesk/hrdesk/internal/shared"
)

type memoryRepo struct {
	mu       sync.Mutex
	requests map[string]Request
	nextID   int
}

func newMemoryRepo(seed ...Request) *memoryRepo {
	repo := &memoryRepo{requests: make(map[string]Request)}
	for _, r := range seed {
		repo.requests[r.ID] = r
	}
	return repo
}

func (m *memoryRepo) List(ctx context.Context, filter ListFilter, page shared.PageRequest) ([]Request, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Request
	for _, r := range m.requests {
		if filter.EmployeeID != "" && r.EmployeeID != filter.EmployeeID {
			continue
		}
		if filter.Status != "" && r.Status != filter.Status {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	total := int64(len(out))
	if int(page.Skip()) < len(out) {
		out = out[page.Skip():]
	} else {
		out = nil
	}
	if len(out) > page.PerPage {
		out = out[:page.PerPage]
	}
	return out, total, nil
}

func (m *memoryRepo) Get(ctx context.Context, id string) (Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.requests[id]
	if !ok {
		return Request{}, ErrNotFound
	}
	return r, nil
}

func (m *memoryRepo) Insert(ctx context.Context, req Request) (Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	req.ID = "lr-" + strconv.Itoa(m.nextID)
	req.CreatedAt = time.Now()
	req.UpdatedAt = req.CreatedAt
	m.requests[req.ID] = req
	return req, nil
}

func (m *memoryRepo) Update(ctx context.Context, id string, patch Patch) (Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.requests[id]
	if !ok {
		return Request{}, ErrNotFound
	}
	if r.Status.Decided() {
		return Request{}, ErrDecided
	}
	if patch.Type != nil {
		r.Type = *patch.Type
	}
	if patch.StartDate != nil {
		r.StartDate = *patch.StartDate
	}
	if patch.EndDate != nil {
		r.EndDate = *patch.EndDate
	}
	if patch.Reason != nil {
		r.Reason = *patch.Reason
	}
	if patch.Status != nil {
		r.Status = *patch.Status
	}
	m.requests[id] = r
	return r, nil
}

func (m *memoryRepo) Decide(ctx context.Context, id string, d Decision) (Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.requests[id]
	if !ok {
		return Request{}, ErrNotFound
	}
	at := d.At
	r.Status = d.Status
	r.ApproverID = d.ApproverID
	r.DecisionNote = d.Note
	r.DecidedAt = &at
	m.requests[id] = r
	return r, nil
}

func (m *memoryRepo) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.requests[id]; !ok {
		return ErrNotFound
	}
	delete(m.requests, id)
	return nil
}

func (m *memoryRepo) Summarize(ctx context.Context) (Summary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := Summary{ByStatus: map[Status]int64{}, ByType: map[Type]int64{}}
	for _, r := range m.requests {
		s.ByStatus[r.Status]++
		s.ByType[r.Type]++
		s.Total++
	}
	return s, nil
}

type approvalSpy struct {
	mu   sync.Mutex
	logs []shared.ApprovalLog
}

func (a *approvalSpy) Record(ctx context.Context, log shared.ApprovalLog) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.logs = append(a.logs, log)
	return nil
}

func (a *approvalSpy) List(ctx context.Context, module, ref string) ([]shared.ApprovalLog, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []shared.ApprovalLog
	for _, l := range a.logs {
		if l.Module == module && l.RefID == ref {
			out = append(out, l)
		}
	}
	return out, nil
}

func (a *approvalSpy) EnsureSubmit(ctx context.Context, module, ref, actorID, note string) error {
	a.mu.Lock()
	for _, l := range a.logs {
		if l.Module == module && l.RefID == ref && l.Action == shared.ApprovalSubmit {
			a.mu.Unlock()
			return nil
		}
	}
	a.mu.Unlock()
	return a.Record(ctx, shared.ApprovalLog{Module: module, RefID: ref, ActorID: actorID, Action: shared.ApprovalSubmit, Note: note})
}

type idemStore struct {
	mu   sync.Mutex
	keys map[string]string
}

func newIdemStore() *idemStore {
	return &idemStore{keys: make(map[string]string)}
}

func (s *idemStore) CheckAndInsert(ctx context.Context, key, module string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.keys[module+"/"+key]; ok {
		return shared.ErrIdempotencyConflict
	}
	s.keys[module+"/"+key] = ""
	return nil
}

func (s *idemStore) Bind(ctx context.Context, key, module, refID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[module+"/"+key] = refID
	return nil
}

func (s *idemStore) Lookup(ctx context.Context, key, module string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.keys[module+"/"+key], nil
}

func (s *idemStore) Delete(ctx context.Context, key, module string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.keys, module+"/"+key)
	return nil
}

type notifierSpy struct {
	submitted []string
	decided   []string
}

func (n *notifierSpy) LeaveSubmitted(ctx context.Context, req Request) error {
	n.submitted = append(n.submitted, req.ID)
	return nil
}

func (n *notifierSpy) LeaveDecided(ctx context.Context, req Request) error {
	n.decided = append(n.decided, req.ID+":"+string(req.Status))
	return nil
}
