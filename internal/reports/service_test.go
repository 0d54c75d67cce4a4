package reports

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrdesk/hrdesk/internal/leave"
	"github.com/hrdesk/hrdesk/internal/platform/httpx"
	"github.com/hrdesk/hrdesk/internal/rbac"
)

type slowSummarizer struct {
	calls atomic.Int32
	delay time.Duration
	err   error
}

func (s *slowSummarizer) Summarize(ctx context.Context) (leave.Summary, error) {
	s.calls.Add(1)
	time.Sleep(s.delay)
	if s.err != nil {
		return leave.Summary{}, s.err
	}
	return leave.Summary{ByStatus: map[leave.Status]int64{leave.StatusPending: 3}, Total: 3}, nil
}

type fixedCounter map[rbac.Role]int64

func (f fixedCounter) CountByRole(ctx context.Context) (map[rbac.Role]int64, error) {
	return f, nil
}

func TestLeaveSummarySharesConcurrentCalls(t *testing.T) {
	summarizer := &slowSummarizer{delay: 50 * time.Millisecond}
	svc := NewService(summarizer, fixedCounter{rbac.RoleEmployee: 4})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := svc.LeaveSummary(context.Background())
			assert.NoError(t, err)
			assert.Equal(t, int64(3), got.Leave.Total)
			assert.Equal(t, int64(4), got.Headcount[rbac.RoleEmployee])
		}()
	}
	wg.Wait()
	assert.Less(t, summarizer.calls.Load(), int32(8))
}

func TestLeaveSummaryError(t *testing.T) {
	svc := NewService(&slowSummarizer{err: errors.New("aggregate failed")}, fixedCounter{})
	_, err := svc.LeaveSummary(context.Background())
	require.Error(t, err)
}

func TestHandlerRequiresReportPermission(t *testing.T) {
	svc := NewService(&slowSummarizer{}, fixedCounter{})
	h := NewHandler(nil, svc, rbac.Middleware{Registry: rbac.DefaultRegistry()}, httpx.Responder{})
	handler := http.HandlerFunc(h.leaveSummary)
	guarded := h.rbac.RequireAny(rbac.PermViewReports)(handler)

	req := httptest.NewRequest(http.MethodGet, "/api/reports/leave-summary", nil)
	req = req.WithContext(rbac.ContextWithPrincipal(req.Context(), rbac.Principal{ID: "e", Roles: rbac.RoleSet{rbac.RoleEmployee}}))
	rr := httptest.NewRecorder()
	guarded.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	req = req.WithContext(rbac.ContextWithPrincipal(req.Context(), rbac.Principal{ID: "a", Roles: rbac.RoleSet{rbac.RoleAdmin}}))
	rr = httptest.NewRecorder()
	guarded.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"PENDING":3`)
}
