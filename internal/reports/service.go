// Package reports aggregates HR figures for administrators.
package reports

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/hrdesk/hrdesk/internal/leave"
	"github.com/hrdesk/hrdesk/internal/rbac"
)

// LeaveSummarizer produces leave request counts.
type LeaveSummarizer interface {
	Summarize(ctx context.Context) (leave.Summary, error)
}

// HeadCounter counts active users per role.
type HeadCounter interface {
	CountByRole(ctx context.Context) (map[rbac.Role]int64, error)
}

// LeaveSummary is the payload of the leave summary report.
type LeaveSummary struct {
	Leave     leave.Summary       `json:"leave"`
	Headcount map[rbac.Role]int64 `json:"headcount"`
}

// Service computes reports. Concurrent callers share one computation.
type Service struct {
	leave   LeaveSummarizer
	users   HeadCounter
	group   singleflight.Group
	timeout time.Duration
}

// NewService builds Service instance.
func NewService(leave LeaveSummarizer, users HeadCounter) *Service {
	return &Service{leave: leave, users: users, timeout: 15 * time.Second}
}

// LeaveSummary returns request counts by status and type plus head counts.
func (s *Service) LeaveSummary(ctx context.Context) (LeaveSummary, error) {
	v, err, _ := s.group.Do("leave-summary", func() (any, error) {
		// Shared by every waiting caller, so not bound to the first one's cancellation.
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
		defer cancel()
		summary, err := s.leave.Summarize(ctx)
		if err != nil {
			return nil, err
		}
		counts, err := s.users.CountByRole(ctx)
		if err != nil {
			return nil, err
		}
		return LeaveSummary{Leave: summary, Headcount: counts}, nil
	})
	if err != nil {
		return LeaveSummary{}, err
	}
	return v.(LeaveSummary), nil
}
