package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hrdesk/hrdesk/internal/leave"
	"github.com/hrdesk/hrdesk/internal/users"
)

// Directory resolves user ids to accounts.
type Directory interface {
	Get(ctx context.Context, id string) (users.User, error)
}

// EmailEnqueuer hands an email to the queue.
type EmailEnqueuer interface {
	EnqueueSendEmail(ctx context.Context, payload SendEmailPayload) error
}

// LeaveNotifier turns leave events into queued emails.
type LeaveNotifier struct {
	queue     EmailEnqueuer
	directory Directory
	logger    *slog.Logger
}

// NewLeaveNotifier constructs a LeaveNotifier.
func NewLeaveNotifier(queue EmailEnqueuer, directory Directory, logger *slog.Logger) *LeaveNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LeaveNotifier{queue: queue, directory: directory, logger: logger}
}

// LeaveSubmitted emails the employee's manager. Employees without a manager
// produce no mail.
func (n *LeaveNotifier) LeaveSubmitted(ctx context.Context, req leave.Request) error {
	employee, err := n.directory.Get(ctx, req.EmployeeID)
	if err != nil {
		return fmt.Errorf("resolve employee %s: %w", req.EmployeeID, err)
	}
	if employee.ManagerID == "" {
		n.logger.Debug("leave submitted without manager", slog.String("leave_id", req.ID))
		return nil
	}
	manager, err := n.directory.Get(ctx, employee.ManagerID)
	if err != nil {
		return fmt.Errorf("resolve manager %s: %w", employee.ManagerID, err)
	}
	if !manager.IsActive {
		return nil
	}
	return n.queue.EnqueueSendEmail(ctx, SendEmailPayload{
		To:      manager.Email,
		Subject: fmt.Sprintf("Leave request from %s", employee.Name),
		Body: fmt.Sprintf("%s requested %d day(s) of %s leave from %s to %s.\n\nReason: %s\n",
			employee.Name, req.Days(), strings.ToLower(string(req.Type)),
			req.StartDate.Format(leave.DateLayout), req.EndDate.Format(leave.DateLayout), orDash(req.Reason)),
	})
}

// LeaveDecided emails the employee the outcome of their request.
func (n *LeaveNotifier) LeaveDecided(ctx context.Context, req leave.Request) error {
	employee, err := n.directory.Get(ctx, req.EmployeeID)
	if err != nil {
		return fmt.Errorf("resolve employee %s: %w", req.EmployeeID, err)
	}
	verb := strings.ToLower(string(req.Status))
	return n.queue.EnqueueSendEmail(ctx, SendEmailPayload{
		To:      employee.Email,
		Subject: fmt.Sprintf("Your leave request was %s", verb),
		Body: fmt.Sprintf("Your %s leave from %s to %s was %s.\n\nNote: %s\n",
			strings.ToLower(string(req.Type)), req.StartDate.Format(leave.DateLayout),
			req.EndDate.Format(leave.DateLayout), verb, orDash(req.DecisionNote)),
	})
}

func orDash(v string) string {
	if strings.TrimSpace(v) == "" {
		return "-"
	}
	return v
}
