package leave

import (
	"strings"
	"time"

	"github.com/hrdesk/hrdesk/internal/platform/httpx"
)

// Module names leave requests in the approval and idempotency tables.
const Module = "leave_request"

// DateLayout is the wire format of start and end dates.
const DateLayout = "2006-01-02"

// Status is the lifecycle state of a request.
type Status string

const (
	StatusDraft    Status = "DRAFT"
	StatusPending  Status = "PENDING"
	StatusApproved Status = "APPROVED"
	StatusRejected Status = "REJECTED"
)

// ParseStatus accepts any casing. DENIED is read as REJECTED.
func ParseStatus(raw string) (Status, error) {
	switch s := Status(strings.ToUpper(strings.TrimSpace(raw))); s {
	case StatusDraft, StatusPending, StatusApproved, StatusRejected:
		return s, nil
	case "DENIED":
		return StatusRejected, nil
	default:
		return "", httpx.Errorf(httpx.ErrValidation, "unknown status %q", raw)
	}
}

// Decided reports whether an approver has acted on the request.
func (s Status) Decided() bool {
	return s == StatusApproved || s == StatusRejected
}

// Type classifies the absence.
type Type string

const (
	TypeAnnual Type = "ANNUAL"
	TypeSick   Type = "SICK"
	TypeUnpaid Type = "UNPAID"
	TypeOther  Type = "OTHER"
)

// ParseType accepts any casing; blank input yields ANNUAL.
func ParseType(raw string) (Type, error) {
	switch t := Type(strings.ToUpper(strings.TrimSpace(raw))); t {
	case "":
		return TypeAnnual, nil
	case TypeAnnual, TypeSick, TypeUnpaid, TypeOther:
		return t, nil
	default:
		return "", httpx.Errorf(httpx.ErrValidation, "unknown leave type %q", raw)
	}
}

// Request is a leave request document.
type Request struct {
	ID           string     `json:"id"`
	EmployeeID   string     `json:"employeeId"`
	ApproverID   string     `json:"approverId,omitempty"`
	Type         Type       `json:"type"`
	Status       Status     `json:"status"`
	StartDate    time.Time  `json:"startDate"`
	EndDate      time.Time  `json:"endDate"`
	Reason       string     `json:"reason,omitempty"`
	DecisionNote string     `json:"decisionNote,omitempty"`
	DecidedAt    *time.Time `json:"decidedAt,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// Days returns the inclusive calendar day count.
func (r Request) Days() int {
	return int(r.EndDate.Sub(r.StartDate).Hours()/24) + 1
}

// CreateInput is the body of a create call.
type CreateInput struct {
	Type      string `json:"type"`
	StartDate string `json:"startDate" validate:"required"`
	EndDate   string `json:"endDate" validate:"required"`
	Reason    string `json:"reason" validate:"max=1000"`
	Status    string `json:"status"`
}

// UpdateInput is the body of a PATCH call. Nil fields are left untouched.
type UpdateInput struct {
	Type      *string `json:"type"`
	StartDate *string `json:"startDate"`
	EndDate   *string `json:"endDate"`
	Reason    *string `json:"reason" validate:"omitempty,max=1000"`
	Status    *string `json:"status"`
}

// Patch is the storage-level update derived from UpdateInput.
type Patch struct {
	Type      *Type
	StartDate *time.Time
	EndDate   *time.Time
	Reason    *string
	Status    *Status
}

// Decision is an approver's verdict.
type Decision struct {
	Status     Status
	ApproverID string
	Note       string
	At         time.Time
}

// ListFilter narrows List results. Zero values match everything.
type ListFilter struct {
	EmployeeID string
	Status     Status
}

// Summary aggregates requests for reporting.
type Summary struct {
	ByStatus    map[Status]int64 `json:"byStatus"`
	ByType      map[Type]int64   `json:"byType"`
	Total       int64            `json:"total"`
	GeneratedAt time.Time        `json:"generatedAt"`
}

func parseDate(field, raw string) (time.Time, error) {
	d, err := time.Parse(DateLayout, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, httpx.Errorf(httpx.ErrValidation, "%s must be a date in YYYY-MM-DD format", field)
	}
	return d, nil
}

func checkRange(start, end time.Time) error {
	if end.Before(start) {
		return httpx.Errorf(httpx.ErrValidation, "endDate must not be before startDate")
	}
	return nil
}
