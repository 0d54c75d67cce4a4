package auth

import (
	"context"

	"github.com/hrdesk/hrdesk/internal/shared"
	"github.com/hrdesk/hrdesk/internal/users"
)

// UserStore is the account surface used by the authentication flows.
type UserStore interface {
	FindByEmail(ctx context.Context, email string) (users.User, error)
	Get(ctx context.Context, id string) (users.User, error)
	Create(ctx context.Context, actorID string, in users.CreateInput) (users.User, error)
	SetPassword(ctx context.Context, email, password string) (users.User, error)
	Exists(ctx context.Context, email string) (bool, error)
}

// SessionRegistry tracks live session tokens.
type SessionRegistry interface {
	Create(ctx context.Context, userID, ip, ua string) (shared.SessionRecord, error)
	Lookup(ctx context.Context, id string) (shared.SessionRecord, error)
	Revoke(ctx context.Context, id string) error
}

// AttemptObserver counts authentication outcomes.
type AttemptObserver interface {
	ObserveAuth(op, outcome string)
}

// Result is returned by flows that establish a session.
type Result struct {
	User         users.User
	AccessToken  string
	SessionToken string
}

// Summary is the user view returned to clients after authentication.
type Summary struct {
	ID    string   `json:"id"`
	Name  string   `json:"name"`
	Email string   `json:"email"`
	Role  string   `json:"role"`
	Roles []string `json:"roles"`
}

// SummaryOf builds the client view of u.
func SummaryOf(u users.User) Summary {
	return Summary{ID: u.ID, Name: u.Name, Email: u.Email, Role: string(u.Roles.Primary()), Roles: u.Roles.Strings()}
}
