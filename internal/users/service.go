package users

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/hrdesk/hrdesk/internal/platform/httpx"
	"github.com/hrdesk/hrdesk/internal/rbac"
	"github.com/hrdesk/hrdesk/internal/shared"
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	List(ctx context.Context, filter ListFilter, page shared.PageRequest) ([]User, int64, error)
	Get(ctx context.Context, id string) (User, error)
	FindByEmail(ctx context.Context, email string) (User, error)
	Insert(ctx context.Context, u User) (User, error)
	Update(ctx context.Context, id string, patch Patch) (User, error)
	SetPassword(ctx context.Context, email, hash string) (User, error)
	Delete(ctx context.Context, id string) error
	CountByRole(ctx context.Context) (map[rbac.Role]int64, error)
}

// SessionRevoker ends every session of a user.
type SessionRevoker interface {
	RevokeAllForUser(ctx context.Context, userID string) error
}

// Service handles user business logic.
type Service struct {
	repo     RepositoryPort
	sessions SessionRevoker
	audit    shared.AuditRecorder
	logger   *slog.Logger
}

// NewService builds Service instance. sessions and audit may be nil.
func NewService(repo RepositoryPort, sessions SessionRevoker, audit shared.AuditRecorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, sessions: sessions, audit: audit, logger: logger}
}

// NormalizeEmail lower-cases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// List returns a page of users.
func (s *Service) List(ctx context.Context, filter ListFilter, page shared.PageRequest) ([]User, shared.Pagination, error) {
	items, total, err := s.repo.List(ctx, filter, page)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return items, shared.NewPagination(page, total), nil
}

// Get returns a user by id.
func (s *Service) Get(ctx context.Context, id string) (User, error) {
	return s.repo.Get(ctx, id)
}

// FindByEmail returns the user registered with email.
func (s *Service) FindByEmail(ctx context.Context, email string) (User, error) {
	return s.repo.FindByEmail(ctx, NormalizeEmail(email))
}

// Exists reports whether an account uses email.
func (s *Service) Exists(ctx context.Context, email string) (bool, error) {
	_, err := s.FindByEmail(ctx, email)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, httpx.ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

// Create registers a new account. Callers decide the role set; signup always
// passes EMPLOYEE.
func (s *Service) Create(ctx context.Context, actorID string, in CreateInput) (User, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return User{}, httpx.Errorf(httpx.ErrValidation, "Name is required")
	}
	email := NormalizeEmail(in.Email)
	if email == "" {
		return User{}, httpx.Errorf(httpx.ErrValidation, "Email is required")
	}
	if len(in.Roles) == 0 {
		return User{}, httpx.Errorf(httpx.ErrValidation, "at least one role is required")
	}
	if _, err := s.repo.FindByEmail(ctx, email); err == nil {
		return User{}, ErrDuplicateEmail
	} else if !errors.Is(err, httpx.ErrNotFound) {
		return User{}, err
	}
	managerID := strings.TrimSpace(in.ManagerID)
	if managerID != "" {
		if _, err := s.repo.Get(ctx, managerID); err != nil {
			return User{}, err
		}
	}
	hash, err := HashPassword(in.Password)
	if err != nil {
		return User{}, err
	}
	user, err := s.repo.Insert(ctx, User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Roles:        in.Roles,
		Department:   strings.TrimSpace(in.Department),
		ManagerID:    managerID,
		IsActive:     true,
	})
	if err != nil {
		return User{}, err
	}
	s.record(ctx, actorID, "user.create", user.ID, map[string]any{"roles": user.Roles.Strings()})
	return user, nil
}

// Update applies a partial update. Roles are fixed at creation and a MANAGER
// cannot modify an ADMIN account.
func (s *Service) Update(ctx context.Context, actor rbac.Principal, id string, in UpdateInput) (User, error) {
	if in.Role != nil || in.Roles != nil {
		return User{}, httpx.Errorf(httpx.ErrValidation, "Roles cannot be changed")
	}
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return User{}, err
	}
	if current.Roles.Contains(rbac.RoleAdmin) && !actor.IsAdmin() {
		return User{}, shared.ErrInsufficientRole
	}
	if in.IsActive != nil && !*in.IsActive && actor.ID == id {
		return User{}, httpx.Errorf(httpx.ErrValidation, "You cannot deactivate your own account")
	}

	var patch Patch
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return User{}, httpx.Errorf(httpx.ErrValidation, "Name is required")
		}
		patch.Name = &name
	}
	if in.Email != nil {
		email := NormalizeEmail(*in.Email)
		if email != current.Email {
			if _, err := s.repo.FindByEmail(ctx, email); err == nil {
				return User{}, ErrDuplicateEmail
			} else if !errors.Is(err, httpx.ErrNotFound) {
				return User{}, err
			}
			patch.Email = &email
		}
	}
	if in.Department != nil {
		dept := strings.TrimSpace(*in.Department)
		patch.Department = &dept
	}
	if in.ManagerID != nil {
		if *in.ManagerID == id {
			return User{}, httpx.Errorf(httpx.ErrValidation, "A user cannot manage themselves")
		}
		if *in.ManagerID != "" {
			if _, err := s.repo.Get(ctx, *in.ManagerID); err != nil {
				return User{}, err
			}
		}
		patch.ManagerID = in.ManagerID
	}
	if in.IsActive != nil && *in.IsActive != current.IsActive {
		patch.IsActive = in.IsActive
	}
	if patch.Empty() {
		return current, nil
	}

	updated, err := s.repo.Update(ctx, id, patch)
	if err != nil {
		return User{}, err
	}
	if patch.IsActive != nil && !*patch.IsActive {
		s.revokeSessions(ctx, id)
	}
	s.record(ctx, actor.ID, "user.update", id, nil)
	return updated, nil
}

// Delete removes an account and its sessions.
func (s *Service) Delete(ctx context.Context, actor rbac.Principal, id string) error {
	if actor.ID == id {
		return httpx.Errorf(httpx.ErrValidation, "You cannot delete your own account")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.revokeSessions(ctx, id)
	s.record(ctx, actor.ID, "user.delete", id, nil)
	return nil
}

// SetPassword hashes password and stores it for the account with email. Every
// session of the account is revoked.
func (s *Service) SetPassword(ctx context.Context, email, password string) (User, error) {
	hash, err := HashPassword(password)
	if err != nil {
		return User{}, err
	}
	user, err := s.repo.SetPassword(ctx, NormalizeEmail(email), hash)
	if err != nil {
		return User{}, err
	}
	s.revokeSessions(ctx, user.ID)
	return user, nil
}

// CountByRole returns active head counts per role.
func (s *Service) CountByRole(ctx context.Context) (map[rbac.Role]int64, error) {
	return s.repo.CountByRole(ctx)
}

func (s *Service) revokeSessions(ctx context.Context, userID string) {
	if s.sessions == nil {
		return
	}
	if err := s.sessions.RevokeAllForUser(ctx, userID); err != nil {
		s.logger.Warn("revoke sessions", slog.String("user_id", userID), slog.Any("error", err))
	}
}

func (s *Service) record(ctx context.Context, actorID, action, userID string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{ActorID: actorID, Action: action, Entity: "user", EntityID: userID, Meta: meta}); err != nil {
		s.logger.Warn("audit user change", slog.String("action", action), slog.Any("error", err))
	}
}
