package auth

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/hrdesk/hrdesk/internal/platform/httpx"
	"github.com/hrdesk/hrdesk/internal/rbac"
	"github.com/hrdesk/hrdesk/internal/shared"
	"github.com/hrdesk/hrdesk/internal/users"
)

// Outcome labels for AttemptObserver.
const (
	OutcomeSuccess            = "success"
	OutcomeInvalidCredentials = "invalid_credentials"
	OutcomeInactive           = "inactive"
	OutcomeDuplicate          = "duplicate"
	OutcomeNotFound           = "not_found"
	OutcomeRejected           = "rejected"
	OutcomeError              = "error"
)

// Options configures token lifetimes.
type Options struct {
	AccessTTL  time.Duration
	SessionTTL time.Duration
}

// Service wraps authentication business rules.
type Service struct {
	users    UserStore
	sessions SessionRegistry
	tokens   *shared.TokenManager
	opts     Options
	audit    shared.AuditRecorder
	observer AttemptObserver
	logger   *slog.Logger
}

// NewService constructs a new Service. audit and observer may be nil.
func NewService(store UserStore, sessions SessionRegistry, tokens *shared.TokenManager, opts Options, audit shared.AuditRecorder, observer AttemptObserver, logger *slog.Logger) *Service {
	if opts.AccessTTL <= 0 {
		opts.AccessTTL = 24 * time.Hour
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 30 * 24 * time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{users: store, sessions: sessions, tokens: tokens, opts: opts, audit: audit, observer: observer, logger: logger}
}

// Options returns the effective token lifetimes.
func (s *Service) Options() Options {
	return s.opts
}

var dummyHash = sync.OnceValue(func() []byte {
	hash, _ := bcrypt.GenerateFromPassword([]byte("hrdesk-timing-equaliser"), users.HashCost)
	return hash
})

// Login verifies credentials and opens a session. Unknown emails and wrong
// passwords share ErrInvalidCredentials; an inactive account is reported only
// once its password has been verified.
func (s *Service) Login(ctx context.Context, email, password string, meta shared.RequestMeta) (Result, error) {
	email = users.NormalizeEmail(email)
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, httpx.ErrNotFound) {
			_ = bcrypt.CompareHashAndPassword(dummyHash(), []byte(password))
			s.finish(ctx, "login", OutcomeInvalidCredentials, "", email, meta)
			return Result{}, shared.ErrInvalidCredentials
		}
		s.finish(ctx, "login", OutcomeError, "", email, meta)
		return Result{}, err
	}
	ok, err := users.CheckPassword(user.PasswordHash, password)
	if err != nil {
		s.logger.Warn("unusable password hash", slog.String("user_id", user.ID), slog.Any("error", err))
	}
	if !ok {
		s.finish(ctx, "login", OutcomeInvalidCredentials, user.ID, email, meta)
		return Result{}, shared.ErrInvalidCredentials
	}
	if !user.IsActive {
		s.finish(ctx, "login", OutcomeInactive, user.ID, email, meta)
		return Result{}, shared.ErrAccountInactive
	}
	res, err := s.open(ctx, user, meta)
	if err != nil {
		s.finish(ctx, "login", OutcomeError, user.ID, email, meta)
		return Result{}, err
	}
	s.finish(ctx, "login", OutcomeSuccess, user.ID, email, meta)
	return res, nil
}

// Signup registers an EMPLOYEE account and opens a session for it.
func (s *Service) Signup(ctx context.Context, name, email, password string, meta shared.RequestMeta) (Result, error) {
	user, err := s.users.Create(ctx, "", users.CreateInput{
		Name:     name,
		Email:    email,
		Password: password,
		Roles:    rbac.RoleSet{rbac.RoleEmployee},
	})
	if err != nil {
		s.finish(ctx, "signup", outcomeFor(err), "", users.NormalizeEmail(email), meta)
		return Result{}, err
	}
	res, err := s.open(ctx, user, meta)
	if err != nil {
		s.finish(ctx, "signup", OutcomeError, user.ID, user.Email, meta)
		return Result{}, err
	}
	s.finish(ctx, "signup", OutcomeSuccess, user.ID, user.Email, meta)
	return res, nil
}

// ResetPassword replaces the password of the account registered with email.
// No prior credential is required; every session of the account is revoked.
func (s *Service) ResetPassword(ctx context.Context, email, password string, meta shared.RequestMeta) error {
	user, err := s.users.SetPassword(ctx, email, password)
	if err != nil {
		s.finish(ctx, "password_reset", outcomeFor(err), "", users.NormalizeEmail(email), meta)
		return err
	}
	s.finish(ctx, "password_reset", OutcomeSuccess, user.ID, user.Email, meta)
	return nil
}

// CheckUser reports whether an account exists for email.
func (s *Service) CheckUser(ctx context.Context, email string) (bool, error) {
	exists, err := s.users.Exists(ctx, email)
	if err != nil {
		s.observe("check_user", OutcomeError)
		return false, err
	}
	s.observe("check_user", OutcomeSuccess)
	return exists, nil
}

// Refresh issues a new access token from a live session token. The account is
// re-read so role and status changes take effect.
func (s *Service) Refresh(ctx context.Context, sessionToken string, meta shared.RequestMeta) (Result, error) {
	claims, err := s.tokens.VerifyType(sessionToken, shared.TokenTypeSession)
	if err != nil {
		s.observe("refresh", OutcomeRejected)
		return Result{}, shared.ErrNotAuthenticated
	}
	rec, err := s.sessions.Lookup(ctx, claims.SessionID)
	if err != nil {
		if errors.Is(err, shared.ErrSessionNotFound) {
			s.observe("refresh", OutcomeRejected)
			return Result{}, shared.ErrNotAuthenticated
		}
		s.observe("refresh", OutcomeError)
		return Result{}, err
	}
	if rec.UserID != claims.ID {
		s.observe("refresh", OutcomeRejected)
		return Result{}, shared.ErrNotAuthenticated
	}
	user, err := s.users.Get(ctx, claims.ID)
	if err != nil {
		if errors.Is(err, httpx.ErrNotFound) {
			_ = s.sessions.Revoke(ctx, rec.ID)
			s.observe("refresh", OutcomeRejected)
			return Result{}, shared.ErrNotAuthenticated
		}
		s.observe("refresh", OutcomeError)
		return Result{}, err
	}
	if !user.IsActive {
		_ = s.sessions.Revoke(ctx, rec.ID)
		s.observe("refresh", OutcomeInactive)
		return Result{}, shared.ErrAccountInactive
	}
	access, err := s.issueAccess(user)
	if err != nil {
		s.observe("refresh", OutcomeError)
		return Result{}, err
	}
	s.observe("refresh", OutcomeSuccess)
	return Result{User: user, AccessToken: access, SessionToken: sessionToken}, nil
}

// Logout revokes the session behind sessionToken. Invalid or expired tokens
// are ignored.
func (s *Service) Logout(ctx context.Context, sessionToken string, meta shared.RequestMeta) error {
	claims, err := s.tokens.VerifyType(sessionToken, shared.TokenTypeSession)
	if err != nil {
		s.observe("logout", OutcomeRejected)
		return nil
	}
	if err := s.sessions.Revoke(ctx, claims.SessionID); err != nil {
		s.observe("logout", OutcomeError)
		return err
	}
	s.finish(ctx, "logout", OutcomeSuccess, claims.ID, claims.Email, meta)
	return nil
}

// Me returns the current account of principal.
func (s *Service) Me(ctx context.Context, principal rbac.Principal) (users.User, error) {
	user, err := s.users.Get(ctx, principal.ID)
	if err != nil {
		if errors.Is(err, httpx.ErrNotFound) {
			return users.User{}, shared.ErrNotAuthenticated
		}
		return users.User{}, err
	}
	return user, nil
}

func (s *Service) open(ctx context.Context, user users.User, meta shared.RequestMeta) (Result, error) {
	access, err := s.issueAccess(user)
	if err != nil {
		return Result{}, err
	}
	rec, err := s.sessions.Create(ctx, user.ID, meta.IP, meta.UserAgent)
	if err != nil {
		return Result{}, err
	}
	session, err := s.tokens.Issue(shared.Claims{
		ID:        user.ID,
		Email:     user.Email,
		Type:      shared.TokenTypeSession,
		SessionID: rec.ID,
	}, s.opts.SessionTTL)
	if err != nil {
		return Result{}, err
	}
	return Result{User: user, AccessToken: access, SessionToken: session}, nil
}

func (s *Service) issueAccess(user users.User) (string, error) {
	return s.tokens.Issue(rbac.ClaimsFor(user.Principal()), s.opts.AccessTTL)
}

func outcomeFor(err error) string {
	switch {
	case errors.Is(err, httpx.ErrDuplicate):
		return OutcomeDuplicate
	case errors.Is(err, httpx.ErrNotFound):
		return OutcomeNotFound
	case errors.Is(err, httpx.ErrValidation):
		return OutcomeRejected
	default:
		return OutcomeError
	}
}

func (s *Service) observe(op, outcome string) {
	if s.observer != nil {
		s.observer.ObserveAuth(op, outcome)
	}
}

func (s *Service) finish(ctx context.Context, op, outcome, userID, email string, meta shared.RequestMeta) {
	s.observe(op, outcome)
	level := slog.LevelInfo
	if outcome != OutcomeSuccess {
		level = slog.LevelWarn
	}
	s.logger.Log(ctx, level, "auth "+op,
		slog.String("outcome", outcome),
		slog.String("user_id", userID),
		slog.String("ip", meta.IP),
		slog.String("request_id", meta.RequestID))
	if s.audit == nil {
		return
	}
	entityID := userID
	if entityID == "" {
		entityID = email
	}
	if entityID == "" {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  userID,
		Action:   "auth." + op,
		Entity:   "user",
		EntityID: entityID,
		Meta:     map[string]any{"outcome": outcome, "ip": meta.IP, "ua": meta.UserAgent},
	})
	if err != nil {
		s.logger.Warn("audit auth event", slog.String("op", op), slog.Any("error", err))
	}
}
