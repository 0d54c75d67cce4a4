package shared

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	// AccessTokenCookie carries the access token for browser clients.
	AccessTokenCookie = "auth-token"
	// SessionTokenCookie carries the long-lived session token.
	SessionTokenCookie = "session-token"

	// TokenTypeAccess marks short-lived bearer tokens.
	TokenTypeAccess = "access"
	// TokenTypeSession marks refresh-capable session tokens.
	TokenTypeSession = "session"
)

var (
	// ErrMissingSecret is a fatal configuration error.
	ErrMissingSecret = errors.New("token signing secret is not configured")
	// ErrTokenMissing indicates no token was supplied.
	ErrTokenMissing = errors.New("token missing")
	// ErrTokenExpired indicates a well-formed token past its expiry.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenInvalid indicates a malformed or forged token.
	ErrTokenInvalid = errors.New("token invalid")
)

// Claims is the signed claim bundle. Role may arrive without Roles and the
// other way round from older tokens; consumers normalise both.
type Claims struct {
	ID        string   `json:"id"`
	Email     string   `json:"email"`
	Name      string   `json:"name"`
	Role      string   `json:"role,omitempty"`
	Roles     []string `json:"roles,omitempty"`
	Type      string   `json:"typ,omitempty"`
	SessionID string   `json:"sid,omitempty"`
	jwt.RegisteredClaims
}

// AllRoles merges Role and Roles, dropping blanks.
func (c Claims) AllRoles() []string {
	out := make([]string, 0, len(c.Roles)+1)
	if strings.TrimSpace(c.Role) != "" {
		out = append(out, c.Role)
	}
	for _, r := range c.Roles {
		if strings.TrimSpace(r) != "" {
			out = append(out, r)
		}
	}
	return out
}

// TokenManager issues and verifies HS256 tokens.
type TokenManager struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// NewTokenManager returns ErrMissingSecret when secret is blank.
func NewTokenManager(secret, issuer string) (*TokenManager, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, ErrMissingSecret
	}
	return &TokenManager{secret: []byte(secret), issuer: issuer, now: time.Now}, nil
}

// WithClock returns a copy of the manager using now as its time source.
func (m *TokenManager) WithClock(now func() time.Time) *TokenManager {
	clone := *m
	clone.now = now
	return &clone
}

// Issue signs claims valid for ttl from now. ID, issuer and timestamps are
// always overwritten.
func (m *TokenManager) Issue(claims Claims, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		return "", fmt.Errorf("token ttl must be positive, got %s", ttl)
	}
	now := m.now()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Issuer:    m.issuer,
		Subject:   claims.ID,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	if claims.Type == "" {
		claims.Type = TokenTypeAccess
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify parses raw and returns its claims.
func (m *TokenManager) Verify(raw string) (*Claims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrTokenMissing
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.now),
		jwt.WithExpirationRequired(),
	}
	if m.issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.issuer))
	}
	claims := new(Claims)
	_, err := jwt.NewParser(opts...).ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return m.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if claims.ID == "" {
		return nil, fmt.Errorf("%w: subject missing", ErrTokenInvalid)
	}
	return claims, nil
}

// VerifyType verifies raw and checks the token type.
func (m *TokenManager) VerifyType(raw, typ string) (*Claims, error) {
	claims, err := m.Verify(raw)
	if err != nil {
		return nil, err
	}
	kind := claims.Type
	if kind == "" {
		kind = TokenTypeAccess
	}
	if kind != typ {
		return nil, fmt.Errorf("%w: expected %s token", ErrTokenInvalid, typ)
	}
	return claims, nil
}
