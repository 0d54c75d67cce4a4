package shared

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrSessionNotFound indicates a revoked or expired session.
var ErrSessionNotFound = errors.New("session not found")

// SessionRecord is the server-side state behind a session token.
type SessionRecord struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	IP        string    `json:"ip,omitempty"`
	UserAgent string    `json:"ua,omitempty"`
}

// SessionStore keeps session records in Redis so that session tokens can be
// revoked before they expire.
type SessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSessionStore constructs a SessionStore.
func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{client: client, ttl: ttl}
}

// TTL exposes the configured session lifetime.
func (s *SessionStore) TTL() time.Duration {
	return s.ttl
}

// Create persists a new session for userID.
func (s *SessionStore) Create(ctx context.Context, userID, ip, ua string) (SessionRecord, error) {
	rec := SessionRecord{
		ID:        uuid.NewString(),
		UserID:    userID,
		CreatedAt: time.Now().UTC(),
		IP:        ip,
		UserAgent: ua,
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return SessionRecord{}, err
	}
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, sessionKey(rec.ID), data, s.ttl)
	pipe.SAdd(ctx, userSessionsKey(userID), rec.ID)
	pipe.Expire(ctx, userSessionsKey(userID), s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return SessionRecord{}, fmt.Errorf("create session: %w", err)
	}
	return rec, nil
}

// Lookup returns the live session with id.
func (s *SessionStore) Lookup(ctx context.Context, id string) (SessionRecord, error) {
	if id == "" {
		return SessionRecord{}, ErrSessionNotFound
	}
	payload, err := s.client.Get(ctx, sessionKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return SessionRecord{}, ErrSessionNotFound
		}
		return SessionRecord{}, err
	}
	var rec SessionRecord
	if err := json.Unmarshal(payload, &rec); err != nil {
		return SessionRecord{}, err
	}
	return rec, nil
}

// Revoke deletes a single session. Unknown ids are not an error.
func (s *SessionStore) Revoke(ctx context.Context, id string) error {
	rec, err := s.Lookup(ctx, id)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return nil
		}
		return err
	}
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, sessionKey(id))
	pipe.SRem(ctx, userSessionsKey(rec.UserID), id)
	_, err = pipe.Exec(ctx)
	return err
}

// RevokeAllForUser deletes every session owned by userID.
func (s *SessionStore) RevokeAllForUser(ctx context.Context, userID string) error {
	ids, err := s.client.SMembers(ctx, userSessionsKey(userID)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	keys := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		keys = append(keys, sessionKey(id))
	}
	keys = append(keys, userSessionsKey(userID))
	return s.client.Del(ctx, keys...).Err()
}

func sessionKey(id string) string {
	return "session:" + id
}

func userSessionsKey(userID string) string {
	return "user-sessions:" + userID
}

// CookieOptions controls cookie attributes for token transport.
type CookieOptions struct {
	Secure bool
}

// SetTokenCookie writes an http-only, same-site strict cookie.
func SetTokenCookie(w http.ResponseWriter, name, value, path string, ttl time.Duration, opts CookieOptions) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		HttpOnly: true,
		Secure:   opts.Secure,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   int(ttl.Seconds()),
		Expires:  time.Now().Add(ttl),
	})
}

// ClearTokenCookie expires a cookie set by SetTokenCookie.
func ClearTokenCookie(w http.ResponseWriter, name, path string, opts CookieOptions) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     path,
		HttpOnly: true,
		Secure:   opts.Secure,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   -1,
	})
}
