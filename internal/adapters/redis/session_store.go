package redis

// Package redis provides Redis-based adapters for the authd system.

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	domainauth "github.com/coverforge/authd/internal/domain/auth"
)

// DefaultSessionKey is the single well-known key holding the serialized
// current session. Writes are full-overwrite; the lifecycle manager is the
// only writer, so last-writer-wins is acceptable.
const DefaultSessionKey = "authd:session"

// SessionStore mirrors the current session into Redis.
type SessionStore struct {
	client redis.UniversalClient
	key    string
}

// NewSessionStore creates a session store using DefaultSessionKey.
func NewSessionStore(client redis.UniversalClient) *SessionStore {
	return &SessionStore{client: client, key: DefaultSessionKey}
}

// NewSessionStoreWithKey creates a session store with a custom storage key.
func NewSessionStoreWithKey(client redis.UniversalClient, key string) *SessionStore {
	return &SessionStore{client: client, key: key}
}

// Save overwrites the stored session. Expired sessions are rejected rather
// than persisted, and the entry's TTL tracks the session expiry.
func (s *SessionStore) Save(ctx context.Context, sess domainauth.Session) error {
	if sess.AccessToken == "" || sess.RefreshToken == "" {
		return errors.New("session tokens cannot be empty")
	}

	ttl := time.Until(sess.ExpiresAt)
	if ttl <= 0 {
		return errors.New("session is expired")
	}

	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	return s.client.Set(ctx, s.key, data, ttl).Err()
}

// Load returns the stored session, or ErrNotFound when none exists. Expired
// entries are cleaned up defensively even though the TTL should have removed
// them.
func (s *SessionStore) Load(ctx context.Context) (domainauth.Session, error) {
	data, err := s.client.Get(ctx, s.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domainauth.Session{}, ErrNotFound
		}
		return domainauth.Session{}, fmt.Errorf("redis get: %w", err)
	}

	var sess domainauth.Session
	if unmarshalErr := json.Unmarshal([]byte(data), &sess); unmarshalErr != nil {
		return domainauth.Session{}, fmt.Errorf("unmarshal session: %w", unmarshalErr)
	}

	if time.Now().After(sess.ExpiresAt) {
		if deleteErr := s.Clear(ctx); deleteErr != nil {
			return domainauth.Session{}, fmt.Errorf("cleanup expired session: %w", deleteErr)
		}
		return domainauth.Session{}, ErrNotFound
	}

	return sess, nil
}

// Clear deletes the stored session.
func (s *SessionStore) Clear(ctx context.Context) error {
	return s.client.Del(ctx, s.key).Err()
}

// ErrNotFound is returned when no session is stored.
type notFoundError struct{}

func (notFoundError) Error() string { return "session not found" }

var ErrNotFound error = notFoundError{}
