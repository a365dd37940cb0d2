package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	sessionKeyPrefix      = "session:"
	userSessionsKeyPrefix = "user_sessions:"
)

// ErrSessionNotFound is returned when a session id has no stored record.
var ErrSessionNotFound = errors.New("session not found")

// SessionData is the server-side state of one session.
type SessionData struct {
	UserID    string    `json:"user_id,omitempty"`
	CSRFToken string    `json:"csrf_token"`
	CreatedAt time.Time `json:"created_at"`
}

// SessionStoreInterface defines the interface for session storage operations.
type SessionStoreInterface interface {
	Load(ctx context.Context, id string) (*SessionData, error)
	Save(ctx context.Context, id string, data *SessionData) error
	Rotate(ctx context.Context, oldID, oldUserID, newID string, data *SessionData) error
	Delete(ctx context.Context, id, userID string) error
	RevokeUser(ctx context.Context, userID, exceptID string) (int, error)
}

// SessionStore keeps sessions in Redis with a sliding TTL and indexes them
// per user so every session of an account can be revoked.
type SessionStore struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// Ensure SessionStore implements SessionStoreInterface
var _ SessionStoreInterface = (*SessionStore)(nil)

// NewSessionStore creates a new session store.
func NewSessionStore(client redis.UniversalClient, ttl time.Duration) *SessionStore {
	return &SessionStore{client: client, ttl: ttl}
}

func sessionKey(id string) string {
	return sessionKeyPrefix + id
}

func userSessionsKey(userID string) string {
	return userSessionsKeyPrefix + userID
}

// Load returns the session stored under id.
func (s *SessionStore) Load(ctx context.Context, id string) (*SessionData, error) {
	payload, err := s.client.Get(ctx, sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	var data SessionData
	if err := json.Unmarshal(payload, &data); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &data, nil
}

// Save writes the session and refreshes its TTL.
func (s *SessionStore) Save(ctx context.Context, id string, data *SessionData) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, sessionKey(id), payload, s.ttl)
		if data.UserID != "" {
			pipe.SAdd(ctx, userSessionsKey(data.UserID), id)
			pipe.Expire(ctx, userSessionsKey(data.UserID), s.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Rotate moves a session to newID in one MULTI/EXEC block. After it returns
// the old id no longer resolves.
func (s *SessionStore) Rotate(ctx context.Context, oldID, oldUserID, newID string, data *SessionData) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if oldID != "" {
			pipe.Del(ctx, sessionKey(oldID))
			if oldUserID != "" {
				pipe.SRem(ctx, userSessionsKey(oldUserID), oldID)
			}
		}
		pipe.Set(ctx, sessionKey(newID), payload, s.ttl)
		if data.UserID != "" {
			pipe.SAdd(ctx, userSessionsKey(data.UserID), newID)
			pipe.Expire(ctx, userSessionsKey(data.UserID), s.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("rotate session: %w", err)
	}
	return nil
}

// Delete removes a session. Deleting a missing session is not an error.
func (s *SessionStore) Delete(ctx context.Context, id, userID string) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, sessionKey(id))
		if userID != "" {
			pipe.SRem(ctx, userSessionsKey(userID), id)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// RevokeUser deletes every session of userID except exceptID and returns how
// many ids were revoked.
func (s *SessionStore) RevokeUser(ctx context.Context, userID, exceptID string) (int, error) {
	ids, err := s.client.SMembers(ctx, userSessionsKey(userID)).Result()
	if err != nil {
		return 0, fmt.Errorf("list user sessions: %w", err)
	}

	revoked := 0
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, id := range ids {
			if id == exceptID {
				continue
			}
			pipe.Del(ctx, sessionKey(id))
			pipe.SRem(ctx, userSessionsKey(userID), id)
			revoked++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("revoke user sessions: %w", err)
	}
	return revoked, nil
}
