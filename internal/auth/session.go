package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	sessionIDLength = 40
	csrfTokenLength = 40
)

// Session is the request-bound handle on one server-side session.
type Session struct {
	store    SessionStoreInterface
	id       string
	data     SessionData
	detached bool
}

// StartSession creates and stores a fresh guest session.
func StartSession(ctx context.Context, store SessionStoreInterface) (*Session, error) {
	id, err := RandomString(sessionIDLength)
	if err != nil {
		return nil, err
	}
	csrf, err := RandomString(csrfTokenLength)
	if err != nil {
		return nil, err
	}

	s := &Session{
		store: store,
		id:    id,
		data:  SessionData{CSRFToken: csrf, CreatedAt: time.Now().UTC()},
	}
	if err := store.Save(ctx, s.id, &s.data); err != nil {
		return nil, err
	}
	return s, nil
}

// DetachedSession returns a guest session that was never stored. It backs
// requests that must complete while the store is unreachable; every write
// through it still goes to store and fails there.
func DetachedSession(store SessionStoreInterface) (*Session, error) {
	id, err := RandomString(sessionIDLength)
	if err != nil {
		return nil, err
	}
	csrf, err := RandomString(csrfTokenLength)
	if err != nil {
		return nil, err
	}
	return &Session{
		store:    store,
		id:       id,
		data:     SessionData{CSRFToken: csrf, CreatedAt: time.Now().UTC()},
		detached: true,
	}, nil
}

// ResumeSession loads an existing session by id.
func ResumeSession(ctx context.Context, store SessionStoreInterface, id string) (*Session, error) {
	data, err := store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	return &Session{store: store, id: id, data: *data}, nil
}

// ID returns the current session identifier.
func (s *Session) ID() string {
	return s.id
}

// Detached reports whether the session exists only in memory.
func (s *Session) Detached() bool {
	return s.detached
}

// CSRFToken returns the anti-forgery token bound to the session.
func (s *Session) CSRFToken() string {
	return s.data.CSRFToken
}

// UserID returns the authenticated principal, if any.
func (s *Session) UserID() (uuid.UUID, bool) {
	if s.data.UserID == "" {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(s.data.UserID)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// Establish binds userID to the session and moves it to a new id.
func (s *Session) Establish(ctx context.Context, userID uuid.UUID) error {
	prev := s.data.UserID
	s.data.UserID = userID.String()
	if err := s.migrate(ctx, prev); err != nil {
		s.data.UserID = prev
		return err
	}
	return nil
}

// RegenerateID moves the session to a new id, keeping its data. The old id
// stops resolving as part of the same store operation.
func (s *Session) RegenerateID(ctx context.Context) error {
	return s.migrate(ctx, s.data.UserID)
}

// RegenerateToken replaces the anti-forgery token.
func (s *Session) RegenerateToken(ctx context.Context) error {
	csrf, err := RandomString(csrfTokenLength)
	if err != nil {
		return err
	}
	s.data.CSRFToken = csrf
	return s.store.Save(ctx, s.id, &s.data)
}

// Invalidate drops the principal and all session data and moves the handle
// to a new, empty guest session.
func (s *Session) Invalidate(ctx context.Context) error {
	prevUser := s.data.UserID
	csrf, err := RandomString(csrfTokenLength)
	if err != nil {
		return err
	}
	s.data = SessionData{CSRFToken: csrf, CreatedAt: time.Now().UTC()}
	return s.migrate(ctx, prevUser)
}

func (s *Session) migrate(ctx context.Context, prevUserID string) error {
	newID, err := RandomString(sessionIDLength)
	if err != nil {
		return err
	}
	if err := s.store.Rotate(ctx, s.id, prevUserID, newID, &s.data); err != nil {
		return fmt.Errorf("regenerate session id: %w", err)
	}
	s.id = newID
	return nil
}
