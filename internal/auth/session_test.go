package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
		mr.Close()
	})
	return mr, client
}

func TestSessionStore_SaveLoadDelete(t *testing.T) {
	mr, rdb := newTestRedis(t)
	store := NewSessionStore(rdb, time.Hour)
	ctx := context.Background()

	data := &SessionData{UserID: "u1", CSRFToken: "csrf"}
	require.NoError(t, store.Save(ctx, "s1", data))

	loaded, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "u1", loaded.UserID)
	assert.Equal(t, "csrf", loaded.CSRFToken)
	assert.True(t, mr.Exists("user_sessions:u1"))

	require.NoError(t, store.Delete(ctx, "s1", "u1"))
	_, err = store.Load(ctx, "s1")
	assert.True(t, errors.Is(err, ErrSessionNotFound))
	require.NoError(t, store.Delete(ctx, "s1", "u1"))
}

func TestSessionStore_Expires(t *testing.T) {
	mr, rdb := newTestRedis(t)
	store := NewSessionStore(rdb, time.Minute)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "s1", &SessionData{CSRFToken: "csrf"}))
	mr.FastForward(2 * time.Minute)

	_, err := store.Load(ctx, "s1")
	assert.True(t, errors.Is(err, ErrSessionNotFound))
}

func TestSessionStore_RevokeUser(t *testing.T) {
	_, rdb := newTestRedis(t)
	store := NewSessionStore(rdb, time.Hour)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, store.Save(ctx, id, &SessionData{UserID: "u1", CSRFToken: id}))
	}
	require.NoError(t, store.Save(ctx, "other", &SessionData{UserID: "u2", CSRFToken: "x"}))

	revoked, err := store.RevokeUser(ctx, "u1", "b")
	require.NoError(t, err)
	assert.Equal(t, 2, revoked)

	_, err = store.Load(ctx, "a")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = store.Load(ctx, "b")
	assert.NoError(t, err)
	_, err = store.Load(ctx, "other")
	assert.NoError(t, err)
}

func TestSession_EstablishRotatesID(t *testing.T) {
	_, rdb := newTestRedis(t)
	store := NewSessionStore(rdb, time.Hour)
	ctx := context.Background()

	sess, err := StartSession(ctx, store)
	require.NoError(t, err)
	guestID := sess.ID()
	_, ok := sess.UserID()
	assert.False(t, ok)

	userID := uuid.New()
	require.NoError(t, sess.Establish(ctx, userID))

	assert.NotEqual(t, guestID, sess.ID())
	got, ok := sess.UserID()
	assert.True(t, ok)
	assert.Equal(t, userID, got)

	_, err = store.Load(ctx, guestID)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	resumed, err := ResumeSession(ctx, store, sess.ID())
	require.NoError(t, err)
	got, _ = resumed.UserID()
	assert.Equal(t, userID, got)
}

func TestSession_RegenerateIDKeepsData(t *testing.T) {
	_, rdb := newTestRedis(t)
	store := NewSessionStore(rdb, time.Hour)
	ctx := context.Background()

	sess, err := StartSession(ctx, store)
	require.NoError(t, err)
	require.NoError(t, sess.Establish(ctx, uuid.New()))
	before := sess.ID()
	csrf := sess.CSRFToken()

	require.NoError(t, sess.RegenerateID(ctx))

	assert.NotEqual(t, before, sess.ID())
	assert.Equal(t, csrf, sess.CSRFToken())
	_, err = store.Load(ctx, before)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSession_InvalidateAndRegenerateToken(t *testing.T) {
	_, rdb := newTestRedis(t)
	store := NewSessionStore(rdb, time.Hour)
	ctx := context.Background()

	sess, err := StartSession(ctx, store)
	require.NoError(t, err)
	require.NoError(t, sess.Establish(ctx, uuid.New()))
	authID := sess.ID()
	csrf := sess.CSRFToken()

	require.NoError(t, sess.Invalidate(ctx))
	require.NoError(t, sess.RegenerateToken(ctx))

	_, ok := sess.UserID()
	assert.False(t, ok)
	assert.NotEqual(t, authID, sess.ID())
	assert.NotEqual(t, csrf, sess.CSRFToken())
	_, err = store.Load(ctx, authID)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	stored, err := store.Load(ctx, sess.ID())
	require.NoError(t, err)
	assert.Equal(t, sess.CSRFToken(), stored.CSRFToken)
	assert.Empty(t, stored.UserID)
}

func TestSession_EstablishFailureKeepsGuestState(t *testing.T) {
	mr, rdb := newTestRedis(t)
	store := NewSessionStore(rdb, time.Hour)
	ctx := context.Background()

	sess, err := StartSession(ctx, store)
	require.NoError(t, err)
	guestID := sess.ID()

	mr.SetError("READONLY You can't write against a read only replica.")
	err = sess.Establish(ctx, uuid.New())
	assert.Error(t, err)

	_, ok := sess.UserID()
	assert.False(t, ok)
	assert.Equal(t, guestID, sess.ID())
}

func TestCookieCodec_RoundTrip(t *testing.T) {
	codec := NewCookieCodec("cookie-secret", time.Hour)

	value, err := codec.Encode("session-id")
	require.NoError(t, err)

	id, err := codec.Decode(value)
	require.NoError(t, err)
	assert.Equal(t, "session-id", id)
}

func TestCookieCodec_RejectsForeignAndExpired(t *testing.T) {
	codec := NewCookieCodec("cookie-secret", time.Hour)
	forged, err := NewCookieCodec("other-secret", time.Hour).Encode("session-id")
	require.NoError(t, err)

	_, err = codec.Decode(forged)
	assert.Error(t, err)

	expiredCodec := NewCookieCodec("cookie-secret", time.Minute)
	expiredCodec.now = func() time.Time { return time.Now().Add(-time.Hour) }
	expired, err := expiredCodec.Encode("session-id")
	require.NoError(t, err)

	_, err = codec.Decode(expired)
	assert.Error(t, err)

	_, err = codec.Encode("")
	assert.Error(t, err)
}

func TestRandomString(t *testing.T) {
	a, err := RandomString(60)
	require.NoError(t, err)
	b, err := RandomString(60)
	require.NoError(t, err)

	assert.Len(t, a, 60)
	assert.NotEqual(t, a, b)
}
