package redis

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/coverforge/authd/internal/domain/auth"
	"github.com/coverforge/authd/internal/testutil"
)

func TestSessionStoreRoundTrip(t *testing.T) {
	client := testutil.SetupTestRedis(t)
	store := NewSessionStore(client)
	ctx := context.Background()

	sess := testutil.NewSession().ExpiresIn(time.Hour).Build()
	require.NoError(t, store.Save(ctx, sess))

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, sess.AccessToken, loaded.AccessToken)
	assert.Equal(t, sess.RefreshToken, loaded.RefreshToken)
	assert.Equal(t, sess.User.ID, loaded.User.ID)
	assert.WithinDuration(t, sess.ExpiresAt, loaded.ExpiresAt, time.Second)
}

func TestSessionStoreLoadEmpty(t *testing.T) {
	client := testutil.SetupTestRedis(t)
	store := NewSessionStore(client)

	_, err := store.Load(context.Background())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSessionStoreSaveRejectsInvalid(t *testing.T) {
	client := testutil.SetupTestRedis(t)
	store := NewSessionStore(client)
	ctx := context.Background()

	err := store.Save(ctx, testutil.NewSession().WithAccessToken("").Build())
	assert.Error(t, err)

	err = store.Save(ctx, testutil.NewSession().Expired().Build())
	assert.Error(t, err)
}

func TestSessionStoreSaveOverwrites(t *testing.T) {
	client := testutil.SetupTestRedis(t)
	store := NewSessionStore(client)
	ctx := context.Background()

	first := testutil.NewSession().ExpiresIn(time.Hour).Build()
	second := testutil.NewSession().ExpiresIn(2 * time.Hour).Build()
	require.NoError(t, store.Save(ctx, first))
	require.NoError(t, store.Save(ctx, second))

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, second.AccessToken, loaded.AccessToken)
}

func TestSessionStoreEntryTTLTracksExpiry(t *testing.T) {
	client := testutil.SetupTestRedis(t)
	store := NewSessionStore(client)
	ctx := context.Background()

	sess := testutil.NewSession().ExpiresIn(time.Hour).Build()
	require.NoError(t, store.Save(ctx, sess))

	ttl, err := client.TTL(ctx, DefaultSessionKey).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, 55*time.Minute)
	assert.LessOrEqual(t, ttl, time.Hour)
}

func TestSessionStoreLoadCleansUpExpiredEntry(t *testing.T) {
	client := testutil.SetupTestRedis(t)
	store := NewSessionStore(client)
	ctx := context.Background()

	// Simulate clock skew: an entry whose embedded expiry passed while the
	// Redis TTL is still running.
	stale := testutil.NewSession().Expired().Build()
	data, err := json.Marshal(stale)
	require.NoError(t, err)
	require.NoError(t, client.Set(ctx, DefaultSessionKey, data, time.Hour).Err())

	_, err = store.Load(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	exists, err := client.Exists(ctx, DefaultSessionKey).Result()
	require.NoError(t, err)
	assert.Zero(t, exists, "stale entry must be deleted on load")
}

func TestSessionStoreClear(t *testing.T) {
	client := testutil.SetupTestRedis(t)
	store := NewSessionStore(client)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, testutil.NewSession().ExpiresIn(time.Hour).Build()))
	require.NoError(t, store.Clear(ctx))
	_, err := store.Load(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	// Clearing an already-empty store is not an error.
	assert.NoError(t, store.Clear(ctx))
}

func TestSessionStoreCustomKey(t *testing.T) {
	client := testutil.SetupTestRedis(t)
	store := NewSessionStoreWithKey(client, "authd:test:session")
	ctx := context.Background()

	sess := testutil.NewSession().ExpiresIn(time.Hour).Build()
	require.NoError(t, store.Save(ctx, sess))

	exists, err := client.Exists(ctx, "authd:test:session").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), exists)

	var loaded domainauth.Session
	raw, err := client.Get(ctx, "authd:test:session").Result()
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(raw), &loaded))
	assert.Equal(t, sess.AccessToken, loaded.AccessToken)
}
