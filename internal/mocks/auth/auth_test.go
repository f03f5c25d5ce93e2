package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/coverforge/authd/internal/domain/auth"
)

func TestMockIdentityProviderDeterministicSessions(t *testing.T) {
	prov := NewMockIdentityProvider()

	first, err := prov.SignInWithPassword(context.Background(), "mock.user@example.com", "pw")
	require.NoError(t, err)
	second, err := prov.Refresh(context.Background(), first.RefreshToken)
	require.NoError(t, err)

	assert.Equal(t, "access-1", first.AccessToken)
	assert.Equal(t, "access-2", second.AccessToken)
	assert.Equal(t, 1, prov.Calls("SignInWithPassword"))
	assert.Equal(t, 1, prov.Calls("Refresh"))
}

func TestMockIdentityProviderListeners(t *testing.T) {
	prov := NewMockIdentityProvider()

	var got []domainauth.EventKind
	unsub := prov.OnAuthStateChange(func(ev domainauth.Event) {
		got = append(got, ev.Kind)
	})
	require.Equal(t, 1, prov.ListenerCount())

	prov.Emit(domainauth.Event{Kind: domainauth.EventSignedIn})
	assert.Equal(t, []domainauth.EventKind{domainauth.EventSignedIn}, got)

	unsub()
	unsub() // idempotent
	assert.Equal(t, 0, prov.ListenerCount())

	prov.Emit(domainauth.Event{Kind: domainauth.EventSignedOut})
	assert.Len(t, got, 1)
}

func TestMemorySessionStoreRoundTrip(t *testing.T) {
	store := NewMemorySessionStore()

	_, err := store.Load(context.Background())
	require.ErrorIs(t, err, ErrNotFound)

	sess := domainauth.Session{
		AccessToken:  "a",
		RefreshToken: "r",
		ExpiresAt:    time.Now().Add(time.Hour),
	}
	require.NoError(t, store.Save(context.Background(), sess))

	loaded, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "a", loaded.AccessToken)

	require.NoError(t, store.Clear(context.Background()))
	_, err = store.Load(context.Background())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryDedupStoreMarksOnce(t *testing.T) {
	store := NewMemoryDedupStore()

	fresh, err := store.MarkProcessed(context.Background(), "evt-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, fresh)

	dup, err := store.MarkProcessed(context.Background(), "evt-1", time.Minute)
	require.NoError(t, err)
	assert.False(t, dup)
}
