package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coverforge/authd/internal/bus"
	domainauth "github.com/coverforge/authd/internal/domain/auth"
	apperrors "github.com/coverforge/authd/internal/errors"
	mocks "github.com/coverforge/authd/internal/mocks/auth"
	"github.com/coverforge/authd/internal/ports"
	"github.com/coverforge/authd/internal/testutil"
)

type lifecycleFixture struct {
	lifecycle *Lifecycle
	provider  *mocks.MockIdentityProvider
	sessions  *mocks.MemorySessionStore
	profiles  *mocks.MemoryProfileStore
	bus       *bus.Bus
}

func newLifecycleFixture(t *testing.T, mutate func(*LifecycleOptions)) *lifecycleFixture {
	t.Helper()

	f := &lifecycleFixture{
		provider: mocks.NewMockIdentityProvider(),
		sessions: mocks.NewMemorySessionStore(),
		profiles: mocks.NewMemoryProfileStore(),
		bus:      bus.New(),
	}

	opts := LifecycleOptions{
		Provider:     f.provider,
		Sessions:     f.sessions,
		Bus:          f.bus,
		Profiles:     f.profiles,
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		RetryBackoff: time.Millisecond,
	}
	if mutate != nil {
		mutate(&opts)
	}

	lc, err := NewLifecycle(opts)
	require.NoError(t, err)
	f.lifecycle = lc
	t.Cleanup(lc.Close)
	return f
}

// recordEvents captures auth-channel events in order.
func recordEvents(f *lifecycleFixture) *[]domainauth.EventKind {
	var mu sync.Mutex
	events := &[]domainauth.EventKind{}
	f.bus.Subscribe(bus.KindAuth, func(ev domainauth.Event) {
		mu.Lock()
		*events = append(*events, ev.Kind)
		mu.Unlock()
	})
	return events
}

func TestNewLifecycleRequiresSessionsAndBus(t *testing.T) {
	_, err := NewLifecycle(LifecycleOptions{Bus: bus.New()})
	assert.Error(t, err)

	_, err = NewLifecycle(LifecycleOptions{Sessions: mocks.NewMemorySessionStore()})
	assert.Error(t, err)
}

func TestInitializeDegradedWithoutProvider(t *testing.T) {
	f := newLifecycleFixture(t, func(o *LifecycleOptions) {
		o.Provider = nil
	})

	ok, err := f.lifecycle.Initialize(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, f.lifecycle.IsAuthenticated())

	// Every mutating operation reports the backend as unavailable, without
	// panicking or retrying construction.
	_, signInErr := f.lifecycle.SignIn(context.Background(), "a@b.c", "pw")
	assert.True(t, apperrors.IsBackendUnavailable(signInErr))

	_, _, signUpErr := f.lifecycle.SignUp(context.Background(), "a@b.c", "pw", nil)
	assert.True(t, apperrors.IsBackendUnavailable(signUpErr))

	_, refreshErr := f.lifecycle.RefreshSession(context.Background())
	assert.True(t, apperrors.IsBackendUnavailable(refreshErr))
}

func TestInitializeRestoresFromDurableStore(t *testing.T) {
	f := newLifecycleFixture(t, nil)
	stored := testutil.NewSession().ExpiresIn(time.Hour).Build()
	require.NoError(t, f.sessions.Save(context.Background(), stored))

	events := recordEvents(f)

	ok, err := f.lifecycle.Initialize(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, f.lifecycle.IsAuthenticated())

	current := f.lifecycle.CurrentSession()
	require.NotNil(t, current)
	assert.Equal(t, stored.AccessToken, current.AccessToken)
	assert.Equal(t, []domainauth.EventKind{domainauth.EventSignedIn}, *events)
}

func TestInitializeFallsBackToBackendSession(t *testing.T) {
	f := newLifecycleFixture(t, nil)
	backend := testutil.NewSession().ExpiresIn(time.Hour).Build()
	f.provider.CurrentSessionFunc = func(context.Context) (*domainauth.Session, error) {
		return &backend, nil
	}

	ok, err := f.lifecycle.Initialize(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)

	current := f.lifecycle.CurrentSession()
	require.NotNil(t, current)
	assert.Equal(t, backend.AccessToken, current.AccessToken)

	// The backend copy was not in the durable mirror; adoption writes it
	// through so the next restart restores without a backend round trip.
	stored := f.sessions.Stored()
	require.NotNil(t, stored)
	assert.Equal(t, backend.AccessToken, stored.AccessToken)
}

func TestInitializeIgnoresExpiredStoredSession(t *testing.T) {
	f := newLifecycleFixture(t, nil)
	expired := testutil.NewSession().Expired().Build()
	require.NoError(t, f.sessions.Save(context.Background(), expired))

	ok, err := f.lifecycle.Initialize(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.False(t, f.lifecycle.IsAuthenticated())
	assert.Nil(t, f.lifecycle.CurrentSession())
}

func TestInitializeConcurrentRegistersOneListener(t *testing.T) {
	f := newLifecycleFixture(t, nil)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = f.lifecycle.Initialize(context.Background())
		}()
	}
	wg.Wait()

	// Later, sequential calls are memoized no-ops too.
	_, _ = f.lifecycle.Initialize(context.Background())

	assert.Equal(t, 1, f.provider.ListenerCount())
	assert.Equal(t, 1, f.provider.Calls("OnAuthStateChange"))
}

func TestSignInSuccessAdoptsSession(t *testing.T) {
	f := newLifecycleFixture(t, nil)
	events := recordEvents(f)

	sess, err := f.lifecycle.SignIn(context.Background(), "user@example.com", "pw")
	require.NoError(t, err)
	require.NotNil(t, sess)

	assert.True(t, f.lifecycle.IsAuthenticated())
	assert.NotNil(t, f.sessions.Stored(), "session must be persisted")
	require.Len(t, f.profiles.Upserted(), 1)
	assert.Equal(t, sess.User.ID, f.profiles.Upserted()[0].ID)
	assert.Equal(t, []domainauth.EventKind{domainauth.EventSignedIn}, *events)
}

func TestSignInWrongCredentialsNotRetried(t *testing.T) {
	f := newLifecycleFixture(t, nil)
	f.provider.SignInFunc = func(context.Context, string, string) (*domainauth.Session, error) {
		return nil, apperrors.Authentication("Invalid login credentials")
	}

	_, err := f.lifecycle.SignIn(context.Background(), "user@example.com", "wrong")
	require.Error(t, err)
	assert.True(t, apperrors.IsAuthentication(err))
	assert.Equal(t, 1, f.provider.Calls("SignInWithPassword"), "credential errors are terminal")
	assert.False(t, f.lifecycle.IsAuthenticated())
}

func TestSignInTransientFailureRetriedThenWrapped(t *testing.T) {
	f := newLifecycleFixture(t, nil)
	f.provider.SignInFunc = func(context.Context, string, string) (*domainauth.Session, error) {
		return nil, apperrors.Transient("connection reset")
	}

	_, err := f.lifecycle.SignIn(context.Background(), "user@example.com", "pw")
	require.Error(t, err)
	assert.True(t, apperrors.IsTransient(err))
	assert.Contains(t, err.Error(), "Failed to sign in")
	assert.Equal(t, 3, f.provider.Calls("SignInWithPassword"))
}

func TestSignInRecoversAfterTransientFailure(t *testing.T) {
	f := newLifecycleFixture(t, nil)
	attempts := 0
	f.provider.SignInFunc = func(ctx context.Context, email, password string) (*domainauth.Session, error) {
		attempts++
		if attempts < 2 {
			return nil, apperrors.Transient("flaky")
		}
		return f.provider.MintSession(), nil
	}

	sess, err := f.lifecycle.SignIn(context.Background(), "user@example.com", "pw")
	require.NoError(t, err)
	assert.NotNil(t, sess)
	assert.Equal(t, 2, attempts)
}

func TestSignUpWeakPasswordNotRetried(t *testing.T) {
	f := newLifecycleFixture(t, nil)
	calls := 0
	f.provider.SignUpFunc = func(ctx context.Context, in ports.SignUpInput) (*domainauth.User, *domainauth.Session, error) {
		calls++
		return nil, nil, apperrors.ValidationField("password", "Password should be at least 8 characters")
	}

	_, _, err := f.lifecycle.SignUp(context.Background(), "new@example.com", "short", nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
	assert.Equal(t, "password", apperrors.GetField(err))
	assert.Equal(t, 1, calls)
}

func TestSignUpPendingConfirmationDoesNotAuthenticate(t *testing.T) {
	f := newLifecycleFixture(t, nil)
	user := testutil.NewUser().Build()
	f.provider.SignUpFunc = func(ctx context.Context, in ports.SignUpInput) (*domainauth.User, *domainauth.Session, error) {
		return &user, nil, nil
	}
	events := recordEvents(f)

	gotUser, gotSess, err := f.lifecycle.SignUp(context.Background(), user.Email, "strongpassword", nil)
	require.NoError(t, err)
	assert.Equal(t, user.ID, gotUser.ID)
	assert.Nil(t, gotSess)
	assert.False(t, f.lifecycle.IsAuthenticated())
	assert.Empty(t, *events, "no sign-in event while confirmation is pending")
}

func TestSignUpConfirmedAdoptsSession(t *testing.T) {
	f := newLifecycleFixture(t, nil)

	user, sess, err := f.lifecycle.SignUp(context.Background(), "new@example.com", "strongpassword", map[string]string{"plan": "free"})
	require.NoError(t, err)
	require.NotNil(t, user)
	require.NotNil(t, sess)
	assert.True(t, f.lifecycle.IsAuthenticated())
}

func TestSignInWithOAuthRejectsForeignRedirect(t *testing.T) {
	f := newLifecycleFixture(t, func(o *LifecycleOptions) {
		o.Redirect = RedirectPolicy{SiteDomain: "app.coverforge.io"}
	})

	_, err := f.lifecycle.SignInWithOAuth(context.Background(), "google", "https://evil.com/steal")
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
	assert.Equal(t, "redirect_to", apperrors.GetField(err))
	assert.Equal(t, 0, f.provider.Calls("OAuthURL"), "provider must not be reached")
}

func TestSignInWithOAuthBuildsURL(t *testing.T) {
	f := newLifecycleFixture(t, func(o *LifecycleOptions) {
		o.Redirect = RedirectPolicy{SiteDomain: "app.coverforge.io"}
	})

	url, err := f.lifecycle.SignInWithOAuth(context.Background(), "google", "/covers")
	require.NoError(t, err)
	assert.Contains(t, url, "provider=google")
	assert.False(t, f.lifecycle.IsAuthenticated(), "session materializes later via the callback")
}

func TestOAuthCallbackEventAdoptsSession(t *testing.T) {
	f := newLifecycleFixture(t, nil)
	_, err := f.lifecycle.Initialize(context.Background())
	require.NoError(t, err)

	sess := testutil.NewSession().ExpiresIn(time.Hour).Build()
	f.provider.Emit(domainauth.Event{Kind: domainauth.EventSignedIn, Session: &sess, At: time.Now()})

	assert.True(t, f.lifecycle.IsAuthenticated())
	current := f.lifecycle.CurrentSession()
	require.NotNil(t, current)
	assert.Equal(t, sess.AccessToken, current.AccessToken)
	assert.NotNil(t, f.sessions.Stored())
}

func TestBackendSignOutEventClearsLocalStateOnly(t *testing.T) {
	f := newLifecycleFixture(t, nil)
	_, err := f.lifecycle.Initialize(context.Background())
	require.NoError(t, err)
	_, err = f.lifecycle.SignIn(context.Background(), "user@example.com", "pw")
	require.NoError(t, err)

	events := recordEvents(f)
	f.provider.Emit(domainauth.Event{Kind: domainauth.EventSignedOut, At: time.Now()})

	assert.False(t, f.lifecycle.IsAuthenticated())
	assert.Nil(t, f.lifecycle.CurrentSession())
	assert.Nil(t, f.sessions.Stored())
	assert.Contains(t, *events, domainauth.EventSignedOut)
	// The backend originated the sign-out; it must not be echoed back.
	assert.Equal(t, 0, f.provider.Calls("SignOut"))
}

func TestCurrentUserAndSessionAreCopies(t *testing.T) {
	f := newLifecycleFixture(t, nil)
	_, err := f.lifecycle.SignIn(context.Background(), "user@example.com", "pw")
	require.NoError(t, err)

	u := f.lifecycle.CurrentUser()
	require.NotNil(t, u)
	u.Email = "mutated@example.com"
	assert.NotEqual(t, "mutated@example.com", f.lifecycle.CurrentUser().Email)

	s := f.lifecycle.CurrentSession()
	require.NotNil(t, s)
	s.AccessToken = "mutated"
	assert.NotEqual(t, "mutated", f.lifecycle.CurrentSession().AccessToken)
}

func TestIsSessionExpiringSoon(t *testing.T) {
	f := newLifecycleFixture(t, nil)

	t.Run("no session", func(t *testing.T) {
		assert.True(t, f.lifecycle.IsSessionExpiringSoon(0))
	})

	t.Run("expiring in four minutes", func(t *testing.T) {
		sess := testutil.NewSession().ExpiresIn(4 * time.Minute).Build()
		f.provider.SignInFunc = func(context.Context, string, string) (*domainauth.Session, error) {
			return &sess, nil
		}
		_, err := f.lifecycle.SignIn(context.Background(), "u@e.c", "pw")
		require.NoError(t, err)
		assert.True(t, f.lifecycle.IsSessionExpiringSoon(0))
	})

	t.Run("expiring in ten minutes", func(t *testing.T) {
		sess := testutil.NewSession().ExpiresIn(10 * time.Minute).Build()
		f.provider.SignInFunc = func(context.Context, string, string) (*domainauth.Session, error) {
			return &sess, nil
		}
		_, err := f.lifecycle.SignIn(context.Background(), "u@e.c", "pw")
		require.NoError(t, err)
		assert.False(t, f.lifecycle.IsSessionExpiringSoon(0))
		assert.True(t, f.lifecycle.IsSessionExpiringSoon(15*time.Minute))
	})
}

// recordingStore tracks operation order for sign-out sequencing assertions.
type recordingStore struct {
	mu       sync.Mutex
	sequence *[]string
	inner    *mocks.MemorySessionStore
}

func (r *recordingStore) Save(ctx context.Context, sess domainauth.Session) error {
	return r.inner.Save(ctx, sess)
}

func (r *recordingStore) Load(ctx context.Context) (domainauth.Session, error) {
	return r.inner.Load(ctx)
}

func (r *recordingStore) Clear(ctx context.Context) error {
	r.mu.Lock()
	*r.sequence = append(*r.sequence, "store_clear")
	r.mu.Unlock()
	return r.inner.Clear(ctx)
}

func TestSignOutOrderingAndFailureIsolation(t *testing.T) {
	var sequence []string
	store := &recordingStore{sequence: &sequence, inner: mocks.NewMemorySessionStore()}

	f := newLifecycleFixture(t, func(o *LifecycleOptions) {
		o.Sessions = store
	})
	f.bus.Subscribe(bus.KindAuth, func(ev domainauth.Event) {
		if ev.Kind == domainauth.EventSignedOut {
			sequence = append(sequence, "notify")
		}
	})
	f.provider.SignOutFunc = func(context.Context, string) error {
		sequence = append(sequence, "backend")
		return apperrors.Transient("backend timeout")
	}

	_, err := f.lifecycle.SignIn(context.Background(), "user@example.com", "pw")
	require.NoError(t, err)

	err = f.lifecycle.SignOut(context.Background())
	require.Error(t, err, "remote failure surfaces to the caller")

	// Local effects complete before the remote call, and survive its failure.
	assert.Equal(t, []string{"notify", "store_clear", "backend"}, sequence)
	assert.False(t, f.lifecycle.IsAuthenticated())
	assert.Nil(t, f.lifecycle.CurrentSession())
}

func TestSignOutWithoutSessionIsQuiet(t *testing.T) {
	f := newLifecycleFixture(t, nil)

	err := f.lifecycle.SignOut(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, f.provider.Calls("SignOut"), "no token, no remote call")
}

func TestUpdatePasswordRequiresSession(t *testing.T) {
	f := newLifecycleFixture(t, nil)

	err := f.lifecycle.UpdatePassword(context.Background(), "newpassword")
	require.Error(t, err)
	assert.True(t, apperrors.IsUnauthenticated(err))
}

func TestUpdatePasswordPublishesUserUpdated(t *testing.T) {
	f := newLifecycleFixture(t, nil)
	_, err := f.lifecycle.SignIn(context.Background(), "user@example.com", "pw")
	require.NoError(t, err)

	events := recordEvents(f)
	require.NoError(t, f.lifecycle.UpdatePassword(context.Background(), "newpassword"))
	assert.Equal(t, []domainauth.EventKind{domainauth.EventUserUpdated}, *events)
}

func TestRefreshSessionInvalidTokenForcesSignOut(t *testing.T) {
	f := newLifecycleFixture(t, nil)
	_, err := f.lifecycle.SignIn(context.Background(), "user@example.com", "pw")
	require.NoError(t, err)

	events := recordEvents(f)
	f.provider.RefreshFunc = func(context.Context, string) (*domainauth.Session, error) {
		return nil, apperrors.SessionInvalid("Invalid Refresh Token: Already Used")
	}

	sess, err := f.lifecycle.RefreshSession(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.IsSessionInvalid(err))
	assert.Nil(t, sess)
	assert.False(t, f.lifecycle.IsAuthenticated())
	assert.Nil(t, f.sessions.Stored(), "durable mirror cleared")
	assert.Equal(t, []domainauth.EventKind{domainauth.EventSignedOut}, *events)
	assert.Equal(t, 0, f.provider.Calls("SignOut"), "remote session is already gone")
}

func TestRefreshSessionTransientFailureFailsOpen(t *testing.T) {
	f := newLifecycleFixture(t, nil)
	signed, err := f.lifecycle.SignIn(context.Background(), "user@example.com", "pw")
	require.NoError(t, err)

	f.provider.RefreshFunc = func(context.Context, string) (*domainauth.Session, error) {
		return nil, apperrors.Transient("identity backend 503")
	}

	sess, err := f.lifecycle.RefreshSession(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.IsTransient(err))
	require.NotNil(t, sess, "existing session kept on transient failure")
	assert.Equal(t, signed.AccessToken, sess.AccessToken)
	assert.True(t, f.lifecycle.IsAuthenticated())
}

func TestRefreshSessionSuccessRotatesTokens(t *testing.T) {
	f := newLifecycleFixture(t, nil)
	signed, err := f.lifecycle.SignIn(context.Background(), "user@example.com", "pw")
	require.NoError(t, err)

	events := recordEvents(f)
	sess, err := f.lifecycle.RefreshSession(context.Background())
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.NotEqual(t, signed.AccessToken, sess.AccessToken)
	assert.Equal(t, []domainauth.EventKind{domainauth.EventTokenRefreshed}, *events)
	stored := f.sessions.Stored()
	require.NotNil(t, stored)
	assert.Equal(t, sess.AccessToken, stored.AccessToken)
}

func TestRefreshSessionAdoptsBackendAutoRefresh(t *testing.T) {
	f := newLifecycleFixture(t, nil)
	_, err := f.lifecycle.SignIn(context.Background(), "user@example.com", "pw")
	require.NoError(t, err)

	backend := testutil.NewSession().ExpiresIn(2 * time.Hour).Build()
	f.provider.CurrentSessionFunc = func(context.Context) (*domainauth.Session, error) {
		return &backend, nil
	}

	sess, err := f.lifecycle.RefreshSession(context.Background())
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Equal(t, backend.AccessToken, sess.AccessToken)
	assert.Equal(t, 0, f.provider.Calls("Refresh"), "no refresh grant needed")
}

func TestRefreshSessionWithoutSession(t *testing.T) {
	f := newLifecycleFixture(t, nil)

	_, err := f.lifecycle.RefreshSession(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.IsUnauthenticated(err))
}

func TestRefreshSessionConcurrentCallsCollapse(t *testing.T) {
	f := newLifecycleFixture(t, nil)
	_, err := f.lifecycle.SignIn(context.Background(), "user@example.com", "pw")
	require.NoError(t, err)

	entered := make(chan struct{})
	release := make(chan struct{})
	f.provider.RefreshFunc = func(context.Context, string) (*domainauth.Session, error) {
		close(entered)
		<-release
		return f.provider.MintSession(), nil
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = f.lifecycle.RefreshSession(context.Background())
	}()
	<-entered

	// Callers arriving mid-refresh get the currently known session
	// immediately instead of issuing a second grant.
	sess, err := f.lifecycle.RefreshSession(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, sess)

	close(release)
	<-done
	assert.Equal(t, 1, f.provider.Calls("Refresh"))
}

func TestEnsureValidSessionSkipsRefreshWhenValid(t *testing.T) {
	f := newLifecycleFixture(t, nil)
	signed, err := f.lifecycle.SignIn(context.Background(), "user@example.com", "pw")
	require.NoError(t, err)

	sess, err := f.lifecycle.EnsureValidSession(context.Background())
	require.NoError(t, err)
	assert.Equal(t, signed.AccessToken, sess.AccessToken)
	assert.Equal(t, 0, f.provider.Calls("Refresh"))
}

func TestEnsureValidSessionRefreshesExpired(t *testing.T) {
	f := newLifecycleFixture(t, nil)
	expired := testutil.NewSession().Expired().Build()
	f.provider.SignInFunc = func(context.Context, string, string) (*domainauth.Session, error) {
		return &expired, nil
	}
	_, err := f.lifecycle.SignIn(context.Background(), "user@example.com", "pw")
	require.NoError(t, err)
	f.provider.SignInFunc = nil

	sess, err := f.lifecycle.EnsureValidSession(context.Background())
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.NotEqual(t, expired.AccessToken, sess.AccessToken)
	assert.Equal(t, 1, f.provider.Calls("Refresh"))
}

func TestBackgroundLoopRefreshesExpiringSession(t *testing.T) {
	f := newLifecycleFixture(t, func(o *LifecycleOptions) {
		o.TickInterval = 10 * time.Millisecond
		o.ExpiryBuffer = time.Minute
	})

	sess := testutil.NewSession().ExpiresIn(30 * time.Second).Build()
	f.provider.SignInFunc = func(context.Context, string, string) (*domainauth.Session, error) {
		return &sess, nil
	}
	_, err := f.lifecycle.SignIn(context.Background(), "user@example.com", "pw")
	require.NoError(t, err)
	f.provider.SignInFunc = nil

	require.Eventually(t, func() bool {
		current := f.lifecycle.CurrentSession()
		return current != nil && current.AccessToken != sess.AccessToken
	}, 2*time.Second, 10*time.Millisecond, "loop should refresh a session inside the expiry buffer")
}

func TestBackgroundLoopForcedSignOutOnInvalidToken(t *testing.T) {
	f := newLifecycleFixture(t, func(o *LifecycleOptions) {
		o.TickInterval = 10 * time.Millisecond
		o.ExpiryBuffer = time.Minute
	})

	sess := testutil.NewSession().ExpiresIn(30 * time.Second).Build()
	f.provider.SignInFunc = func(context.Context, string, string) (*domainauth.Session, error) {
		return &sess, nil
	}
	f.provider.RefreshFunc = func(context.Context, string) (*domainauth.Session, error) {
		return nil, apperrors.SessionInvalid("Invalid Refresh Token")
	}
	_, err := f.lifecycle.SignIn(context.Background(), "user@example.com", "pw")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return !f.lifecycle.IsAuthenticated()
	}, 2*time.Second, 10*time.Millisecond, "invalid refresh token must force a sign-out")
}
