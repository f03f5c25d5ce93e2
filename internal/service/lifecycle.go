package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/coverforge/authd/internal/bus"
	domainauth "github.com/coverforge/authd/internal/domain/auth"
	apperrors "github.com/coverforge/authd/internal/errors"
	"github.com/coverforge/authd/internal/observability/statsd"
	"github.com/coverforge/authd/internal/ports"
)

// Default cadences for the background refresh loop.
const (
	defaultTickInterval = time.Minute
	defaultExpiryBuffer = 5 * time.Minute
	defaultKeepAlive    = 30 * time.Minute

	defaultRetryAttempts = 3
	defaultRetryBackoff  = time.Second
)

// LifecycleOptions groups dependencies for Lifecycle.
type LifecycleOptions struct {
	// Provider may be nil when the identity backend client could not be
	// constructed; the manager then runs in permanent degraded mode where
	// every operation reports unauthenticated without failing hard.
	Provider ports.IdentityProvider
	Sessions ports.SessionStore
	Bus      *bus.Bus

	// Profiles is optional; when set, user records are mirrored into the
	// profile table as a side effect of sign-in.
	Profiles ports.ProfileStore

	Logger  *slog.Logger
	Metrics statsd.Sink

	// Redirect guards OAuth redirect targets. Zero value rejects absolute URLs.
	Redirect RedirectPolicy

	// Overrides for tests.
	Clock         func() time.Time
	TickInterval  time.Duration
	ExpiryBuffer  time.Duration
	KeepAlive     time.Duration
	RetryAttempts int
	RetryBackoff  time.Duration
}

// Lifecycle is the single process-wide owner of the authentication session.
// It wraps the identity backend, owns the durable session mirror, runs the
// periodic refresh loop, and rebroadcasts state transitions on the bus.
//
// Construct exactly one per process and inject it into consumers; it is safe
// for concurrent use.
type Lifecycle struct {
	provider ports.IdentityProvider
	sessions ports.SessionStore
	profiles ports.ProfileStore
	bus      *bus.Bus
	logger   *slog.Logger
	metrics  statsd.Sink
	redirect RedirectPolicy
	clock    func() time.Time

	tickInterval time.Duration
	expiryBuffer time.Duration
	keepAlive    time.Duration
	retry        retryConfig

	initGroup singleflight.Group

	mu          sync.Mutex
	initialized bool
	degraded    bool
	session     *domainauth.Session
	lastChecked time.Time
	refreshing  bool
	unsubscribe func()
	stopLoop    context.CancelFunc
}

// NewLifecycle constructs the lifecycle manager.
func NewLifecycle(opts LifecycleOptions) (*Lifecycle, error) {
	if opts.Sessions == nil {
		return nil, errors.New("Sessions is required")
	}
	if opts.Bus == nil {
		return nil, errors.New("Bus is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "auth_lifecycle")

	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}

	l := &Lifecycle{
		provider:     opts.Provider,
		sessions:     opts.Sessions,
		profiles:     opts.Profiles,
		bus:          opts.Bus,
		logger:       logger,
		metrics:      opts.Metrics,
		redirect:     opts.Redirect,
		clock:        clock,
		tickInterval: orDuration(opts.TickInterval, defaultTickInterval),
		expiryBuffer: orDuration(opts.ExpiryBuffer, defaultExpiryBuffer),
		keepAlive:    orDuration(opts.KeepAlive, defaultKeepAlive),
		retry: retryConfig{
			Attempts: orInt(opts.RetryAttempts, defaultRetryAttempts),
			Backoff:  orDuration(opts.RetryBackoff, defaultRetryBackoff),
		},
	}
	return l, nil
}

func orDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func orInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// Initialize restores any existing session and registers the backend
// listener. It is idempotent: concurrent callers share one in-flight
// restoration, later callers get the memoized outcome, and at most one
// backend listener is ever registered. Returns true when initialization
// completed against a reachable backend, false in degraded mode.
func (l *Lifecycle) Initialize(ctx context.Context) (bool, error) {
	out, err, _ := l.initGroup.Do("initialize", func() (any, error) {
		return l.initialize(ctx), nil
	})
	if err != nil {
		return false, err
	}
	return out.(bool), nil
}

func (l *Lifecycle) initialize(ctx context.Context) bool {
	l.mu.Lock()
	if l.initialized {
		ok := !l.degraded
		l.mu.Unlock()
		return ok
	}
	l.mu.Unlock()

	if l.provider == nil {
		l.logger.Warn("identity backend unavailable; entering degraded mode")
		l.mu.Lock()
		l.initialized = true
		l.degraded = true
		l.mu.Unlock()
		return false
	}

	// One listener regardless of how many times Initialize runs.
	l.mu.Lock()
	if l.unsubscribe == nil {
		l.unsubscribe = l.provider.OnAuthStateChange(l.handleBackendEvent)
	}
	l.mu.Unlock()

	sess, fromBackend := l.restoreSession(ctx)
	l.mu.Lock()
	l.initialized = true
	l.mu.Unlock()

	if sess != nil {
		// A session recovered from the backend is not in the durable
		// mirror yet, so persist it on adoption.
		l.adoptSession(ctx, sess, domainauth.EventSignedIn, fromBackend)
		l.startRefreshLoop()
	}
	l.count("auth.initialize", map[string]string{"restored": boolTag(sess != nil)})
	return true
}

// restoreSession prefers the durable mirror, falling back to the backend's
// own view of the session. The second return reports whether the session
// came from the backend rather than the mirror.
func (l *Lifecycle) restoreSession(ctx context.Context) (*domainauth.Session, bool) {
	stored, err := l.sessions.Load(ctx)
	if err == nil && stored.IsValid(l.clock()) {
		return &stored, false
	}

	sess, err := l.provider.CurrentSession(ctx)
	if err != nil {
		l.logger.Warn("restore session from backend failed", "error", err)
		return nil, false
	}
	if sess == nil || !sess.IsValid(l.clock()) {
		return nil, false
	}
	return sess, true
}

// handleBackendEvent folds backend-originated transitions (e.g. an OAuth
// callback completing) into local state exactly like a direct sign-in.
func (l *Lifecycle) handleBackendEvent(ev domainauth.Event) {
	switch ev.Kind {
	case domainauth.EventSignedIn, domainauth.EventTokenRefreshed:
		if ev.Session == nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		l.adoptSession(ctx, ev.Session, ev.Kind, true)
		l.startRefreshLoop()
	case domainauth.EventSignedOut:
		// The backend already ended the session; tear down local state
		// without echoing the sign-out back at it.
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		l.forceSignOut(ctx)
	default:
	}
}

// SignUp creates an account. Backend rejections of the input (duplicate
// email, weak password) are terminal; anything else is retried with linear
// backoff before a transient failure is surfaced.
func (l *Lifecycle) SignUp(ctx context.Context, email, password string, metadata map[string]string) (*domainauth.User, *domainauth.Session, error) {
	if l.isDegraded() {
		return nil, nil, apperrors.BackendUnavailable("identity backend unavailable")
	}

	type signUpOut struct {
		user *domainauth.User
		sess *domainauth.Session
	}
	out, err := withRetry(ctx, l.retry, apperrors.IsValidation, func(ctx context.Context) (signUpOut, error) {
		user, sess, opErr := l.provider.SignUp(ctx, ports.SignUpInput{Email: email, Password: password, Metadata: metadata})
		return signUpOut{user: user, sess: sess}, opErr
	})
	if err != nil {
		l.count("auth.signup", map[string]string{"result": "error"})
		if apperrors.IsValidation(err) {
			return nil, nil, err
		}
		return nil, nil, apperrors.Wrap(err, apperrors.ErrCodeTransient, "Failed to sign up")
	}

	// Session is nil while email confirmation is pending.
	if out.sess != nil {
		l.adoptSession(ctx, out.sess, domainauth.EventSignedIn, true)
		l.startRefreshLoop()
	}
	l.count("auth.signup", map[string]string{"result": "ok", "confirmed": boolTag(out.sess != nil)})
	return out.user, out.sess, nil
}

// SignIn performs a password sign-in. Credential mismatches and unconfirmed
// emails are terminal; transient backend failures are retried.
func (l *Lifecycle) SignIn(ctx context.Context, email, password string) (*domainauth.Session, error) {
	if l.isDegraded() {
		return nil, apperrors.BackendUnavailable("identity backend unavailable")
	}

	terminal := func(err error) bool {
		return apperrors.IsValidation(err) || apperrors.IsAuthentication(err)
	}
	sess, err := withRetry(ctx, l.retry, terminal, func(ctx context.Context) (*domainauth.Session, error) {
		return l.provider.SignInWithPassword(ctx, email, password)
	})
	if err != nil {
		l.count("auth.signin", map[string]string{"result": "error"})
		if terminal(err) {
			return nil, err
		}
		return nil, apperrors.Wrap(err, apperrors.ErrCodeTransient, "Failed to sign in")
	}

	l.adoptSession(ctx, sess, domainauth.EventSignedIn, true)
	l.startRefreshLoop()
	l.count("auth.signin", map[string]string{"result": "ok"})
	return l.CurrentSession(), nil
}

// SignInWithOAuth builds the provider authorize URL for a redirect flow. The
// redirect target is checked against the redirect policy; the session
// materializes later through the backend listener when the callback lands.
func (l *Lifecycle) SignInWithOAuth(ctx context.Context, provider, redirectTo string) (string, error) {
	if l.isDegraded() {
		return "", apperrors.BackendUnavailable("identity backend unavailable")
	}
	if redirectTo != "" && !l.redirect.Allow(redirectTo) {
		return "", apperrors.ValidationField("redirect_to", "redirect target not allowed")
	}
	url, err := l.provider.OAuthURL(ctx, ports.OAuthInput{Provider: provider, RedirectTo: redirectTo})
	if err != nil {
		return "", err
	}
	return url, nil
}

// SignOut clears local state, notifies subscribers, and only then attempts
// remote invalidation. The remote call failing does not roll anything back;
// the UI must react instantly even when the backend round-trip is slow.
func (l *Lifecycle) SignOut(ctx context.Context) error {
	// (1) stop the refresh loop, (2) clear in-memory state.
	l.stopRefreshLoop()
	l.mu.Lock()
	prev := l.session
	l.session = nil
	l.lastChecked = time.Time{}
	l.mu.Unlock()

	// (3) local subscribers first.
	l.bus.Publish(bus.KindAuth, domainauth.Event{Kind: domainauth.EventSignedOut, At: l.clock()})

	// (4) durable storage, (5) remote invalidation. Failures surface but
	// local state stays signed out.
	var errs []error
	if err := l.sessions.Clear(ctx); err != nil {
		errs = append(errs, apperrors.Wrap(err, apperrors.ErrCodeInternal, "clear stored session"))
	}
	if prev != nil && l.provider != nil {
		if err := l.provider.SignOut(ctx, prev.AccessToken); err != nil {
			errs = append(errs, apperrors.Wrap(err, apperrors.ErrCodeTransient, "remote sign-out"))
		}
	}
	result := "ok"
	if len(errs) > 0 {
		result = "error"
	}
	l.count("auth.signout", map[string]string{"result": result})
	return errors.Join(errs...)
}

// ResetPassword requests a recovery email. Single attempt; the backend
// message is surfaced verbatim.
func (l *Lifecycle) ResetPassword(ctx context.Context, email, redirectTo string) error {
	if l.isDegraded() {
		return apperrors.BackendUnavailable("identity backend unavailable")
	}
	return l.provider.ResetPassword(ctx, email, redirectTo)
}

// UpdatePassword sets a new password for the current user. Single attempt.
func (l *Lifecycle) UpdatePassword(ctx context.Context, newPassword string) error {
	if l.isDegraded() {
		return apperrors.BackendUnavailable("identity backend unavailable")
	}
	sess := l.CurrentSession()
	if sess == nil {
		return apperrors.Unauthenticated("no active session")
	}
	if err := l.provider.UpdatePassword(ctx, sess.AccessToken, newPassword); err != nil {
		return err
	}
	l.bus.Publish(bus.KindAuth, domainauth.Event{Kind: domainauth.EventUserUpdated, Session: sess, At: l.clock()})
	return nil
}

// CurrentUser returns the in-memory user without any I/O.
func (l *Lifecycle) CurrentUser() *domainauth.User {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.session == nil {
		return nil
	}
	u := l.session.User
	return &u
}

// CurrentSession returns a copy of the in-memory session without any I/O.
func (l *Lifecycle) CurrentSession() *domainauth.Session {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.session == nil {
		return nil
	}
	s := *l.session
	return &s
}

// IsAuthenticated reports whether a currently valid session exists.
func (l *Lifecycle) IsAuthenticated() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.session != nil && l.session.IsValid(l.clock())
}

// IsSessionExpiringSoon reports whether the session expires within buffer
// (default 5 minutes). True when no session exists at all, so callers that
// need a stable session for the duration of an operation block early.
func (l *Lifecycle) IsSessionExpiringSoon(buffer time.Duration) bool {
	if buffer <= 0 {
		buffer = defaultExpiryBuffer
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.session == nil {
		return true
	}
	return l.session.ExpiresWithin(l.clock(), buffer)
}

// EnsureValidSession returns the current session unchanged when it passes
// the validity invariant, otherwise attempts exactly one refresh.
func (l *Lifecycle) EnsureValidSession(ctx context.Context) (*domainauth.Session, error) {
	l.mu.Lock()
	if l.session != nil && l.session.IsValid(l.clock()) {
		s := *l.session
		l.mu.Unlock()
		return &s, nil
	}
	l.mu.Unlock()
	return l.RefreshSession(ctx)
}

// RefreshSession obtains a fresh session. Concurrent callers collapse onto a
// single logical refresh: anyone arriving while one is outstanding gets the
// currently-known session immediately instead of issuing a duplicate call.
//
// Failure handling: an invalid/expired refresh token forces a local
// sign-out; a transient failure keeps the existing session and returns it
// alongside the error (fail open); anything else surfaces as a refresh error
// with state preserved.
func (l *Lifecycle) RefreshSession(ctx context.Context) (*domainauth.Session, error) {
	if l.isDegraded() {
		return nil, apperrors.BackendUnavailable("identity backend unavailable")
	}

	l.mu.Lock()
	if l.refreshing {
		var cur *domainauth.Session
		if l.session != nil {
			s := *l.session
			cur = &s
		}
		l.mu.Unlock()
		return cur, nil
	}
	l.refreshing = true
	var refreshToken string
	if l.session != nil {
		refreshToken = l.session.RefreshToken
	}
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		l.refreshing = false
		l.mu.Unlock()
	}()

	// The backend may have auto-refreshed on its side; adopt its session
	// directly when it is independently valid.
	if backendSess, err := l.provider.CurrentSession(ctx); err == nil &&
		backendSess != nil && backendSess.IsValid(l.clock()) {
		l.adoptSession(ctx, backendSess, domainauth.EventTokenRefreshed, true)
		l.count("auth.refresh", map[string]string{"result": "adopted"})
		return l.CurrentSession(), nil
	}

	if refreshToken == "" {
		return nil, apperrors.Unauthenticated("no session to refresh")
	}

	fresh, err := l.provider.Refresh(ctx, refreshToken)
	if err != nil {
		switch {
		case apperrors.IsSessionInvalid(err):
			// Unrecoverable: forced local sign-out.
			l.count("auth.refresh", map[string]string{"result": "invalid"})
			l.forceSignOut(ctx)
			return nil, err
		case apperrors.IsTransient(err):
			l.count("auth.refresh", map[string]string{"result": "transient"})
			l.logger.Warn("transient refresh failure; keeping existing session", "error", err)
			return l.CurrentSession(), err
		default:
			l.count("auth.refresh", map[string]string{"result": "error"})
			return l.CurrentSession(), apperrors.Wrap(err, apperrors.ErrCodeInternal, "refresh session")
		}
	}

	l.adoptSession(ctx, fresh, domainauth.EventTokenRefreshed, true)
	l.count("auth.refresh", map[string]string{"result": "ok"})
	return l.CurrentSession(), nil
}

// forceSignOut clears all local state after an unrecoverable refresh
// failure. Unlike SignOut it never calls the backend: the remote session is
// already gone.
func (l *Lifecycle) forceSignOut(ctx context.Context) {
	l.stopRefreshLoop()
	l.mu.Lock()
	l.session = nil
	l.lastChecked = time.Time{}
	l.mu.Unlock()

	l.bus.Publish(bus.KindAuth, domainauth.Event{Kind: domainauth.EventSignedOut, At: l.clock()})
	if err := l.sessions.Clear(ctx); err != nil {
		l.logger.Warn("clear stored session after forced sign-out failed", "error", err)
	}
}

/// adoptSession installs a session as current state: in-memory, durable
// mirror, profile table, and (optionally) a bus notification.
func (l *Lifecycle) adoptSession(ctx context.Context, sess *domainauth.Session, kind domainauth.EventKind, persist bool) {
	now := l.clock()
	l.mu.Lock()
	s := *sess
	l.session = &s
	l.lastChecked = now
	l.mu.Unlock()

	if persist {
		if err := l.sessions.Save(ctx, s); err != nil {
			l.logger.Warn("persist session failed", "error", err)
		}
	}
	if l.profiles != nil && s.User.ID != "" {
		if err := l.profiles.Upsert(ctx, s.User); err != nil {
			l.logger.Warn("profile mirror upsert failed", "user_id", s.User.ID, "error", err)
		}
	}

	l.bus.Publish(bus.KindAuth, domainauth.Event{Kind: kind, Session: &s, At: now})
}

// startRefreshLoop launches the background tick loop, cancelling any loop
// already running so at most one is ever active.
func (l *Lifecycle) startRefreshLoop() {
	ctx, cancel := context.WithCancel(context.Background())

	l.mu.Lock()
	prev := l.stopLoop
	l.stopLoop = cancel
	l.mu.Unlock()
	if prev != nil {
		prev()
	}

	go l.refreshLoop(ctx)
}

// stopRefreshLoop cancels the running loop. It must not block on loop exit:
// a forced sign-out can originate from inside the loop's own tick.
func (l *Lifecycle) stopRefreshLoop() {
	l.mu.Lock()
	cancel := l.stopLoop
	l.stopLoop = nil
	l.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// refreshLoop checks two independent conditions each tick: the session
// nearing expiry, and the coarse keep-alive window since the last successful
// check (catching backend-side revocation even for long-lived tokens).
func (l *Lifecycle) refreshLoop(ctx context.Context) {
	ticker := time.NewTicker(l.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.mu.Lock()
			sess := l.session
			lastChecked := l.lastChecked
			l.mu.Unlock()
			if sess == nil {
				continue
			}

			now := l.clock()
			due := sess.ExpiresWithin(now, l.expiryBuffer) || now.Sub(lastChecked) > l.keepAlive
			if !due {
				continue
			}

			if _, err := l.RefreshSession(ctx); err != nil {
				l.logger.Warn("background refresh failed", "error", err)
			}
		}
	}
}

// Close stops the refresh loop and unregisters the backend listener.
func (l *Lifecycle) Close() {
	l.stopRefreshLoop()
	l.mu.Lock()
	unsub := l.unsubscribe
	l.unsubscribe = nil
	l.mu.Unlock()
	if unsub != nil {
		unsub()
	}
}

func (l *Lifecycle) isDegraded() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.degraded || l.provider == nil
}

func (l *Lifecycle) count(name string, tags map[string]string) {
	if l.metrics == nil {
		return
	}
	l.metrics.Count(name, 1, tags)
}

func boolTag(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
