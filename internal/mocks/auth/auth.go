package auth

// Package auth contains simple hand-written test doubles for auth ports.
// These are lightweight and suitable for unit tests without codegen; they
// track call counts so tests can assert retry and collapse behavior.

import (
	"context"
	"fmt"
	"sync"
	"time"

	domainauth "github.com/coverforge/authd/internal/domain/auth"
	"github.com/coverforge/authd/internal/ports"
)

// Ensure compile-time conformance to ports.
var (
	_ ports.IdentityProvider   = (*MockIdentityProvider)(nil)
	_ ports.SessionStore       = (*MemorySessionStore)(nil)
	_ ports.ProfileStore       = (*MemoryProfileStore)(nil)
	_ ports.DedupStore         = (*MemoryDedupStore)(nil)
	_ ports.SubscriptionSource = (*StubSubscriptionSource)(nil)
)

// MockIdentityProvider simulates an identity backend with deterministic
// sessions. Set a *Func field to override a method; unset methods fall back
// to minting sessions for DefaultUser.
type MockIdentityProvider struct {
	CurrentSessionFunc func(ctx context.Context) (*domainauth.Session, error)
	SignUpFunc         func(ctx context.Context, in ports.SignUpInput) (*domainauth.User, *domainauth.Session, error)
	SignInFunc         func(ctx context.Context, email, password string) (*domainauth.Session, error)
	OAuthURLFunc       func(ctx context.Context, in ports.OAuthInput) (string, error)
	ExchangeCodeFunc   func(ctx context.Context, code, state string) (*domainauth.Session, error)
	SignOutFunc        func(ctx context.Context, accessToken string) error
	ResetPasswordFunc  func(ctx context.Context, email, redirectTo string) error
	UpdatePasswordFunc func(ctx context.Context, accessToken, newPassword string) error
	RefreshFunc        func(ctx context.Context, refreshToken string) (*domainauth.Session, error)
	UserFunc           func(ctx context.Context, accessToken string) (*domainauth.User, error)

	// DefaultUser seeds minted sessions when no override is set.
	DefaultUser domainauth.User

	// SessionTTL controls minted session lifetime; defaults to one hour.
	SessionTTL time.Duration

	mu           sync.Mutex
	calls        map[string]int
	mintCount    int
	nextListener int
	listeners    map[int]func(domainauth.Event)
}

// NewMockIdentityProvider creates a MockIdentityProvider with sensible defaults.
func NewMockIdentityProvider() *MockIdentityProvider {
	return &MockIdentityProvider{
		DefaultUser: domainauth.User{
			ID:          "mock-user-1",
			Email:       "mock.user@example.com",
			DisplayName: "Mock User",
		},
		calls:     make(map[string]int),
		listeners: make(map[int]func(domainauth.Event)),
	}
}

// Calls returns how many times the named method ran (e.g. "Refresh").
func (m *MockIdentityProvider) Calls(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[method]
}

// ListenerCount reports currently registered state-change listeners.
func (m *MockIdentityProvider) ListenerCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.listeners)
}

// Emit delivers a backend event to every registered listener, the way a real
// backend would after an asynchronous OAuth callback.
func (m *MockIdentityProvider) Emit(ev domainauth.Event) {
	m.mu.Lock()
	fns := make([]func(domainauth.Event), 0, len(m.listeners))
	for _, fn := range m.listeners {
		fns = append(fns, fn)
	}
	m.mu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}

// MintSession returns a fresh deterministic session for DefaultUser.
func (m *MockIdentityProvider) MintSession() *domainauth.Session {
	m.mu.Lock()
	m.mintCount++
	n := m.mintCount
	ttl := m.SessionTTL
	user := m.DefaultUser
	m.mu.Unlock()
	if ttl == 0 {
		ttl = time.Hour
	}
	return &domainauth.Session{
		AccessToken:  fmt.Sprintf("access-%d", n),
		RefreshToken: fmt.Sprintf("refresh-%d", n),
		TokenType:    "bearer",
		ExpiresAt:    time.Now().Add(ttl),
		User:         user,
	}
}

func (m *MockIdentityProvider) record(method string) {
	m.mu.Lock()
	m.calls[method]++
	m.mu.Unlock()
}

func (m *MockIdentityProvider) CurrentSession(ctx context.Context) (*domainauth.Session, error) {
	m.record("CurrentSession")
	if m.CurrentSessionFunc != nil {
		return m.CurrentSessionFunc(ctx)
	}
	return nil, nil
}

func (m *MockIdentityProvider) SignUp(ctx context.Context, in ports.SignUpInput) (*domainauth.User, *domainauth.Session, error) {
	m.record("SignUp")
	if m.SignUpFunc != nil {
		return m.SignUpFunc(ctx, in)
	}
	sess := m.MintSession()
	user := sess.User
	return &user, sess, nil
}

func (m *MockIdentityProvider) SignInWithPassword(ctx context.Context, email, password string) (*domainauth.Session, error) {
	m.record("SignInWithPassword")
	if m.SignInFunc != nil {
		return m.SignInFunc(ctx, email, password)
	}
	return m.MintSession(), nil
}

func (m *MockIdentityProvider) OAuthURL(ctx context.Context, in ports.OAuthInput) (string, error) {
	m.record("OAuthURL")
	if m.OAuthURLFunc != nil {
		return m.OAuthURLFunc(ctx, in)
	}
	return "https://mock-idp/authorize?provider=" + in.Provider, nil
}

func (m *MockIdentityProvider) ExchangeCode(ctx context.Context, code, state string) (*domainauth.Session, error) {
	m.record("ExchangeCode")
	if m.ExchangeCodeFunc != nil {
		return m.ExchangeCodeFunc(ctx, code, state)
	}
	return m.MintSession(), nil
}

func (m *MockIdentityProvider) SignOut(ctx context.Context, accessToken string) error {
	m.record("SignOut")
	if m.SignOutFunc != nil {
		return m.SignOutFunc(ctx, accessToken)
	}
	return nil
}

func (m *MockIdentityProvider) ResetPassword(ctx context.Context, email, redirectTo string) error {
	m.record("ResetPassword")
	if m.ResetPasswordFunc != nil {
		return m.ResetPasswordFunc(ctx, email, redirectTo)
	}
	return nil
}

func (m *MockIdentityProvider) UpdatePassword(ctx context.Context, accessToken, newPassword string) error {
	m.record("UpdatePassword")
	if m.UpdatePasswordFunc != nil {
		return m.UpdatePasswordFunc(ctx, accessToken, newPassword)
	}
	return nil
}

func (m *MockIdentityProvider) Refresh(ctx context.Context, refreshToken string) (*domainauth.Session, error) {
	m.record("Refresh")
	if m.RefreshFunc != nil {
		return m.RefreshFunc(ctx, refreshToken)
	}
	return m.MintSession(), nil
}

func (m *MockIdentityProvider) User(ctx context.Context, accessToken string) (*domainauth.User, error) {
	m.record("User")
	if m.UserFunc != nil {
		return m.UserFunc(ctx, accessToken)
	}
	user := m.DefaultUser
	return &user, nil
}

func (m *MockIdentityProvider) OnAuthStateChange(fn func(domainauth.Event)) func() {
	m.record("OnAuthStateChange")
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextListener++
	id := m.nextListener
	m.listeners[id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.listeners, id)
	}
}

// notFoundError mirrors the redis adapter's sentinel without importing it.
type notFoundError struct{}

func (notFoundError) Error() string { return "session not found" }

// ErrNotFound is returned by MemorySessionStore.Load when no session is stored.
var ErrNotFound error = notFoundError{}

// MemorySessionStore is an in-memory single-slot session store for unit tests.
type MemorySessionStore struct {
	SaveErr  error
	LoadErr  error
	ClearErr error

	mu      sync.Mutex
	session *domainauth.Session
	saves   int
	clears  int
}

// NewMemorySessionStore creates an empty in-memory session store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{}
}

func (m *MemorySessionStore) Save(_ context.Context, sess domainauth.Session) error {
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := sess
	m.session = &copied
	m.saves++
	return nil
}

func (m *MemorySessionStore) Load(_ context.Context) (domainauth.Session, error) {
	if m.LoadErr != nil {
		return domainauth.Session{}, m.LoadErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return domainauth.Session{}, ErrNotFound
	}
	return *m.session, nil
}

func (m *MemorySessionStore) Clear(_ context.Context) error {
	if m.ClearErr != nil {
		return m.ClearErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = nil
	m.clears++
	return nil
}

// SaveCount reports how many successful saves happened.
func (m *MemorySessionStore) SaveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

// ClearCount reports how many successful clears happened.
func (m *MemorySessionStore) ClearCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.clears
}

// Stored returns a copy of the stored session, or nil.
func (m *MemorySessionStore) Stored() *domainauth.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return nil
	}
	copied := *m.session
	return &copied
}

// MemoryProfileStore records profile upserts for assertions.
type MemoryProfileStore struct {
	UpsertErr error

	mu    sync.Mutex
	users []domainauth.User
}

// NewMemoryProfileStore creates an empty profile store double.
func NewMemoryProfileStore() *MemoryProfileStore {
	return &MemoryProfileStore{}
}

func (m *MemoryProfileStore) Upsert(_ context.Context, user domainauth.User) error {
	if m.UpsertErr != nil {
		return m.UpsertErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users = append(m.users, user)
	return nil
}

// Upserted returns a copy of every recorded upsert in order.
func (m *MemoryProfileStore) Upserted() []domainauth.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domainauth.User, len(m.users))
	copy(out, m.users)
	return out
}

// MemoryDedupStore is an in-memory idempotency key recorder.
type MemoryDedupStore struct {
	MarkErr error

	mu   sync.Mutex
	seen map[string]struct{}
}

// NewMemoryDedupStore creates an empty dedup store double.
func NewMemoryDedupStore() *MemoryDedupStore {
	return &MemoryDedupStore{seen: make(map[string]struct{})}
}

func (m *MemoryDedupStore) MarkProcessed(_ context.Context, eventID string, _ time.Duration) (bool, error) {
	if m.MarkErr != nil {
		return false, m.MarkErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.seen[eventID]; ok {
		return false, nil
	}
	m.seen[eventID] = struct{}{}
	return true, nil
}

// StubSubscriptionSource returns a fixed status unless StatusFunc is set.
type StubSubscriptionSource struct {
	StatusFunc    func(ctx context.Context, accessToken string) (domainauth.SubscriptionStatus, error)
	DefaultStatus domainauth.SubscriptionStatus

	mu    sync.Mutex
	calls int
}

func (s *StubSubscriptionSource) Status(ctx context.Context, accessToken string) (domainauth.SubscriptionStatus, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.StatusFunc != nil {
		return s.StatusFunc(ctx, accessToken)
	}
	return s.DefaultStatus, nil
}

// Calls reports how many status fetches ran.
func (s *StubSubscriptionSource) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}
