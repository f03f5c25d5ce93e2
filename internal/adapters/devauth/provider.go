package devauth

// Package devauth provides a simple, config-driven IdentityProvider for local
// development. It accepts any password for the configured identity and mints
// sessions locally, so no identity backend needs to run.

import (
	"context"
	"errors"
	"sync"
	"time"

	domainauth "github.com/coverforge/authd/internal/domain/auth"
	apperrors "github.com/coverforge/authd/internal/errors"
	"github.com/coverforge/authd/internal/ports"
	"github.com/google/uuid"
)

// Config controls the dev auth provider behavior.
type Config struct {
	UserID          string
	Email           string
	DisplayName     string
	SessionDuration time.Duration // default 8h when zero
}

// Provider implements ports.IdentityProvider for local development.
type Provider struct {
	user            domainauth.User
	sessionDuration time.Duration

	mu           sync.Mutex
	current      *domainauth.Session
	nextListener int
	listeners    map[int]func(domainauth.Event)
}

var _ ports.IdentityProvider = (*Provider)(nil)

// NewProvider constructs a dev auth provider from Config.
func NewProvider(cfg Config) (*Provider, error) {
	if cfg.UserID == "" {
		return nil, errors.New("dev auth: UserID is required")
	}
	if cfg.Email == "" {
		return nil, errors.New("dev auth: Email is required")
	}
	dur := cfg.SessionDuration
	if dur == 0 {
		dur = 8 * time.Hour
	}
	return &Provider{
		user: domainauth.User{
			ID:          cfg.UserID,
			Email:       cfg.Email,
			DisplayName: cfg.DisplayName,
		},
		sessionDuration: dur,
		listeners:       make(map[int]func(domainauth.Event)),
	}, nil
}

// CurrentSession returns the last session this provider minted, if any.
func (p *Provider) CurrentSession(_ context.Context) (*domainauth.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return nil, nil
	}
	sess := *p.current
	return &sess, nil
}

// SignUp pretends to register and immediately returns a live session.
func (p *Provider) SignUp(_ context.Context, in ports.SignUpInput) (*domainauth.User, *domainauth.Session, error) {
	if in.Email != p.user.Email {
		return nil, nil, apperrors.ValidationField("email", "dev auth accepts only the configured email")
	}
	sess := p.mint()
	return &sess.User, sess, nil
}

// SignInWithPassword accepts any password for the configured email.
func (p *Provider) SignInWithPassword(_ context.Context, email, _ string) (*domainauth.Session, error) {
	if email != p.user.Email {
		return nil, apperrors.Authentication("Invalid login credentials")
	}
	return p.mint(), nil
}

// OAuthURL short-circuits the redirect flow back to our own callback.
func (p *Provider) OAuthURL(_ context.Context, in ports.OAuthInput) (string, error) {
	redirect := in.RedirectTo
	if redirect == "" {
		redirect = "/auth/callback"
	}
	return redirect + "?code=" + uuid.NewString(), nil
}

// ExchangeCode ignores the code and state, mints a session, and notifies
// listeners the way a real asynchronous OAuth callback would.
func (p *Provider) ExchangeCode(_ context.Context, _, _ string) (*domainauth.Session, error) {
	sess := p.mint()
	p.notify(domainauth.Event{Kind: domainauth.EventSignedIn, Session: sess, At: time.Now()})
	return sess, nil
}

// SignOut drops the minted session.
func (p *Provider) SignOut(_ context.Context, _ string) error {
	p.mu.Lock()
	p.current = nil
	p.mu.Unlock()
	return nil
}

// ResetPassword is a no-op for dev auth.
func (p *Provider) ResetPassword(_ context.Context, _, _ string) error { return nil }

// UpdatePassword is a no-op for dev auth.
func (p *Provider) UpdatePassword(_ context.Context, _, _ string) error { return nil }

// Refresh mints a fresh session when the refresh token matches the current one.
func (p *Provider) Refresh(_ context.Context, refreshToken string) (*domainauth.Session, error) {
	p.mu.Lock()
	known := p.current != nil && p.current.RefreshToken == refreshToken
	p.mu.Unlock()
	if !known {
		return nil, apperrors.SessionInvalid("Invalid Refresh Token")
	}
	return p.mint(), nil
}

// User returns the configured identity for any non-empty token.
func (p *Provider) User(_ context.Context, accessToken string) (*domainauth.User, error) {
	if accessToken == "" {
		return nil, apperrors.Unauthenticated("missing access token")
	}
	u := p.user
	return &u, nil
}

// OnAuthStateChange registers a listener; the unsubscribe is idempotent.
func (p *Provider) OnAuthStateChange(fn func(domainauth.Event)) func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextListener++
	id := p.nextListener
	p.listeners[id] = fn
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.listeners, id)
	}
}

func (p *Provider) mint() *domainauth.Session {
	sess := &domainauth.Session{
		AccessToken:  "dev-access-" + uuid.NewString(),
		RefreshToken: "dev-refresh-" + uuid.NewString(),
		TokenType:    "bearer",
		ExpiresAt:    time.Now().Add(p.sessionDuration),
		User:         p.user,
	}
	p.mu.Lock()
	p.current = sess
	p.mu.Unlock()
	out := *sess
	return &out
}

func (p *Provider) notify(ev domainauth.Event) {
	p.mu.Lock()
	fns := make([]func(domainauth.Event), 0, len(p.listeners))
	for _, fn := range p.listeners {
		fns = append(fns, fn)
	}
	p.mu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}
