package ports

// Package ports defines interfaces (hexagonal ports) for auth-related behavior.
// Implementations live in internal/adapters; orchestration in internal/service.

import (
	"context"
	"time"

	domainauth "github.com/coverforge/authd/internal/domain/auth"
)

// SignUpInput carries inputs for account creation.
type SignUpInput struct {
	Email    string
	Password string
	Metadata map[string]string
}

// OAuthInput carries inputs for initiating a redirect-based OAuth flow.
type OAuthInput struct {
	Provider string
	// RedirectTo is the absolute URL the backend redirects back to after the
	// provider round-trip, preserving the page the user started from.
	RedirectTo string
}

// IdentityProvider is the identity backend consumed by the lifecycle manager.
// Sessions returned by any method are already normalized (ExpiresAt resolved
// to an absolute instant).
type IdentityProvider interface {
	// CurrentSession returns the backend's view of the existing session, or
	// (nil, nil) when no session is established.
	CurrentSession(ctx context.Context) (*domainauth.Session, error)

	// SignUp creates an account. The returned session is nil while email
	// verification is pending.
	SignUp(ctx context.Context, in SignUpInput) (*domainauth.User, *domainauth.Session, error)

	// SignInWithPassword performs a password credential grant.
	SignInWithPassword(ctx context.Context, email, password string) (*domainauth.Session, error)

	// OAuthURL builds the provider authorize URL for a redirect flow. No
	// session is produced here; it materializes later via ExchangeCode.
	OAuthURL(ctx context.Context, in OAuthInput) (string, error)

	// ExchangeCode completes a PKCE OAuth flow by exchanging the callback
	// code for a session. The state echoes the value embedded in the
	// OAuthURL redirect and guards against forged callbacks.
	ExchangeCode(ctx context.Context, code, state string) (*domainauth.Session, error)

	// SignOut invalidates the remote session for the given access token.
	SignOut(ctx context.Context, accessToken string) error

	// ResetPassword sends a password recovery email.
	ResetPassword(ctx context.Context, email, redirectTo string) error

	// UpdatePassword sets a new password for the authenticated user.
	UpdatePassword(ctx context.Context, accessToken, newPassword string) error

	// Refresh exchanges a refresh token for a fresh session.
	Refresh(ctx context.Context, refreshToken string) (*domainauth.Session, error)

	// User fetches the user record for an access token.
	User(ctx context.Context, accessToken string) (*domainauth.User, error)

	// OnAuthStateChange registers a callback invoked on every backend-side
	// state transition (e.g., an OAuth callback completing asynchronously).
	// The returned function unregisters the callback and is idempotent.
	OnAuthStateChange(fn func(domainauth.Event)) func()
}

// SessionStore persists the single current session to durable storage.
// Writes are full-overwrite of one well-known key; the lifecycle manager is
// the only writer.
type SessionStore interface {
	Save(ctx context.Context, sess domainauth.Session) error
	Load(ctx context.Context) (domainauth.Session, error)
	Clear(ctx context.Context) error
}

// ProfileStore mirrors the backend user record into the application's
// profile table as a side effect of sign-in.
type ProfileStore interface {
	Upsert(ctx context.Context, user domainauth.User) error
}

// SubscriptionSource reports tier/credit facts for the bearer of a token.
type SubscriptionSource interface {
	Status(ctx context.Context, accessToken string) (domainauth.SubscriptionStatus, error)
}

// DedupStore records externally assigned event ids so repeated webhook
// deliveries can be treated as idempotent.
type DedupStore interface {
	// MarkProcessed returns true when the id was not seen before and is now
	// recorded; false when a previous delivery already claimed it.
	MarkProcessed(ctx context.Context, eventID string, ttl time.Duration) (bool, error)
}
