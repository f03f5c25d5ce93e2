package service

import (
	"context"
	"log/slog"

	domainauth "github.com/coverforge/authd/internal/domain/auth"
	apperrors "github.com/coverforge/authd/internal/errors"
	"github.com/coverforge/authd/internal/ports"
)

// PaymentAuthProxy gives payment-flow code a narrow read-only view of
// identity. Every call queries the identity backend fresh; nothing is cached
// and nothing here can mutate the session, so payment code can never be the
// cause of session churn.
type PaymentAuthProxy struct {
	provider ports.IdentityProvider
	sessions ports.SessionStore
	logger   *slog.Logger
}

// PaymentAuthProxyOptions groups dependencies for PaymentAuthProxy.
type PaymentAuthProxyOptions struct {
	Provider ports.IdentityProvider
	// Sessions supplies the access token the backend query is keyed by; the
	// proxy only reads it, never writes.
	Sessions ports.SessionStore
	Logger   *slog.Logger
}

// NewPaymentAuthProxy constructs the proxy. A nil provider is tolerated and
// yields permanently unauthenticated contexts.
func NewPaymentAuthProxy(opts PaymentAuthProxyOptions) *PaymentAuthProxy {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &PaymentAuthProxy{
		provider: opts.Provider,
		sessions: opts.Sessions,
		logger:   logger.With("component", "payment_auth_proxy"),
	}
}

// GetAuthContext returns the identity facts for the current bearer. It never
// fails: any backend error collapses to an unauthenticated context.
func (p *PaymentAuthProxy) GetAuthContext(ctx context.Context) domainauth.Context {
	unauthenticated := domainauth.Context{}

	if p.provider == nil || p.sessions == nil {
		return unauthenticated
	}

	sess, err := p.sessions.Load(ctx)
	if err != nil {
		return unauthenticated
	}

	user, err := p.provider.User(ctx, sess.AccessToken)
	if err != nil {
		p.logger.Debug("auth context lookup failed", "error", err)
		return unauthenticated
	}
	if user == nil || user.ID == "" {
		return unauthenticated
	}

	return domainauth.Context{
		IsAuthenticated: true,
		UserID:          user.ID,
		UserEmail:       user.Email,
	}
}

// RequireAuth returns the identity facts or an Unauthenticated error,
// forcing callers to handle the signed-out case explicitly.
func (p *PaymentAuthProxy) RequireAuth(ctx context.Context) (domainauth.Context, error) {
	authCtx := p.GetAuthContext(ctx)
	if !authCtx.IsAuthenticated {
		return domainauth.Context{}, apperrors.Unauthenticated("authentication required")
	}
	return authCtx, nil
}
