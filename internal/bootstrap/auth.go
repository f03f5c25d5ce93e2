package bootstrap

import (
	"context"
	"log/slog"

	"github.com/coverforge/authd/config"
	"github.com/coverforge/authd/internal/adapters/devauth"
	"github.com/coverforge/authd/internal/adapters/gotrue"
	redisadapter "github.com/coverforge/authd/internal/adapters/redis"
	"github.com/coverforge/authd/internal/bus"
	"github.com/coverforge/authd/internal/observability/statsd"
	"github.com/coverforge/authd/internal/ports"
	"github.com/coverforge/authd/internal/service"
	"github.com/redis/go-redis/v9"
)

// AuthDeps groups dependencies for building the auth lifecycle manager.
type AuthDeps struct {
	Auth     config.AuthConfig
	Sessions ports.SessionStore
	Bus      *bus.Bus
	Profiles ports.ProfileStore
	Metrics  statsd.Sink
	Logger   *slog.Logger
}

// BuildSessionStore creates the Redis-backed session mirror. An empty key
// keeps the store's default.
func BuildSessionStore(client redis.UniversalClient, key string) *redisadapter.SessionStore {
	if key != "" {
		return redisadapter.NewSessionStoreWithKey(client, key)
	}
	return redisadapter.NewSessionStore(client)
}

// BuildLifecycle wires the session lifecycle manager around a provider built
// for the configured auth mode. When the identity backend cannot be
// constructed the manager is still returned with a nil provider and runs in
// degraded mode.
func BuildLifecycle(deps AuthDeps, provider ports.IdentityProvider) (*service.Lifecycle, error) {
	return service.NewLifecycle(service.LifecycleOptions{
		Provider:     provider,
		Sessions:     deps.Sessions,
		Bus:          deps.Bus,
		Profiles:     deps.Profiles,
		Logger:       deps.Logger,
		Metrics:      deps.Metrics,
		Redirect:     service.RedirectPolicy{SiteDomain: deps.Auth.SiteDomain},
		TickInterval: deps.Auth.Refresh.TickInterval,
		ExpiryBuffer: deps.Auth.Refresh.ExpiryBuffer,
		KeepAlive:    deps.Auth.Refresh.KeepAlive,
	})
}

// BuildProvider returns nil when the configured mode cannot produce a working
// identity backend; the lifecycle manager degrades instead of failing startup.
//
//nolint:ireturn // provider selection happens at runtime.
func BuildProvider(ctx context.Context, deps AuthDeps) ports.IdentityProvider {
	switch deps.Auth.Mode {
	case config.AuthModeMock:
		return buildDevProvider(deps)
	case config.AuthModeGoTrue:
		return buildGoTrueProvider(ctx, deps)
	default:
		if deps.Logger != nil {
			deps.Logger.Warn("unknown auth mode, running degraded", "mode", deps.Auth.Mode)
		}
		return nil
	}
}

func buildDevProvider(deps AuthDeps) ports.IdentityProvider {
	prov, err := devauth.NewProvider(devauth.Config{
		UserID:      deps.Auth.DevAuth.UserID,
		Email:       deps.Auth.DevAuth.Email,
		DisplayName: deps.Auth.DevAuth.DisplayName,
	})
	if err != nil {
		if deps.Logger != nil {
			deps.Logger.Warn("failed to create dev auth provider, running degraded", "error", err)
		}
		return nil
	}
	return prov
}

func buildGoTrueProvider(ctx context.Context, deps AuthDeps) ports.IdentityProvider {
	identity := deps.Auth.Identity
	if identity.BaseURL == "" {
		if deps.Logger != nil {
			deps.Logger.Warn("AuthModeGoTrue selected but IDENTITY_BASE_URL missing, running degraded")
		}
		return nil
	}

	prov, err := gotrue.NewClient(ctx, gotrue.Config{
		BaseURL:      identity.BaseURL,
		APIKey:       identity.APIKey,
		Issuer:       identity.Issuer,
		ClientID:     identity.ClientID,
		ClientSecret: identity.ClientSecret,
		Scope:        identity.Scope,
	})
	if err != nil {
		if deps.Logger != nil {
			deps.Logger.Warn("failed to create identity client, running degraded", "error", err)
		}
		return nil
	}
	return prov
}
