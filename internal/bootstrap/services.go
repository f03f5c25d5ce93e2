package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/coverforge/authd/config"
	"github.com/coverforge/authd/internal/adapters/billing"
	redisadapter "github.com/coverforge/authd/internal/adapters/redis"
	"github.com/coverforge/authd/internal/bus"
	"github.com/coverforge/authd/internal/data"
	"github.com/coverforge/authd/internal/observability/statsd"
	"github.com/coverforge/authd/internal/ports"
	"github.com/coverforge/authd/internal/service"
	"github.com/redis/go-redis/v9"
)

// ServiceContainer holds all application services.
type ServiceContainer struct {
	Bus           *bus.Bus
	Lifecycle     *service.Lifecycle
	PaymentAuth   *service.PaymentAuthProxy
	Subscriptions *service.SubscriptionReconciler // nil when billing is not configured
	Webhooks      *billing.Extractor              // nil when billing is not configured
	Observability ObservabilityContainer
}

// ObservabilityContainer groups shared observability dependencies.
type ObservabilityContainer struct {
	MetricsSink   *statsd.Client
	MetricsConfig config.ObservabilityMetricsConfig
}

// ServiceDeps groups dependencies for service initialization.
type ServiceDeps struct {
	Config      *config.AppConfig
	DB          *sql.DB // nil when the profile mirror is disabled
	RedisClient redis.UniversalClient
	Logger      *slog.Logger
}

// BuildServices wires the full service graph from configuration and shared
// connections. The identity provider may fail to construct; the lifecycle
// manager then runs degraded rather than aborting startup.
func BuildServices(ctx context.Context, deps ServiceDeps) (*ServiceContainer, error) {
	if deps.Config == nil {
		return nil, errors.New("config is required")
	}
	if deps.RedisClient == nil {
		return nil, errors.New("redis client is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	obs := buildObservability(logger, deps.Config.Observability)
	// Keep the Sink interface nil when no sink was built so consumers can
	// nil-check it.
	var sink statsd.Sink
	if obs.MetricsSink != nil {
		sink = obs.MetricsSink
	}

	eventBus := bus.New()

	var profiles ports.ProfileStore
	if deps.DB != nil {
		profiles = data.NewProfileRepo(deps.DB)
	}

	sessions := BuildSessionStore(deps.RedisClient, deps.Config.Redis.SessionKey)
	authDeps := AuthDeps{
		Auth:     deps.Config.Auth,
		Sessions: sessions,
		Bus:      eventBus,
		Profiles: profiles,
		Metrics:  sink,
		Logger:   logger,
	}

	provider := BuildProvider(ctx, authDeps)
	lifecycle, err := BuildLifecycle(authDeps, provider)
	if err != nil {
		return nil, fmt.Errorf("build lifecycle: %w", err)
	}

	paymentAuth := service.NewPaymentAuthProxy(service.PaymentAuthProxyOptions{
		Provider: provider,
		Sessions: sessions,
		Logger:   logger,
	})

	container := &ServiceContainer{
		Bus:           eventBus,
		Lifecycle:     lifecycle,
		PaymentAuth:   paymentAuth,
		Observability: obs,
	}

	if deps.Config.Billing.IsEnabled() {
		if err := wireBilling(container, deps, eventBus, lifecycle, logger, sink); err != nil {
			return nil, err
		}
	} else {
		logger.Info("billing not configured; subscription reconciler disabled")
	}

	return container, nil
}

// wireBilling attaches the subscription reconciler and webhook extractor.
func wireBilling(
	container *ServiceContainer,
	deps ServiceDeps,
	eventBus *bus.Bus,
	lifecycle *service.Lifecycle,
	logger *slog.Logger,
	sink statsd.Sink,
) error {
	source, err := billing.NewClient(billing.Config{
		StatusURL:  deps.Config.Billing.StatusURL,
		Timeout:    deps.Config.Billing.Timeout,
		RetryLimit: deps.Config.Billing.RetryLimit,
	})
	if err != nil {
		return fmt.Errorf("build billing client: %w", err)
	}

	extractor, err := billing.NewExtractor(billing.DefaultExtractorConfig())
	if err != nil {
		return fmt.Errorf("build webhook extractor: %w", err)
	}

	reconciler, err := service.NewSubscriptionReconciler(service.SubscriptionReconcilerOptions{
		Lifecycle: lifecycle,
		Source:    source,
		Dedup:     redisadapter.NewDedupStore(deps.RedisClient),
		Bus:       eventBus,
		Logger:    logger,
		Metrics:   sink,
		DedupTTL:  deps.Config.Billing.DedupTTL,
	})
	if err != nil {
		return fmt.Errorf("build subscription reconciler: %w", err)
	}

	container.Subscriptions = reconciler
	container.Webhooks = extractor
	return nil
}

// buildObservability configures the metrics sink.
func buildObservability(logger *slog.Logger, cfg config.ObservabilityConfig) ObservabilityContainer {
	var sink *statsd.Client
	if cfg.Metrics.IsEnabled() {
		client, err := statsd.NewClient(statsd.Config{
			Enabled: true,
			Address: cfg.Metrics.StatsdAddress,
			Prefix:  cfg.Metrics.StatsdPrefix,
			Logger:  logger,
		})
		if err != nil {
			logger.Error("failed to initialise statsd client", "error", err)
		} else {
			sink = client
		}
	}

	return ObservabilityContainer{
		MetricsSink:   sink,
		MetricsConfig: cfg.Metrics,
	}
}

// Close releases service-held resources in reverse construction order.
func (c *ServiceContainer) Close() error {
	var errs []error
	if c.Subscriptions != nil {
		c.Subscriptions.Close()
	}
	if c.Lifecycle != nil {
		c.Lifecycle.Close()
	}
	if c.Observability.MetricsSink != nil {
		if err := c.Observability.MetricsSink.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close metrics sink: %w", err))
		}
	}
	return errors.Join(errs...)
}
