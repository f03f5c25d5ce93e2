package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/coverforge/authd/config"
	"github.com/coverforge/authd/internal/bootstrap"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

func main() {
	ctx := context.Background()
	logger := bootstrap.InitLogger()
	if err := run(ctx, logger); err != nil {
		logger.ErrorContext(ctx, "fatal error", "error", err)
		os.Exit(1) //nolint:forbidigo // Main entrypoint should exit with non-zero status on fatal errors.
	}
}

func run(ctx context.Context, logger *slog.Logger) error {
	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		return err
	}

	logStartupInfo(ctx, logger, &cfg)

	db, redisClient, err := initInfrastructure(ctx, &cfg, logger)
	if err != nil {
		return err
	}
	if db != nil {
		defer func() {
			if cerr := db.Close(); cerr != nil {
				logger.ErrorContext(ctx, "close database failed", "error", cerr)
			}
		}()
	}
	defer func() {
		if cerr := redisClient.Close(); cerr != nil {
			logger.ErrorContext(ctx, "close redis failed", "error", cerr)
		}
	}()

	if db != nil && cfg.Postgres.RunMigrationsOnStart {
		if err = bootstrap.RunMigrations(ctx, db, logger); err != nil {
			return err
		}
	}

	services, err := bootstrap.BuildServices(ctx, bootstrap.ServiceDeps{
		Config:      &cfg,
		DB:          db,
		RedisClient: redisClient,
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("build services: %w", err)
	}
	defer func() {
		if cerr := services.Close(); cerr != nil {
			logger.ErrorContext(ctx, "close services failed", "error", cerr)
		}
	}()

	return runUntilSignal(ctx, logger, services)
}

// runUntilSignal restores any persisted session, primes the subscription
// snapshot, and then idles; the refresh loop and the bus-driven reconciler do
// the ongoing work.
func runUntilSignal(ctx context.Context, logger *slog.Logger, services *bootstrap.ServiceContainer) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		ok, initErr := services.Lifecycle.Initialize(gctx)
		if initErr != nil {
			return fmt.Errorf("initialize auth lifecycle: %w", initErr)
		}
		if !ok {
			logger.WarnContext(gctx, "auth lifecycle running degraded")
		}
		return nil
	})

	if services.Subscriptions != nil {
		g.Go(func() error {
			if recErr := services.Subscriptions.Reconcile(gctx); recErr != nil {
				// Non-fatal: webhook and auth-change paths repair it later.
				logger.WarnContext(gctx, "initial subscription reconcile failed", "error", recErr)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	logger.InfoContext(ctx, "authd running")
	<-ctx.Done()
	logger.Info("shutdown signal received")
	return nil
}

func logStartupInfo(ctx context.Context, logger *slog.Logger, cfg *config.AppConfig) {
	logger.InfoContext(ctx, "starting authd",
		"auth_mode", cfg.Auth.Mode,
		"profile_mirror", cfg.Postgres.Enabled,
		"billing", cfg.Billing.IsEnabled(),
		"dev", cfg.IsDev,
	)
}

// initInfrastructure connects shared dependencies used by the service runtime.
//
//nolint:ireturn // returning redis.UniversalClient keeps client selection flexible.
func initInfrastructure(
	ctx context.Context,
	cfg *config.AppConfig,
	logger *slog.Logger,
) (*sql.DB, redis.UniversalClient, error) {
	db, err := bootstrap.ConnectDB(cfg.Postgres, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("connect db: %w", err)
	}

	redisClient, err := bootstrap.ConnectRedis(cfg.Redis, logger)
	if err != nil {
		if db != nil {
			if cerr := db.Close(); cerr != nil {
				logger.ErrorContext(ctx, "close database after redis connect failure", "error", cerr)
				err = errors.Join(err, fmt.Errorf("close database: %w", cerr))
			}
		}
		return nil, nil, fmt.Errorf("connect redis: %w", err)
	}

	return db, redisClient, nil
}
