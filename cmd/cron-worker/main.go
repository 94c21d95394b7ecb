package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/leafshop/leafshop-backend/internal/checkout"
	"github.com/leafshop/leafshop-backend/internal/cron"
	"github.com/leafshop/leafshop-backend/pkg/config"
	"github.com/leafshop/leafshop-backend/pkg/db"
	"github.com/leafshop/leafshop-backend/pkg/logger"
	"github.com/leafshop/leafshop-backend/pkg/metrics"
	"github.com/leafshop/leafshop-backend/pkg/migrate"
	"github.com/leafshop/leafshop-backend/pkg/outbox"
	"github.com/leafshop/leafshop-backend/pkg/redis"
)

const serviceKind = "cron-worker"

func main() {
	_ = godotenv.Load()
	bootLog := logger.New(logger.Options{ServiceName: serviceKind})

	cfg, err := config.Load()
	if err != nil {
		bootLog.Error(context.Background(), "cron-worker: load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = serviceKind

	logg := logger.New(logger.Options{
		ServiceName: serviceKind,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})

	if err := run(ctx, cfg, logg); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker failed", err)
		os.Exit(1)
	}
	logg.Info(ctx, "cron worker stopped")
}

// run wires the reservation sweeper and outbox retention jobs behind the
// shared Redis lock and blocks until ctx is done.
func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) error {
	var closers []io.Closer
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i].Close(); err != nil {
				logg.Error(ctx, "close dependency", err)
			}
		}
	}()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	closers = append(closers, dbClient)
	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return fmt.Errorf("dev migrations: %w", err)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	closers = append(closers, redisClient)

	scope := cfg.App.Env
	if scope == "" {
		scope = "local"
	}
	lock, err := redis.NewLock(redisClient, redisClient.LockKey("cron", scope), cfg.Cron.LockTTL)
	if err != nil {
		return fmt.Errorf("cron lock: %w", err)
	}

	components, err := checkout.Build(dbClient, checkout.NewRedisLocker(redisClient), cfg.Checkout,
		metrics.NewCheckoutMetrics(prometheus.DefaultRegisterer), logg)
	if err != nil {
		return fmt.Errorf("checkout: %w", err)
	}

	sweeper, err := cron.NewReservationSweeperJob(cron.ReservationSweeperJobParams{
		Logger:         logg,
		Orders:         components.Orders,
		Checkout:       components.Checkout,
		PendingTimeout: cfg.Checkout.PendingTimeout,
		BatchSize:      cfg.Checkout.SweepBatchSize,
	})
	if err != nil {
		return fmt.Errorf("reservation sweeper: %w", err)
	}
	retention, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:     logg,
		Repository: outbox.NewRepository(dbClient.DB()),
		Retention:  cfg.Cron.OutboxRetention,
	})
	if err != nil {
		return fmt.Errorf("outbox retention: %w", err)
	}
	registry, err := cron.NewRegistry(sweeper, retention)
	if err != nil {
		return fmt.Errorf("cron registry: %w", err)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:     logg,
		Registry:   registry,
		Lock:       lock,
		Metrics:    metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval:   cfg.Cron.Interval,
		JobTimeout: cfg.Cron.JobTimeout,
	})
	if err != nil {
		return err
	}

	go func() {
		if err := metrics.Serve(ctx, cfg.Service.MetricsAddr, prometheus.DefaultGatherer, logg); err != nil {
			logg.Error(ctx, "metrics endpoint stopped", err)
		}
	}()

	logg.Info(ctx, "cron worker ready")
	return service.Run(ctx)
}
