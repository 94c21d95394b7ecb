package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/leafshop/leafshop-backend/internal/analytics/router"
	"github.com/leafshop/leafshop-backend/internal/analytics/types"
	"github.com/leafshop/leafshop-backend/internal/analytics/worker"
	"github.com/leafshop/leafshop-backend/internal/analytics/writer"
	"github.com/leafshop/leafshop-backend/pkg/bigquery"
	"github.com/leafshop/leafshop-backend/pkg/config"
	"github.com/leafshop/leafshop-backend/pkg/logger"
	"github.com/leafshop/leafshop-backend/pkg/metrics"
	"github.com/leafshop/leafshop-backend/pkg/outbox/idempotency"
	"github.com/leafshop/leafshop-backend/pkg/pubsub"
	"github.com/leafshop/leafshop-backend/pkg/redis"
)

const (
	serviceKind  = "analytics-worker"
	flushTimeout = 10 * time.Second
)

func main() {
	_ = godotenv.Load()
	bootLog := logger.New(logger.Options{ServiceName: serviceKind})

	cfg, err := config.Load()
	fatalOn(context.Background(), bootLog, "load config", err)
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
		logg.Error(ctx, "analytics worker failed", err)
		os.Exit(1)
	}
	logg.Info(ctx, "analytics worker stopped")
}

// run wires the order-events sink and blocks until ctx is done.
func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) error {
	var closers []io.Closer
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i].Close(); err != nil {
				logg.Error(ctx, "close dependency", err)
			}
		}
	}()

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	closers = append(closers, redisClient)

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, pubsub.RoleSubscriber, logg)
	if err != nil {
		return fmt.Errorf("pubsub: %w", err)
	}
	closers = append(closers, pubsubClient)

	bqClient, err := bigquery.NewClient(ctx, cfg.GCP, cfg.BigQuery, bigquery.Options{
		CreateTable:    cfg.BigQuery.CreateTable,
		Schema:         types.OrderEventSchema(),
		PartitionField: types.OrderEventPartitionField,
	}, logg)
	if err != nil {
		return fmt.Errorf("bigquery: %w", err)
	}
	closers = append(closers, bqClient)

	manager, err := idempotency.NewManager(redisClient, cfg.Eventing.OutboxIdempotencyTTL)
	if err != nil {
		return fmt.Errorf("idempotency manager: %w", err)
	}

	sink, err := writer.New(bqClient, writer.Config{
		OrderEventsTable: bqClient.OrderEventsTable(),
		BatchSize:        cfg.BigQuery.BatchSize,
	})
	if err != nil {
		return fmt.Errorf("order events writer: %w", err)
	}

	handler, err := router.NewRouter(sink, logg, nil)
	if err != nil {
		return fmt.Errorf("analytics router: %w", err)
	}

	service, err := worker.NewService(pubsubClient.OrdersSubscription(), handler, manager, logg)
	if err != nil {
		return fmt.Errorf("analytics worker: %w", err)
	}

	go func() {
		if err := metrics.Serve(ctx, cfg.Service.MetricsAddr, prometheus.DefaultGatherer, logg); err != nil {
			logg.Error(ctx, "metrics endpoint stopped", err)
		}
	}()

	logg.Info(ctx, "analytics worker ready")
	runErr := service.Run(ctx)

	flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), flushTimeout)
	defer cancel()
	if err := sink.Flush(flushCtx); err != nil {
		logg.Error(flushCtx, "flush buffered order events", err)
	}
	return runErr
}

func fatalOn(ctx context.Context, logg *logger.Logger, step string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("%s: %s failed", serviceKind, step), err)
	os.Exit(1)
}
