package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"

	"github.com/angelmondragon/hydrofarm-backend/internal/app"
	"github.com/angelmondragon/hydrofarm-backend/internal/cron"
	"github.com/angelmondragon/hydrofarm-backend/pkg/config"
	"github.com/angelmondragon/hydrofarm-backend/pkg/db"
	"github.com/angelmondragon/hydrofarm-backend/pkg/instance"
	"github.com/angelmondragon/hydrofarm-backend/pkg/logger"
	"github.com/angelmondragon/hydrofarm-backend/pkg/metrics"
	"github.com/angelmondragon/hydrofarm-backend/pkg/migrate"
	"github.com/angelmondragon/hydrofarm-backend/pkg/redis"
)

const serviceKind = "cron-worker"

func main() {
	bootLog := logger.New(logger.Options{ServiceName: serviceKind})
	if err := godotenv.Load(); err != nil {
		bootLog.Warn(context.Background(), ".env not found, using process environment")
	}

	cfg, err := config.Load()
	if err != nil {
		bootLog.Error(context.Background(), "config.load", err)
		os.Exit(1)
	}
	cfg.Service.Kind = serviceKind

	logg := logger.New(logger.Options{
		ServiceName: serviceKind,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"instance_id": instance.GetID(),
	})

	if err := run(ctx, cfg, logg); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron.worker.failed", err)
		os.Exit(1)
	}
	logg.Info(ctx, "cron.worker.stopped")
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) (err error) {
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer func() { err = multierr.Append(err, dbClient.Close()) }()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return fmt.Errorf("dev migrations: %w", err)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	defer func() { err = multierr.Append(err, redisClient.Close()) }()

	rec, err := app.NewReconciler(ctx, cfg, logg, dbClient, redisClient, metrics.NewReconcileMetrics(prometheus.DefaultRegisterer))
	if err != nil {
		return fmt.Errorf("reconciler: %w", err)
	}

	pollJob, err := cron.NewPaymentPollJob(cron.PaymentPollJobParams{
		Logger:        logg,
		Orders:        rec.Orders,
		Subscriptions: rec.Subscriptions,
		Checker:       rec.Service,
		Lookback:      cfg.Reconcile.PollLookback,
		BatchSize:     cfg.Reconcile.PollBatchSize,
		Workers:       cfg.Reconcile.PollWorkers,
	})
	if err != nil {
		return fmt.Errorf("payment poll job: %w", err)
	}
	retentionJob, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:      logg,
		DB:          dbClient,
		Repository:  rec.Outbox,
		Retention:   cfg.Cron.OutboxRetentionDay,
		MinAttempts: cfg.Outbox.MaxAttempts,
	})
	if err != nil {
		return fmt.Errorf("outbox retention job: %w", err)
	}
	registry, err := cron.NewRegistry(pollJob, retentionJob)
	if err != nil {
		return fmt.Errorf("job registry: %w", err)
	}

	lease, err := cron.NewCycleLease(redisClient, redisClient.LockKey(serviceKind, cfg.App.Env), instance.GetID(), cfg.Cron.LockTTL)
	if err != nil {
		return fmt.Errorf("cycle lease: %w", err)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lease,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Reconcile.PollInterval,
	})
	if err != nil {
		return fmt.Errorf("cron service: %w", err)
	}

	logg.Info(logg.WithField(ctx, "jobs", len(registry.Jobs())), "cron.worker.started")
	return service.Run(ctx)
}
