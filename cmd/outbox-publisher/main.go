package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/multierr"

	"github.com/angelmondragon/hydrofarm-backend/pkg/config"
	"github.com/angelmondragon/hydrofarm-backend/pkg/db"
	"github.com/angelmondragon/hydrofarm-backend/pkg/instance"
	"github.com/angelmondragon/hydrofarm-backend/pkg/kafka"
	"github.com/angelmondragon/hydrofarm-backend/pkg/logger"
	"github.com/angelmondragon/hydrofarm-backend/pkg/migrate"
	"github.com/angelmondragon/hydrofarm-backend/pkg/outbox"
	"github.com/angelmondragon/hydrofarm-backend/pkg/outbox/registry"
	"github.com/angelmondragon/hydrofarm-backend/pkg/pubsub"
)

const serviceKind = "outbox-publisher"

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
		logg.Error(ctx, "outbox.publisher.failed", err)
		os.Exit(1)
	}
	logg.Info(ctx, "outbox.publisher.exited")
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

	pub, closer, err := dialTransport(ctx, cfg, logg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, closer.Close()) }()

	events, err := registry.NewEventRegistry(cfg.PubSub)
	if err != nil {
		return fmt.Errorf("event registry: %w", err)
	}

	service, err := NewService(ServiceParams{
		Config:        cfg.Outbox,
		Logger:        logg,
		DB:            dbClient,
		Publisher:     pub,
		Repository:    outbox.NewRepository(dbClient.DB()),
		DLQRepository: outbox.NewDLQRepository(dbClient.DB()),
		Registry:      events,
	})
	if err != nil {
		return fmt.Errorf("outbox service: %w", err)
	}

	logg.Info(logg.WithField(ctx, "transport", pub.Name()), "outbox.publisher.started")
	return service.Run(ctx)
}

// dialTransport connects only the client the configured transport needs.
func dialTransport(ctx context.Context, cfg *config.Config, logg *logger.Logger) (publisher, io.Closer, error) {
	if strings.EqualFold(strings.TrimSpace(cfg.Outbox.Transport), config.OutboxTransportKafka) {
		producer, err := kafka.NewProducer(cfg.Kafka, logg)
		if err != nil {
			return nil, nil, fmt.Errorf("kafka producer: %w", err)
		}
		pub, err := newPublisher(cfg.Outbox, nil, producer)
		if err != nil {
			return nil, nil, multierr.Append(err, producer.Close())
		}
		return pub, producer, nil
	}

	client, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		return nil, nil, fmt.Errorf("pubsub client: %w", err)
	}
	pub, err := newPublisher(cfg.Outbox, client, nil)
	if err != nil {
		return nil, nil, multierr.Append(err, client.Close())
	}
	return pub, client, nil
}
