package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/hydrofarm-backend/api"
	"github.com/angelmondragon/hydrofarm-backend/api/controllers"
	"github.com/angelmondragon/hydrofarm-backend/api/routes"
	"github.com/angelmondragon/hydrofarm-backend/internal/app"
	"github.com/angelmondragon/hydrofarm-backend/internal/ratelimit"
	"github.com/angelmondragon/hydrofarm-backend/internal/webhooks"
	pixwebhook "github.com/angelmondragon/hydrofarm-backend/internal/webhooks/pix"
	stripewebhook "github.com/angelmondragon/hydrofarm-backend/internal/webhooks/stripe"
	"github.com/angelmondragon/hydrofarm-backend/pkg/config"
	"github.com/angelmondragon/hydrofarm-backend/pkg/db"
	"github.com/angelmondragon/hydrofarm-backend/pkg/logger"
	"github.com/angelmondragon/hydrofarm-backend/pkg/metrics"
	"github.com/angelmondragon/hydrofarm-backend/pkg/migrate"
	"github.com/angelmondragon/hydrofarm-backend/pkg/redis"
)

const shutdownGrace = 20 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	reconcileMetrics := metrics.NewReconcileMetrics(prometheus.DefaultRegisterer)
	rec, err := app.NewReconciler(ctx, cfg, logg, dbClient, redisClient, reconcileMetrics)
	if err != nil {
		logg.Error(ctx, "failed to build reconciliation service", err)
		os.Exit(1)
	}

	pixGuard, err := webhooks.NewDeliveryGuard(redisClient, cfg.Reconcile.IdempotencyTTL, "pix-webhook")
	if err != nil {
		logg.Error(ctx, "failed to create pix idempotency guard", err)
		os.Exit(1)
	}
	pixService, err := pixwebhook.NewService(pixwebhook.ServiceParams{
		Reconciler: rec.Service,
		Charges:    rec.Pix,
		Guard:      pixGuard,
		Logger:     logg,
	})
	if err != nil {
		logg.Error(ctx, "failed to create pix webhook service", err)
		os.Exit(1)
	}

	deps := routes.Deps{
		Config:        cfg,
		Logger:        logg,
		Gatherer:      prometheus.DefaultGatherer,
		Ready:         map[string]controllers.Pinger{"db": dbClient, "redis": redisClient},
		Limiter:       ratelimit.New(cfg.RateLimit, redisClient),
		PaymentStatus: rec.Service,
		PixWebhook:    pixService,
	}
	if rec.GCS != nil {
		deps.Ready["gcs"] = rec.GCS
	}

	if rec.Stripe != nil {
		stripeGuard, err := webhooks.NewDeliveryGuard(redisClient, cfg.Reconcile.IdempotencyTTL, "stripe-webhook")
		if err != nil {
			logg.Error(ctx, "failed to create stripe idempotency guard", err)
			os.Exit(1)
		}
		stripeService, err := stripewebhook.NewService(stripewebhook.ServiceParams{Reconciler: rec.Service, Logger: logg})
		if err != nil {
			logg.Error(ctx, "failed to create stripe webhook service", err)
			os.Exit(1)
		}
		deps.StripeWebhook = stripeService
		deps.StripeVerifier = rec.Stripe
		deps.StripeGuard = stripeGuard
	} else {
		logg.Warn(ctx, "stripe not configured, card webhooks disabled")
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	logCtx := logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"port": port,
	})
	logg.Info(logCtx, "starting api server")

	server := api.NewServer(port, routes.NewRouter(deps), logg)
	if err := server.Run(ctx, shutdownGrace); err != nil {
		logg.Error(logCtx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(logCtx, "api server stopped")
}
