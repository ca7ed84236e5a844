// Package app wires the reconciliation stack shared by the api and cron
// binaries.
package app

import (
	"context"
	"errors"
	"time"

	"github.com/angelmondragon/hydrofarm-backend/internal/audit"
	"github.com/angelmondragon/hydrofarm-backend/internal/orders"
	"github.com/angelmondragon/hydrofarm-backend/internal/payments"
	"github.com/angelmondragon/hydrofarm-backend/internal/reconcile"
	"github.com/angelmondragon/hydrofarm-backend/internal/settings"
	"github.com/angelmondragon/hydrofarm-backend/internal/stock"
	"github.com/angelmondragon/hydrofarm-backend/internal/subscriptions"
	"github.com/angelmondragon/hydrofarm-backend/pkg/config"
	"github.com/angelmondragon/hydrofarm-backend/pkg/db"
	"github.com/angelmondragon/hydrofarm-backend/pkg/instance"
	"github.com/angelmondragon/hydrofarm-backend/pkg/logger"
	"github.com/angelmondragon/hydrofarm-backend/pkg/metrics"
	"github.com/angelmondragon/hydrofarm-backend/pkg/outbox"
	"github.com/angelmondragon/hydrofarm-backend/pkg/pix"
	"github.com/angelmondragon/hydrofarm-backend/pkg/redis"
	"github.com/angelmondragon/hydrofarm-backend/pkg/storage/gcs"
	"github.com/angelmondragon/hydrofarm-backend/pkg/stripe"
)

const settingsCacheTTL = time.Minute

// Reconciler bundles the orchestrator with the collaborators the binaries
// also expose directly.
type Reconciler struct {
	Service       *reconcile.Service
	Orders        orders.Repository
	Subscriptions subscriptions.Repository
	Pix           *payments.PixGateway
	Stripe        *stripe.Client
	Outbox        *outbox.Repository
	GCS           *gcs.Client
}

// NewReconciler builds every dependency of the orchestrator. Provider
// clients are optional: a missing one leaves its gateway failing each call
// with a dependency error, which webhooks turn into provider retries.
func NewReconciler(ctx context.Context, cfg *config.Config, logg *logger.Logger, dbClient *db.Client, redisClient *redis.Client, m *metrics.ReconcileMetrics) (*Reconciler, error) {
	if cfg == nil || dbClient == nil {
		return nil, errors.New("config and database are required")
	}
	conn := dbClient.DB()

	var settingsStore settings.Store = settings.NewRepository(conn)
	if redisClient != nil {
		settingsStore = settings.NewCachedStore(settingsStore, redisClient, settingsCacheTTL, logg)
	}
	resolver := settings.NewResolver(settingsStore, logg)

	out := &Reconciler{
		Orders:        orders.NewRepository(conn),
		Subscriptions: subscriptions.NewRepository(conn),
		Outbox:        outbox.NewRepository(conn),
	}

	if _, ok := resolver.PixCertificate(ctx); ok || cfg.Pix.CertFromStorage {
		gcsClient, err := gcs.NewClient(ctx, cfg.GCS, cfg.GCP, logg)
		if err != nil {
			logg.Error(ctx, "gcs unavailable, uploaded pix certificate cannot be loaded", err)
		} else {
			out.GCS = gcsClient
		}
	}

	out.Pix = payments.NewPixGateway(nil, m)
	if cfg.Pix.Enabled() {
		pixClient, err := newPixClient(ctx, cfg.Pix, resolver, out.GCS)
		if err != nil {
			logg.Error(ctx, "pix client unavailable", err)
		} else {
			out.Pix = payments.NewPixGateway(pixClient, m)
		}
	} else {
		logg.Warn(ctx, "pix credentials not configured")
	}

	if cfg.Stripe.APIKey != "" {
		stripeClient, err := stripe.NewClient(ctx, cfg.Stripe, logg)
		if err != nil {
			return nil, err
		}
		out.Stripe = stripeClient
	}
	card := payments.NewCardGateway(out.Stripe != nil, m)

	auditRepo, err := audit.NewRepository(conn, instance.NodeID())
	if err != nil {
		return nil, err
	}
	emitter := outbox.NewService(out.Outbox, logg)

	svc, err := reconcile.NewService(reconcile.ServiceParams{
		TxRunner:      dbClient,
		Orders:        out.Orders,
		Subscriptions: out.Subscriptions,
		Ledger:        stock.NewLedger(emitter, logg),
		Settings:      resolver,
		Pix:           out.Pix,
		Card:          card,
		Audit:         auditRepo,
		Emitter:       emitter,
		Metrics:       m,
		Logger:        logg,
		PixKey:        cfg.Pix.Key,
		ChargeExpiry:  cfg.Pix.ChargeExpiry,
	})
	if err != nil {
		return nil, err
	}
	out.Service = svc
	return out, nil
}

func newPixClient(ctx context.Context, cfg config.PixConfig, resolver *settings.Resolver, store *gcs.Client) (*pix.Client, error) {
	var downloader interface {
		Download(ctx context.Context, bucket, object string) ([]byte, error)
	}
	if store != nil {
		downloader = store
	}
	cert, err := payments.LoadPixCertificate(ctx, cfg, resolver, downloader)
	if err != nil {
		return nil, err
	}
	return pix.NewClient(cfg.BaseURL, cfg.ClientID, cfg.ClientSecret, pix.WithCertificate(cert, cfg.RequestTimeout))
}
