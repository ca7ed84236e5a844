package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/hydrofarm-backend/api/controllers"
	webhookcontrollers "github.com/angelmondragon/hydrofarm-backend/api/controllers/webhooks"
	"github.com/angelmondragon/hydrofarm-backend/api/middleware"
	"github.com/angelmondragon/hydrofarm-backend/internal/ratelimit"
	"github.com/angelmondragon/hydrofarm-backend/pkg/config"
	"github.com/angelmondragon/hydrofarm-backend/pkg/logger"
)

// Deps are the collaborators the HTTP surface needs. Nil services leave their
// routes answering 500 rather than panicking.
type Deps struct {
	Config   *config.Config
	Logger   *logger.Logger
	Gatherer prometheus.Gatherer
	Ready    map[string]controllers.Pinger
	Limiter  ratelimit.Limiter

	PaymentStatus  controllers.PaymentStatusService
	PixWebhook     webhookcontrollers.PixWebhookService
	StripeWebhook  webhookcontrollers.StripeWebhookService
	StripeVerifier webhookcontrollers.EventVerifier
	StripeGuard    webhookGuard
}

type webhookGuard interface {
	Claim(ctx context.Context, id string) (bool, error)
	Release(ctx context.Context, id string) error
}

func NewRouter(d Deps) http.Handler {
	cfg, logg := d.Config, d.Logger
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg.App.Env))
		r.Get("/ready", controllers.HealthReady(cfg.App.Env, logg, d.Ready))
	})

	gatherer := d.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		r.With(middleware.RateLimit(d.Limiter, "payments-status", logg)).
			Post("/payments/status", controllers.PaymentStatus(d.PaymentStatus, logg))

		r.Route("/webhooks", func(r chi.Router) {
			pix := webhookcontrollers.PixWebhook(d.PixWebhook, cfg.Pix.WebhookHMAC, logg)
			r.Post("/pix", pix)
			r.Post("/pix/pix", pix)
			r.Post("/stripe", webhookcontrollers.StripeWebhook(d.StripeWebhook, d.StripeVerifier, d.StripeGuard, logg))
		})
	})

	return r
}
