package webhooks

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/hydrofarm-backend/api/responses"
	pkgerrors "github.com/angelmondragon/hydrofarm-backend/pkg/errors"
	"github.com/angelmondragon/hydrofarm-backend/pkg/logger"
)

// Stripe caps event payloads well below this.
const maxStripePayload = 256 << 10

type StripeWebhookService interface {
	HandleEvent(ctx context.Context, event *stripe.Event) error
}

type EventVerifier interface {
	VerifyEvent(payload []byte, header string) (stripe.Event, error)
}

type idempotencyGuard interface {
	Claim(ctx context.Context, id string) (bool, error)
	Release(ctx context.Context, id string) error
}

// StripeWebhook applies verified card-rail events once per event id. When
// handling fails the id is released and the error status makes Stripe retry.
func StripeWebhook(svc StripeWebhookService, verifier EventVerifier, guard idempotencyGuard, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil || verifier == nil || guard == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "stripe webhook unavailable"))
			return
		}

		event, err := verifyStripeRequest(w, r, verifier)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if logg != nil {
			ctx = logg.WithFields(ctx, map[string]any{
				"stripe_event_id":   event.ID,
				"stripe_event_type": string(event.Type),
			})
		}

		first, err := guard.Claim(ctx, event.ID)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim delivery"))
			return
		}
		if !first {
			if logg != nil {
				logg.Info(ctx, "stripe.event.duplicate")
			}
			acknowledge(w)
			return
		}

		if err := svc.HandleEvent(ctx, &event); err != nil {
			if relErr := guard.Release(ctx, event.ID); relErr != nil && logg != nil {
				logg.Warn(logg.WithField(ctx, "error", relErr.Error()), "stripe.event.release_failed")
			}
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if logg != nil {
			logg.Info(ctx, "stripe.event.processed")
		}
		acknowledge(w)
	}
}

func verifyStripeRequest(w http.ResponseWriter, r *http.Request, verifier EventVerifier) (stripe.Event, error) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxStripePayload))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return stripe.Event{}, pkgerrors.New(pkgerrors.CodeValidation, "payload too large")
		}
		return stripe.Event{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body")
	}

	header := r.Header.Get("Stripe-Signature")
	if header == "" {
		return stripe.Event{}, pkgerrors.New(pkgerrors.CodeValidation, "stripe signature missing")
	}
	event, err := verifier.VerifyEvent(payload, header)
	if err != nil {
		return stripe.Event{}, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "verify signature")
	}
	return event, nil
}

func acknowledge(w http.ResponseWriter) {
	responses.WriteSuccess(w, map[string]bool{"received": true})
}
