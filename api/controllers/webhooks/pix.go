package webhooks

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/angelmondragon/hydrofarm-backend/api/responses"
	pixwebhook "github.com/angelmondragon/hydrofarm-backend/internal/webhooks/pix"
	pkgerrors "github.com/angelmondragon/hydrofarm-backend/pkg/errors"
	"github.com/angelmondragon/hydrofarm-backend/pkg/logger"
)

// A notification batches at most a few hundred entries.
const maxPixPayload = 256 << 10

type PixWebhookService interface {
	Process(ctx context.Context, n *pixwebhook.Notification) error
}

// PixWebhook receives instant-payment notifications. When secret is set the
// registered URL carries it as ?hmac= and requests without it are rejected.
// The payload only names charges; their state is always re-queried.
func PixWebhook(svc PixWebhookService, secret string, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "pix webhook unavailable"))
			return
		}
		if secret != "" {
			got := r.URL.Query().Get("hmac")
			if subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid webhook secret"))
				return
			}
		}

		payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxPixPayload))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "payload too large"))
				return
			}
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
			return
		}

		var notification pixwebhook.Notification
		if len(bytes.TrimSpace(payload)) > 0 {
			if err := json.Unmarshal(payload, &notification); err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid notification body"))
				return
			}
		}

		if err := svc.Process(ctx, &notification); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if logg != nil {
			logg.Info(logg.WithFields(ctx, map[string]any{
				"pix":   len(notification.Pix),
				"recs":  len(notification.Recurrences),
				"cobsr": len(notification.RecurringCharges),
			}), "pix.notification.processed")
		}
		responses.WriteSuccess(w, map[string]bool{"received": true})
	}
}
