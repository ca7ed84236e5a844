package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/hydrofarm-backend/api/responses"
	"github.com/angelmondragon/hydrofarm-backend/api/validators"
	"github.com/angelmondragon/hydrofarm-backend/internal/reconcile"
	"github.com/angelmondragon/hydrofarm-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/hydrofarm-backend/pkg/errors"
	"github.com/angelmondragon/hydrofarm-backend/pkg/logger"
)

type PaymentStatusService interface {
	CheckPaymentStatus(ctx context.Context, target reconcile.Target) (*reconcile.StatusResult, error)
}

type paymentStatusRequest struct {
	Type string `json:"type" validate:"required,oneof=order subscription"`
	ID   string `json:"id" validate:"required,uuid"`
}

// PaymentStatus lets a client that just paid ask whether the payment landed,
// without waiting for the webhook.
func PaymentStatus(svc PaymentStatusService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment status unavailable"))
			return
		}

		var req paymentStatusRequest
		if err := validators.DecodeJSONBody(w, r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		id, err := uuid.Parse(req.ID)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid id"))
			return
		}

		result, err := svc.CheckPaymentStatus(ctx, reconcile.Target{Type: enums.EntityType(req.Type), ID: id})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
