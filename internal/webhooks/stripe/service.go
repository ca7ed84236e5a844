package stripewebhook

import (
	"context"
	"encoding/json"

	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/hydrofarm-backend/internal/payments"
	"github.com/angelmondragon/hydrofarm-backend/internal/reconcile"
	"github.com/angelmondragon/hydrofarm-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/hydrofarm-backend/pkg/errors"
	"github.com/angelmondragon/hydrofarm-backend/pkg/logger"
)

// Reconciler is the part of the reconciliation service card events drive.
type Reconciler interface {
	CompleteCheckout(ctx context.Context, result payments.CheckoutResult, source enums.EventSource) error
	CardInvoicePaid(ctx context.Context, cardSubID, billingReason, invoiceID string) error
	CardPaymentFailed(ctx context.Context, ref reconcile.FailureRef) error
	CardSubscriptionDeleted(ctx context.Context, cardSubID string) error
}

type ServiceParams struct {
	Reconciler Reconciler
	Logger     *logger.Logger
}

type Service struct {
	reconciler Reconciler
	logg       *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Reconciler == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "reconciler required")
	}
	return &Service{reconciler: params.Reconciler, logg: params.Logger}, nil
}

func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}
	if s.logg != nil {
		ctx = s.logg.WithFields(ctx, map[string]any{"stripe_event_id": event.ID, "stripe_event_type": string(event.Type)})
	}

	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted,
		stripe.EventTypeCheckoutSessionAsyncPaymentSucceeded:
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode checkout session")
		}
		return s.reconciler.CompleteCheckout(ctx, payments.CheckoutFromSession(&session), enums.SourceWebhook)

	case stripe.EventTypeCheckoutSessionAsyncPaymentFailed,
		stripe.EventTypeCheckoutSessionExpired:
		return s.reconciler.CardPaymentFailed(ctx, reconcile.FailureRef{
			OrderID:   event.GetObjectValue("metadata", reconcile.MetadataOrderID),
			SessionID: event.GetObjectValue("id"),
			Reason:    string(event.Type),
		})

	case stripe.EventTypePaymentIntentPaymentFailed:
		reason := event.GetObjectValue("last_payment_error", "message")
		if reason == "" {
			reason = string(event.Type)
		}
		return s.reconciler.CardPaymentFailed(ctx, reconcile.FailureRef{
			OrderID:         event.GetObjectValue("metadata", reconcile.MetadataOrderID),
			PaymentIntentID: event.GetObjectValue("id"),
			Reason:          reason,
		})

	case stripe.EventTypeInvoicePaid:
		subID := invoiceSubscriptionID(event)
		if subID == "" {
			s.ignore(ctx, "invoice without subscription")
			return nil
		}
		return s.reconciler.CardInvoicePaid(ctx, subID, event.GetObjectValue("billing_reason"), event.GetObjectValue("id"))

	case stripe.EventTypeInvoicePaymentFailed:
		subID := invoiceSubscriptionID(event)
		if subID == "" {
			s.ignore(ctx, "invoice without subscription")
			return nil
		}
		return s.reconciler.CardPaymentFailed(ctx, reconcile.FailureRef{
			CardSubscriptionID: subID,
			Reason:             string(event.Type),
		})

	case stripe.EventTypeCustomerSubscriptionDeleted:
		subID := event.GetObjectValue("id")
		if subID == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "subscription id missing")
		}
		return s.reconciler.CardSubscriptionDeleted(ctx, subID)

	default:
		s.ignore(ctx, "stripe event ignored")
		return nil
	}
}

func (s *Service) ignore(ctx context.Context, msg string) {
	if s.logg != nil {
		s.logg.Debug(ctx, msg)
	}
}

// invoiceSubscriptionID reads the subscription from either the legacy
// top-level field or the parent details newer API versions send.
func invoiceSubscriptionID(event *stripe.Event) string {
	if id := event.GetObjectValue("subscription"); id != "" {
		return id
	}
	return event.GetObjectValue("parent", "subscription_details", "subscription")
}
