package reconcile

import (
	"context"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"

	"github.com/angelmondragon/hydrofarm-backend/internal/audit"
	"github.com/angelmondragon/hydrofarm-backend/internal/payments"
	"github.com/angelmondragon/hydrofarm-backend/pkg/db/models"
	"github.com/angelmondragon/hydrofarm-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/hydrofarm-backend/pkg/errors"
)

// Payment states reported to clients.
const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusExpired   = "expired"
)

// Target names the entity a status check is about.
type Target struct {
	Type enums.EntityType
	ID   uuid.UUID
}

type StatusResult struct {
	Status           string  `json:"status"`
	AlreadyConfirmed bool    `json:"already_confirmed"`
	DeliveryDate     *string `json:"delivery_date,omitempty"`
	DeliveryTimeSlot *string `json:"delivery_time_slot,omitempty"`
	NextDeliveryDate *string `json:"next_delivery_date,omitempty"`
	RecurrenceStatus *string `json:"recurrence_status,omitempty"`
}

// CheckPaymentStatus asks the provider about an entity still awaiting payment
// and applies whatever it reports. Entities already confirmed answer without
// a provider call. Removed charges are reported as expired; reissue only
// happens on the webhook path.
func (s *Service) CheckPaymentStatus(ctx context.Context, target Target) (*StatusResult, error) {
	return s.checkStatus(ctx, target, enums.SourceStatusCheck)
}

// PollPaymentStatus is CheckPaymentStatus as run by the background poll; it
// differs only in the source recorded in the audit log.
func (s *Service) PollPaymentStatus(ctx context.Context, target Target) (*StatusResult, error) {
	return s.checkStatus(ctx, target, enums.SourcePoll)
}

func (s *Service) checkStatus(ctx context.Context, target Target, source enums.EventSource) (*StatusResult, error) {
	ctx = s.traced(ctx)
	ctx = s.logg.WithEntity(ctx, string(target.Type), target.ID.String())

	switch target.Type {
	case enums.EntityOrder:
		return s.orderStatus(ctx, target.ID, source)
	case enums.EntitySubscription:
		return s.subscriptionStatus(ctx, target.ID, source)
	default:
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "unknown entity type %q", target.Type)
	}
}

func (s *Service) orderStatus(ctx context.Context, id uuid.UUID, source enums.EventSource) (*StatusResult, error) {
	order, err := s.orders.FindByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
	}
	if order == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}

	switch order.PaymentStatus {
	case enums.PaymentStatusConfirmed:
		out := orderResult(order, StatusConfirmed)
		out.AlreadyConfirmed = true
		return out, nil
	case enums.PaymentStatusDeclined, enums.PaymentStatusCancelled:
		return orderResult(order, StatusExpired), nil
	}

	status := StatusPending
	switch {
	case order.PaymentMethod == enums.PaymentMethodInstant && deref(order.PixTxID) != "":
		txid := *order.PixTxID
		charge, err := s.pix.QueryCharge(ctx, txid)
		if err != nil {
			return nil, s.statusFailure(ctx, source, enums.ProviderPix, enums.EntityOrder, id, txid, err)
		}
		switch {
		case charge.State == payments.ChargeSettled:
			res, err := s.ConfirmOrder(ctx, id, Confirmation{Source: source, Provider: enums.ProviderPix, Reference: txid})
			if err != nil {
				return nil, err
			}
			order = res.Order
		case charge.State.Removed():
			status = StatusExpired
		}
	case deref(order.CardSessionID) != "":
		sessionID := *order.CardSessionID
		checkout, err := s.card.RetrieveCheckoutSession(ctx, sessionID)
		if err != nil {
			return nil, s.statusFailure(ctx, source, enums.ProviderStripe, enums.EntityOrder, id, sessionID, err)
		}
		if checkout.Paid {
			if checkout.Metadata == nil {
				checkout.Metadata = map[string]string{}
			}
			if checkout.Metadata[MetadataOrderID] == "" {
				checkout.Metadata[MetadataOrderID] = id.String()
			}
			checkout.Metadata[MetadataType] = string(enums.EntityOrder)
			if err := s.CompleteCheckout(ctx, checkout, source); err != nil {
				return nil, err
			}
			if order, err = s.orders.FindByID(ctx, id); err != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reload order")
			}
		}
	}

	if order == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	if order.PaymentStatus == enums.PaymentStatusConfirmed {
		status = StatusConfirmed
	}
	return orderResult(order, status), nil
}

func (s *Service) subscriptionStatus(ctx context.Context, id uuid.UUID, source enums.EventSource) (*StatusResult, error) {
	sub, err := s.subs.FindByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load subscription")
	}
	if sub == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "subscription not found")
	}

	switch sub.Status {
	case enums.SubscriptionStatusActive:
		out := subscriptionResult(sub, StatusConfirmed)
		out.AlreadyConfirmed = true
		return out, nil
	case enums.SubscriptionStatusCancelled:
		return subscriptionResult(sub, StatusExpired), nil
	}

	status := StatusPending
	if sub.PaymentMethod == enums.PaymentMethodCard {
		if sessionID := deref(sub.CardSessionID); sessionID != "" {
			checkout, err := s.card.RetrieveCheckoutSession(ctx, sessionID)
			if err != nil {
				return nil, s.statusFailure(ctx, source, enums.ProviderStripe, enums.EntitySubscription, id, sessionID, err)
			}
			if checkout.Paid {
				if checkout.Metadata == nil {
					checkout.Metadata = map[string]string{}
				}
				if checkout.Metadata[MetadataSubscriptionID] == "" {
					checkout.Metadata[MetadataSubscriptionID] = id.String()
				}
				checkout.Metadata[MetadataType] = string(enums.EntitySubscription)
				if err := s.CompleteCheckout(ctx, checkout, source); err != nil {
					return nil, err
				}
			}
		}
	} else {
		expired, err := s.checkInstantSubscription(ctx, sub, source)
		if err != nil {
			return nil, err
		}
		if expired {
			status = StatusExpired
		}
	}

	if sub, err = s.subs.FindByID(ctx, id); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reload subscription")
	}
	if sub == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "subscription not found")
	}
	if sub.Status == enums.SubscriptionStatusActive {
		status = StatusConfirmed
	}
	return subscriptionResult(sub, status), nil
}

// checkInstantSubscription queries the first charge and the recurrence
// authorization in parallel. Only never-activated subscriptions look at the
// first charge; a later pause is not undone by it.
func (s *Service) checkInstantSubscription(ctx context.Context, sub *models.Subscription, source enums.EventSource) (bool, error) {
	txid := deref(sub.PixTxID)
	recID := deref(sub.PixRecurrenceID)
	queryCharge := sub.ActivatedAt == nil && txid != ""

	var (
		charge payments.ChargeInfo
		auth   payments.AuthState
	)
	g, gctx := errgroup.WithContext(ctx)
	if queryCharge {
		g.Go(func() error {
			var err error
			charge, err = s.pix.QueryCharge(gctx, txid)
			return err
		})
	}
	if recID != "" {
		g.Go(func() error {
			var err error
			auth, err = s.pix.QueryAuthorization(gctx, recID)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return false, s.statusFailure(ctx, source, enums.ProviderPix, enums.EntitySubscription, sub.ID, firstNonEmpty(txid, recID), err)
	}

	if queryCharge && charge.State == payments.ChargeSettled {
		_, err := s.ActivateSubscription(ctx, sub.ID, Activation{
			Confirmation: Confirmation{Source: source, Provider: enums.ProviderPix, Reference: txid},
			Auth:         auth,
		})
		return false, err
	}
	if auth != "" && auth != payments.AuthUnknown {
		if err := s.ApplyAuthorization(ctx, recID, auth, source); err != nil {
			return false, err
		}
	}
	return queryCharge && charge.State.Removed(), nil
}

func (s *Service) statusFailure(ctx context.Context, source enums.EventSource, provider enums.Provider, entityType enums.EntityType, id uuid.UUID, ref string, err error) error {
	s.record(ctx, audit.Entry{
		Provider:   provider,
		Source:     source,
		Event:      "status.query",
		EntityType: entityType,
		EntityID:   id.String(),
		Payload:    map[string]any{"reference": ref},
		Err:        err,
	}, OutcomeError)
	if pkgerrors.As(err) == nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "payment provider unavailable")
	}
	return err
}

func orderResult(o *models.Order, status string) *StatusResult {
	return &StatusResult{
		Status:           status,
		DeliveryDate:     optionalDate(o.DeliveryDate),
		DeliveryTimeSlot: o.DeliveryTimeSlot,
	}
}

func subscriptionResult(sub *models.Subscription, status string) *StatusResult {
	out := &StatusResult{
		Status:           status,
		NextDeliveryDate: optionalDate(sub.NextDeliveryDate),
	}
	if sub.RecurrenceStatus != nil {
		v := string(*sub.RecurrenceStatus)
		out.RecurrenceStatus = &v
	}
	return out
}

func optionalDate(d *datatypes.Date) *string {
	if d == nil {
		return nil
	}
	v := models.DateString(d)
	return &v
}
