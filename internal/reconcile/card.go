package reconcile

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/hydrofarm-backend/internal/audit"
	"github.com/angelmondragon/hydrofarm-backend/internal/payments"
	"github.com/angelmondragon/hydrofarm-backend/pkg/db/models"
	"github.com/angelmondragon/hydrofarm-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/hydrofarm-backend/pkg/errors"
)

// Checkout metadata written when the session is created.
const (
	MetadataType           = "type"
	MetadataOrderID        = "order_id"
	MetadataSubscriptionID = "subscription_id"

	BillingReasonCycle = "subscription_cycle"
)

// FailureRef locates the entity behind a failed card payment. Any one field
// is enough.
type FailureRef struct {
	OrderID            string
	SessionID          string
	PaymentIntentID    string
	CardSubscriptionID string
	Reason             string
}

// CompleteCheckout applies a completed checkout session. Unpaid sessions are
// a no-op; async payments arrive again once they settle.
func (s *Service) CompleteCheckout(ctx context.Context, result payments.CheckoutResult, source enums.EventSource) error {
	ctx = s.traced(ctx)
	ctx = s.logg.WithField(ctx, "session_id", result.SessionID)

	if !result.Paid {
		s.record(ctx, audit.Entry{
			Provider: enums.ProviderStripe,
			Source:   source,
			Event:    "card.checkout",
			EntityID: result.SessionID,
			Payload:  map[string]any{"session_id": result.SessionID, "paid": false},
		}, OutcomeNoop)
		return nil
	}

	c := Confirmation{Source: source, Provider: enums.ProviderStripe, Reference: result.SessionID}
	kind := result.Metadata[MetadataType]

	if kind == "" || kind == string(enums.EntityOrder) {
		order, err := s.findCardOrder(ctx, result.Metadata[MetadataOrderID], result.SessionID, "")
		if err != nil {
			return s.cardFailure(ctx, source, result.SessionID, "card.checkout", err)
		}
		if order != nil {
			if result.PaymentIntentID != "" && deref(order.CardPaymentIntentID) != result.PaymentIntentID {
				if err := s.orders.SetCardPaymentIntent(ctx, order.ID, result.PaymentIntentID); err != nil {
					return s.cardFailure(ctx, source, result.SessionID, "card.checkout", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "store payment intent"))
				}
			}
			_, err := s.ConfirmOrder(ctx, order.ID, c)
			return err
		}
	}

	if kind == "" || kind == string(enums.EntitySubscription) {
		sub, err := s.findCardSubscription(ctx, result.Metadata[MetadataSubscriptionID], result.SessionID, "")
		if err != nil {
			return s.cardFailure(ctx, source, result.SessionID, "card.checkout", err)
		}
		if sub != nil {
			_, err := s.ActivateSubscription(ctx, sub.ID, Activation{
				Confirmation:       c,
				CardSubscriptionID: result.SubscriptionID,
			})
			return err
		}
	}

	s.logg.Warn(ctx, "checkout session for unknown entity")
	s.record(ctx, audit.Entry{
		Provider: enums.ProviderStripe,
		Source:   source,
		Event:    "card.checkout",
		EntityID: result.SessionID,
		Payload:  map[string]any{"session_id": result.SessionID, "type": kind},
	}, OutcomeUnknownEntity)
	return nil
}

// CardInvoicePaid keeps a card subscription active after a paid invoice.
// Renewal invoices also schedule the deliveries of the new cycle.
func (s *Service) CardInvoicePaid(ctx context.Context, cardSubID, billingReason, invoiceID string) error {
	ctx = s.traced(ctx)
	ctx = s.logg.WithField(ctx, "card_subscription_id", cardSubID)
	source := enums.SourceWebhook

	sub, err := s.subs.FindByCardSubscriptionID(ctx, cardSubID)
	if err != nil {
		return s.cardFailure(ctx, source, cardSubID, "card.invoice_paid", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "find subscription by card id"))
	}
	if sub == nil {
		s.logg.Warn(ctx, "paid invoice for unknown card subscription")
		s.record(ctx, audit.Entry{
			Provider: enums.ProviderStripe,
			Source:   source,
			Event:    "card.invoice_paid",
			EntityID: cardSubID,
			Payload:  map[string]any{"invoice_id": invoiceID, "billing_reason": billingReason},
		}, OutcomeUnknownEntity)
		return nil
	}

	c := Confirmation{Source: source, Provider: enums.ProviderStripe, Reference: invoiceID}
	if sub.ActivatedAt == nil {
		_, err := s.ActivateSubscription(ctx, sub.ID, Activation{Confirmation: c, CardSubscriptionID: cardSubID})
		return err
	}

	ctx = s.logg.WithEntity(ctx, string(enums.EntitySubscription), sub.ID.String())
	schedule := s.settings.Schedule(ctx)
	at := s.now()

	res := &SubscriptionResult{Outcome: OutcomeNoop}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.subs.WithTx(tx)
		current, err := repo.FindByID(ctx, sub.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load subscription")
		}
		if current == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "subscription not found")
		}
		if current.Status == enums.SubscriptionStatusCancelled {
			res.Subscription, res.Outcome = current, OutcomeConflict
			return nil
		}

		ok, err := repo.Activate(ctx, sub.ID, at)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "activate subscription")
		}
		if ok {
			res.Outcome = OutcomeApplied
		} else {
			res.Outcome = OutcomeAlreadyConfirmed
		}

		if billingReason == BillingReasonCycle {
			dates, inserted, err := s.generateCycleTx(ctx, tx, repo, current, schedule, invoiceID)
			if err != nil {
				return err
			}
			if inserted {
				res.Scheduled, res.Outcome = dates, OutcomeApplied
			}
		} else {
			next := s.calc.NextDelivery(schedule, planInput(current, at))
			if err := repo.SetNextDeliveryDate(ctx, sub.ID, models.NewDate(next)); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "set next delivery date")
			}
		}

		res.Subscription, err = repo.FindByID(ctx, sub.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reload subscription")
		}
		return nil
	})

	s.recordSubscription(ctx, "card.invoice_paid", sub.ID.String(), c, res, err)
	return err
}

// CardPaymentFailed declines a still pending order or pauses the
// subscription the failed payment belongs to.
func (s *Service) CardPaymentFailed(ctx context.Context, ref FailureRef) error {
	ctx = s.traced(ctx)
	source := enums.SourceWebhook
	reference := firstNonEmpty(ref.PaymentIntentID, ref.SessionID, ref.CardSubscriptionID, ref.OrderID)
	c := Confirmation{Source: source, Provider: enums.ProviderStripe, Reference: reference}

	if ref.CardSubscriptionID == "" {
		order, err := s.findCardOrder(ctx, ref.OrderID, ref.SessionID, ref.PaymentIntentID)
		if err != nil {
			return s.cardFailure(ctx, source, reference, "card.payment_failed", err)
		}
		if order != nil {
			if order.PaymentStatus != enums.PaymentStatusPending {
				s.record(ctx, audit.Entry{
					Provider:   enums.ProviderStripe,
					Source:     source,
					Event:      "order.decline",
					EntityType: enums.EntityOrder,
					EntityID:   order.ID.String(),
					Payload:    map[string]any{"reference": reference, "payment_status": order.PaymentStatus},
				}, OutcomeNoop)
				return nil
			}
			_, err := s.DeclineOrder(ctx, order.ID, c, ref.Reason)
			return err
		}
	}

	sub, err := s.findCardSubscription(ctx, "", ref.SessionID, ref.CardSubscriptionID)
	if err != nil {
		return s.cardFailure(ctx, source, reference, "card.payment_failed", err)
	}
	if sub != nil {
		_, err := s.PauseSubscription(ctx, sub.ID, c, nil, ref.Reason)
		return err
	}

	s.logg.Warn(ctx, "card payment failure for unknown entity")
	s.record(ctx, audit.Entry{
		Provider: enums.ProviderStripe,
		Source:   source,
		Event:    "card.payment_failed",
		EntityID: reference,
		Payload:  map[string]any{"reference": reference},
	}, OutcomeUnknownEntity)
	return nil
}

// CardSubscriptionDeleted cancels the subscription behind a deleted card
// subscription once the card rail confirms it ended. A subscription the rail
// still bills is left alone.
func (s *Service) CardSubscriptionDeleted(ctx context.Context, cardSubID string) error {
	ctx = s.traced(ctx)
	source := enums.SourceWebhook

	sub, err := s.subs.FindByCardSubscriptionID(ctx, cardSubID)
	if err != nil {
		return s.cardFailure(ctx, source, cardSubID, "card.subscription_deleted", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "find subscription by card id"))
	}
	if sub == nil {
		s.logg.Warn(ctx, "deleted card subscription is unknown")
		s.record(ctx, audit.Entry{
			Provider: enums.ProviderStripe,
			Source:   source,
			Event:    "card.subscription_deleted",
			EntityID: cardSubID,
		}, OutcomeUnknownEntity)
		return nil
	}

	card, err := s.card.RetrieveSubscription(ctx, cardSubID)
	if err != nil {
		return s.cardFailure(ctx, source, cardSubID, "card.subscription_deleted", err)
	}
	if !card.Ended() {
		s.logg.Warn(s.logg.WithField(ctx, "card_status", card.Status), "deleted card subscription is still live")
		s.record(ctx, audit.Entry{
			Provider:   enums.ProviderStripe,
			Source:     source,
			Event:      "card.subscription_deleted",
			EntityType: enums.EntitySubscription,
			EntityID:   sub.ID.String(),
			Payload:    map[string]any{"reference": cardSubID, "card_status": card.Status},
		}, OutcomeConflict)
		return nil
	}

	c := Confirmation{Source: source, Provider: enums.ProviderStripe, Reference: cardSubID}
	_, err = s.CancelSubscription(ctx, sub.ID, c, "card subscription deleted")
	return err
}

func (s *Service) findCardOrder(ctx context.Context, orderID, sessionID, intentID string) (*models.Order, error) {
	if id, err := uuid.Parse(orderID); err == nil {
		order, err := s.orders.FindByID(ctx, id)
		if err != nil || order != nil {
			return order, wrapLookup(err, "find order")
		}
	}
	if sessionID != "" {
		order, err := s.orders.FindByCardSessionID(ctx, sessionID)
		if err != nil || order != nil {
			return order, wrapLookup(err, "find order by session")
		}
	}
	if intentID != "" {
		order, err := s.orders.FindByCardPaymentIntentID(ctx, intentID)
		return order, wrapLookup(err, "find order by payment intent")
	}
	return nil, nil
}

func (s *Service) findCardSubscription(ctx context.Context, subID, sessionID, cardSubID string) (*models.Subscription, error) {
	if id, err := uuid.Parse(subID); err == nil {
		sub, err := s.subs.FindByID(ctx, id)
		if err != nil || sub != nil {
			return sub, wrapLookup(err, "find subscription")
		}
	}
	if cardSubID != "" {
		sub, err := s.subs.FindByCardSubscriptionID(ctx, cardSubID)
		if err != nil || sub != nil {
			return sub, wrapLookup(err, "find subscription by card id")
		}
	}
	if sessionID != "" {
		sub, err := s.subs.FindByCardSessionID(ctx, sessionID)
		return sub, wrapLookup(err, "find subscription by session")
	}
	return nil, nil
}

func (s *Service) cardFailure(ctx context.Context, source enums.EventSource, ref, event string, err error) error {
	s.record(ctx, audit.Entry{
		Provider: enums.ProviderStripe,
		Source:   source,
		Event:    event,
		EntityID: ref,
		Err:      err,
	}, OutcomeError)
	return err
}

func wrapLookup(err error, msg string) error {
	if err == nil {
		return nil
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, msg)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
