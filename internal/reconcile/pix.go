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
	"github.com/angelmondragon/hydrofarm-backend/pkg/outbox/payloads"
)

// HandlePixNotification re-queries an immediate charge named by a webhook and
// applies the result. Charges removed by expiry are reissued while the
// entity still awaits payment. Unknown txids are audited and acknowledged.
func (s *Service) HandlePixNotification(ctx context.Context, txid string, source enums.EventSource) error {
	ctx = s.traced(ctx)
	ctx = s.logg.WithField(ctx, "txid", txid)

	order, err := s.orders.FindByPixTxID(ctx, txid)
	if err != nil {
		return s.pixFailure(ctx, source, txid, "pix.lookup", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "find order by txid"))
	}
	var sub *models.Subscription
	if order == nil {
		sub, err = s.subs.FindByPixTxID(ctx, txid)
		if err != nil {
			return s.pixFailure(ctx, source, txid, "pix.lookup", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "find subscription by txid"))
		}
	}
	if order == nil && sub == nil {
		s.logg.Warn(ctx, "pix notification for unknown txid")
		s.record(ctx, audit.Entry{
			Provider: enums.ProviderPix,
			Source:   source,
			Event:    "pix.charge",
			EntityID: txid,
			Payload:  map[string]any{"txid": txid},
		}, OutcomeUnknownEntity)
		return nil
	}

	entityType, entityID := enums.EntityOrder, uuid.Nil
	if order != nil {
		entityID = order.ID
	} else {
		entityType, entityID = enums.EntitySubscription, sub.ID
	}
	ctx = s.logg.WithEntity(ctx, string(entityType), entityID.String())

	charge, err := s.pix.QueryCharge(ctx, txid)
	if err != nil {
		s.record(ctx, audit.Entry{
			Provider:   enums.ProviderPix,
			Source:     source,
			Event:      "pix.query_charge",
			EntityType: entityType,
			EntityID:   entityID.String(),
			Payload:    map[string]any{"txid": txid},
			Err:        err,
		}, OutcomeError)
		return err
	}

	c := Confirmation{Source: source, Provider: enums.ProviderPix, Reference: txid}
	switch {
	case charge.State == payments.ChargeSettled && order != nil:
		_, err = s.ConfirmOrder(ctx, order.ID, c)
		return err
	case charge.State == payments.ChargeSettled:
		_, err = s.ActivateSubscription(ctx, sub.ID, Activation{Confirmation: c})
		return err
	case charge.State.Removed():
		return s.reissue(ctx, source, order, sub, txid)
	}

	s.record(ctx, audit.Entry{
		Provider:   enums.ProviderPix,
		Source:     source,
		Event:      "pix.charge",
		EntityType: entityType,
		EntityID:   entityID.String(),
		Payload:    map[string]any{"txid": txid, "charge_status": charge.RawStatus},
	}, OutcomeNoop)
	return nil
}

// reissue replaces an expired charge with a new one for the same amount. The
// swap is guarded by the previous txid, so two concurrent webhooks cannot
// both store a replacement.
func (s *Service) reissue(ctx context.Context, source enums.EventSource, order *models.Order, sub *models.Subscription, txid string) error {
	evt := payloads.ChargeReissuedEvent{PreviousID: txid}
	var awaiting bool
	if order != nil {
		evt.EntityType, evt.EntityID, evt.Amount = enums.EntityOrder, order.ID, order.TotalAmount
		awaiting = order.PaymentStatus == enums.PaymentStatusPending
	} else {
		evt.EntityType, evt.EntityID, evt.Amount = enums.EntitySubscription, sub.ID, sub.TotalAmount
		awaiting = sub.Status == enums.SubscriptionStatusPaused && sub.ActivatedAt == nil
	}

	payload := map[string]any{"previous_txid": txid}
	entry := audit.Entry{
		Provider:   enums.ProviderPix,
		Source:     source,
		Event:      "pix.reissue",
		EntityType: evt.EntityType,
		EntityID:   evt.EntityID.String(),
		Payload:    payload,
	}
	if !awaiting {
		s.record(ctx, entry, OutcomeNoop)
		return nil
	}

	charge, err := s.pix.CreateCharge(ctx, payments.ChargeSpec{
		Amount: evt.Amount,
		Key:    s.settings.PixKey(ctx, s.pixKey),
		Expiry: s.chargeExpiry,
	})
	if err != nil {
		entry.Err = err
		s.record(ctx, entry, OutcomeError)
		return err
	}
	evt.TxID, evt.CopyPaste = charge.TxID, charge.CopyPaste
	payload["txid"] = charge.TxID

	var replaced bool
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		if order != nil {
			replaced, err = s.orders.WithTx(tx).ReplaceCharge(ctx, order.ID, txid, charge.TxID, charge.CopyPaste)
		} else {
			replaced, err = s.subs.WithTx(tx).ReplaceCharge(ctx, sub.ID, txid, charge.TxID, charge.CopyPaste)
		}
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "store reissued charge")
		}
		if !replaced {
			return nil
		}
		return s.emitChargeReissued(ctx, tx, evt)
	})
	if err != nil {
		entry.Err = err
		s.record(ctx, entry, OutcomeError)
		return err
	}
	if !replaced {
		s.logg.Warn(ctx, "reissued charge discarded, entity moved on")
		s.record(ctx, entry, OutcomeNoop)
		return nil
	}
	s.record(ctx, entry, OutcomeReissued)
	return nil
}

// ApplyAuthorization moves the recurrence fields of the subscription that
// owns recID. The subscription status itself is left alone.
func (s *Service) ApplyAuthorization(ctx context.Context, recID string, state payments.AuthState, source enums.EventSource) error {
	ctx = s.traced(ctx)
	ctx = s.logg.WithField(ctx, "recurrence_id", recID)

	entry := audit.Entry{
		Provider: enums.ProviderPix,
		Source:   source,
		Event:    "pix.authorization",
		EntityID: recID,
		Payload:  map[string]any{"recurrence_id": recID, "authorization": string(state)},
	}
	outcome := OutcomeNoop
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.subs.WithTx(tx)
		sub, err := repo.FindByRecurrenceID(ctx, recID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "find subscription by recurrence")
		}
		if sub == nil {
			outcome = OutcomeUnknownEntity
			return nil
		}
		entry.EntityType, entry.EntityID = enums.EntitySubscription, sub.ID.String()
		changed, err := s.applyAuthorizationTx(ctx, repo, sub, state)
		if err != nil {
			return err
		}
		if changed {
			outcome = OutcomeApplied
		}
		return nil
	})
	if err != nil {
		entry.Err = err
		s.record(ctx, entry, OutcomeError)
		return err
	}
	if outcome == OutcomeUnknownEntity {
		s.logg.Warn(ctx, "authorization for unknown recurrence")
	}
	s.record(ctx, entry, outcome)
	return nil
}

// ApplyRecurringCharge applies one charge issued under a recurrence. A
// settled charge schedules the cycle (or runs the first activation), a failed
// one pauses the subscription.
func (s *Service) ApplyRecurringCharge(ctx context.Context, recID, txid string, state payments.ChargeState, source enums.EventSource) error {
	ctx = s.traced(ctx)
	ctx = s.logg.WithField(ctx, "recurrence_id", recID)

	sub, err := s.subs.FindByRecurrenceID(ctx, recID)
	if err != nil {
		return s.pixFailure(ctx, source, recID, "pix.recurring_charge", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "find subscription by recurrence"))
	}
	if sub == nil {
		s.logg.Warn(ctx, "recurring charge for unknown recurrence")
		s.record(ctx, audit.Entry{
			Provider: enums.ProviderPix,
			Source:   source,
			Event:    "pix.recurring_charge",
			EntityID: recID,
			Payload:  map[string]any{"recurrence_id": recID, "txid": txid},
		}, OutcomeUnknownEntity)
		return nil
	}

	c := Confirmation{Source: source, Provider: enums.ProviderPix, Reference: txid}
	subStatus, recStatus, generate := NextOnRecurringCharge(state)
	switch {
	case generate:
		return s.settleRecurringCharge(ctx, sub.ID, c)
	case subStatus == enums.SubscriptionStatusPaused:
		_, err := s.PauseSubscription(ctx, sub.ID, c, &recStatus, "recurring charge failed")
		return err
	}

	s.record(ctx, audit.Entry{
		Provider:   enums.ProviderPix,
		Source:     source,
		Event:      "pix.recurring_charge",
		EntityType: enums.EntitySubscription,
		EntityID:   sub.ID.String(),
		Payload:    map[string]any{"txid": txid, "charge_state": string(state)},
	}, OutcomeNoop)
	return nil
}

func (s *Service) settleRecurringCharge(ctx context.Context, subID uuid.UUID, c Confirmation) error {
	ctx = s.logg.WithEntity(ctx, string(enums.EntitySubscription), subID.String())
	schedule := s.settings.Schedule(ctx)
	at := s.now()

	res := &SubscriptionResult{Outcome: OutcomeNoop}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.subs.WithTx(tx)
		sub, err := repo.FindByID(ctx, subID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load subscription")
		}
		if sub == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "subscription not found")
		}
		if sub.Status == enums.SubscriptionStatusCancelled {
			res.Subscription = sub
			res.Outcome = OutcomeConflict
			return nil
		}

		firstActivation := sub.ActivatedAt == nil
		ok, err := repo.Activate(ctx, subID, at)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "activate subscription")
		}
		if firstActivation && ok {
			dates, err := s.activateTx(ctx, tx, repo, sub, schedule, at, c.Source, c.Reference)
			if err != nil {
				return err
			}
			res.Scheduled, res.Outcome = dates, OutcomeApplied
		} else {
			dates, inserted, err := s.generateCycleTx(ctx, tx, repo, sub, schedule, c.Reference)
			if err != nil {
				return err
			}
			if inserted || ok {
				res.Scheduled, res.Outcome = dates, OutcomeApplied
			} else {
				res.Outcome = OutcomeAlreadyConfirmed
			}
		}

		if _, err := repo.UpdateRecurrence(ctx, subID, enums.RecurrenceActive, sub.RecurrenceAuthorized); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update recurrence")
		}
		current, err := repo.FindByID(ctx, subID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reload subscription")
		}
		res.Subscription = current
		return nil
	})

	s.recordSubscription(ctx, "subscription.recurring_charge", subID.String(), c, res, err)
	return err
}

func (s *Service) pixFailure(ctx context.Context, source enums.EventSource, ref, event string, err error) error {
	s.record(ctx, audit.Entry{
		Provider: enums.ProviderPix,
		Source:   source,
		Event:    event,
		EntityID: ref,
		Err:      err,
	}, OutcomeError)
	return err
}
