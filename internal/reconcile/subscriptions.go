package reconcile

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/hydrofarm-backend/internal/audit"
	"github.com/angelmondragon/hydrofarm-backend/internal/payments"
	"github.com/angelmondragon/hydrofarm-backend/internal/scheduling"
	"github.com/angelmondragon/hydrofarm-backend/internal/subscriptions"
	"github.com/angelmondragon/hydrofarm-backend/pkg/db/models"
	"github.com/angelmondragon/hydrofarm-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/hydrofarm-backend/pkg/errors"
)

// Activation is the payment evidence behind a subscription activation. Auth
// carries an authorization state already known to the caller.
type Activation struct {
	Confirmation
	Auth               payments.AuthState
	CardSubscriptionID string
}

// SubscriptionResult is the state of a subscription after a call.
type SubscriptionResult struct {
	Subscription *models.Subscription
	Outcome      Outcome
	Scheduled    []time.Time
}

// ActivateSubscription runs the first activation of a paused subscription:
// next delivery date, a one-time stock reservation, the first cycle of
// deliveries and the subscription.activated event.
func (s *Service) ActivateSubscription(ctx context.Context, subID uuid.UUID, a Activation) (*SubscriptionResult, error) {
	ctx = s.traced(ctx)
	ctx = s.logg.WithEntity(ctx, string(enums.EntitySubscription), subID.String())

	schedule := s.settings.Schedule(ctx)
	at := a.ConfirmedAt
	if at.IsZero() {
		at = s.now()
	}

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

		if a.CardSubscriptionID != "" && deref(sub.CardSubscriptionID) != a.CardSubscriptionID {
			if err := repo.SetCardSubscriptionID(ctx, subID, a.CardSubscriptionID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "store card subscription id")
			}
		}

		ok, err := repo.Activate(ctx, subID, at)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "activate subscription")
		}
		if ok {
			dates, err := s.activateTx(ctx, tx, repo, sub, schedule, at, a.Source, a.Reference)
			if err != nil {
				return err
			}
			res.Scheduled = dates
			res.Outcome = OutcomeApplied
		}

		if a.Auth != "" {
			if _, err := s.applyAuthorizationTx(ctx, repo, sub, a.Auth); err != nil {
				return err
			}
		}

		current, err := repo.FindByID(ctx, subID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reload subscription")
		}
		res.Subscription = current
		if !ok {
			if current.Status == enums.SubscriptionStatusActive {
				res.Outcome = OutcomeAlreadyConfirmed
			} else {
				res.Outcome = OutcomeConflict
			}
		}
		return nil
	})

	s.recordSubscription(ctx, "subscription.activate", subID.String(), a.Confirmation, res, err)
	if err != nil {
		return nil, err
	}
	return res, nil
}

// activateTx runs after the status moved to active inside tx.
func (s *Service) activateTx(ctx context.Context, tx *gorm.DB, repo subscriptions.Repository, sub *models.Subscription, schedule scheduling.Settings, at time.Time, source enums.EventSource, reference string) ([]time.Time, error) {
	plan := s.calc.SubscriptionPlan(schedule, planInput(sub, at))
	if err := repo.SetNextDeliveryDate(ctx, sub.ID, models.NewDate(plan.Next)); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "set next delivery date")
	}

	reserved, err := repo.MarkStockReserved(ctx, sub.ID, at)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mark stock reserved")
	}
	if reserved {
		if err := s.ledger.ReserveForSubscription(ctx, tx, sub.ID, plan.Count); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reserve stock")
		}
	}

	if _, err := s.insertDeliveries(ctx, repo, sub, plan.Dates, reference); err != nil {
		return nil, err
	}
	if err := s.emitSubscriptionActivated(ctx, tx, sub, source, plan.Next, len(plan.Dates)); err != nil {
		return nil, err
	}
	return plan.Dates, nil
}

// generateCycleTx schedules one billing cycle for an already activated
// subscription. A charge reference that already produced deliveries is
// skipped, so replays on later days do not shift the cycle.
func (s *Service) generateCycleTx(ctx context.Context, tx *gorm.DB, repo subscriptions.Repository, sub *models.Subscription, schedule scheduling.Settings, reference string) ([]time.Time, bool, error) {
	seen, err := repo.HasDeliveriesForCharge(ctx, sub.ID, reference)
	if err != nil {
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check billing cycle")
	}
	if seen {
		return nil, false, nil
	}

	plan := s.calc.SubscriptionPlan(schedule, planInput(sub, s.now()))
	inserted, err := s.insertDeliveries(ctx, repo, sub, plan.Dates, reference)
	if err != nil {
		return nil, false, err
	}
	if len(plan.Dates) > 0 {
		if err := repo.SetNextDeliveryDate(ctx, sub.ID, models.NewDate(plan.Dates[0])); err != nil {
			return nil, false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "set next delivery date")
		}
	}
	if inserted == 0 {
		return plan.Dates, false, nil
	}
	if err := s.emitDeliveriesScheduled(ctx, tx, sub, reference, plan.Dates); err != nil {
		return nil, false, err
	}
	return plan.Dates, true, nil
}

func (s *Service) insertDeliveries(ctx context.Context, repo subscriptions.Repository, sub *models.Subscription, dates []time.Time, reference string) (int64, error) {
	rows := make([]models.SubscriptionDelivery, 0, len(dates))
	for _, d := range dates {
		row := models.SubscriptionDelivery{
			SubscriptionID: sub.ID,
			DeliveryDate:   *models.NewDate(d),
			TotalAmount:    sub.TotalAmount,
			PaymentStatus:  enums.PaymentStatusConfirmed,
			DeliveryStatus: enums.DeliveryStatusAwaiting,
		}
		if reference != "" {
			ref := reference
			row.ChargeReference = &ref
		}
		rows = append(rows, row)
	}
	n, err := repo.InsertDeliveries(ctx, rows)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "insert deliveries")
	}
	return n, nil
}

func (s *Service) applyAuthorizationTx(ctx context.Context, repo subscriptions.Repository, sub *models.Subscription, state payments.AuthState) (bool, error) {
	next, authorized, changed := NextRecurrenceOnAuthorization(recurrenceOf(sub.RecurrenceStatus), sub.RecurrenceAuthorized, state)
	if !changed {
		return false, nil
	}
	ok, err := repo.UpdateRecurrence(ctx, sub.ID, next, authorized)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update recurrence")
	}
	return ok, nil
}

// PauseSubscription pauses a subscription, optionally recording why the
// recurrence stopped.
func (s *Service) PauseSubscription(ctx context.Context, subID uuid.UUID, c Confirmation, rec *enums.RecurrenceStatus, reason string) (*SubscriptionResult, error) {
	return s.changeStatus(ctx, "subscription.pause", subID, c, func(tx *gorm.DB, repo subscriptions.Repository) (bool, error) {
		ok, err := repo.Pause(ctx, subID, rec)
		if err != nil || !ok {
			return ok, err
		}
		return true, s.emitSubscriptionStatus(ctx, tx, subID, enums.SubscriptionStatusPaused, rec, reason)
	})
}

// CancelSubscription cancels a subscription for good.
func (s *Service) CancelSubscription(ctx context.Context, subID uuid.UUID, c Confirmation, reason string) (*SubscriptionResult, error) {
	at := c.ConfirmedAt
	if at.IsZero() {
		at = s.now()
	}
	return s.changeStatus(ctx, "subscription.cancel", subID, c, func(tx *gorm.DB, repo subscriptions.Repository) (bool, error) {
		ok, err := repo.Cancel(ctx, subID, at)
		if err != nil || !ok {
			return ok, err
		}
		return true, s.emitSubscriptionStatus(ctx, tx, subID, enums.SubscriptionStatusCancelled, nil, reason)
	})
}

func (s *Service) changeStatus(ctx context.Context, event string, subID uuid.UUID, c Confirmation, apply func(tx *gorm.DB, repo subscriptions.Repository) (bool, error)) (*SubscriptionResult, error) {
	ctx = s.traced(ctx)
	ctx = s.logg.WithEntity(ctx, string(enums.EntitySubscription), subID.String())

	res := &SubscriptionResult{Outcome: OutcomeNoop}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.subs.WithTx(tx)
		ok, err := apply(tx, repo)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, event)
		}
		current, err := repo.FindByID(ctx, subID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reload subscription")
		}
		if current == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "subscription not found")
		}
		res.Subscription = current
		if ok {
			res.Outcome = OutcomeApplied
		}
		return nil
	})

	s.recordSubscription(ctx, event, subID.String(), c, res, err)
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (s *Service) recordSubscription(ctx context.Context, event, subID string, c Confirmation, res *SubscriptionResult, err error) {
	outcome := res.Outcome
	payload := map[string]any{"reference": c.Reference}
	if res.Subscription != nil {
		payload["status"] = res.Subscription.Status
		payload["next_delivery_date"] = models.DateString(res.Subscription.NextDeliveryDate)
		if res.Subscription.RecurrenceStatus != nil {
			payload["recurrence_status"] = *res.Subscription.RecurrenceStatus
		}
	}
	if len(res.Scheduled) > 0 {
		dates := make([]string, 0, len(res.Scheduled))
		for _, d := range res.Scheduled {
			dates = append(dates, d.Format(time.DateOnly))
		}
		payload["scheduled"] = dates
	}

	entry := audit.Entry{
		Provider:   c.Provider,
		Source:     c.Source,
		Event:      event,
		EntityType: enums.EntitySubscription,
		EntityID:   subID,
		Payload:    payload,
		Err:        err,
	}
	switch {
	case pkgerrors.IsCode(err, pkgerrors.CodeNotFound):
		outcome = OutcomeUnknownEntity
	case err != nil:
		outcome = OutcomeError
	case outcome == OutcomeConflict:
		entry.Err = pkgerrors.Newf(pkgerrors.CodeStateConflict, "subscription is %s", res.Subscription.Status)
	}
	s.record(ctx, entry, outcome)
}

func planInput(sub *models.Subscription, at time.Time) scheduling.PlanInput {
	in := scheduling.PlanInput{
		Frequency:   sub.Frequency,
		Weekday:     deref(sub.DeliveryWeekday),
		Custom:      sub.DeliveryWeekdays,
		ConfirmedAt: at,
	}
	if sub.IsEmergency {
		in.Frequency = nil
		in.Custom = nil
	}
	return in
}
