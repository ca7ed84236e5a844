package reconcile

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/hydrofarm-backend/internal/audit"
	"github.com/angelmondragon/hydrofarm-backend/internal/orders"
	"github.com/angelmondragon/hydrofarm-backend/pkg/db/models"
	"github.com/angelmondragon/hydrofarm-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/hydrofarm-backend/pkg/errors"
)

// Confirmation is the payment evidence behind a confirm or activate call.
type Confirmation struct {
	Source      enums.EventSource
	Provider    enums.Provider
	Reference   string
	ConfirmedAt time.Time
}

// OrderResult is the state of an order after a reconciliation call.
type OrderResult struct {
	Order   *models.Order
	Outcome Outcome
}

// ConfirmOrder confirms a pending order, schedules its delivery and consumes
// its stock. A second confirmation is a no-op reported as already confirmed.
func (s *Service) ConfirmOrder(ctx context.Context, orderID uuid.UUID, c Confirmation) (*OrderResult, error) {
	ctx = s.traced(ctx)
	ctx = s.logg.WithEntity(ctx, string(enums.EntityOrder), orderID.String())

	schedule := s.settings.Schedule(ctx)
	confirmedAt := c.ConfirmedAt
	if confirmedAt.IsZero() {
		confirmedAt = s.now()
	}

	res := &OrderResult{Outcome: OutcomeNoop}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.orders.WithTx(tx)
		order, err := repo.FindByID(ctx, orderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
		}
		if order == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}

		date, window := s.calc.OrderDelivery(confirmedAt, schedule, deref(order.DeliveryTimeSlot))
		if !schedule.KnownWindow(window) {
			s.logg.Warn(s.logg.WithField(ctx, "delivery_time_slot", window), "order.window.unconfigured")
		}
		ok, err := repo.ConfirmPending(ctx, orderID, orders.Confirmation{
			ConfirmedAt:      confirmedAt,
			DeliveryDate:     models.NewDate(date),
			DeliveryTimeSlot: window,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "confirm order")
		}

		current, err := repo.FindByID(ctx, orderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reload order")
		}
		res.Order = current

		if !ok {
			if current.PaymentStatus == enums.PaymentStatusConfirmed {
				res.Outcome = OutcomeAlreadyConfirmed
			} else {
				res.Outcome = OutcomeConflict
			}
			return nil
		}

		if err := s.ledger.ConsumeForOrder(ctx, tx, orderID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "consume stock")
		}
		res.Outcome = OutcomeApplied
		return s.emitOrderConfirmed(ctx, tx, current, c.Source)
	})

	s.recordOrder(ctx, "order.confirm", orderID, c, res, err)
	if err != nil {
		return nil, err
	}
	return res, nil
}

// DeclineOrder moves a pending order to declined. Orders in any other state
// are left untouched.
func (s *Service) DeclineOrder(ctx context.Context, orderID uuid.UUID, c Confirmation, reason string) (*OrderResult, error) {
	ctx = s.traced(ctx)
	ctx = s.logg.WithEntity(ctx, string(enums.EntityOrder), orderID.String())

	at := c.ConfirmedAt
	if at.IsZero() {
		at = s.now()
	}

	res := &OrderResult{Outcome: OutcomeNoop}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.orders.WithTx(tx)
		ok, err := repo.MarkDeclined(ctx, orderID, at)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decline order")
		}
		current, err := repo.FindByID(ctx, orderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reload order")
		}
		if current == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		res.Order = current
		if !ok {
			return nil
		}
		res.Outcome = OutcomeApplied
		return s.emitOrderDeclined(ctx, tx, current, reason)
	})

	s.recordOrder(ctx, "order.decline", orderID, c, res, err)
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (s *Service) recordOrder(ctx context.Context, event string, orderID uuid.UUID, c Confirmation, res *OrderResult, err error) {
	outcome := res.Outcome
	payload := map[string]any{"reference": c.Reference}
	if res.Order != nil {
		payload["payment_status"] = res.Order.PaymentStatus
		payload["delivery_date"] = models.DateString(res.Order.DeliveryDate)
		payload["delivery_time_slot"] = deref(res.Order.DeliveryTimeSlot)
	}

	entry := audit.Entry{
		Provider:   c.Provider,
		Source:     c.Source,
		Event:      event,
		EntityType: enums.EntityOrder,
		EntityID:   orderID.String(),
		Payload:    payload,
		Err:        err,
	}
	switch {
	case pkgerrors.IsCode(err, pkgerrors.CodeNotFound):
		outcome = OutcomeUnknownEntity
	case err != nil:
		outcome = OutcomeError
	case outcome == OutcomeConflict:
		entry.Err = pkgerrors.Newf(pkgerrors.CodeStateConflict, "order is %s", res.Order.PaymentStatus)
	}
	s.record(ctx, entry, outcome)
}
