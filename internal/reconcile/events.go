package reconcile

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/hydrofarm-backend/pkg/db/models"
	"github.com/angelmondragon/hydrofarm-backend/pkg/enums"
	"github.com/angelmondragon/hydrofarm-backend/pkg/outbox"
	"github.com/angelmondragon/hydrofarm-backend/pkg/outbox/payloads"
)

func (s *Service) emitOrderConfirmed(ctx context.Context, tx *gorm.DB, o *models.Order, source enums.EventSource) error {
	return s.emitter.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderPaymentConfirmed,
		AggregateType: enums.AggregateOrder,
		AggregateID:   o.ID,
		Data: payloads.OrderPaymentConfirmedEvent{
			OrderID:          o.ID,
			OrderNumber:      o.OrderNumber,
			PaymentMethod:    o.PaymentMethod,
			Source:           source,
			TotalAmount:      o.TotalAmount,
			DeliveryDate:     models.DateString(o.DeliveryDate),
			DeliveryTimeSlot: deref(o.DeliveryTimeSlot),
		},
	})
}

func (s *Service) emitOrderDeclined(ctx context.Context, tx *gorm.DB, o *models.Order, reason string) error {
	return s.emitter.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderPaymentDeclined,
		AggregateType: enums.AggregateOrder,
		AggregateID:   o.ID,
		Data: payloads.OrderPaymentDeclinedEvent{
			OrderID:       o.ID,
			PaymentMethod: o.PaymentMethod,
			Reason:        reason,
		},
	})
}

func (s *Service) emitSubscriptionActivated(ctx context.Context, tx *gorm.DB, sub *models.Subscription, source enums.EventSource, next time.Time, count int) error {
	return s.emitter.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventSubscriptionActivated,
		AggregateType: enums.AggregateSubscription,
		AggregateID:   sub.ID,
		Data: payloads.SubscriptionActivatedEvent{
			SubscriptionID:   sub.ID,
			PaymentMethod:    sub.PaymentMethod,
			Source:           source,
			NextDeliveryDate: next.Format(time.DateOnly),
			DeliveryCount:    count,
		},
	})
}

func (s *Service) emitSubscriptionStatus(ctx context.Context, tx *gorm.DB, subID uuid.UUID, status enums.SubscriptionStatus, rec *enums.RecurrenceStatus, reason string) error {
	eventType := enums.EventSubscriptionPaused
	if status == enums.SubscriptionStatusCancelled {
		eventType = enums.EventSubscriptionCancelled
	}
	return s.emitter.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateSubscription,
		AggregateID:   subID,
		Data: payloads.SubscriptionStatusEvent{
			SubscriptionID:   subID,
			Status:           status,
			RecurrenceStatus: rec,
			Reason:           reason,
		},
	})
}

func (s *Service) emitDeliveriesScheduled(ctx context.Context, tx *gorm.DB, sub *models.Subscription, reference string, dates []time.Time) error {
	out := make([]string, 0, len(dates))
	for _, d := range dates {
		out = append(out, d.Format(time.DateOnly))
	}
	next := ""
	if len(out) > 0 {
		next = out[0]
	}
	return s.emitter.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventSubscriptionDeliveriesScheduled,
		AggregateType: enums.AggregateSubscription,
		AggregateID:   sub.ID,
		Data: payloads.DeliveriesScheduledEvent{
			SubscriptionID:   sub.ID,
			ChargeReference:  reference,
			Dates:            out,
			NextDeliveryDate: next,
		},
	})
}

func (s *Service) emitChargeReissued(ctx context.Context, tx *gorm.DB, evt payloads.ChargeReissuedEvent) error {
	aggregate := enums.AggregateOrder
	if evt.EntityType == enums.EntitySubscription {
		aggregate = enums.AggregateSubscription
	}
	return s.emitter.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventChargeReissued,
		AggregateType: aggregate,
		AggregateID:   evt.EntityID,
		Data:          evt,
	})
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
