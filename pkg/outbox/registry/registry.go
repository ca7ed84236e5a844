// Package registry routes outbox rows to topics and decodes their payloads.
package registry

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/hydrofarm-backend/pkg/config"
	"github.com/angelmondragon/hydrofarm-backend/pkg/db/models"
	"github.com/angelmondragon/hydrofarm-backend/pkg/enums"
	"github.com/angelmondragon/hydrofarm-backend/pkg/outbox"
	"github.com/angelmondragon/hydrofarm-backend/pkg/outbox/payloads"
)

// EventDescriptor describes one event type. An empty AggregateType accepts
// any aggregate.
type EventDescriptor struct {
	EventType      enums.OutboxEventType
	AggregateType  enums.OutboxAggregateType
	Topic          string
	PayloadFactory func() any
}

type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    any
}

type EventRegistry struct {
	entries map[enums.OutboxEventType]EventDescriptor
}

// NonRetryableError marks a row that will never publish, however often it is
// retried.
type NonRetryableError struct {
	Err error
}

func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}

func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

func (e NonRetryableError) Unwrap() error { return e.Err }

func factory[T any]() func() any {
	return func() any { return new(T) }
}

// NewEventRegistry routes payment events to PaymentsTopic and stock events to
// StockTopic, which falls back to PaymentsTopic when unset.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	payments := cfg.PaymentsTopic
	if payments == "" {
		return nil, errors.New("payments topic is required")
	}
	stock := cfg.StockTopic
	if stock == "" {
		stock = payments
	}

	descriptors := []EventDescriptor{
		{enums.EventOrderPaymentConfirmed, enums.AggregateOrder, payments, factory[payloads.OrderPaymentConfirmedEvent]()},
		{enums.EventOrderPaymentDeclined, enums.AggregateOrder, payments, factory[payloads.OrderPaymentDeclinedEvent]()},
		{enums.EventSubscriptionActivated, enums.AggregateSubscription, payments, factory[payloads.SubscriptionActivatedEvent]()},
		{enums.EventSubscriptionPaused, enums.AggregateSubscription, payments, factory[payloads.SubscriptionStatusEvent]()},
		{enums.EventSubscriptionCancelled, enums.AggregateSubscription, payments, factory[payloads.SubscriptionStatusEvent]()},
		{enums.EventSubscriptionDeliveriesScheduled, enums.AggregateSubscription, payments, factory[payloads.DeliveriesScheduledEvent]()},
		{enums.EventChargeReissued, "", payments, factory[payloads.ChargeReissuedEvent]()},
		{enums.EventProductStockLow, enums.AggregateProduct, stock, factory[payloads.ProductStockLowEvent]()},
	}

	reg := &EventRegistry{entries: make(map[enums.OutboxEventType]EventDescriptor, len(descriptors))}
	for _, d := range descriptors {
		reg.entries[d.EventType] = d
	}
	return reg, nil
}

// Resolve checks the row against its descriptor and decodes the typed
// payload. Every failure is non-retryable: the row itself is bad.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	desc, ok := r.entries[event.EventType]
	if !ok {
		return nil, NewNonRetryableError(fmt.Errorf("unsupported event type %s", event.EventType))
	}
	if desc.AggregateType != "" && desc.AggregateType != event.AggregateType {
		return nil, NewNonRetryableError(fmt.Errorf("%s: aggregate %s, want %s", event.EventType, event.AggregateType, desc.AggregateType))
	}
	if event.AggregateID == uuid.Nil {
		return nil, NewNonRetryableError(fmt.Errorf("%s: missing aggregate_id", event.EventType))
	}

	env, err := outbox.DecodeEnvelope(event.Payload)
	if err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("%s: %w", event.EventType, err))
	}
	payload := desc.PayloadFactory()
	if err := json.Unmarshal(env.Data, payload); err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("decode %s payload: %w", event.EventType, err))
	}
	return &ResolvedEvent{Descriptor: desc, Envelope: env, Payload: payload}, nil
}
