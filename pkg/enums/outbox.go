package enums

import "fmt"

// OutboxAggregateType names the aggregate an outbox event belongs to.
type OutboxAggregateType string

const (
	AggregateOrder        OutboxAggregateType = "order"
	AggregateSubscription OutboxAggregateType = "subscription"
	AggregateProduct      OutboxAggregateType = "product"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateOrder,
	AggregateSubscription,
	AggregateProduct,
}

// IsValid reports whether the value matches a known aggregate type.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType is the dotted name of a domain event.
type OutboxEventType string

const (
	EventOrderPaymentConfirmed           OutboxEventType = "order.payment_confirmed"
	EventOrderPaymentDeclined            OutboxEventType = "order.payment_declined"
	EventSubscriptionActivated           OutboxEventType = "subscription.activated"
	EventSubscriptionPaused              OutboxEventType = "subscription.paused"
	EventSubscriptionCancelled           OutboxEventType = "subscription.cancelled"
	EventSubscriptionDeliveriesScheduled OutboxEventType = "subscription.deliveries_scheduled"
	EventChargeReissued                  OutboxEventType = "payment.charge_reissued"
	EventProductStockLow                 OutboxEventType = "product.stock_low"
)

var validOutboxEventTypes = []OutboxEventType{
	EventOrderPaymentConfirmed,
	EventOrderPaymentDeclined,
	EventSubscriptionActivated,
	EventSubscriptionPaused,
	EventSubscriptionCancelled,
	EventSubscriptionDeliveriesScheduled,
	EventChargeReissued,
	EventProductStockLow,
}

// IsValid reports whether the value is a registered event type.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}

// OutboxDLQErrorReason explains why a row was dead-lettered.
type OutboxDLQErrorReason string

const (
	OutboxDLQReasonMaxAttempts  OutboxDLQErrorReason = "max_attempts"
	OutboxDLQReasonNonRetryable OutboxDLQErrorReason = "non_retryable"
)

func (r OutboxDLQErrorReason) IsValid() bool {
	return r == OutboxDLQReasonMaxAttempts || r == OutboxDLQReasonNonRetryable
}
