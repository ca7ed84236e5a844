package payloads

import (
	"github.com/angelmondragon/hydrofarm-backend/pkg/enums"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderPaymentConfirmedEvent is emitted once an order moves to confirmed.
type OrderPaymentConfirmedEvent struct {
	OrderID          uuid.UUID           `json:"order_id"`
	OrderNumber      int64               `json:"order_number"`
	PaymentMethod    enums.PaymentMethod `json:"payment_method"`
	Source           enums.EventSource   `json:"source"`
	TotalAmount      decimal.Decimal     `json:"total_amount"`
	DeliveryDate     string              `json:"delivery_date"`
	DeliveryTimeSlot string              `json:"delivery_time_slot"`
}

// OrderPaymentDeclinedEvent is emitted when a pending card order fails.
type OrderPaymentDeclinedEvent struct {
	OrderID       uuid.UUID           `json:"order_id"`
	PaymentMethod enums.PaymentMethod `json:"payment_method"`
	Reason        string              `json:"reason,omitempty"`
}

// SubscriptionActivatedEvent is emitted on the first activation.
type SubscriptionActivatedEvent struct {
	SubscriptionID   uuid.UUID           `json:"subscription_id"`
	PaymentMethod    enums.PaymentMethod `json:"payment_method"`
	Source           enums.EventSource   `json:"source"`
	NextDeliveryDate string              `json:"next_delivery_date"`
	DeliveryCount    int                 `json:"delivery_count"`
}

// SubscriptionStatusEvent covers pause and cancellation.
type SubscriptionStatusEvent struct {
	SubscriptionID   uuid.UUID                `json:"subscription_id"`
	Status           enums.SubscriptionStatus `json:"status"`
	RecurrenceStatus *enums.RecurrenceStatus  `json:"recurrence_status,omitempty"`
	Reason           string                   `json:"reason,omitempty"`
}

// DeliveriesScheduledEvent is emitted when a billing cycle adds delivery rows.
type DeliveriesScheduledEvent struct {
	SubscriptionID   uuid.UUID `json:"subscription_id"`
	ChargeReference  string    `json:"charge_reference,omitempty"`
	Dates            []string  `json:"dates"`
	NextDeliveryDate string    `json:"next_delivery_date"`
}

// ChargeReissuedEvent is emitted when an expired instant-payment charge is replaced.
type ChargeReissuedEvent struct {
	EntityType enums.EntityType `json:"entity_type"`
	EntityID   uuid.UUID        `json:"entity_id"`
	PreviousID string           `json:"previous_txid"`
	TxID       string           `json:"txid"`
	CopyPaste  string           `json:"copy_paste"`
	Amount     decimal.Decimal  `json:"amount"`
}

// ProductStockLowEvent is emitted when a product drops below its minimum stock.
type ProductStockLowEvent struct {
	ProductID uuid.UUID `json:"product_id"`
	Name      string    `json:"name"`
	Stock     int       `json:"stock"`
	StockMin  int       `json:"stock_min"`
}
