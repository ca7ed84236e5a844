package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/angelmondragon/hydrofarm-backend/pkg/enums"
)

// Order is a one-time purchase. DeliveryDate stays nil until payment confirms.
type Order struct {
	ID                  uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	OrderNumber         int64                `gorm:"column:order_number;not null;default:nextval('orders_order_number_seq')"`
	CustomerID          *uuid.UUID           `gorm:"column:customer_id;type:uuid"`
	PaymentStatus       enums.PaymentStatus  `gorm:"column:payment_status;type:text;not null;default:'pending'"`
	DeliveryStatus      enums.DeliveryStatus `gorm:"column:delivery_status;type:text;not null;default:'awaiting'"`
	PaymentMethod       enums.PaymentMethod  `gorm:"column:payment_method;type:text;not null"`
	PixTxID             *string              `gorm:"column:pix_txid"`
	PixCopyPaste        *string              `gorm:"column:pix_copy_paste"`
	CardSessionID       *string              `gorm:"column:card_session_id"`
	CardPaymentIntentID *string              `gorm:"column:card_payment_intent_id"`
	DeliveryDate        *datatypes.Date      `gorm:"column:delivery_date;type:date"`
	DeliveryTimeSlot    *string              `gorm:"column:delivery_time_slot"`
	TotalAmount         decimal.Decimal      `gorm:"column:total_amount;type:numeric(12,2);not null"`
	ConfirmedAt         *time.Time           `gorm:"column:confirmed_at"`
	DeclinedAt          *time.Time           `gorm:"column:declined_at"`
	CancelledAt         *time.Time           `gorm:"column:cancelled_at"`
	Items               []OrderItem          `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt           time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	ensureID(&o.ID)
	return nil
}

// OrderItem is a line of an order, created atomically with it.
type OrderItem struct {
	ID        uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	OrderID   uuid.UUID       `gorm:"column:order_id;type:uuid;not null"`
	ProductID uuid.UUID       `gorm:"column:product_id;type:uuid;not null"`
	Quantity  int             `gorm:"column:quantity;not null"`
	UnitPrice decimal.Decimal `gorm:"column:unit_price;type:numeric(12,2);not null"`
}

func (i *OrderItem) BeforeCreate(*gorm.DB) error {
	ensureID(&i.ID)
	return nil
}
