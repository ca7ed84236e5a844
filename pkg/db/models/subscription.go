package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/angelmondragon/hydrofarm-backend/pkg/enums"
)

// Subscription is a recurring (or one-off emergency) delivery arrangement.
// A nil Frequency marks an emergency subscription.
type Subscription struct {
	ID                   uuid.UUID                `gorm:"column:id;type:uuid;primaryKey"`
	CustomerID           *uuid.UUID               `gorm:"column:customer_id;type:uuid"`
	Status               enums.SubscriptionStatus `gorm:"column:status;type:text;not null;default:'paused'"`
	Frequency            *enums.Frequency         `gorm:"column:frequency;type:text"`
	IsEmergency          bool                     `gorm:"column:is_emergency;not null;default:false"`
	DeliveryWeekday      *string                  `gorm:"column:delivery_weekday"`
	DeliveryWeekdays     []string                 `gorm:"column:delivery_weekdays;type:jsonb;serializer:json"`
	PaymentMethod        enums.PaymentMethod      `gorm:"column:payment_method;type:text;not null"`
	PixTxID              *string                  `gorm:"column:pix_txid"`
	PixCopyPaste         *string                  `gorm:"column:pix_copy_paste"`
	PixRecurrenceID      *string                  `gorm:"column:pix_recurrence_id"`
	CardSessionID        *string                  `gorm:"column:card_session_id"`
	CardSubscriptionID   *string                  `gorm:"column:card_subscription_id"`
	RecurrenceAuthorized bool                     `gorm:"column:recurrence_authorized;not null;default:false"`
	RecurrenceStatus     *enums.RecurrenceStatus  `gorm:"column:recurrence_status;type:text"`
	NextDeliveryDate     *datatypes.Date          `gorm:"column:next_delivery_date;type:date"`
	TotalAmount          decimal.Decimal          `gorm:"column:total_amount;type:numeric(12,2);not null"`
	ActivatedAt          *time.Time               `gorm:"column:activated_at"`
	StockReservedAt      *time.Time               `gorm:"column:stock_reserved_at"`
	CancelledAt          *time.Time               `gorm:"column:cancelled_at"`
	Items                []SubscriptionItem       `gorm:"foreignKey:SubscriptionID;constraint:OnDelete:CASCADE"`
	CreatedAt            time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}

func (s *Subscription) BeforeCreate(*gorm.DB) error {
	ensureID(&s.ID)
	return nil
}

// SubscriptionItem carries the quantity per delivery and the stock reserved
// for the whole cycle at activation.
type SubscriptionItem struct {
	ID             uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	SubscriptionID uuid.UUID       `gorm:"column:subscription_id;type:uuid;not null"`
	ProductID      uuid.UUID       `gorm:"column:product_id;type:uuid;not null"`
	Quantity       int             `gorm:"column:quantity;not null"`
	UnitPrice      decimal.Decimal `gorm:"column:unit_price;type:numeric(12,2);not null"`
	ReservedStock  int             `gorm:"column:reserved_stock;not null;default:0"`
}

func (i *SubscriptionItem) BeforeCreate(*gorm.DB) error {
	ensureID(&i.ID)
	return nil
}

// SubscriptionDelivery is one scheduled occurrence. Rows are only generated
// for settled charges, so PaymentStatus is confirmed on insert.
type SubscriptionDelivery struct {
	ID              uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	SubscriptionID  uuid.UUID            `gorm:"column:subscription_id;type:uuid;not null;uniqueIndex:uq_subscription_deliveries_date"`
	DeliveryDate    datatypes.Date       `gorm:"column:delivery_date;type:date;not null;uniqueIndex:uq_subscription_deliveries_date"`
	TotalAmount     decimal.Decimal      `gorm:"column:total_amount;type:numeric(12,2);not null"`
	PaymentStatus   enums.PaymentStatus  `gorm:"column:payment_status;type:text;not null"`
	DeliveryStatus  enums.DeliveryStatus `gorm:"column:delivery_status;type:text;not null;default:'awaiting'"`
	ChargeReference *string              `gorm:"column:charge_reference"`
	CreatedAt       time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

func (d *SubscriptionDelivery) BeforeCreate(*gorm.DB) error {
	ensureID(&d.ID)
	return nil
}
