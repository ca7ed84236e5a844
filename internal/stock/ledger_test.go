package stock

import (
	"context"
	"testing"

	"github.com/angelmondragon/hydrofarm-backend/pkg/db/dbtest"
	"github.com/angelmondragon/hydrofarm-backend/pkg/db/models"
	"github.com/angelmondragon/hydrofarm-backend/pkg/enums"
	"github.com/angelmondragon/hydrofarm-backend/pkg/outbox"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type recordingEmitter struct {
	events []outbox.DomainEvent
}

func (r *recordingEmitter) Emit(_ context.Context, _ *gorm.DB, event outbox.DomainEvent) error {
	r.events = append(r.events, event)
	return nil
}

func seedProduct(t *testing.T, db *gorm.DB, stock, min int) models.Product {
	t.Helper()
	p := models.Product{Name: "Alface crespa", Price: decimal.NewFromInt(5), Stock: stock, StockMin: min, Active: true}
	require.NoError(t, db.Create(&p).Error)
	return p
}

func productStock(t *testing.T, db *gorm.DB, id uuid.UUID) int {
	t.Helper()
	var p models.Product
	require.NoError(t, db.First(&p, "id = ?", id).Error)
	return p.Stock
}

func TestConsumeForOrderClampsAtZero(t *testing.T) {
	db := dbtest.Open(t)
	emitter := &recordingEmitter{}
	ledger := NewLedger(emitter, nil)

	lettuce := seedProduct(t, db, 10, 0)
	basil := seedProduct(t, db, 2, 0)
	order := models.Order{PaymentMethod: enums.PaymentMethodInstant, TotalAmount: decimal.NewFromInt(30)}
	require.NoError(t, db.Create(&order).Error)
	require.NoError(t, db.Create(&[]models.OrderItem{
		{OrderID: order.ID, ProductID: lettuce.ID, Quantity: 3, UnitPrice: decimal.NewFromInt(5)},
		{OrderID: order.ID, ProductID: basil.ID, Quantity: 5, UnitPrice: decimal.NewFromInt(3)},
	}).Error)

	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		return ledger.ConsumeForOrder(context.Background(), tx, order.ID)
	}))

	assert.Equal(t, 7, productStock(t, db, lettuce.ID))
	assert.Equal(t, 0, productStock(t, db, basil.ID))
	assert.Empty(t, emitter.events)
}

func TestReserveForSubscriptionRecordsReservation(t *testing.T) {
	db := dbtest.Open(t)
	ledger := NewLedger(nil, nil)

	product := seedProduct(t, db, 100, 0)
	sub := models.Subscription{PaymentMethod: enums.PaymentMethodInstant, TotalAmount: decimal.NewFromInt(10)}
	require.NoError(t, db.Create(&sub).Error)
	item := models.SubscriptionItem{SubscriptionID: sub.ID, ProductID: product.ID, Quantity: 2, UnitPrice: decimal.NewFromInt(5)}
	require.NoError(t, db.Create(&item).Error)

	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		return ledger.ReserveForSubscription(context.Background(), tx, sub.ID, 4)
	}))

	assert.Equal(t, 92, productStock(t, db, product.ID))
	var stored models.SubscriptionItem
	require.NoError(t, db.First(&stored, "id = ?", item.ID).Error)
	assert.Equal(t, 8, stored.ReservedStock)
}

func TestLowStockEmitsOnceWhenCrossingMinimum(t *testing.T) {
	db := dbtest.Open(t)
	emitter := &recordingEmitter{}
	ledger := NewLedger(emitter, nil)
	product := seedProduct(t, db, 6, 5)

	for i := 0; i < 2; i++ {
		require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
			_, err := ledger.decrement(context.Background(), tx, product.ID, 1)
			return err
		}))
	}

	assert.Equal(t, 4, productStock(t, db, product.ID))
	require.Len(t, emitter.events, 1)
	assert.Equal(t, enums.EventProductStockLow, emitter.events[0].EventType)
	assert.Equal(t, product.ID, emitter.events[0].AggregateID)
}

func TestMissingProductAbortsTransaction(t *testing.T) {
	db := dbtest.Open(t)
	ledger := NewLedger(nil, nil)

	product := seedProduct(t, db, 10, 0)
	order := models.Order{PaymentMethod: enums.PaymentMethodInstant, TotalAmount: decimal.NewFromInt(10)}
	require.NoError(t, db.Create(&order).Error)
	require.NoError(t, db.Create(&[]models.OrderItem{
		{OrderID: order.ID, ProductID: product.ID, Quantity: 1, UnitPrice: decimal.NewFromInt(5)},
		{OrderID: order.ID, ProductID: uuid.New(), Quantity: 1, UnitPrice: decimal.NewFromInt(5)},
	}).Error)

	err := db.Transaction(func(tx *gorm.DB) error {
		return ledger.ConsumeForOrder(context.Background(), tx, order.ID)
	})
	require.Error(t, err)
	assert.Equal(t, 10, productStock(t, db, product.ID))
}
