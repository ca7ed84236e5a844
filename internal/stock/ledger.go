package stock

import (
	"context"
	"fmt"

	"github.com/angelmondragon/hydrofarm-backend/pkg/db/models"
	"github.com/angelmondragon/hydrofarm-backend/pkg/enums"
	"github.com/angelmondragon/hydrofarm-backend/pkg/logger"
	"github.com/angelmondragon/hydrofarm-backend/pkg/outbox"
	"github.com/angelmondragon/hydrofarm-backend/pkg/outbox/payloads"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Ledger applies stock movements. It has no memory of what it already
// applied: callers gate it behind their own state transitions and always pass
// the transaction those transitions run in.
type Ledger struct {
	emitter outbox.Emitter
	logg    *logger.Logger
}

func NewLedger(emitter outbox.Emitter, logg *logger.Logger) *Ledger {
	if emitter == nil {
		emitter = outbox.NopEmitter{}
	}
	return &Ledger{emitter: emitter, logg: logg}
}

// ConsumeForOrder takes each order item's quantity out of its product.
func (l *Ledger) ConsumeForOrder(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error {
	var items []models.OrderItem
	if err := tx.WithContext(ctx).Where("order_id = ?", orderID).Find(&items).Error; err != nil {
		return fmt.Errorf("load order items: %w", err)
	}
	for _, item := range items {
		if _, err := l.decrement(ctx, tx, item.ProductID, item.Quantity); err != nil {
			return err
		}
	}
	return nil
}

// ReserveForSubscription takes quantity times monthlyCount per item and
// records the reserved amount on the item.
func (l *Ledger) ReserveForSubscription(ctx context.Context, tx *gorm.DB, subscriptionID uuid.UUID, monthlyCount int) error {
	if monthlyCount < 0 {
		monthlyCount = 0
	}
	var items []models.SubscriptionItem
	if err := tx.WithContext(ctx).Where("subscription_id = ?", subscriptionID).Find(&items).Error; err != nil {
		return fmt.Errorf("load subscription items: %w", err)
	}
	for _, item := range items {
		reserved := item.Quantity * monthlyCount
		if _, err := l.decrement(ctx, tx, item.ProductID, reserved); err != nil {
			return err
		}
		err := tx.WithContext(ctx).Model(&models.SubscriptionItem{}).
			Where("id = ?", item.ID).
			Update("reserved_stock", reserved).Error
		if err != nil {
			return fmt.Errorf("record reserved stock: %w", err)
		}
	}
	return nil
}

func (l *Ledger) decrement(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) (int, error) {
	var product models.Product
	err := tx.WithContext(ctx).Where("id = ?", productID).Take(&product).Error
	if err != nil {
		return 0, fmt.Errorf("load product %s: %w", productID, err)
	}

	next := product.Stock - qty
	if next < 0 {
		next = 0
	}
	err = tx.WithContext(ctx).Model(&models.Product{}).
		Where("id = ?", productID).
		Update("stock", next).Error
	if err != nil {
		return 0, fmt.Errorf("update product %s stock: %w", productID, err)
	}

	if next < product.StockMin && product.Stock >= product.StockMin {
		if err := l.lowStock(ctx, tx, product, next); err != nil {
			return 0, err
		}
	}
	return next, nil
}

func (l *Ledger) lowStock(ctx context.Context, tx *gorm.DB, product models.Product, stock int) error {
	if l.logg != nil {
		logCtx := l.logg.WithFields(ctx, map[string]any{
			"product_id": product.ID.String(),
			"stock":      stock,
			"stock_min":  product.StockMin,
		})
		l.logg.Warn(logCtx, "product stock below minimum")
	}
	return l.emitter.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventProductStockLow,
		AggregateType: enums.AggregateProduct,
		AggregateID:   product.ID,
		Data: payloads.ProductStockLowEvent{
			ProductID: product.ID,
			Name:      product.Name,
			Stock:     stock,
			StockMin:  product.StockMin,
		},
	})
}
