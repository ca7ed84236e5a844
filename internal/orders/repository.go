package orders

import (
	"context"
	"errors"
	"time"

	"github.com/angelmondragon/hydrofarm-backend/pkg/db/models"
	"github.com/angelmondragon/hydrofarm-backend/pkg/enums"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Repository defines persistence operations for one-time orders. Transition
// methods are conditional updates and report whether a row changed.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByPixTxID(ctx context.Context, txid string) (*models.Order, error)
	FindByCardSessionID(ctx context.Context, sessionID string) (*models.Order, error)
	FindByCardPaymentIntentID(ctx context.Context, intentID string) (*models.Order, error)
	ConfirmPending(ctx context.Context, id uuid.UUID, c Confirmation) (bool, error)
	MarkDeclined(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	ReplaceCharge(ctx context.Context, id uuid.UUID, previousTxID, txid, copyPaste string) (bool, error)
	SetCardPaymentIntent(ctx context.Context, id uuid.UUID, intentID string) error
	ListAwaitingPayment(ctx context.Context, since time.Time, limit int) ([]models.Order, error)
}

// Confirmation carries the columns written when an order is confirmed.
type Confirmation struct {
	ConfirmedAt      time.Time
	DeliveryDate     *datatypes.Date
	DeliveryTimeSlot string
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return r.findOne(ctx, "id = ?", id)
}

func (r *repository) FindByPixTxID(ctx context.Context, txid string) (*models.Order, error) {
	return r.findOne(ctx, "pix_txid = ?", txid)
}

func (r *repository) FindByCardSessionID(ctx context.Context, sessionID string) (*models.Order, error) {
	return r.findOne(ctx, "card_session_id = ?", sessionID)
}

func (r *repository) FindByCardPaymentIntentID(ctx context.Context, intentID string) (*models.Order, error) {
	return r.findOne(ctx, "card_payment_intent_id = ?", intentID)
}

func (r *repository) findOne(ctx context.Context, query string, args ...any) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where(query, args...).
		Take(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// ConfirmPending is the single commit point of order confirmation: only a
// pending order moves, so concurrent confirmations cannot both succeed.
func (r *repository) ConfirmPending(ctx context.Context, id uuid.UUID, c Confirmation) (bool, error) {
	updates := map[string]any{
		"payment_status": enums.PaymentStatusConfirmed,
		"confirmed_at":   c.ConfirmedAt,
		"delivery_date":  c.DeliveryDate,
	}
	if c.DeliveryTimeSlot != "" {
		updates["delivery_time_slot"] = c.DeliveryTimeSlot
	}
	res := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND payment_status = ?", id, enums.PaymentStatusPending).
		Updates(updates)
	return res.RowsAffected == 1, res.Error
}

func (r *repository) MarkDeclined(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND payment_status = ?", id, enums.PaymentStatusPending).
		Updates(map[string]any{
			"payment_status": enums.PaymentStatusDeclined,
			"declined_at":    at,
		})
	return res.RowsAffected == 1, res.Error
}

// ReplaceCharge swaps the instant-payment charge of a still pending order.
// The previous txid guards against two concurrent reissues.
func (r *repository) ReplaceCharge(ctx context.Context, id uuid.UUID, previousTxID, txid, copyPaste string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND pix_txid = ? AND payment_status = ?", id, previousTxID, enums.PaymentStatusPending).
		Updates(map[string]any{
			"pix_txid":       txid,
			"pix_copy_paste": copyPaste,
		})
	return res.RowsAffected == 1, res.Error
}

func (r *repository) SetCardPaymentIntent(ctx context.Context, id uuid.UUID, intentID string) error {
	return r.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND (card_payment_intent_id IS NULL OR card_payment_intent_id = '')", id).
		Update("card_payment_intent_id", intentID).Error
}

// ListAwaitingPayment returns pending orders with a provider reference,
// created at or after since, oldest first.
func (r *repository) ListAwaitingPayment(ctx context.Context, since time.Time, limit int) ([]models.Order, error) {
	if limit <= 0 {
		limit = 100
	}
	var orders []models.Order
	err := r.db.WithContext(ctx).
		Where("payment_status = ?", enums.PaymentStatusPending).
		Where("(pix_txid IS NOT NULL AND pix_txid <> '') OR (card_session_id IS NOT NULL AND card_session_id <> '')").
		Where("created_at >= ?", since).
		Order("created_at ASC").
		Limit(limit).
		Find(&orders).Error
	return orders, err
}
