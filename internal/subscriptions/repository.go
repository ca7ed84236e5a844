package subscriptions

import (
	"context"
	"errors"
	"time"

	"github.com/angelmondragon/hydrofarm-backend/pkg/db/models"
	"github.com/angelmondragon/hydrofarm-backend/pkg/enums"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository defines persistence operations for subscriptions and their
// scheduled deliveries. Transition methods report whether a row changed.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, sub *models.Subscription) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Subscription, error)
	FindByPixTxID(ctx context.Context, txid string) (*models.Subscription, error)
	FindByRecurrenceID(ctx context.Context, recID string) (*models.Subscription, error)
	FindByCardSessionID(ctx context.Context, sessionID string) (*models.Subscription, error)
	FindByCardSubscriptionID(ctx context.Context, cardSubID string) (*models.Subscription, error)
	Activate(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	MarkStockReserved(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	SetNextDeliveryDate(ctx context.Context, id uuid.UUID, date *datatypes.Date) error
	UpdateRecurrence(ctx context.Context, id uuid.UUID, status enums.RecurrenceStatus, authorized bool) (bool, error)
	Pause(ctx context.Context, id uuid.UUID, recurrence *enums.RecurrenceStatus) (bool, error)
	Cancel(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	SetCardSubscriptionID(ctx context.Context, id uuid.UUID, cardSubID string) error
	ReplaceCharge(ctx context.Context, id uuid.UUID, previousTxID, txid, copyPaste string) (bool, error)
	InsertDeliveries(ctx context.Context, rows []models.SubscriptionDelivery) (int64, error)
	ListDeliveries(ctx context.Context, subscriptionID uuid.UUID) ([]models.SubscriptionDelivery, error)
	HasDeliveriesForCharge(ctx context.Context, subscriptionID uuid.UUID, reference string) (bool, error)
	ListAwaitingPayment(ctx context.Context, since time.Time, limit int) ([]models.Subscription, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a subscriptions repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, sub *models.Subscription) error {
	return r.db.WithContext(ctx).Create(sub).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Subscription, error) {
	return r.findOne(ctx, "id = ?", id)
}

func (r *repository) FindByPixTxID(ctx context.Context, txid string) (*models.Subscription, error) {
	return r.findOne(ctx, "pix_txid = ?", txid)
}

func (r *repository) FindByRecurrenceID(ctx context.Context, recID string) (*models.Subscription, error) {
	return r.findOne(ctx, "pix_recurrence_id = ?", recID)
}

func (r *repository) FindByCardSessionID(ctx context.Context, sessionID string) (*models.Subscription, error) {
	return r.findOne(ctx, "card_session_id = ?", sessionID)
}

func (r *repository) FindByCardSubscriptionID(ctx context.Context, cardSubID string) (*models.Subscription, error) {
	return r.findOne(ctx, "card_subscription_id = ?", cardSubID)
}

func (r *repository) findOne(ctx context.Context, query string, args ...any) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where(query, args...).
		Take(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// Activate moves a paused subscription to active. Active and cancelled rows
// are left alone; activated_at keeps its first value.
func (r *repository) Activate(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Subscription{}).
		Where("id = ? AND status NOT IN ?", id, []enums.SubscriptionStatus{
			enums.SubscriptionStatusActive,
			enums.SubscriptionStatusCancelled,
		}).
		Updates(map[string]any{
			"status":       enums.SubscriptionStatusActive,
			"activated_at": gorm.Expr("COALESCE(activated_at, ?)", at),
		})
	return res.RowsAffected == 1, res.Error
}

// MarkStockReserved succeeds at most once per subscription.
func (r *repository) MarkStockReserved(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Subscription{}).
		Where("id = ? AND stock_reserved_at IS NULL", id).
		Update("stock_reserved_at", at)
	return res.RowsAffected == 1, res.Error
}

func (r *repository) SetNextDeliveryDate(ctx context.Context, id uuid.UUID, date *datatypes.Date) error {
	return r.db.WithContext(ctx).Model(&models.Subscription{}).
		Where("id = ?", id).
		Update("next_delivery_date", date).Error
}

func (r *repository) UpdateRecurrence(ctx context.Context, id uuid.UUID, status enums.RecurrenceStatus, authorized bool) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Subscription{}).
		Where("id = ?", id).
		Where("recurrence_status IS NULL OR recurrence_status <> ? OR recurrence_authorized <> ?", status, authorized).
		Updates(map[string]any{
			"recurrence_status":     status,
			"recurrence_authorized": authorized,
		})
	return res.RowsAffected == 1, res.Error
}

// Pause moves a non-cancelled subscription to paused, optionally setting the
// recurrence status in the same write. No row changes when nothing differs.
func (r *repository) Pause(ctx context.Context, id uuid.UUID, recurrence *enums.RecurrenceStatus) (bool, error) {
	updates := map[string]any{"status": enums.SubscriptionStatusPaused}
	q := r.db.WithContext(ctx).Model(&models.Subscription{}).
		Where("id = ? AND status <> ?", id, enums.SubscriptionStatusCancelled)
	if recurrence != nil {
		updates["recurrence_status"] = *recurrence
		q = q.Where("status <> ? OR recurrence_status IS NULL OR recurrence_status <> ?", enums.SubscriptionStatusPaused, *recurrence)
	} else {
		q = q.Where("status <> ?", enums.SubscriptionStatusPaused)
	}
	res := q.Updates(updates)
	return res.RowsAffected == 1, res.Error
}

func (r *repository) Cancel(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Subscription{}).
		Where("id = ? AND status <> ?", id, enums.SubscriptionStatusCancelled).
		Updates(map[string]any{
			"status":       enums.SubscriptionStatusCancelled,
			"cancelled_at": at,
		})
	return res.RowsAffected == 1, res.Error
}

func (r *repository) SetCardSubscriptionID(ctx context.Context, id uuid.UUID, cardSubID string) error {
	return r.db.WithContext(ctx).Model(&models.Subscription{}).
		Where("id = ?", id).
		Update("card_subscription_id", cardSubID).Error
}

// ReplaceCharge swaps the instant-payment charge of a still paused
// subscription, guarded by the txid being replaced.
func (r *repository) ReplaceCharge(ctx context.Context, id uuid.UUID, previousTxID, txid, copyPaste string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Subscription{}).
		Where("id = ? AND pix_txid = ? AND status = ?", id, previousTxID, enums.SubscriptionStatusPaused).
		Updates(map[string]any{
			"pix_txid":       txid,
			"pix_copy_paste": copyPaste,
		})
	return res.RowsAffected == 1, res.Error
}

// InsertDeliveries skips dates already scheduled for the subscription and
// returns how many rows were new.
func (r *repository) InsertDeliveries(ctx context.Context, rows []models.SubscriptionDelivery) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "subscription_id"}, {Name: "delivery_date"}},
			DoNothing: true,
		}).
		Create(&rows)
	return res.RowsAffected, res.Error
}

func (r *repository) ListDeliveries(ctx context.Context, subscriptionID uuid.UUID) ([]models.SubscriptionDelivery, error) {
	var rows []models.SubscriptionDelivery
	err := r.db.WithContext(ctx).
		Where("subscription_id = ?", subscriptionID).
		Order("delivery_date ASC").
		Find(&rows).Error
	return rows, err
}

// HasDeliveriesForCharge reports whether a billing cycle was already
// generated for the given charge reference.
func (r *repository) HasDeliveriesForCharge(ctx context.Context, subscriptionID uuid.UUID, reference string) (bool, error) {
	if reference == "" {
		return false, nil
	}
	var count int64
	err := r.db.WithContext(ctx).Model(&models.SubscriptionDelivery{}).
		Where("subscription_id = ? AND charge_reference = ?", subscriptionID, reference).
		Count(&count).Error
	return count > 0, err
}

// ListAwaitingPayment returns paused subscriptions that still reference a
// provider charge, authorization or checkout session.
func (r *repository) ListAwaitingPayment(ctx context.Context, since time.Time, limit int) ([]models.Subscription, error) {
	if limit <= 0 {
		limit = 100
	}
	var subs []models.Subscription
	err := r.db.WithContext(ctx).
		Where("status = ?", enums.SubscriptionStatusPaused).
		Where("(pix_txid IS NOT NULL AND pix_txid <> '') OR "+
			"(pix_recurrence_id IS NOT NULL AND pix_recurrence_id <> '') OR "+
			"(card_session_id IS NOT NULL AND card_session_id <> '')").
		Where("created_at >= ?", since).
		Order("created_at ASC").
		Limit(limit).
		Find(&subs).Error
	return subs, err
}
