package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/angelmondragon/hydrofarm-backend/pkg/db/models"
	"github.com/angelmondragon/hydrofarm-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/hydrofarm-backend/pkg/errors"
	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Entry is one reconciliation decision.
type Entry struct {
	TraceID          string
	Provider         enums.Provider
	Source           enums.EventSource
	Event            string
	EntityType       enums.EntityType
	EntityID         string
	OK               bool
	AlreadyConfirmed bool
	Err              error
	Payload          any
}

// Sink persists audit entries.
type Sink interface {
	Record(ctx context.Context, entry Entry) error
}

// NopSink discards entries.
type NopSink struct{}

func (NopSink) Record(context.Context, Entry) error { return nil }

// Repository writes entries to payment_audit_log.
type Repository struct {
	db   *gorm.DB
	node *snowflake.Node
}

func NewRepository(db *gorm.DB, nodeID int64) (*Repository, error) {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, fmt.Errorf("audit id generator: %w", err)
	}
	return &Repository{db: db, node: node}, nil
}

func (r *Repository) Record(ctx context.Context, entry Entry) error {
	row := models.PaymentAuditLog{
		ID:               r.node.Generate().Int64(),
		TraceID:          entry.TraceID,
		Provider:         string(entry.Provider),
		Source:           string(entry.Source),
		Event:            entry.Event,
		OK:               entry.OK,
		AlreadyConfirmed: entry.AlreadyConfirmed,
	}
	if entry.EntityType != "" {
		v := string(entry.EntityType)
		row.EntityType = &v
	}
	if entry.EntityID != "" {
		row.EntityID = &entry.EntityID
	}
	if entry.Err != nil {
		msg := pkgerrors.Dump(entry.Err).Summary()
		row.Error = &msg
	}
	if entry.Payload != nil {
		raw, err := json.Marshal(entry.Payload)
		if err != nil {
			return fmt.Errorf("encode audit payload: %w", err)
		}
		row.Payload = datatypes.JSON(raw)
	}
	return r.db.WithContext(ctx).Create(&row).Error
}

// ListByEntity returns the audit trail of one entity, oldest first.
func (r *Repository) ListByEntity(ctx context.Context, entityType enums.EntityType, entityID string) ([]models.PaymentAuditLog, error) {
	var rows []models.PaymentAuditLog
	err := r.db.WithContext(ctx).
		Where("entity_type = ? AND entity_id = ?", string(entityType), entityID).
		Order("id ASC").
		Find(&rows).Error
	return rows, err
}
