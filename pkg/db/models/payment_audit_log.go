package models

import (
	"time"

	"gorm.io/datatypes"
)

// PaymentAuditLog is the durable record of every reconciliation decision.
type PaymentAuditLog struct {
	ID               int64          `gorm:"column:id;primaryKey;autoIncrement:false"`
	TraceID          string         `gorm:"column:trace_id;not null"`
	Provider         string         `gorm:"column:provider;not null"`
	Source           string         `gorm:"column:source;not null"`
	Event            string         `gorm:"column:event;not null"`
	EntityType       *string        `gorm:"column:entity_type"`
	EntityID         *string        `gorm:"column:entity_id"`
	OK               bool           `gorm:"column:ok;not null"`
	AlreadyConfirmed bool           `gorm:"column:already_confirmed;not null;default:false"`
	Error            *string        `gorm:"column:error"`
	Payload          datatypes.JSON `gorm:"column:payload;type:jsonb"`
	CreatedAt        time.Time      `gorm:"column:created_at;autoCreateTime"`
}

func (PaymentAuditLog) TableName() string { return "payment_audit_log" }
