package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

// NewDate keeps the calendar day of t as seen in t's location, stored as UTC
// midnight so equal days compare equal regardless of zone.
func NewDate(t time.Time) *datatypes.Date {
	y, m, d := t.Date()
	date := datatypes.Date(time.Date(y, m, d, 0, 0, 0, 0, time.UTC))
	return &date
}

// DateString renders a nullable date as YYYY-MM-DD, or "" when unset.
func DateString(d *datatypes.Date) string {
	if d == nil {
		return ""
	}
	return time.Time(*d).Format(time.DateOnly)
}
