package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Event is one immutable audit record: a single create/update/delete on a
// business record. Rows are append-only and must outlive their subject, so
// EntityID is a plain value with no foreign-key constraint.
//
// The integer key is deliberate: it makes insertion order recoverable, which
// is the tie-break when feed entries share a timestamp.
type Event struct {
	ID          int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	EntityTable string         `gorm:"not null;index:idx_events_table" json:"entity_table"`
	EntityID    uuid.UUID      `gorm:"type:uuid;not null;index" json:"entity_id"`
	UserID      uuid.UUID      `gorm:"type:uuid;not null;index:idx_events_user" json:"user_id"`
	Kind        string         `gorm:"not null;index:idx_events_kind" json:"kind"` // create, update, delete
	Details     datatypes.JSON `gorm:"type:jsonb" json:"details"`
	CreatedAt   time.Time      `gorm:"index:idx_events_created" json:"created_at"`
}
