package audit

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/touchstonehq/touchstone/internal/metrics"
	"github.com/touchstonehq/touchstone/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Audited entity table tags. These are the values stored in events.entity_table
// and accepted by the feed's table filter.
const (
	TableAccount       = "account"
	TableArea          = "area"
	TableCity          = "city"
	TableGroup         = "group"
	TableLicense       = "license"
	TableLicenseDetail = "license_detail"
	TableOperator      = "operator"
	TableSector        = "sector"
	TableStatus        = "status"
	TableUser          = "user"
	TableSupportJob    = "support_job"
	TableDatabase      = "database"
)

// Tables lists every audited entity table tag, in presentation order.
var Tables = []string{
	TableAccount, TableArea, TableCity, TableDatabase, TableGroup,
	TableLicense, TableLicenseDetail, TableOperator, TableSector,
	TableStatus, TableSupportJob, TableUser,
}

// KnownTable reports whether s is an audited entity table tag.
func KnownTable(s string) bool {
	for _, t := range Tables {
		if t == s {
			return true
		}
	}
	return false
}

// Recorder writes audit events. Every capture method takes the caller's open
// transaction and inserts exactly one row through it, so the event commits
// or rolls back together with the entity mutation it describes.
type Recorder struct {
	hub *Hub
}

func NewRecorder(hub *Hub) *Recorder {
	return &Recorder{hub: hub}
}

// Created records a create: the full field set of the new record.
func (r *Recorder) Created(tx *gorm.DB, table string, entityID, userID uuid.UUID, fields Snapshot) (*models.Event, error) {
	return r.record(tx, table, entityID, userID, KindCreate, fields.Normalize())
}

// Deleted records a delete: the full field set as it stood just before removal.
func (r *Recorder) Deleted(tx *gorm.DB, table string, entityID, userID uuid.UUID, fields Snapshot) (*models.Event, error) {
	return r.record(tx, table, entityID, userID, KindDelete, fields.Normalize())
}

// Updated records an update. It takes full before/after snapshots and
// computes the changed-field set itself; one event is written per update
// even when nothing changed, so every mutation leaves a row.
func (r *Recorder) Updated(tx *gorm.DB, table string, entityID, userID uuid.UUID, before, after Snapshot) (*models.Event, error) {
	return r.record(tx, table, entityID, userID, KindUpdate, Diff(before, after))
}

func (r *Recorder) record(tx *gorm.DB, table string, entityID, userID uuid.UUID, kind Kind, body any) (*models.Event, error) {
	if !KnownTable(table) {
		return nil, fmt.Errorf("audit: unknown entity table %q", table)
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("audit: serialize %s %s details: %w", table, kind, err)
	}
	ev := models.Event{
		EntityTable: table,
		EntityID:    entityID,
		UserID:      userID,
		Kind:        string(kind),
		Details:     datatypes.JSON(raw),
	}
	if err := tx.Create(&ev).Error; err != nil {
		return nil, fmt.Errorf("audit: insert %s %s event: %w", table, kind, err)
	}
	return &ev, nil
}

// Announce publishes a committed event to metrics and live subscribers.
// Call it only after the enclosing transaction has committed; it is nil-safe
// so failed transactions can pass through without a guard.
func (r *Recorder) Announce(ev *models.Event) {
	if ev == nil {
		return
	}
	metrics.EventsRecorded.WithLabelValues(ev.EntityTable, ev.Kind).Inc()
	if r.hub != nil {
		r.hub.Broadcast(ev)
	}
}
