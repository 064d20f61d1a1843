package audit

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/touchstonehq/touchstone/internal/models"
	"gorm.io/gorm"
)

// Filter narrows the feed. All set conditions must match (conjunction); the
// zero Filter matches everything. HTTP-level parsing is expected to drop
// unrecognized values before building one, per the recover-locally rule.
type Filter struct {
	UserID *uuid.UUID
	Kind   *Kind
	Table  *string
	From   *time.Time
	To     *time.Time
}

// Entry is one feed record, ready for rendering: source-table tag, parsed
// details and the acting user's display name.
type Entry struct {
	ID        int64     `json:"id"`
	Table     string    `json:"table"`
	EntityID  uuid.UUID `json:"entity_id"`
	Kind      Kind      `json:"kind"`
	Details   Details   `json:"details"`
	CreatedAt time.Time `json:"created_at"`
	User      string    `json:"user"`
	UserID    uuid.UUID `json:"user_id"`
}

type feedRow struct {
	models.Event
	UserName string
}

// LoadFeed materializes the merged audit feed, newest first, ties broken by
// insertion order. Rows whose details blob fails validation against their
// kind are dropped and logged as a data-integrity warning; a query failure
// is fatal and propagates to the caller.
func LoadFeed(db *gorm.DB, f Filter) ([]Entry, error) {
	q := db.Model(&models.Event{}).
		Select("events.*, users.display_name AS user_name").
		Joins("LEFT JOIN users ON users.id = events.user_id")

	if f.UserID != nil {
		q = q.Where("events.user_id = ?", *f.UserID)
	}
	if f.Kind != nil {
		q = q.Where("events.kind = ?", string(*f.Kind))
	}
	if f.Table != nil {
		q = q.Where("events.entity_table = ?", *f.Table)
	}
	if f.From != nil {
		q = q.Where("events.created_at >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("events.created_at <= ?", *f.To)
	}

	var rows []feedRow
	if err := q.Order("events.created_at DESC, events.id ASC").Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("audit: load feed: %w", err)
	}

	entries := make([]Entry, 0, len(rows))
	for _, row := range rows {
		kind, ok := ParseKind(row.Kind)
		if !ok {
			slog.Warn("Skipping audit event with unknown kind",
				"event_id", row.Event.ID, "table", row.EntityTable, "kind", row.Kind)
			continue
		}
		details, err := ParseDetails(kind, row.Details)
		if err != nil {
			slog.Warn("Skipping audit event with malformed details",
				"event_id", row.Event.ID, "table", row.EntityTable, "kind", row.Kind, "error", err)
			continue
		}
		user := row.UserName
		if user == "" {
			user = Placeholder
		}
		entries = append(entries, Entry{
			ID:        row.Event.ID,
			Table:     row.EntityTable,
			EntityID:  row.EntityID,
			Kind:      kind,
			Details:   details,
			CreatedAt: row.Event.CreatedAt,
			User:      user,
			UserID:    row.UserID,
		})
	}
	return entries, nil
}
