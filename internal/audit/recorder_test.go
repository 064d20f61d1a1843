package audit

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/touchstonehq/touchstone/internal/models"
	"gorm.io/gorm"
)

func countRows(t *testing.T, db *gorm.DB, table string) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Table(table).Count(&n).Error)
	return n
}

func TestRecorderWritesEventInCallerTransaction(t *testing.T) {
	db := newTestDB(t)
	rec := NewRecorder(nil)
	user := newTestUser(t, db, "tendai")
	entityID := uuid.New()

	var ev *models.Event
	err := db.Transaction(func(tx *gorm.DB) error {
		entry := models.PicklistEntry{ID: entityID, Identifier: "Harare"}
		if err := tx.Table("areas").Create(&entry).Error; err != nil {
			return err
		}
		var err error
		ev, err = rec.Created(tx, TableArea, entityID, user.ID, Snapshot{"identifier": "Harare"})
		return err
	})
	require.NoError(t, err)
	require.NotNil(t, ev)

	assert.EqualValues(t, 1, countRows(t, db, "areas"))
	assert.EqualValues(t, 1, countRows(t, db, "events"))

	var stored models.Event
	require.NoError(t, db.First(&stored, "id = ?", ev.ID).Error)
	assert.Equal(t, TableArea, stored.EntityTable)
	assert.Equal(t, entityID, stored.EntityID)
	assert.Equal(t, string(KindCreate), stored.Kind)
	assert.WithinDuration(t, time.Now(), stored.CreatedAt, 5*time.Second)
}

func TestAtomicityEventFailureRollsBackMutation(t *testing.T) {
	db := newTestDB(t)
	rec := NewRecorder(nil)
	user := newTestUser(t, db, "tendai")

	err := db.Transaction(func(tx *gorm.DB) error {
		entry := models.PicklistEntry{Identifier: "Harare"}
		if err := tx.Table("areas").Create(&entry).Error; err != nil {
			return err
		}
		// Unknown entity table makes the capture fail after the mutation.
		_, err := rec.Created(tx, "no_such_table", entry.ID, user.ID, Snapshot{"identifier": "Harare"})
		return err
	})
	require.Error(t, err)

	// Neither side of the transaction is visible.
	assert.EqualValues(t, 0, countRows(t, db, "areas"))
	assert.EqualValues(t, 0, countRows(t, db, "events"))
}

func TestAtomicityMutationFailureRollsBackEvent(t *testing.T) {
	db := newTestDB(t)
	rec := NewRecorder(nil)
	user := newTestUser(t, db, "tendai")

	boom := errors.New("boom")
	err := db.Transaction(func(tx *gorm.DB) error {
		if _, err := rec.Created(tx, TableArea, uuid.New(), user.ID, Snapshot{"identifier": "Harare"}); err != nil {
			return err
		}
		// Simulated mutation failure after the event insert.
		return boom
	})
	require.ErrorIs(t, err, boom)

	assert.EqualValues(t, 0, countRows(t, db, "events"))
}

func TestUpdatedComputesDiffCentrally(t *testing.T) {
	db := newTestDB(t)
	rec := NewRecorder(nil)
	user := newTestUser(t, db, "tendai")
	entityID := uuid.New()

	var ev *models.Event
	err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		ev, err = rec.Updated(tx, TableArea, entityID, user.ID,
			Snapshot{"identifier": "Harare", "notes": "same"},
			Snapshot{"identifier": "Harare North", "notes": "same"},
		)
		return err
	})
	require.NoError(t, err)

	details, err := ParseDetails(KindUpdate, ev.Details)
	require.NoError(t, err)
	require.Len(t, details.Changes, 1)
	assert.Equal(t, FieldChange{From: "Harare", To: "Harare North"}, details.Changes["identifier"])
}

func TestUpdatedWithNoChangesStillWritesRow(t *testing.T) {
	db := newTestDB(t)
	rec := NewRecorder(nil)
	user := newTestUser(t, db, "tendai")

	s := Snapshot{"identifier": "Harare"}
	err := db.Transaction(func(tx *gorm.DB) error {
		_, err := rec.Updated(tx, TableArea, uuid.New(), user.ID, s, s)
		return err
	})
	require.NoError(t, err)

	entries, err := LoadFeed(db, Filter{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, KindUpdate, entries[0].Kind)
	assert.Empty(t, entries[0].Details.Changes)
}

func TestAnnounceBroadcastsToSubscribers(t *testing.T) {
	hub := NewHub()
	rec := NewRecorder(hub)

	events, cancel := hub.Subscribe()
	defer cancel()

	ev := &models.Event{EntityTable: TableArea, Kind: string(KindCreate)}
	rec.Announce(ev)

	select {
	case got := <-events:
		assert.Equal(t, ev, got)
	case <-time.After(time.Second):
		t.Fatal("expected broadcast event")
	}

	// Nil events (failed transactions) pass through without panic.
	rec.Announce(nil)
}

func TestHubDropsSlowSubscriber(t *testing.T) {
	hub := NewHub()
	events, cancel := hub.Subscribe()
	defer cancel()

	// Overflow the buffer; Broadcast must not block.
	for i := 0; i < 50; i++ {
		hub.Broadcast(&models.Event{ID: int64(i)})
	}

	// The buffered prefix is delivered in order.
	first := <-events
	assert.EqualValues(t, 0, first.ID)
}
