package audit

import (
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/touchstonehq/touchstone/internal/database"
	"github.com/touchstonehq/touchstone/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return db
}

func newTestUser(t *testing.T, db *gorm.DB, name string) models.User {
	t.Helper()
	u := models.User{
		Username:     name,
		DisplayName:  name,
		PasswordHash: "x",
		Active:       true,
	}
	require.NoError(t, db.Create(&u).Error)
	return u
}

func entryIDs(entries []Entry) []int64 {
	ids := make([]int64, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
	}
	return ids
}

func TestFeedCompleteness(t *testing.T) {
	db := newTestDB(t)
	rec := NewRecorder(nil)
	user := newTestUser(t, db, "tendai")

	// Three events across two entity tables, written through the capture API.
	err := db.Transaction(func(tx *gorm.DB) error {
		if _, err := rec.Created(tx, TableArea, uuid.New(), user.ID, Snapshot{"identifier": "Harare"}); err != nil {
			return err
		}
		if _, err := rec.Created(tx, TableCity, uuid.New(), user.ID, Snapshot{"identifier": "Gweru"}); err != nil {
			return err
		}
		_, err := rec.Deleted(tx, TableCity, uuid.New(), user.ID, Snapshot{"identifier": "Kwekwe"})
		return err
	})
	require.NoError(t, err)

	entries, err := LoadFeed(db, Filter{})
	require.NoError(t, err)
	require.Len(t, entries, 3)

	tables := map[string]int{}
	for _, e := range entries {
		tables[e.Table]++
		assert.Equal(t, "tendai", e.User)
	}
	assert.Equal(t, map[string]int{TableArea: 1, TableCity: 2}, tables)
}

func TestFeedFilterConjunction(t *testing.T) {
	db := newTestDB(t)
	rec := NewRecorder(nil)
	alice := newTestUser(t, db, "alice")
	bob := newTestUser(t, db, "bob")

	err := db.Transaction(func(tx *gorm.DB) error {
		if _, err := rec.Created(tx, TableArea, uuid.New(), alice.ID, Snapshot{"identifier": "a1"}); err != nil {
			return err
		}
		if _, err := rec.Deleted(tx, TableArea, uuid.New(), alice.ID, Snapshot{"identifier": "a2"}); err != nil {
			return err
		}
		if _, err := rec.Created(tx, TableArea, uuid.New(), bob.ID, Snapshot{"identifier": "b1"}); err != nil {
			return err
		}
		_, err := rec.Created(tx, TableCity, uuid.New(), bob.ID, Snapshot{"identifier": "b2"})
		return err
	})
	require.NoError(t, err)

	kind := KindCreate
	both, err := LoadFeed(db, Filter{UserID: &alice.ID, Kind: &kind})
	require.NoError(t, err)

	byUser, err := LoadFeed(db, Filter{UserID: &alice.ID})
	require.NoError(t, err)
	byKind, err := LoadFeed(db, Filter{Kind: &kind})
	require.NoError(t, err)

	// The conjunction equals the intersection of the single filters.
	inUser := map[int64]bool{}
	for _, e := range byUser {
		inUser[e.ID] = true
	}
	var intersection []int64
	for _, e := range byKind {
		if inUser[e.ID] {
			intersection = append(intersection, e.ID)
		}
	}
	assert.ElementsMatch(t, intersection, entryIDs(both))

	require.Len(t, both, 1)
	assert.Equal(t, KindCreate, both[0].Kind)
	assert.Equal(t, alice.ID, both[0].UserID)
}

func TestFeedTimeRangeFilter(t *testing.T) {
	db := newTestDB(t)
	user := newTestUser(t, db, "tendai")

	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		ev := models.Event{
			EntityTable: TableArea,
			EntityID:    uuid.New(),
			UserID:      user.ID,
			Kind:        string(KindCreate),
			Details:     datatypes.JSON(`{"identifier":"x"}`),
			CreatedAt:   base.Add(time.Duration(i) * time.Hour),
		}
		require.NoError(t, db.Create(&ev).Error)
	}

	from := base.Add(30 * time.Minute)
	to := base.Add(90 * time.Minute)
	entries, err := LoadFeed(db, Filter{From: &from, To: &to})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, base.Add(time.Hour).Unix(), entries[0].CreatedAt.Unix())
}

func TestFeedSortNewestFirstStableTies(t *testing.T) {
	db := newTestDB(t)
	user := newTestUser(t, db, "tendai")

	ts := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	mkEvent := func(created time.Time) int64 {
		ev := models.Event{
			EntityTable: TableArea,
			EntityID:    uuid.New(),
			UserID:      user.ID,
			Kind:        string(KindCreate),
			Details:     datatypes.JSON(`{"identifier":"x"}`),
			CreatedAt:   created,
		}
		require.NoError(t, db.Create(&ev).Error)
		return ev.ID
	}

	older := mkEvent(ts.Add(-time.Hour))
	tie1 := mkEvent(ts)
	tie2 := mkEvent(ts)
	newest := mkEvent(ts.Add(time.Hour))

	entries, err := LoadFeed(db, Filter{})
	require.NoError(t, err)
	require.Len(t, entries, 4)

	// Newest first; equal timestamps keep insertion order.
	assert.Equal(t, []int64{newest, tie1, tie2, older}, entryIDs(entries))
}

func TestFeedMalformedRowIsolation(t *testing.T) {
	db := newTestDB(t)
	rec := NewRecorder(nil)
	user := newTestUser(t, db, "tendai")

	var good *models.Event
	err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		good, err = rec.Created(tx, TableArea, uuid.New(), user.ID, Snapshot{"identifier": "Harare"})
		return err
	})
	require.NoError(t, err)

	// Corrupted row: update-kind with a create-shaped blob.
	corrupt := models.Event{
		EntityTable: TableCity,
		EntityID:    uuid.New(),
		UserID:      user.ID,
		Kind:        string(KindUpdate),
		Details:     datatypes.JSON(`{"identifier":"flat, not a pair"}`),
	}
	require.NoError(t, db.Create(&corrupt).Error)

	// Unparseable JSON in another table.
	garbage := models.Event{
		EntityTable: TableGroup,
		EntityID:    uuid.New(),
		UserID:      user.ID,
		Kind:        string(KindCreate),
		Details:     datatypes.JSON(`{{{`),
	}
	require.NoError(t, db.Create(&garbage).Error)

	entries, err := LoadFeed(db, Filter{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, good.ID, entries[0].ID)
	assert.Equal(t, TableArea, entries[0].Table)
}

func TestFeedDeletedActorKeepsEvent(t *testing.T) {
	db := newTestDB(t)
	rec := NewRecorder(nil)
	user := newTestUser(t, db, "temp")

	err := db.Transaction(func(tx *gorm.DB) error {
		_, err := rec.Created(tx, TableArea, uuid.New(), user.ID, Snapshot{"identifier": "Harare"})
		return err
	})
	require.NoError(t, err)
	require.NoError(t, db.Delete(&models.User{}, "id = ?", user.ID).Error)

	entries, err := LoadFeed(db, Filter{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, Placeholder, entries[0].User)
}
