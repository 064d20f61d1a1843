package audit

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKind(t *testing.T) {
	for _, s := range []string{"create", "update", "delete"} {
		kind, ok := ParseKind(s)
		require.True(t, ok)
		assert.Equal(t, Kind(s), kind)
	}

	_, ok := ParseKind("rename")
	assert.False(t, ok)
	_, ok = ParseKind("")
	assert.False(t, ok)
}

func TestNormalize(t *testing.T) {
	ts := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	s := Snapshot{
		"name":    "Harare",
		"seats":   5,
		"since":   ts,
		"expiry":  (*time.Time)(nil),
		"contact": nil,
	}.Normalize()

	assert.Equal(t, "Harare", s["name"])
	assert.Equal(t, 5, s["seats"])
	assert.Equal(t, "2024-06-01T12:00:00Z", s["since"])
	assert.Equal(t, Placeholder, s["expiry"])
	assert.Equal(t, Placeholder, s["contact"])
}

func TestDiff(t *testing.T) {
	before := Snapshot{
		"identifier": "Harare",
		"seats":      5,
		"notes":      "",
	}
	after := Snapshot{
		"identifier": "Harare North",
		"seats":      5,
		"notes":      "",
	}

	changes := Diff(before, after)
	require.Len(t, changes, 1)
	assert.Equal(t, FieldChange{From: "Harare", To: "Harare North"}, changes["identifier"])
}

func TestDiffIdenticalSnapshots(t *testing.T) {
	s := Snapshot{"identifier": "Harare", "seats": 5}
	assert.Empty(t, Diff(s, s))
}

func TestDiffAddedAndRemovedFields(t *testing.T) {
	changes := Diff(Snapshot{"old_only": "x"}, Snapshot{"new_only": "y"})

	require.Len(t, changes, 2)
	assert.Equal(t, FieldChange{From: "x", To: Placeholder}, changes["old_only"])
	assert.Equal(t, FieldChange{From: Placeholder, To: "y"}, changes["new_only"])
}

func TestDiffNilBecomesPlaceholder(t *testing.T) {
	changes := Diff(Snapshot{"area": nil}, Snapshot{"area": "Harare"})

	require.Len(t, changes, 1)
	assert.Equal(t, FieldChange{From: Placeholder, To: "Harare"}, changes["area"])
}

func TestCreateDetailsRoundTrip(t *testing.T) {
	fields := Snapshot{
		"identifier": "Harare",
		"seats":      5,
		"active":     true,
	}.Normalize()

	raw, err := json.Marshal(fields)
	require.NoError(t, err)

	parsed, err := ParseDetails(KindCreate, raw)
	require.NoError(t, err)
	assert.Equal(t, KindCreate, parsed.Kind)
	assert.Nil(t, parsed.Changes)
	assert.Equal(t, "Harare", parsed.Fields["identifier"])
	assert.Equal(t, json.Number("5"), parsed.Fields["seats"])
	assert.Equal(t, true, parsed.Fields["active"])
}

func TestDeleteDetailsRoundTrip(t *testing.T) {
	raw, err := json.Marshal(Snapshot{"identifier": "Harare"}.Normalize())
	require.NoError(t, err)

	parsed, err := ParseDetails(KindDelete, raw)
	require.NoError(t, err)
	assert.Equal(t, KindDelete, parsed.Kind)
	assert.Equal(t, "Harare", parsed.Fields["identifier"])
}

func TestUpdateDetailsRoundTrip(t *testing.T) {
	changes := Diff(
		Snapshot{"identifier": "Harare"},
		Snapshot{"identifier": "Harare North"},
	)
	raw, err := json.Marshal(changes)
	require.NoError(t, err)

	parsed, err := ParseDetails(KindUpdate, raw)
	require.NoError(t, err)
	assert.Equal(t, KindUpdate, parsed.Kind)
	assert.Nil(t, parsed.Fields)
	assert.Equal(t, FieldChange{From: "Harare", To: "Harare North"}, parsed.Changes["identifier"])
}

func TestParseDetailsRejectsShapeMismatch(t *testing.T) {
	// Update-shaped blob under a create kind: nested objects are not scalars.
	_, err := ParseDetails(KindCreate, []byte(`{"identifier":{"from":"a","to":"b"}}`))
	assert.Error(t, err)

	// Create-shaped blob under an update kind: scalars are not pairs.
	_, err = ParseDetails(KindUpdate, []byte(`{"identifier":"Harare"}`))
	assert.Error(t, err)

	// Pair missing "to".
	_, err = ParseDetails(KindUpdate, []byte(`{"identifier":{"from":"a"}}`))
	assert.Error(t, err)

	// Pair with an extra key.
	_, err = ParseDetails(KindUpdate, []byte(`{"identifier":{"from":"a","to":"b","via":"c"}}`))
	assert.Error(t, err)

	// Pair values must be scalar.
	_, err = ParseDetails(KindUpdate, []byte(`{"identifier":{"from":["a"],"to":"b"}}`))
	assert.Error(t, err)

	// Arrays are not valid field values.
	_, err = ParseDetails(KindCreate, []byte(`{"tags":["a","b"]}`))
	assert.Error(t, err)

	// Not an object at all.
	_, err = ParseDetails(KindCreate, []byte(`[1,2,3]`))
	assert.Error(t, err)
	_, err = ParseDetails(KindCreate, []byte(`not json`))
	assert.Error(t, err)
}

func TestDetailsMarshalShapes(t *testing.T) {
	create := Details{Kind: KindCreate, Fields: Snapshot{"identifier": "Harare"}}
	raw, err := json.Marshal(create)
	require.NoError(t, err)
	assert.JSONEq(t, `{"identifier":"Harare"}`, string(raw))

	update := Details{Kind: KindUpdate, Changes: Changes{
		"identifier": {From: "Harare", To: "Harare North"},
	}}
	raw, err = json.Marshal(update)
	require.NoError(t, err)
	assert.JSONEq(t, `{"identifier":{"from":"Harare","to":"Harare North"}}`, string(raw))

	empty := Details{Kind: KindUpdate}
	raw, err = json.Marshal(empty)
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(raw))
}
