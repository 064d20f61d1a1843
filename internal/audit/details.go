package audit

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"time"
)

// Kind tags an event as a create, update or delete. The stored details blob
// is shaped by this tag: create/delete rows carry a flat field map, update
// rows carry from/to pairs.
type Kind string

const (
	KindCreate Kind = "create"
	KindUpdate Kind = "update"
	KindDelete Kind = "delete"
)

// ParseKind reports whether s names a known event kind.
func ParseKind(s string) (Kind, bool) {
	switch Kind(s) {
	case KindCreate, KindUpdate, KindDelete:
		return Kind(s), true
	}
	return "", false
}

// Placeholder stands in for an absent relation in a snapshot, e.g. an
// account with no area assigned.
const Placeholder = "-"

// Snapshot maps field names to scalar values: the full field state of a
// record at one point in time. Values must be strings, numbers, booleans or
// times; related records are resolved to their display label by the caller.
type Snapshot map[string]any

// FieldChange is one field's before/after pair inside an update event.
type FieldChange struct {
	From any `json:"from"`
	To   any `json:"to"`
}

// Changes maps field names to before/after pairs. Only fields whose value
// actually changed appear; Diff builds it from two full snapshots.
type Changes map[string]FieldChange

// Details is the parsed, validated body of an event. Exactly one of Fields
// (create/delete) or Changes (update) is set, per Kind. Raw blobs never
// leave this package unparsed.
type Details struct {
	Kind    Kind     `json:"-"`
	Fields  Snapshot `json:"-"`
	Changes Changes  `json:"-"`
}

// MarshalJSON emits the stored wire shape: the flat field map for
// create/delete, the from/to map for update.
func (d Details) MarshalJSON() ([]byte, error) {
	if d.Kind == KindUpdate {
		if d.Changes == nil {
			return []byte("{}"), nil
		}
		return json.Marshal(d.Changes)
	}
	if d.Fields == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(d.Fields)
}

// normalize coerces a snapshot value into its stored form: times become
// RFC 3339 date strings, nil becomes the placeholder.
func normalize(v any) any {
	switch t := v.(type) {
	case nil:
		return Placeholder
	case time.Time:
		return t.Format(time.RFC3339)
	case *time.Time:
		if t == nil {
			return Placeholder
		}
		return t.Format(time.RFC3339)
	default:
		return v
	}
}

// Normalize returns a copy of the snapshot with every value normalized.
func (s Snapshot) Normalize() Snapshot {
	out := make(Snapshot, len(s))
	for k, v := range s {
		out[k] = normalize(v)
	}
	return out
}

// Diff computes the changed-field set between two full snapshots of the
// same record. Fields present in only one snapshot diff against the
// placeholder. Equal fields are dropped, so an unchanged record yields an
// empty change set.
func Diff(before, after Snapshot) Changes {
	changes := Changes{}
	for name, old := range before {
		oldN := normalize(old)
		var newN any = Placeholder
		if v, ok := after[name]; ok {
			newN = normalize(v)
		}
		if !reflect.DeepEqual(oldN, newN) {
			changes[name] = FieldChange{From: oldN, To: newN}
		}
	}
	for name, v := range after {
		if _, ok := before[name]; ok {
			continue
		}
		changes[name] = FieldChange{From: Placeholder, To: normalize(v)}
	}
	return changes
}

// ParseDetails validates a stored details blob against the shape its kind
// requires and returns the parsed union. A mismatch is a data-corruption
// condition on a historical row, so callers are expected to skip and log
// rather than fail the whole read.
func ParseDetails(kind Kind, raw []byte) (Details, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var body map[string]any
	if err := dec.Decode(&body); err != nil {
		return Details{}, fmt.Errorf("details is not a JSON object: %w", err)
	}

	switch kind {
	case KindCreate, KindDelete:
		fields := make(Snapshot, len(body))
		for name, v := range body {
			if !isScalar(v) {
				return Details{}, fmt.Errorf("field %q: expected a scalar value, got %T", name, v)
			}
			fields[name] = v
		}
		return Details{Kind: kind, Fields: fields}, nil

	case KindUpdate:
		changes := make(Changes, len(body))
		for name, v := range body {
			pair, ok := v.(map[string]any)
			if !ok {
				return Details{}, fmt.Errorf("field %q: expected a from/to pair, got %T", name, v)
			}
			if len(pair) != 2 {
				return Details{}, fmt.Errorf("field %q: expected exactly from and to", name)
			}
			from, okFrom := pair["from"]
			to, okTo := pair["to"]
			if !okFrom || !okTo {
				return Details{}, fmt.Errorf("field %q: expected exactly from and to", name)
			}
			if !isScalar(from) || !isScalar(to) {
				return Details{}, fmt.Errorf("field %q: from/to must be scalar", name)
			}
			changes[name] = FieldChange{From: from, To: to}
		}
		return Details{Kind: kind, Changes: changes}, nil
	}
	return Details{}, fmt.Errorf("unknown event kind %q", kind)
}

func isScalar(v any) bool {
	switch v.(type) {
	case string, json.Number, float64, bool, nil:
		return true
	}
	return false
}
