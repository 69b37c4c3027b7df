// Package docstore implements an append-only revision store for schemaless
// JSON documents with optimistic concurrency. Documents carry bookkeeping
// fields (_id, _type, _set_id, _rev, _deleted); every write inserts a new
// revision and a unique compound index on (type, set id, revision) arbitrates
// concurrent writers.
package docstore

import (
	"github.com/google/uuid"
)

// Bookkeeping field names reserved by the store.
const (
	FieldID      = "_id"
	FieldType    = "_type"
	FieldSetID   = "_set_id"
	FieldRev     = "_rev"
	FieldDeleted = "_deleted"
)

// Document is a schemaless JSON document. Values follow encoding/json
// conventions (string, float64, bool, []any, map[string]any), except that
// Normalize coerces _rev back to int after a JSON round-trip.
type Document map[string]any

// ID returns the stored document id, or "" when unset.
func (d Document) ID() string {
	s, _ := d[FieldID].(string)
	return s
}

// Type returns the document type, or "" when unset.
func (d Document) Type() string {
	s, _ := d[FieldType].(string)
	return s
}

// SetID returns the set id, or "" for singletons.
func (d Document) SetID() string {
	s, _ := d[FieldSetID].(string)
	return s
}

// Rev returns the revision number, or 0 when unset.
func (d Document) Rev() int {
	n, _ := asInt(d[FieldRev])
	return n
}

// Deleted reports whether this revision is a tombstone.
func (d Document) Deleted() bool {
	b, _ := d[FieldDeleted].(bool)
	return b
}

// Clone returns a deep copy of the document.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	return Document(cloneValue(map[string]any(d)).(map[string]any))
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case Document:
		return Document(cloneValue(map[string]any(t)).(map[string]any))
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = cloneValue(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}

// Normalize returns a copy of the document with bookkeeping fields in
// canonical form: _id as string and _rev as int. JSON decoding yields float64
// for every number, so documents read back from storage pass through here
// before being returned to callers.
func Normalize(d Document) Document {
	out := d.Clone()
	if v, ok := out[FieldRev]; ok {
		if n, ok := asInt(v); ok {
			out[FieldRev] = n
		}
	}
	return out
}

// asInt coerces JSON numbers that hold integral values.
func asInt(v any) (int, bool) {
	switch t := v.(type) {
	case int:
		return t, true
	case int32:
		return int(t), true
	case int64:
		return int(t), true
	case float64:
		n := int(t)
		if float64(n) == t {
			return n, true
		}
		return 0, false
	default:
		return 0, false
	}
}

func newDocumentID() string {
	return uuid.NewString()
}
