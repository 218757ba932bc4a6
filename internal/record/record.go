// Package record defines the normalized record model and the flattening
// rules applied to incoming scouting submissions before they fan out to
// the snapshot, raw archive, and document mirror.
package record

import (
	"encoding/json"
	"fmt"
)

// KeyField is the field every normalized record must carry. Its value is
// the unique identifier within a record type's snapshot.
const KeyField = "key"

// EventField, when present, scopes the keys reported back to the caller
// to a single event.
const EventField = "eventKey"

// Flat is a normalized record: a single-level mapping from field name to
// scalar value. Produced by Flatten; nothing downstream of the normalizer
// sees nested objects.
type Flat map[string]any

// Key returns the record's key field as a string, or "" if absent or
// not a string.
func (f Flat) Key() string {
	v, ok := f[KeyField]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// EventKey returns the record's event scope, or "" if the record is not
// event-scoped.
func (f Flat) EventKey() string {
	v, ok := f[EventField]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// NestingTooDeepError reports a value nested more than one level deep.
// One level of nesting is an explicit contract: `{"auto": {"speaker": 3}}`
// flattens to `auto_speaker`, but `{"a": {"b": {"c": 1}}}` is rejected
// rather than silently passed through.
type NestingTooDeepError struct {
	Field string
}

func (e *NestingTooDeepError) Error() string {
	return fmt.Sprintf("field %q is nested more than one level deep", e.Field)
}

// Flatten normalizes a decoded JSON object into a Flat record.
//
// Scalar fields copy through unchanged. A field whose value is an object
// expands to one field per nested key, named parent_child. Arrays are
// opaque: they re-encode to their JSON text and land in a single cell.
// Any object inside a nested object fails with NestingTooDeepError.
func Flatten(in map[string]any) (Flat, error) {
	out := make(Flat, len(in))
	for field, value := range in {
		switch v := value.(type) {
		case map[string]any:
			for inner, innerVal := range v {
				if _, nested := innerVal.(map[string]any); nested {
					return nil, &NestingTooDeepError{Field: field + "_" + inner}
				}
				out[field+"_"+inner] = scalarize(innerVal)
			}
		default:
			out[field] = scalarize(value)
		}
	}
	return out, nil
}

// CellString renders a flat value for a CSV cell. JSON numbers decode as
// float64; integral values render without a fractional part so match
// numbers round-trip cleanly.
func CellString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		if t {
			return "true"
		}
		return "false"
	case float64:
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%g", t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

// scalarize collapses non-scalar leaves (arrays) to their JSON text.
func scalarize(v any) any {
	if arr, ok := v.([]any); ok {
		b, err := json.Marshal(arr)
		if err != nil {
			return fmt.Sprintf("%v", arr)
		}
		return string(b)
	}
	return v
}
