// Package reference resolves loosely-typed relationship fields (raw ids, bare
// strings or embedded objects) into a canonical id and a display label.
package reference

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Placeholder is displayed for absent references.
const Placeholder = "—"

// Record is a single API entity as decoded from JSON. Numbers are kept as
// json.Number so ids stringify exactly as the server sent them.
type Record map[string]any

// DecodeRecord decodes a JSON object into a Record.
func DecodeRecord(data []byte) (Record, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var rec Record
	if err := dec.Decode(&rec); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	if rec == nil {
		return nil, fmt.Errorf("decode record: not an object")
	}
	return rec, nil
}

// ID returns the record's stringified id field.
func (r Record) ID() string {
	id, _ := Stringify(r["id"])
	return id
}

// String returns a field as a string, empty when absent or not a primitive.
func (r Record) String(field string) string {
	s, _ := Stringify(r[field])
	return s
}

// Ref returns the reference value stored under field. An embedded object in
// field wins because it may carry its own label; otherwise the "<field>_id"
// column is preferred over a bare "<field>" value.
func (r Record) Ref(field string) any {
	v := r[field]
	if _, ok := v.(map[string]any); ok {
		return v
	}
	if id, ok := r[field+"_id"]; ok && id != nil {
		return id
	}
	return v
}

// Stringify converts a primitive id into its canonical string form. Objects
// stringify to their id field. The second return value is false when no
// usable id exists.
func Stringify(v any) (string, bool) {
	switch val := v.(type) {
	case nil:
		return "", false
	case string:
		return val, val != ""
	case json.Number:
		return val.String(), true
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), true
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32), true
	case int:
		return strconv.Itoa(val), true
	case int64:
		return strconv.FormatInt(val, 10), true
	case int32:
		return strconv.FormatInt(int64(val), 10), true
	case uint64:
		return strconv.FormatUint(val, 10), true
	case bool:
		return strconv.FormatBool(val), true
	case map[string]any:
		return Stringify(val["id"])
	case Record:
		return Stringify(val["id"])
	default:
		return "", false
	}
}
