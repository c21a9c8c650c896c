package pagination

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Sternrassler/cas-client/pkg/reference"
)

// ErrMalformedPage indicates a response body that is neither an array nor an object.
var ErrMalformedPage = errors.New("malformed collection page")

// Shape identifies which of the three response shapes a page had.
type Shape int

const (
	// ShapeArray is a bare JSON array of records.
	ShapeArray Shape = iota + 1

	// ShapeEnvelope is a {"results": [...], "next": ...} envelope.
	ShapeEnvelope

	// ShapeObject is a single JSON object treated as one record.
	ShapeObject
)

// String implements fmt.Stringer (used as a metric label).
func (s Shape) String() string {
	switch s {
	case ShapeArray:
		return "array"
	case ShapeEnvelope:
		return "envelope"
	case ShapeObject:
		return "object"
	default:
		return "unknown"
	}
}

// Page is one decoded collection page.
type Page struct {
	Shape   Shape
	Records []reference.Record

	// Next is the continuation link; empty when this is the last page.
	Next string
}

// Last reports whether no further page follows.
func (p Page) Last() bool {
	return p.Shape != ShapeEnvelope || p.Next == ""
}

// DecodePage decodes a response body into a Page, discriminating the shape
// structurally.
func DecodePage(data []byte) (Page, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return Page{}, fmt.Errorf("%w: empty body", ErrMalformedPage)
	}

	var raw any
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return Page{}, fmt.Errorf("%w: %v", ErrMalformedPage, err)
	}

	switch val := raw.(type) {
	case []any:
		return Page{Shape: ShapeArray, Records: toRecords(val)}, nil

	case map[string]any:
		if results, ok := val["results"].([]any); ok {
			next, _ := val["next"].(string)
			return Page{Shape: ShapeEnvelope, Records: toRecords(results), Next: next}, nil
		}
		return Page{Shape: ShapeObject, Records: []reference.Record{reference.Record(val)}}, nil

	default:
		return Page{}, fmt.Errorf("%w: unexpected %T", ErrMalformedPage, raw)
	}
}

// toRecords converts sequence elements into records. Scalars (collections
// of bare ids) are wrapped as {"id": value}.
func toRecords(items []any) []reference.Record {
	out := make([]reference.Record, 0, len(items))
	for _, item := range items {
		switch val := item.(type) {
		case map[string]any:
			out = append(out, reference.Record(val))
		case nil:
			continue
		default:
			out = append(out, reference.Record{"id": val})
		}
	}
	return out
}
