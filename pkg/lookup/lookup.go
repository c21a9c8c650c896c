// Package lookup builds id -> label maps from fully drained secondary
// collections (offices, role groups, staff users) for reference resolution.
package lookup

import (
	"sort"
	"strings"

	"github.com/Sternrassler/cas-client/pkg/reference"
)

// Map maps a stringified id to its display label.
type Map map[string]string

// Label implements reference.Lookup. Empty labels count as a miss.
func (m Map) Label(id string) (string, bool) {
	l, ok := m[id]
	return l, ok && l != ""
}

// Merge copies every entry of other into m, overwriting existing ids.
func (m Map) Merge(other Map) {
	for id, label := range other {
		m[id] = label
	}
}

// Clone returns a copy of m.
func (m Map) Clone() Map {
	out := make(Map, len(m))
	out.Merge(m)
	return out
}

// Build derives a label for each record using rule (reference.DisplayLabel
// when nil), falling back to the stringified id. Records without an id are
// skipped; for duplicate ids the last record wins.
func Build(records []reference.Record, rule reference.LabelFunc) Map {
	if rule == nil {
		rule = reference.DisplayLabel
	}

	m := make(Map, len(records))
	for _, rec := range records {
		id := rec.ID()
		if id == "" {
			continue
		}
		label := rule(rec)
		if label == "" {
			label = id
		}
		m[id] = label
	}
	return m
}

// Option is one entry of a select list.
type Option struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// Options returns the map's entries sorted by label (case-insensitive), then id.
func Options(m Map) []Option {
	out := make([]Option, 0, len(m))
	for id, label := range m {
		out = append(out, Option{ID: id, Label: label})
	}
	sort.Slice(out, func(i, j int) bool {
		li, lj := strings.ToLower(out[i].Label), strings.ToLower(out[j].Label)
		if li != lj {
			return li < lj
		}
		return out[i].ID < out[j].ID
	})
	return out
}
