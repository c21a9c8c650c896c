package view

import (
	"net/url"
	"strings"

	"github.com/Sternrassler/cas-client/pkg/enrich"
	"github.com/Sternrassler/cas-client/pkg/reference"
	"github.com/Sternrassler/cas-client/pkg/session"
)

// Definition describes one dashboard page: its primary collection, the
// secondary collections drained into lookup maps, and how rows render.
type Definition struct {
	// Name identifies the page, e.g. "transfers".
	Name string

	// Title is the human readable page title.
	Title string

	// Endpoint is the primary collection, e.g. "/transfers/".
	Endpoint string

	// Query adds server-side filters derived from the session (optional).
	Query func(session.Session) url.Values

	// Keep filters drained records client-side (optional).
	Keep func(session.Session, reference.Record) bool

	Lookups []LookupSource
	Columns []Column
	Enrich  []enrich.Target

	// SortField orders rows; empty keeps server order.
	SortField string
	SortDesc  bool
}

// LookupSource is a secondary collection drained into a lookup map.
type LookupSource struct {
	Name     string
	Endpoint string

	// Label derives entry labels (reference.DisplayLabel when nil).
	Label reference.LabelFunc

	// Exclude drops records before the map is built (optional).
	Exclude func(reference.Record) bool
}

// Column describes one rendered cell.
type Column struct {
	// Name is the column header.
	Name string

	// Field is the record field rendered in the column.
	Field string

	// Lookup names the lookup map resolving the reference (optional).
	Lookup string

	// Kind names the enrichment labels consulted after Lookup (optional).
	Kind string

	// Multi marks a many-valued reference; labels are joined.
	Multi bool

	// Label computes the cell from the whole record (optional).
	Label reference.LabelFunc
}

// reference reports whether the column renders a reference.
func (c Column) reference() bool {
	return c.Lookup != "" || c.Kind != "" || c.Multi
}

// StartURL returns the primary endpoint with the session's query applied.
func (d Definition) StartURL(sess session.Session) string {
	if d.Query == nil {
		return d.Endpoint
	}
	q := d.Query(sess)
	if len(q) == 0 {
		return d.Endpoint
	}
	sep := "?"
	if strings.Contains(d.Endpoint, "?") {
		sep = "&"
	}
	return d.Endpoint + sep + q.Encode()
}

// GroupNames returns the group names of a user's groups field, which holds
// either names or {"id", "name"} objects.
func GroupNames(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}

	var out []string
	for _, item := range items {
		switch g := item.(type) {
		case string:
			if g != "" {
				out = append(out, g)
			}
		case map[string]any:
			if name, ok := reference.Stringify(g["name"]); ok {
				out = append(out, name)
			}
		}
	}
	return out
}

// InGroup reports whether the user record belongs to the named group.
func InGroup(rec reference.Record, name string) bool {
	for _, g := range GroupNames(rec["groups"]) {
		if strings.EqualFold(g, name) {
			return true
		}
	}
	return false
}

// RefEquals reports whether the reference in field points at id.
func RefEquals(rec reference.Record, field, id string) bool {
	if id == "" {
		return false
	}
	got, ok := reference.Stringify(rec.Ref(field))
	return ok && got == id
}

// isCitizen matches citizen accounts, which staff lists leave out.
func isCitizen(rec reference.Record) bool {
	return InGroup(rec, "Citizen")
}
