// Package enrich backfills labels for references that neither carry an
// embedded label nor resolve through a lookup map, by fetching the referenced
// entities one by one in the background.
//
// Every id is claimed in a Store before it is fetched, so an id is requested
// at most once per session no matter how many rows point at it or how often
// a page is rendered. Fetch failures are swallowed: the reference keeps
// displaying its raw id.
package enrich

import (
	"errors"
	"fmt"

	"github.com/Sternrassler/cas-client/pkg/reference"
)

// Target describes one reference field that can be backfilled.
type Target struct {
	// Kind names the entity type and the label namespace, e.g. "user".
	Kind string

	// Field is the record field holding the reference, e.g. "to_user".
	Field string

	// Endpoint is the item endpoint with one %s for the id, e.g. "/users/%s/".
	Endpoint string

	// Label derives the label from the fetched entity (reference.DisplayLabel when nil).
	Label reference.LabelFunc

	// Lookup names the lookup map consulted before fetching (optional).
	Lookup string
}

// URL returns the item endpoint for id.
func (t Target) URL(id string) string {
	return fmt.Sprintf(t.Endpoint, id)
}

func (t Target) label(rec reference.Record) string {
	if t.Label != nil {
		return t.Label(rec)
	}
	return reference.DisplayLabel(rec)
}

// errNoLabel is the Miss cause when a fetched entity yields no label.
var errNoLabel = errors.New("fetched entity has no label")

// Request is one id waiting to be fetched.
type Request struct {
	Target Target
	ID     string
}

// Update is delivered for every label learned by a job.
type Update struct {
	Kind  string
	ID    string
	Label string
}

// Miss records a failed backfill fetch. Misses are logged and counted but
// never surfaced to the user.
type Miss struct {
	Kind string
	ID   string
	Err  error
}

// Error implements the error interface.
func (m *Miss) Error() string {
	return fmt.Sprintf("enrichment miss %s/%s: %v", m.Kind, m.ID, m.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (m *Miss) Unwrap() error {
	return m.Err
}
