package view

import (
	"errors"
	"strings"
	"time"

	"github.com/Sternrassler/cas-client/pkg/client"
	"github.com/Sternrassler/cas-client/pkg/reference"
)

// Snapshot is a rendered, immutable view of a page.
type Snapshot struct {
	Page       string    `json:"page"`
	Title      string    `json:"title,omitempty"`
	Phase      Phase     `json:"phase"`
	Enriching  bool      `json:"enriching"`
	Error      string    `json:"error,omitempty"`
	StatusCode int       `json:"status_code,omitempty"`
	Columns    []string  `json:"columns"`
	Rows       []Row     `json:"rows"`
	LoadedAt   time.Time `json:"loaded_at,omitempty"`

	// Updates counts enrichment labels learned since the last load.
	Updates int `json:"updates"`
}

// Row is one rendered record.
type Row struct {
	ID    string `json:"id,omitempty"`
	Cells []Cell `json:"cells"`
}

// Cell is one rendered value. Refs holds the resolved references of
// reference columns.
type Cell struct {
	Text string               `json:"text"`
	Refs []reference.Resolved `json:"refs,omitempty"`
}

// Texts returns the cell texts of the row.
func (r Row) Texts() []string {
	out := make([]string, len(r.Cells))
	for i, c := range r.Cells {
		out[i] = c.Text
	}
	return out
}

// Search returns a copy of the snapshot keeping rows where any cell contains
// term, case-insensitively. An empty term keeps every row.
func (s Snapshot) Search(term string) Snapshot {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return s
	}

	out := s
	out.Rows = make([]Row, 0, len(s.Rows))
	for _, row := range s.Rows {
		for _, cell := range row.Cells {
			if strings.Contains(strings.ToLower(cell.Text), term) {
				out.Rows = append(out.Rows, row)
				break
			}
		}
	}
	return out
}

// statusCode extracts the HTTP status of a fetch failure (0 otherwise).
func statusCode(err error) int {
	var failure *client.FetchFailure
	if errors.As(err, &failure) {
		return failure.StatusCode
	}
	return 0
}
