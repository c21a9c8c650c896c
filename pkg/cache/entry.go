package cache

import (
	"encoding/json"
	"fmt"
	"time"
)

// Entry is one cached label.
type Entry struct {
	// Label is the display label derived from the fetched entity
	Label string `json:"label"`

	// FetchedAt is when the entity was fetched
	FetchedAt time.Time `json:"fetched_at"`
}

// Age returns how long ago the label was fetched.
func (e Entry) Age() time.Duration {
	return time.Since(e.FetchedAt)
}

func encodeEntry(e Entry) (string, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return "", fmt.Errorf("marshal entry: %w", err)
	}
	return string(data), nil
}

func decodeEntry(raw string) (Entry, error) {
	var e Entry
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		return Entry{}, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}
	if e.Label == "" {
		return Entry{}, fmt.Errorf("%w: empty label", ErrInvalidEntry)
	}
	return e, nil
}
