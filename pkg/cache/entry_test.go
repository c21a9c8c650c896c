package cache

import (
	"errors"
	"testing"
	"time"
)

func TestEntry_RoundTrip(t *testing.T) {
	fetched := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	raw, err := encodeEntry(Entry{Label: "Abebe Kebede", FetchedAt: fetched})
	if err != nil {
		t.Fatalf("encodeEntry failed: %v", err)
	}

	got, err := decodeEntry(raw)
	if err != nil {
		t.Fatalf("decodeEntry failed: %v", err)
	}
	if got.Label != "Abebe Kebede" || !got.FetchedAt.Equal(fetched) {
		t.Errorf("entry = %+v", got)
	}
}

func TestDecodeEntry_Invalid(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{name: "not json", raw: "Abebe"},
		{name: "empty label", raw: `{"label": ""}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := decodeEntry(tt.raw); !errors.Is(err, ErrInvalidEntry) {
				t.Errorf("err = %v, want ErrInvalidEntry", err)
			}
		})
	}
}

func TestEntry_Age(t *testing.T) {
	e := Entry{FetchedAt: time.Now().Add(-time.Hour)}
	if age := e.Age(); age < 59*time.Minute || age > 61*time.Minute {
		t.Errorf("Age() = %v, want about 1h", age)
	}
}
