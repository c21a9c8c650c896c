package cache

import (
	"context"

	"github.com/Sternrassler/cas-client/pkg/reference"
)

// itemsFunc adapts a function to enrich.ItemFetcher.
type itemsFunc func(ctx context.Context, endpoint string) (map[string]any, error)

func (f itemsFunc) FetchItem(ctx context.Context, endpoint string) (reference.Record, error) {
	rec, err := f(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	return reference.Record(rec), nil
}

func recordsOf(raw ...map[string]any) []reference.Record {
	out := make([]reference.Record, len(raw))
	for i, r := range raw {
		out[i] = reference.Record(r)
	}
	return out
}
