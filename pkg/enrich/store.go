package enrich

import (
	"context"
	"sync"

	"github.com/Sternrassler/cas-client/pkg/lookup"
)

// Store remembers which ids were claimed for fetching and the labels learned
// so far. Implementations must be safe for concurrent use.
type Store interface {
	// Claim marks (kind, id) as pending and reports whether this call was
	// the first claim in the session.
	Claim(ctx context.Context, kind, id string) (bool, error)

	// Release drops a claim whose fetch was abandoned.
	Release(ctx context.Context, kind, id string) error

	// Put records the label for (kind, id).
	Put(ctx context.Context, kind, id, label string) error

	// Labels returns a snapshot of the labels known for kind.
	Labels(ctx context.Context, kind string) (lookup.Map, error)

	// Reset forgets all claims and labels (full reload).
	Reset(ctx context.Context) error
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu      sync.Mutex
	claimed map[string]map[string]bool
	labels  map[string]lookup.Map
}

// NewMemoryStore creates an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		claimed: make(map[string]map[string]bool),
		labels:  make(map[string]lookup.Map),
	}
}

// Claim implements Store.
func (s *MemoryStore) Claim(_ context.Context, kind, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids, ok := s.claimed[kind]
	if !ok {
		ids = make(map[string]bool)
		s.claimed[kind] = ids
	}
	if ids[id] {
		return false, nil
	}
	ids[id] = true
	return true, nil
}

// Release implements Store.
func (s *MemoryStore) Release(_ context.Context, kind, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.claimed[kind], id)
	return nil
}

// Put implements Store.
func (s *MemoryStore) Put(_ context.Context, kind, id, label string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.labels[kind]
	if !ok {
		m = make(lookup.Map)
		s.labels[kind] = m
	}
	m[id] = label
	return nil
}

// Labels implements Store.
func (s *MemoryStore) Labels(_ context.Context, kind string) (lookup.Map, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.labels[kind].Clone(), nil
}

// Reset implements Store.
func (s *MemoryStore) Reset(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.claimed = make(map[string]map[string]bool)
	s.labels = make(map[string]lookup.Map)
	return nil
}
