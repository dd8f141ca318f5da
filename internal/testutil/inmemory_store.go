package testutil

import (
	"context"
	"sort"
	"sync"

	"github.com/cockroachdb/errors"
)

var (
	// ErrExists is returned when creating an item with a duplicate id
	ErrExists = errors.New("item already exists")
	// ErrNotFound is returned when an item is missing
	ErrNotFound = errors.New("item not found")
)

// InMemoryStore is a generic thread safe store used by the in-memory
// repository implementations. Every multi-step mutation in those
// repositories runs under WithLock so the conditional-update semantics of
// the real store are preserved.
type InMemoryStore[T any] struct {
	mu    sync.RWMutex
	items map[string]T
}

// NewInMemoryStore creates a new empty store
func NewInMemoryStore[T any]() *InMemoryStore[T] {
	return &InMemoryStore[T]{items: make(map[string]T)}
}

// Create adds an item under id, failing on duplicates
func (s *InMemoryStore[T]) Create(ctx context.Context, id string, item T) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; ok {
		return ErrExists
	}
	s.items[id] = item
	return nil
}

// Get retrieves the item under id
func (s *InMemoryStore[T]) Get(ctx context.Context, id string) (T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[id]
	if !ok {
		var zero T
		return zero, ErrNotFound
	}
	return item, nil
}

// Update replaces the item under id
func (s *InMemoryStore[T]) Update(ctx context.Context, id string, item T) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return ErrNotFound
	}
	s.items[id] = item
	return nil
}

// List returns items matching filterFn ordered by sortFn
func (s *InMemoryStore[T]) List(ctx context.Context, filterFn func(T) bool, sortFn func(a, b T) bool) []T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []T
	for _, item := range s.items {
		if filterFn == nil || filterFn(item) {
			out = append(out, item)
		}
	}
	if sortFn != nil {
		sort.SliceStable(out, func(i, j int) bool { return sortFn(out[i], out[j]) })
	}
	return out
}

// WithLock runs fn while holding the write lock, so a read-check-write
// sequence behaves like one atomic statement
func (s *InMemoryStore[T]) WithLock(fn func(items map[string]T) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.items)
}

// Count returns the number of items matching filterFn
func (s *InMemoryStore[T]) Count(ctx context.Context, filterFn func(T) bool) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, item := range s.items {
		if filterFn == nil || filterFn(item) {
			n++
		}
	}
	return n
}
