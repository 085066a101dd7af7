package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/aretw0/coachflow/pkg/domain"
)

// Store implements ports.ManagedStore in memory.
// Safe for concurrent use.
type Store struct {
	data map[string]domain.Value
	mu   sync.RWMutex
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		data: make(map[string]domain.Value),
	}
}

// NewStoreFrom creates a store seeded with plain Go values.
func NewStoreFrom(seed map[string]any) *Store {
	s := NewStore()
	for k, v := range seed {
		s.data[k] = domain.FromAny(v)
	}
	return s
}

// Get returns a copy of the stored value.
func (s *Store) Get(ctx context.Context, key string) (domain.Value, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.data[key]
	if !ok {
		return nil, false, nil
	}
	// Copy on read so callers can't mutate stored lists/maps directly
	return clone(v), true, nil
}

// Set stores a copy of value.
func (s *Store) Set(ctx context.Context, key string, value domain.Value) error {
	if value == nil {
		value = domain.Null{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = clone(value)
	return nil
}

// Delete removes key.
func (s *Store) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

// Keys lists keys with the given prefix in lexical order.
func (s *Store) Keys(ctx context.Context, prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Snapshot returns a copy of every entry.
func (s *Store) Snapshot() domain.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := make(domain.Snapshot, len(s.data))
	for k, v := range s.data {
		snap[k] = clone(v)
	}
	return snap
}

func clone(v domain.Value) domain.Value {
	switch val := v.(type) {
	case domain.List:
		out := make(domain.List, len(val))
		for i, item := range val {
			out[i] = clone(item)
		}
		return out
	case domain.Map:
		out := make(domain.Map, len(val))
		for k, item := range val {
			out[k] = clone(item)
		}
		return out
	}
	return v
}
