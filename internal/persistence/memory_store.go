package persistence

import (
	"context"
	"slices"
	"strings"
	"sync"
)

// InMemoryStore is a simple, goroutine-safe StateStore backed by a map.
type InMemoryStore struct {
	mu     sync.RWMutex
	values map[string][]byte
}

// NewInMemoryStore creates a new InMemoryStore.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		values: make(map[string][]byte),
	}
}

// Ensure InMemoryStore implements the interface.
var _ StateStore = (*InMemoryStore)(nil)

func (s *InMemoryStore) Load(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.values[key]
	if !ok {
		return nil, ErrStateNotFound
	}
	return slices.Clone(v), nil
}

func (s *InMemoryStore) Save(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.values[key] = slices.Clone(value)
	return nil
}

func (s *InMemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.values, key)
	return nil
}

func (s *InMemoryStore) Keys(_ context.Context, prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := []string{}
	for k := range s.values {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	return keys, nil
}
