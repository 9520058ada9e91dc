// Package credstore persists access tokens keyed by account. Keys are user
// identifiers rendered in decimal. Three implementations share one
// interface: a JSON file, a SQLite database, and an in-memory map for tests.
package credstore

import (
	"errors"
	"slices"
	"sync"
)

// ErrNotFound is returned by Get and Delete for an absent key.
var ErrNotFound = errors.New("credstore: no credential for key")

// Store is a string key/value credential store.
type Store interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Delete(key string) error
	// Keys returns every stored key, sorted.
	Keys() ([]string, error)
}

// MemoryStore is a Store backed by a map. The zero value is ready to use.
type MemoryStore struct {
	mu sync.Mutex
	m  map[string]string
}

func (s *MemoryStore) Get(key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.m[key]
	if !ok {
		return "", ErrNotFound
	}

	return v, nil
}

func (s *MemoryStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.m == nil {
		s.m = make(map[string]string)
	}

	s.m[key] = value

	return nil
}

func (s *MemoryStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.m[key]; !ok {
		return ErrNotFound
	}

	delete(s.m, key)

	return nil
}

func (s *MemoryStore) Keys() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return sortedKeys(s.m), nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	slices.Sort(keys)

	return keys
}
