// Package memory keeps archive blobs in-process. It backs tests and dry runs.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/JakeFAU/legislature-crawler/internal/archive"
)

// Store is a concurrency-safe in-memory archive.Cache.
type Store struct {
	mu   sync.RWMutex
	data map[string][]byte
	puts map[string]int
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		data: make(map[string][]byte),
		puts: make(map[string]int),
	}
}

// Exists reports whether key holds a blob.
func (s *Store) Exists(_ context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.data[key]
	return ok, nil
}

// Get returns a copy of the blob at key.
func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.data[key]
	if !ok {
		return nil, fmt.Errorf("%s: %w", key, archive.ErrNotFound)
	}
	return append([]byte(nil), data...), nil
}

// Put stores a copy of data at key.
func (s *Store) Put(_ context.Context, key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = append([]byte(nil), data...)
	s.puts[key]++
	return nil
}

// Puts returns how many times key has been written.
func (s *Store) Puts(key string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.puts[key]
}

// Keys lists stored keys in lexical order.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
