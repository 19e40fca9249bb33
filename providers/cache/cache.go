// Package cache stores the last fetched weather reading per city.
// Freshness is judged by the caller from the entry's FetchedAt; entries
// are overwritten in place and never expire on their own.
package cache

import (
	"context"
	"sync"

	"weathernotify.app/models"
)

// Store defines the weather cache operations
type Store interface {
	FindByCity(ctx context.Context, city string) (*models.WeatherCacheEntry, bool)
	Upsert(ctx context.Context, entry *models.WeatherCacheEntry) error
}

// MemoryStore is an in-process Store used in tests and single-node setups
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]models.WeatherCacheEntry
}

// NewMemoryStore creates an empty in-memory weather cache
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]models.WeatherCacheEntry),
	}
}

// FindByCity returns the stored entry for the city, if any
func (s *MemoryStore) FindByCity(_ context.Context, city string) (*models.WeatherCacheEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[city]
	if !ok {
		return nil, false
	}
	return &entry, true
}

// Upsert overwrites the entry for the city
func (s *MemoryStore) Upsert(_ context.Context, entry *models.WeatherCacheEntry) error {
	if entry == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[entry.City] = *entry
	return nil
}
