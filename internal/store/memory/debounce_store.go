package memory

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"lifebox-go/internal/store"
)

// DebounceStore is an in-memory implementation of store.DebounceStore backed
// by go-cache. Entries never expire on their own; the janitor sweep is the
// only eviction path, so cutoff decisions stay with the caller's clock.
type DebounceStore struct {
	cache *gocache.Cache
}

// NewDebounceStore creates a new in-memory debounce store.
func NewDebounceStore() *DebounceStore {
	return &DebounceStore{
		cache: gocache.New(gocache.NoExpiration, 0),
	}
}

// Get retrieves the debounce entry for a rule/device pair, nil when absent.
func (s *DebounceStore) Get(ctx context.Context, ruleID, deviceID string) (*store.DebounceEntry, error) {
	value, found := s.cache.Get(debounceKey(ruleID, deviceID))
	if !found {
		return nil, nil
	}

	entry := value.(store.DebounceEntry)
	return &entry, nil
}

// Put stores a debounce entry, replacing any existing one.
func (s *DebounceStore) Put(ctx context.Context, entry *store.DebounceEntry) error {
	s.cache.Set(debounceKey(entry.RuleID, entry.DeviceID), *entry, gocache.NoExpiration)
	return nil
}

// Delete removes the entry for a rule/device pair. No-op when absent.
func (s *DebounceStore) Delete(ctx context.Context, ruleID, deviceID string) error {
	s.cache.Delete(debounceKey(ruleID, deviceID))
	return nil
}

// Sweep removes entries with a timestamp strictly older than the cutoff and
// returns how many were removed.
func (s *DebounceStore) Sweep(ctx context.Context, olderThan time.Time) (int, error) {
	removed := 0
	for key, item := range s.cache.Items() {
		entry := item.Object.(store.DebounceEntry)
		if entry.Timestamp.Before(olderThan) {
			s.cache.Delete(key)
			removed++
		}
	}
	return removed, nil
}

// Close releases the store. No-op for the in-memory implementation.
func (s *DebounceStore) Close() error {
	return nil
}

func debounceKey(ruleID, deviceID string) string {
	return ruleID + ":" + deviceID
}
