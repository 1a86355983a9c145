package store

import (
	"context"
	"time"
)

// DebounceEntry is the transient timing state for one (rule, device) pair
// under a duration-debounce gate. It is a timing hint, not a source of
// truth: losing it only delays a trigger by one cycle.
type DebounceEntry struct {
	// RuleID and DeviceID form the entry key. At most one entry exists
	// per key at any time.
	RuleID   string `json:"rule_id"`
	DeviceID string `json:"device_id"`

	// Value is the last observed qualifying metric value.
	Value float64 `json:"value"`

	// Timestamp is when the last qualifying value was observed. It is
	// refreshed on every sub-threshold match.
	Timestamp time.Time `json:"timestamp"`
}

// DebounceStore holds debounce entries. All methods must be safe for
// concurrent use; the engine serializes read-modify-write cycles per key on
// top of this interface.
type DebounceStore interface {
	// Get retrieves the entry for a rule/device pair. Returns nil, nil
	// when no entry exists.
	Get(ctx context.Context, ruleID, deviceID string) (*DebounceEntry, error)

	// Put stores or overwrites the entry for its rule/device pair.
	Put(ctx context.Context, entry *DebounceEntry) error

	// Delete removes the entry for a rule/device pair.
	Delete(ctx context.Context, ruleID, deviceID string) error

	// Sweep deletes every entry whose timestamp is older than the cutoff
	// and returns the number removed.
	Sweep(ctx context.Context, olderThan time.Time) (int, error)

	// Close releases any resources held by the store.
	Close() error
}
