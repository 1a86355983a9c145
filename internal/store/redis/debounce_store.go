// Package redis provides the Redis-backed implementation of the debounce
// store, shared between engine replicas in the storage deployment mode.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"lifebox-go/internal/config"
	"lifebox-go/internal/store"
)

const prefixDebounce = "debounce:"

// DebounceStore implements store.DebounceStore using Redis. Keys carry a TTL
// matching the janitor sweep age so abandoned entries expire on their own
// even if no sweep runs.
type DebounceStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewDebounceStore creates a new Redis-backed debounce store.
func NewDebounceStore(cfg *config.RedisConfig, ttl time.Duration) (*DebounceStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &DebounceStore{client: client, ttl: ttl}, nil
}

func debounceKey(ruleID, deviceID string) string {
	return fmt.Sprintf("%s%s:%s", prefixDebounce, ruleID, deviceID)
}

// Get retrieves the debounce entry for a rule/device pair, nil when absent.
func (s *DebounceStore) Get(ctx context.Context, ruleID, deviceID string) (*store.DebounceEntry, error) {
	data, err := s.client.Get(ctx, debounceKey(ruleID, deviceID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get debounce entry: %w", err)
	}

	var entry store.DebounceEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("failed to unmarshal debounce entry: %w", err)
	}

	return &entry, nil
}

// Put stores a debounce entry, replacing any existing one.
func (s *DebounceStore) Put(ctx context.Context, entry *store.DebounceEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal debounce entry: %w", err)
	}

	key := debounceKey(entry.RuleID, entry.DeviceID)
	if err := s.client.Set(ctx, key, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set debounce entry: %w", err)
	}

	return nil
}

// Delete removes the entry for a rule/device pair. No-op when absent.
func (s *DebounceStore) Delete(ctx context.Context, ruleID, deviceID string) error {
	if err := s.client.Del(ctx, debounceKey(ruleID, deviceID)).Err(); err != nil {
		return fmt.Errorf("failed to delete debounce entry: %w", err)
	}
	return nil
}

// Sweep scans debounce keys and removes entries with a timestamp older than
// the cutoff. Redis TTLs already expire abandoned keys; the sweep covers
// entries refreshed less recently than their TTL suggests.
func (s *DebounceStore) Sweep(ctx context.Context, olderThan time.Time) (int, error) {
	removed := 0

	iter := s.client.Scan(ctx, 0, prefixDebounce+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()

		data, err := s.client.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			return removed, fmt.Errorf("failed to get debounce entry during sweep: %w", err)
		}

		var entry store.DebounceEntry
		if err := json.Unmarshal(data, &entry); err != nil {
			// Unreadable entries are evicted rather than kept forever.
			if delErr := s.client.Del(ctx, key).Err(); delErr == nil {
				removed++
			}
			continue
		}

		if entry.Timestamp.Before(olderThan) {
			if err := s.client.Del(ctx, key).Err(); err != nil {
				return removed, fmt.Errorf("failed to delete debounce entry during sweep: %w", err)
			}
			removed++
		}
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("failed to scan debounce keys: %w", err)
	}

	return removed, nil
}

// Close closes the Redis client connection.
func (s *DebounceStore) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}
