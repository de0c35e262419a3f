package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrCacheMiss is returned when no usable entry exists for a key.
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry is returned for entries that cannot be decoded or carry no URL.
	ErrInvalidEntry = errors.New("invalid cache entry")
)

// Manager stores rendered chart URLs in Redis.
type Manager struct {
	redis *redis.Client
}

// NewManager creates a Manager on top of redisClient.
func NewManager(redisClient *redis.Client) *Manager {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &Manager{redis: redisClient}
}

// Get returns the entry stored under key, or ErrCacheMiss.
// Undecodable entries are removed and reported as ErrInvalidEntry.
func (m *Manager) Get(ctx context.Context, key ChartKey) (*ChartEntry, error) {
	data, err := m.redis.Get(ctx, key.String()).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		CacheLookups.WithLabelValues(key.Kind, resultMiss).Inc()
		return nil, ErrCacheMiss
	case err != nil:
		CacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}

	entry, err := decodeEntry(data)
	if err != nil {
		CacheLookups.WithLabelValues(key.Kind, resultInvalid).Inc()
		_ = m.Delete(ctx, key)
		return nil, err
	}

	// Redis expiry normally removes the key first; the check covers clock skew.
	if entry.IsExpired() {
		CacheLookups.WithLabelValues(key.Kind, resultExpired).Inc()
		_ = m.Delete(ctx, key)
		return nil, ErrCacheMiss
	}

	CacheLookups.WithLabelValues(key.Kind, resultHit).Inc()
	return entry, nil
}

// Set stores entry until its expiry. Entries that are already expired are skipped.
func (m *Manager) Set(ctx context.Context, key ChartKey, entry *ChartEntry) error {
	if entry == nil {
		return fmt.Errorf("cache entry cannot be nil")
	}
	if entry.ImageURL == "" {
		return fmt.Errorf("%w: empty image url", ErrInvalidEntry)
	}

	ttl := entry.TTL()
	if ttl <= 0 {
		return nil
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	if err := m.redis.Set(ctx, key.String(), data, ttl).Err(); err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("redis set %s: %w", key, err)
	}

	CacheWrites.WithLabelValues(key.Kind).Inc()
	return nil
}

// Delete removes the entry stored under key.
func (m *Manager) Delete(ctx context.Context, key ChartKey) error {
	if err := m.redis.Del(ctx, key.String()).Err(); err != nil {
		CacheErrors.WithLabelValues("delete").Inc()
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}

func decodeEntry(data []byte) (*ChartEntry, error) {
	var entry ChartEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}
	if entry.ImageURL == "" {
		return nil, fmt.Errorf("%w: empty image url", ErrInvalidEntry)
	}
	return &entry, nil
}
