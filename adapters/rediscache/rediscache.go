// Package rediscache provides a Redis-backed implementation of
// ports.PartnerCache, for deployments where several instances share the
// partner call budget and cached responses.
package rediscache

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ledgerdesk/ledgerdesk/ports"
)

// PartnerCache caches partner responses in Redis. Entry expiry is
// delegated to Redis TTLs, so Sweep is a no-op for entries; counters
// live in a single hash that survives restarts.
type PartnerCache struct {
	rdb    *redis.Client
	prefix string
}

// Option customizes the cache.
type Option func(*PartnerCache)

// WithPrefix overrides the key prefix (default "partner:cache").
func WithPrefix(prefix string) Option {
	return func(c *PartnerCache) {
		c.prefix = strings.Trim(prefix, ":")
	}
}

// New creates a Redis-backed partner cache.
func New(rdb *redis.Client, opts ...Option) *PartnerCache {
	c := &PartnerCache{
		rdb:    rdb,
		prefix: "partner:cache",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *PartnerCache) entryKey(key string) string {
	return c.prefix + ":entry:" + key
}

func (c *PartnerCache) statsKey() string {
	return c.prefix + ":stats"
}

// Get returns the cached body for a key, if present and fresh.
func (c *PartnerCache) Get(ctx context.Context, key string) ([]byte, bool) {
	body, err := c.rdb.Get(ctx, c.entryKey(key)).Bytes()
	if err != nil {
		// Treat any failure as a miss so the caller falls through
		// to the partner call.
		c.rdb.HIncrBy(ctx, c.statsKey(), "misses", 1)
		return nil, false
	}
	c.rdb.HIncrBy(ctx, c.statsKey(), "hits", 1)
	return body, true
}

// Set stores a response body under a key with a TTL.
func (c *PartnerCache) Set(ctx context.Context, key string, body []byte, ttl time.Duration) error {
	if err := c.rdb.Set(ctx, c.entryKey(key), body, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Sweep is satisfied by Redis key TTLs; it only reports zero removals.
func (c *PartnerCache) Sweep(ctx context.Context, now time.Time) (int, error) {
	return 0, nil
}

// Clear empties the cache by deleting all entry keys under the prefix.
func (c *PartnerCache) Clear(ctx context.Context) error {
	var cursor uint64
	pattern := c.prefix + ":entry:*"
	removed := int64(0)
	for {
		keys, next, err := c.rdb.Scan(ctx, cursor, pattern, 200).Result()
		if err != nil {
			return fmt.Errorf("redis scan: %w", err)
		}
		if len(keys) > 0 {
			n, err := c.rdb.Del(ctx, keys...).Result()
			if err != nil {
				return fmt.Errorf("redis del: %w", err)
			}
			removed += n
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	if removed > 0 {
		c.rdb.HIncrBy(ctx, c.statsKey(), "evictions", removed)
	}
	return nil
}

// Stats returns current counters.
func (c *PartnerCache) Stats(ctx context.Context) (ports.CacheStats, error) {
	vals, err := c.rdb.HGetAll(ctx, c.statsKey()).Result()
	if err != nil {
		return ports.CacheStats{}, fmt.Errorf("redis hgetall: %w", err)
	}

	stats := ports.CacheStats{
		Hits:      parseInt64(vals["hits"]),
		Misses:    parseInt64(vals["misses"]),
		Evictions: parseInt64(vals["evictions"]),
	}

	var cursor uint64
	pattern := c.prefix + ":entry:*"
	for {
		keys, next, err := c.rdb.Scan(ctx, cursor, pattern, 200).Result()
		if err != nil {
			return stats, fmt.Errorf("redis scan: %w", err)
		}
		stats.Entries += len(keys)
		cursor = next
		if cursor == 0 {
			break
		}
	}

	return stats, nil
}

// parseInt64 reads a counter value; a missing or corrupt field counts
// as zero rather than failing the stats call.
func parseInt64(s string) int64 {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// Ensure interface compliance.
var _ ports.PartnerCache = (*PartnerCache)(nil)
