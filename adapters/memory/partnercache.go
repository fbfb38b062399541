// Package memory provides in-memory adapter implementations.
package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ledgerdesk/ledgerdesk/domain/ratelimit"
	"github.com/ledgerdesk/ledgerdesk/ports"
)

type cacheEntry struct {
	body     []byte
	storedAt time.Time
	ttl      time.Duration
}

// PartnerCache is an in-memory implementation of ports.PartnerCache.
// Entries expire lazily on read and eagerly via Sweep.
type PartnerCache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	clock   ports.Clock

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

// NewPartnerCache creates a new in-memory partner cache.
func NewPartnerCache(clock ports.Clock) *PartnerCache {
	return &PartnerCache{
		entries: make(map[string]cacheEntry),
		clock:   clock,
	}
}

// Get returns the cached body for a key, if present and fresh.
func (c *PartnerCache) Get(ctx context.Context, key string) ([]byte, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		c.misses.Add(1)
		return nil, false
	}

	if ratelimit.Expired(ratelimit.Entry{StoredAt: e.storedAt, TTL: e.ttl}, c.clock.Now()) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		c.misses.Add(1)
		c.evictions.Add(1)
		return nil, false
	}

	c.hits.Add(1)
	return e.body, true
}

// Set stores a response body under a key with a TTL.
func (c *PartnerCache) Set(ctx context.Context, key string, body []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{
		body:     body,
		storedAt: c.clock.Now(),
		ttl:      ttl,
	}
	return nil
}

// Sweep removes expired entries and returns how many were removed.
func (c *PartnerCache) Sweep(ctx context.Context, now time.Time) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, e := range c.entries {
		if ratelimit.Expired(ratelimit.Entry{StoredAt: e.storedAt, TTL: e.ttl}, now) {
			delete(c.entries, key)
			removed++
		}
	}
	c.evictions.Add(int64(removed))
	return removed, nil
}

// Clear empties the cache.
func (c *PartnerCache) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cacheEntry)
	return nil
}

// Stats returns current counters.
func (c *PartnerCache) Stats(ctx context.Context) (ports.CacheStats, error) {
	c.mu.RLock()
	entries := len(c.entries)
	c.mu.RUnlock()

	return ports.CacheStats{
		Entries:   entries,
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
	}, nil
}

// Ensure interface compliance.
var _ ports.PartnerCache = (*PartnerCache)(nil)
