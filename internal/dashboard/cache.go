// Package dashboard aggregates the accident corpus into the statistics
// payload the frontend charts consume, with a short-lived in-memory
// cache keyed by the backend-applied filters.
package dashboard

import (
	"sync"
	"time"

	"roadrisk/internal/metrics"
)

// DefaultTTL is how long a computed stats payload stays fresh.
const DefaultTTL = 5 * time.Minute

type cacheEntry struct {
	mu       sync.Mutex
	stats    *Stats
	computed time.Time
}

// Cache memoizes stats payloads per filter key. Concurrent requests for
// the same key serialize on the entry so the aggregation runs once, not
// once per waiter.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*cacheEntry
	ttl     time.Duration
	now     func() time.Time
}

// NewCache builds a cache with the default TTL.
func NewCache() *Cache {
	return &Cache{
		entries: map[string]*cacheEntry{},
		ttl:     DefaultTTL,
		now:     time.Now,
	}
}

// WithTTL overrides the freshness window.
func (c *Cache) WithTTL(ttl time.Duration) *Cache {
	c.ttl = ttl
	return c
}

// WithClock substitutes the time source. Intended for tests.
func (c *Cache) WithClock(now func() time.Time) *Cache {
	c.now = now
	return c
}

// GetOrCompute returns the cached payload for key if still fresh,
// otherwise runs compute and caches the result. Errors are not cached.
func (c *Cache) GetOrCompute(key string, compute func() (*Stats, error)) (*Stats, error) {
	c.mu.Lock()
	e, ok := c.entries[key]
	if !ok {
		e = &cacheEntry{}
		c.entries[key] = e
	}
	c.mu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stats != nil && c.now().Sub(e.computed) < c.ttl {
		metrics.DashboardCacheHitsTotal.Inc()
		return e.stats, nil
	}

	metrics.DashboardCacheMissesTotal.Inc()
	stats, err := compute()
	if err != nil {
		return nil, err
	}
	e.stats = stats
	e.computed = c.now()
	return stats, nil
}

// Reset drops every cached payload.
func (c *Cache) Reset() {
	c.mu.Lock()
	c.entries = map[string]*cacheEntry{}
	c.mu.Unlock()
}
