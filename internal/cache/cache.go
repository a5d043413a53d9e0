// Package cache provides a small TTL key/value cache used by the request
// guards to avoid a database round trip per request. Each guard owns its
// own instance; invalidation on writes is an explicit call, not ambient
// global state.
package cache

import (
	"sync"
	"time"
)

type entry[V any] struct {
	value     V
	fetchedAt time.Time
}

// Cache is a TTL key/value cache. Entries are immutable once stored and are
// replaced wholesale on refresh, so a race between a reader and a refresher
// can at worst serve one extra stale read within the TTL window.
type Cache[V any] struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]entry[V]
}

// New creates a cache with the given TTL
func New[V any](ttl time.Duration) *Cache[V] {
	return &Cache[V]{
		ttl:     ttl,
		entries: make(map[string]entry[V]),
	}
}

// Get returns the cached value if present and not expired
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok || time.Since(e.fetchedAt) > c.ttl {
		var zero V
		return zero, false
	}
	return e.value, true
}

// Set stores a value under key
func (c *Cache[V]) Set(key string, value V) {
	c.mu.Lock()
	c.entries[key] = entry[V]{value: value, fetchedAt: time.Now()}
	c.mu.Unlock()
}

// Invalidate removes a single key. Writers of the underlying entity must
// call this whenever their write changes what the guard would decide.
func (c *Cache[V]) Invalidate(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Purge removes all entries
func (c *Cache[V]) Purge() {
	c.mu.Lock()
	c.entries = make(map[string]entry[V])
	c.mu.Unlock()
}

// Len returns the number of stored entries, expired ones included
func (c *Cache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
