// Package cache provides a small bounded in-memory cache with TTL expiry
// and insertion-order eviction.
package cache

import (
	"sync"
	"time"
)

type entry[V any] struct {
	value    V
	storedAt time.Time
}

// Cache holds up to a fixed number of entries, each valid for a TTL.
// When full, the oldest inserted entry is evicted first. Safe for
// concurrent use.
type Cache[K comparable, V any] struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	entries  map[K]entry[V]
	order    []K

	now func() time.Time
}

// New creates a cache with the given capacity and TTL. Capacity must be
// at least 1.
func New[K comparable, V any](capacity int, ttl time.Duration) *Cache[K, V] {
	if capacity < 1 {
		capacity = 1
	}
	return &Cache[K, V]{
		capacity: capacity,
		ttl:      ttl,
		entries:  make(map[K]entry[V]),
		now:      time.Now,
	}
}

// Get returns the cached value for key if present and unexpired. An
// expired entry is dropped on access, so hot keys never pile up stale
// state waiting for a Sweep.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	e, ok := c.entries[key]
	if !ok {
		return zero, false
	}
	if c.expired(e) {
		delete(c.entries, key)
		c.dropFromOrder(key)
		return zero, false
	}
	return e.value, true
}

// Set stores a value, evicting the oldest entry when at capacity.
// Overwriting an existing key refreshes its TTL but keeps its place in
// the eviction order.
func (c *Cache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists {
		if len(c.entries) >= c.capacity {
			c.evictOldest()
		}
		c.order = append(c.order, key)
	}
	c.entries[key] = entry[V]{value: value, storedAt: c.now()}
}

// GetOrFetch returns the cached value for key, calling fetch on a miss or
// expired entry and storing the result. A fetch error is returned without
// caching anything.
func (c *Cache[K, V]) GetOrFetch(key K, fetch func() (V, error)) (V, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}
	v, err := fetch()
	if err != nil {
		var zero V
		return zero, err
	}
	c.Set(key, v)
	return v, nil
}

// Len returns the number of stored entries, including expired ones not
// yet swept.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Sweep removes expired entries and returns how many were dropped.
func (c *Cache[K, V]) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	kept := c.order[:0]
	for _, key := range c.order {
		e, ok := c.entries[key]
		if ok && c.expired(e) {
			delete(c.entries, key)
			removed++
			continue
		}
		if ok {
			kept = append(kept, key)
		}
	}
	c.order = kept
	return removed
}

func (c *Cache[K, V]) expired(e entry[V]) bool {
	return c.ttl > 0 && c.now().Sub(e.storedAt) >= c.ttl
}

// dropFromOrder removes key from the eviction order. Caller holds mu.
func (c *Cache[K, V]) dropFromOrder(key K) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}

func (c *Cache[K, V]) evictOldest() {
	for len(c.order) > 0 {
		oldest := c.order[0]
		c.order = c.order[1:]
		if _, ok := c.entries[oldest]; ok {
			delete(c.entries, oldest)
			return
		}
	}
}
