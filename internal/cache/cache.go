package cache

import (
	"sync"
	"time"
)

// Cache provides a simple in-memory cache whose entries expire after a
// period without access
type Cache[V any] struct {
	data  map[string]V
	times map[string]time.Time
	ttl   time.Duration
	now   func() time.Time
	mu    sync.Mutex
}

// NewCache creates a new cache with the specified TTL
func NewCache[V any](ttl time.Duration) *Cache[V] {
	return &Cache[V]{
		data:  make(map[string]V),
		times: make(map[string]time.Time),
		ttl:   ttl,
		now:   time.Now,
	}
}

// GetOrCreate returns the live value for key, storing the result of create
// when there is none
func (c *Cache[V]) GetOrCreate(key string, create func() V) V {
	c.mu.Lock()
	defer c.mu.Unlock()

	if val, exists := c.data[key]; exists && !c.expiredLocked(key) {
		c.times[key] = c.now()
		return val
	}
	val := create()
	c.data[key] = val
	c.times[key] = c.now()
	return val
}

// Sweep removes expired entries and returns how many were removed
func (c *Cache[V]) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key := range c.data {
		if c.expiredLocked(key) {
			delete(c.data, key)
			delete(c.times, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of stored entries, including expired ones not yet swept
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.data)
}

func (c *Cache[V]) expiredLocked(key string) bool {
	return c.now().Sub(c.times[key]) > c.ttl
}
