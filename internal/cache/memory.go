package cache

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryCache implements bounded in-memory caching with TTL eviction.
// When the item bound is reached the whole cache is flushed rather than
// tracking per-entry recency; a generational reset keeps memory bounded
// without the bookkeeping cost of LRU.
type MemoryCache struct {
	cache    *gocache.Cache
	maxItems int
}

// NewMemoryCache creates a new memory cache. maxItems <= 0 disables the
// size bound.
func NewMemoryCache(defaultTTL, cleanupInterval time.Duration, maxItems int) *MemoryCache {
	return &MemoryCache{
		cache:    gocache.New(defaultTTL, cleanupInterval),
		maxItems: maxItems,
	}
}

// Get retrieves a value from the cache
func (c *MemoryCache) Get(key string) ([]byte, bool) {
	if val, found := c.cache.Get(key); found {
		return val.([]byte), true
	}
	return nil, false
}

// Set stores a value in the cache with the given TTL
func (c *MemoryCache) Set(key string, value []byte, ttl time.Duration) error {
	if c.maxItems > 0 && c.cache.ItemCount() >= c.maxItems {
		if _, exists := c.cache.Get(key); !exists {
			c.cache.Flush()
		}
	}
	c.cache.Set(key, value, ttl)
	return nil
}

// Delete removes a value from the cache
func (c *MemoryCache) Delete(key string) error {
	c.cache.Delete(key)
	return nil
}

// Clear removes all values from the cache
func (c *MemoryCache) Clear() error {
	c.cache.Flush()
	return nil
}

// Len returns the current number of cached items
func (c *MemoryCache) Len() int {
	return c.cache.ItemCount()
}
