package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

const (
	memoryDefaultExpiration = 10 * time.Minute
	memoryCleanupInterval   = 5 * time.Minute
)

// MemoryCache is an in-process cache with per-entry expiration, used by the
// HTTP server when no shared backend is configured.
type MemoryCache struct {
	cache *gocache.Cache
}

// NewMemoryCache creates an empty in-memory cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		cache: gocache.New(memoryDefaultExpiration, memoryCleanupInterval),
	}
}

// Get retrieves a value from the cache.
func (c *MemoryCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	obj, found := c.cache.Get(key)
	if !found {
		return nil, false, nil
	}
	data, ok := obj.([]byte)
	if !ok {
		c.cache.Delete(key)
		return nil, false, nil
	}
	return data, true, nil
}

// Set stores a copy of data. A zero ttl never expires.
func (c *MemoryCache) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	d := gocache.NoExpiration
	if ttl > 0 {
		d = ttl
	}
	c.cache.Set(key, append([]byte(nil), data...), d)
	return nil
}

// Delete removes a value from the cache.
func (c *MemoryCache) Delete(ctx context.Context, key string) error {
	c.cache.Delete(key)
	return nil
}

// Len returns the number of stored entries, including expired ones not yet
// cleaned up.
func (c *MemoryCache) Len() int {
	return c.cache.ItemCount()
}

// Close drops every entry.
func (c *MemoryCache) Close() error {
	c.cache.Flush()
	return nil
}

var _ Cache = (*MemoryCache)(nil)
