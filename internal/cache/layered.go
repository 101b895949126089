package cache

import "time"

// LayeredCache reads through a fast front layer to a slower back layer (disk or Redis)
type LayeredCache struct {
	front Cache
	back  Cache
}

// NewLayeredCache creates a two-layer cache
func NewLayeredCache(front, back Cache) *LayeredCache {
	return &LayeredCache{front: front, back: back}
}

// NewMemoryDiskCache is the default layout: go-cache in memory over JSON files on disk
func NewMemoryDiskCache(memoryTTL time.Duration, diskDir string, diskTTL time.Duration) *LayeredCache {
	return NewLayeredCache(
		NewMemoryCache(memoryTTL, 10*time.Minute),
		NewDiskCache(diskDir, diskTTL),
	)
}

// Get checks the front layer first, then the back layer
func (c *LayeredCache) Get(key string) ([]byte, bool) {
	if val, found := c.front.Get(key); found {
		return val, true
	}

	if val, found := c.back.Get(key); found {
		// Promote with the front layer's default TTL
		_ = c.front.Set(key, val, 0)
		return val, true
	}

	return nil, false
}

// Set stores a value in both layers
func (c *LayeredCache) Set(key string, value []byte, ttl time.Duration) error {
	if err := c.front.Set(key, value, ttl); err != nil {
		return err
	}
	return c.back.Set(key, value, ttl)
}

// Delete removes a value from both layers
func (c *LayeredCache) Delete(key string) error {
	_ = c.front.Delete(key)
	return c.back.Delete(key)
}

// Clear removes all values from both layers
func (c *LayeredCache) Clear() error {
	_ = c.front.Clear()
	return c.back.Clear()
}
