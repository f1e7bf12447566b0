package corekit

import "time"

// HybridCache composes a memory tier and a disk tier (spec §4.2). Reads try
// memory first, then disk, promoting disk hits back into memory without
// disturbing their original creation time. Writes go to both tiers.
type HybridCache struct {
	memory *MemoryCache
	disk   *DiskCache
}

// NewHybridCache composes an existing memory and disk cache into one tiered
// Cache.
func NewHybridCache(memory *MemoryCache, disk *DiskCache) *HybridCache {
	return &HybridCache{memory: memory, disk: disk}
}

func (c *HybridCache) Get(key string) ([]byte, bool) {
	entry, ok := c.GetEntry(key)
	if !ok {
		return nil, false
	}
	return entry.Bytes, true
}

func (c *HybridCache) GetEntry(key string) (*CacheEntry, bool) {
	if entry, ok := c.memory.GetEntry(key); ok {
		return entry, true
	}
	entry, ok := c.disk.GetEntry(key)
	if !ok {
		return nil, false
	}
	c.promote(key, entry)
	return entry, true
}

// promote copies a disk hit into memory, preserving the original creation
// time so cache-age observability stays accurate (spec §4.2).
func (c *HybridCache) promote(key string, entry *CacheEntry) {
	remaining := entry.TTL
	if entry.TTL > 0 {
		remaining = entry.TTL - time.Since(entry.CreatedAt)
		if remaining <= 0 {
			return
		}
	}
	_ = c.memory.Put(key, entry.Bytes, remaining)
	if el, ok := c.memory.index[key]; ok {
		el.Value.(*CacheEntry).CreatedAt = entry.CreatedAt
	}
}

func (c *HybridCache) Put(key string, bytes []byte, ttl time.Duration) error {
	if err := c.memory.Put(key, bytes, ttl); err != nil {
		return err
	}
	return c.disk.Put(key, bytes, ttl)
}

func (c *HybridCache) Remove(key string) {
	c.memory.Remove(key)
	c.disk.Remove(key)
}

func (c *HybridCache) Clear() {
	c.memory.Clear()
	c.disk.Clear()
}

func (c *HybridCache) Contains(key string) bool {
	return c.memory.Contains(key) || c.disk.Contains(key)
}

func (c *HybridCache) Size() int64 {
	return c.memory.Size() + c.disk.Size()
}
