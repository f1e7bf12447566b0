package corekit

import (
	"container/list"
	"sync"
	"time"
)

// MemoryCache is an insertion-ordered key→entry map with an explicit byte
// counter and LRU eviction, guarded by a single lock rather than the
// teacher's sharded design so eviction order stays deterministic under test
// (spec §4.2, §8 scenario on eviction order).
type MemoryCache struct {
	mu      sync.Mutex
	maxSize int64
	size    int64
	order   *list.List
	index   map[string]*list.Element
}

// NewMemoryCache builds a MemoryCache capped at maxSize total bytes. A
// maxSize of 0 means unbounded (eviction never triggers).
func NewMemoryCache(maxSize int64) *MemoryCache {
	return &MemoryCache{
		maxSize: maxSize,
		order:   list.New(),
		index:   make(map[string]*list.Element),
	}
}

func (c *MemoryCache) Get(key string) ([]byte, bool) {
	entry, ok := c.GetEntry(key)
	if !ok {
		return nil, false
	}
	return entry.Bytes, true
}

func (c *MemoryCache) GetEntry(key string) (*CacheEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.index[key]
	if !ok {
		return nil, false
	}
	entry := el.Value.(*CacheEntry)
	if entry.isExpired(time.Now()) {
		c.removeElement(el)
		return nil, false
	}
	c.order.MoveToBack(el)
	return entry, true
}

// Put removes any existing entry for key, then evicts least-recently-used
// entries from the front until the new entry fits, then inserts at the
// back. A write that cannot fit even after a full drain fails with
// CacheWriteFailed and leaves the cache untouched (spec §4.2).
func (c *MemoryCache) Put(key string, bytes []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	newSize := int64(len(bytes))
	if c.maxSize > 0 && newSize > c.maxSize {
		return &ClientError{Type: ErrorTypeCacheWriteFailed, Message: "entry exceeds cache capacity"}
	}

	if el, ok := c.index[key]; ok {
		c.removeElement(el)
	}

	for c.maxSize > 0 && c.size+newSize > c.maxSize && c.order.Len() > 0 {
		front := c.order.Front()
		c.removeElement(front)
	}

	if c.maxSize > 0 && c.size+newSize > c.maxSize {
		return &ClientError{Type: ErrorTypeCacheWriteFailed, Message: "cache write failed after full eviction"}
	}

	entry := &CacheEntry{
		Key:       key,
		Bytes:     bytes,
		CreatedAt: time.Now(),
		TTL:       ttl,
	}
	el := c.order.PushBack(entry)
	c.index[key] = el
	c.size += newSize
	return nil
}

func (c *MemoryCache) Remove(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.index[key]; ok {
		c.removeElement(el)
	}
}

func (c *MemoryCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.order = list.New()
	c.index = make(map[string]*list.Element)
	c.size = 0
}

func (c *MemoryCache) Contains(key string) bool {
	_, ok := c.GetEntry(key)
	return ok
}

func (c *MemoryCache) Size() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

// removeElement drops el from both the list and the index and subtracts its
// byte size. Caller must hold c.mu.
func (c *MemoryCache) removeElement(el *list.Element) {
	entry := el.Value.(*CacheEntry)
	delete(c.index, entry.Key)
	c.order.Remove(el)
	c.size -= int64(entry.byteSize())
}
