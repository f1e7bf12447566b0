package corekit

import "time"

// CacheEntry is one stored value: the raw bytes a prior response decoded
// from, plus the bookkeeping needed to expire and evict it (spec §4.2).
type CacheEntry struct {
	Key       string
	Bytes     []byte
	CreatedAt time.Time
	TTL       time.Duration
	Status    int
	Headers   map[string][]string
}

func (e *CacheEntry) expiresAt() time.Time {
	return e.CreatedAt.Add(e.TTL)
}

func (e *CacheEntry) isExpired(now time.Time) bool {
	return e.TTL > 0 && now.After(e.expiresAt())
}

func (e *CacheEntry) byteSize() int {
	return len(e.Bytes)
}

// Cache is the contract every tier (memory, disk, hybrid) satisfies
// (spec §4.2).
type Cache interface {
	Get(key string) ([]byte, bool)
	GetEntry(key string) (*CacheEntry, bool)
	Put(key string, bytes []byte, ttl time.Duration) error
	Remove(key string)
	Clear()
	Contains(key string) bool
	Size() int64
}
