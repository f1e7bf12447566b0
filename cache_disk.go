package corekit

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// diskManifestEntry is the on-disk record for one cached key (spec §4.2
// "JSON manifest mapping key → {filename, size, created, ttl}").
type diskManifestEntry struct {
	Filename  string        `json:"filename"`
	Size      int64         `json:"size"`
	CreatedAt time.Time     `json:"created"`
	TTL       time.Duration `json:"ttl"`
}

// DiskCache persists each entry as its own file under dir, named by a fresh
// opaque id, with a JSON manifest tracking key→file mappings (spec §4.2).
type DiskCache struct {
	mu       sync.Mutex
	dir      string
	maxSize  int64
	size     int64
	manifest map[string]diskManifestEntry
}

// NewDiskCache opens (or creates) a disk cache rooted at dir, reconciling
// its manifest against the files actually present.
func NewDiskCache(dir string, maxSize int64) (*DiskCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	c := &DiskCache{
		dir:      dir,
		maxSize:  maxSize,
		manifest: make(map[string]diskManifestEntry),
	}
	if err := c.reconcile(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *DiskCache) manifestPath() string {
	return filepath.Join(c.dir, "manifest.json")
}

// reconcile loads the manifest, drops expired entries, and trusts the file
// set over the manifest: orphan files are deleted, manifest entries whose
// file is missing are purged (spec §4.2 startup reconciliation).
func (c *DiskCache) reconcile() error {
	loaded := make(map[string]diskManifestEntry)
	if data, err := os.ReadFile(c.manifestPath()); err == nil {
		_ = json.Unmarshal(data, &loaded) // corrupted manifest treated as empty, not fatal
	}

	present := make(map[string]bool)
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return err
	}
	for _, de := range entries {
		if !de.IsDir() && de.Name() != "manifest.json" {
			present[de.Name()] = true
		}
	}

	now := time.Now()
	reconciled := make(map[string]diskManifestEntry)
	var total int64
	for key, me := range loaded {
		if !present[me.Filename] {
			continue
		}
		if me.TTL > 0 && now.After(me.CreatedAt.Add(me.TTL)) {
			_ = os.Remove(filepath.Join(c.dir, me.Filename))
			continue
		}
		reconciled[key] = me
		total += me.Size
		delete(present, me.Filename)
	}
	for orphan := range present {
		_ = os.Remove(filepath.Join(c.dir, orphan))
	}

	c.manifest = reconciled
	c.size = total
	return c.persist()
}

// persist rewrites the manifest file. Caller must hold c.mu.
func (c *DiskCache) persist() error {
	data, err := json.Marshal(c.manifest)
	if err != nil {
		return err
	}
	return os.WriteFile(c.manifestPath(), data, 0o644)
}

func (c *DiskCache) Get(key string) ([]byte, bool) {
	entry, ok := c.GetEntry(key)
	if !ok {
		return nil, false
	}
	return entry.Bytes, true
}

func (c *DiskCache) GetEntry(key string) (*CacheEntry, bool) {
	c.mu.Lock()
	me, ok := c.manifest[key]
	c.mu.Unlock()
	if !ok {
		return nil, false
	}
	if me.TTL > 0 && time.Now().After(me.CreatedAt.Add(me.TTL)) {
		c.Remove(key)
		return nil, false
	}
	bytes, err := os.ReadFile(filepath.Join(c.dir, me.Filename))
	if err != nil {
		c.Remove(key)
		return nil, false
	}
	return &CacheEntry{Key: key, Bytes: bytes, CreatedAt: me.CreatedAt, TTL: me.TTL}, true
}

// Put writes bytes to a fresh file, then updates the manifest, evicting the
// oldest-created entries first when the cap would be exceeded (spec §4.2:
// manifest writes happen after file writes).
func (c *DiskCache) Put(key string, bytes []byte, ttl time.Duration) error {
	filename := uuid.NewString()
	if err := os.WriteFile(filepath.Join(c.dir, filename), bytes, 0o644); err != nil {
		return &ClientError{Type: ErrorTypeCacheWriteFailed, Message: "failed to write cache file", Cause: err}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.manifest[key]; ok {
		_ = os.Remove(filepath.Join(c.dir, existing.Filename))
		c.size -= existing.Size
		delete(c.manifest, key)
	}

	newSize := int64(len(bytes))
	for c.maxSize > 0 && c.size+newSize > c.maxSize && len(c.manifest) > 0 {
		oldestKey, oldest := c.oldest()
		_ = os.Remove(filepath.Join(c.dir, oldest.Filename))
		c.size -= oldest.Size
		delete(c.manifest, oldestKey)
	}

	if c.maxSize > 0 && c.size+newSize > c.maxSize {
		_ = os.Remove(filepath.Join(c.dir, filename))
		return &ClientError{Type: ErrorTypeCacheWriteFailed, Message: "disk cache write failed after full eviction"}
	}

	c.manifest[key] = diskManifestEntry{Filename: filename, Size: newSize, CreatedAt: time.Now(), TTL: ttl}
	c.size += newSize
	return c.persist()
}

// oldest returns the manifest entry with the earliest CreatedAt. Caller
// must hold c.mu.
func (c *DiskCache) oldest() (string, diskManifestEntry) {
	var oldestKey string
	var oldest diskManifestEntry
	first := true
	for k, me := range c.manifest {
		if first || me.CreatedAt.Before(oldest.CreatedAt) {
			oldestKey, oldest = k, me
			first = false
		}
	}
	return oldestKey, oldest
}

func (c *DiskCache) Remove(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	me, ok := c.manifest[key]
	if !ok {
		return
	}
	_ = os.Remove(filepath.Join(c.dir, me.Filename))
	c.size -= me.Size
	delete(c.manifest, key)
	_ = c.persist()
}

func (c *DiskCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, me := range c.manifest {
		_ = os.Remove(filepath.Join(c.dir, me.Filename))
	}
	c.manifest = make(map[string]diskManifestEntry)
	c.size = 0
	_ = c.persist()
}

func (c *DiskCache) Contains(key string) bool {
	_, ok := c.GetEntry(key)
	return ok
}

func (c *DiskCache) Size() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}
