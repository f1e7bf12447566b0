package corekit

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// RequestContext is carried through the pipeline for a single logical call
// (spec §3). Mutation is confined to the engine; interceptors only read it,
// enforced here by giving them a *RequestContext but documenting it as
// read-only outside package corekit (spec §4.5).
type RequestContext struct {
	ID         string
	StartedAt  time.Time
	RetryCount int
	Tags       []string
	Metadata   map[string]any

	// downloadProgress, when set by Download, reports incremental progress
	// as the response body is read in attemptLoop.
	downloadProgress ProgressFunc

	mu sync.Mutex
}

// newRequestContext builds a RequestContext from an Endpoint's tags and a
// fresh uuid, per spec §4.7 step 1.
func newRequestContext(e Endpoint) *RequestContext {
	return &RequestContext{
		ID:        uuid.NewString(),
		StartedAt: time.Now(),
		Tags:      append([]string{}, e.Tags...),
		Metadata:  make(map[string]any),
	}
}

// SetMetadata records a key/value pair; safe for concurrent readers calling
// MetadataValue() while the engine is still mutating retry count etc.
func (c *RequestContext) SetMetadata(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Metadata[key] = value
}

// MetadataValue reads a previously recorded key.
func (c *RequestContext) MetadataValue(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.Metadata[key]
	return v, ok
}

// HasTag reports whether tag was present on the originating Endpoint.
func (c *RequestContext) HasTag(tag string) bool {
	for _, t := range c.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

func (c *RequestContext) incrementRetry() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.RetryCount++
}

func (c *RequestContext) retryCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.RetryCount
}
