package corekit

import (
	"context"
	"encoding/json"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// QueueEntry is one offline-queued call (spec §4.8).
type QueueEntry struct {
	ID         string
	Endpoint   Endpoint
	Priority   int
	CreatedAt  time.Time
	ExpiresAt  time.Time
	RetryCount int
	MaxRetries int
}

func (e *QueueEntry) isExpired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && now.After(e.ExpiresAt)
}

// OfflineQueue is an in-memory priority list ordered by (priority desc,
// createdAt asc), persisted to disk after every mutation (spec §4.8).
type OfflineQueue struct {
	mu         sync.Mutex
	entries    []*QueueEntry
	maxSize    int
	path       string
	logger     Logger
	processing int32
}

// NewOfflineQueue builds a queue capped at maxSize entries, persisted at
// path. Corrupted state found at path on open is discarded and logged
// rather than treated as fatal (spec §4.8).
func NewOfflineQueue(path string, maxSize int, logger Logger) *OfflineQueue {
	q := &OfflineQueue{path: path, maxSize: maxSize, logger: logger}
	q.load()
	return q
}

func (q *OfflineQueue) load() {
	data, err := os.ReadFile(q.path)
	if err != nil {
		return
	}
	var entries []*QueueEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		if q.logger != nil {
			q.logger.Warn("offline queue persisted state corrupted, starting empty", "path", q.path, "error", err)
		}
		return
	}
	q.entries = entries
}

// persist re-serializes the queue. Caller must hold q.mu.
func (q *OfflineQueue) persist() {
	if q.path == "" {
		return
	}
	data, err := json.Marshal(q.entries)
	if err != nil {
		return
	}
	_ = os.WriteFile(q.path, data, 0o644)
}

func (q *OfflineQueue) sort() {
	sort.SliceStable(q.entries, func(i, j int) bool {
		if q.entries[i].Priority != q.entries[j].Priority {
			return q.entries[i].Priority > q.entries[j].Priority
		}
		return q.entries[i].CreatedAt.Before(q.entries[j].CreatedAt)
	})
}

// Enqueue appends entry, rejecting with OfflineQueueFull when the queue is
// already at capacity (spec §4.8).
func (q *OfflineQueue) Enqueue(endpoint Endpoint, priority int, expiresAt time.Time, maxRetries int) (*QueueEntry, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.maxSize > 0 && len(q.entries) >= q.maxSize {
		return nil, ErrOfflineQueueFull
	}
	if maxRetries <= 0 {
		maxRetries = 3
	}
	entry := &QueueEntry{
		ID:         uuid.NewString(),
		Endpoint:   endpoint,
		Priority:   priority,
		CreatedAt:  time.Now(),
		ExpiresAt:  expiresAt,
		MaxRetries: maxRetries,
	}
	q.entries = append(q.entries, entry)
	q.sort()
	q.persist()
	return entry, nil
}

// Dequeue drops expired entries from the head region and returns the
// highest-priority non-expired entry, if any (spec §4.8).
func (q *OfflineQueue) Dequeue() (*QueueEntry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := time.Now()
	for len(q.entries) > 0 && q.entries[0].isExpired(now) {
		q.entries = q.entries[1:]
	}
	if len(q.entries) == 0 {
		q.persist()
		return nil, false
	}
	entry := q.entries[0]
	q.entries = q.entries[1:]
	q.persist()
	return entry, true
}

// Peek returns the head entry without removing it.
func (q *OfflineQueue) Peek() (*QueueEntry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.entries) == 0 {
		return nil, false
	}
	return q.entries[0], true
}

// Remove deletes the entry with the given id, if present.
func (q *OfflineQueue) Remove(id string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, e := range q.entries {
		if e.ID == id {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			q.persist()
			return
		}
	}
}

// Clear empties the queue.
func (q *OfflineQueue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.entries = nil
	q.persist()
}

// GetAll returns every non-expired entry, in queue order.
func (q *OfflineQueue) GetAll() []*QueueEntry {
	q.mu.Lock()
	defer q.mu.Unlock()
	now := time.Now()
	out := make([]*QueueEntry, 0, len(q.entries))
	for _, e := range q.entries {
		if !e.isExpired(now) {
			out = append(out, e)
		}
	}
	return out
}

// Flush forces the queue's current state to disk, used by Engine.Shutdown
// to persist whatever is still queued before the process exits.
func (q *OfflineQueue) Flush() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.persist()
}

// Size returns the current entry count, expired or not.
func (q *OfflineQueue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// QueueResult reports the outcome of submitting one queued entry to the
// engine during a drain.
type QueueResult struct {
	Entry   *QueueEntry
	Raw     RawResponse
	Err     error
	Dropped bool
}

// ProcessQueue serializes a single drain of the queue, guarded by an
// internal processing flag so concurrent calls coalesce into the
// already-running drain rather than running two drains at once
// (spec §4.8). Each entry is resubmitted to the engine tagged
// no-requeue; on failure below MaxRetries and not expired it is
// re-enqueued, otherwise it is dropped and reported.
func (q *OfflineQueue) ProcessQueue(ctx context.Context, engine *Engine, onResult func(QueueResult)) {
	if !atomic.CompareAndSwapInt32(&q.processing, 0, 1) {
		return
	}
	defer atomic.StoreInt32(&q.processing, 0)

	for {
		entry, ok := q.Dequeue()
		if !ok {
			return
		}
		raw, err := engine.ExecuteRaw(ctx, entry.Endpoint.WithTag(NoRequeueTag))
		if err == nil {
			if onResult != nil {
				onResult(QueueResult{Entry: entry, Raw: raw})
			}
			continue
		}

		entry.RetryCount++
		if entry.RetryCount < entry.MaxRetries && !entry.isExpired(time.Now()) {
			q.mu.Lock()
			q.entries = append(q.entries, entry)
			q.sort()
			q.persist()
			q.mu.Unlock()
			continue
		}
		if onResult != nil {
			onResult(QueueResult{Entry: entry, Err: err, Dropped: true})
		}
	}
}
