package corekit

import (
	"context"
	"sync/atomic"
)

// SyncManager drains the offline queue when reachability transitions to
// reachable, guarded by a syncing flag so re-entrant triggers coalesce
// into the run already in progress (spec §4.9).
type SyncManager struct {
	engine       *Engine
	queue        *OfflineQueue
	reachability *Reachability
	subID        string
	autoSync     bool
	syncing      int32
	onResult     func(QueueResult)
}

// NewSyncManager wires a queue and reachability tracker to an engine. When
// autoSync is true, a non-reachable→reachable transition triggers a drain
// automatically.
func NewSyncManager(engine *Engine, queue *OfflineQueue, reachability *Reachability, autoSync bool, onResult func(QueueResult)) *SyncManager {
	m := &SyncManager{engine: engine, queue: queue, reachability: reachability, autoSync: autoSync, onResult: onResult}
	if reachability != nil {
		m.subID = reachability.Subscribe(func(status ReachabilityStatus) {
			if m.autoSync && status == ReachabilityReachable {
				m.Trigger(context.Background())
			}
		})
	}
	return m
}

// Close unsubscribes from reachability notifications.
func (m *SyncManager) Close() {
	if m.reachability != nil && m.subID != "" {
		m.reachability.Unsubscribe(m.subID)
	}
}

// Trigger starts a drain unless one is already running, in which case the
// call is a no-op — re-entrant triggers are coalesced (spec §4.9).
func (m *SyncManager) Trigger(ctx context.Context) {
	if !atomic.CompareAndSwapInt32(&m.syncing, 0, 1) {
		return
	}
	defer atomic.StoreInt32(&m.syncing, 0)
	m.queue.ProcessQueue(ctx, m.engine, m.onResult)
}

// Syncing reports whether a drain is currently in progress.
func (m *SyncManager) Syncing() bool {
	return atomic.LoadInt32(&m.syncing) == 1
}
