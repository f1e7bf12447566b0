package corekit

import (
	"sync"

	"github.com/google/uuid"
)

// ReachabilityStatus is the network-availability signal the Sync Manager
// watches (spec §4.9).
type ReachabilityStatus int

const (
	ReachabilityUnknown ReachabilityStatus = iota
	ReachabilityReachable
	ReachabilityUnreachable
)

// ReachabilityListener is notified on every status change.
type ReachabilityListener func(status ReachabilityStatus)

// Reachability tracks current network status and a registry of listeners
// keyed by an opaque subscription id, so callers can unsubscribe precisely
// (spec §4.9).
type Reachability struct {
	mu        sync.Mutex
	status    ReachabilityStatus
	listeners map[string]ReachabilityListener
}

// NewReachability builds a Reachability tracker in the Unknown state.
func NewReachability() *Reachability {
	return &Reachability{status: ReachabilityUnknown, listeners: make(map[string]ReachabilityListener)}
}

// Status returns the current reachability status.
func (r *Reachability) Status() ReachabilityStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Subscribe registers a listener and returns its subscription id.
func (r *Reachability) Subscribe(listener ReachabilityListener) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := uuid.NewString()
	r.listeners[id] = listener
	return id
}

// Unsubscribe removes a previously registered listener.
func (r *Reachability) Unsubscribe(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.listeners, id)
}

// SetStatus updates the status and notifies listeners when it changed. It
// returns whether the transition was non-reachable→reachable, the signal
// the Sync Manager uses to trigger an auto-sync (spec §4.9).
func (r *Reachability) SetStatus(status ReachabilityStatus) (becameReachable bool) {
	r.mu.Lock()
	prev := r.status
	if prev == status {
		r.mu.Unlock()
		return false
	}
	r.status = status
	listeners := make([]ReachabilityListener, 0, len(r.listeners))
	for _, l := range r.listeners {
		listeners = append(listeners, l)
	}
	r.mu.Unlock()

	for _, l := range listeners {
		l(status)
	}
	return prev != ReachabilityReachable && status == ReachabilityReachable
}
