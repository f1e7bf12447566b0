package corekit

import (
	"sync/atomic"
	"time"
)

// CircuitState is the three-state machine from spec §4.4.
type CircuitState int64

const (
	StateClosed CircuitState = iota
	StateOpen
	StateHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig configures the breaker. SuccessThreshold defaults to
// 1, matching the spec's literal "next call permitted as probe; success ⇒
// Closed" — a single probe success recovers the circuit.
type CircuitBreakerConfig struct {
	FailureThreshold int
	RecoveryTimeout  time.Duration
	SuccessThreshold int
}

// CircuitBreaker gates network attempts using lock-free atomics so Allow
// can be called on every retry-loop iteration without contention
// (spec §4.4, §5).
type CircuitBreaker struct {
	config      CircuitBreakerConfig
	state       int64
	failures    int64
	successes   int64
	openedAt    int64
}

// NewCircuitBreaker builds a breaker starting Closed.
func NewCircuitBreaker(config CircuitBreakerConfig) *CircuitBreaker {
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 5
	}
	if config.RecoveryTimeout <= 0 {
		config.RecoveryTimeout = 60 * time.Second
	}
	if config.SuccessThreshold <= 0 {
		config.SuccessThreshold = 1
	}
	return &CircuitBreaker{config: config, state: int64(StateClosed)}
}

// Allow reports whether a call may proceed, transitioning Open→HalfOpen
// once the reset timeout has elapsed (spec §4.4).
func (cb *CircuitBreaker) Allow() bool {
	switch CircuitState(atomic.LoadInt64(&cb.state)) {
	case StateClosed, StateHalfOpen:
		return true
	case StateOpen:
		openedAt := atomic.LoadInt64(&cb.openedAt)
		if time.Now().UnixNano()-openedAt > int64(cb.config.RecoveryTimeout) {
			if atomic.CompareAndSwapInt64(&cb.state, int64(StateOpen), int64(StateHalfOpen)) {
				atomic.StoreInt64(&cb.successes, 0)
				return true
			}
		}
		return false
	default:
		return false
	}
}

// RecordFailure accounts for a failed attempt. Closed→Open when the
// failure counter reaches FailureThreshold; HalfOpen→Open immediately on
// any probe failure, resetting opened_at (spec §4.4).
func (cb *CircuitBreaker) RecordFailure() {
	switch CircuitState(atomic.LoadInt64(&cb.state)) {
	case StateClosed:
		if atomic.AddInt64(&cb.failures, 1) >= int64(cb.config.FailureThreshold) {
			cb.trip()
		}
	case StateHalfOpen:
		cb.trip()
	}
}

func (cb *CircuitBreaker) trip() {
	atomic.StoreInt64(&cb.state, int64(StateOpen))
	atomic.StoreInt64(&cb.openedAt, time.Now().UnixNano())
	atomic.StoreInt64(&cb.successes, 0)
}

// RecordSuccess accounts for a successful attempt. Only meaningful in
// HalfOpen, where SuccessThreshold consecutive probe successes close the
// circuit and reset the failure counter (spec §4.4).
func (cb *CircuitBreaker) RecordSuccess() {
	if CircuitState(atomic.LoadInt64(&cb.state)) != StateHalfOpen {
		return
	}
	if atomic.AddInt64(&cb.successes, 1) >= int64(cb.config.SuccessThreshold) {
		atomic.StoreInt64(&cb.state, int64(StateClosed))
		atomic.StoreInt64(&cb.failures, 0)
		atomic.StoreInt64(&cb.successes, 0)
	}
}

// State returns the breaker's current state, for metrics and debug logs.
func (cb *CircuitBreaker) State() CircuitState {
	return CircuitState(atomic.LoadInt64(&cb.state))
}
