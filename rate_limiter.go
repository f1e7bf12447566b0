package corekit

import (
	"sync/atomic"
	"time"
)

// RateLimiter is a lock-free token bucket the engine consults before every
// transport attempt, independent of the server-reported RateLimitObserver
// (spec §4.10 note: the engine "may proactively delay" — this is the
// mechanism that enforces such a delay locally).
type RateLimiter struct {
	maxTokens  int64
	tokens     int64
	refillRate time.Duration
	lastRefill int64
}

// NewRateLimiter builds a bucket holding maxTokens, refilling one token
// every refillRate.
func NewRateLimiter(maxTokens int, refillRate time.Duration) *RateLimiter {
	return &RateLimiter{
		maxTokens:  int64(maxTokens),
		tokens:     int64(maxTokens),
		refillRate: refillRate,
		lastRefill: time.Now().UnixNano(),
	}
}

// Allow refills then attempts to consume one token.
func (rl *RateLimiter) Allow() bool {
	rl.refill()
	return rl.consume()
}

// Tokens reports the current token count, for metrics.
func (rl *RateLimiter) Tokens() int {
	return int(atomic.LoadInt64(&rl.tokens))
}

func (rl *RateLimiter) refill() {
	now := time.Now().UnixNano()
	for {
		currentTokens := atomic.LoadInt64(&rl.tokens)
		lastRefill := atomic.LoadInt64(&rl.lastRefill)

		elapsed := now - lastRefill
		var toAdd int64
		if rl.refillRate > 0 {
			toAdd = elapsed / int64(rl.refillRate)
		}
		if toAdd == 0 {
			return
		}

		newTokens := currentTokens + toAdd
		if newTokens > rl.maxTokens {
			newTokens = rl.maxTokens
		}
		newLastRefill := lastRefill + toAdd*int64(rl.refillRate)

		if !atomic.CompareAndSwapInt64(&rl.lastRefill, lastRefill, newLastRefill) {
			continue
		}
		atomic.StoreInt64(&rl.tokens, newTokens)
		return
	}
}

func (rl *RateLimiter) consume() bool {
	for {
		current := atomic.LoadInt64(&rl.tokens)
		if current <= 0 {
			return false
		}
		if atomic.CompareAndSwapInt64(&rl.tokens, current, current-1) {
			return true
		}
	}
}
