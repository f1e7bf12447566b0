package corekit

import (
	"net/http"
	"strconv"
	"sync"
	"time"
)

// RateLimitInfo is the structured form of a server's rate-limit headers
// (spec §4.10).
type RateLimitInfo struct {
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// exhausted reports whether the server has signalled no remaining budget
// until ResetAt.
func (i RateLimitInfo) exhausted(now time.Time) bool {
	return i.Remaining == 0 && i.ResetAt.After(now)
}

// RateLimitObserver parses the X-RateLimit-Limit, -Remaining and -Reset
// response headers per host, and can report whether the engine should
// proactively delay the next call to that host (spec §4.10). Retry-After is
// not read here; the engine's retry loop reads it through parseRetryAfter.
type RateLimitObserver struct {
	mu    sync.Mutex
	byKey map[string]RateLimitInfo
}

// NewRateLimitObserver builds an empty observer.
func NewRateLimitObserver() *RateLimitObserver {
	return &RateLimitObserver{byKey: make(map[string]RateLimitInfo)}
}

// Observe parses headers and records the result under key (typically the
// request host).
func (o *RateLimitObserver) Observe(key string, headers http.Header) (RateLimitInfo, bool) {
	limit, hasLimit := parseIntHeader(headers, "X-RateLimit-Limit")
	remaining, hasRemaining := parseIntHeader(headers, "X-RateLimit-Remaining")
	resetAt, hasReset := parseResetHeader(headers.Get("X-RateLimit-Reset"))

	if !hasLimit && !hasRemaining && !hasReset {
		return RateLimitInfo{}, false
	}

	info := RateLimitInfo{Limit: limit, Remaining: remaining, ResetAt: resetAt}
	o.mu.Lock()
	o.byKey[key] = info
	o.mu.Unlock()
	return info, true
}

// DelayFor returns how long the engine should proactively wait before the
// next call to key, zero when no delay is warranted (spec §4.10).
func (o *RateLimitObserver) DelayFor(key string) time.Duration {
	o.mu.Lock()
	info, ok := o.byKey[key]
	o.mu.Unlock()
	if !ok {
		return 0
	}
	now := time.Now()
	if !info.exhausted(now) {
		return 0
	}
	return info.ResetAt.Sub(now)
}

func parseIntHeader(headers http.Header, name string) (int, bool) {
	v := headers.Get(name)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

// parseResetHeader accepts either a unix timestamp or a delay-seconds
// value, matching the variance seen across real APIs for X-RateLimit-Reset.
func parseResetHeader(v string) (time.Time, bool) {
	if v == "" {
		return time.Time{}, false
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	if n > 1e12 {
		return time.Unix(0, n), true
	}
	if n > 1e9 {
		return time.Unix(n, 0), true
	}
	return time.Now().Add(time.Duration(n) * time.Second), true
}
