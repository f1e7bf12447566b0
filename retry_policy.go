package corekit

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/driftwire/corekit/internal/backoff"
)

// RetryPolicy is the full decision surface the retry controller consults:
// max attempts, a delay strategy, a jitter wrapper, which error kinds and
// status codes are retryable, and per-category on/off switches (spec §4.3).
type RetryPolicy struct {
	MaxAttempts int
	Strategy    backoff.Strategy
	Jitter      backoff.Jitter
	MaxDelay    time.Duration

	RetryableErrorKinds  map[ErrorType]bool
	RetryableStatusCodes map[int]bool

	RetryOnTimeout         bool
	RetryOnConnectionError bool
}

// DefaultRetryableStatusCodes mirrors the spec's default set.
func DefaultRetryableStatusCodes() map[int]bool {
	return map[int]bool{408: true, 429: true, 500: true, 502: true, 503: true, 504: true}
}

// NewDefaultRetryPolicy builds a RetryPolicy using exponential backoff with
// full jitter, the conventional default for this style of client.
func NewDefaultRetryPolicy(maxAttempts int, base, max time.Duration, multiplier float64) *RetryPolicy {
	return &RetryPolicy{
		MaxAttempts:            maxAttempts,
		Strategy:               backoff.Exponential{Base: base, Multiplier: multiplier, Max: max},
		Jitter:                 backoff.FullJitter{},
		MaxDelay:               max,
		RetryableStatusCodes:   DefaultRetryableStatusCodes(),
		RetryOnTimeout:         true,
		RetryOnConnectionError: true,
	}
}

// shouldRetry implements the decision rule from spec §4.3: attempt budget
// remains AND (the error kind is retryable OR it is a server error whose
// status is in the retryable set OR it is rate-limited and 429 is
// retryable). Non-recoverable errors (auth, decoding, other 4xx) never
// retry.
func (p *RetryPolicy) shouldRetry(classified ErrorType, statusCode int, attempt int) bool {
	if attempt >= p.MaxAttempts {
		return false
	}

	switch classified {
	case ErrorTypeTimeout:
		if !p.RetryOnTimeout {
			return false
		}
	case ErrorTypeNoConnection, ErrorTypeConnectionRefused, ErrorTypeConnectionReset, ErrorTypeNetwork:
		if !p.RetryOnConnectionError {
			return false
		}
	}

	if p.RetryableErrorKinds != nil && p.RetryableErrorKinds[classified] {
		return true
	}
	if classified == ErrorTypeRateLimit && p.statusRetryable(429) {
		return true
	}
	if (classified == ErrorTypeServer || classified == ErrorTypeClient) && statusCode > 0 && p.statusRetryable(statusCode) {
		return true
	}
	switch classified {
	case ErrorTypeTimeout, ErrorTypeNoConnection, ErrorTypeConnectionRefused,
		ErrorTypeConnectionReset, ErrorTypeNetwork, ErrorTypeSSL, ErrorTypeDNSFailure:
		return true
	}
	return false
}

func (p *RetryPolicy) statusRetryable(code int) bool {
	if p.RetryableStatusCodes == nil {
		return DefaultRetryableStatusCodes()[code]
	}
	return p.RetryableStatusCodes[code]
}

// delay computes the wait before the given attempt, honoring a
// server-supplied Retry-After when it is present and larger than the
// computed value (spec §4.3).
func (p *RetryPolicy) delay(attempt int, retryAfter time.Duration) time.Duration {
	strategy := p.Strategy
	if strategy == nil {
		strategy = backoff.Exponential{Base: 200 * time.Millisecond, Multiplier: 2, Max: p.MaxDelay}
	}
	jitter := p.Jitter
	if jitter == nil {
		jitter = backoff.NoJitter{}
	}
	computed := jitter.Apply(strategy.Delay(attempt))
	if p.MaxDelay > 0 && computed > p.MaxDelay {
		computed = p.MaxDelay
	}
	if retryAfter > computed {
		return retryAfter
	}
	return computed
}

// parseRetryAfter parses a Retry-After header, accepting both the
// delay-seconds and HTTP-date forms, capped at one hour (spec §4.10).
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
		if seconds > 0 {
			d := time.Duration(seconds) * time.Second
			if d > time.Hour {
				d = time.Hour
			}
			return d
		}
		return 0
	}
	if t, err := http.ParseTime(value); err == nil {
		d := time.Until(t)
		if d > time.Hour {
			d = time.Hour
		}
		if d > 0 {
			return d
		}
	}
	return 0
}

// RetryBudget caps total retries within a rolling window, independent of
// any single request's MaxAttempts, as a blast-radius control shared
// across the engine.
type RetryBudget struct {
	mu          sync.Mutex
	maxRetries  int64
	perWindow   time.Duration
	windowStart time.Time
	current     int64
}

// NewRetryBudget builds a budget allowing maxRetries retries per window.
func NewRetryBudget(maxRetries int, window time.Duration) *RetryBudget {
	return &RetryBudget{maxRetries: int64(maxRetries), perWindow: window, windowStart: time.Now()}
}

// Allow reports whether a retry may proceed under the current budget,
// resetting the window when it has elapsed.
func (rb *RetryBudget) Allow() bool {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	now := time.Now()
	if now.Sub(rb.windowStart) >= rb.perWindow {
		rb.windowStart = now
		rb.current = 0
	}
	if rb.current >= rb.maxRetries {
		return false
	}
	rb.current++
	return true
}

// GetStats reports the budget's current usage.
func (rb *RetryBudget) GetStats() (current, max int64, windowStart time.Time) {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.current, rb.maxRetries, rb.windowStart
}
