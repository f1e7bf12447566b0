package corekit

import (
	"testing"
	"time"

	"github.com/driftwire/corekit/internal/backoff"
)

func TestRetryPolicyShouldRetryRespectsMaxAttempts(t *testing.T) {
	p := NewDefaultRetryPolicy(3, time.Millisecond, time.Second, 2.0)
	if p.shouldRetry(ErrorTypeServer, 500, 3) {
		t.Fatal("should not retry once attempt reaches MaxAttempts")
	}
	if !p.shouldRetry(ErrorTypeServer, 500, 0) {
		t.Fatal("should retry a retryable server error under budget")
	}
}

func TestRetryPolicyShouldRetryStatusCode(t *testing.T) {
	p := NewDefaultRetryPolicy(3, time.Millisecond, time.Second, 2.0)
	if p.shouldRetry(ErrorTypeClient, 404, 0) {
		t.Fatal("404 is not in the default retryable status set")
	}
	if !p.shouldRetry(ErrorTypeClient, 429, 0) {
		t.Fatal("429 is in the default retryable status set")
	}
}

func TestRetryPolicyRateLimitRetriesOn429(t *testing.T) {
	p := NewDefaultRetryPolicy(3, time.Millisecond, time.Second, 2.0)
	if !p.shouldRetry(ErrorTypeRateLimit, 429, 0) {
		t.Fatal("rate-limited classification should retry when 429 is retryable")
	}
}

func TestRetryPolicyRetryOnTimeoutSwitch(t *testing.T) {
	p := NewDefaultRetryPolicy(3, time.Millisecond, time.Second, 2.0)
	p.RetryOnTimeout = false
	if p.shouldRetry(ErrorTypeTimeout, 0, 0) {
		t.Fatal("timeout retries should be disabled by RetryOnTimeout=false")
	}
}

func TestRetryPolicyNonRetryableClientError(t *testing.T) {
	p := NewDefaultRetryPolicy(3, time.Millisecond, time.Second, 2.0)
	if p.shouldRetry(ErrorTypeUnauthorized, 401, 0) {
		t.Fatal("unauthorized should never be retried by the generic decision rule")
	}
}

func TestRetryPolicyDelayHonorsRetryAfter(t *testing.T) {
	p := &RetryPolicy{Strategy: backoff.Constant{Interval: 100 * time.Millisecond}, Jitter: backoff.NoJitter{}, MaxDelay: time.Second}
	if got := p.delay(0, 5*time.Second); got != 5*time.Second {
		t.Fatalf("delay should honor a Retry-After larger than the computed delay, got %v", got)
	}
	if got := p.delay(0, 0); got != 100*time.Millisecond {
		t.Fatalf("delay with no Retry-After = %v, want 100ms", got)
	}
}

func TestParseRetryAfterSeconds(t *testing.T) {
	if got := parseRetryAfter("120"); got != 120*time.Second {
		t.Fatalf("parseRetryAfter(120) = %v, want 120s", got)
	}
	if got := parseRetryAfter(""); got != 0 {
		t.Fatalf("parseRetryAfter(\"\") = %v, want 0", got)
	}
	if got := parseRetryAfter("7200"); got != time.Hour {
		t.Fatalf("parseRetryAfter(7200) = %v, want capped at 1h", got)
	}
}

func TestRetryBudgetAllowsUpToMaxThenResetsOnWindow(t *testing.T) {
	rb := NewRetryBudget(2, 10*time.Millisecond)
	if !rb.Allow() || !rb.Allow() {
		t.Fatal("expected first two Allow() calls to succeed")
	}
	if rb.Allow() {
		t.Fatal("expected third Allow() to fail within the same window")
	}
	time.Sleep(15 * time.Millisecond)
	if !rb.Allow() {
		t.Fatal("expected Allow() to succeed again once the window rolls over")
	}
}
