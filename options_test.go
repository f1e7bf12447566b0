package corekit

import (
	"net/http"
	"testing"
	"time"
)

func TestNewEngineDefaultsAreValid(t *testing.T) {
	e := New()
	if !e.IsValid() {
		t.Fatalf("expected default engine to validate, got %v", e.ValidationError())
	}
}

func TestWithTimeoutCreatesClientWhenNil(t *testing.T) {
	e := New(WithHTTPClient(nil), WithTimeout(5*time.Second))
	if e.httpClient == nil || e.httpClient.Timeout != 5*time.Second {
		t.Fatalf("expected a client with a 5s timeout, got %+v", e.httpClient)
	}
}

func TestWithMemoryCacheInstallsCacheAndTTL(t *testing.T) {
	e := New(WithMemoryCache(1024, time.Minute))
	if e.cache == nil {
		t.Fatal("expected a cache to be installed")
	}
	if e.defaultCacheTTL != time.Minute {
		t.Fatalf("defaultCacheTTL = %v, want 1m", e.defaultCacheTTL)
	}
}

func TestWithRetryBudgetInstallsBudget(t *testing.T) {
	e := New(WithRetryBudget(5, time.Second))
	if e.retryBudget == nil {
		t.Fatal("expected a retry budget to be installed")
	}
}

func TestWithDeduplicationDefaultsWhenNilArgsGiven(t *testing.T) {
	e := New(WithDeduplication(nil, nil))
	if e.dedup == nil || e.dedupKeyFunc == nil || e.dedupCondition == nil {
		t.Fatal("expected WithDeduplication(nil, nil) to install defaulted functions")
	}
	req, _ := http.NewRequest(http.MethodGet, "https://example.com/x", nil)
	if !e.dedupCondition(req) {
		t.Fatal("expected default condition to admit a GET request")
	}
}

func TestWithSimpleLoggerEnablesDebugAndLogger(t *testing.T) {
	e := New(WithSimpleLogger())
	if e.logger == nil {
		t.Fatal("expected a logger to be installed")
	}
	if e.debug == nil || !e.debug.Enabled {
		t.Fatal("expected debug to be enabled")
	}
}

func TestValidateFailsWithoutCircuitBreaker(t *testing.T) {
	e := New()
	e.breaker = nil
	if err := e.validate(); err == nil {
		t.Fatal("expected validation to fail when breaker is nil")
	}
}

func TestValidateFailsWhenDebugEnabledWithoutLogger(t *testing.T) {
	e := New()
	e.debug.Enabled = true
	e.logger = nil
	if err := e.validate(); err == nil {
		t.Fatal("expected validation to fail when debug is enabled without a logger")
	}
}

func TestValidateFailsOnNegativeMaxAttempts(t *testing.T) {
	e := New(WithRetryPolicy(&RetryPolicy{MaxAttempts: -1}))
	if err := e.validate(); err == nil {
		t.Fatal("expected validation to fail on a negative MaxAttempts")
	}
}

func TestWithMetricsCollectorInstallsGivenCollector(t *testing.T) {
	mc := NewMetricsCollector()
	e := New(WithMetricsCollector(mc))
	if e.metrics != mc {
		t.Fatal("expected the supplied collector to be installed verbatim")
	}
}
