package corekit

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

type pingPayload struct {
	Message string `json:"message"`
}

func TestExecuteDecodesJSONPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"message":"pong"}`))
	}))
	defer server.Close()

	engine := New()
	endpoint := Endpoint{BaseURL: server.URL, Path: "/ping", Method: MethodGet}

	resp, err := Execute[pingPayload](context.Background(), engine, endpoint, JSONCodec{})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if resp.Payload.Message != "pong" {
		t.Fatalf("Payload.Message = %q, want pong", resp.Payload.Message)
	}
	if !resp.IsSuccess() {
		t.Fatal("expected IsSuccess() true for a 200")
	}
}

func TestExecuteRawCachesGetResponses(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		_, _ = w.Write([]byte("cached body"))
	}))
	defer server.Close()

	engine := New(WithMemoryCache(1<<20, time.Minute))
	endpoint := Endpoint{
		BaseURL:     server.URL,
		Path:        "/cacheable",
		Method:      MethodGet,
		CachePolicy: CachePolicy{ReadFromCache: true, WriteToCache: true},
	}

	first, err := engine.ExecuteRaw(context.Background(), endpoint)
	if err != nil {
		t.Fatalf("first ExecuteRaw: %v", err)
	}
	if first.Metadata.ServedFromCache {
		t.Fatal("first call should not be served from cache")
	}

	second, err := engine.ExecuteRaw(context.Background(), endpoint)
	if err != nil {
		t.Fatalf("second ExecuteRaw: %v", err)
	}
	if !second.Metadata.ServedFromCache {
		t.Fatal("second call should be served from cache")
	}
	if atomic.LoadInt32(&hits) != 1 {
		t.Fatalf("server hit %d times, want 1", hits)
	}
}

func TestExecuteRawRetriesThenSucceeds(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	engine := New(WithRetryPolicy(NewDefaultRetryPolicy(5, time.Millisecond, 10*time.Millisecond, 2.0)))
	endpoint := Endpoint{BaseURL: server.URL, Path: "/flaky", Method: MethodGet}

	raw, err := engine.ExecuteRaw(context.Background(), endpoint)
	if err != nil {
		t.Fatalf("ExecuteRaw: %v", err)
	}
	if string(raw.Bytes) != "ok" {
		t.Fatalf("Bytes = %q, want ok", raw.Bytes)
	}
	if atomic.LoadInt32(&attempts) != 3 {
		t.Fatalf("attempts = %d, want 3", attempts)
	}
}

func TestExecuteRawRetriesPreserveRequestBody(t *testing.T) {
	var attempts int32
	var lastBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		lastBody = string(body)
		if atomic.AddInt32(&attempts, 1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	engine := New(WithRetryPolicy(NewDefaultRetryPolicy(5, time.Millisecond, 10*time.Millisecond, 2.0)))
	endpoint := Endpoint{
		BaseURL: server.URL,
		Path:    "/items",
		Method:  MethodPost,
		Body:    StructuredBody{Value: pingPayload{Message: "hello"}, CodecName: "json"},
	}

	raw, err := engine.ExecuteRaw(context.Background(), endpoint)
	if err != nil {
		t.Fatalf("ExecuteRaw: %v", err)
	}
	if raw.Status != http.StatusCreated {
		t.Fatalf("Status = %d, want 201", raw.Status)
	}
	if atomic.LoadInt32(&attempts) != 3 {
		t.Fatalf("attempts = %d, want 3", attempts)
	}
	if lastBody != `{"message":"hello"}` {
		t.Fatalf("final attempt's body = %q, want the full JSON payload", lastBody)
	}
}

func TestExecuteRawCancelledContextStopsRetrying(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	engine := New(WithRetryPolicy(NewDefaultRetryPolicy(5, 20*time.Millisecond, 100*time.Millisecond, 2.0)))
	endpoint := Endpoint{BaseURL: server.URL, Path: "/flaky", Method: MethodGet}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(15 * time.Millisecond)
		cancel()
	}()

	_, err := engine.ExecuteRaw(ctx, endpoint)
	if err == nil {
		t.Fatal("expected an error once the context was cancelled")
	}
	ce, ok := err.(*ClientError)
	if !ok || ce.Type != ErrorTypeCancelled {
		t.Fatalf("err = %v, want a ClientError of type Cancelled", err)
	}
	seenAfterCancel := atomic.LoadInt32(&attempts)
	time.Sleep(50 * time.Millisecond)
	if got := atomic.LoadInt32(&attempts); got != seenAfterCancel {
		t.Fatalf("attempts kept growing after cancellation: %d -> %d", seenAfterCancel, got)
	}
}

func TestExecuteRawRefreshesOn401ThenRetries(t *testing.T) {
	var sawFreshToken bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "Bearer fresh" {
			sawFreshToken = true
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	refresher := func(ctx context.Context) (string, string, time.Time, error) {
		return "fresh", "", time.Now().Add(time.Hour), nil
	}
	auth := NewBearerAuthenticator("stale", time.Now().Add(-time.Minute), refresher)
	engine := New(WithAuthenticator(auth))
	endpoint := Endpoint{BaseURL: server.URL, Path: "/secure", Method: MethodGet, AuthRequired: true}

	raw, err := engine.ExecuteRaw(context.Background(), endpoint)
	if err != nil {
		t.Fatalf("ExecuteRaw: %v", err)
	}
	if !raw.IsSuccess() {
		t.Fatalf("expected success after refresh-and-retry, got status %d", raw.Status)
	}
	if !sawFreshToken {
		t.Fatal("expected the retried request to carry the refreshed token")
	}
}

func TestExecuteRawCircuitBreakerTripsAfterFailures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	engine := New(
		WithRetryPolicy(&RetryPolicy{MaxAttempts: 0}),
		WithCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 2, RecoveryTimeout: time.Minute}),
	)
	endpoint := Endpoint{BaseURL: server.URL, Path: "/down", Method: MethodGet}

	for i := 0; i < 2; i++ {
		if _, err := engine.ExecuteRaw(context.Background(), endpoint); err == nil {
			t.Fatalf("attempt %d: expected an error from the 500 response", i)
		}
	}

	_, err := engine.ExecuteRaw(context.Background(), endpoint)
	if err == nil {
		t.Fatal("expected the breaker to reject the third call")
	}
	ce, ok := err.(*ClientError)
	if !ok || ce.Type != ErrorTypeCircuitOpen {
		t.Fatalf("err = %v, want a ClientError of type CircuitBreaker", err)
	}
}

func TestExecuteRawRateLimiterRejects(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	engine := New(WithRateLimiter(1, time.Hour))
	endpoint := Endpoint{BaseURL: server.URL, Path: "/limited", Method: MethodGet}

	if _, err := engine.ExecuteRaw(context.Background(), endpoint); err != nil {
		t.Fatalf("first call should consume the only token without error: %v", err)
	}
	_, err := engine.ExecuteRaw(context.Background(), endpoint)
	if err == nil {
		t.Fatal("expected the second call to be rejected by the local rate limiter")
	}
}

func TestExecuteRawDeduplicatesConcurrentGets(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		time.Sleep(20 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	engine := New(WithDeduplication(nil, nil))
	endpoint := Endpoint{BaseURL: server.URL, Path: "/dedup", Method: MethodGet}

	done := make(chan error, 5)
	for i := 0; i < 5; i++ {
		go func() {
			_, err := engine.ExecuteRaw(context.Background(), endpoint)
			done <- err
		}()
	}
	for i := 0; i < 5; i++ {
		if err := <-done; err != nil {
			t.Fatalf("concurrent call %d failed: %v", i, err)
		}
	}
	if got := atomic.LoadInt32(&hits); got != 1 {
		t.Fatalf("server hit %d times, want exactly 1 coalesced call", got)
	}
}
