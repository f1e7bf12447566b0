// Package corekit provides a resilient HTTP execution engine with composable
// reliability primitives:
//
//   - Retries with pluggable backoff strategies and jitter
//   - Local token-bucket rate limiting plus server rate-limit observation
//   - Tiered response caching (memory, disk, hybrid) keyed by endpoint
//   - Circuit breaker (open / half-open / closed states)
//   - Request deduplication (coalesces concurrent identical in-flight calls)
//   - Offline queueing with reachability-triggered sync
//   - Pre/post interceptor chain for cross-cutting concerns
//   - Prometheus metrics and structured debug logging
//
// Design goals:
//   - Small surface area: functional options configure an Engine
//   - Safe concurrent use of a single *Engine instance
//   - Typed decoding via generics, without a generic Engine
//
// Typical usage:
//
//	engine := corekit.New(
//	    corekit.WithRetryPolicy(corekit.NewDefaultRetryPolicy(3, 100*time.Millisecond, 10*time.Second, 2.0)),
//	    corekit.WithRateLimiter(10, time.Second),
//	    corekit.WithMemoryCache(10<<20, 5*time.Minute),
//	    corekit.WithCircuitBreaker(corekit.CircuitBreakerConfig{}),
//	)
//	resp, err := corekit.Execute[MyPayload](ctx, engine, endpoint, corekit.JSONCodec{})
package corekit
