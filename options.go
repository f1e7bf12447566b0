package corekit

import (
	"fmt"
	"net/http"
	"time"
)

// EngineOption configures an Engine at construction time.
type EngineOption func(*Engine)

// WithHTTPClient swaps the transport-level *http.Client.
func WithHTTPClient(client *http.Client) EngineOption {
	return func(e *Engine) { e.httpClient = client }
}

// WithTimeout sets the transport timeout.
func WithTimeout(d time.Duration) EngineOption {
	return func(e *Engine) {
		if e.httpClient == nil {
			e.httpClient = &http.Client{}
		}
		e.httpClient.Timeout = d
	}
}

// WithCodecs installs the registry endpoints resolve structured bodies
// against.
func WithCodecs(codecs CodecRegistry) EngineOption {
	return func(e *Engine) { e.codecs = codecs }
}

// WithMemoryCache enables an in-memory cache capped at maxSize bytes, with
// defaultTTL applied when an endpoint's CachePolicy.TTL is zero.
func WithMemoryCache(maxSize int64, defaultTTL time.Duration) EngineOption {
	return func(e *Engine) {
		e.cache = NewMemoryCache(maxSize)
		e.defaultCacheTTL = defaultTTL
	}
}

// WithCache installs an arbitrary Cache implementation (memory, disk or
// hybrid).
func WithCache(cache Cache, defaultTTL time.Duration) EngineOption {
	return func(e *Engine) {
		e.cache = cache
		e.defaultCacheTTL = defaultTTL
	}
}

// WithRetryPolicy installs a retry policy.
func WithRetryPolicy(policy *RetryPolicy) EngineOption {
	return func(e *Engine) { e.retryPolicy = policy }
}

// WithRetryBudget caps total retries per rolling window across all calls.
func WithRetryBudget(maxRetries int, window time.Duration) EngineOption {
	return func(e *Engine) { e.retryBudget = NewRetryBudget(maxRetries, window) }
}

// WithCircuitBreaker installs a circuit breaker configuration.
func WithCircuitBreaker(config CircuitBreakerConfig) EngineOption {
	return func(e *Engine) { e.breaker = NewCircuitBreaker(config) }
}

// WithRateLimiter installs a local token-bucket rate limiter.
func WithRateLimiter(maxTokens int, refillRate time.Duration) EngineOption {
	return func(e *Engine) { e.rateLimiter = NewRateLimiter(maxTokens, refillRate) }
}

// WithAuthenticator installs an authenticator used for AuthRequired
// endpoints.
func WithAuthenticator(a *Authenticator) EngineOption {
	return func(e *Engine) { e.authenticator = a }
}

// WithDeduplication enables request coalescing: concurrent calls matching
// condition that resolve to the same key share a single in-flight
// transport attempt. Pass nil for either argument to use the defaults
// (DefaultDeduplicationKeyFunc, DefaultDeduplicationCondition).
func WithDeduplication(keyFunc DeduplicationKeyFunc, condition DeduplicationCondition) EngineOption {
	if keyFunc == nil {
		keyFunc = DefaultDeduplicationKeyFunc
	}
	if condition == nil {
		condition = DefaultDeduplicationCondition
	}
	return func(e *Engine) {
		e.dedup = NewDeduplicationTracker()
		e.dedupKeyFunc = keyFunc
		e.dedupCondition = condition
	}
}

// WithMetrics enables Prometheus metrics collection on a fresh registry.
func WithMetrics() EngineOption {
	return func(e *Engine) { e.metrics = NewMetricsCollector() }
}

// WithMetricsCollector installs a caller-supplied collector, e.g. one
// sharing a registry with the rest of the host application.
func WithMetricsCollector(collector *MetricsCollector) EngineOption {
	return func(e *Engine) { e.metrics = collector }
}

// WithDebug enables debug logging with the default category set.
func WithDebug() EngineOption {
	return func(e *Engine) {
		if e.debug == nil {
			e.debug = DefaultDebugConfig()
		}
		e.debug.Enabled = true
	}
}

// WithDebugConfig installs a custom debug configuration.
func WithDebugConfig(config *DebugConfig) EngineOption {
	return func(e *Engine) { e.debug = config }
}

// WithLogger installs a logger for debug output.
func WithLogger(logger Logger) EngineOption {
	return func(e *Engine) { e.logger = logger }
}

// WithSimpleLogger enables debug logging through SimpleLogger.
func WithSimpleLogger() EngineOption {
	return func(e *Engine) {
		if e.debug == nil {
			e.debug = DefaultDebugConfig()
		}
		e.debug.Enabled = true
		e.logger = NewSimpleLogger()
	}
}

// WithOfflineQueue configures the engine-owned offline queue (spec §3, §4.8):
// path is where it persists its state between runs (empty disables
// persistence, keeping it in-memory only) and maxSize caps its entry count
// (zero means unbounded). Built once every option has run, so it can pick
// up a logger installed by a later WithLogger/WithSimpleLogger call.
func WithOfflineQueue(path string, maxSize int) EngineOption {
	return func(e *Engine) {
		e.queuePath = path
		e.queueMaxSize = maxSize
		e.queueConfigured = true
	}
}

// WithReachability configures the engine-owned reachability tracker
// (spec §3, §4.9), starting in ReachabilityUnknown until the host
// application calls Engine.SetReachability.
func WithReachability() EngineOption {
	return func(e *Engine) { e.reachabilityWanted = true }
}

// WithSyncManager configures the engine-owned sync manager that drains the
// offline queue (spec §3, §4.9). It requires WithOfflineQueue; pairing it
// with WithReachability enables automatic drains on a non-reachable→
// reachable transition when autoSync is true. onResult, if non-nil, is
// called once per queued entry the drain resolves.
func WithSyncManager(autoSync bool, onResult func(QueueResult)) EngineOption {
	return func(e *Engine) {
		e.syncAutoSync = autoSync
		e.syncOnResult = onResult
		e.syncConfigured = true
	}
}

// validate checks that the assembled Engine is internally consistent,
// mirroring the teacher's section-by-section validation shape.
func (e *Engine) validate() error {
	var errs []string
	errs = append(errs, e.validateTransport()...)
	errs = append(errs, e.validateRetry()...)
	errs = append(errs, e.validateCache()...)
	errs = append(errs, e.validateCircuitBreaker()...)
	errs = append(errs, e.validateDebug()...)
	errs = append(errs, e.validateOffline()...)

	if len(errs) > 0 {
		return &ClientError{Type: ErrorTypeValidation, Message: "engine configuration validation failed", Cause: fmt.Errorf("%v", errs)}
	}
	return nil
}

func (e *Engine) validateTransport() []string {
	var errs []string
	if e.httpClient == nil {
		errs = append(errs, "http client cannot be nil")
	}
	return errs
}

func (e *Engine) validateRetry() []string {
	var errs []string
	if e.retryPolicy != nil && e.retryPolicy.MaxAttempts < 0 {
		errs = append(errs, "retry policy MaxAttempts must be non-negative")
	}
	return errs
}

func (e *Engine) validateCache() []string {
	var errs []string
	if e.cache != nil && e.defaultCacheTTL < 0 {
		errs = append(errs, "default cache TTL must be non-negative")
	}
	return errs
}

func (e *Engine) validateCircuitBreaker() []string {
	var errs []string
	if e.breaker == nil {
		errs = append(errs, "circuit breaker cannot be nil")
	}
	return errs
}

func (e *Engine) validateDebug() []string {
	var errs []string
	if e.debug != nil && e.debug.Enabled && e.logger == nil {
		errs = append(errs, "logger must be set when debug is enabled")
	}
	return errs
}

func (e *Engine) validateOffline() []string {
	var errs []string
	if e.syncConfigured && e.queue == nil {
		errs = append(errs, "sync manager requires an offline queue, configure WithOfflineQueue")
	}
	return errs
}
