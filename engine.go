package corekit

import (
	"context"
	"io"
	"net/http"
	"time"
)

// Engine is the request-execution core: it layers caching, retries, a
// circuit breaker, rate limiting, authentication and an interceptor chain
// around a transport (spec §4.7). It is safe for concurrent use.
type Engine struct {
	httpClient *http.Client
	codecs     CodecRegistry

	cache           Cache
	defaultCacheTTL time.Duration

	retryPolicy *RetryPolicy
	retryBudget *RetryBudget

	breaker *CircuitBreaker

	interceptors *InterceptorChain

	authenticator *Authenticator

	rateLimiter       *RateLimiter
	rateLimitObserver *RateLimitObserver

	dedup          *DeduplicationTracker
	dedupKeyFunc   DeduplicationKeyFunc
	dedupCondition DeduplicationCondition

	metrics *MetricsCollector
	debug   *DebugConfig
	logger  Logger

	// queue, reachability and syncManager are the engine-owned offline
	// handles (spec §3): the Request Engine exclusively owns one Offline
	// Queue and one Reachability observer, and shares them with its Sync
	// Manager. Configured via WithOfflineQueue/WithReachability/
	// WithSyncManager; the *Config fields stage that configuration until
	// New finishes applying options, since the Sync Manager needs both the
	// queue and the reachability tracker (and the engine itself) already
	// built.
	queue        *OfflineQueue
	reachability *Reachability
	syncManager  *SyncManager

	queuePath          string
	queueMaxSize       int
	queueConfigured    bool
	reachabilityWanted bool
	syncAutoSync       bool
	syncOnResult       func(QueueResult)
	syncConfigured     bool

	validationErr error
}

// New builds an Engine from functional options, applying the same
// construction-then-validate shape used throughout (spec §9, options.go).
func New(opts ...EngineOption) *Engine {
	e := &Engine{
		httpClient:        &http.Client{Timeout: 30 * time.Second},
		codecs:            NewCodecRegistry(JSONCodec{}),
		defaultCacheTTL:   5 * time.Minute,
		retryPolicy:       NewDefaultRetryPolicy(3, 100*time.Millisecond, 10*time.Second, 2.0),
		breaker:           NewCircuitBreaker(CircuitBreakerConfig{}),
		interceptors:      NewInterceptorChain(),
		rateLimitObserver: NewRateLimitObserver(),
		debug:             DefaultDebugConfig(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.finalizeOfflineHandles()
	if err := e.validate(); err != nil {
		e.validationErr = err
	}
	return e
}

// finalizeOfflineHandles builds the offline queue, reachability tracker and
// sync manager after every option has run, so the Sync Manager can wire
// itself to whichever queue/reachability/logger the rest of New produced
// (spec §3 ownership model).
func (e *Engine) finalizeOfflineHandles() {
	if e.queueConfigured {
		e.queue = NewOfflineQueue(e.queuePath, e.queueMaxSize, e.logger)
	}
	if e.reachabilityWanted {
		e.reachability = NewReachability()
	}
	if e.syncConfigured {
		e.syncManager = NewSyncManager(e, e.queue, e.reachability, e.syncAutoSync, e.syncOnResult)
	}
}

// EnqueueOffline submits endpoint to the engine-owned offline queue
// (spec §6 queue.enqueue). It fails if no queue was configured via
// WithOfflineQueue.
func (e *Engine) EnqueueOffline(endpoint Endpoint, priority int, expiresAt time.Time, maxRetries int) (*QueueEntry, error) {
	if e.queue == nil {
		return nil, &ClientError{Type: ErrorTypeInvalidRequest, Message: "no offline queue configured"}
	}
	return e.queue.Enqueue(endpoint, priority, expiresAt, maxRetries)
}

// Sync drains the offline queue through the engine-owned sync manager
// (spec §6 sync.syncNow). It is a no-op if WithSyncManager was not used.
func (e *Engine) Sync(ctx context.Context) {
	if e.syncManager != nil {
		e.syncManager.Trigger(ctx)
	}
}

// Syncing reports whether a drain is currently running, whether started by
// Sync or an automatic reachability transition (spec §6 sync.status).
func (e *Engine) Syncing() bool {
	return e.syncManager != nil && e.syncManager.Syncing()
}

// SetReachability updates the engine-owned reachability tracker, which
// drives the sync manager's automatic drain on a non-reachable→reachable
// transition (spec §4.9). It is a no-op if WithReachability was not used.
func (e *Engine) SetReachability(status ReachabilityStatus) {
	if e.reachability != nil {
		e.reachability.SetStatus(status)
	}
}

// ReachabilityStatus reports the engine-owned tracker's current status
// (spec §6 reachability.status), or ReachabilityUnknown if none is
// configured.
func (e *Engine) ReachabilityStatus() ReachabilityStatus {
	if e.reachability == nil {
		return ReachabilityUnknown
	}
	return e.reachability.Status()
}

// Shutdown releases the engine's owned background state: it unsubscribes
// the sync manager from reachability notifications and flushes the offline
// queue to disk so nothing queued is lost across a process restart
// (spec §3). Safe to call on an engine with none of these configured.
func (e *Engine) Shutdown() error {
	if e.syncManager != nil {
		e.syncManager.Close()
	}
	if e.queue != nil {
		e.queue.Flush()
	}
	if e.logger != nil {
		e.logger.Info("engine shutdown", "hasQueue", e.queue != nil, "hasSyncManager", e.syncManager != nil)
	}
	return nil
}

// IsValid reports whether construction-time validation passed.
func (e *Engine) IsValid() bool { return e.validationErr == nil }

// ValidationError returns the construction-time validation error, if any.
func (e *Engine) ValidationError() error { return e.validationErr }

// Execute runs endpoint through the full pipeline and decodes its body
// into T using codec (spec §4.7 step 8). It is a package-level function,
// not a method, since Go forbids generic methods on a non-generic receiver.
func Execute[T any](ctx context.Context, e *Engine, endpoint Endpoint, codec Codec) (Response[T], error) {
	raw, err := e.ExecuteRaw(ctx, endpoint)
	if err != nil {
		return Response[T]{}, err
	}
	return responseFromRaw[T](raw, codec)
}

// ExecuteRaw runs endpoint through the full pipeline without decoding,
// returning the raw response bytes (spec §6).
func (e *Engine) ExecuteRaw(ctx context.Context, endpoint Endpoint) (RawResponse, error) {
	return e.executeRaw(ctx, endpoint, nil, nil)
}

// requestBuild exposes the freshly built wire request to a reqHook, used by
// Upload to wrap the request body for progress reporting before the pipeline
// (interceptors, auth, dedup, retries) takes over.
type requestBuild struct {
	http *http.Request
}

// executeRaw is the shared core behind ExecuteRaw, Upload and Download: it
// builds the wire request, optionally lets reqHook adjust it, then runs the
// usual interceptor/auth/dedup/retry pipeline. downloadProgress, if set, is
// threaded onto the RequestContext so attemptLoop can report read progress.
func (e *Engine) executeRaw(ctx context.Context, endpoint Endpoint, reqHook func(*requestBuild), downloadProgress ProgressFunc) (RawResponse, error) {
	start := time.Now()
	rc := newRequestContext(endpoint)
	rc.downloadProgress = downloadProgress
	endpointKey := endpointMetricsKey(endpoint)

	if e.metrics != nil {
		e.metrics.RecordRequestStart(string(endpoint.Method), endpointKey)
		defer e.metrics.RecordRequestEnd(string(endpoint.Method), endpointKey)
	}

	req, err := toWireRequest(rc, endpoint, e.codecs)
	if err != nil {
		return RawResponse{}, err
	}
	req = req.WithContext(ctx)

	if reqHook != nil {
		reqHook(&requestBuild{http: req})
	}

	if err := e.interceptors.runPre(req, rc); err != nil {
		return RawResponse{}, err
	}

	if endpoint.AuthRequired && e.authenticator != nil {
		if err := e.authenticator.Authenticate(ctx, req); err != nil {
			return RawResponse{}, err
		}
	}

	runOnce := func() (RawResponse, error) {
		return e.executeCacheAndAttempt(ctx, req, rc, endpoint, endpointKey, start)
	}

	if e.dedup != nil && e.dedupCondition != nil && e.dedupCondition(req) {
		raw, err := e.dedup.Do(e.dedupKeyFunc(req), runOnce)
		if err != nil {
			return RawResponse{}, err
		}
		if err := e.interceptors.runPost(&raw, rc); err != nil {
			return RawResponse{}, err
		}
		return raw, nil
	}

	raw, err := runOnce()
	if err != nil {
		return RawResponse{}, err
	}
	if err := e.interceptors.runPost(&raw, rc); err != nil {
		return RawResponse{}, err
	}
	return raw, nil
}

// executeCacheAndAttempt is the cache-check-then-retry-loop core shared by
// every call, whether or not it was coalesced through the deduplication
// tracker. Post-response interceptors run once, after coalescing, in
// executeRaw itself.
func (e *Engine) executeCacheAndAttempt(ctx context.Context, req *http.Request, rc *RequestContext, endpoint Endpoint, endpointKey string, start time.Time) (RawResponse, error) {
	cacheable := endpoint.Method.IsCacheable()
	var cacheKey string
	if cacheable && endpoint.CachePolicy.ReadFromCache && e.cache != nil {
		cacheKey = cacheKeyFor(req)
		if bytes, ok := e.cache.Get(cacheKey); ok {
			if e.metrics != nil {
				e.metrics.RecordCacheHit(req.Method, endpointKey)
			}
			return RawResponse{
				Bytes:  bytes,
				Status: http.StatusOK,
				URL:    req.URL.String(),
				Metadata: ResponseMetadata{
					RequestID:       rc.ID,
					StartedAt:       start,
					EndedAt:         time.Now(),
					ByteSize:        len(bytes),
					ServedFromCache: true,
					RetryCount:      0,
				},
			}, nil
		}
		if e.metrics != nil {
			e.metrics.RecordCacheMiss(req.Method, endpointKey)
		}
	}

	bytes, status, headers, latency, _, authRetried, err := e.attemptLoop(ctx, req, rc, endpointKey, start)
	if err != nil {
		if e.metrics != nil {
			e.metrics.RecordRequest(req.Method, endpointKey, status, latency, len(bytes))
		}
		return RawResponse{}, err
	}
	_ = authRetried

	if e.metrics != nil {
		e.metrics.RecordRequest(req.Method, endpointKey, status, latency, len(bytes))
	}

	if cacheable && endpoint.CachePolicy.WriteToCache && e.cache != nil && status < 400 {
		ttl := endpoint.CachePolicy.TTL
		if ttl <= 0 {
			ttl = e.defaultCacheTTL
		}
		if cacheKey == "" {
			cacheKey = cacheKeyFor(req)
		}
		if err := e.cache.Put(cacheKey, bytes, ttl); err != nil && e.logger != nil && e.debug.Enabled && e.debug.LogCache {
			e.logger.Warn("cache write failed", "key", cacheKey, "error", err)
		}
		if e.metrics != nil {
			e.metrics.RecordCacheSize("default", int(e.cache.Size()))
		}
	}

	return RawResponse{
		Bytes:   bytes,
		Status:  status,
		Headers: headers,
		URL:     req.URL.String(),
		Metadata: ResponseMetadata{
			RequestID:  rc.ID,
			StartedAt:  start,
			EndedAt:    time.Now(),
			ByteSize:   len(bytes),
			RetryCount: rc.retryCount(),
		},
	}, nil
}

// attemptLoop is spec §4.7 steps 6-7: the retry loop around a single
// logical call, including the one-shot 401 refresh-and-retry.
func (e *Engine) attemptLoop(ctx context.Context, req *http.Request, rc *RequestContext, endpointKey string, start time.Time) (bytes []byte, status int, headers http.Header, latency time.Duration, attempts int, authRetried bool, err error) {
	maxAttempts := 1
	if e.retryPolicy != nil {
		maxAttempts = e.retryPolicy.MaxAttempts + 1
	}

	var lastErr error
	// exhausted wraps a retryable failure in MaxRetriesExceededError once the
	// policy's attempts are used up; other failures pass through unchanged.
	exhausted := func(cerr *ClientError, statusCode, attempt int) error {
		if e.retryPolicy != nil && attempt >= e.retryPolicy.MaxAttempts && e.retryPolicy.shouldRetry(cerr.Type, statusCode, 0) {
			return &MaxRetriesExceededError{Attempts: attempt + 1, Last: cerr}
		}
		return cerr
	}
	authRetryPending := false
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if e.rateLimiter != nil && !e.rateLimiter.Allow() {
			if e.metrics != nil {
				e.metrics.RecordError(string(ErrorTypeRateLimit), req.Method, endpointKey)
			}
			return nil, 0, nil, time.Since(start), attempt, authRetried, &ClientError{Type: ErrorTypeRateLimit, Message: "local rate limit exceeded", RequestID: rc.ID}
		}
		if e.rateLimiter != nil && e.metrics != nil {
			e.metrics.RecordRateLimiterTokens("default", e.rateLimiter.Tokens())
		}

		if !e.breaker.Allow() {
			if e.metrics != nil {
				e.metrics.RecordError(string(ErrorTypeCircuitOpen), req.Method, endpointKey)
			}
			return nil, 0, nil, time.Since(start), attempt, authRetried, &ClientError{Type: ErrorTypeCircuitOpen, Message: "circuit breaker is open", RequestID: rc.ID}
		}

		if attempt > 0 && !authRetryPending {
			rc.incrementRetry()
			if e.metrics != nil {
				e.metrics.RecordRetry(req.Method, endpointKey, attempt)
			}
			if e.debug != nil && e.debug.Enabled && e.debug.LogRetries && e.logger != nil {
				e.logger.Info("retry attempt", "requestID", rc.ID, "attempt", attempt, "endpoint", endpointKey)
			}
			// The previous attempt's Do call drained req.Body to the wire;
			// rewind it from GetBody before reusing req on this attempt.
			if req.GetBody != nil {
				if body, err := req.GetBody(); err == nil {
					req.Body = body
				}
			}
		}

		authRetryPending = false

		if ctx.Err() != nil {
			return nil, 0, nil, time.Since(start), attempt, authRetried, &ClientError{Type: ErrorTypeCancelled, Message: "request cancelled", Cause: ctx.Err(), RequestID: rc.ID}
		}

		attemptStart := time.Now()
		resp, doErr := e.httpClient.Do(req)
		attemptLatency := time.Since(attemptStart)

		if doErr != nil {
			e.breaker.RecordFailure()
			e.recordBreakerState(endpointKey)
			classified := classifyTransportError(doErr)
			cerr := &ClientError{Type: classified, Message: "transport error", Cause: doErr, RequestID: rc.ID, Method: req.Method, URL: req.URL.String(), Attempt: attempt, Duration: attemptLatency}
			lastErr = cerr
			if e.metrics != nil {
				e.metrics.RecordError(string(classified), req.Method, endpointKey)
			}
			if e.retryAllowed(classified, 0, attempt, endpointKey) {
				e.sleep(ctx, e.retryPolicy.delay(attempt, 0))
				continue
			}
			return nil, 0, nil, time.Since(start), attempt + 1, authRetried, exhausted(cerr, 0, attempt)
		}

		var bodySource io.Reader = resp.Body
		if rc.downloadProgress != nil {
			bodySource = &progressReader{ReadCloser: resp.Body, total: resp.ContentLength, onProgress: rc.downloadProgress}
		}
		body, readErr := io.ReadAll(bodySource)
		_ = resp.Body.Close()
		if readErr != nil {
			e.breaker.RecordFailure()
			e.recordBreakerState(endpointKey)
			return nil, resp.StatusCode, resp.Header, time.Since(start), attempt + 1, authRetried, &ClientError{Type: ErrorTypeNoResponse, Message: "failed to read response body", Cause: readErr, RequestID: rc.ID}
		}

		if key := req.URL.Host; key != "" {
			e.rateLimitObserver.Observe(key, resp.Header)
		}

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			e.breaker.RecordSuccess()
			e.recordBreakerState(endpointKey)
			return body, resp.StatusCode, resp.Header, time.Since(start), attempt + 1, authRetried, nil

		case resp.StatusCode == http.StatusUnauthorized && !authRetried && e.authenticator != nil:
			authRetried = true
			if refreshErr := e.authenticator.Refresh(ctx); refreshErr != nil {
				return nil, resp.StatusCode, resp.Header, time.Since(start), attempt + 1, authRetried, &ClientError{Type: ErrorTypeTokenRefreshFailed, Message: "token refresh after 401 failed", Cause: refreshErr, RequestID: rc.ID, StatusCode: resp.StatusCode}
			}
			if authErr := e.authenticator.Authenticate(ctx, req); authErr != nil {
				return nil, resp.StatusCode, resp.Header, time.Since(start), attempt + 1, authRetried, authErr
			}
			// The 401 attempt drained req.Body; rewind it for the retry.
			if req.GetBody != nil {
				if body, err := req.GetBody(); err == nil {
					req.Body = body
				}
			}
			attempt-- // one-shot retry, does not count against attempts
			authRetryPending = true
			continue

		case resp.StatusCode == http.StatusUnauthorized:
			e.breaker.RecordFailure()
			e.recordBreakerState(endpointKey)
			return nil, resp.StatusCode, resp.Header, time.Since(start), attempt + 1, authRetried, &ClientError{Type: ErrorTypeUnauthorized, Message: "unauthorized", RequestID: rc.ID, StatusCode: resp.StatusCode}

		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			e.breaker.RecordFailure()
			e.recordBreakerState(endpointKey)
			classified := ErrorTypeRateLimit
			if resp.StatusCode >= 500 {
				classified = ErrorTypeServer
			}
			retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"))
			cerr := &ClientError{Type: classified, Message: "retryable status", RequestID: rc.ID, StatusCode: resp.StatusCode, RetryAfter: retryAfter}
			lastErr = cerr
			if e.metrics != nil {
				e.metrics.RecordError(string(classified), req.Method, endpointKey)
			}
			if e.retryAllowed(classified, resp.StatusCode, attempt, endpointKey) {
				e.sleep(ctx, e.retryPolicy.delay(attempt, retryAfter))
				continue
			}
			return nil, resp.StatusCode, resp.Header, time.Since(start), attempt + 1, authRetried, exhausted(cerr, resp.StatusCode, attempt)

		case resp.StatusCode >= 400:
			if e.metrics != nil {
				e.metrics.RecordError(string(ErrorTypeClient), req.Method, endpointKey)
			}
			return nil, resp.StatusCode, resp.Header, time.Since(start), attempt + 1, authRetried, &ClientError{Type: ErrorTypeClient, Message: "client error", RequestID: rc.ID, StatusCode: resp.StatusCode}

		default:
			return body, resp.StatusCode, resp.Header, time.Since(start), attempt + 1, authRetried, nil
		}
	}

	return nil, 0, nil, time.Since(start), maxAttempts, authRetried, &MaxRetriesExceededError{Attempts: maxAttempts, Last: lastErr}
}

func (e *Engine) retryAllowed(classified ErrorType, statusCode, attempt int, endpointKey string) bool {
	if e.retryPolicy == nil || !e.retryPolicy.shouldRetry(classified, statusCode, attempt) {
		return false
	}
	if e.retryBudget != nil && !e.retryBudget.Allow() {
		if e.metrics != nil {
			e.metrics.RecordRetryBudgetExceeded(endpointKey)
		}
		return false
	}
	return true
}

func (e *Engine) sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

func (e *Engine) recordBreakerState(endpointKey string) {
	if e.metrics != nil {
		e.metrics.RecordCircuitBreakerState(endpointKey, e.breaker.State())
	}
}

// AddPreRequestInterceptor and AddPostResponseInterceptor register hooks on
// the engine's chain.
func (e *Engine) AddPreRequestInterceptor(h PreRequestInterceptor) {
	e.interceptors.AddPreRequest(h)
}

func (e *Engine) AddPostResponseInterceptor(h PostResponseInterceptor) {
	e.interceptors.AddPostResponse(h)
}

// ClearInterceptors removes every registered hook.
func (e *Engine) ClearInterceptors() { e.interceptors.Clear() }

// SetAuthenticator swaps the engine's authenticator.
func (e *Engine) SetAuthenticator(a *Authenticator) { e.authenticator = a }

// ClearCache empties the engine's cache, if one is configured.
func (e *Engine) ClearCache() {
	if e.cache != nil {
		e.cache.Clear()
	}
}

// MetricsSnapshot returns a consistent metrics summary (spec §4.11).
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e.metrics == nil {
		return MetricsSnapshot{}
	}
	return e.metrics.Snapshot()
}

// RateLimitInfoFor returns how long to wait before the next call to host, as
// RateLimitObserver.DelayFor computes it from the last observed
// X-RateLimit-* headers (zero when they warrant no delay).
func (e *Engine) RateLimitInfoFor(host string) time.Duration {
	return e.rateLimitObserver.DelayFor(host)
}

func cacheKeyFor(req *http.Request) string {
	return req.Method + ":" + req.URL.String()
}

func endpointMetricsKey(e Endpoint) string {
	if e.Path != "" {
		return e.Path
	}
	return e.BaseURL
}
