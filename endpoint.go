package corekit

import (
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"
)

// Method is the closed set of HTTP methods an Endpoint may use (spec §3).
type Method string

const (
	MethodGet     Method = "GET"
	MethodPost    Method = "POST"
	MethodPut     Method = "PUT"
	MethodPatch   Method = "PATCH"
	MethodDelete  Method = "DELETE"
	MethodHead    Method = "HEAD"
	MethodOptions Method = "OPTIONS"
	MethodTrace   Method = "TRACE"
	MethodConnect Method = "CONNECT"
)

// HasBody reports whether this method's wire request may carry a body.
func (m Method) HasBody() bool {
	switch m {
	case MethodPost, MethodPut, MethodPatch, MethodDelete:
		return true
	default:
		return false
	}
}

// IsCacheable identifies the methods eligible for response caching —
// GET/HEAD only, per spec §3.
func (m Method) IsCacheable() bool {
	return m == MethodGet || m == MethodHead
}

// Endpoint is the uniform description of a single remote call: URL pieces,
// method, headers, optional query, optional body, timeout, and the
// policies (cache/retry/auth). The engine reads CachePolicy and
// AuthRequired; it does not read Timeout or RetryPolicy: every call runs
// under the engine's HTTP client timeout and the engine's retry policy.
type Endpoint struct {
	BaseURL     string
	Path        string
	Method      Method
	Headers     http.Header
	Query       url.Values
	Body        RequestBody
	Timeout     time.Duration
	CachePolicy CachePolicy
	RetryPolicy *RetryPolicy
	AuthRequired bool
	ContentType string
	AcceptType  string
	// Tags propagate into RequestContext.Tags for interceptors/metrics to
	// key off of (e.g. "no-requeue" set by the Sync Manager, spec §4.9).
	Tags []string
}

// CachePolicy controls whether an Endpoint's response is read from and/or
// written to the cache, and what TTL to apply on write.
type CachePolicy struct {
	ReadFromCache bool
	WriteToCache  bool
	TTL           time.Duration // zero means "use the engine default"
}

// HasTag reports whether tag is present on the endpoint (case-sensitive,
// tags are engine-internal markers, not user-facing labels).
func (e Endpoint) HasTag(tag string) bool {
	for _, t := range e.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// WithTag returns a copy of the endpoint with tag appended. Used by the Sync
// Manager to stamp "no-requeue" onto endpoints it replays (spec §4.9)
// without mutating the caller's original Endpoint value.
func (e Endpoint) WithTag(tag string) Endpoint {
	cp := e
	cp.Tags = append(append([]string{}, e.Tags...), tag)
	return cp
}

// NoRequeueTag marks a call as ineligible for offline re-enqueue, set by the
// Sync Manager while draining the queue to prevent re-enqueue loops
// (spec §4.7 "no-requeue" flag, §4.9).
const NoRequeueTag = "no-requeue"

// toWireRequest assembles a transport-layer *http.Request from an Endpoint
// (spec §4.1). User-supplied headers always win over policy defaults.
func toWireRequest(ctx *RequestContext, e Endpoint, codecs CodecRegistry) (*http.Request, error) {
	base, err := url.Parse(e.BaseURL)
	if err != nil {
		return nil, &ClientError{Type: ErrorTypeInvalidURL, Message: "invalid base URL", Cause: err}
	}
	rel, err := url.Parse(e.Path)
	if err != nil {
		return nil, &ClientError{Type: ErrorTypeInvalidURL, Message: "invalid path", Cause: err}
	}
	full := base.ResolveReference(rel)
	if full.Scheme == "" || full.Host == "" {
		return nil, &ClientError{Type: ErrorTypeInvalidRequest, Message: "URL composition did not yield an absolute URL"}
	}

	if len(e.Query) > 0 {
		full.RawQuery = stableEncode(e.Query, full.Query())
	}

	var bodyReader *strings.Reader
	var contentType string
	if e.Body != nil {
		encoded, ct, err := e.Body.Encode(codecs)
		if err != nil {
			return nil, &ClientError{Type: ErrorTypeEncodingFailed, Message: "failed to encode request body", Cause: err}
		}
		bodyReader = strings.NewReader(string(encoded))
		contentType = ct
	}

	method := string(e.Method)
	if method == "" {
		method = string(MethodGet)
	}

	var req *http.Request
	if bodyReader != nil {
		req, err = http.NewRequest(method, full.String(), bodyReader)
	} else {
		req, err = http.NewRequest(method, full.String(), nil)
	}
	if err != nil {
		return nil, &ClientError{Type: ErrorTypeInvalidRequest, Message: "failed to build wire request", Cause: err}
	}

	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	} else if e.ContentType != "" {
		req.Header.Set("Content-Type", e.ContentType)
	}
	if e.AcceptType != "" {
		req.Header.Set("Accept", e.AcceptType)
	}
	req.Header.Set("User-Agent", CurrentBuild().UserAgent())
	for k, vs := range e.Headers {
		req.Header.Del(k)
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	if ctx != nil {
		req.Header.Set("X-Request-ID", ctx.ID)
	}

	return req, nil
}

// stableEncode merges extra query values after the existing ones so that
// toWireRequest is reproducible in tests. The encoded string lists keys in
// sorted order (url.Values.Encode sorts them); values under one key keep
// their order, existing values first. Key insertion order is not preserved.
func stableEncode(extra url.Values, existing url.Values) string {
	merged := url.Values{}
	for k, vs := range existing {
		merged[k] = append(merged[k], vs...)
	}
	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		merged[k] = append(merged[k], extra[k]...)
	}
	return merged.Encode()
}
