package corekit

import "net/http"

// PreRequestInterceptor mutates the wire request before it is sent. Pre-
// request hooks run in registration order (spec §4.5).
type PreRequestInterceptor func(req *http.Request, ctx *RequestContext) error

// PostResponseInterceptor mutates the decoded raw response after a call
// completes. Post-response hooks run in reverse registration order
// (spec §4.5).
type PostResponseInterceptor func(resp *RawResponse, ctx *RequestContext) error

// InterceptorChain holds the two hook surfaces described in spec §4.5. A
// hook's error aborts the call with that error; hooks must not retain
// mutable references to the engine's cache or queue, so the chain only ever
// hands them a *http.Request/*RawResponse and the call's RequestContext.
type InterceptorChain struct {
	pre  []PreRequestInterceptor
	post []PostResponseInterceptor
}

// NewInterceptorChain returns an empty chain.
func NewInterceptorChain() *InterceptorChain {
	return &InterceptorChain{}
}

// AddPreRequest appends a pre-request hook.
func (c *InterceptorChain) AddPreRequest(h PreRequestInterceptor) {
	c.pre = append(c.pre, h)
}

// AddPostResponse appends a post-response hook.
func (c *InterceptorChain) AddPostResponse(h PostResponseInterceptor) {
	c.post = append(c.post, h)
}

// Clear removes every registered hook.
func (c *InterceptorChain) Clear() {
	c.pre = nil
	c.post = nil
}

// runPre executes pre-request hooks in registration order, stopping at the
// first error.
func (c *InterceptorChain) runPre(req *http.Request, ctx *RequestContext) error {
	for _, h := range c.pre {
		if err := h(req, ctx); err != nil {
			return &ClientError{Type: ErrorTypeInvalidRequest, Message: "pre-request interceptor failed", Cause: err}
		}
	}
	return nil
}

// runPost executes post-response hooks in reverse registration order,
// stopping at the first error.
func (c *InterceptorChain) runPost(resp *RawResponse, ctx *RequestContext) error {
	for i := len(c.post) - 1; i >= 0; i-- {
		if err := c.post[i](resp, ctx); err != nil {
			return &ClientError{Type: ErrorTypeInvalidResponse, Message: "post-response interceptor failed", Cause: err}
		}
	}
	return nil
}
