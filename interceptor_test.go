package corekit

import (
	"errors"
	"net/http"
	"testing"
)

func TestInterceptorChainPreRunsInRegistrationOrder(t *testing.T) {
	c := NewInterceptorChain()
	var order []int
	c.AddPreRequest(func(req *http.Request, ctx *RequestContext) error {
		order = append(order, 1)
		return nil
	})
	c.AddPreRequest(func(req *http.Request, ctx *RequestContext) error {
		order = append(order, 2)
		return nil
	})

	req, _ := http.NewRequest(http.MethodGet, "https://example.com", nil)
	if err := c.runPre(req, &RequestContext{}); err != nil {
		t.Fatalf("runPre: %v", err)
	}
	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Fatalf("order = %v, want [1 2]", order)
	}
}

func TestInterceptorChainPreStopsAtFirstError(t *testing.T) {
	c := NewInterceptorChain()
	called := false
	c.AddPreRequest(func(req *http.Request, ctx *RequestContext) error {
		return errors.New("boom")
	})
	c.AddPreRequest(func(req *http.Request, ctx *RequestContext) error {
		called = true
		return nil
	})

	req, _ := http.NewRequest(http.MethodGet, "https://example.com", nil)
	if err := c.runPre(req, &RequestContext{}); err == nil {
		t.Fatal("expected an error from the first hook")
	}
	if called {
		t.Fatal("expected the second hook not to run after the first failed")
	}
}

func TestInterceptorChainPostRunsInReverseOrder(t *testing.T) {
	c := NewInterceptorChain()
	var order []int
	c.AddPostResponse(func(resp *RawResponse, ctx *RequestContext) error {
		order = append(order, 1)
		return nil
	})
	c.AddPostResponse(func(resp *RawResponse, ctx *RequestContext) error {
		order = append(order, 2)
		return nil
	})

	if err := c.runPost(&RawResponse{}, &RequestContext{}); err != nil {
		t.Fatalf("runPost: %v", err)
	}
	if len(order) != 2 || order[0] != 2 || order[1] != 1 {
		t.Fatalf("order = %v, want [2 1]", order)
	}
}

func TestInterceptorChainClearRemovesHooks(t *testing.T) {
	c := NewInterceptorChain()
	c.AddPreRequest(func(req *http.Request, ctx *RequestContext) error { return errors.New("should never run") })
	c.Clear()

	req, _ := http.NewRequest(http.MethodGet, "https://example.com", nil)
	if err := c.runPre(req, &RequestContext{}); err != nil {
		t.Fatalf("expected no error after Clear, got %v", err)
	}
}
