package corekit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestOpenStreamReadsChunks(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("hello world"))
	}))
	defer server.Close()

	req, _ := http.NewRequest(http.MethodGet, server.URL, nil)
	stream, err := OpenStream(context.Background(), server.Client(), req, true)
	if err != nil {
		t.Fatalf("OpenStream: %v", err)
	}
	defer stream.Close()

	var got strings.Builder
	for {
		chunk, ok := stream.Next(4)
		if chunk.Err != nil {
			t.Fatalf("unexpected chunk error: %v", chunk.Err)
		}
		got.Write(chunk.Bytes)
		if !ok {
			break
		}
	}
	if got.String() != "hello world" {
		t.Fatalf("got %q, want %q", got.String(), "hello world")
	}
}

func TestOpenStreamRejectsNonEventStreamWhenRequired(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	req, _ := http.NewRequest(http.MethodGet, server.URL, nil)
	_, err := OpenStream(context.Background(), server.Client(), req, true)
	if err == nil {
		t.Fatal("expected an error when Content-Type is not text/event-stream")
	}
}

func TestOpenStreamRejectsNonSuccessStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	req, _ := http.NewRequest(http.MethodGet, server.URL, nil)
	_, err := OpenStream(context.Background(), server.Client(), req, false)
	if err == nil {
		t.Fatal("expected an error for a non-2xx response")
	}
}
