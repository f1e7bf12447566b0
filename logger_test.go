package corekit

import (
	"bytes"
	"log"
	"strings"
	"testing"
)

func TestSimpleLoggerWritesLeveledLines(t *testing.T) {
	var buf bytes.Buffer
	logger := NewSimpleLoggerTo(log.New(&buf, "", 0))

	logger.Info("request started", "method", "GET", "path", "/x")
	logger.Warn("cache write failed", "key", "k1")

	out := buf.String()
	if !strings.Contains(out, "[INFO] request started method=GET path=/x") {
		t.Fatalf("output missing INFO line: %q", out)
	}
	if !strings.Contains(out, "[WARN] cache write failed key=k1") {
		t.Fatalf("output missing WARN line: %q", out)
	}
}

func TestSimpleLoggerNilReceiverIsSafe(t *testing.T) {
	var logger *SimpleLogger
	logger.Debug("noop")
	logger.Error("still noop")
}

func TestDefaultDebugConfigStartsDisabledWithCategoriesOn(t *testing.T) {
	cfg := DefaultDebugConfig()
	if cfg.Enabled {
		t.Fatal("expected Enabled=false by default")
	}
	if !cfg.LogRequests || !cfg.LogCache || !cfg.LogRetries {
		t.Fatal("expected individual log categories to default on")
	}
	if cfg.RequestIDGen == nil || cfg.RequestIDGen() == "" {
		t.Fatal("expected a working default RequestIDGen")
	}
}
