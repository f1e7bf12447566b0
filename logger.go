package corekit

import (
	"fmt"
	"log"
	"os"
	"sync/atomic"
)

// Logger is the minimal structured-logging contract the engine and the
// offline queue log through. corekit stays unopinionated about
// the sink (stderr, a host app's own logger, a remote collector) the same
// way the teacher library does — callers supply one, nothing is forced.
type Logger interface {
	Debug(msg string, kv ...any)
	Info(msg string, kv ...any)
	Warn(msg string, kv ...any)
	Error(msg string, kv ...any)
}

// DebugConfig gates which subsystems emit debug/info/warn lines and how
// request ids are minted for correlating them.
type DebugConfig struct {
	Enabled      bool
	LogRequests  bool
	LogCache     bool
	LogCircuit   bool
	LogRetries   bool
	LogRateLimit bool
	LogQueue     bool
	LogSync      bool
	RequestIDGen func() string
}

// DefaultDebugConfig returns a DebugConfig with every log category on but
// Enabled false, so turning debugging on with WithDebug() is a single flip.
func DefaultDebugConfig() *DebugConfig {
	return &DebugConfig{
		Enabled:      false,
		LogRequests:  true,
		LogCache:     true,
		LogCircuit:   true,
		LogRetries:   true,
		LogRateLimit: true,
		LogQueue:     true,
		LogSync:      true,
		RequestIDGen: generateRequestID,
	}
}

var requestIDCounter int64

// generateRequestID produces a human-readable, monotonically distinct id
// used for debug-log correlation. The canonical identifier passed through
// RequestContext.ID is a uuid (see context.go); this one only has to be
// cheap and greppable.
func generateRequestID() string {
	n := atomic.AddInt64(&requestIDCounter, 1)
	return fmt.Sprintf("req_%d_%d", os.Getpid(), n)
}

// SimpleLogger writes leveled lines to a standard log.Logger (stderr by
// default). It is the zero-dependency logger the library ships so debug
// output works out of the box without forcing a logging framework choice
// on the host application.
type SimpleLogger struct {
	out *log.Logger
}

// NewSimpleLogger returns a Logger that writes to os.Stderr.
func NewSimpleLogger() *SimpleLogger {
	return &SimpleLogger{out: log.New(os.Stderr, "", log.LstdFlags)}
}

// NewSimpleLoggerTo returns a Logger writing through the given *log.Logger,
// letting callers redirect output (e.g. to a file or a test buffer).
func NewSimpleLoggerTo(l *log.Logger) *SimpleLogger {
	return &SimpleLogger{out: l}
}

func (l *SimpleLogger) Debug(msg string, kv ...any) { l.log("DEBUG", msg, kv...) }
func (l *SimpleLogger) Info(msg string, kv ...any)  { l.log("INFO", msg, kv...) }
func (l *SimpleLogger) Warn(msg string, kv ...any)  { l.log("WARN", msg, kv...) }
func (l *SimpleLogger) Error(msg string, kv ...any) { l.log("ERROR", msg, kv...) }

func (l *SimpleLogger) log(level, msg string, kv ...any) {
	if l == nil || l.out == nil {
		return
	}
	line := fmt.Sprintf("[%s] %s", level, msg)
	for i := 0; i+1 < len(kv); i += 2 {
		line += fmt.Sprintf(" %v=%v", kv[i], kv[i+1])
	}
	l.out.Println(line)
}
