package corekit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrorType is the closed taxonomy of failure kinds the engine classifies
// every transport, decode, auth and cache failure into (spec §7). It stays
// a string rather than an int enum so ClientError.Error() is self-describing
// in logs without a side lookup table.
type ErrorType string

const (
	ErrorTypeInvalidURL      ErrorType = "InvalidURL"
	ErrorTypeInvalidRequest  ErrorType = "InvalidRequest"
	ErrorTypeEncodingFailed  ErrorType = "EncodingFailed"
	ErrorTypeNoResponse      ErrorType = "NoResponse"
	ErrorTypeNoData          ErrorType = "NoData"
	ErrorTypeDecodingFailed  ErrorType = "DecodingFailed"
	ErrorTypeInvalidResponse ErrorType = "InvalidResponse"

	ErrorTypeClient       ErrorType = "ClientError"
	ErrorTypeServer       ErrorType = "ServerError"
	ErrorTypeUnauthorized ErrorType = "Unauthorized"
	ErrorTypeForbidden    ErrorType = "Forbidden"
	ErrorTypeNotFound     ErrorType = "NotFound"
	ErrorTypeRateLimit    ErrorType = "RateLimited"

	ErrorTypeNoConnection      ErrorType = "NoConnection"
	ErrorTypeTimeout           ErrorType = "Timeout"
	ErrorTypeSSL               ErrorType = "SSLError"
	ErrorTypeDNSFailure        ErrorType = "DNSFailure"
	ErrorTypeConnectionRefused ErrorType = "ConnectionRefused"
	ErrorTypeConnectionReset   ErrorType = "ConnectionReset"
	ErrorTypeNetwork           ErrorType = "Network"

	ErrorTypeAuthenticationRequired ErrorType = "AuthenticationRequired"
	ErrorTypeTokenExpired           ErrorType = "TokenExpired"
	ErrorTypeTokenRefreshFailed     ErrorType = "TokenRefreshFailed"

	ErrorTypeCacheMiss        ErrorType = "CacheMiss"
	ErrorTypeCacheExpired     ErrorType = "CacheExpired"
	ErrorTypeCacheWriteFailed ErrorType = "CacheWriteFailed"

	ErrorTypeOfflineQueueFull ErrorType = "OfflineQueueFull"

	ErrorTypeMaxRetriesExceeded ErrorType = "MaxRetriesExceeded"
	ErrorTypeCancelled          ErrorType = "Cancelled"
	ErrorTypeUnknown            ErrorType = "Unknown"

	// Carried over from the teacher's reliability layer; not part of the
	// spec's closed taxonomy by name, but still the classification the
	// retry/breaker controls surface when they themselves reject a call.
	ErrorTypeCircuitOpen         ErrorType = "CircuitBreaker"
	ErrorTypeRetryBudgetExceeded ErrorType = "RetryBudgetExceeded"
	ErrorTypeValidation          ErrorType = "ValidationError"
)

// Sentinel errors for controls that can reject a call before a transport
// attempt is made.
var (
	ErrCircuitOpen         = errors.New("corekit: circuit open")
	ErrRateLimited         = errors.New("corekit: rate limited")
	ErrCacheMiss           = errors.New("corekit: cache miss")
	ErrCacheExpired        = errors.New("corekit: cache expired")
	ErrRetryBudgetExceeded = errors.New("corekit: retry budget exceeded")
	ErrOfflineQueueFull    = errors.New("corekit: offline queue full")
	ErrCancelled           = errors.New("corekit: cancelled")
)

// ClientError is the single error type the engine returns. It always
// carries a classified Type so callers can switch on it instead of parsing
// strings or probing a codec-specific error value.
type ClientError struct {
	Type       ErrorType
	Message    string
	Cause      error
	RequestID  string
	Method     string
	URL        string
	Endpoint   string
	StatusCode int
	Attempt    int
	MaxRetries int
	Timestamp  time.Time
	Duration   time.Duration
	RetryAfter time.Duration
}

// Error implements error.
func (e *ClientError) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := fmt.Sprintf("%s: %s", e.Type, e.Message)
	if e.Cause != nil {
		msg = fmt.Sprintf("%s (%v)", msg, e.Cause)
	}
	if e.RequestID != "" {
		msg = fmt.Sprintf("[%s] %s", e.RequestID, msg)
	}
	if e.Attempt > 0 {
		msg = fmt.Sprintf("%s (attempt %d/%d)", msg, e.Attempt, e.MaxRetries)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *ClientError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Is compares error types for errors.Is.
func (e *ClientError) Is(target error) bool {
	if e == nil {
		return false
	}
	if t, ok := target.(*ClientError); ok {
		return e.Type == t.Type
	}
	return false
}

// DebugInfo renders a multi-line string with diagnostic context.
func (e *ClientError) DebugInfo() string {
	if e == nil {
		return "Error: <nil>"
	}
	info := fmt.Sprintf("Error Type: %s\n", e.Type)
	info += fmt.Sprintf("Message: %s\n", e.Message)
	if e.RequestID != "" {
		info += fmt.Sprintf("Request ID: %s\n", e.RequestID)
	}
	if e.Method != "" {
		info += fmt.Sprintf("Method: %s\n", e.Method)
	}
	if e.URL != "" {
		info += fmt.Sprintf("URL: %s\n", e.URL)
	}
	if e.Endpoint != "" {
		info += fmt.Sprintf("Endpoint: %s\n", e.Endpoint)
	}
	if e.StatusCode > 0 {
		info += fmt.Sprintf("Status Code: %d\n", e.StatusCode)
	}
	if e.Attempt > 0 {
		info += fmt.Sprintf("Attempt: %d/%d\n", e.Attempt, e.MaxRetries)
	}
	if !e.Timestamp.IsZero() {
		info += fmt.Sprintf("Timestamp: %s\n", e.Timestamp.Format(time.RFC3339))
	}
	if e.Duration > 0 {
		info += fmt.Sprintf("Duration: %v\n", e.Duration)
	}
	if e.Cause != nil {
		info += fmt.Sprintf("Cause: %v\n", e.Cause)
	}
	return info
}

// MaxRetriesExceededError wraps the last classified error once the retry
// budget is exhausted (spec §4.7 step 7), preserving it for inspection by
// the caller via errors.Unwrap / errors.As.
type MaxRetriesExceededError struct {
	Attempts int
	Last     error
}

func (e *MaxRetriesExceededError) Error() string {
	return fmt.Sprintf("corekit: max retries exceeded after %d attempts: %v", e.Attempts, e.Last)
}

func (e *MaxRetriesExceededError) Unwrap() error {
	return e.Last
}

// IsTransient determines if an error represents a transient failure that
// might succeed on retry. Kept under its teacher-given name; beyond
// IsRecoverable it also accepts the circuit-open, rate-limited and
// retry-budget sentinels. RetryPolicy.shouldRetry consults neither predicate.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrCircuitOpen) || errors.Is(err, ErrRateLimited) || errors.Is(err, ErrRetryBudgetExceeded) {
		return true
	}
	return IsRecoverable(err)
}

// IsRecoverable reports whether the retry controller may legally consider
// retrying this error at all, independent of attempt budget (spec §4.3).
func IsRecoverable(err error) bool {
	var ce *ClientError
	if !errors.As(err, &ce) {
		return false
	}
	switch ce.Type {
	case ErrorTypeNoConnection, ErrorTypeTimeout, ErrorTypeSSL, ErrorTypeDNSFailure,
		ErrorTypeConnectionRefused, ErrorTypeConnectionReset, ErrorTypeNetwork,
		ErrorTypeServer, ErrorTypeCircuitOpen, ErrorTypeRateLimit:
		return true
	case ErrorTypeClient:
		return ce.StatusCode == 408 || ce.StatusCode == 429
	default:
		return false
	}
}

// IsConnectivity reports whether the error originated in the transport
// rather than in the server's own response (spec §7 "Connectivity" group).
func IsConnectivity(err error) bool {
	var ce *ClientError
	if !errors.As(err, &ce) {
		return false
	}
	switch ce.Type {
	case ErrorTypeNoConnection, ErrorTypeTimeout, ErrorTypeSSL, ErrorTypeDNSFailure,
		ErrorTypeConnectionRefused, ErrorTypeConnectionReset, ErrorTypeNetwork:
		return true
	default:
		return false
	}
}

// IsAuth reports whether the error belongs to the Auth group (spec §7).
func IsAuth(err error) bool {
	var ce *ClientError
	if !errors.As(err, &ce) {
		return false
	}
	switch ce.Type {
	case ErrorTypeAuthenticationRequired, ErrorTypeTokenExpired, ErrorTypeTokenRefreshFailed, ErrorTypeUnauthorized:
		return true
	default:
		return false
	}
}

// classifyTransportError maps a raw net/http transport error into the
// connectivity subset of ErrorType, falling back to ErrorTypeNetwork.
func classifyTransportError(err error) ErrorType {
	if err == nil {
		return ErrorTypeUnknown
	}
	if errors.Is(err, context.Canceled) {
		return ErrorTypeCancelled
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "context deadline exceeded"), strings.Contains(msg, "timeout"):
		return ErrorTypeTimeout
	case strings.Contains(msg, "connection refused"):
		return ErrorTypeConnectionRefused
	case strings.Contains(msg, "connection reset"):
		return ErrorTypeConnectionReset
	case strings.Contains(msg, "no such host"), strings.Contains(msg, "lookup"):
		return ErrorTypeDNSFailure
	case strings.Contains(msg, "x509"), strings.Contains(msg, "tls"), strings.Contains(msg, "certificate"):
		return ErrorTypeSSL
	case strings.Contains(msg, "no route to host"), strings.Contains(msg, "network is unreachable"):
		return ErrorTypeNoConnection
	default:
		return ErrorTypeNetwork
	}
}
