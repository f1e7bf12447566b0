package corekit

import (
	"net/http"
	"time"
)

// ResponseMetadata carries the bookkeeping every call accumulates, exposed
// to callers alongside the decoded payload (spec §3).
type ResponseMetadata struct {
	RequestID        string
	StartedAt        time.Time
	EndedAt          time.Time
	TimeToFirstByte  time.Duration
	ByteSize         int
	ServedFromCache  bool
	RetryCount       int
}

// Duration is a convenience derived from StartedAt/EndedAt.
func (m ResponseMetadata) Duration() time.Duration {
	if m.EndedAt.IsZero() || m.StartedAt.IsZero() {
		return 0
	}
	return m.EndedAt.Sub(m.StartedAt)
}

// RawResponse is the undecoded result of engine.ExecuteRaw (spec §6):
// status, headers, URL and the raw bytes, with metadata but no decode step
// applied yet.
type RawResponse struct {
	Bytes    []byte
	Status   int
	Headers  http.Header
	URL      string
	Metadata ResponseMetadata
}

// IsSuccess / IsClientError / IsServerError classify by status code
// (spec §3 Response<T> predicates), shared by RawResponse and Response[T].
func (r RawResponse) IsSuccess() bool      { return r.Status >= 200 && r.Status < 300 }
func (r RawResponse) IsClientError() bool  { return r.Status >= 400 && r.Status < 500 }
func (r RawResponse) IsServerError() bool  { return r.Status >= 500 && r.Status < 600 }

// Response is the decoded result of engine.Execute[T] (spec §3, §6).
type Response[T any] struct {
	Payload  T
	Status   int
	Headers  http.Header
	URL      string
	Metadata ResponseMetadata
}

func (r Response[T]) IsSuccess() bool     { return r.Status >= 200 && r.Status < 300 }
func (r Response[T]) IsClientError() bool { return r.Status >= 400 && r.Status < 500 }
func (r Response[T]) IsServerError() bool { return r.Status >= 500 && r.Status < 600 }

// responseFromRaw decodes a RawResponse into a typed Response using codec,
// shared by any Execute[T]-style caller that wants a typed view over a raw
// result.
func responseFromRaw[T any](raw RawResponse, codec Codec) (Response[T], error) {
	var payload T
	if codec != nil && len(raw.Bytes) > 0 {
		if err := codec.Decode(raw.Bytes, &payload); err != nil {
			return Response[T]{}, &ClientError{
				Type:    ErrorTypeDecodingFailed,
				Message: "failed to decode response body",
				Cause:   err,
			}
		}
	}
	return Response[T]{
		Payload:  payload,
		Status:   raw.Status,
		Headers:  raw.Headers,
		URL:      raw.URL,
		Metadata: raw.Metadata,
	}, nil
}
