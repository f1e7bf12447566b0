package corekit

import (
	"bufio"
	"context"
	"io"
	"net/http"
	"strings"
)

// StreamChunk is one pulled unit from a streaming transport (spec §4.12).
type StreamChunk struct {
	Bytes []byte
	Err   error
}

// Stream is a pull-based byte-chunk source over a wire request. The engine
// never buffers the full body; callers read chunks until Next returns
// ok=false. Stream reconnection policy is left to the protocol frontend
// (SSE, WebSocket) consuming this adapter, not to the engine.
type Stream struct {
	resp   *http.Response
	reader *bufio.Reader
	cancel context.CancelFunc
}

// OpenStream issues req and validates the response before returning a
// Stream: status must be 2xx, and when requireEventStream is set the
// Content-Type must be text/event-stream (spec §4.12).
func OpenStream(ctx context.Context, client *http.Client, req *http.Request, requireEventStream bool) (*Stream, error) {
	ctx, cancel := context.WithCancel(ctx)
	req = req.WithContext(ctx)

	resp, err := client.Do(req)
	if err != nil {
		cancel()
		return nil, &ClientError{Type: classifyTransportError(err), Message: "stream request failed", Cause: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		cancel()
		_ = resp.Body.Close()
		return nil, &ClientError{Type: ErrorTypeInvalidResponse, Message: "stream endpoint returned non-2xx status", StatusCode: resp.StatusCode}
	}
	if requireEventStream && !strings.HasPrefix(resp.Header.Get("Content-Type"), "text/event-stream") {
		cancel()
		_ = resp.Body.Close()
		return nil, &ClientError{Type: ErrorTypeInvalidResponse, Message: "stream endpoint did not return text/event-stream"}
	}

	return &Stream{resp: resp, reader: bufio.NewReader(resp.Body), cancel: cancel}, nil
}

// Next reads the next chunk up to size bytes. ok is false once the body is
// exhausted or the stream has been closed.
func (s *Stream) Next(size int) (StreamChunk, bool) {
	buf := make([]byte, size)
	n, err := s.reader.Read(buf)
	if n > 0 {
		chunk := StreamChunk{Bytes: buf[:n]}
		if err != nil && err != io.EOF {
			chunk.Err = err
		}
		return chunk, true
	}
	if err == io.EOF {
		return StreamChunk{}, false
	}
	return StreamChunk{Err: err}, err == nil
}

// Close cancels the underlying transport and releases the response body,
// supporting consumer-initiated cancellation (spec §4.12).
func (s *Stream) Close() error {
	s.cancel()
	return s.resp.Body.Close()
}

// Headers exposes the response headers for the caller's own validation
// (e.g. a specific SSE retry hint).
func (s *Stream) Headers() http.Header {
	return s.resp.Header
}
