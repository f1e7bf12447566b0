package corekit

import (
	"context"
	"io"
)

// ProgressFunc reports incremental transfer progress: transferred is the
// cumulative byte count observed so far, total is the known size or -1 when
// unknown (e.g. a chunked response with no Content-Length).
type ProgressFunc func(transferred, total int64)

// progressReader wraps a body reader to call onProgress after every Read,
// shared by Upload (request body) and Download (response body).
type progressReader struct {
	io.ReadCloser
	total      int64
	read       int64
	onProgress ProgressFunc
}

func (p *progressReader) Read(buf []byte) (int, error) {
	n, err := p.ReadCloser.Read(buf)
	if n > 0 {
		p.read += int64(n)
		p.onProgress(p.read, p.total)
	}
	return n, err
}

func wrapProgressGetBody(orig func() (io.ReadCloser, error), total int64, progress ProgressFunc) func() (io.ReadCloser, error) {
	if orig == nil || progress == nil {
		return orig
	}
	return func() (io.ReadCloser, error) {
		body, err := orig()
		if err != nil {
			return nil, err
		}
		return &progressReader{ReadCloser: body, total: total, onProgress: progress}, nil
	}
}

// Upload runs endpoint with data as the request body (spec §6
// engine.upload), reporting progress as the body is written to the wire if
// progress is non-nil. It carries the data through the same pipeline as any
// other call: caching, retries, circuit breaker, auth and interceptors.
func (e *Engine) Upload(ctx context.Context, endpoint Endpoint, data []byte, progress ProgressFunc) (RawResponse, error) {
	mediaType := endpoint.ContentType
	if mediaType == "" {
		mediaType = "application/octet-stream"
	}
	endpoint.Body = RawBody{Bytes: data, MediaType: mediaType}

	return e.executeRaw(ctx, endpoint, func(req *requestBuild) {
		if progress == nil {
			return
		}
		req.http.GetBody = wrapProgressGetBody(req.http.GetBody, int64(len(data)), progress)
		if req.http.GetBody != nil {
			if body, err := req.http.GetBody(); err == nil {
				req.http.Body = body
			}
		}
	}, nil)
}

// Download runs endpoint and returns the raw response bytes (spec §6
// engine.download), reporting progress as the body is read from the wire if
// progress is non-nil.
func (e *Engine) Download(ctx context.Context, endpoint Endpoint, progress ProgressFunc) ([]byte, error) {
	raw, err := e.executeRaw(ctx, endpoint, nil, progress)
	if err != nil {
		return nil, err
	}
	return raw.Bytes, nil
}
