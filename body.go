package corekit

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"mime/multipart"
	"net/textproto"
	"net/url"
	"sort"
)

// Codec encodes a structured value into bytes for the wire and decodes wire
// bytes back into a typed value. The engine is codec-agnostic (spec §1 /
// §9 "type-erased encodable") — it only ever holds a Codec handle, never
// reflects over the value itself.
type Codec interface {
	Name() string
	ContentType() string
	Encode(v any) ([]byte, error)
	Decode(data []byte, out any) error
}

// CodecRegistry resolves a codec by name for RequestBody.Structured values
// that were built against a named codec rather than a direct handle.
type CodecRegistry interface {
	Lookup(name string) (Codec, bool)
}

// mapCodecRegistry is the default in-memory CodecRegistry.
type mapCodecRegistry struct {
	codecs map[string]Codec
}

// NewCodecRegistry builds a registry from the given codecs, keyed by Name().
func NewCodecRegistry(codecs ...Codec) CodecRegistry {
	m := make(map[string]Codec, len(codecs))
	for _, c := range codecs {
		m[c.Name()] = c
	}
	return &mapCodecRegistry{codecs: m}
}

func (r *mapCodecRegistry) Lookup(name string) (Codec, bool) {
	c, ok := r.codecs[name]
	return c, ok
}

// RequestBody is the tagged variant described in spec §3: exactly one of
// Structured, Raw, FormUrlEncoded or Multipart. Implemented as an interface
// with a closed set of implementations (capability-set polymorphism per
// spec §9) rather than a sum type, since Go has no native variant type.
type RequestBody interface {
	// Encode renders the body to wire bytes and its content type. Structured
	// bodies resolve their codec through the registry; Raw/Form/Multipart
	// bodies ignore it.
	Encode(codecs CodecRegistry) ([]byte, string, error)
}

// StructuredBody wraps an arbitrary value plus the name of the codec that
// knows how to encode it. Avoids reflection: the codec, not the body, does
// the type-specific work (spec §9).
type StructuredBody struct {
	Value     any
	CodecName string
}

func (b StructuredBody) Encode(codecs CodecRegistry) ([]byte, string, error) {
	if codecs == nil {
		return nil, "", fmt.Errorf("corekit: structured body requires a codec registry")
	}
	codec, ok := codecs.Lookup(b.CodecName)
	if !ok {
		return nil, "", fmt.Errorf("corekit: no codec registered for %q", b.CodecName)
	}
	data, err := codec.Encode(b.Value)
	if err != nil {
		return nil, "", err
	}
	return data, codec.ContentType(), nil
}

// RawBody is pre-encoded bytes plus their media type — the "already have
// the wire format" escape hatch alongside StructuredBody (spec §9).
type RawBody struct {
	Bytes     []byte
	MediaType string
}

func (b RawBody) Encode(CodecRegistry) ([]byte, string, error) {
	return b.Bytes, b.MediaType, nil
}

// FormURLEncodedBody is a key→value mapping encoded per
// application/x-www-form-urlencoded, percent-encoding both names and values
// (spec §6).
type FormURLEncodedBody struct {
	Fields map[string]string
}

func (b FormURLEncodedBody) Encode(CodecRegistry) ([]byte, string, error) {
	values := url.Values{}
	for k, v := range b.Fields {
		values.Set(k, v)
	}
	return []byte(values.Encode()), "application/x-www-form-urlencoded", nil
}

// MultipartPart is one ordered part of a Multipart body.
type MultipartPart struct {
	Name      string
	Bytes     []byte
	Filename  string // optional
	MediaType string // optional
}

// MultipartBody is an ordered list of parts encoded per RFC 7578, with a
// boundary that is fresh on every Encode call (spec §3, §6).
type MultipartBody struct {
	Parts []MultipartPart
}

func (b MultipartBody) Encode(CodecRegistry) ([]byte, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	if err := writer.SetBoundary(freshBoundary()); err != nil {
		return nil, "", err
	}
	for _, part := range b.Parts {
		var w writerCloser
		var err error
		if part.Filename != "" {
			w, err = writer.CreatePart(partHeader(part))
		} else {
			w, err = writer.CreateFormField(part.Name)
		}
		if err != nil {
			return nil, "", err
		}
		if _, err := w.Write(part.Bytes); err != nil {
			return nil, "", err
		}
	}
	if err := writer.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), writer.FormDataContentType(), nil
}

type writerCloser interface {
	Write(p []byte) (int, error)
}

func partHeader(p MultipartPart) textproto.MIMEHeader {
	mediaType := p.MediaType
	if mediaType == "" {
		mediaType = "application/octet-stream"
	}
	return textproto.MIMEHeader{
		"Content-Disposition": {fmt.Sprintf(`form-data; name="%s"; filename="%s"`, p.Name, p.Filename)},
		"Content-Type":        {mediaType},
	}
}

// freshBoundary generates a boundary unique per encode invocation (spec
// §4.1 "multipart boundary is unique per encode").
func freshBoundary() string {
	buf := make([]byte, 16)
	_, _ = rand.Read(buf)
	return "corekit-" + hex.EncodeToString(buf)
}

// sortedKeys is a small helper kept for codecs that need deterministic
// field ordering (e.g. a debug codec in tests).
func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
