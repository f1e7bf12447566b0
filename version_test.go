package corekit

import "testing"

func TestBuildInfoUserAgentAndString(t *testing.T) {
	b := BuildInfo{Version: "v9.9.9", GitCommit: "abcd", BuildDate: "2026-01-01", GoVersion: "go1.23"}
	if got := b.UserAgent(); got != "corekit/v9.9.9 (go1.23)" {
		t.Fatalf("UserAgent() = %q", got)
	}
	if got := b.String(); got != "corekit/v9.9.9 (commit abcd, built 2026-01-01, go1.23)" {
		t.Fatalf("String() = %q", got)
	}
}

func TestCurrentBuildReflectsPackageVars(t *testing.T) {
	origVersion := Version
	defer func() { Version = origVersion }()

	Version = "v2.0.0"
	if got := CurrentBuild().Version; got != "v2.0.0" {
		t.Fatalf("CurrentBuild().Version = %q, want v2.0.0", got)
	}
}

func TestToWireRequestSetsDefaultUserAgent(t *testing.T) {
	e := Endpoint{BaseURL: "https://example.com", Path: "/x", Method: MethodGet}
	req, err := toWireRequest(newRequestContext(e), e, NewCodecRegistry(JSONCodec{}))
	if err != nil {
		t.Fatalf("toWireRequest: %v", err)
	}
	if got := req.Header.Get("User-Agent"); got == "" {
		t.Fatal("expected a default User-Agent header to be set")
	}
}

func TestToWireRequestCallerHeaderOverridesDefaultUserAgent(t *testing.T) {
	e := Endpoint{
		BaseURL: "https://example.com",
		Path:    "/x",
		Method:  MethodGet,
		Headers: map[string][]string{"User-Agent": {"custom-agent/1.0"}},
	}
	req, err := toWireRequest(newRequestContext(e), e, NewCodecRegistry(JSONCodec{}))
	if err != nil {
		t.Fatalf("toWireRequest: %v", err)
	}
	if got := req.Header.Get("User-Agent"); got != "custom-agent/1.0" {
		t.Fatalf("User-Agent = %q, want custom-agent/1.0", got)
	}
}
