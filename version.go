package corekit

import (
	"fmt"
	"runtime"
)

// Build metadata, meant to be overridden at link time via
// -ldflags "-X github.com/driftwire/corekit.GitCommit=... -X github.com/driftwire/corekit.BuildDate=...".
var (
	Version   = "v0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// BuildInfo is the version/runtime bundle the engine stamps onto outgoing
// requests as a User-Agent and exposes for logging.
type BuildInfo struct {
	Version   string
	GitCommit string
	BuildDate string
	GoVersion string
}

// CurrentBuild snapshots the package-level build vars, so callers get a
// consistent value even if something reassigns them mid-process.
func CurrentBuild() BuildInfo {
	return BuildInfo{
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
	}
}

// String renders the build for logs and diagnostics.
func (b BuildInfo) String() string {
	return fmt.Sprintf("corekit/%s (commit %s, built %s, %s)", b.Version, b.GitCommit, b.BuildDate, b.GoVersion)
}

// UserAgent renders the compact form the engine sets as a default
// User-Agent header, distinct from String()'s longer diagnostic form.
func (b BuildInfo) UserAgent() string {
	return fmt.Sprintf("corekit/%s (%s)", b.Version, b.GoVersion)
}

// AsMap renders the build info as string fields for structured logging.
func (b BuildInfo) AsMap() map[string]string {
	return map[string]string{
		"version":    b.Version,
		"commit":     b.GitCommit,
		"build_date": b.BuildDate,
		"go_version": b.GoVersion,
	}
}
