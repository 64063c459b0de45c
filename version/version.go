// Package version holds build-time identifying information, injected via
// -ldflags at build time (e.g. -X github.com/ambridge-relay/relayer/version.Commit=...).
package version

var (
	Commit    = "development"
	Branch    = "development"
	BuildTime = "unknown"
)
