// Package build carries the version identity stamped in at link time
// via -ldflags. Defaults apply to plain `go build` binaries.
package build

var (
	Version   = "dev"
	Commit    = "none"
	BuildTime = "unknown"
)

// FullVersion returns "Version+Commit", e.g. "1.2.0+9f3ab81".
func FullVersion() string {
	return Version + "+" + Commit
}
