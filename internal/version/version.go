// Package version holds build metadata stamped in via -ldflags.
package version

var (
	// Version is the release version, "dev" for local builds
	Version = "dev"
	// GitSHA is the commit the binary was built from
	GitSHA = "unknown"
	// BuildTime is the UTC build timestamp
	BuildTime = "unknown"
)
