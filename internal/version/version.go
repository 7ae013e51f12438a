// Package version carries the build identity stamped in by the linker.
package version

import "fmt"

var (
	// Version is the release tag, "dev" for untagged builds.
	Version = "dev"
	// GitSHA is the commit the binary was built from.
	GitSHA = "unknown"
	// BuildTime is the build timestamp.
	BuildTime = "unknown"
)

// String renders the build identity on one line.
func String() string {
	return fmt.Sprintf("viddup %s (%s, built %s)", Version, GitSHA, BuildTime)
}
