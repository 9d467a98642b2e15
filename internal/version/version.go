// Package version carries build metadata injected with -ldflags "-X".
package version

import "fmt"

var (
	// Version of the analyst binary.
	Version = "dev"
	Commit  = "unknown"
	// BuildDate is RFC3339 when set by the release build.
	BuildDate = "unknown"
)

// Summary renders the build metadata for the version command.
func Summary() string {
	return fmt.Sprintf("analyst %s\ncommit: %s\nbuilt: %s\n", Version, Commit, BuildDate)
}
