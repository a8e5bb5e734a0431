package version

import (
	"fmt"
	"runtime"
)

// Populated at build time via -ldflags.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// String returns the full version line printed by the version command.
func String() string {
	return fmt.Sprintf("dictate %s (commit=%s, date=%s, go=%s)", Version, Commit, Date, runtime.Version())
}
