// Package version carries build metadata injected via -ldflags.
package version

import "fmt"

var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// Full returns a one-line description of the build.
func Full() string {
	return fmt.Sprintf("hearscribe %s, commit %s, built at %s", Version, Commit, Date)
}
