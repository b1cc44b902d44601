package version

import "fmt"

// Set with -ldflags at release build time.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

func Full() string {
	return fmt.Sprintf("scamwatch %s, commit %s, built at %s", Version, Commit, Date)
}
