package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lazypower/lexisync/internal/store"
)

// Set via -ldflags at build time.
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("lexisync %s (commit: %s, built: %s, store format: %s)\n", Version, Commit, BuildDate, store.CurrentVersion)
	},
}

// VersionString returns a formatted version string for use in health checks etc.
func VersionString() string {
	return fmt.Sprintf("%s (%s)", Version, Commit)
}
