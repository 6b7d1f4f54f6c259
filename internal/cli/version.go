package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wslforge/wslforge/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("wslforge %s (commit %s, built %s)\n",
			version.Version, version.Commit, version.BuildDate)
	},
}
