package cli

import (
	"github.com/spf13/cobra"

	"github.com/wslforge/wslforge/pkg/wsl"
)

var shutdownCmd = &cobra.Command{
	Use:   "shutdown",
	Short: "Stop all running WSL instances and release file locks",
	Long: `Shutdown terminates every running instance on the host. WSL holds
the backing disk open while any instance runs; shut down before moving or
copying the installation directory by hand.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := wsl.NewRegistry()
		if err != nil {
			return err
		}
		if err := reg.ShutdownAll(cmd.Context()); err != nil {
			return err
		}
		printSuccess("all instances stopped")
		return nil
	},
}
