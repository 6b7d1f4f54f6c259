package cli

import (
	"github.com/spf13/cobra"
)

var flagKeepData bool

var uninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Remove the registration, optionally keeping the environment data",
	Long: `Uninstall removes the host registration for this installation. With
--keep-data only the registration metadata is dropped; the backing disk and
state document stay, and 'wslforge sync' can bring the environment back.
Without it the backing disk and state document are deleted too.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s, err := newSession(ctx)
		if err != nil {
			return err
		}

		printSection("Uninstall")
		printDetail("instance: %s", s.identifier)
		if flagKeepData {
			printDetail("keeping environment data under %s", s.layout.LocalDataRoot())
		} else {
			printWarning("deleting the backing disk and state document")
		}

		if err := s.engine.Uninstall(ctx, s.identifier, flagKeepData); err != nil {
			return err
		}
		printSuccess("uninstalled %q", s.identifier)
		return nil
	},
}

func init() {
	uninstallCmd.Flags().BoolVar(&flagKeepData, "keep-data", false, "drop only the registration, keep disk and state")
}
