package cli

import (
	"github.com/spf13/cobra"
)

var restoreCmd = &cobra.Command{
	Use:   "restore <archive>",
	Short: "Replace the environment with a backup archive",
	Long: `Restore replaces the current environment with the given backup. The
archive may be the raw tar or the compressed bundle written by 'wslforge
backup'; compressed bundles are verified against their checksum sidecar
before anything is touched.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s, err := newSession(ctx)
		if err != nil {
			return err
		}

		printSection("Restore")
		printDetail("instance: %s", s.identifier)
		printDetail("archive:  %s", args[0])
		printWarning("the current environment data will be replaced")

		if err := s.engine.Transfer().Restore(ctx, s.identifier, args[0]); err != nil {
			return err
		}

		// The restore changed what is on disk; reconcile so the state
		// document describes the new reality, then record the import.
		_, obs, err := s.detect(ctx)
		if err != nil {
			return err
		}
		if _, err := s.engine.Reconcile(ctx, s.identifier, obs); err != nil {
			return err
		}
		if err := s.engine.RecordRestore(s.identifier); err != nil {
			return err
		}
		printSuccess("restored %q from backup", s.identifier)
		return nil
	},
}
