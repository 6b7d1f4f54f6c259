package cli

import (
	"github.com/spf13/cobra"

	"github.com/wslforge/wslforge/internal/timing"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Detect and repair drift between the installation and the host",
	Long: `Sync inspects the state document, the backing disk, and the host
registration, classifies the situation, and performs the smallest set of
repairs that makes them agree. Running it again immediately is a no-op.

Run it after copying the installation directory to a new machine or
moving it to a different path.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		tm := timing.New()

		s, err := newSession(ctx)
		if err != nil {
			return err
		}
		tm.Mark("session")

		_, obs, err := s.detect(ctx)
		if err != nil {
			return err
		}
		tm.Mark("detect")

		report, err := s.engine.Reconcile(ctx, s.identifier, obs)
		if err != nil {
			return err
		}
		tm.Mark("reconcile")

		printSection("Sync")
		printDetail("instance:  %s", s.identifier)
		printDetail("root:      %s", s.layout.InstallRoot)
		printDetail("scenario:  %s", report.Scenario)
		for _, action := range report.Actions {
			printDetail("- %s", action)
		}
		if report.RegistryMutations == 0 {
			printSuccess("nothing to repair")
		} else {
			printSuccess("repaired in %s (%d registry change(s))",
				timing.FormatDuration(tm.Total()), report.RegistryMutations)
		}
		tm.Log()
		return nil
	},
}
