package cli

import (
	"github.com/spf13/cobra"

	"github.com/wslforge/wslforge/internal/config"
	"github.com/wslforge/wslforge/internal/engine"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the installation's current condition without changing anything",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s, err := newSession(ctx)
		if err != nil {
			return err
		}

		scenario, obs, err := s.detect(ctx)
		if err != nil {
			return err
		}

		printSection("Installation")
		printDetail("instance:     %s", s.identifier)
		printDetail("root:         %s", s.layout.InstallRoot)
		if cf := config.ConfigFileUsed(); cf != "" {
			printDetail("config:       %s", cf)
		}
		printDetail("backing disk: %s (%s)", s.layout.DiskPath(), presence(obs.DiskPresent))
		printDetail("archive:      %s (%s)", s.layout.ArchivePath(), presence(obs.ArchivePresent))

		printSection("State document")
		printDetail("path:   %s", s.store.Path())
		printDetail("status: %s", obs.StateStatus)
		if obs.Doc != nil {
			printDetail("declared root: %s", obs.Doc.InstallRoot)
			printDetail("user:          %s", obs.Doc.Username)
			printDetail("method:        %s", obs.Doc.InstallMethod)
			if !obs.Doc.InstalledAt.IsZero() {
				printDetail("installed:     %s", obs.Doc.InstalledAt.Format("2006-01-02 15:04:05"))
			}
		}

		printSection("Registration")
		if obs.Registered {
			printDetail("registered at: %s", obs.BackingPath)
		} else {
			printDetail("not registered")
		}

		printSection("Assessment")
		switch scenario {
		case engine.AlreadyCorrect:
			printSuccess("everything agrees, nothing to do")
		case engine.NoInstallation:
			printDetail("no installation at this root")
		case engine.Corrupted:
			printError("state document present but the environment data is gone")
		default:
			printWarning("%s - run 'wslforge sync' to repair", scenario)
		}
		return nil
	},
}

func presence(present bool) string {
	if present {
		return "present"
	}
	return "missing"
}
