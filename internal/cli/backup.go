package cli

import (
	"github.com/spf13/cobra"

	"github.com/wslforge/wslforge/internal/config"
)

var (
	flagBackupOutput   string
	flagBackupCompress bool
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Export the environment to a portable archive",
	Long: `Backup shuts the environment down and exports it to an archive that
can be restored on any machine. The live registration is left untouched.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s, err := newSession(ctx)
		if err != nil {
			return err
		}

		dest := flagBackupOutput
		if dest == "" {
			dest = s.layout.BackupDir()
		}
		compress := flagBackupCompress
		if !cmd.Flags().Changed("compress") {
			compress = config.Global.CompressBackups
		}

		printSection("Backup")
		printDetail("instance: %s", s.identifier)
		printDetail("output:   %s", dest)

		archive, err := s.engine.Transfer().Export(ctx, s.identifier, dest, compress)
		if err != nil {
			return err
		}
		printSuccess("exported to %s", archive)
		return nil
	},
}

func init() {
	backupCmd.Flags().StringVarP(&flagBackupOutput, "output", "o", "", "destination directory (default: backups/ under the install root)")
	backupCmd.Flags().BoolVar(&flagBackupCompress, "compress", true, "gzip the archive and write a checksum sidecar")
}
