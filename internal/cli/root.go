// Package cli provides the command-line interface for wslforge.
package cli

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/wslforge/wslforge/internal/config"
	"github.com/wslforge/wslforge/pkg/wsl"
)

var rootCmd = &cobra.Command{
	Use:   "wslforge",
	Short: "wslforge - portable sandboxed Linux environment manager",
	Long: `wslforge keeps one named WSL environment consistent across
installation, copying between machines, and relocation on disk.

The environment lives entirely under the installation directory: a growable
backing disk, a state document, and optionally a portable archive. Run
'wslforge sync' after moving or copying the directory and the registration
is repaired without touching user data.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" || cmd.Name() == "completion" {
			return nil
		}
		root := flagRoot
		if root == "" {
			detected, err := config.DetectInstallRoot()
			if err != nil {
				return fmt.Errorf("determine install root: %w", err)
			}
			root = detected
		}
		if err := config.Load(root); err != nil {
			return err
		}
		// The config file may redirect the root; an explicit flag wins.
		if flagRoot == "" && config.Global.InstallRoot != "" {
			root = config.Global.InstallRoot
		}
		currentRoot = root
		setupLogging()
		if !wsl.SupportedPlatform() {
			log.Warn().Str("os", runtime.GOOS).Msg("no WSL host on this platform, registry operations will fail")
		}
		return nil
	},
}

var (
	flagRoot     string
	flagLogLevel string

	// currentRoot is the resolved installation root for this invocation.
	currentRoot string
)

func setupLogging() {
	level := flagLogLevel
	if level == "" && config.Global != nil {
		level = config.Global.LogLevel
	}
	parsed, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		parsed = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(parsed)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
}

// Execute runs the root command.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		return err
	}
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagRoot, "root", "", "installation root (default: executable directory)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level: trace, debug, info, warn, error")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(restoreCmd)
	rootCmd.AddCommand(uninstallCmd)
	rootCmd.AddCommand(shutdownCmd)
}
