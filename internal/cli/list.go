package cli

import (
	"github.com/spf13/cobra"

	"github.com/wslforge/wslforge/pkg/wsl"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all registered WSL instances on this host",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		reg, err := wsl.NewRegistry()
		if err != nil {
			return err
		}

		instances, err := reg.List(ctx)
		if err != nil {
			return err
		}
		if len(instances) == 0 {
			printDetail("no instances registered")
			return nil
		}

		printSection("Registered instances")
		for _, inst := range instances {
			marker := " "
			if inst.Default {
				marker = "*"
			}
			st := "stopped"
			if inst.Running {
				st = "running"
			}
			printDetail("%s %-24s %s", marker, inst.Name, st)
		}
		return nil
	},
}
