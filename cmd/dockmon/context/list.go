package contextcmd

import (
	"fmt"
	"sort"

	"dockmon/cmd/dockmon/ui"
	"dockmon/config"

	"github.com/spf13/cobra"
)

func listCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Short:   "List available contexts",
		Aliases: []string{"ls"},
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(cfg.Contexts) == 0 {
				fmt.Fprintln(out, ui.InfoMsg("No contexts configured."))
				return nil
			}

			names := make([]string, 0, len(cfg.Contexts))
			for name := range cfg.Contexts {
				names = append(names, name)
			}
			sort.Strings(names)

			var rows [][]string
			for _, name := range names {
				current := ""
				if name == cfg.CurrentContext {
					current = "*"
				}
				rows = append(rows, []string{current, name, cfg.Contexts[name].Server})
			}

			fmt.Fprintln(out, ui.Table([]string{"", "NAME", "SERVER"}, rows))
			return nil
		},
	}
}
