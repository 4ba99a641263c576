package statuscmd

import (
	"fmt"

	"dockmon/cmd/dockmon/cmdutil"
	"dockmon/cmd/dockmon/ui"

	"github.com/spf13/cobra"
)

// WatchCmd returns the "dockmon watch" command. It redraws on every
// snapshot the daemon publishes until interrupted.
func WatchCmd(flags *cmdutil.Flags) *cobra.Command {
	return &cobra.Command{
		Use:   "watch [instance]",
		Short: "Follow live snapshots",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := flags.Connect()
			if err != nil {
				return err
			}
			updates, err := c.Watch(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for snap := range updates {
				if len(args) == 1 {
					g, ok := snap.Instance(args[0])
					if !ok {
						fmt.Fprint(out, ui.ClearScreen())
						fmt.Fprintln(out, ui.WarnMsg("Instance %s not present in snapshot #%d.", ui.Bold(args[0]), snap.Sequence))
						continue
					}
					if err := render(flags, cmd, g, func() string { return renderInstance(g) }); err != nil {
						return err
					}
					continue
				}
				if err := render(flags, cmd, snap, func() string { return renderOverview(snap) }); err != nil {
					return err
				}
			}
			if err := cmd.Context().Err(); err != nil {
				return nil
			}
			return fmt.Errorf("connection to %s closed", c.Server())
		},
	}
}

func render(flags *cmdutil.Flags, cmd *cobra.Command, v any, table func() string) error {
	if flags.Output == cmdutil.OutputTable {
		fmt.Fprint(cmd.OutOrStdout(), ui.ClearScreen())
	}
	return flags.Render(cmd.OutOrStdout(), v, table)
}
