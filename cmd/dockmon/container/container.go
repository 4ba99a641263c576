package containercmd

import (
	"errors"
	"fmt"
	"strings"

	"dockmon/cmd/dockmon/cmdutil"
	"dockmon/cmd/dockmon/ui"
	"dockmon/internal/client"

	"github.com/spf13/cobra"
)

// Commands returns the per-container commands. Containers are named by
// name, full id or an id prefix of at least four characters.
func Commands(flags *cmdutil.Flags) []*cobra.Command {
	return []*cobra.Command{logsCmd(flags), restartCmd(flags), statsCmd(flags)}
}

func logsCmd(flags *cmdutil.Flags) *cobra.Command {
	var lines int

	cmd := &cobra.Command{
		Use:   "logs <container>",
		Short: "Print the most recent output of a container",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := flags.Connect()
			if err != nil {
				return err
			}
			out, err := c.Logs(cmd.Context(), args[0], lines)
			if err != nil {
				return gone(args[0], err)
			}
			return flags.Render(cmd.OutOrStdout(), out, func() string {
				return strings.Join(out, "\n")
			})
		},
	}
	cmd.Flags().IntVarP(&lines, "lines", "n", 0, "Number of lines (default: daemon setting)")
	return cmd
}

func restartCmd(flags *cmdutil.Flags) *cobra.Command {
	return &cobra.Command{
		Use:   "restart <container>",
		Short: "Restart a container",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := flags.Connect()
			if err != nil {
				return err
			}
			if err := c.Restart(cmd.Context(), args[0]); err != nil {
				return gone(args[0], err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), ui.SuccessMsg("Restart of %s requested.", ui.Bold(args[0])))
			return nil
		},
	}
}

func statsCmd(flags *cmdutil.Flags) *cobra.Command {
	return &cobra.Command{
		Use:   "stats <container>",
		Short: "Read live resource usage of a container",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := flags.Connect()
			if err != nil {
				return err
			}
			s, err := c.LiveStats(cmd.Context(), args[0])
			if err != nil {
				return gone(args[0], err)
			}
			return flags.Render(cmd.OutOrStdout(), s, func() string {
				limit := ui.Muted("unlimited")
				if s.Metrics.MemoryPercent != nil {
					limit = ui.Bytes(s.Metrics.MemoryLimitBytes)
				}
				return ui.KeyValues("",
					ui.KV("Container", args[0]),
					ui.KV("CPU", ui.Percent(s.Metrics.CPUPercent)),
					ui.KV("Memory", ui.Bytes(s.Metrics.MemoryUsedBytes)+" / "+limit),
					ui.KV("Memory %", ui.PercentPtr(s.Metrics.MemoryPercent)),
					ui.KV("Net RX", ui.Bytes(s.Network.RxBytes)),
					ui.KV("Net TX", ui.Bytes(s.Network.TxBytes)),
				)
			})
		},
	}
}

func gone(ref string, err error) error {
	if errors.Is(err, client.ErrContainerGone) {
		return fmt.Errorf("container %s no longer exists", ref)
	}
	return err
}
