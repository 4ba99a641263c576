package statuscmd

import (
	"errors"
	"fmt"

	"dockmon/cmd/dockmon/cmdutil"
	"dockmon/cmd/dockmon/ui"
	"dockmon/internal/client"

	"github.com/spf13/cobra"
)

// Cmd returns the "dockmon status" command.
func Cmd(flags *cmdutil.Flags) *cobra.Command {
	return &cobra.Command{
		Use:   "status [instance]",
		Short: "Show instances, or the containers of one instance",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := flags.Connect()
			if err != nil {
				return err
			}

			if len(args) == 1 {
				g, err := c.Instance(cmd.Context(), args[0])
				if errors.Is(err, client.ErrNotFound) {
					return fmt.Errorf("instance %q not found", args[0])
				}
				if err != nil {
					return notReadyHint(err)
				}
				return flags.Render(cmd.OutOrStdout(), g, func() string { return renderInstance(g) })
			}

			snap, err := c.Snapshot(cmd.Context())
			if err != nil {
				return notReadyHint(err)
			}
			return flags.Render(cmd.OutOrStdout(), snap, func() string { return renderOverview(snap) })
		},
	}
}

// RefreshCmd returns the "dockmon refresh" command.
func RefreshCmd(flags *cmdutil.Flags) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Run a refresh cycle now and show the result",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := flags.Connect()
			if err != nil {
				return err
			}
			snap, err := c.Refresh(cmd.Context())
			if err != nil {
				return err
			}
			return flags.Render(cmd.OutOrStdout(), snap, func() string { return renderOverview(snap) })
		},
	}
}

// HealthCmd returns the "dockmon health" command.
func HealthCmd(flags *cmdutil.Flags) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Show daemon readiness",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := flags.Connect()
			if err != nil {
				return err
			}
			h, err := c.Health(cmd.Context())
			if err != nil {
				return err
			}
			return flags.Render(cmd.OutOrStdout(), h, func() string {
				status := ui.Success(h.Status)
				if h.Status != "ready" {
					status = ui.Warn(h.Status)
				}
				pairs := []ui.Pair{
					ui.KV("Server", c.Server()),
					ui.KV("Status", status),
					ui.KV("Degraded", fmt.Sprint(h.Degraded)),
				}
				if h.LastError != "" {
					pairs = append(pairs, ui.KV("Last error", ui.ErrorStyle.Render(h.LastError)))
				}
				return ui.KeyValues("", pairs...)
			})
		},
	}
}

func notReadyHint(err error) error {
	if errors.Is(err, client.ErrNotReady) {
		return fmt.Errorf("%w: the daemon is still collecting its first snapshot, retry shortly", err)
	}
	return err
}
