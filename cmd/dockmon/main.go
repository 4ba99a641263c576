package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"dockmon/cmd/dockmon/cmdutil"
	containercmd "dockmon/cmd/dockmon/container"
	contextcmd "dockmon/cmd/dockmon/context"
	statuscmd "dockmon/cmd/dockmon/status"
	"dockmon/cmd/dockmon/ui"
	"dockmon/internal/buildinfo"
	"dockmon/internal/logging"

	"github.com/spf13/cobra"
)

func main() {
	var (
		debug         bool
		noInteraction bool
		flags         cmdutil.Flags
	)
	if err := logging.Configure(logging.LevelWarn, logging.FormatText); err != nil {
		_, _ = os.Stderr.WriteString("configure logger: " + err.Error() + "\n")
		os.Exit(1)
	}

	root := &cobra.Command{
		Use:           "dockmon",
		Short:         "Inspect containers grouped by instance through a dockmond daemon",
		Version:       buildinfo.String(),
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := logging.LevelWarn
			if debug {
				level = logging.LevelDebug
			}
			if err := logging.Configure(level, logging.FormatText); err != nil {
				return err
			}
			ui.ConfigureInteraction(noInteraction)
			return flags.Validate()
		},
	}
	root.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	root.PersistentFlags().BoolVar(&noInteraction, "no-interaction", false, "Disable colour and screen redraws")
	flags.Bind(root)

	root.AddCommand(statuscmd.Cmd(&flags))
	root.AddCommand(statuscmd.WatchCmd(&flags))
	root.AddCommand(statuscmd.RefreshCmd(&flags))
	root.AddCommand(statuscmd.HealthCmd(&flags))
	root.AddCommand(containercmd.Commands(&flags)...)
	root.AddCommand(contextcmd.Cmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, ui.ErrorMsg("%v", err))
		stop()
		os.Exit(1)
	}
}
