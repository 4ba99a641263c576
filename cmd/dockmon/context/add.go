package contextcmd

import (
	"fmt"

	"dockmon/cmd/dockmon/ui"
	"dockmon/config"

	"github.com/spf13/cobra"
)

func addCmd() *cobra.Command {
	var server string
	var use bool

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add or update a context",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := cfg.Set(name, config.Context{Server: server}); err != nil {
				return err
			}
			if use || cfg.CurrentContext == "" {
				cfg.CurrentContext = name
			}
			if err := cfg.Save(); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), ui.SuccessMsg("Context %s saved.", ui.Bold(name)))
			return nil
		},
	}

	cmd.Flags().StringVar(&server, "server", "", "Daemon URL (e.g. http://host:8080)")
	cmd.Flags().BoolVar(&use, "use", false, "Make it the current context")
	_ = cmd.MarkFlagRequired("server")
	return cmd
}
