package cmdutil

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"dockmon/config"
	"dockmon/internal/client"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// Output formats accepted by --output.
const (
	OutputTable = "table"
	OutputJSON  = "json"
	OutputYAML  = "yaml"
)

// Flags are the root persistent flags every subcommand reads.
type Flags struct {
	Server  string
	Context string
	Output  string
}

func (f *Flags) Bind(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(&f.Server, "server", "", "Daemon URL (default: current context, $DOCKMON_SERVER or "+client.DefaultServer+")")
	cmd.PersistentFlags().StringVar(&f.Context, "context", "", "Context name to use")
	cmd.PersistentFlags().StringVarP(&f.Output, "output", "o", OutputTable, "Output format: table, json, yaml")
}

func (f *Flags) Validate() error {
	switch f.Output {
	case OutputTable, OutputJSON, OutputYAML:
		return nil
	default:
		return fmt.Errorf("unknown output format %q", f.Output)
	}
}

// Connect builds a client for the daemon selected by the flags.
func (f *Flags) Connect() (*client.Client, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	server, err := cfg.Resolve(strings.TrimSpace(f.Server), strings.TrimSpace(f.Context))
	if err != nil {
		return nil, err
	}
	if server == "" {
		server = client.DefaultServerURL()
	}
	return client.New(server)
}

// Render writes v as JSON or YAML, or calls table for the default format.
func (f *Flags) Render(w io.Writer, v any, table func() string) error {
	switch f.Output {
	case OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case OutputYAML:
		// Round-trip through JSON so YAML keys match the API field names.
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encode output: %w", err)
		}
		var generic any
		if err := yaml.Unmarshal(data, &generic); err != nil {
			return fmt.Errorf("encode output: %w", err)
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(generic); err != nil {
			return fmt.Errorf("encode output: %w", err)
		}
		return enc.Close()
	default:
		_, err := fmt.Fprintln(w, table())
		return err
	}
}
