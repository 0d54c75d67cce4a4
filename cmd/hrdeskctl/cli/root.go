// Package cli implements the hrdeskctl administration commands.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/hrdesk/hrdesk/internal/app"
)

// Version is set at build time.
var Version = "0.1.0"

const (
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

type globalOptions struct {
	output string
	// loadConfig is swapped in tests.
	loadConfig func() (*app.Config, error)
}

// NewRootCommand assembles the hrdeskctl command tree.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&globalOptions{loadConfig: app.LoadConfig})
}

func newRootCommand(opts *globalOptions) *cobra.Command {
	root := &cobra.Command{
		Use:   "hrdeskctl",
		Short: "Administration CLI for hrdesk",
		Long: `hrdeskctl runs operational tasks against an hrdesk deployment.

It applies database migrations, bootstraps user accounts, inspects the
role and route tables and manages background jobs. Commands that touch
a datastore read the same environment (and .env file) as the server.`,
		Version:      Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			switch opts.output {
			case formatTable, formatJSON, formatYAML:
				return nil
			default:
				return fmt.Errorf("unsupported output format %q (use table, json or yaml)", opts.output)
			}
		},
	}
	root.PersistentFlags().StringVarP(&opts.output, "output", "o", formatTable, "output format: table, json, yaml")

	root.AddCommand(
		newMigrateCommand(opts),
		newUserCommand(opts),
		newPermissionsCommand(opts),
		newDecideCommand(opts),
		newJobsCommand(opts),
	)
	return root
}

// structured writes v as JSON or YAML. It returns false for table output so
// callers can render their own layout.
func (o *globalOptions) structured(w io.Writer, v any) (bool, error) {
	switch strings.ToLower(o.output) {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return true, enc.Encode(v)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return true, err
		}
		return true, enc.Close()
	default:
		return false, nil
	}
}
