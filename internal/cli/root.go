package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string // TOML config file, defaults to nestmap.toml when present
	Driver     string
	DSN        string
	Schema     string // schema document (YAML or CUE)
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the nestmap CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "nestmap",
		Short: "nestmap - nested aggregates over relational tables",
		Long: `Read and write tree-shaped records stored across relational tables.

Definitions are loaded from a YAML or CUE schema document. Writes diff the
new aggregate against the stored one and issue the inserts, updates and
deletes in one transaction.

Connection settings come from flags, then nestmap.toml (or --config), then
NESTMAP_DSN / DATABASE_URL. A .env file in the working directory is loaded
first.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return loadDotEnv()
		},
	}

	// Global flags
	flags := cmd.PersistentFlags()
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	flags.StringVar(&opts.Format, "format", "text", "output format (json|text)")
	flags.StringVar(&opts.ConfigPath, "config", "", "path to a TOML config file")
	flags.StringVar(&opts.Driver, "driver", "", "database driver (sqlite3|pgx|mysql)")
	flags.StringVar(&opts.DSN, "dsn", "", "data source name")
	flags.StringVarP(&opts.Schema, "schema", "s", "", "schema document (.yaml, .yml, .cue, .json)")

	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewFindCommand(opts))
	cmd.AddCommand(NewCountCommand(opts))
	cmd.AddCommand(NewInsertCommand(opts))
	cmd.AddCommand(NewUpdateCommand(opts))
	cmd.AddCommand(NewSaveCommand(opts))
	cmd.AddCommand(NewRemoveCommand(opts))
	cmd.AddCommand(NewExecCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
