package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewExecCommand creates the exec command.
func NewExecCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "exec <sql-file>",
		Short: "Run a SQL script",
		Long: `Run a SQL script against the configured database, typically to create
the tables a schema maps. No schema is needed.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExec(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runExec(opts *RootOptions, path string, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd)
	ctx := cmd.Context()

	script, err := os.ReadFile(path)
	if err != nil {
		return f.Failure(ErrCodeNotFound, ExitCommandError, fmt.Errorf("read script: %w", err))
	}

	s, err := openSession(ctx, opts, f, false)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.db.Exec(ctx, string(script)); err != nil {
		return f.Failure(ErrCodeExec, ExitFailure, err)
	}
	if f.Format == "json" {
		return f.Success(map[string]string{"script": path})
	}
	fmt.Fprintf(f.Writer, "✓ Executed %s\n", path)
	return nil
}
