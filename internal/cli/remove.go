package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// RemoveOptions holds flags for the remove command.
type RemoveOptions struct {
	QueryOptions
	All bool
}

// NewRemoveCommand creates the remove command.
func NewRemoveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RemoveOptions{QueryOptions: QueryOptions{RootOptions: rootOpts}}

	cmd := &cobra.Command{
		Use:   "remove <definition>",
		Short: "Delete records and their nested children",
		Long: `Delete every record matching --where together with its children,
deepest rows first. Definitions with a deletion timestamp are stamped
instead of deleted.

Refuses to run without --where unless --all is given.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRemove(opts, args[0], cmd)
		},
	}

	opts.addWhereFlag(cmd)
	cmd.Flags().BoolVar(&opts.All, "all", false, "allow removing without a filter")

	return cmd
}

func runRemove(opts *RemoveOptions, name string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)
	ctx := cmd.Context()

	if len(opts.Where) == 0 && !opts.All {
		return f.Failure(ErrCodeInput, ExitCommandError, fmt.Errorf("remove without --where needs --all"))
	}

	s, err := openSession(ctx, opts.RootOptions, f, true)
	if err != nil {
		return err
	}
	defer s.Close()

	m, err := s.mapping(name, f)
	if err != nil {
		return err
	}
	if err := opts.apply(m); err != nil {
		return f.Failure(ErrCodeInput, ExitCommandError, err)
	}

	n, err := m.Remove(ctx)
	if err != nil {
		return f.Failure(engineErrorCode(err), ExitFailure, err)
	}
	if f.Format == "json" {
		return f.Success(map[string]int{"removed": n})
	}
	fmt.Fprintf(f.Writer, "Removed %d record(s)\n", n)
	return nil
}
