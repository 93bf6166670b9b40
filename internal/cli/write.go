package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/nestmap/internal/engine"
	"github.com/roach88/nestmap/internal/ir"
)

// WriteOptions holds flags for insert, update and save.
type WriteOptions struct {
	*RootOptions
	Data string // inline JSON, @file, or - for stdin
}

type writeFunc func(m *engine.Mapping, ctx context.Context, data *ir.Record) (*ir.Record, error)

// NewInsertCommand creates the insert command.
func NewInsertCommand(rootOpts *RootOptions) *cobra.Command {
	return newWriteCommand(rootOpts, "insert", "Insert a nested record",
		`Insert a record and every nested child it holds, in one transaction.`,
		(*engine.Mapping).Insert)
}

// NewUpdateCommand creates the update command.
func NewUpdateCommand(rootOpts *RootOptions) *cobra.Command {
	return newWriteCommand(rootOpts, "update", "Update a stored nested record",
		`Diff a record against the stored aggregate with the same key and write
the difference: new children are inserted, changed ones updated and
missing ones deleted. Fails when no stored record has the key.`,
		(*engine.Mapping).Update)
}

// NewSaveCommand creates the save command.
func NewSaveCommand(rootOpts *RootOptions) *cobra.Command {
	return newWriteCommand(rootOpts, "save", "Insert or update a nested record",
		`Update the record when one with the same key is stored, insert it
otherwise.`,
		(*engine.Mapping).Save)
}

func newWriteCommand(rootOpts *RootOptions, use, short, long string, write writeFunc) *cobra.Command {
	opts := &WriteOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   use + " <definition>",
		Short: short,
		Long: long + `

The record is a JSON object given with --data: inline, @path to read a
file, or - to read stdin. Nested objects and arrays map to the
definition's properties.

Example:
  nestmap ` + use + ` customers --data '{"id": 1, "name": "Ada", "orders": [{"id": 10}]}'`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWrite(opts, args[0], write, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Data, "data", "d", "", "record as JSON, @file, or - for stdin")
	_ = cmd.MarkFlagRequired("data")

	return cmd
}

func runWrite(opts *WriteOptions, name string, write writeFunc, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)
	ctx := cmd.Context()

	raw, err := readData(opts.Data, cmd.InOrStdin())
	if err != nil {
		return f.Failure(ErrCodeInput, ExitCommandError, err)
	}
	data, err := ir.ParseRecord(raw)
	if err != nil {
		return f.Failure(ErrCodeInput, ExitCommandError, fmt.Errorf("parse --data: %w", err))
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

	rec, err := write(m, ctx, data)
	if err != nil {
		return f.Failure(engineErrorCode(err), ExitFailure, err)
	}
	if f.Format == "json" {
		return f.Success(rec)
	}
	fmt.Fprintln(f.Writer, rec.String())
	return nil
}

// readData resolves the --data argument.
func readData(arg string, stdin io.Reader) ([]byte, error) {
	switch {
	case arg == "-":
		b, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return b, nil
	case strings.HasPrefix(arg, "@"):
		b, err := os.ReadFile(arg[1:])
		if err != nil {
			return nil, fmt.Errorf("read data file: %w", err)
		}
		return b, nil
	case strings.TrimSpace(arg) == "":
		return nil, fmt.Errorf("--data is empty")
	default:
		return []byte(arg), nil
	}
}
