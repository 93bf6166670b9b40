package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/nestmap/internal/engine"
	"github.com/roach88/nestmap/internal/schemafile"
	"github.com/roach88/nestmap/internal/store"
)

// session is one open connection plus the loaded schema.
type session struct {
	db     *store.DB
	mapper *engine.Mapper
	defs   *schemafile.Set
	logger *slog.Logger
}

// newLogger returns the CLI logger. Engine progress and statement logs
// only show with --verbose.
func newLogger(opts *RootOptions) *slog.Logger {
	level := slog.LevelWarn
	if opts.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// openSession resolves settings, loads the schema and connects. When
// needSchema is false a missing schema setting is not an error.
func openSession(ctx context.Context, opts *RootOptions, f *OutputFormatter, needSchema bool) (*session, error) {
	settings, err := opts.Resolve()
	if err != nil {
		return nil, f.Failure(ErrCodeConfig, ExitCommandError, err)
	}
	if settings.DSN == "" {
		return nil, f.Failure(ErrCodeConfig, ExitCommandError,
			fmt.Errorf("no database configured: set --dsn, dsn in %s, or %s", DefaultConfigFile, EnvDSN))
	}

	s := &session{logger: newLogger(opts)}

	if needSchema {
		if settings.Schema == "" {
			return nil, f.Failure(ErrCodeConfig, ExitCommandError,
				fmt.Errorf("no schema configured: set --schema, schema in %s, or %s", DefaultConfigFile, EnvSchema))
		}
		s.defs, err = schemafile.Load(settings.Schema)
		if err != nil {
			return nil, f.Failure(ErrCodeSchema, ExitCommandError, err)
		}
		f.VerboseLog("Loaded %d definition(s) from %s", len(s.defs.Names()), settings.Schema)
	}

	s.db, err = store.Open(ctx, store.Config{
		Driver:        settings.Driver,
		DSN:           settings.DSN,
		LogStatements: settings.LogStatements,
		Logger:        s.logger,
	})
	if err != nil {
		return nil, f.Failure(ErrCodeConnect, ExitCommandError, err)
	}

	s.mapper = engine.New(s.db, engine.WithLogger(s.logger))
	return s, nil
}

// mapping returns a fresh Mapping for the named definition.
func (s *session) mapping(name string, f *OutputFormatter) (*engine.Mapping, error) {
	def, ok := s.defs.Lookup(name)
	if !ok {
		return nil, f.Failure(ErrCodeNotFound, ExitCommandError,
			fmt.Errorf("unknown definition %q (have %s)", name, strings.Join(s.defs.Names(), ", ")))
	}
	return s.mapper.Mapping(def), nil
}

func (s *session) Close() error {
	return s.db.Close()
}

// newFormatter builds the formatter for a command.
func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}
}
