package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/nestmap/internal/engine"
)

// QueryOptions holds the filter flags shared by find, count and remove.
type QueryOptions struct {
	*RootOptions
	Where  []string // col=value, ANDed
	Order  []string // col or col:desc
	Limit  int
	Offset int
	One    bool
}

func (o *QueryOptions) addWhereFlag(cmd *cobra.Command) {
	cmd.Flags().StringArrayVarP(&o.Where, "where", "w", nil, "equality filter col=value (repeatable)")
}

// NewFindCommand creates the find command.
func NewFindCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "find <definition>",
		Short: "Read nested records",
		Long: `Read records of a definition with all their nested children.

Values in --where are integers when they parse as one, null for "null",
and strings otherwise.

Examples:
  nestmap find customers --where id=1
  nestmap find orders --where customer_id=1 --order placed_on:desc --limit 10
  nestmap find customers --where id=1 --one --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFind(opts, args[0], cmd)
		},
	}

	opts.addWhereFlag(cmd)
	cmd.Flags().StringArrayVar(&opts.Order, "order", nil, "order by col or col:desc (repeatable)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum number of records")
	cmd.Flags().IntVar(&opts.Offset, "offset", 0, "number of records to skip")
	cmd.Flags().BoolVar(&opts.One, "one", false, "return the first record only")

	return cmd
}

// NewCountCommand creates the count command.
func NewCountCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "count <definition>",
		Short:         "Count records matching the filters",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCount(opts, args[0], cmd)
		},
	}

	opts.addWhereFlag(cmd)
	return cmd
}

func runFind(opts *QueryOptions, name string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)
	ctx := cmd.Context()

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

	if opts.One {
		rec, err := m.FindOne(ctx)
		if err != nil {
			return f.Failure(engineErrorCode(err), ExitFailure, err)
		}
		if f.Format == "json" {
			return f.Success(rec)
		}
		fmt.Fprintln(f.Writer, rec.String())
		return nil
	}

	recs, err := m.FindAll(ctx)
	if err != nil {
		return f.Failure(engineErrorCode(err), ExitFailure, err)
	}
	f.VerboseLog("Found %d record(s)", len(recs))
	return f.Records(recs)
}

func runCount(opts *QueryOptions, name string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)
	ctx := cmd.Context()

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

	n, err := m.Count(ctx)
	if err != nil {
		return f.Failure(engineErrorCode(err), ExitFailure, err)
	}
	if f.Format == "json" {
		return f.Success(map[string]int64{"count": n})
	}
	fmt.Fprintln(f.Writer, n)
	return nil
}

// apply adds the filter, order and paging flags to m.
func (o *QueryOptions) apply(m *engine.Mapping) error {
	for _, w := range o.Where {
		col, val, err := parseWhere(w)
		if err != nil {
			return err
		}
		m.Eq(col, val)
	}
	for _, ord := range o.Order {
		col, dir, _ := strings.Cut(ord, ":")
		switch strings.ToLower(dir) {
		case "", "asc":
			m.OrderAsc(col)
		case "desc":
			m.OrderDesc(col)
		default:
			return fmt.Errorf("invalid order %q: direction must be asc or desc", ord)
		}
	}
	if o.Limit < 0 || o.Offset < 0 {
		return fmt.Errorf("limit and offset must not be negative")
	}
	if o.Limit > 0 {
		m.Limit(o.Limit)
	}
	if o.Offset > 0 {
		m.Offset(o.Offset)
	}
	return nil
}

// parseWhere splits col=value and types the value.
func parseWhere(expr string) (string, any, error) {
	col, raw, ok := strings.Cut(expr, "=")
	col = strings.TrimSpace(col)
	if !ok || col == "" {
		return "", nil, fmt.Errorf("invalid filter %q: want col=value", expr)
	}
	return col, parseScalar(raw), nil
}

func parseScalar(raw string) any {
	if raw == "null" {
		return nil
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return n
	}
	return raw
}
