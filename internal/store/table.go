package store

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"

	"github.com/roach88/nestmap/internal/ir"
	"github.com/roach88/nestmap/internal/queryir"
)

// Decorator rewrites a statement just before compilation.
type Decorator func(queryir.Statement) queryir.Statement

// Table is a chainable query builder for one table.
//
// Filters accumulate with AND. BeginOr opens a group whose filters are
// combined with OR until the matching CloseOr. Values passed to filters
// are converted with ir.FromAny; a value that cannot be stored in a
// column makes the next terminal call fail.
type Table struct {
	db   *DB
	name string

	columns    []string
	conditions []queryir.Predicate
	orGroups   [][]queryir.Predicate
	joins      []queryir.Join
	groupBy    []string
	orderBy    []queryir.Order
	limit      int
	offset     int
	returning  string
	decorators []Decorator

	err error
}

// Name returns the table name.
func (t *Table) Name() string {
	return t.name
}

// Clone returns an independent copy of the builder.
func (t *Table) Clone() *Table {
	out := *t
	out.columns = slices.Clone(t.columns)
	out.conditions = slices.Clone(t.conditions)
	out.orGroups = make([][]queryir.Predicate, len(t.orGroups))
	for i, g := range t.orGroups {
		out.orGroups[i] = slices.Clone(g)
	}
	out.joins = slices.Clone(t.joins)
	out.groupBy = slices.Clone(t.groupBy)
	out.orderBy = slices.Clone(t.orderBy)
	out.decorators = slices.Clone(t.decorators)
	return &out
}

// HasJoins reports whether a join was added.
func (t *Table) HasJoins() bool {
	return len(t.joins) > 0
}

// Columns adds columns to the projection. No columns selects *.
func (t *Table) Columns(columns ...string) *Table {
	t.columns = append(t.columns, columns...)
	return t
}

// Where adds a prebuilt predicate.
func (t *Table) Where(p queryir.Predicate) *Table {
	if p != nil {
		t.add(p)
	}
	return t
}

// Eq filters on column = value. A nil or Null value becomes IS NULL.
func (t *Table) Eq(column string, value any) *Table {
	if v, ok := t.scalar(column, value); ok {
		t.add(queryir.Equals{Column: column, Value: v})
	}
	return t
}

// Neq filters on column != value.
func (t *Table) Neq(column string, value any) *Table {
	if v, ok := t.scalar(column, value); ok {
		t.add(queryir.NotEquals{Column: column, Value: v})
	}
	return t
}

// Gt filters on column > value.
func (t *Table) Gt(column string, value any) *Table {
	return t.compare(column, queryir.OpGreater, value)
}

// Gte filters on column >= value.
func (t *Table) Gte(column string, value any) *Table {
	return t.compare(column, queryir.OpGreaterEqual, value)
}

// Lt filters on column < value.
func (t *Table) Lt(column string, value any) *Table {
	return t.compare(column, queryir.OpLess, value)
}

// Lte filters on column <= value.
func (t *Table) Lte(column string, value any) *Table {
	return t.compare(column, queryir.OpLessEqual, value)
}

// Like filters on column LIKE pattern.
func (t *Table) Like(column string, pattern string) *Table {
	return t.compare(column, queryir.OpLike, pattern)
}

func (t *Table) compare(column string, op queryir.Operator, value any) *Table {
	if v, ok := t.scalar(column, value); ok {
		t.add(queryir.Compare{Column: column, Op: op, Value: v})
	}
	return t
}

// IsNull filters on column IS NULL.
func (t *Table) IsNull(column string) *Table {
	t.add(queryir.IsNull{Column: column})
	return t
}

// NotNull filters on column IS NOT NULL.
func (t *Table) NotNull(column string) *Table {
	t.add(queryir.IsNotNull{Column: column})
	return t
}

// In filters on column IN (values). An empty list matches nothing.
func (t *Table) In(column string, values ...any) *Table {
	if vals, ok := t.scalars(column, values); ok {
		t.add(queryir.In{Column: column, Values: vals})
	}
	return t
}

// NotIn filters on column NOT IN (values). An empty list matches
// everything.
func (t *Table) NotIn(column string, values ...any) *Table {
	if vals, ok := t.scalars(column, values); ok {
		t.add(queryir.NotIn{Column: column, Values: vals})
	}
	return t
}

// BeginOr opens an OR group.
func (t *Table) BeginOr() *Table {
	t.orGroups = append(t.orGroups, nil)
	return t
}

// CloseOr closes the innermost OR group.
func (t *Table) CloseOr() *Table {
	if len(t.orGroups) == 0 {
		t.fail(errors.New("CloseOr without BeginOr"))
		return t
	}
	last := len(t.orGroups) - 1
	group := t.orGroups[last]
	t.orGroups = t.orGroups[:last]
	t.add(queryir.Or{Predicates: group})
	return t
}

// Join adds an inner join: JOIN table ON table.column = onColumn, where
// an unqualified onColumn refers to this table.
func (t *Table) Join(table, column, onColumn string) *Table {
	t.joins = append(t.joins, queryir.Join{Kind: queryir.InnerJoin, Table: table, Column: column, OnColumn: onColumn})
	return t
}

// LeftJoin adds a left join with the same semantics as Join.
func (t *Table) LeftJoin(table, column, onColumn string) *Table {
	t.joins = append(t.joins, queryir.Join{Kind: queryir.LeftJoin, Table: table, Column: column, OnColumn: onColumn})
	return t
}

// JoinSubquery joins another builder's select under alias.
func (t *Table) JoinSubquery(sub *Table, alias, column, onColumn string) *Table {
	sel, err := sub.selectStatement()
	if err != nil {
		t.fail(fmt.Errorf("subquery %s: %w", alias, err))
		return t
	}
	t.joins = append(t.joins, queryir.Join{Kind: queryir.InnerJoin, Subquery: sel, Alias: alias, Column: column, OnColumn: onColumn})
	return t
}

// OrderAsc adds an ascending ORDER BY term.
func (t *Table) OrderAsc(column string) *Table {
	t.orderBy = append(t.orderBy, queryir.Order{Column: column})
	return t
}

// OrderDesc adds a descending ORDER BY term.
func (t *Table) OrderDesc(column string) *Table {
	t.orderBy = append(t.orderBy, queryir.Order{Column: column, Descending: true})
	return t
}

// GroupBy adds GROUP BY columns.
func (t *Table) GroupBy(columns ...string) *Table {
	t.groupBy = append(t.groupBy, columns...)
	return t
}

// Limit caps the number of rows returned.
func (t *Table) Limit(n int) *Table {
	t.limit = n
	return t
}

// Offset skips rows.
func (t *Table) Offset(n int) *Table {
	t.offset = n
	return t
}

// Returning names the generated key column read back after Insert on
// dialects that support RETURNING.
func (t *Table) Returning(column string) *Table {
	t.returning = column
	return t
}

// Decorate registers a statement rewrite applied before every terminal
// call, in registration order.
func (t *Table) Decorate(d Decorator) *Table {
	t.decorators = append(t.decorators, d)
	return t
}

// FindAll returns every matching row. Never nil.
func (t *Table) FindAll(ctx context.Context) ([]*ir.Record, error) {
	sel, err := t.selectStatement()
	if err != nil {
		return nil, err
	}
	return t.db.queryRows(ctx, t.name, t.decorate(sel))
}

// FindOne returns the first matching row, or nil when none match.
func (t *Table) FindOne(ctx context.Context) (*ir.Record, error) {
	sel, err := t.selectStatement()
	if err != nil {
		return nil, err
	}
	sel.Limit = 1
	rows, err := t.db.queryRows(ctx, t.name, t.decorate(sel))
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// Count returns the number of matching rows.
func (t *Table) Count(ctx context.Context) (int64, error) {
	sel, err := t.selectStatement()
	if err != nil {
		return 0, err
	}
	sel.Count = true
	sel.Columns = nil
	rows, err := t.db.queryRows(ctx, t.name, t.decorate(sel))
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	for _, k := range rows[0].Keys() {
		switch n := rows[0].Value(k).(type) {
		case ir.Int:
			return int64(n), nil
		case ir.Float:
			return int64(n), nil
		case ir.String:
			return strconv.ParseInt(string(n), 10, 64)
		}
	}
	return 0, fmt.Errorf("count %s: unexpected result %s", t.name, rows[0])
}

// Insert adds one row. The generated id, if any, is available from
// DB.LastID afterwards.
func (t *Table) Insert(ctx context.Context, values *ir.Record) error {
	if t.err != nil {
		return t.err
	}
	stmt := &queryir.Insert{Table: t.name, Values: values, Returning: t.returning}
	if _, err := t.db.execStatement(ctx, t.name, t.decorate(stmt)); err != nil {
		return fmt.Errorf("insert %s: %w", t.name, err)
	}
	return nil
}

// Update sets values on the matching rows and returns how many changed.
func (t *Table) Update(ctx context.Context, values *ir.Record) (int64, error) {
	filter, err := t.filter()
	if err != nil {
		return 0, err
	}
	stmt := &queryir.Update{Table: t.name, Values: values, Filter: filter}
	n, err := t.db.execStatement(ctx, t.name, t.decorate(stmt))
	if err != nil {
		return 0, fmt.Errorf("update %s: %w", t.name, err)
	}
	return n, nil
}

// Remove deletes the matching rows and returns how many were deleted.
func (t *Table) Remove(ctx context.Context) (int64, error) {
	filter, err := t.filter()
	if err != nil {
		return 0, err
	}
	stmt := &queryir.Delete{Table: t.name, Filter: filter}
	n, err := t.db.execStatement(ctx, t.name, t.decorate(stmt))
	if err != nil {
		return 0, fmt.Errorf("remove %s: %w", t.name, err)
	}
	return n, nil
}

func (t *Table) add(p queryir.Predicate) {
	if n := len(t.orGroups); n > 0 {
		t.orGroups[n-1] = append(t.orGroups[n-1], p)
		return
	}
	t.conditions = append(t.conditions, p)
}

func (t *Table) fail(err error) {
	if t.err == nil {
		t.err = fmt.Errorf("%s: %w", t.name, err)
	}
}

func (t *Table) scalar(column string, value any) (ir.Value, bool) {
	v, err := ir.FromAny(value)
	if err == nil && !ir.IsScalar(v) {
		err = fmt.Errorf("%T is not a column value", v)
	}
	if err != nil {
		t.fail(fmt.Errorf("filter on %s: %w", column, err))
		return nil, false
	}
	return v, true
}

func (t *Table) scalars(column string, values []any) ([]ir.Value, bool) {
	out := make([]ir.Value, 0, len(values))
	for _, value := range values {
		v, ok := t.scalar(column, value)
		if !ok {
			return nil, false
		}
		out = append(out, v)
	}
	return out, true
}

func (t *Table) filter() (queryir.Predicate, error) {
	if t.err != nil {
		return nil, t.err
	}
	if len(t.orGroups) > 0 {
		return nil, fmt.Errorf("%s: unclosed OR group", t.name)
	}
	return queryir.Conjoin(t.conditions...), nil
}

func (t *Table) selectStatement() (*queryir.Select, error) {
	filter, err := t.filter()
	if err != nil {
		return nil, err
	}
	return &queryir.Select{
		Table:   t.name,
		Columns: slices.Clone(t.columns),
		Joins:   slices.Clone(t.joins),
		Filter:  filter,
		GroupBy: slices.Clone(t.groupBy),
		OrderBy: slices.Clone(t.orderBy),
		Limit:   t.limit,
		Offset:  t.offset,
	}, nil
}

func (t *Table) decorate(stmt queryir.Statement) queryir.Statement {
	for _, d := range t.decorators {
		stmt = d(stmt)
	}
	return stmt
}
