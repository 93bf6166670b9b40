package engine

import (
	"context"
	"fmt"

	"github.com/roach88/nestmap/internal/ir"
	"github.com/roach88/nestmap/internal/schema"
	"github.com/roach88/nestmap/internal/store"
)

// Mapping reads and writes aggregates rooted at one Definition.
//
// Filter methods narrow which root rows FindOne, FindAll, Count, Update
// and Remove operate on; they forward to a store.Table and may be
// chained. Bare column names are qualified with the Definition's table
// once a join is added.
type Mapping struct {
	mapper *Mapper
	def    *schema.Definition

	// extra columns selected and written besides the Definition's own,
	// such as the foreign column of the edge that led here
	extra []string

	query  *store.Table
	lastID int64
}

func newMapping(m *Mapper, def *schema.Definition, extra []string) *Mapping {
	return &Mapping{
		mapper: m,
		def:    def,
		extra:  extra,
		query:  m.db.Table(def.Table()).Decorate(qualifier(def.Table())),
	}
}

// Definition returns the Definition the mapping is bound to.
func (m *Mapping) Definition() *schema.Definition {
	return m.def
}

// LastID returns the id generated for the root row by the last Insert
// on an auto-increment Definition.
func (m *Mapping) LastID() int64 {
	return m.lastID
}

// Columns selects additional columns, returned alongside the managed
// ones.
func (m *Mapping) Columns(columns ...string) *Mapping {
	m.extra = append(m.extra, columns...)
	return m
}

// Eq filters on column = value. A nil value matches NULL.
func (m *Mapping) Eq(column string, value any) *Mapping {
	m.query.Eq(column, value)
	return m
}

// Neq filters on column != value.
func (m *Mapping) Neq(column string, value any) *Mapping {
	m.query.Neq(column, value)
	return m
}

// Gt filters on column > value.
func (m *Mapping) Gt(column string, value any) *Mapping {
	m.query.Gt(column, value)
	return m
}

// Gte filters on column >= value.
func (m *Mapping) Gte(column string, value any) *Mapping {
	m.query.Gte(column, value)
	return m
}

// Lt filters on column < value.
func (m *Mapping) Lt(column string, value any) *Mapping {
	m.query.Lt(column, value)
	return m
}

// Lte filters on column <= value.
func (m *Mapping) Lte(column string, value any) *Mapping {
	m.query.Lte(column, value)
	return m
}

// Like filters on column LIKE pattern.
func (m *Mapping) Like(column, pattern string) *Mapping {
	m.query.Like(column, pattern)
	return m
}

// IsNull filters on column IS NULL.
func (m *Mapping) IsNull(column string) *Mapping {
	m.query.IsNull(column)
	return m
}

// NotNull filters on column IS NOT NULL.
func (m *Mapping) NotNull(column string) *Mapping {
	m.query.NotNull(column)
	return m
}

// In filters on column IN (values).
func (m *Mapping) In(column string, values ...any) *Mapping {
	m.query.In(column, values...)
	return m
}

// NotIn filters on column NOT IN (values).
func (m *Mapping) NotIn(column string, values ...any) *Mapping {
	m.query.NotIn(column, values...)
	return m
}

// BeginOr opens an OR group.
func (m *Mapping) BeginOr() *Mapping {
	m.query.BeginOr()
	return m
}

// CloseOr closes the innermost OR group.
func (m *Mapping) CloseOr() *Mapping {
	m.query.CloseOr()
	return m
}

// Join adds JOIN table ON table.column = onColumn.
func (m *Mapping) Join(table, column, onColumn string) *Mapping {
	m.query.Join(table, column, onColumn)
	return m
}

// LeftJoin adds LEFT JOIN table ON table.column = onColumn.
func (m *Mapping) LeftJoin(table, column, onColumn string) *Mapping {
	m.query.LeftJoin(table, column, onColumn)
	return m
}

// JoinSubquery joins a subquery under alias.
func (m *Mapping) JoinSubquery(sub *store.Table, alias, column, onColumn string) *Mapping {
	m.query.JoinSubquery(sub, alias, column, onColumn)
	return m
}

// OrderAsc orders root rows by column ascending.
func (m *Mapping) OrderAsc(column string) *Mapping {
	m.query.OrderAsc(column)
	return m
}

// OrderDesc orders root rows by column descending.
func (m *Mapping) OrderDesc(column string) *Mapping {
	m.query.OrderDesc(column)
	return m
}

// GroupBy groups root rows.
func (m *Mapping) GroupBy(columns ...string) *Mapping {
	m.query.GroupBy(columns...)
	return m
}

// Limit caps the number of root rows.
func (m *Mapping) Limit(n int) *Mapping {
	m.query.Limit(n)
	return m
}

// Offset skips root rows.
func (m *Mapping) Offset(n int) *Mapping {
	m.query.Offset(n)
	return m
}

// FindOne returns the first matching aggregate, or nil when none match.
func (m *Mapping) FindOne(ctx context.Context) (*ir.Record, error) {
	row, err := m.selectQuery().FindOne(ctx)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", m.def.Table(), err)
	}
	if row == nil {
		return nil, nil
	}
	mapped, err := m.mapper.resolve(ctx, m.def, []*ir.Record{row})
	if err != nil {
		return nil, err
	}
	return mapped[0], nil
}

// FindAll returns every matching aggregate in row order. Never nil.
func (m *Mapping) FindAll(ctx context.Context) ([]*ir.Record, error) {
	rows, err := m.selectQuery().FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", m.def.Table(), err)
	}
	return m.mapper.resolve(ctx, m.def, rows)
}

// Count returns the number of matching root rows.
func (m *Mapping) Count(ctx context.Context) (int64, error) {
	q := m.query.Clone()
	if col := m.def.DeletionColumn(); col != "" {
		q.IsNull(col)
	}
	n, err := q.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", m.def.Table(), err)
	}
	return n, nil
}

// selectQuery applies the soft-delete filter and the projection to a
// copy of the filters.
func (m *Mapping) selectQuery() *store.Table {
	q := m.query.Clone()
	if col := m.def.DeletionColumn(); col != "" {
		q.IsNull(col)
	}
	return q.Columns(projection(m.def, m.extra)...)
}

// projection lists the primary key, own columns, edge local columns and
// extra columns, each qualified with the table.
func projection(def *schema.Definition, extra []string) []string {
	return qualifyAll(def.Table(), def.BaseColumns(extra...))
}

// findByKey narrows a copy of the mapping's filters to data's primary
// key. Null key components match IS NULL.
func (m *Mapping) findByKey(ctx context.Context, data *ir.Record) (*ir.Record, error) {
	if err := requireKey(m.def, data); err != nil {
		return nil, err
	}
	byKey := &Mapping{mapper: m.mapper, def: m.def, extra: m.extra, query: m.query.Clone()}
	for _, col := range m.def.PrimaryKey() {
		byKey.query.Eq(col, data.Value(col))
	}
	return byKey.FindOne(ctx)
}

func requireKey(def *schema.Definition, data *ir.Record) error {
	if data == nil {
		return validationError(def.Table(), "record is nil")
	}
	for _, col := range def.PrimaryKey() {
		if !data.Has(col) {
			return validationError(def.Table(), "missing primary key column %q", col)
		}
	}
	return nil
}
