package engine

import (
	"context"
	"fmt"

	"github.com/roach88/nestmap/internal/collection"
	"github.com/roach88/nestmap/internal/ir"
	"github.com/roach88/nestmap/internal/schema"
)

// resolve attaches the nested values of every Property of def to rows.
//
// Each Property costs one query for the whole batch, keyed by the
// distinct local column values of rows, and recursion happens per level
// rather than per row.
func (m *Mapper) resolve(ctx context.Context, def *schema.Definition, rows []*ir.Record) ([]*ir.Record, error) {
	if len(rows) == 0 {
		return rows, nil
	}

	for _, prop := range def.Properties() {
		buckets, err := m.fetchChildren(ctx, prop, rows)
		if err != nil {
			return nil, err
		}

		for _, row := range rows {
			var bucket []*ir.Record
			if local := row.Value(prop.LocalColumn()); !ir.IsNull(local) {
				key, err := ir.ScalarKey(local)
				if err != nil {
					return nil, fmt.Errorf("resolve %s.%s: %w", def.Table(), prop.Name(), err)
				}
				bucket = buckets.Get(key)
			}

			if prop.IsCollection() {
				many := make(ir.Many, len(bucket))
				copy(many, bucket)
				row.Set(prop.Name(), many)
				continue
			}
			if len(bucket) == 0 {
				row.Set(prop.Name(), ir.One{})
			} else {
				row.Set(prop.Name(), ir.One{Record: bucket[0]})
			}
		}
	}

	return rows, nil
}

// fetchChildren reads the children of every row for one Property and
// groups them by the value that links them to their parent.
func (m *Mapper) fetchChildren(ctx context.Context, prop *schema.Property, rows []*ir.Record) (*collection.Groups[*ir.Record], error) {
	locals, err := distinctValues(rows, prop.LocalColumn())
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", prop.Name(), err)
	}

	child := prop.Child()
	var children []*ir.Record
	groupColumn := prop.ForeignColumn()

	if len(locals) > 0 {
		sub := newMapping(m, child, []string{prop.ForeignColumn()})
		if prop.UsesJoinTable() {
			linkColumn := prop.JoinTable() + "." + prop.JoinForeignColumn()
			sub.Columns(linkColumn)
			sub.Join(prop.JoinTable(), prop.JoinLocalColumn(), prop.ForeignColumn())
			sub.In(linkColumn, locals...)
		} else {
			sub.In(prop.ForeignColumn(), locals...)
		}

		children, err = sub.FindAll(ctx)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", prop.Name(), err)
		}
	}

	if prop.UsesJoinTable() {
		groupColumn = prop.JoinForeignColumn()
	}

	groups, err := collection.Group(children, func(r *ir.Record) (string, error) {
		return ir.ScalarKey(r.Value(groupColumn))
	})
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", prop.Name(), err)
	}

	// The link column only exists to route children to their parent.
	if prop.UsesJoinTable() && !child.Owns(groupColumn) && groupColumn != prop.ForeignColumn() {
		for _, c := range children {
			c.Delete(groupColumn)
		}
	}

	return groups, nil
}

// distinctValues returns the non-null values of column in rows, in first
// seen order, deduplicated by loose equality.
func distinctValues(rows []*ir.Record, column string) ([]any, error) {
	seen := map[string]bool{}
	var out []any
	for _, row := range rows {
		v := row.Value(column)
		if ir.IsNull(v) {
			continue
		}
		key, err := ir.ScalarKey(v)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", column, err)
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, v)
	}
	return out, nil
}
