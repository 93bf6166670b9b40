package engine

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/roach88/nestmap/internal/collection"
	"github.com/roach88/nestmap/internal/ir"
	"github.com/roach88/nestmap/internal/schema"
)

// Remove deletes every matching aggregate, subtree included, in one
// transaction and returns the number of root records removed. Tables
// with a deletion column are soft-deleted instead. Read-only Definitions
// are never touched.
func (m *Mapping) Remove(ctx context.Context) (int, error) {
	if m.def.IsReadOnly() {
		return 0, nil
	}

	log := m.mapper.logger.With("op", m.mapper.opIDs.Generate(), "table", m.def.Table())
	log.Debug("remove started")

	records, err := m.FindAll(ctx)
	if err != nil {
		return 0, err
	}
	if len(records) == 0 {
		log.Info("remove completed", "records", 0)
		return 0, nil
	}

	pending := newPendingDeletes()
	for _, rec := range records {
		if err := pending.collect(m.def, rec, 0); err != nil {
			return 0, err
		}
	}

	err = m.mapper.withTransaction(ctx, func() error {
		return m.mapper.executeDeletes(ctx, pending)
	})
	if err != nil {
		log.Error("remove failed", "error", err)
		return 0, err
	}

	log.Info("remove completed", "records", len(records), "deletions", pending.Len())
	for _, rec := range records {
		m.mapper.emit(ctx, event{
			kind:  Removed,
			table: m.def.Table(),
			key:   rec.Subset(m.def.PrimaryKey()...),
		})
	}
	return len(records), nil
}

// deletionBatch holds the keys of the rows to delete from one table with
// one deletion column (empty for physical deletes).
type deletionBatch struct {
	depth   int
	table   string
	column  string
	overlay *ir.Record
	keys    []string
	rows    []*ir.Record
	seen    map[string]bool
}

// pendingDeletes accumulates deletions until the whole diff is known.
// Each batch remembers the deepest tree level its table was collected
// at; join table rows count one level below the child they link.
type pendingDeletes struct {
	batches []*deletionBatch
	index   map[string]*deletionBatch
}

func newPendingDeletes() *pendingDeletes {
	return &pendingDeletes{index: map[string]*deletionBatch{}}
}

// Len returns the number of rows pending deletion.
func (p *pendingDeletes) Len() int {
	n := 0
	for _, b := range p.batches {
		n += len(b.rows)
	}
	return n
}

// add queues row in the batch for table, column and overlay. Definitions
// sharing a table but stamping different overlays get separate batches.
func (p *pendingDeletes) add(depth int, table, column string, overlay *ir.Record, keys []string, row *ir.Record) error {
	id := table + "\x00" + column
	if overlay.Len() > 0 {
		stamp, err := ir.MarshalCanonical(overlay)
		if err != nil {
			return fmt.Errorf("collect %s: %w", table, err)
		}
		id += "\x00" + string(stamp)
	}
	b, ok := p.index[id]
	if !ok {
		b = &deletionBatch{table: table, column: column, overlay: overlay, keys: keys, seen: map[string]bool{}}
		p.index[id] = b
		p.batches = append(p.batches, b)
	}
	b.depth = max(b.depth, depth)

	key, err := ir.KeyOf(row, b.keys)
	if err != nil {
		return fmt.Errorf("collect %s: %w", table, err)
	}
	if b.seen[key] {
		return nil
	}
	b.seen[key] = true
	b.rows = append(b.rows, row.Subset(b.keys...))
	return nil
}

// collect queues the row of def held in data and, recursively, every
// row of its subtree. Read-only subtrees are left alone.
func (p *pendingDeletes) collect(def *schema.Definition, data *ir.Record, depth int) error {
	if def.IsReadOnly() {
		return nil
	}

	key := ir.NewRecord()
	for _, col := range def.PrimaryKey() {
		key.Set(col, data.Value(col))
	}
	if err := p.add(depth, def.Table(), def.DeletionColumn(), def.DeletionData(), def.PrimaryKey(), key); err != nil {
		return err
	}

	for _, prop := range def.Properties() {
		items, err := childItems(def, prop, data)
		if err != nil {
			return err
		}
		for _, item := range items {
			if err := p.collect(prop.Child(), item, depth+1); err != nil {
				return err
			}
			if prop.UsesJoinTable() && !prop.Child().IsReadOnly() {
				if err := p.addLink(prop, data, item, depth+2); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// addLink queues the join table row tying item to parent.
func (p *pendingDeletes) addLink(prop *schema.Property, parent, item *ir.Record, depth int) error {
	keys := []string{prop.JoinForeignColumn(), prop.JoinLocalColumn()}
	return p.add(depth, prop.JoinTable(), "", nil, keys, linkRow(prop, parent, item))
}

// ordered returns the batches deepest first. Batches at the same depth
// run in reverse collection order.
func (p *pendingDeletes) ordered() []*deletionBatch {
	out := slices.Clone(p.batches)
	slices.Reverse(out)
	slices.SortStableFunc(out, func(a, b *deletionBatch) int {
		return cmp.Compare(b.depth, a.depth)
	})
	return out
}

// executeDeletes runs the pending batches deepest first, so children
// and link rows go before the rows they reference.
//
// Rows of a batch are grouped by every key column but the last; each
// group is one statement with equality on the leading columns and IN on
// the last. Soft-deleted tables get an UPDATE of the deletion column,
// guarded so already deleted rows keep their stamp.
func (m *Mapper) executeDeletes(ctx context.Context, pending *pendingDeletes) error {
	stamp := ir.String(m.clock.Now().UTC().Format(ir.TimeLayout))

	for _, b := range pending.ordered() {
		leading := b.keys[:len(b.keys)-1]
		last := b.keys[len(b.keys)-1]

		groups, err := collection.GroupByColumns(b.rows, leading...)
		if err != nil {
			return fmt.Errorf("delete %s: %w", b.table, err)
		}

		for _, groupKey := range groups.Keys() {
			rows := groups.Get(groupKey)
			query := m.db.Table(b.table)
			for _, col := range leading {
				query.Eq(col, rows[0].Value(col))
			}

			var values []any
			hasNull := false
			for _, row := range rows {
				v := row.Value(last)
				if ir.IsNull(v) {
					hasNull = true
					continue
				}
				values = append(values, v)
			}
			if hasNull {
				query.BeginOr().In(last, values...).IsNull(last).CloseOr()
			} else {
				query.In(last, values...)
			}

			if b.column == "" {
				if _, err := query.Remove(ctx); err != nil {
					return err
				}
				continue
			}

			payload := ir.NewRecord(ir.P(b.column, stamp)).Merge(b.overlay)
			if _, err := query.IsNull(b.column).Update(ctx, payload); err != nil {
				return err
			}
		}
	}

	return nil
}
