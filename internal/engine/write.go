package engine

import (
	"context"
	"fmt"

	"github.com/roach88/nestmap/internal/collection"
	"github.com/roach88/nestmap/internal/ir"
	"github.com/roach88/nestmap/internal/schema"
)

// Insert writes data and every nested child into their tables inside
// one transaction and returns a copy of data with generated ids filled
// in. data itself is not modified.
//
// Read-only Definitions are skipped, at the root and at every edge.
func (m *Mapping) Insert(ctx context.Context, data *ir.Record) (*ir.Record, error) {
	if data == nil {
		return nil, validationError(m.def.Table(), "record is nil")
	}
	working := data.Clone()
	if m.def.IsReadOnly() {
		return working, nil
	}

	log := m.mapper.logger.With("op", m.mapper.opIDs.Generate(), "table", m.def.Table())
	log.Debug("insert started")

	err := m.mapper.withTransaction(ctx, func() error {
		return m.mapper.insert(ctx, m.def, m.extra, working)
	})
	if err != nil {
		log.Error("insert failed", "error", err)
		return nil, err
	}

	if m.def.IsAutoIncrement() {
		if id, ok := working.Value(m.def.PrimaryKey()[0]).(ir.Int); ok {
			m.lastID = int64(id)
		}
	}

	log.Info("insert completed")
	m.mapper.emit(ctx, event{
		kind:   Inserted,
		table:  m.def.Table(),
		key:    working.Subset(m.def.PrimaryKey()...),
		record: working,
	})
	return working, nil
}

// Update diffs data against the stored aggregate with the same primary
// key and writes the difference: changed rows are updated, new children
// inserted, and missing children (with their subtrees) deleted or
// soft-deleted, all in one transaction. Returns a copy of data with
// generated ids filled in.
//
// Fails with a validation error when a primary key column is missing and
// with a not-found error when no stored row matches.
func (m *Mapping) Update(ctx context.Context, data *ir.Record) (*ir.Record, error) {
	if data == nil {
		return nil, validationError(m.def.Table(), "record is nil")
	}
	working := data.Clone()
	if m.def.IsReadOnly() {
		return working, nil
	}

	original, err := m.findByKey(ctx, working)
	if err != nil {
		return nil, err
	}
	if original == nil {
		return nil, notFoundError(m.def.Table())
	}

	return m.update(ctx, working, original)
}

func (m *Mapping) update(ctx context.Context, working, original *ir.Record) (*ir.Record, error) {
	log := m.mapper.logger.With("op", m.mapper.opIDs.Generate(), "table", m.def.Table())
	log.Debug("update started")

	pending := newPendingDeletes()
	err := m.mapper.withTransaction(ctx, func() error {
		if err := m.mapper.replace(ctx, m.def, m.extra, working, original, pending, 0); err != nil {
			return err
		}
		return m.mapper.executeDeletes(ctx, pending)
	})
	if err != nil {
		log.Error("update failed", "error", err)
		return nil, err
	}

	log.Info("update completed", "deletions", pending.Len())
	m.mapper.emit(ctx, event{
		kind:     Updated,
		table:    m.def.Table(),
		key:      working.Subset(m.def.PrimaryKey()...),
		record:   working,
		original: original,
	})
	return working, nil
}

// Save updates the aggregate when a row with data's primary key exists
// and inserts it otherwise.
func (m *Mapping) Save(ctx context.Context, data *ir.Record) (*ir.Record, error) {
	if data == nil {
		return nil, validationError(m.def.Table(), "record is nil")
	}
	original, err := m.findByKey(ctx, data)
	if err != nil {
		return nil, err
	}
	if original == nil {
		return m.Insert(ctx, data)
	}
	if m.def.IsReadOnly() {
		return data.Clone(), nil
	}
	return m.update(ctx, data.Clone(), original)
}

// insert writes one row of def and recurses into its edges. Generated
// ids are written back into data so children and hooks see them.
func (m *Mapper) insert(ctx context.Context, def *schema.Definition, extra []string, data *ir.Record) error {
	if def.IsReadOnly() {
		return nil
	}

	base, err := baseData(def, extra, data)
	if err != nil {
		return err
	}
	base.Merge(def.CreationData())

	table := m.db.Table(def.Table())
	pk := def.PrimaryKey()
	if def.IsAutoIncrement() {
		base.Delete(pk[0])
		table.Returning(pk[0])
	}

	if err := table.Insert(ctx, base); err != nil {
		return err
	}

	if def.IsAutoIncrement() {
		data.Set(pk[0], ir.Int(m.db.LastID()))
	}

	for _, prop := range def.Properties() {
		if prop.Child().IsReadOnly() {
			continue
		}
		items, err := childItems(def, prop, data)
		if err != nil {
			return err
		}
		for _, item := range items {
			if err := m.insertChild(ctx, prop, data, item); err != nil {
				return err
			}
		}
	}

	return nil
}

// insertChild links item to parent and inserts it. Direct edges carry
// the link in the child's foreign column; join edges get a join table
// row once the child exists.
func (m *Mapper) insertChild(ctx context.Context, prop *schema.Property, parent, item *ir.Record) error {
	if !prop.UsesJoinTable() {
		item.Set(prop.ForeignColumn(), parent.Value(prop.LocalColumn()))
	}

	if err := m.insert(ctx, prop.Child(), []string{prop.ForeignColumn()}, item); err != nil {
		return err
	}

	if prop.UsesJoinTable() {
		return m.db.Table(prop.JoinTable()).Insert(ctx, linkRow(prop, parent, item))
	}
	return nil
}

// replace writes the difference between data and original for one row
// of def and recurses into matched children. Deletions are collected in
// pending rather than executed.
func (m *Mapper) replace(ctx context.Context, def *schema.Definition, extra []string, data, original *ir.Record, pending *pendingDeletes, depth int) error {
	pk := def.PrimaryKey()
	for _, col := range pk {
		if !data.Has(col) {
			return nil
		}
	}

	base, err := baseData(def, extra, data)
	if err != nil {
		return err
	}
	originalBase, err := baseData(def, extra, original)
	if err != nil {
		return err
	}

	if changed(base, originalBase) {
		payload := base.Merge(def.ModificationData())
		query := m.db.Table(def.Table())
		for _, col := range pk {
			query.Eq(col, data.Value(col))
		}
		if _, err := query.Update(ctx, payload); err != nil {
			return err
		}
	}

	for _, prop := range def.Properties() {
		child := prop.Child()
		if child.IsReadOnly() {
			continue
		}

		next, err := childItems(def, prop, data)
		if err != nil {
			return err
		}
		previous, err := childItems(def, prop, original)
		if err != nil {
			return err
		}

		toInsert, toDelete, toUpdate, err := collection.Partition(next, previous, child.PrimaryKey())
		if err != nil {
			return fmt.Errorf("diff %s.%s: %w", def.Table(), prop.Name(), err)
		}

		for _, item := range toInsert {
			if err := m.insertChild(ctx, prop, data, item); err != nil {
				return err
			}
		}

		for _, item := range toDelete {
			if err := pending.collect(child, item, depth+1); err != nil {
				return err
			}
			if prop.UsesJoinTable() {
				if err := pending.addLink(prop, data, item, depth+2); err != nil {
					return err
				}
			}
		}

		childExtra := []string{prop.ForeignColumn()}
		for _, match := range toUpdate {
			if !prop.UsesJoinTable() {
				match.New.Set(prop.ForeignColumn(), data.Value(prop.LocalColumn()))
			}
			if err := m.replace(ctx, child, childExtra, match.New, match.Original, pending, depth+1); err != nil {
				return err
			}
		}
	}

	return nil
}

// baseData returns the columns of data that def writes: primary key,
// own columns, edge local columns and extra. A nested value under one of
// these names is a cardinality error.
func baseData(def *schema.Definition, extra []string, data *ir.Record) (*ir.Record, error) {
	base := data.Subset(def.BaseColumns(extra...)...)
	for _, k := range base.Keys() {
		if !ir.IsScalar(base.Value(k)) {
			return nil, cardinalityError(def.Table(), "column %q holds a nested value", k)
		}
	}
	return base, nil
}

// changed reports whether any column of next differs from original.
// Columns are compared by their exact text, so 230 and "230" are the
// same value while "007" and "7" are not.
func changed(next, original *ir.Record) bool {
	for _, k := range next.Keys() {
		prev, ok := original.Get(k)
		if !ok || !ir.SameText(next.Value(k), prev) {
			return true
		}
	}
	return false
}

// childItems flattens the nested value of prop in data into a list. An
// absent or null value, and an empty one edge, yield no items.
func childItems(def *schema.Definition, prop *schema.Property, data *ir.Record) ([]*ir.Record, error) {
	v, ok := data.Get(prop.Name())
	if !ok || ir.IsNull(v) {
		return nil, nil
	}

	if prop.IsCollection() {
		many, ok := v.(ir.Many)
		if !ok {
			return nil, cardinalityError(def.Table(), "property %q is a many edge, got %T", prop.Name(), v)
		}
		for i, rec := range many {
			if rec == nil {
				return nil, cardinalityError(def.Table(), "property %q: item %d is nil", prop.Name(), i)
			}
		}
		return many, nil
	}

	one, ok := v.(ir.One)
	if !ok {
		return nil, cardinalityError(def.Table(), "property %q is a one edge, got %T", prop.Name(), v)
	}
	if one.Record == nil || one.Record.Len() == 0 {
		return nil, nil
	}
	return []*ir.Record{one.Record}, nil
}

// linkRow is the join table row tying item to parent.
func linkRow(prop *schema.Property, parent, item *ir.Record) *ir.Record {
	return ir.NewRecord(
		ir.P(prop.JoinForeignColumn(), parent.Value(prop.LocalColumn())),
		ir.P(prop.JoinLocalColumn(), item.Value(prop.ForeignColumn())),
	)
}
