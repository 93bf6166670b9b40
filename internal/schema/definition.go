package schema

import (
	"errors"
	"fmt"
	"slices"

	"github.com/roach88/nestmap/internal/ir"
)

// ErrCompositeAutoIncrement is raised when auto-increment is enabled on a
// definition whose primary key has more than one column.
var ErrCompositeAutoIncrement = errors.New("schema: auto increment can only be used with a single-column primary key")

// DefaultPrimaryKey is used when New is called without key columns.
var DefaultPrimaryKey = []string{"id"}

// Definition describes how one table maps into a nested record.
//
// Definitions are configured once with the chainable With* methods and
// treated as immutable afterwards. A Definition may reference itself
// through a Property to model recursive hierarchies.
type Definition struct {
	table          string
	primaryKey     []string
	columns        []string
	properties     []*Property
	autoIncrement  bool
	readOnly       bool
	deletionColumn string
	creationData   *ir.Record
	modifyData     *ir.Record
	deletionData   *ir.Record
}

// New creates a Definition for table. The primary key defaults to "id".
func New(table string, primaryKey ...string) *Definition {
	if len(primaryKey) == 0 {
		primaryKey = DefaultPrimaryKey
	}
	return &Definition{
		table:        table,
		primaryKey:   slices.Clone(primaryKey),
		creationData: ir.NewRecord(),
		modifyData:   ir.NewRecord(),
		deletionData: ir.NewRecord(),
	}
}

// Table returns the table name.
func (d *Definition) Table() string { return d.table }

// PrimaryKey returns the primary key columns in order.
func (d *Definition) PrimaryKey() []string { return slices.Clone(d.primaryKey) }

// Columns returns the non-key columns owned by the table.
func (d *Definition) Columns() []string { return slices.Clone(d.columns) }

// Properties returns the relationship edges in declaration order.
func (d *Definition) Properties() []*Property { return slices.Clone(d.properties) }

// IsAutoIncrement reports whether the database assigns the primary key.
func (d *Definition) IsAutoIncrement() bool { return d.autoIncrement }

// IsReadOnly reports whether the engine must never write this table.
func (d *Definition) IsReadOnly() bool { return d.readOnly }

// DeletionColumn returns the soft-delete timestamp column, or "".
func (d *Definition) DeletionColumn() string { return d.deletionColumn }

// CreationData returns a copy of the insert overlay.
func (d *Definition) CreationData() *ir.Record { return d.creationData.Clone() }

// ModificationData returns a copy of the update overlay.
func (d *Definition) ModificationData() *ir.Record { return d.modifyData.Clone() }

// DeletionData returns a copy of the soft-delete overlay.
func (d *Definition) DeletionData() *ir.Record { return d.deletionData.Clone() }

// WithColumns adds owned columns.
func (d *Definition) WithColumns(columns ...string) *Definition {
	for _, c := range columns {
		if !slices.Contains(d.columns, c) {
			d.columns = append(d.columns, c)
		}
	}
	return d
}

// UseAutoIncrement lets the database assign the primary key on insert.
// Panics with ErrCompositeAutoIncrement on a composite key.
func (d *Definition) UseAutoIncrement() *Definition {
	if len(d.primaryKey) > 1 {
		panic(fmt.Errorf("%w (table %s)", ErrCompositeAutoIncrement, d.table))
	}
	d.autoIncrement = true
	return d
}

// ReadOnly marks the table as never written by the engine.
func (d *Definition) ReadOnly() *Definition {
	d.readOnly = true
	return d
}

// WithDeletionTimestamp enables soft delete through column.
func (d *Definition) WithDeletionTimestamp(column string) *Definition {
	d.deletionColumn = column
	return d
}

// WithCreationData merges pairs into the insert payload.
func (d *Definition) WithCreationData(pairs ...ir.Pair) *Definition {
	d.creationData.Merge(ir.NewRecord(pairs...))
	return d
}

// WithModificationData merges pairs into the update payload.
func (d *Definition) WithModificationData(pairs ...ir.Pair) *Definition {
	d.modifyData.Merge(ir.NewRecord(pairs...))
	return d
}

// WithDeletionData merges pairs into the soft-delete update.
func (d *Definition) WithDeletionData(pairs ...ir.Pair) *Definition {
	d.deletionData.Merge(ir.NewRecord(pairs...))
	return d
}

// WithOne attaches a one-to-one edge. foreignColumn lives on the child
// and references the parent's localColumn (default "id").
func (d *Definition) WithOne(child *Definition, name, foreignColumn string, localColumn ...string) *Definition {
	d.properties = append(d.properties, newProperty(name, One, child, foreignColumn, localColumn))
	return d
}

// WithMany attaches a one-to-many edge. foreignColumn lives on the child
// and references the parent's localColumn (default "id").
func (d *Definition) WithMany(child *Definition, name, foreignColumn string, localColumn ...string) *Definition {
	d.properties = append(d.properties, newProperty(name, Many, child, foreignColumn, localColumn))
	return d
}

// WithManyByJoin attaches a many-to-many edge through joinTable.
//
// Rows of joinTable link joinForeignColumn (the parent's localColumn
// value) to joinLocalColumn (the child's foreignColumn value).
func (d *Definition) WithManyByJoin(child *Definition, name, foreignColumn, localColumn, joinTable, joinForeignColumn, joinLocalColumn string) *Definition {
	p := newProperty(name, Many, child, foreignColumn, []string{localColumn})
	p.joinTable = joinTable
	p.joinForeignColumn = joinForeignColumn
	p.joinLocalColumn = joinLocalColumn
	d.properties = append(d.properties, p)
	return d
}

// Owns reports whether column is a key, owned or edge-local column.
func (d *Definition) Owns(column string) bool {
	if slices.Contains(d.primaryKey, column) || slices.Contains(d.columns, column) {
		return true
	}
	for _, p := range d.properties {
		if p.localColumn == column {
			return true
		}
	}
	return false
}

// BaseColumns returns every column the table writes for a record: the
// primary key, owned columns, edge local columns and extra, deduplicated
// in that order.
func (d *Definition) BaseColumns(extra ...string) []string {
	out := slices.Clone(d.primaryKey)
	add := func(c string) {
		if c != "" && !slices.Contains(out, c) {
			out = append(out, c)
		}
	}
	for _, c := range d.columns {
		add(c)
	}
	for _, p := range d.properties {
		add(p.localColumn)
	}
	for _, c := range extra {
		add(c)
	}
	return out
}

// Validate checks the definition tree for configuration mistakes.
// Self references are followed once.
func (d *Definition) Validate() error {
	return d.validate(map[*Definition]bool{})
}

func (d *Definition) validate(seen map[*Definition]bool) error {
	if seen[d] {
		return nil
	}
	seen[d] = true

	var errs []error
	if d.table == "" {
		errs = append(errs, errors.New("schema: table name is required"))
	}
	if len(d.primaryKey) == 0 {
		errs = append(errs, fmt.Errorf("schema: %s: primary key is required", d.table))
	}
	if d.autoIncrement && len(d.primaryKey) > 1 {
		errs = append(errs, fmt.Errorf("%w (table %s)", ErrCompositeAutoIncrement, d.table))
	}
	names := map[string]bool{}
	for _, p := range d.properties {
		if err := p.validate(d); err != nil {
			errs = append(errs, err)
		}
		if names[p.name] {
			errs = append(errs, fmt.Errorf("schema: %s: duplicate property %q", d.table, p.name))
		}
		names[p.name] = true
		if p.child != nil {
			if err := p.child.validate(seen); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
