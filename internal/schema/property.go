package schema

import (
	"errors"
	"fmt"
)

// Cardinality is the shape of a relationship value.
type Cardinality int

const (
	// One edges hold a single nested record (ir.One).
	One Cardinality = iota
	// Many edges hold an ordered list of nested records (ir.Many).
	Many
)

func (c Cardinality) String() string {
	if c == One {
		return "one"
	}
	return "many"
}

// ParseCardinality parses "one" or "many".
func ParseCardinality(s string) (Cardinality, error) {
	switch s {
	case "one":
		return One, nil
	case "many":
		return Many, nil
	default:
		return One, fmt.Errorf("schema: unknown cardinality %q (want one or many)", s)
	}
}

// Property is one edge from a parent Definition to a child Definition.
type Property struct {
	name              string
	cardinality       Cardinality
	child             *Definition
	localColumn       string
	foreignColumn     string
	joinTable         string
	joinForeignColumn string
	joinLocalColumn   string
}

func newProperty(name string, c Cardinality, child *Definition, foreignColumn string, localColumn []string) *Property {
	local := "id"
	if len(localColumn) > 0 && localColumn[0] != "" {
		local = localColumn[0]
	}
	return &Property{
		name:          name,
		cardinality:   c,
		child:         child,
		localColumn:   local,
		foreignColumn: foreignColumn,
	}
}

// Name is the key of the nested value in the parent record.
func (p *Property) Name() string { return p.name }

// Cardinality returns One or Many.
func (p *Property) Cardinality() Cardinality { return p.cardinality }

// IsCollection reports whether the edge is Many.
func (p *Property) IsCollection() bool { return p.cardinality == Many }

// Child returns the child definition.
func (p *Property) Child() *Definition { return p.child }

// LocalColumn is the parent column holding the join key.
func (p *Property) LocalColumn() string { return p.localColumn }

// ForeignColumn is the child column matching the join key. For join
// table edges it is the child column referenced by JoinLocalColumn.
func (p *Property) ForeignColumn() string { return p.foreignColumn }

// JoinTable returns the link table name, or "" for direct edges.
func (p *Property) JoinTable() string { return p.joinTable }

// JoinForeignColumn is the link table column holding the parent key.
func (p *Property) JoinForeignColumn() string { return p.joinForeignColumn }

// JoinLocalColumn is the link table column holding the child key.
func (p *Property) JoinLocalColumn() string { return p.joinLocalColumn }

// UsesJoinTable reports whether the edge goes through a link table.
func (p *Property) UsesJoinTable() bool { return p.joinTable != "" }

func (p *Property) validate(parent *Definition) error {
	var errs []error
	if p.name == "" {
		errs = append(errs, fmt.Errorf("schema: %s: property name is required", parent.table))
	}
	if p.child == nil {
		errs = append(errs, fmt.Errorf("schema: %s.%s: child definition is required", parent.table, p.name))
	}
	if p.foreignColumn == "" {
		errs = append(errs, fmt.Errorf("schema: %s.%s: foreign column is required", parent.table, p.name))
	}
	if p.joinTable != "" && (p.joinForeignColumn == "" || p.joinLocalColumn == "") {
		errs = append(errs, fmt.Errorf("schema: %s.%s: join table %s needs both join columns", parent.table, p.name, p.joinTable))
	}
	return errors.Join(errs...)
}
