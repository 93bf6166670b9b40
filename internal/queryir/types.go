package queryir

import "github.com/roach88/nestmap/internal/ir"

// Statement is a sealed interface over the statements the store runs.
//
// Statement types:
//   - Select: projection, filter, joins, grouping, ordering, limit
//   - Insert: one row
//   - Update: set columns on filtered rows
//   - Delete: remove filtered rows
type Statement interface {
	statementNode() // Marker method - seals interface to this package
}

// Predicate is a sealed interface over WHERE conditions.
//
// Predicates reference columns by name. A column containing a dot is
// already qualified with its table ("orders.id").
type Predicate interface {
	predicateNode() // Marker method - seals interface to this package
}

// JoinKind selects INNER or LEFT joins.
type JoinKind int

const (
	InnerJoin JoinKind = iota
	LeftJoin
)

// Join attaches another table (or a subquery) to a Select.
//
// Semantics:
//
//	JOIN <Table> ON <Table>.<Column> = <OnColumn>
//
// OnColumn is qualified with the Select's table unless it already holds a
// dot. When Subquery is set, Alias names it in place of Table.
type Join struct {
	Kind     JoinKind
	Table    string
	Subquery *Select
	Alias    string
	Column   string
	OnColumn string
}

// Name returns the name the joined relation is referenced by.
func (j Join) Name() string {
	if j.Subquery != nil {
		return j.Alias
	}
	return j.Table
}

// Order is one ORDER BY term.
type Order struct {
	Column     string
	Descending bool
}

// Select reads rows from Table.
//
// Semantics:
//
//	SELECT <Columns> FROM <Table> <Joins> WHERE <Filter>
//	GROUP BY <GroupBy> ORDER BY <OrderBy> LIMIT <Limit> OFFSET <Offset>
//
// Empty Columns selects *. Qualified columns are aliased back to their
// bare name so rows are keyed by column name. Count replaces the
// projection with COUNT(*). Limit and Offset are ignored when zero.
type Select struct {
	Table   string
	Columns []string
	Joins   []Join
	Filter  Predicate
	GroupBy []string
	OrderBy []Order
	Limit   int
	Offset  int
	Count   bool
}

func (*Select) statementNode() {}

// Insert adds one row. Returning names a generated column to read back
// on dialects that support RETURNING.
type Insert struct {
	Table     string
	Values    *ir.Record
	Returning string
}

func (*Insert) statementNode() {}

// Update sets Values on rows matching Filter.
type Update struct {
	Table  string
	Values *ir.Record
	Filter Predicate
}

func (*Update) statementNode() {}

// Delete removes rows matching Filter.
type Delete struct {
	Table  string
	Filter Predicate
}

func (*Delete) statementNode() {}

// Equals is <Column> = <Value>. A Null value compiles to IS NULL.
type Equals struct {
	Column string
	Value  ir.Value
}

func (Equals) predicateNode() {}

// NotEquals is <Column> != <Value>. A Null value compiles to IS NOT NULL.
type NotEquals struct {
	Column string
	Value  ir.Value
}

func (NotEquals) predicateNode() {}

// Operator is a comparison operator for Compare.
type Operator string

const (
	OpGreater      Operator = ">"
	OpGreaterEqual Operator = ">="
	OpLess         Operator = "<"
	OpLessEqual    Operator = "<="
	OpLike         Operator = "LIKE"
)

// Compare is <Column> <Op> <Value>.
type Compare struct {
	Column string
	Op     Operator
	Value  ir.Value
}

func (Compare) predicateNode() {}

// IsNull is <Column> IS NULL.
type IsNull struct {
	Column string
}

func (IsNull) predicateNode() {}

// IsNotNull is <Column> IS NOT NULL.
type IsNotNull struct {
	Column string
}

func (IsNotNull) predicateNode() {}

// In is <Column> IN (<Values>). An empty list matches nothing.
type In struct {
	Column string
	Values []ir.Value
}

func (In) predicateNode() {}

// NotIn is <Column> NOT IN (<Values>). An empty list matches everything.
type NotIn struct {
	Column string
	Values []ir.Value
}

func (NotIn) predicateNode() {}

// And is a conjunction. Empty means always true.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// Or is a disjunction. Empty means always false.
type Or struct {
	Predicates []Predicate
}

func (Or) predicateNode() {}
