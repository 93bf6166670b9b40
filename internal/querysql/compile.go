package querysql

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/nestmap/internal/ir"
	"github.com/roach88/nestmap/internal/queryir"
)

// Compiler compiles queryir statements to parameterized SQL.
//
// CRITICAL: All values are parameterized, never interpolated.
type Compiler struct {
	Dialect Dialect
}

// NewCompiler creates a Compiler for a dialect.
func NewCompiler(d Dialect) *Compiler {
	return &Compiler{Dialect: d}
}

// compilation holds per-statement state: the parameter list determines
// placeholder numbering.
type compilation struct {
	d      Dialect
	params []any
}

func (c *compilation) bind(v ir.Value) string {
	c.params = append(c.params, toParam(v))
	return c.d.Placeholder(len(c.params))
}

// Compile converts a statement to SQL. Returns (sql, params, error).
func (c *Compiler) Compile(stmt queryir.Statement) (string, []any, error) {
	if err := queryir.Validate(stmt); err != nil {
		return "", nil, err
	}

	comp := &compilation{d: c.Dialect}
	var (
		sql string
		err error
	)
	switch s := stmt.(type) {
	case *queryir.Select:
		sql, err = comp.compileSelect(s)
	case *queryir.Insert:
		sql, err = comp.compileInsert(s)
	case *queryir.Update:
		sql, err = comp.compileUpdate(s)
	case *queryir.Delete:
		sql, err = comp.compileDelete(s)
	default:
		return "", nil, fmt.Errorf("unsupported statement type: %T", stmt)
	}
	if err != nil {
		return "", nil, err
	}
	return sql, comp.params, nil
}

func (c *compilation) compileSelect(s *queryir.Select) (string, error) {
	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(c.projection(s))
	b.WriteString(" FROM ")
	b.WriteString(c.d.QuoteIdent(s.Table))

	for _, j := range s.Joins {
		joinSQL, err := c.compileJoin(s.Table, j)
		if err != nil {
			return "", err
		}
		b.WriteString(joinSQL)
	}

	if s.Filter != nil {
		where, err := c.compilePredicate(s.Filter)
		if err != nil {
			return "", fmt.Errorf("compile filter: %w", err)
		}
		b.WriteString(" WHERE ")
		b.WriteString(where)
	}

	if len(s.GroupBy) > 0 {
		cols := make([]string, len(s.GroupBy))
		for i, g := range s.GroupBy {
			cols[i] = c.d.QuoteIdent(g)
		}
		b.WriteString(" GROUP BY ")
		b.WriteString(strings.Join(cols, ", "))
	}

	if len(s.OrderBy) > 0 && !s.Count {
		terms := make([]string, len(s.OrderBy))
		for i, o := range s.OrderBy {
			dir := "ASC"
			if o.Descending {
				dir = "DESC"
			}
			terms[i] = c.d.QuoteIdent(o.Column) + " " + dir
		}
		b.WriteString(" ORDER BY ")
		b.WriteString(strings.Join(terms, ", "))
	}

	if s.Limit > 0 {
		b.WriteString(" LIMIT " + strconv.Itoa(s.Limit))
	}
	if s.Offset > 0 {
		if s.Limit == 0 {
			// SQLite and MySQL only accept OFFSET after a LIMIT.
			switch c.d.Name {
			case SQLite.Name:
				b.WriteString(" LIMIT -1")
			case MySQL.Name:
				b.WriteString(" LIMIT 18446744073709551615")
			}
		}
		b.WriteString(" OFFSET " + strconv.Itoa(s.Offset))
	}
	return b.String(), nil
}

// projection renders the column list. Qualified columns are aliased to
// their bare name so result rows are keyed by column name.
func (c *compilation) projection(s *queryir.Select) string {
	if s.Count {
		return "COUNT(*)"
	}
	if len(s.Columns) == 0 {
		return "*"
	}
	cols := make([]string, len(s.Columns))
	for i, col := range s.Columns {
		quoted := c.d.QuoteIdent(col)
		if dot := strings.LastIndexByte(col, '.'); dot >= 0 && col[dot+1:] != "*" {
			quoted += " AS " + c.d.QuoteIdent(col[dot+1:])
		}
		cols[i] = quoted
	}
	return strings.Join(cols, ", ")
}

func (c *compilation) compileJoin(base string, j queryir.Join) (string, error) {
	kind := " INNER JOIN "
	if j.Kind == queryir.LeftJoin {
		kind = " LEFT JOIN "
	}

	var target string
	if j.Subquery != nil {
		sub, err := c.compileSelect(j.Subquery)
		if err != nil {
			return "", fmt.Errorf("compile join subquery: %w", err)
		}
		target = "(" + sub + ") AS " + c.d.QuoteIdent(j.Alias)
	} else {
		target = c.d.QuoteIdent(j.Table)
	}

	right := j.OnColumn
	if !strings.Contains(right, ".") {
		right = base + "." + right
	}
	return kind + target + " ON " + c.d.QuoteIdent(j.Name()+"."+j.Column) + " = " + c.d.QuoteIdent(right), nil
}

func (c *compilation) compileInsert(s *queryir.Insert) (string, error) {
	keys := s.Values.Keys()
	cols := make([]string, len(keys))
	marks := make([]string, len(keys))
	for i, k := range keys {
		cols[i] = c.d.QuoteIdent(k)
		marks[i] = c.bind(s.Values.Value(k))
	}
	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		c.d.QuoteIdent(s.Table),
		strings.Join(cols, ", "),
		strings.Join(marks, ", "))
	if s.Returning != "" && c.d.Returning {
		sql += " RETURNING " + c.d.QuoteIdent(s.Returning)
	}
	return sql, nil
}

func (c *compilation) compileUpdate(s *queryir.Update) (string, error) {
	keys := s.Values.Keys()
	sets := make([]string, len(keys))
	for i, k := range keys {
		sets[i] = c.d.QuoteIdent(k) + " = " + c.bind(s.Values.Value(k))
	}
	sql := "UPDATE " + c.d.QuoteIdent(s.Table) + " SET " + strings.Join(sets, ", ")
	if s.Filter != nil {
		where, err := c.compilePredicate(s.Filter)
		if err != nil {
			return "", fmt.Errorf("compile filter: %w", err)
		}
		sql += " WHERE " + where
	}
	return sql, nil
}

func (c *compilation) compileDelete(s *queryir.Delete) (string, error) {
	sql := "DELETE FROM " + c.d.QuoteIdent(s.Table)
	if s.Filter != nil {
		where, err := c.compilePredicate(s.Filter)
		if err != nil {
			return "", fmt.Errorf("compile filter: %w", err)
		}
		sql += " WHERE " + where
	}
	return sql, nil
}

// compilePredicate compiles a predicate to a WHERE fragment.
// CRITICAL: Values NEVER interpolated - always placeholders.
func (c *compilation) compilePredicate(p queryir.Predicate) (string, error) {
	switch pred := p.(type) {
	case nil:
		return "1 = 1", nil
	case queryir.Equals:
		if ir.IsNull(pred.Value) {
			return c.d.QuoteIdent(pred.Column) + " IS NULL", nil
		}
		return c.d.QuoteIdent(pred.Column) + " = " + c.bind(pred.Value), nil
	case queryir.NotEquals:
		if ir.IsNull(pred.Value) {
			return c.d.QuoteIdent(pred.Column) + " IS NOT NULL", nil
		}
		return c.d.QuoteIdent(pred.Column) + " != " + c.bind(pred.Value), nil
	case queryir.Compare:
		return c.d.QuoteIdent(pred.Column) + " " + string(pred.Op) + " " + c.bind(pred.Value), nil
	case queryir.IsNull:
		return c.d.QuoteIdent(pred.Column) + " IS NULL", nil
	case queryir.IsNotNull:
		return c.d.QuoteIdent(pred.Column) + " IS NOT NULL", nil
	case queryir.In:
		if len(pred.Values) == 0 {
			return "1 = 0", nil
		}
		return c.d.QuoteIdent(pred.Column) + " IN (" + c.bindList(pred.Values) + ")", nil
	case queryir.NotIn:
		if len(pred.Values) == 0 {
			return "1 = 1", nil
		}
		return c.d.QuoteIdent(pred.Column) + " NOT IN (" + c.bindList(pred.Values) + ")", nil
	case queryir.And:
		return c.compileGroup(pred.Predicates, " AND ", "1 = 1")
	case queryir.Or:
		return c.compileGroup(pred.Predicates, " OR ", "1 = 0")
	default:
		return "", fmt.Errorf("unsupported predicate type: %T", p)
	}
}

func (c *compilation) bindList(values []ir.Value) string {
	marks := make([]string, len(values))
	for i, v := range values {
		marks[i] = c.bind(v)
	}
	return strings.Join(marks, ", ")
}

// compileGroup joins sub-predicates. Nested groups are parenthesized so
// AND/OR precedence follows the tree.
func (c *compilation) compileGroup(preds []queryir.Predicate, sep, empty string) (string, error) {
	if len(preds) == 0 {
		return empty, nil
	}
	parts := make([]string, 0, len(preds))
	for _, p := range preds {
		sql, err := c.compilePredicate(p)
		if err != nil {
			return "", err
		}
		switch p.(type) {
		case queryir.And, queryir.Or:
			if len(preds) > 1 {
				sql = "(" + sql + ")"
			}
		}
		parts = append(parts, sql)
	}
	return strings.Join(parts, sep), nil
}

// toParam converts an ir scalar to a database/sql parameter.
func toParam(v ir.Value) any {
	return ir.ToAny(v)
}
