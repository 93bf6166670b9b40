package engine

import (
	"strings"

	"github.com/roach88/nestmap/internal/queryir"
)

// qualify prefixes a bare column with table. Columns that already name
// a table, and "*", are returned unchanged, so qualify is idempotent.
func qualify(table, column string) string {
	if column == "" || column == "*" || strings.Contains(column, ".") {
		return column
	}
	return table + "." + column
}

func qualifyAll(table string, columns []string) []string {
	if columns == nil {
		return nil
	}
	out := make([]string, len(columns))
	for i, c := range columns {
		out[i] = qualify(table, c)
	}
	return out
}

// qualifier returns a statement decorator that, once a select carries a
// join, qualifies every bare column of its projection, filter, grouping
// and ordering with table. Predicate values are never rewritten.
func qualifier(table string) func(queryir.Statement) queryir.Statement {
	return func(stmt queryir.Statement) queryir.Statement {
		sel, ok := stmt.(*queryir.Select)
		if !ok || len(sel.Joins) == 0 {
			return stmt
		}

		out := *sel
		out.Columns = qualifyAll(table, sel.Columns)
		out.GroupBy = qualifyAll(table, sel.GroupBy)
		out.Filter = queryir.MapColumns(sel.Filter, func(c string) string {
			return qualify(table, c)
		})
		if sel.OrderBy != nil {
			out.OrderBy = make([]queryir.Order, len(sel.OrderBy))
			for i, o := range sel.OrderBy {
				out.OrderBy[i] = queryir.Order{Column: qualify(table, o.Column), Descending: o.Descending}
			}
		}
		return &out
	}
}
