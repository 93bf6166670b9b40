package harness

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/nestmap/internal/ir"
	"github.com/roach88/nestmap/internal/store"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string   // Assertion type for categorization
	Expected string   // Human-readable expected outcome
	Actual   string   // Human-readable actual outcome
	Trace    []string // Statements for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nStatements:\n")
		for i, stmt := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s\n", i+1, stmt)
		}
	}

	return buf.String()
}

// assertStatementContains checks that some write statement starts with
// the given prefix.
func assertStatementContains(stmts []string, assertion Assertion) error {
	for _, s := range stmts {
		if strings.HasPrefix(s, assertion.Statement) {
			return nil
		}
	}

	return &AssertionError{
		Type:     AssertStatementContains,
		Expected: fmt.Sprintf("statement starting with %q", assertion.Statement),
		Actual:   "not found in trace",
		Trace:    stmts,
	}
}

// assertStatementOrder checks that statements matching the prefixes
// appear in the given order. Matches don't need to be consecutive.
func assertStatementOrder(stmts []string, assertion Assertion) error {
	next := 0
	for _, s := range stmts {
		if next < len(assertion.Statements) && strings.HasPrefix(s, assertion.Statements[next]) {
			next++
		}
	}

	if next < len(assertion.Statements) {
		return &AssertionError{
			Type:     AssertStatementOrder,
			Expected: fmt.Sprintf("statements in order: %q", assertion.Statements),
			Actual:   fmt.Sprintf("no match for %q after the first %d", assertion.Statements[next], next),
			Trace:    stmts,
		}
	}
	return nil
}

// assertStatementCount checks that exactly Count statements start with
// the prefix.
func assertStatementCount(stmts []string, assertion Assertion) error {
	count := 0
	for _, s := range stmts {
		if strings.HasPrefix(s, assertion.Statement) {
			count++
		}
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertStatementCount,
			Expected: fmt.Sprintf("%d statements starting with %q", assertion.Count, assertion.Statement),
			Actual:   fmt.Sprintf("%d statements", count),
			Trace:    stmts,
		}
	}
	return nil
}

// query builds a filtered query on the assertion's table. Column names
// are quoted by the statement compiler, and values are parameters.
func query(db *store.DB, assertion Assertion) *store.Table {
	t := db.Table(assertion.Table)
	for _, col := range sortedKeys(assertion.Where) {
		t.Eq(col, assertion.Where[col])
	}
	return t
}

// assertFinalState checks that exactly one row matches Where and that it
// holds the expected values (subset semantics, loose comparison).
func assertFinalState(ctx context.Context, db *store.DB, assertion Assertion) error {
	rows, err := query(db, assertion).FindAll(ctx)
	if err != nil {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("query table %s", assertion.Table),
			Actual:   fmt.Sprintf("query error: %v", err),
		}
	}

	whereDesc := formatWhereClause(assertion.Where)
	switch len(rows) {
	case 0:
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("row in %s where %s", assertion.Table, whereDesc),
			Actual:   "row not found",
		}
	case 1:
	default:
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("exactly one row in %s where %s", assertion.Table, whereDesc),
			Actual:   fmt.Sprintf("%d rows matched (assertion is ambiguous)", len(rows)),
		}
	}

	row := rows[0]
	for _, key := range sortedKeys(assertion.Expect) {
		actual, ok := row.Get(key)
		if !ok {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("field %q to exist", key),
				Actual:   fmt.Sprintf("field %q not present in result columns: %v", key, row.Keys()),
			}
		}
		if msg := compareScalar(key, assertion.Expect[key], actual); msg != "" {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("row in %s where %s", assertion.Table, whereDesc),
				Actual:   msg,
			}
		}
	}
	return nil
}

// assertRowCount checks the number of rows matching Where.
func assertRowCount(ctx context.Context, db *store.DB, assertion Assertion) error {
	n, err := query(db, assertion).Count(ctx)
	if err != nil {
		return &AssertionError{
			Type:     AssertRowCount,
			Expected: fmt.Sprintf("count table %s", assertion.Table),
			Actual:   fmt.Sprintf("query error: %v", err),
		}
	}
	if n != int64(assertion.Count) {
		return &AssertionError{
			Type:     AssertRowCount,
			Expected: fmt.Sprintf("%d rows in %s where %s", assertion.Count, assertion.Table, formatWhereClause(assertion.Where)),
			Actual:   fmt.Sprintf("%d rows", n),
		}
	}
	return nil
}

// formatWhereClause creates a human-readable description of the filters.
func formatWhereClause(where map[string]any) string {
	if len(where) == 0 {
		return "(no conditions)"
	}

	parts := make([]string, 0, len(where))
	for _, k := range sortedKeys(where) {
		parts = append(parts, fmt.Sprintf("%s=%v", k, where[k]))
	}
	return strings.Join(parts, " AND ")
}

// compareScalar compares an expected YAML value with a stored value.
// Returns "" on a match and a description otherwise.
func compareScalar(path string, expected any, actual ir.Value) string {
	want, err := ir.FromAny(expected)
	if err != nil {
		return fmt.Sprintf("%s: invalid expected value: %v", path, err)
	}
	if !ir.IsScalar(want) {
		return fmt.Sprintf("%s: expected value must be a scalar, got %T", path, expected)
	}
	if !ir.LooselyEqual(want, actual) {
		return fmt.Sprintf("%s = %s, want %s", path, ir.Format(actual), ir.Format(want))
	}
	return ""
}

// AssertionContext provides context for evaluating assertions.
type AssertionContext struct {
	DB  *store.DB
	Ctx context.Context
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
// The actx parameter provides database access for final_state and
// row_count assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string
	stmts := result.Statements()

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertStatementContains:
			err = assertStatementContains(stmts, assertion)
		case AssertStatementOrder:
			err = assertStatementOrder(stmts, assertion)
		case AssertStatementCount:
			err = assertStatementCount(stmts, assertion)
		case AssertFinalState, AssertRowCount:
			if actx == nil || actx.DB == nil {
				err = fmt.Errorf("assertion[%d]: %s requires database context", i, assertion.Type)
			} else if assertion.Type == AssertFinalState {
				err = assertFinalState(actx.Ctx, actx.DB, assertion)
			} else {
				err = assertRowCount(actx.Ctx, actx.DB, assertion)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
