package queryir

import (
	"errors"
	"fmt"

	"github.com/roach88/nestmap/internal/ir"
)

// Validate checks that a statement is well formed before compilation.
//
// Rules:
//  1. Every statement names a table
//  2. Insert and Update carry at least one column value
//  3. Values and predicate operands are scalars (never One or Many)
//  4. Joins name a column, and subquery joins carry an alias
//
// All problems are reported together. Validate is a pure function.
func Validate(stmt Statement) error {
	v := &validator{}
	v.validateStatement(stmt)
	return errors.Join(v.problems...)
}

// validator accumulates problems during traversal.
type validator struct {
	problems []error
}

func (v *validator) addProblem(format string, args ...any) {
	v.problems = append(v.problems, fmt.Errorf("queryir: "+format, args...))
}

func (v *validator) validateStatement(stmt Statement) {
	switch s := stmt.(type) {
	case nil:
		v.addProblem("nil statement")
	case *Select:
		v.validateSelect(s)
	case *Insert:
		v.requireTable(s.Table)
		v.validateValues(s.Table, s.Values)
	case *Update:
		v.requireTable(s.Table)
		v.validateValues(s.Table, s.Values)
		v.validatePredicate(s.Filter)
	case *Delete:
		v.requireTable(s.Table)
		v.validatePredicate(s.Filter)
	default:
		v.addProblem("unknown statement type %T", stmt)
	}
}

func (v *validator) requireTable(table string) {
	if table == "" {
		v.addProblem("statement has no table")
	}
}

func (v *validator) validateSelect(s *Select) {
	if s == nil {
		v.addProblem("nil select")
		return
	}
	v.requireTable(s.Table)
	for _, j := range s.Joins {
		if j.Column == "" || j.OnColumn == "" {
			v.addProblem("join on %s needs both columns", j.Name())
		}
		if j.Subquery != nil {
			if j.Alias == "" {
				v.addProblem("subquery join needs an alias")
			}
			v.validateSelect(j.Subquery)
		} else if j.Table == "" {
			v.addProblem("join needs a table or a subquery")
		}
	}
	if s.Limit < 0 || s.Offset < 0 {
		v.addProblem("negative limit or offset")
	}
	v.validatePredicate(s.Filter)
}

func (v *validator) validateValues(table string, values *ir.Record) {
	if values.Len() == 0 {
		v.addProblem("%s: no column values", table)
		return
	}
	for _, k := range values.Keys() {
		if !ir.IsScalar(values.Value(k)) {
			v.addProblem("%s.%s: nested value cannot be stored in a column", table, k)
		}
	}
}

func (v *validator) validatePredicate(p Predicate) {
	switch pred := p.(type) {
	case nil:
	case Equals:
		v.validateOperand(pred.Column, pred.Value)
	case NotEquals:
		v.validateOperand(pred.Column, pred.Value)
	case Compare:
		switch pred.Op {
		case OpGreater, OpGreaterEqual, OpLess, OpLessEqual, OpLike:
		default:
			v.addProblem("unknown operator %q", pred.Op)
		}
		v.validateOperand(pred.Column, pred.Value)
	case IsNull:
		v.requireColumn(pred.Column)
	case IsNotNull:
		v.requireColumn(pred.Column)
	case In:
		for _, val := range pred.Values {
			v.validateOperand(pred.Column, val)
		}
	case NotIn:
		for _, val := range pred.Values {
			v.validateOperand(pred.Column, val)
		}
	case And:
		for _, sub := range pred.Predicates {
			v.validatePredicate(sub)
		}
	case Or:
		for _, sub := range pred.Predicates {
			v.validatePredicate(sub)
		}
	default:
		v.addProblem("unknown predicate type %T", p)
	}
}

func (v *validator) requireColumn(column string) {
	if column == "" {
		v.addProblem("predicate has no column")
	}
}

func (v *validator) validateOperand(column string, value ir.Value) {
	v.requireColumn(column)
	if !ir.IsScalar(value) {
		v.addProblem("%s: operand must be a scalar, got %T", column, value)
	}
}
