package harness

import (
	"fmt"

	"github.com/roach88/nestmap/internal/ir"
)

// checkExpect compares a step's outcome with its expect clause and
// returns one message per mismatch. Without an expect clause the step
// must succeed.
func checkExpect(step Step, output any, err error) []string {
	exp := step.Expect
	if exp == nil {
		exp = &Expect{}
	}

	if exp.Error != "" {
		if err == nil {
			return []string{fmt.Sprintf("expected %s error, got success", exp.Error)}
		}
		if got := errorClass(err); got != exp.Error {
			return []string{fmt.Sprintf("expected %s error, got %s: %v", exp.Error, got, err)}
		}
		return nil
	}
	if err != nil {
		return []string{fmt.Sprintf("unexpected error: %v", err)}
	}

	var msgs []string
	switch out := output.(type) {
	case *ir.Record:
		if exp.Empty && out != nil {
			msgs = append(msgs, fmt.Sprintf("expected no result, got %s", out))
		}
		if exp.Record != nil {
			msgs = append(msgs, matchExpected("record", out, exp.Record)...)
		}
	case []*ir.Record:
		if exp.Empty && len(out) > 0 {
			msgs = append(msgs, fmt.Sprintf("expected no results, got %d", len(out)))
		}
		if exp.Records != nil {
			if len(out) != len(exp.Records) {
				msgs = append(msgs, fmt.Sprintf("expected %d records, got %d", len(exp.Records), len(out)))
				break
			}
			for i, want := range exp.Records {
				msgs = append(msgs, matchExpected(fmt.Sprintf("records[%d]", i), out[i], want)...)
			}
		}
	case int64:
		if exp.Count != nil && out != *exp.Count {
			msgs = append(msgs, fmt.Sprintf("expected count %d, got %d", *exp.Count, out))
		}
	case int:
		if exp.Count != nil && int64(out) != *exp.Count {
			msgs = append(msgs, fmt.Sprintf("expected %d removed, got %d", *exp.Count, out))
		}
	}
	return msgs
}

func matchExpected(path string, actual *ir.Record, expected map[string]any) []string {
	if actual == nil {
		return []string{fmt.Sprintf("%s: expected a record, got none", path)}
	}
	want, err := ir.FromMap(expected)
	if err != nil {
		return []string{fmt.Sprintf("%s: invalid expectation: %v", path, err)}
	}
	return matchRecord(path, actual, want)
}

// matchRecord checks that every key of want is present in actual with a
// loosely equal value. Nested one edges recurse; many edges must have the
// same length and match element-wise.
func matchRecord(path string, actual, want *ir.Record) []string {
	var msgs []string
	for _, k := range want.Keys() {
		field := path + "." + k
		got, ok := actual.Get(k)
		if !ok {
			msgs = append(msgs, fmt.Sprintf("%s: missing", field))
			continue
		}

		switch w := want.Value(k).(type) {
		case ir.Null:
			if g, ok := got.(ir.One); ok && g.Record == nil {
				continue
			}
			if !ir.IsNull(got) {
				msgs = append(msgs, fmt.Sprintf("%s = %s, want null", field, ir.Format(got)))
			}
		case ir.One:
			g, ok := got.(ir.One)
			switch {
			case !ok:
				msgs = append(msgs, fmt.Sprintf("%s: expected a nested record, got %s", field, ir.Format(got)))
			case w.Record == nil || g.Record == nil:
				if w.Record != g.Record {
					msgs = append(msgs, fmt.Sprintf("%s = %s, want %s", field, ir.Format(got), ir.Format(w)))
				}
			default:
				msgs = append(msgs, matchRecord(field, g.Record, w.Record)...)
			}
		case ir.Many:
			g, ok := got.(ir.Many)
			if !ok {
				msgs = append(msgs, fmt.Sprintf("%s: expected a list, got %s", field, ir.Format(got)))
				continue
			}
			if len(g) != len(w) {
				msgs = append(msgs, fmt.Sprintf("%s: expected %d items, got %d", field, len(w), len(g)))
				continue
			}
			for i := range w {
				msgs = append(msgs, matchRecord(fmt.Sprintf("%s[%d]", field, i), g[i], w[i])...)
			}
		default:
			if !ir.IsScalar(got) || !ir.LooselyEqual(w, got) {
				msgs = append(msgs, fmt.Sprintf("%s = %s, want %s", field, ir.Format(got), ir.Format(w)))
			}
		}
	}
	return msgs
}
