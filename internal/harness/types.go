package harness

import "github.com/roach88/nestmap/internal/ir"

// TraceEvent records one executed step.
type TraceEvent struct {
	Seq        int      `json:"seq"`
	Op         string   `json:"op"`
	Definition string   `json:"definition"`
	Statements []string `json:"statements,omitempty"` // write statements only
	Output     any      `json:"output,omitempty"`
	Error      string   `json:"error,omitempty"` // error class, see errorClass
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every expectation and assertion held.
	Pass bool `json:"pass"`

	// Trace holds the executed steps in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends a step to the trace, numbering it from 1.
func (r *Result) AddTrace(ev TraceEvent) {
	ev.Seq = len(r.Trace) + 1
	r.Trace = append(r.Trace, ev)
}

// Statements returns every traced statement in execution order.
func (r *Result) Statements() []string {
	var out []string
	for _, ev := range r.Trace {
		out = append(out, ev.Statements...)
	}
	return out
}

// canonical converts an event to plain values for ir.MarshalCanonical.
func (ev TraceEvent) canonical() map[string]any {
	m := map[string]any{
		"seq":        ev.Seq,
		"op":         ev.Op,
		"definition": ev.Definition,
	}
	if len(ev.Statements) > 0 {
		stmts := make([]any, len(ev.Statements))
		for i, s := range ev.Statements {
			stmts[i] = s
		}
		m["statements"] = stmts
	}
	if ev.Output != nil {
		m["output"] = ev.Output
	}
	if ev.Error != "" {
		m["error"] = ev.Error
	}
	return m
}

// outputValue normalizes a step's return value for the trace. Nil
// records stay nil so "no match" shows as null.
func outputValue(v any) any {
	switch val := v.(type) {
	case *ir.Record:
		if val == nil {
			return nil
		}
		return val
	default:
		return v
	}
}
