package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"

	"github.com/roach88/nestmap/internal/engine"
	"github.com/roach88/nestmap/internal/ir"
	"github.com/roach88/nestmap/internal/schemafile"
	"github.com/roach88/nestmap/internal/store"
	"github.com/roach88/nestmap/internal/testutil"
)

// DefaultOperationID is used when a scenario does not set one.
const DefaultOperationID = "test-op-default"

// Harness is the scenario execution engine.
// It runs steps with a stepping clock and fixed operation ids.
type Harness struct {
	db     *store.DB
	mapper *engine.Mapper
	defs   *schemafile.Set
	logger *slog.Logger
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
//
// Execution flow:
// 1. Load the schema document
// 2. Create a fresh in-memory database and run the setup script
// 3. Execute steps, checking each expect clause
// 4. Evaluate assertions against the final state and trace
func Run(scenario *Scenario) (*Result, error) {
	defs, err := schemafile.Load(scenario.Schema)
	if err != nil {
		return nil, fmt.Errorf("failed to load schema: %w", err)
	}

	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // Suppress logs in runs

	db, err := store.Open(ctx, store.Config{
		Driver:        "sqlite3",
		DSN:           ":memory:",
		LogStatements: true,
		Logger:        logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer db.Close()

	if err := db.Exec(ctx, scenario.Setup); err != nil {
		return nil, fmt.Errorf("failed to execute setup: %w", err)
	}

	opID := scenario.OperationID
	if opID == "" {
		opID = DefaultOperationID
	}

	h := &Harness{
		db: db,
		mapper: engine.New(db,
			engine.WithLogger(logger),
			engine.WithClock(testutil.NewSteppingClock()),
			engine.WithOperationIDs(testutil.NewFixedOperationID(opID)),
		),
		defs:   defs,
		logger: logger,
	}

	result := NewResult()
	for i, step := range scenario.Steps {
		if err := h.executeStep(ctx, i, step, result); err != nil {
			return nil, err
		}
	}

	actx := &AssertionContext{DB: db, Ctx: ctx}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}

	return result, nil
}

// executeStep runs one step, records it in the trace and checks its
// expect clause. Only harness failures (unknown definition, bad
// arguments) are returned as errors; engine errors are step outcomes.
func (h *Harness) executeStep(ctx context.Context, index int, step Step, result *Result) error {
	def, ok := h.defs.Lookup(step.Definition)
	if !ok {
		return fmt.Errorf("steps[%d]: unknown definition %q", index, step.Definition)
	}

	var record *ir.Record
	if step.Record != nil {
		rec, err := ir.FromMap(step.Record)
		if err != nil {
			return fmt.Errorf("steps[%d]: invalid record: %w", index, err)
		}
		record = rec
	}

	mapping := h.mapper.Mapping(def)
	for _, col := range sortedKeys(step.Where) {
		mapping.Eq(col, step.Where[col])
	}

	h.db.ResetStatements()

	var (
		output any
		err    error
	)
	switch step.Op {
	case OpInsert:
		output, err = mapping.Insert(ctx, record)
	case OpUpdate:
		output, err = mapping.Update(ctx, record)
	case OpSave:
		output, err = mapping.Save(ctx, record)
	case OpRemove:
		output, err = mapping.Remove(ctx)
	case OpFind:
		output, err = mapping.FindOne(ctx)
	case OpFindAll:
		output, err = mapping.FindAll(ctx)
	case OpCount:
		output, err = mapping.Count(ctx)
	default:
		return fmt.Errorf("steps[%d]: unknown op %q", index, step.Op)
	}

	ev := TraceEvent{
		Op:         step.Op,
		Definition: step.Definition,
		Statements: writeStatements(h.db.Statements()),
	}
	if err != nil {
		ev.Error = errorClass(err)
	} else {
		ev.Output = outputValue(output)
	}
	result.AddTrace(ev)

	h.logger.Info("step completed", "step", index, "op", step.Op, "definition", step.Definition, "error", ev.Error)

	for _, msg := range checkExpect(step, output, err) {
		result.AddError(fmt.Sprintf("steps[%d] (%s %s): %s", index, step.Op, step.Definition, msg))
	}
	return nil
}

// writeStatements renders every statement except reads.
func writeStatements(stmts []store.Statement) []string {
	var out []string
	for _, s := range stmts {
		if strings.HasPrefix(s.SQL, "SELECT") {
			continue
		}
		out = append(out, s.String())
	}
	return out
}

// Error classes reported in traces and matched by expect clauses.
const (
	ErrorValidation  = "validation"
	ErrorNotFound    = "not_found"
	ErrorCardinality = "cardinality"
	ErrorConstraint  = "constraint"
	ErrorTransaction = "transaction"
	ErrorOther       = "error"
)

func validErrorClass(class string) bool {
	return slices.Contains([]string{
		ErrorValidation, ErrorNotFound, ErrorCardinality,
		ErrorConstraint, ErrorTransaction, ErrorOther,
	}, class)
}

// errorClass classifies an engine error.
func errorClass(err error) string {
	switch {
	case engine.IsValidation(err):
		return ErrorValidation
	case engine.IsNotFound(err):
		return ErrorNotFound
	case engine.IsCardinality(err):
		return ErrorCardinality
	case engine.IsConstraintViolation(err):
		return ErrorConstraint
	case engine.IsTransactionError(err):
		return ErrorTransaction
	default:
		return ErrorOther
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
