package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario defines one harness run.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Schema is the path of the schema document (YAML or CUE) holding
	// the definitions the steps refer to. Relative paths are resolved
	// against the scenario file.
	Schema string `yaml:"schema"`

	// Setup is a SQL script run before the first step. It creates the
	// tables and any seed rows.
	Setup string `yaml:"setup"`

	// Steps are the engine operations to execute, in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final tables and the emitted statements.
	Assertions []Assertion `yaml:"assertions,omitempty"`

	// OperationID is the fixed operation id used in engine logs.
	OperationID string `yaml:"operation_id,omitempty"`
}

// Step is one engine operation.
type Step struct {
	// Op is one of insert, update, save, remove, find, find_all, count.
	Op string `yaml:"op"`

	// Definition names the definition in the schema document.
	Definition string `yaml:"definition"`

	// Record is the aggregate passed to insert, update and save.
	Record map[string]any `yaml:"record,omitempty"`

	// Where holds equality filters for remove, find, find_all and count.
	Where map[string]any `yaml:"where,omitempty"`

	// Expect validates the step's outcome. If nil, the step must succeed.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect describes the expected outcome of a step.
type Expect struct {
	// Error is the expected error class: validation, not_found,
	// cardinality, constraint or transaction.
	Error string `yaml:"error,omitempty"`

	// Record is matched against the returned aggregate. Only the listed
	// keys are checked; nested lists must have the same length.
	Record map[string]any `yaml:"record,omitempty"`

	// Records is matched element-wise against find_all results.
	Records []map[string]any `yaml:"records,omitempty"`

	// Count is the expected count or number of removed aggregates.
	Count *int64 `yaml:"count,omitempty"`

	// Empty expects find to return no aggregate.
	Empty bool `yaml:"empty,omitempty"`
}

// Assertion validates the final state or the statement trace.
type Assertion struct {
	// Type is one of final_state, row_count, statement_contains,
	// statement_order or statement_count.
	Type string `yaml:"type"`

	// Table is the table to query (final_state, row_count).
	Table string `yaml:"table,omitempty"`

	// Where holds equality filters for the query (final_state,
	// row_count).
	Where map[string]any `yaml:"where,omitempty"`

	// Expect holds column values of the single matching row
	// (final_state). Subset match.
	Expect map[string]any `yaml:"expect,omitempty"`

	// Count is the expected number of rows (row_count) or matching
	// statements (statement_count).
	Count int `yaml:"count,omitempty"`

	// Statement is a statement prefix (statement_contains,
	// statement_count).
	Statement string `yaml:"statement,omitempty"`

	// Statements are prefixes that must match in order
	// (statement_order).
	Statements []string `yaml:"statements,omitempty"`
}

// Step operations.
const (
	OpInsert  = "insert"
	OpUpdate  = "update"
	OpSave    = "save"
	OpRemove  = "remove"
	OpFind    = "find"
	OpFindAll = "find_all"
	OpCount   = "count"
)

// Assertion type constants.
const (
	AssertFinalState        = "final_state"
	AssertRowCount          = "row_count"
	AssertStatementContains = "statement_contains"
	AssertStatementOrder    = "statement_order"
	AssertStatementCount    = "statement_count"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	// Resolve the schema path BEFORE validation
	if scenario.Schema != "" && !filepath.IsAbs(scenario.Schema) {
		scenario.Schema = filepath.Join(filepath.Dir(path), scenario.Schema)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.Schema == "" {
		return fmt.Errorf("schema is required")
	}
	if _, err := os.Stat(s.Schema); os.IsNotExist(err) {
		return fmt.Errorf("schema file not found: %s", s.Schema)
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

func validateStep(index int, s *Step) error {
	if s.Definition == "" {
		return fmt.Errorf("steps[%d]: definition is required", index)
	}

	switch s.Op {
	case OpInsert, OpUpdate, OpSave:
		if s.Record == nil {
			return fmt.Errorf("steps[%d]: record is required for %s", index, s.Op)
		}
	case OpRemove, OpFind, OpFindAll, OpCount:
		if s.Record != nil {
			return fmt.Errorf("steps[%d]: record is not allowed for %s (use where)", index, s.Op)
		}
	case "":
		return fmt.Errorf("steps[%d]: op is required", index)
	default:
		return fmt.Errorf("steps[%d]: unknown op %q", index, s.Op)
	}

	if s.Expect != nil && s.Expect.Error != "" && !validErrorClass(s.Expect.Error) {
		return fmt.Errorf("steps[%d].expect: unknown error class %q", index, s.Expect.Error)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertFinalState:
		if a.Table == "" {
			return fmt.Errorf("assertions[%d]: table is required for final_state", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	case AssertRowCount:
		if a.Table == "" {
			return fmt.Errorf("assertions[%d]: table is required for row_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for row_count", index)
		}
	case AssertStatementContains:
		if a.Statement == "" {
			return fmt.Errorf("assertions[%d]: statement is required for statement_contains", index)
		}
	case AssertStatementOrder:
		if len(a.Statements) == 0 {
			return fmt.Errorf("assertions[%d]: statements list is required for statement_order", index)
		}
	case AssertStatementCount:
		if a.Statement == "" {
			return fmt.Errorf("assertions[%d]: statement is required for statement_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for statement_count", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
