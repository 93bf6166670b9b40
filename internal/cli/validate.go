package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/nestmap/internal/schema"
	"github.com/roach88/nestmap/internal/schemafile"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid       bool                         `json:"valid"`
	Definitions []DefinitionSummary          `json:"definitions,omitempty"`
	Errors      []schemafile.ValidationError `json:"errors,omitempty"`
}

// DefinitionSummary describes one loaded definition.
type DefinitionSummary struct {
	Name       string            `json:"name"`
	Table      string            `json:"table"`
	PrimaryKey []string          `json:"primary_key"`
	Columns    []string          `json:"columns,omitempty"`
	ReadOnly   bool              `json:"read_only,omitempty"`
	Properties []PropertySummary `json:"properties,omitempty"`
}

// PropertySummary describes one edge of a definition.
type PropertySummary struct {
	Name          string `json:"name"`
	Kind          string `json:"kind"`
	Table         string `json:"table"`
	ForeignColumn string `json:"foreign_column"`
	LocalColumn   string `json:"local_column"`
	JoinTable     string `json:"join_table,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [schema-file]",
		Short: "Validate a schema document",
		Long: `Load a YAML or CUE schema document and report every problem found:
syntax errors, unknown fields, properties referencing missing
definitions, and invalid keys. No database connection is made.

Without an argument the configured schema (--schema, nestmap.toml or
NESTMAP_SCHEMA) is validated.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			return runValidate(rootOpts, path, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	if path == "" {
		settings, err := opts.Resolve()
		if err != nil {
			return outputValidateError(formatter, ErrCodeConfig, err.Error(), nil)
		}
		if settings.Schema == "" {
			return outputValidateError(formatter, ErrCodeConfig, "no schema given", nil)
		}
		path = settings.Schema
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return outputValidateError(formatter, ErrCodeNotFound, fmt.Sprintf("schema not found: %s", path), nil)
		}
		return outputValidateError(formatter, ErrCodeGeneric, err.Error(), nil)
	}

	formatter.VerboseLog("Validating %s", path)

	doc, err := schemafile.Parse(data, path)
	if err != nil {
		return outputValidationErrors(formatter, []schemafile.ValidationError{{
			Field:   "document",
			Message: err.Error(),
			Code:    ErrCodeSchema,
		}})
	}

	if verrs := schemafile.Validate(doc); len(verrs) > 0 {
		return outputValidationErrors(formatter, verrs)
	}

	set, err := schemafile.Build(doc)
	if err != nil {
		return outputValidationErrors(formatter, []schemafile.ValidationError{{
			Field:   "definitions",
			Message: err.Error(),
			Code:    ErrCodeSchema,
		}})
	}

	return outputValidateSuccess(formatter, summarize(set))
}

// summarize lists the definitions of a set in name order.
func summarize(set *schemafile.Set) []DefinitionSummary {
	names := set.Names()
	out := make([]DefinitionSummary, 0, len(names))
	for _, name := range names {
		def, _ := set.Lookup(name)
		sum := DefinitionSummary{
			Name:       name,
			Table:      def.Table(),
			PrimaryKey: def.PrimaryKey(),
			Columns:    def.Columns(),
			ReadOnly:   def.IsReadOnly(),
		}
		for _, p := range def.Properties() {
			sum.Properties = append(sum.Properties, summarizeProperty(p))
		}
		out = append(out, sum)
	}
	return out
}

func summarizeProperty(p *schema.Property) PropertySummary {
	return PropertySummary{
		Name:          p.Name(),
		Kind:          p.Cardinality().String(),
		Table:         p.Child().Table(),
		ForeignColumn: p.ForeignColumn(),
		LocalColumn:   p.LocalColumn(),
		JoinTable:     p.JoinTable(),
	}
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, defs []DefinitionSummary) error {
	if formatter.Format == "json" {
		result := ValidationResult{Valid: true, Definitions: defs}
		return formatter.Success(result)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "✓ Schema valid: %d definition(s)\n", len(defs))
	for _, d := range defs {
		fmt.Fprintf(w, "\n%s (table %s, key %s)", d.Name, d.Table, strings.Join(d.PrimaryKey, ", "))
		if d.ReadOnly {
			fmt.Fprint(w, " read-only")
		}
		fmt.Fprintln(w)
		for _, p := range d.Properties {
			via := p.ForeignColumn
			if p.JoinTable != "" {
				via = p.JoinTable
			}
			fmt.Fprintf(w, "  %s: %s %s via %s\n", p.Name, p.Kind, p.Table, via)
		}
	}
	return nil
}

// outputValidateError outputs a single validation error.
func outputValidateError(formatter *OutputFormatter, code, message string, details any) error {
	_ = formatter.Error(code, message, details)
	// Missing inputs are command-level errors (exit code 2)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}

// outputValidationErrors outputs multiple validation errors.
func outputValidationErrors(formatter *OutputFormatter, errs []schemafile.ValidationError) error {
	if formatter.Format == "json" {
		result := ValidationResult{
			Valid:  false,
			Errors: errs,
		}

		response := CLIResponse{
			Status: "error",
			Data:   result,
			Error: &CLIError{
				Code:    errs[0].Code,
				Message: errs[0].Message,
			},
		}

		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}

		// Validation failures = exit code 1 (test/validation failure)
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
	}

	// Text format
	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)

	for _, err := range errs {
		fmt.Fprintf(formatter.Writer, "%s\n", err.Field)
		fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", err.Code, err.Message)
	}

	// Validation failures = exit code 1 (test/validation failure)
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
}
