package schemafile

import (
	"fmt"

	"github.com/roach88/nestmap/internal/ir"
	"github.com/roach88/nestmap/internal/schema"
)

// Validation error codes (E200-E299)
const (
	ErrNoDefinitions          = "E200" // document defines nothing
	ErrUnknownDefinition      = "E201" // property references a missing definition
	ErrInvalidKind            = "E202" // kind is not one or many
	ErrMissingField           = "E203" // required field is empty
	ErrCompositeAutoIncrement = "E204" // auto_increment with a composite key
	ErrInvalidData            = "E205" // overlay value is not a scalar
	ErrDuplicateProperty      = "E206" // two properties share a name
	ErrInvalidJoin            = "E207" // join on a one edge or with missing columns
)

// ValidationError is one problem found in a Document.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks a Document for mistakes that would prevent it from
// being built. Returns all errors found (does not fail-fast), ordered
// by definition name.
func Validate(doc *Document) []ValidationError {
	if doc == nil || len(doc.Definitions) == 0 {
		return []ValidationError{{
			Field:   "definitions",
			Message: "at least one definition is required",
			Code:    ErrNoDefinitions,
		}}
	}

	var errs []ValidationError
	for _, name := range doc.Names() {
		errs = append(errs, validateDefinition(doc, name)...)
	}
	return errs
}

func validateDefinition(doc *Document, name string) []ValidationError {
	spec := doc.Definitions[name]
	field := "definitions." + name
	if spec == nil {
		return []ValidationError{{Field: field, Message: "definition is empty", Code: ErrMissingField}}
	}

	var errs []ValidationError
	if spec.AutoIncrement && len(spec.PrimaryKey) > 1 {
		errs = append(errs, ValidationError{
			Field:   field + ".auto_increment",
			Message: fmt.Sprintf("auto increment needs a single-column primary key, got %v", spec.PrimaryKey),
			Code:    ErrCompositeAutoIncrement,
		})
	}

	for _, overlay := range []struct {
		name string
		data map[string]any
	}{
		{"creation_data", spec.CreationData},
		{"modification_data", spec.ModificationData},
		{"deletion_data", spec.DeletionData},
	} {
		if _, err := dataPairs(overlay.data); err != nil {
			errs = append(errs, ValidationError{
				Field:   field + "." + overlay.name,
				Message: err.Error(),
				Code:    ErrInvalidData,
			})
		}
	}

	seen := map[string]bool{}
	for i, prop := range spec.Properties {
		pfield := fmt.Sprintf("%s.properties[%d]", field, i)
		if prop == nil {
			errs = append(errs, ValidationError{Field: pfield, Message: "property is empty", Code: ErrMissingField})
			continue
		}
		errs = append(errs, validateProperty(doc, pfield, prop)...)
		if prop.Name != "" && seen[prop.Name] {
			errs = append(errs, ValidationError{
				Field:   pfield + ".name",
				Message: fmt.Sprintf("duplicate property %q", prop.Name),
				Code:    ErrDuplicateProperty,
			})
		}
		seen[prop.Name] = true
	}
	return errs
}

func validateProperty(doc *Document, field string, prop *PropertySpec) []ValidationError {
	var errs []ValidationError
	missing := func(sub string) {
		errs = append(errs, ValidationError{Field: field + "." + sub, Message: sub + " is required", Code: ErrMissingField})
	}

	if prop.Name == "" {
		missing("name")
	}
	if prop.ForeignColumn == "" {
		missing("foreign_column")
	}

	kind, err := schema.ParseCardinality(prop.Kind)
	if err != nil {
		errs = append(errs, ValidationError{Field: field + ".kind", Message: err.Error(), Code: ErrInvalidKind})
	}

	switch {
	case prop.Definition == "":
		missing("definition")
	case doc.Definitions[prop.Definition] == nil:
		errs = append(errs, ValidationError{
			Field:   field + ".definition",
			Message: fmt.Sprintf("unknown definition %q", prop.Definition),
			Code:    ErrUnknownDefinition,
		})
	}

	if prop.Join != nil {
		if err == nil && kind != schema.Many {
			errs = append(errs, ValidationError{Field: field + ".join", Message: "join tables need a many edge", Code: ErrInvalidJoin})
		}
		if prop.Join.Table == "" || prop.Join.LocalColumn == "" || prop.Join.ForeignColumn == "" {
			errs = append(errs, ValidationError{Field: field + ".join", Message: "join needs table, local_column and foreign_column", Code: ErrInvalidJoin})
		}
	}
	return errs
}

// dataPairs converts an overlay map into record pairs in sorted key
// order. Only scalar values are allowed.
func dataPairs(data map[string]any) ([]ir.Pair, error) {
	if len(data) == 0 {
		return nil, nil
	}
	rec, err := ir.FromMap(data)
	if err != nil {
		return nil, err
	}
	pairs := make([]ir.Pair, 0, rec.Len())
	for _, k := range rec.Keys() {
		v := rec.Value(k)
		if !ir.IsScalar(v) {
			return nil, fmt.Errorf("key %q: overlay values must be scalars", k)
		}
		pairs = append(pairs, ir.P(k, v))
	}
	return pairs, nil
}
