package schemafile

import (
	_ "embed"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

//go:embed schema.cue
var documentSchema string

// ParseCUE compiles a CUE (or JSON) document, checks it against the
// document schema and reads it into a Document. filename is only used
// in error positions.
func ParseCUE(data []byte, filename string) (*Document, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(documentSchema, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile document schema: %w", err)
	}

	v := ctx.CompileBytes(data, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	v = schema.LookupPath(cue.ParsePath("#Document")).Unify(v)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	return compileDocument(v)
}

func compileDocument(v cue.Value) (*Document, error) {
	doc := &Document{Definitions: map[string]*DefinitionSpec{}}

	iter, err := v.LookupPath(cue.ParsePath("definitions")).Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		spec, err := compileDefinition(iter.Value())
		if err != nil {
			return nil, err
		}
		doc.Definitions[iter.Label()] = spec
	}
	return doc, nil
}

func compileDefinition(v cue.Value) (*DefinitionSpec, error) {
	spec := &DefinitionSpec{}
	var err error

	if spec.Table, err = lookupString(v, "table"); err != nil {
		return nil, err
	}
	if spec.PrimaryKey, err = lookupStrings(v, "primary_key"); err != nil {
		return nil, err
	}
	if spec.Columns, err = lookupStrings(v, "columns"); err != nil {
		return nil, err
	}
	if spec.ReadOnly, err = lookupBool(v, "read_only"); err != nil {
		return nil, err
	}
	if spec.AutoIncrement, err = lookupBool(v, "auto_increment"); err != nil {
		return nil, err
	}
	if spec.DeletionTimestamp, err = lookupString(v, "deletion_timestamp"); err != nil {
		return nil, err
	}
	if spec.CreationData, err = lookupData(v, "creation_data"); err != nil {
		return nil, err
	}
	if spec.ModificationData, err = lookupData(v, "modification_data"); err != nil {
		return nil, err
	}
	if spec.DeletionData, err = lookupData(v, "deletion_data"); err != nil {
		return nil, err
	}

	props := v.LookupPath(cue.ParsePath("properties"))
	if props.Exists() {
		iter, err := props.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			prop, err := compileProperty(iter.Value())
			if err != nil {
				return nil, err
			}
			spec.Properties = append(spec.Properties, prop)
		}
	}

	return spec, nil
}

func compileProperty(v cue.Value) (*PropertySpec, error) {
	prop := &PropertySpec{}
	var err error

	if prop.Name, err = lookupString(v, "name"); err != nil {
		return nil, err
	}
	if prop.Kind, err = lookupString(v, "kind"); err != nil {
		return nil, err
	}
	if prop.Definition, err = lookupString(v, "definition"); err != nil {
		return nil, err
	}
	if prop.ForeignColumn, err = lookupString(v, "foreign_column"); err != nil {
		return nil, err
	}
	if prop.LocalColumn, err = lookupString(v, "local_column"); err != nil {
		return nil, err
	}

	join := v.LookupPath(cue.ParsePath("join"))
	if join.Exists() {
		prop.Join = &JoinSpec{}
		if prop.Join.Table, err = lookupString(join, "table"); err != nil {
			return nil, err
		}
		if prop.Join.LocalColumn, err = lookupString(join, "local_column"); err != nil {
			return nil, err
		}
		if prop.Join.ForeignColumn, err = lookupString(join, "foreign_column"); err != nil {
			return nil, err
		}
	}

	return prop, nil
}

// lookupString returns the string at field, or "" when absent.
func lookupString(v cue.Value, field string) (string, error) {
	f := v.LookupPath(cue.ParsePath(field))
	if !f.Exists() {
		return "", nil
	}
	s, err := f.String()
	if err != nil {
		return "", &CompileError{Field: field, Message: err.Error(), Pos: f.Pos()}
	}
	return s, nil
}

func lookupBool(v cue.Value, field string) (bool, error) {
	f := v.LookupPath(cue.ParsePath(field))
	if !f.Exists() {
		return false, nil
	}
	b, err := f.Bool()
	if err != nil {
		return false, &CompileError{Field: field, Message: err.Error(), Pos: f.Pos()}
	}
	return b, nil
}

func lookupStrings(v cue.Value, field string) ([]string, error) {
	f := v.LookupPath(cue.ParsePath(field))
	if !f.Exists() {
		return nil, nil
	}
	iter, err := f.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var out []string
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, &CompileError{Field: field, Message: err.Error(), Pos: iter.Value().Pos()}
		}
		out = append(out, s)
	}
	return out, nil
}

// lookupData decodes an overlay struct into native values.
func lookupData(v cue.Value, field string) (map[string]any, error) {
	f := v.LookupPath(cue.ParsePath(field))
	if !f.Exists() {
		return nil, nil
	}
	var out map[string]any
	if err := f.Decode(&out); err != nil {
		return nil, &CompileError{Field: field, Message: err.Error(), Pos: f.Pos()}
	}
	return out, nil
}

// CompileError is a CUE document error with its source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError keeps the first error of a CUE error list together
// with its position.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return err
}
