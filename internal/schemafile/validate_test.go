package schemafile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func codes(errs []ValidationError) []string {
	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = e.Code
	}
	return out
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		doc   *Document
		codes []string
	}{
		{
			name:  "nil document",
			doc:   nil,
			codes: []string{ErrNoDefinitions},
		},
		{
			name:  "no definitions",
			doc:   &Document{},
			codes: []string{ErrNoDefinitions},
		},
		{
			name: "valid",
			doc: &Document{Definitions: map[string]*DefinitionSpec{
				"a": {Properties: []*PropertySpec{{Name: "b", Kind: "many", Definition: "b", ForeignColumn: "a_id"}}},
				"b": {},
			}},
		},
		{
			name: "unknown definition",
			doc: &Document{Definitions: map[string]*DefinitionSpec{
				"a": {Properties: []*PropertySpec{{Name: "b", Kind: "many", Definition: "b", ForeignColumn: "a_id"}}},
			}},
			codes: []string{ErrUnknownDefinition},
		},
		{
			name: "invalid kind",
			doc: &Document{Definitions: map[string]*DefinitionSpec{
				"a": {Properties: []*PropertySpec{{Name: "b", Kind: "several", Definition: "a", ForeignColumn: "a_id"}}},
			}},
			codes: []string{ErrInvalidKind},
		},
		{
			name: "missing fields",
			doc: &Document{Definitions: map[string]*DefinitionSpec{
				"a": {Properties: []*PropertySpec{{Kind: "one"}}},
			}},
			codes: []string{ErrMissingField, ErrMissingField, ErrMissingField},
		},
		{
			name: "composite auto increment",
			doc: &Document{Definitions: map[string]*DefinitionSpec{
				"a": {PrimaryKey: []string{"x", "y"}, AutoIncrement: true},
			}},
			codes: []string{ErrCompositeAutoIncrement},
		},
		{
			name: "nested overlay value",
			doc: &Document{Definitions: map[string]*DefinitionSpec{
				"a": {CreationData: map[string]any{"meta": map[string]any{"x": 1}}},
			}},
			codes: []string{ErrInvalidData},
		},
		{
			name: "duplicate property",
			doc: &Document{Definitions: map[string]*DefinitionSpec{
				"a": {Properties: []*PropertySpec{
					{Name: "b", Kind: "one", Definition: "a", ForeignColumn: "x"},
					{Name: "b", Kind: "many", Definition: "a", ForeignColumn: "y"},
				}},
			}},
			codes: []string{ErrDuplicateProperty},
		},
		{
			name: "join on a one edge",
			doc: &Document{Definitions: map[string]*DefinitionSpec{
				"a": {Properties: []*PropertySpec{{
					Name: "b", Kind: "one", Definition: "a", ForeignColumn: "id",
					Join: &JoinSpec{Table: "links", LocalColumn: "b_id", ForeignColumn: "a_id"},
				}}},
			}},
			codes: []string{ErrInvalidJoin},
		},
		{
			name: "incomplete join",
			doc: &Document{Definitions: map[string]*DefinitionSpec{
				"a": {Properties: []*PropertySpec{{
					Name: "b", Kind: "many", Definition: "a", ForeignColumn: "id",
					Join: &JoinSpec{Table: "links"},
				}}},
			}},
			codes: []string{ErrInvalidJoin},
		},
		{
			name: "empty definition",
			doc: &Document{Definitions: map[string]*DefinitionSpec{
				"a": nil,
			}},
			codes: []string{ErrMissingField},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := Validate(tt.doc)
			if len(tt.codes) == 0 {
				assert.Empty(t, errs)
				return
			}
			assert.Equal(t, tt.codes, codes(errs))
		})
	}
}

func TestValidate_CollectsAcrossDefinitions(t *testing.T) {
	doc := &Document{Definitions: map[string]*DefinitionSpec{
		"b": {PrimaryKey: []string{"x", "y"}, AutoIncrement: true},
		"a": {Properties: []*PropertySpec{{Name: "c", Kind: "many", Definition: "c", ForeignColumn: "a_id"}}},
	}}

	errs := Validate(doc)
	require.Len(t, errs, 2)
	assert.Equal(t, "definitions.a.properties[0].definition", errs[0].Field)
	assert.Equal(t, "definitions.b.auto_increment", errs[1].Field)
}

func TestValidationError_Error(t *testing.T) {
	err := ValidationError{Field: "definitions.a", Message: "broken", Code: ErrMissingField}
	assert.Equal(t, "[E203] definitions.a: broken", err.Error())
}
