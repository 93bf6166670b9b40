package schemafile

import (
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCUE_MatchesYAML(t *testing.T) {
	yamlData, err := os.ReadFile("testdata/shop.yaml")
	require.NoError(t, err)
	cueData, err := os.ReadFile("testdata/shop.cue")
	require.NoError(t, err)

	fromYAML, err := ParseYAML(yamlData)
	require.NoError(t, err)
	fromCUE, err := ParseCUE(cueData, "shop.cue")
	require.NoError(t, err)

	assert.Equal(t, fromYAML, fromCUE)
}

func TestParseCUE_JSON(t *testing.T) {
	data := []byte(`{
  "definitions": {
    "notes": {
      "columns": ["body"],
      "deletion_timestamp": "deleted_at",
      "deletion_data": {"deleted_by": "cleanup", "reason": null}
    }
  }
}`)

	doc, err := ParseCUE(data, "notes.json")
	require.NoError(t, err)

	notes := doc.Definitions["notes"]
	require.NotNil(t, notes)
	assert.Equal(t, []string{"body"}, notes.Columns)
	assert.Equal(t, "deleted_at", notes.DeletionTimestamp)
	assert.Equal(t, map[string]any{"deleted_by": "cleanup", "reason": nil}, notes.DeletionData)
}

func TestParseCUE_Join(t *testing.T) {
	data := []byte(`definitions: {
	posts: properties: [{
		name:           "tags"
		kind:           "many"
		definition:     "tags"
		foreign_column: "id"
		join: {table: "post_tags", foreign_column: "post_id", local_column: "tag_id"}
	}]
	tags: columns: ["label"]
}`)

	doc, err := ParseCUE(data, "blog.cue")
	require.NoError(t, err)

	prop := doc.Definitions["posts"].Properties[0]
	require.NotNil(t, prop.Join)
	assert.Equal(t, "post_tags", prop.Join.Table)
	assert.Equal(t, "post_id", prop.Join.ForeignColumn)
	assert.Equal(t, "tag_id", prop.Join.LocalColumn)
}

func TestParseCUE_SchemaViolations(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"unknown field", `definitions: items: colums: ["name"]`},
		{"bad kind", `definitions: a: properties: [{name: "b", kind: "some", definition: "a", foreign_column: "a_id"}]`},
		{"nested overlay", `definitions: a: creation_data: meta: {x: 1}`},
		{"missing foreign column", `definitions: a: properties: [{name: "b", kind: "one", definition: "a"}]`},
		{"unknown top level", `tables: {}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCUE([]byte(tt.src), "bad.cue")
			require.Error(t, err)
		})
	}
}

func TestParseCUE_ErrorPosition(t *testing.T) {
	_, err := ParseCUE([]byte("definitions: {\n\titems: colums: [\"name\"]\n}\n"), "bad.cue")
	require.Error(t, err)

	var ce *CompileError
	require.True(t, errors.As(err, &ce), "expected CompileError, got %T", err)
	assert.True(t, ce.Pos.IsValid())
	assert.Contains(t, err.Error(), "colums")
}

func TestParseCUE_Syntax(t *testing.T) {
	_, err := ParseCUE([]byte("definitions: {"), "broken.cue")
	require.Error(t, err)
}
