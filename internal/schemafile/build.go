package schemafile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/roach88/nestmap/internal/ir"
	"github.com/roach88/nestmap/internal/schema"
)

// Set holds the definitions built from one Document, by name.
type Set struct {
	names []string
	defs  map[string]*schema.Definition
}

// Names returns the definition names in sorted order.
func (s *Set) Names() []string {
	return slices.Clone(s.names)
}

// Lookup returns the definition registered under name.
func (s *Set) Lookup(name string) (*schema.Definition, bool) {
	def, ok := s.defs[name]
	return def, ok
}

// Load reads and builds the schema file at path. The format follows the
// extension: .yaml or .yml for YAML, .cue or .json for CUE.
func Load(path string) (*Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}
	doc, err := Parse(data, path)
	if err != nil {
		return nil, err
	}
	return Build(doc)
}

// Parse decodes a document, choosing the format from filename's
// extension.
func Parse(data []byte, filename string) (*Document, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		return ParseYAML(data)
	case ".cue", ".json":
		return ParseCUE(data, filename)
	default:
		return nil, fmt.Errorf("unsupported schema format %q (want .yaml, .yml, .cue or .json)", filepath.Ext(filename))
	}
}

// Build validates doc and turns it into definitions. All definitions are
// created before any edge is attached, so properties may reference
// definitions in any order, including their own.
func Build(doc *Document) (*Set, error) {
	if verrs := Validate(doc); len(verrs) > 0 {
		errs := make([]error, len(verrs))
		for i, e := range verrs {
			errs[i] = e
		}
		return nil, errors.Join(errs...)
	}

	set := &Set{names: doc.Names(), defs: make(map[string]*schema.Definition, len(doc.Definitions))}

	for _, name := range set.names {
		def, err := newDefinition(name, doc.Definitions[name])
		if err != nil {
			return nil, err
		}
		set.defs[name] = def
	}

	for _, name := range set.names {
		def := set.defs[name]
		for _, prop := range doc.Definitions[name].Properties {
			child := set.defs[prop.Definition]
			switch {
			case prop.Join != nil:
				def.WithManyByJoin(child, prop.Name, prop.ForeignColumn, prop.LocalColumn,
					prop.Join.Table, prop.Join.ForeignColumn, prop.Join.LocalColumn)
			case prop.Kind == schema.One.String():
				def.WithOne(child, prop.Name, prop.ForeignColumn, prop.LocalColumn)
			default:
				def.WithMany(child, prop.Name, prop.ForeignColumn, prop.LocalColumn)
			}
		}
	}

	for _, name := range set.names {
		if err := set.defs[name].Validate(); err != nil {
			return nil, fmt.Errorf("definition %s: %w", name, err)
		}
	}
	return set, nil
}

func newDefinition(name string, spec *DefinitionSpec) (*schema.Definition, error) {
	table := spec.Table
	if table == "" {
		table = name
	}

	def := schema.New(table, spec.PrimaryKey...).WithColumns(spec.Columns...)
	if spec.AutoIncrement {
		def.UseAutoIncrement()
	}
	if spec.ReadOnly {
		def.ReadOnly()
	}
	if spec.DeletionTimestamp != "" {
		def.WithDeletionTimestamp(spec.DeletionTimestamp)
	}

	overlays := []struct {
		data  map[string]any
		apply func(...ir.Pair) *schema.Definition
	}{
		{spec.CreationData, def.WithCreationData},
		{spec.ModificationData, def.WithModificationData},
		{spec.DeletionData, def.WithDeletionData},
	}
	for _, o := range overlays {
		pairs, err := dataPairs(o.data)
		if err != nil {
			return nil, fmt.Errorf("definition %s: %w", name, err)
		}
		o.apply(pairs...)
	}
	return def, nil
}
