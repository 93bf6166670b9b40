package schemafile

import "sort"

// Document is the parsed form of a schema file, before any reference is
// resolved.
type Document struct {
	Definitions map[string]*DefinitionSpec `yaml:"definitions"`
}

// DefinitionSpec describes one table mapping.
type DefinitionSpec struct {
	// Table defaults to the definition's name.
	Table string `yaml:"table"`

	// PrimaryKey defaults to [id].
	PrimaryKey []string `yaml:"primary_key"`

	Columns           []string        `yaml:"columns"`
	ReadOnly          bool            `yaml:"read_only"`
	AutoIncrement     bool            `yaml:"auto_increment"`
	DeletionTimestamp string          `yaml:"deletion_timestamp"`
	CreationData      map[string]any  `yaml:"creation_data"`
	ModificationData  map[string]any  `yaml:"modification_data"`
	DeletionData      map[string]any  `yaml:"deletion_data"`
	Properties        []*PropertySpec `yaml:"properties"`
}

// PropertySpec describes one edge to another definition.
type PropertySpec struct {
	Name          string    `yaml:"name"`
	Kind          string    `yaml:"kind"`
	Definition    string    `yaml:"definition"`
	ForeignColumn string    `yaml:"foreign_column"`
	LocalColumn   string    `yaml:"local_column"`
	Join          *JoinSpec `yaml:"join"`
}

// JoinSpec routes a many edge through a link table. ForeignColumn holds
// the parent key, LocalColumn the child key.
type JoinSpec struct {
	Table         string `yaml:"table"`
	LocalColumn   string `yaml:"local_column"`
	ForeignColumn string `yaml:"foreign_column"`
}

// Names returns the definition names in sorted order.
func (d *Document) Names() []string {
	names := make([]string, 0, len(d.Definitions))
	for name := range d.Definitions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
