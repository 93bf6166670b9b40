// Package schemafile loads mapping definitions from YAML or CUE
// documents and builds them into schema.Definitions.
//
// A document names every definition once under "definitions"; edges
// refer to other definitions by that name, so recursive and mutually
// recursive trees need no special syntax:
//
//	definitions:
//	  customers:
//	    columns: [name]
//	    properties:
//	      - {name: orders, kind: many, definition: orders, foreign_column: customer_id}
//	  orders:
//	    columns: [date_created]
//
// Loading is two-phase. Every definition is created first and edges are
// attached afterwards, so a property may reference a definition declared
// later in the document (or its own definition).
//
// CUE documents are checked against the schema in schema.cue before
// they are read, which rejects unknown fields with source positions.
// YAML documents get the same check through yaml.v3's KnownFields.
package schemafile
