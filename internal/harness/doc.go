// Package harness runs YAML scenarios against the mapping engine.
//
// A scenario names a schema document, bootstraps a fresh in-memory
// SQLite database with its setup script and then runs a list of engine
// operations (insert, update, save, remove, find, find_all, count)
// against the definitions of that document:
//
//	name: shop_lifecycle
//	description: Insert a customer and edit an order line
//	schema: ../schemas/shop.yaml
//	setup: |
//	  CREATE TABLE customers (id INTEGER PRIMARY KEY, name TEXT);
//	steps:
//	  - op: insert
//	    definition: customers
//	    record: {id: 1, name: Ada}
//	  - op: find
//	    definition: customers
//	    where: {id: 1}
//	    expect:
//	      record: {name: Ada}
//	assertions:
//	  - type: row_count
//	    table: customers
//	    count: 1
//
// Every step is recorded in the trace with the write statements it
// issued and the value it returned, so a whole run can be compared
// against a golden file (see RunWithGolden). The clock and operation ids
// are fixed, which keeps traces and soft-delete stamps reproducible.
//
// Assertions check the final table contents (final_state, row_count)
// and the SQL the engine emitted (statement_contains, statement_order,
// statement_count).
package harness
