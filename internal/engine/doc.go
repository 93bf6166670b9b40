// Package engine maps nested aggregates onto relational tables.
//
// A Mapper wraps a store.DB and hands out Mappings, each bound to one
// schema.Definition. A Mapping reads whole trees (FindOne, FindAll) and
// writes them back (Insert, Update, Save, Remove).
//
// READ PATH:
//
// The root rows are read with the mapping's filters. Children are then
// fetched one Property at a time for the whole batch: one IN query per
// Property per tree level, never one query per row. Children reached
// through a join table are fetched with an inner join on that table.
//
// WRITE PATH:
//
// Insert writes the root row, fills in the generated id and recurses.
// Update re-reads the stored aggregate and diffs it against the new one
// by the child primary keys: new children are inserted, matched
// children are updated only when a column changed, and missing children
// are queued together with their subtrees. Queued deletions run after
// the diff, deepest level first, one statement per table and key prefix.
// Tables with a deletion column are stamped instead of deleted.
//
// TRANSACTIONS:
//
// Every top-level mutation runs in exactly one transaction. When the
// caller already opened one through Mapper.Begin, mappings join it and
// hooks are held until Mapper.Commit. Any failure rolls the owned
// transaction back and is returned unchanged.
//
// Read-only Definitions are never written, at the root or below it.
package engine
