package engine

import (
	"context"

	"github.com/roach88/nestmap/internal/ir"
)

// EventKind identifies a lifecycle event.
type EventKind int

const (
	Inserted EventKind = iota
	Updated
	Removed
)

// String returns the event name.
func (k EventKind) String() string {
	switch k {
	case Inserted:
		return "inserted"
	case Updated:
		return "updated"
	case Removed:
		return "removed"
	default:
		return "unknown"
	}
}

// InsertedHook receives the table, the primary key subset of the record
// and the full record as written (generated ids included).
type InsertedHook func(ctx context.Context, table string, key, record *ir.Record)

// UpdatedHook receives the table, the primary key subset, the new record
// and the original record read before diffing.
type UpdatedHook func(ctx context.Context, table string, key, record, original *ir.Record)

// RemovedHook receives the table and the primary key subset of a removed
// top-level record.
type RemovedHook func(ctx context.Context, table string, key *ir.Record)

// hooks is the append-only registry of handlers per event kind.
type hooks struct {
	inserted []InsertedHook
	updated  []UpdatedHook
	removed  []RemovedHook
}

type event struct {
	kind     EventKind
	table    string
	key      *ir.Record
	record   *ir.Record
	original *ir.Record
}

func (h *hooks) fire(ctx context.Context, ev event) {
	switch ev.kind {
	case Inserted:
		for _, fn := range h.inserted {
			fn(ctx, ev.table, ev.key, ev.record)
		}
	case Updated:
		for _, fn := range h.updated {
			fn(ctx, ev.table, ev.key, ev.record, ev.original)
		}
	case Removed:
		for _, fn := range h.removed {
			fn(ctx, ev.table, ev.key)
		}
	}
}
