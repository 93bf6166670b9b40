package engine

import (
	"context"
	"log/slog"

	"github.com/roach88/nestmap/internal/schema"
	"github.com/roach88/nestmap/internal/store"
)

// OperationIDGenerator generates ids that correlate the log records of
// one top-level operation. Implemented by UUIDv7Generator (production)
// and SequenceGenerator (tests).
type OperationIDGenerator interface {
	Generate() string
}

// Mapper is the entry point of the mapping engine. It owns the hook
// registry and hands out Mappings bound to one Definition each.
//
// Thread-safety model:
//   - A Mapper shares one store.DB, which is not safe for concurrent use
//     while a transaction is open
//   - Hook registration must happen before mappings run
//
// INVARIANTS:
//   - Hooks fire in registration order, only after the transaction that
//     produced the event commits
//   - Exactly one transaction wraps a top-level cascading operation
type Mapper struct {
	db     *store.DB
	logger *slog.Logger
	clock  Clock
	opIDs  OperationIDGenerator
	hooks  *hooks

	// events raised inside a caller-owned transaction, fired on Commit
	pending []event
}

// Option allows configuration of mapper parameters.
type Option func(*Mapper)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(m *Mapper) {
		m.logger = logger
	}
}

// WithClock sets the clock used for soft-delete timestamps.
//
// Default: SystemClock (UTC wall time)
// Use a fixed clock in tests for stable timestamps.
func WithClock(clock Clock) Option {
	return func(m *Mapper) {
		m.clock = clock
	}
}

// WithOperationIDs sets the operation id generator.
// Default: UUIDv7Generator.
func WithOperationIDs(gen OperationIDGenerator) Option {
	return func(m *Mapper) {
		m.opIDs = gen
	}
}

// New creates a Mapper over db.
func New(db *store.DB, opts ...Option) *Mapper {
	m := &Mapper{
		db:     db,
		logger: slog.Default(),
		clock:  SystemClock{},
		opIDs:  UUIDv7Generator{},
		hooks:  &hooks{},
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Mapping returns a fresh Mapping for def.
func (m *Mapper) Mapping(def *schema.Definition) *Mapping {
	return newMapping(m, def, nil)
}

// Table returns a raw query builder, bypassing the mapping layer.
func (m *Mapper) Table(name string) *store.Table {
	return m.db.Table(name)
}

// DB returns the underlying accessor.
func (m *Mapper) DB() *store.DB {
	return m.db
}

// Begin opens a caller-owned transaction that every mapping joins until
// Commit or Rollback. Hooks raised meanwhile are held until Commit.
func (m *Mapper) Begin(ctx context.Context) error {
	return m.db.Begin(ctx)
}

// Commit commits the caller-owned transaction and fires held hooks.
func (m *Mapper) Commit(ctx context.Context) error {
	if err := m.db.Commit(); err != nil {
		m.pending = nil
		return err
	}
	events := m.pending
	m.pending = nil
	for _, ev := range events {
		m.hooks.fire(ctx, ev)
	}
	return nil
}

// Rollback aborts the caller-owned transaction and drops held hooks.
func (m *Mapper) Rollback() error {
	m.pending = nil
	return m.db.Rollback()
}

// OnInserted registers a handler for the inserted event.
func (m *Mapper) OnInserted(h InsertedHook) {
	m.hooks.inserted = append(m.hooks.inserted, h)
}

// OnUpdated registers a handler for the updated event.
func (m *Mapper) OnUpdated(h UpdatedHook) {
	m.hooks.updated = append(m.hooks.updated, h)
}

// OnRemoved registers a handler for the removed event.
func (m *Mapper) OnRemoved(h RemovedHook) {
	m.hooks.removed = append(m.hooks.removed, h)
}

// Statements returns the statements executed so far when the store was
// opened with statement logging.
func (m *Mapper) Statements() []store.Statement {
	return m.db.Statements()
}

// emit fires ev now, or holds it until Commit when a caller-owned
// transaction is open.
func (m *Mapper) emit(ctx context.Context, ev event) {
	if m.db.InTransaction() {
		m.pending = append(m.pending, ev)
		return
	}
	m.hooks.fire(ctx, ev)
}
