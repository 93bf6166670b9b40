package engine

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/nestmap/internal/ir"
	"github.com/roach88/nestmap/internal/schema"
	"github.com/roach88/nestmap/internal/store"
	"github.com/roach88/nestmap/internal/testutil"
)

const shopSchema = `
CREATE TABLE customers (
	id INTEGER PRIMARY KEY,
	name TEXT NOT NULL
);
CREATE TABLE orders (
	id INTEGER PRIMARY KEY,
	date_created TEXT,
	customer_id INTEGER REFERENCES customers(id)
);
CREATE TABLE items (
	id INTEGER PRIMARY KEY,
	description TEXT,
	amount INTEGER CHECK (amount >= 0),
	order_id INTEGER REFERENCES orders(id)
);
CREATE TABLE discounts (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	description TEXT,
	amount INTEGER,
	order_id INTEGER REFERENCES orders(id)
);
`

// shopDefinition maps customers -> orders -> items, with one discount
// per order.
func shopDefinition() *schema.Definition {
	items := schema.New("items").WithColumns("description", "amount")
	discount := schema.New("discounts").UseAutoIncrement().WithColumns("description", "amount")
	orders := schema.New("orders").
		WithColumns("date_created").
		WithMany(items, "items", "order_id").
		WithOne(discount, "discount", "order_id")
	return schema.New("customers").
		WithColumns("name").
		WithMany(orders, "orders", "customer_id")
}

// daveRecord is the customer used by most write tests.
func daveRecord() *ir.Record {
	return ir.MustFromMap(map[string]any{
		"id":   3,
		"name": "Dave",
		"orders": []any{
			map[string]any{
				"id":           4,
				"date_created": "2018-02-01",
				"discount":     map[string]any{"description": "X", "amount": 20},
				"items": []any{
					map[string]any{"id": 7, "description": "Ice Cream", "amount": 400},
					map[string]any{"id": 8, "description": "Cookies", "amount": 230},
				},
			},
		},
	})
}

const daveJSON = `{
	"id": 3,
	"name": "Dave",
	"orders": [{
		"id": 4,
		"date_created": "2018-02-01",
		"customer_id": 3,
		"discount": {"id": 1, "description": "X", "amount": 20, "order_id": 4},
		"items": [
			{"id": 7, "description": "Ice Cream", "amount": 400, "order_id": 4},
			{"id": 8, "description": "Cookies", "amount": 230, "order_id": 4}
		]
	}]
}`

// newTestMapper opens a SQLite database with ddl and returns a Mapper
// with a stepping clock, sequential operation ids and a silent logger.
func newTestMapper(t *testing.T, ddl string, opts ...Option) *Mapper {
	t.Helper()
	db := testutil.OpenSQLite(t, ddl)
	defaults := []Option{
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithClock(testutil.NewSteppingClock()),
		WithOperationIDs(NewSequenceGenerator("op")),
	}
	return New(db, append(defaults, opts...)...)
}

// writes returns the statements that changed data, in execution order.
func writes(statements []store.Statement) []store.Statement {
	var out []store.Statement
	for _, s := range statements {
		if !strings.HasPrefix(s.SQL, "SELECT") {
			out = append(out, s)
		}
	}
	return out
}

// assertJSON compares the canonical JSON form of got with want.
func assertJSON(t *testing.T, want string, got any) {
	t.Helper()
	b, err := ir.MarshalCanonical(got)
	require.NoError(t, err)
	assert.JSONEq(t, want, string(b))
}

// countRows counts every row of table, soft-deleted ones included.
func countRows(t *testing.T, m *Mapper, table string) int64 {
	t.Helper()
	n, err := m.Table(table).Count(context.Background())
	require.NoError(t, err)
	return n
}
