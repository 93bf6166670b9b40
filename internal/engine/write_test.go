package engine

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/nestmap/internal/ir"
	"github.com/roach88/nestmap/internal/schema"
)

func insertDave(t *testing.T, m *Mapper) *ir.Record {
	t.Helper()
	got, err := m.Mapping(shopDefinition()).Insert(context.Background(), daveRecord())
	require.NoError(t, err)
	m.DB().ResetStatements()
	return got
}

func findDave(t *testing.T, m *Mapper) *ir.Record {
	t.Helper()
	got, err := m.Mapping(shopDefinition()).Eq("id", 3).FindOne(context.Background())
	require.NoError(t, err)
	require.NotNil(t, got)
	return got
}

func TestInsert_RoundTrip(t *testing.T) {
	m := newTestMapper(t, shopSchema)
	ctx := context.Background()

	input := daveRecord()
	inserted, err := m.Mapping(shopDefinition()).Insert(ctx, input)
	require.NoError(t, err)

	// generated ids are filled into the returned copy, not the input
	discount := inserted.Value("orders").(ir.Many)[0].Value("discount").(ir.One).Record
	assert.Equal(t, ir.Int(1), discount.Value("id"))
	inputDiscount := input.Value("orders").(ir.Many)[0].Value("discount").(ir.One).Record
	assert.False(t, inputDiscount.Has("id"))

	got := findDave(t, m)
	assertJSON(t, daveJSON, got)

	amount := got.Value("orders").(ir.Many)[0].Value("items").(ir.Many)[1].Value("amount")
	assert.Equal(t, ir.Int(230), amount, "amount must come back as an integer")
}

func TestInsert_AutoIncrementLastID(t *testing.T) {
	m := newTestMapper(t, shopSchema)
	ctx := context.Background()

	discounts := m.Mapping(schema.New("discounts").UseAutoIncrement().WithColumns("description", "amount"))
	first, err := discounts.Insert(ctx, ir.MustFromMap(map[string]any{"description": "A", "amount": 1}))
	require.NoError(t, err)
	assert.Equal(t, int64(1), discounts.LastID())
	assert.Equal(t, ir.Int(1), first.Value("id"))

	// a caller-supplied id is ignored on auto-increment tables
	second, err := discounts.Insert(ctx, ir.MustFromMap(map[string]any{"id": 50, "description": "B", "amount": 2}))
	require.NoError(t, err)
	assert.Equal(t, int64(2), discounts.LastID())
	assert.Equal(t, ir.Int(2), second.Value("id"))
}

func TestInsert_CreationData(t *testing.T) {
	m := newTestMapper(t, `CREATE TABLE notes (id INTEGER PRIMARY KEY, body TEXT, source TEXT)`)
	ctx := context.Background()

	notes := schema.New("notes").WithColumns("body").WithCreationData(ir.P("source", ir.String("import")))
	_, err := m.Mapping(notes).Insert(ctx, ir.MustFromMap(map[string]any{"id": 1, "body": "hi"}))
	require.NoError(t, err)

	got, err := m.Table("notes").Eq("id", 1).FindOne(ctx)
	require.NoError(t, err)
	assert.Equal(t, ir.String("import"), got.Value("source"))
}

func TestInsert_IgnoresUnmappedKeys(t *testing.T) {
	m := newTestMapper(t, shopSchema)

	data := ir.MustFromMap(map[string]any{"id": 1, "name": "Ann", "nickname": "A"})
	_, err := m.Mapping(shopDefinition()).Insert(context.Background(), data)
	require.NoError(t, err)

	stmts := writes(m.Statements())
	require.Len(t, stmts, 1)
	assert.Equal(t, `INSERT INTO "customers" ("id", "name") VALUES (?, ?)`, stmts[0].SQL)
}

func TestInsert_RollsBackOnConstraintViolation(t *testing.T) {
	m := newTestMapper(t, shopSchema)

	data := daveRecord()
	items := data.Value("orders").(ir.Many)[0].Value("items").(ir.Many)
	items[1].Set("id", ir.Int(7))

	_, err := m.Mapping(shopDefinition()).Insert(context.Background(), data)
	require.Error(t, err)
	assert.True(t, IsConstraintViolation(err), "got %v", err)

	assert.False(t, m.DB().InTransaction())
	for _, table := range []string{"customers", "orders", "items", "discounts"} {
		assert.Zero(t, countRows(t, m, table), "%s should be empty after rollback", table)
	}
}

func TestInsert_Cardinality(t *testing.T) {
	tests := []struct {
		name string
		data map[string]any
	}{
		{"record on many edge", map[string]any{"id": 1, "name": "Ann", "orders": map[string]any{"id": 2}}},
		{"list on one edge", map[string]any{"id": 1, "name": "Ann", "orders": []any{
			map[string]any{"id": 2, "discount": []any{map[string]any{"amount": 1}}},
		}}},
		{"scalar on many edge", map[string]any{"id": 1, "name": "Ann", "orders": "none"}},
		{"nested value in column", map[string]any{"id": 1, "name": map[string]any{"first": "Ann"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestMapper(t, shopSchema)
			_, err := m.Mapping(shopDefinition()).Insert(context.Background(), ir.MustFromMap(tt.data))
			require.Error(t, err)
			assert.True(t, IsCardinality(err), "got %v", err)
			assert.True(t, IsValidation(err))
			assert.Zero(t, countRows(t, m, "customers"))
		})
	}
}

func TestInsert_EmptyOneEdgeIsSkipped(t *testing.T) {
	m := newTestMapper(t, shopSchema)

	data := ir.MustFromMap(map[string]any{
		"id": 1, "name": "Ann",
		"orders": []any{map[string]any{"id": 2, "discount": map[string]any{}, "items": nil}},
	})
	_, err := m.Mapping(shopDefinition()).Insert(context.Background(), data)
	require.NoError(t, err)
	assert.Zero(t, countRows(t, m, "discounts"))
	assert.Equal(t, int64(1), countRows(t, m, "orders"))
}

func TestInsert_NilRecord(t *testing.T) {
	m := newTestMapper(t, shopSchema)
	_, err := m.Mapping(shopDefinition()).Insert(context.Background(), nil)
	assert.True(t, IsValidation(err))
}

func TestUpdate_ReplacesChildrenByKey(t *testing.T) {
	m := newTestMapper(t, shopSchema)
	insertDave(t, m)
	ctx := context.Background()

	dave := findDave(t, m)
	order := dave.Value("orders").(ir.Many)[0]
	items := order.Value("items").(ir.Many)
	order.Set("items", ir.Many{
		items[1],
		ir.MustFromMap(map[string]any{"id": 9, "description": "Cake", "amount": 150}),
	})
	m.DB().ResetStatements()

	_, err := m.Mapping(shopDefinition()).Update(ctx, dave)
	require.NoError(t, err)

	stmts := writes(m.Statements())
	require.Len(t, stmts, 2, "exactly one insert and one delete: %v", stmts)
	assert.Equal(t, `INSERT INTO "items" ("id", "description", "amount", "order_id") VALUES (?, ?, ?, ?)`, stmts[0].SQL)
	assert.Equal(t, []any{int64(9), "Cake", int64(150), int64(4)}, stmts[0].Args)
	assert.Equal(t, `DELETE FROM "items" WHERE "id" IN (?)`, stmts[1].SQL)
	assert.Equal(t, []any{int64(7)}, stmts[1].Args)

	after := findDave(t, m)
	gotItems := after.Value("orders").(ir.Many)[0].Value("items").(ir.Many)
	require.Len(t, gotItems, 2)
	assertJSON(t, `{"id": 8, "description": "Cookies", "amount": 230, "order_id": 4}`, gotItems[0])
	assertJSON(t, `{"id": 9, "description": "Cake", "amount": 150, "order_id": 4}`, gotItems[1])
}

func TestUpdate_UnchangedIsIdempotent(t *testing.T) {
	m := newTestMapper(t, shopSchema)
	insertDave(t, m)

	dave := findDave(t, m)
	m.DB().ResetStatements()

	_, err := m.Mapping(shopDefinition()).Update(context.Background(), dave)
	require.NoError(t, err)
	assert.Empty(t, writes(m.Statements()))
}

func TestUpdate_LooseEqualityIsNotAChange(t *testing.T) {
	m := newTestMapper(t, shopSchema)
	insertDave(t, m)

	dave := findDave(t, m)
	item := dave.Value("orders").(ir.Many)[0].Value("items").(ir.Many)[1]
	item.Set("amount", ir.String("230"))
	m.DB().ResetStatements()

	_, err := m.Mapping(shopDefinition()).Update(context.Background(), dave)
	require.NoError(t, err)
	assert.Empty(t, writes(m.Statements()))
}

func TestUpdate_NumericTextIsWritten(t *testing.T) {
	m := newTestMapper(t, `
		CREATE TABLE notes (id INTEGER PRIMARY KEY, body TEXT);
		INSERT INTO notes VALUES (1, '007'), (2, '1.50');
	`)
	ctx := context.Background()
	notes := schema.New("notes").WithColumns("body")

	for id, body := range map[int]string{1: "7", 2: "1.5"} {
		_, err := m.Mapping(notes).Update(ctx, ir.MustFromMap(map[string]any{"id": id, "body": body}))
		require.NoError(t, err)
	}
	assert.Len(t, writes(m.Statements()), 2)

	rows, err := m.Mapping(notes).OrderAsc("id").FindAll(ctx)
	require.NoError(t, err)
	assertJSON(t, `[{"id": 1, "body": "7"}, {"id": 2, "body": "1.5"}]`, rows)
}

func TestUpdate_ChangedColumnsAndModificationData(t *testing.T) {
	m := newTestMapper(t, `
		CREATE TABLE notes (id INTEGER PRIMARY KEY, body TEXT, revised TEXT);
		INSERT INTO notes VALUES (1, 'draft', NULL);
	`)
	ctx := context.Background()

	notes := schema.New("notes").WithColumns("body").WithModificationData(ir.P("revised", ir.String("yes")))
	_, err := m.Mapping(notes).Update(ctx, ir.MustFromMap(map[string]any{"id": 1, "body": "final"}))
	require.NoError(t, err)

	stmts := writes(m.Statements())
	require.Len(t, stmts, 1)
	assert.Equal(t, `UPDATE "notes" SET "id" = ?, "body" = ?, "revised" = ? WHERE "id" = ?`, stmts[0].SQL)

	got, err := m.Table("notes").Eq("id", 1).FindOne(ctx)
	require.NoError(t, err)
	assertJSON(t, `{"id": 1, "body": "final", "revised": "yes"}`, got)
}

func TestUpdate_PartialRecordKeepsOmittedColumns(t *testing.T) {
	m := newTestMapper(t, shopSchema)
	insertDave(t, m)

	dave := findDave(t, m)
	order := dave.Value("orders").(ir.Many)[0]
	// keep only the key of the order; its columns must survive
	dave.Set("orders", ir.Many{ir.NewRecord(
		ir.P("id", ir.Int(4)),
		ir.P("items", order.Value("items")),
		ir.P("discount", order.Value("discount")),
	)})

	_, err := m.Mapping(shopDefinition()).Update(context.Background(), dave)
	require.NoError(t, err)
	assertJSON(t, daveJSON, findDave(t, m))
}

func TestUpdate_RemovedParentTakesSubtree(t *testing.T) {
	m := newTestMapper(t, shopSchema)
	insertDave(t, m)

	dave := findDave(t, m)
	dave.Set("orders", ir.Many{})
	m.DB().ResetStatements()

	_, err := m.Mapping(shopDefinition()).Update(context.Background(), dave)
	require.NoError(t, err)

	var tables []string
	for _, s := range writes(m.Statements()) {
		require.True(t, strings.HasPrefix(s.SQL, "DELETE FROM"), s.SQL)
		tables = append(tables, strings.Fields(s.SQL)[2])
	}
	assert.Equal(t, []string{`"discounts"`, `"items"`, `"orders"`}, tables)

	assert.Zero(t, countRows(t, m, "orders"))
	assert.Zero(t, countRows(t, m, "items"))
	assert.Zero(t, countRows(t, m, "discounts"))
	assert.Equal(t, int64(1), countRows(t, m, "customers"))
}

func TestUpdate_AbsentPropertyRemovesChildren(t *testing.T) {
	m := newTestMapper(t, shopSchema)
	insertDave(t, m)

	_, err := m.Mapping(shopDefinition()).Update(context.Background(),
		ir.MustFromMap(map[string]any{"id": 3, "name": "Dave"}))
	require.NoError(t, err)
	assert.Zero(t, countRows(t, m, "orders"))
}

func TestUpdate_LastDuplicateWins(t *testing.T) {
	m := newTestMapper(t, shopSchema)
	insertDave(t, m)

	dave := findDave(t, m)
	order := dave.Value("orders").(ir.Many)[0]
	items := order.Value("items").(ir.Many)
	first := items[1].Clone().Set("description", ir.String("First"))
	second := items[1].Clone().Set("description", ir.String("Second"))
	order.Set("items", ir.Many{items[0], first, second})

	_, err := m.Mapping(shopDefinition()).Update(context.Background(), dave)
	require.NoError(t, err)

	got, err := m.Table("items").Eq("id", 8).FindOne(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ir.String("Second"), got.Value("description"))
}

func TestUpdate_ReplacesOneEdge(t *testing.T) {
	m := newTestMapper(t, shopSchema)
	insertDave(t, m)

	dave := findDave(t, m)
	order := dave.Value("orders").(ir.Many)[0]
	order.Set("discount", ir.One{Record: ir.MustFromMap(map[string]any{"description": "Y", "amount": 5})})

	_, err := m.Mapping(shopDefinition()).Update(context.Background(), dave)
	require.NoError(t, err)

	rows, err := m.Table("discounts").FindAll(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assertJSON(t, `{"id": 2, "description": "Y", "amount": 5, "order_id": 4}`, rows[0])
}

func TestUpdate_RollsBackOnConstraintViolation(t *testing.T) {
	m := newTestMapper(t, shopSchema)
	insertDave(t, m)

	dave := findDave(t, m)
	dave.Set("name", ir.String("David"))
	order := dave.Value("orders").(ir.Many)[0]
	items := order.Value("items").(ir.Many)
	order.Set("items", append(items[1:], ir.MustFromMap(map[string]any{"id": 9, "description": "Bad", "amount": -1})))

	_, err := m.Mapping(shopDefinition()).Update(context.Background(), dave)
	require.Error(t, err)
	assert.True(t, IsConstraintViolation(err), "got %v", err)

	assertJSON(t, daveJSON, findDave(t, m))
}

func TestUpdate_Validation(t *testing.T) {
	m := newTestMapper(t, shopSchema)
	insertDave(t, m)
	ctx := context.Background()

	_, err := m.Mapping(shopDefinition()).Update(ctx, ir.MustFromMap(map[string]any{"name": "NoKey"}))
	assert.True(t, IsValidation(err), "got %v", err)

	_, err = m.Mapping(shopDefinition()).Update(ctx, ir.MustFromMap(map[string]any{"id": 99, "name": "Ghost"}))
	assert.True(t, IsNotFound(err), "got %v", err)
	assert.False(t, IsValidation(err))

	_, err = m.Mapping(shopDefinition()).Update(ctx, nil)
	assert.True(t, IsValidation(err))
}

func TestUpdate_RespectsMappingFilters(t *testing.T) {
	m := newTestMapper(t, shopSchema)
	insertDave(t, m)

	_, err := m.Mapping(shopDefinition()).Eq("name", "Someone else").
		Update(context.Background(), ir.MustFromMap(map[string]any{"id": 3, "name": "Dave"}))
	assert.True(t, IsNotFound(err), "got %v", err)
}

func TestSave(t *testing.T) {
	m := newTestMapper(t, shopSchema)
	ctx := context.Background()
	customers := schema.New("customers").WithColumns("name")

	_, err := m.Mapping(customers).Save(ctx, ir.MustFromMap(map[string]any{"id": 1, "name": "Ann"}))
	require.NoError(t, err)
	_, err = m.Mapping(customers).Save(ctx, ir.MustFromMap(map[string]any{"id": 1, "name": "Anne"}))
	require.NoError(t, err)

	rows, err := m.Table("customers").FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, ir.String("Anne"), rows[0].Value("name"))

	_, err = m.Mapping(customers).Save(ctx, ir.MustFromMap(map[string]any{"name": "NoKey"}))
	assert.True(t, IsValidation(err), "got %v", err)
}

func TestReadOnly(t *testing.T) {
	const ddl = `
		CREATE TABLE authors (id INTEGER PRIMARY KEY, name TEXT);
		CREATE TABLE countries (id INTEGER PRIMARY KEY, name TEXT);
		CREATE TABLE books (id INTEGER PRIMARY KEY, title TEXT, author_id INTEGER);
		INSERT INTO countries VALUES (1, 'Norway');
	`
	ctx := context.Background()
	definition := func() *schema.Definition {
		books := schema.New("books").WithColumns("title").ReadOnly()
		country := schema.New("countries").WithColumns("name").ReadOnly()
		return schema.New("authors").
			WithColumns("name").
			WithMany(books, "books", "author_id").
			WithOne(country, "country", "id", "id")
	}

	t.Run("insert skips read-only children", func(t *testing.T) {
		m := newTestMapper(t, ddl)
		data := ir.MustFromMap(map[string]any{
			"id": 1, "name": "Ibsen",
			"books":   []any{map[string]any{"id": 1, "title": "Ghosts"}},
			"country": map[string]any{"id": 1, "name": "Renamed"},
		})
		_, err := m.Mapping(definition()).Insert(ctx, data)
		require.NoError(t, err)

		stmts := writes(m.Statements())
		require.Len(t, stmts, 1)
		assert.Contains(t, stmts[0].SQL, `INSERT INTO "authors"`)
		assert.Zero(t, countRows(t, m, "books"))
	})

	t.Run("update and remove leave read-only children alone", func(t *testing.T) {
		m := newTestMapper(t, ddl)
		require.NoError(t, m.DB().Exec(ctx, `
			INSERT INTO authors VALUES (1, 'Ibsen');
			INSERT INTO books VALUES (1, 'Ghosts', 1), (2, 'Brand', 1);
		`))

		got, err := m.Mapping(definition()).Eq("id", 1).FindOne(ctx)
		require.NoError(t, err)
		assert.Len(t, got.Value("books").(ir.Many), 2)
		assert.Equal(t, ir.String("Norway"), got.Value("country").(ir.One).Record.Value("name"))

		got.Set("books", ir.Many{})
		got.Set("name", ir.String("Henrik Ibsen"))
		m.DB().ResetStatements()
		_, err = m.Mapping(definition()).Update(ctx, got)
		require.NoError(t, err)
		stmts := writes(m.Statements())
		require.Len(t, stmts, 1)
		assert.Contains(t, stmts[0].SQL, `UPDATE "authors"`)

		n, err := m.Mapping(definition()).Eq("id", 1).Remove(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		assert.Zero(t, countRows(t, m, "authors"))
		assert.Equal(t, int64(2), countRows(t, m, "books"))
		assert.Equal(t, int64(1), countRows(t, m, "countries"))
	})

	t.Run("read-only root is never written", func(t *testing.T) {
		m := newTestMapper(t, ddl)
		countries := m.Mapping(schema.New("countries").WithColumns("name").ReadOnly())

		data := ir.MustFromMap(map[string]any{"id": 2, "name": "Chile"})
		got, err := countries.Insert(ctx, data)
		require.NoError(t, err)
		assert.True(t, got.Equal(data))

		_, err = countries.Update(ctx, ir.MustFromMap(map[string]any{"id": 1, "name": "Renamed"}))
		require.NoError(t, err)

		n, err := countries.Remove(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)

		assert.Empty(t, writes(m.Statements()))
		assert.Equal(t, int64(1), countRows(t, m, "countries"))
	})
}

func TestChildItems(t *testing.T) {
	def := shopDefinition()
	orders := def.Properties()[0]

	items, err := childItems(def, orders, ir.NewRecord())
	require.NoError(t, err)
	assert.Nil(t, items)

	items, err = childItems(def, orders, ir.NewRecord(ir.P("orders", ir.Null{})))
	require.NoError(t, err)
	assert.Nil(t, items)

	_, err = childItems(def, orders, ir.NewRecord(ir.P("orders", ir.Many{nil})))
	assert.True(t, IsCardinality(err))
}

func TestChanged(t *testing.T) {
	base := ir.NewRecord(ir.P("id", ir.Int(1)), ir.P("name", ir.String("a")))

	assert.False(t, changed(base, base.Clone()))
	assert.False(t, changed(base, ir.NewRecord(ir.P("id", ir.String("1")), ir.P("name", ir.String("a")))))
	assert.True(t, changed(base, ir.NewRecord(ir.P("id", ir.Int(1)), ir.P("name", ir.String("b")))))
	assert.True(t, changed(base, ir.NewRecord(ir.P("id", ir.Int(1)))), "absent columns count as changed")
	assert.True(t, changed(
		ir.NewRecord(ir.P("name", ir.Null{})),
		ir.NewRecord(ir.P("name", ir.String(""))),
	))
	assert.True(t, changed(
		ir.NewRecord(ir.P("name", ir.String("7"))),
		ir.NewRecord(ir.P("name", ir.String("007"))),
	), "numeric looking text is compared verbatim")
	assert.True(t, changed(
		ir.NewRecord(ir.P("name", ir.String("42"))),
		ir.NewRecord(ir.P("name", ir.String("42 "))),
	))
}

const threadSchema = `
CREATE TABLE posts (id INTEGER PRIMARY KEY, title TEXT);
CREATE TABLE comments (
	id INTEGER PRIMARY KEY,
	body TEXT,
	post_id INTEGER REFERENCES posts(id),
	deleted_at TEXT,
	deleted_by TEXT
);
INSERT INTO posts VALUES (1, 'hello');
INSERT INTO comments (id, body, post_id) VALUES (1, 'first', 1), (2, 'spam', 1);
`

func threadDefinition() *schema.Definition {
	comments := schema.New("comments").
		WithColumns("body").
		WithDeletionTimestamp("deleted_at").
		WithDeletionData(ir.P("deleted_by", ir.String("moderator")))
	return schema.New("posts").
		WithColumns("title").
		WithMany(comments, "comments", "post_id")
}

func TestUpdate_DroppedChildIsSoftDeleted(t *testing.T) {
	m := newTestMapper(t, threadSchema)
	ctx := context.Background()

	post, err := m.Mapping(threadDefinition()).Eq("id", 1).FindOne(ctx)
	require.NoError(t, err)
	require.Len(t, post.Value("comments").(ir.Many), 2)
	post.Set("comments", post.Value("comments").(ir.Many)[:1])
	m.DB().ResetStatements()

	_, err = m.Mapping(threadDefinition()).Update(ctx, post)
	require.NoError(t, err)

	stmts := writes(m.Statements())
	require.Len(t, stmts, 1, "no physical delete: %v", stmts)
	assert.Equal(t, `UPDATE "comments" SET "deleted_at" = ?, "deleted_by" = ? WHERE "id" IN (?) AND "deleted_at" IS NULL`, stmts[0].SQL)
	assert.Equal(t, int64(2), countRows(t, m, "comments"), "soft delete keeps the row")

	stored, err := m.Table("comments").Eq("id", 2).FindOne(ctx)
	require.NoError(t, err)
	assert.Equal(t, ir.String("moderator"), stored.Value("deleted_by"))
	assert.False(t, ir.IsNull(stored.Value("deleted_at")))

	got, err := m.Mapping(threadDefinition()).Eq("id", 1).FindOne(ctx)
	require.NoError(t, err)
	assertJSON(t, `{"id": 1, "title": "hello", "comments": [
		{"id": 1, "body": "first", "post_id": 1}
	]}`, got)
}
