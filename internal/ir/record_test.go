package ir

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordPreservesInsertionOrder(t *testing.T) {
	rec := NewRecord(P("name", String("Dave")), P("id", Int(3)))
	rec.Set("orders", Many{})
	rec.Set("name", String("David"))

	assert.Equal(t, []string{"name", "id", "orders"}, rec.Keys())
	assert.Equal(t, String("David"), rec.Value("name"))
}

func TestRecordDelete(t *testing.T) {
	rec := NewRecord(P("a", Int(1)), P("b", Int(2)), P("c", Int(3)))
	rec.Delete("b")
	rec.Delete("missing")

	assert.Equal(t, []string{"a", "c"}, rec.Keys())
	assert.False(t, rec.Has("b"))
}

func TestRecordValueDefaultsToNull(t *testing.T) {
	rec := NewRecord(P("deleted", Null{}))
	assert.True(t, rec.Has("deleted"))
	assert.Equal(t, Null{}, rec.Value("missing"))

	var nilRec *Record
	assert.Equal(t, 0, nilRec.Len())
	assert.False(t, nilRec.Has("id"))
}

func TestRecordCloneIsDeep(t *testing.T) {
	item := NewRecord(P("id", Int(7)))
	rec := NewRecord(P("id", Int(4)), P("items", Many{item}))

	clone := rec.Clone()
	clone.Value("items").(Many)[0].Set("id", Int(9))

	assert.Equal(t, Int(7), item.Value("id"))
	assert.True(t, rec.Equal(NewRecord(P("id", Int(4)), P("items", Many{NewRecord(P("id", Int(7)))}))))
}

func TestRecordSubsetAndFilter(t *testing.T) {
	rec := NewRecord(P("order_id", Int(1)), P("employee_id", Int(2)), P("note", String("x")))

	assert.Equal(t, []string{"employee_id", "order_id"}, rec.Subset("employee_id", "order_id", "missing").Keys())

	scalars := NewRecord(P("id", Int(1)), P("items", Many{})).Filter(func(_ string, v Value) bool {
		return IsScalar(v)
	})
	assert.Equal(t, []string{"id"}, scalars.Keys())
}

func TestRecordMerge(t *testing.T) {
	rec := NewRecord(P("id", Int(1)), P("modified", String("old")))
	rec.Merge(NewRecord(P("modified", String("2019-01-02 03:04:05")), P("by", String("admin"))))

	assert.Equal(t, []string{"id", "modified", "by"}, rec.Keys())
	assert.Equal(t, String("2019-01-02 03:04:05"), rec.Value("modified"))
}

func TestRecordEqualIgnoresOrder(t *testing.T) {
	a := NewRecord(P("id", Int(1)), P("name", String("x")))
	b := NewRecord(P("name", String("x")), P("id", Int(1)))
	c := NewRecord(P("name", String("x")), P("id", String("1")))

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
}

func TestRecordJSONRoundTrip(t *testing.T) {
	input := `{"id":3,"name":"Dave","orders":[{"id":4,"discount":{"amount":20},"items":[]}],"note":null,"ratio":0.5}`

	rec, err := ParseRecord([]byte(input))
	require.NoError(t, err)

	assert.Equal(t, []string{"id", "name", "orders", "note", "ratio"}, rec.Keys())
	assert.Equal(t, Int(3), rec.Value("id"))
	assert.Equal(t, Null{}, rec.Value("note"))
	assert.Equal(t, Float(0.5), rec.Value("ratio"))

	orders, ok := rec.Value("orders").(Many)
	require.True(t, ok)
	discount, ok := orders[0].Value("discount").(One)
	require.True(t, ok)
	assert.Equal(t, Int(20), discount.Record.Value("amount"))

	out, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.Equal(t, input, string(out))
}

func TestParseRecords(t *testing.T) {
	recs, err := ParseRecords([]byte(` [{"id":1},{"id":2}]`))
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, Int(2), recs[1].Value("id"))

	recs, err = ParseRecords([]byte(`{"id":1}`))
	require.NoError(t, err)
	require.Len(t, recs, 1)

	_, err = ParseRecords([]byte(`[1,2]`))
	require.Error(t, err)
}

func TestRecordUnmarshalRejectsNonObject(t *testing.T) {
	_, err := ParseRecord([]byte(`[1]`))
	require.Error(t, err)
}

func TestFromMapSortsKeys(t *testing.T) {
	rec, err := FromMap(map[string]any{"b": 1, "a": "x"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, rec.Keys())
}
