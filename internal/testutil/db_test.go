package testutil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenSQLite_AppliesSchema(t *testing.T) {
	db := OpenSQLite(t, `CREATE TABLE things (id INTEGER PRIMARY KEY, name TEXT);`)

	assert.Empty(t, db.Statements(), "schema statements should not be logged")

	ctx := context.Background()
	n, err := db.Table("things").Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}
