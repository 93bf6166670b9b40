package querysql

import (
	"strconv"
	"strings"
)

// Dialect captures the SQL differences between supported databases.
type Dialect struct {
	// Name is the database/sql driver name.
	Name string

	// quote is the identifier quote character.
	quote byte

	// numbered placeholders ($1, $2) instead of ?.
	numbered bool

	// Returning reports whether generated keys are read with RETURNING
	// rather than sql.Result.LastInsertId.
	Returning bool
}

var (
	// SQLite is the dialect for github.com/mattn/go-sqlite3.
	SQLite = Dialect{Name: "sqlite3", quote: '"'}

	// Postgres is the dialect for github.com/jackc/pgx/v5/stdlib.
	Postgres = Dialect{Name: "pgx", quote: '"', numbered: true, Returning: true}

	// MySQL is the dialect for github.com/go-sql-driver/mysql.
	MySQL = Dialect{Name: "mysql", quote: '`'}
)

// DialectFor returns the dialect registered under a driver name.
// "postgres" and "sqlite" are accepted as aliases.
func DialectFor(driver string) (Dialect, bool) {
	switch driver {
	case "sqlite3", "sqlite":
		return SQLite, true
	case "pgx", "postgres", "postgresql":
		return Postgres, true
	case "mysql":
		return MySQL, true
	default:
		return Dialect{}, false
	}
}

// Placeholder returns the bind marker for the n-th parameter (1-based).
func (d Dialect) Placeholder(n int) string {
	if d.numbered {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}

// QuoteIdent quotes a possibly qualified identifier part by part:
// orders.id becomes "orders"."id". "*" is left bare.
func (d Dialect) QuoteIdent(name string) string {
	parts := strings.Split(name, ".")
	q := string(d.quote)
	for i, p := range parts {
		if p == "*" {
			continue
		}
		parts[i] = q + strings.ReplaceAll(p, q, q+q) + q
	}
	return strings.Join(parts, ".")
}
