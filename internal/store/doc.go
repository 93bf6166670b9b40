// Package store is the relational accessor the mapping engine runs on.
//
// A DB wraps a database/sql pool for one of three drivers:
//   - sqlite3: github.com/mattn/go-sqlite3 (default, used by tests)
//   - pgx: github.com/jackc/pgx/v5/stdlib
//   - mysql: github.com/go-sql-driver/mysql
//
// Statements are built with the chainable Table builder, expressed as
// queryir statements, and compiled by querysql for the connection's
// dialect. Values are always bound as parameters.
//
// # Transactions
//
// DB tracks one ambient transaction. Begin fails when one is already
// open, so callers that may run nested check InTransaction first and only
// the outermost caller owns Commit/Rollback.
//
// # Errors
//
// Driver constraint failures are wrapped in *ConstraintError with the
// driver error preserved; transaction failures are *TxError. Use
// IsConstraintViolation and IsTransactionError to test for them.
package store
