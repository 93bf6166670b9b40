package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/nestmap/internal/ir"
	"github.com/roach88/nestmap/internal/queryir"
	"github.com/roach88/nestmap/internal/querysql"
)

// Config selects the database and how the accessor reports statements.
type Config struct {
	// Driver is one of sqlite3, pgx (alias postgres) or mysql.
	Driver string

	// DSN is the driver-specific data source name. For sqlite3 it is a
	// file path or ":memory:".
	DSN string

	// LogStatements keeps every executed statement for Statements().
	LogStatements bool

	// Logger receives one Debug record per statement. Defaults to
	// slog.Default().
	Logger *slog.Logger
}

// DB is the relational accessor: it runs compiled statements against a
// database/sql pool and tracks one ambient transaction.
//
// A DB is not safe for concurrent use while a transaction is open.
type DB struct {
	db       *sql.DB
	dialect  querysql.Dialect
	compiler *querysql.Compiler
	logger   *slog.Logger

	tx     *sql.Tx
	lastID int64

	logStatements bool
	statements    []Statement
}

// Statement is one executed SQL statement with its parameters.
type Statement struct {
	SQL  string
	Args []any
}

// String renders the statement for logs.
func (s Statement) String() string {
	if len(s.Args) == 0 {
		return s.SQL
	}
	return fmt.Sprintf("%s %v", s.SQL, s.Args)
}

// Open connects to the database described by cfg.
//
// SQLite databases are configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode (balance durability/performance)
//   - 5-second busy timeout for lock contention
//   - Foreign key enforcement
//   - A single open connection, so the ambient transaction sees every write
func Open(ctx context.Context, cfg Config) (*DB, error) {
	dialect, ok := querysql.DialectFor(cfg.Driver)
	if !ok {
		return nil, fmt.Errorf("unsupported driver %q", cfg.Driver)
	}
	if cfg.DSN == "" {
		return nil, fmt.Errorf("open %s: empty DSN", dialect.Name)
	}

	db, err := openPool(dialect, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if dialect.Name == querysql.SQLite.Name {
		// SQLite only supports one writer at a time, so limit connections
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)

		if err := applyPragmas(ctx, db); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply pragmas: %w", err)
		}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &DB{
		db:            db,
		dialect:       dialect,
		compiler:      querysql.NewCompiler(dialect),
		logger:        logger,
		logStatements: cfg.LogStatements,
	}, nil
}

// openPool builds the sql.DB for a dialect. MySQL DSNs are rewritten to
// parse DATETIME columns and to allow multi-statement scripts.
func openPool(dialect querysql.Dialect, dsn string) (*sql.DB, error) {
	switch dialect.Name {
	case querysql.Postgres.Name:
		connConfig, err := pgx.ParseConfig(dsn)
		if err != nil {
			return nil, fmt.Errorf("parse postgres dsn: %w", err)
		}
		return stdlib.OpenDB(*connConfig), nil
	case querysql.MySQL.Name:
		mysqlConfig, err := mysql.ParseDSN(dsn)
		if err != nil {
			return nil, fmt.Errorf("parse mysql dsn: %w", err)
		}
		mysqlConfig.ParseTime = true
		mysqlConfig.MultiStatements = true
		return sql.Open(dialect.Name, mysqlConfig.FormatDSN())
	default:
		return sql.Open(dialect.Name, dsn)
	}
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// Close closes the database connection. An open transaction is rolled
// back first.
func (d *DB) Close() error {
	if d.db == nil {
		return nil
	}
	if d.tx != nil {
		_ = d.tx.Rollback()
		d.tx = nil
	}
	return d.db.Close()
}

// Dialect returns the SQL dialect of the connection.
func (d *DB) Dialect() querysql.Dialect {
	return d.dialect
}

// Table starts a query builder for a table.
func (d *DB) Table(name string) *Table {
	return &Table{db: d, name: name}
}

// Begin opens the ambient transaction. Fails if one is already open.
func (d *DB) Begin(ctx context.Context) error {
	if d.tx != nil {
		return &TxError{Op: "begin", Err: ErrTransactionActive}
	}
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return &TxError{Op: "begin", Err: err}
	}
	d.tx = tx
	d.logger.Debug("transaction started")
	return nil
}

// Commit commits the ambient transaction.
func (d *DB) Commit() error {
	if d.tx == nil {
		return &TxError{Op: "commit", Err: ErrNoTransaction}
	}
	tx := d.tx
	d.tx = nil
	if err := tx.Commit(); err != nil {
		return &TxError{Op: "commit", Err: err}
	}
	d.logger.Debug("transaction committed")
	return nil
}

// Rollback aborts the ambient transaction.
func (d *DB) Rollback() error {
	if d.tx == nil {
		return &TxError{Op: "rollback", Err: ErrNoTransaction}
	}
	tx := d.tx
	d.tx = nil
	if err := tx.Rollback(); err != nil {
		return &TxError{Op: "rollback", Err: err}
	}
	d.logger.Debug("transaction rolled back")
	return nil
}

// InTransaction reports whether an ambient transaction is open.
func (d *DB) InTransaction() bool {
	return d.tx != nil
}

// LastID returns the id generated by the most recent insert.
func (d *DB) LastID() int64 {
	return d.lastID
}

// Statements returns the statements executed so far. Empty unless
// Config.LogStatements is set.
func (d *DB) Statements() []Statement {
	out := make([]Statement, len(d.statements))
	copy(out, d.statements)
	return out
}

// ResetStatements clears the statement log.
func (d *DB) ResetStatements() {
	d.statements = nil
}

// Exec runs a raw SQL script, typically DDL used to bootstrap a schema.
func (d *DB) Exec(ctx context.Context, script string) error {
	if strings.TrimSpace(script) == "" {
		return nil
	}
	d.record(script, nil)
	if _, err := d.conn().ExecContext(ctx, script); err != nil {
		return fmt.Errorf("exec script: %w", classify("", err))
	}
	return nil
}

// querier is the subset of *sql.DB and *sql.Tx the accessor uses.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (d *DB) conn() querier {
	if d.tx != nil {
		return d.tx
	}
	return d.db
}

func (d *DB) record(query string, args []any) {
	d.logger.Debug("statement", "sql", query, "args", len(args), "tx", d.tx != nil)
	if d.logStatements {
		d.statements = append(d.statements, Statement{SQL: query, Args: args})
	}
}

func (d *DB) compile(stmt queryir.Statement) (string, []any, error) {
	query, args, err := d.compiler.Compile(stmt)
	if err != nil {
		return "", nil, fmt.Errorf("compile: %w", err)
	}
	d.record(query, args)
	return query, args, nil
}

// queryRows runs a select and converts every row into a Record keyed by
// result column name, in result column order.
func (d *DB) queryRows(ctx context.Context, table string, stmt queryir.Statement) ([]*ir.Record, error) {
	query, args, err := d.compile(stmt)
	if err != nil {
		return nil, err
	}

	rows, err := d.conn().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", table, classify(table, err))
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("query %s columns: %w", table, err)
	}

	records := []*ir.Record{}
	for rows.Next() {
		values := make([]any, len(columns))
		targets := make([]any, len(columns))
		for i := range values {
			targets[i] = &values[i]
		}
		if err := rows.Scan(targets...); err != nil {
			return nil, fmt.Errorf("scan %s: %w", table, err)
		}

		rec := ir.NewRecord()
		for i, col := range columns {
			rec.Set(col, ir.FromDB(values[i]))
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", table, err)
	}

	return records, nil
}

// execStatement runs an insert, update or delete and returns the number
// of affected rows.
func (d *DB) execStatement(ctx context.Context, table string, stmt queryir.Statement) (int64, error) {
	query, args, err := d.compile(stmt)
	if err != nil {
		return 0, err
	}

	if ins, ok := stmt.(*queryir.Insert); ok && ins.Returning != "" && d.dialect.Returning {
		var id int64
		if err := d.conn().QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
			return 0, classify(table, err)
		}
		d.lastID = id
		return 1, nil
	}

	res, err := d.conn().ExecContext(ctx, query, args...)
	if err != nil {
		return 0, classify(table, err)
	}

	if _, ok := stmt.(*queryir.Insert); ok {
		if id, err := res.LastInsertId(); err == nil {
			d.lastID = id
		}
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return affected, nil
}
