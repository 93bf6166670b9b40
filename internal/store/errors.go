package store

import (
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
)

// Transaction state errors wrapped by TxError.
var (
	ErrTransactionActive = errors.New("transaction already open")
	ErrNoTransaction     = errors.New("no open transaction")
)

// ConstraintKind names the kind of constraint a statement violated.
type ConstraintKind string

const (
	ConstraintUnique     ConstraintKind = "unique"
	ConstraintForeignKey ConstraintKind = "foreign_key"
	ConstraintNotNull    ConstraintKind = "not_null"
	ConstraintCheck      ConstraintKind = "check"
	ConstraintOther      ConstraintKind = "constraint"
)

// ConstraintError is a driver constraint violation. The driver error is
// kept as is and available through Unwrap.
type ConstraintError struct {
	Table string
	Kind  ConstraintKind
	Err   error
}

func (e *ConstraintError) Error() string {
	if e.Table == "" {
		return fmt.Sprintf("%s violation: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s violation on %s: %v", e.Kind, e.Table, e.Err)
}

func (e *ConstraintError) Unwrap() error {
	return e.Err
}

// TxError is a failure to begin, commit or roll back a transaction.
type TxError struct {
	Op  string
	Err error
}

func (e *TxError) Error() string {
	return fmt.Sprintf("%s transaction: %v", e.Op, e.Err)
}

func (e *TxError) Unwrap() error {
	return e.Err
}

// IsConstraintViolation checks if an error is a ConstraintError.
func IsConstraintViolation(err error) bool {
	var ce *ConstraintError
	return errors.As(err, &ce)
}

// IsTransactionError checks if an error is a TxError.
func IsTransactionError(err error) bool {
	var te *TxError
	return errors.As(err, &te)
}

// classify wraps driver constraint errors in a ConstraintError. Other
// errors are returned unchanged.
func classify(table string, err error) error {
	if err == nil {
		return nil
	}
	if kind, ok := constraintKind(err); ok {
		return &ConstraintError{Table: table, Kind: kind, Err: err}
	}
	return err
}

func constraintKind(err error) (ConstraintKind, bool) {
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		if liteErr.Code != sqlite3.ErrConstraint {
			return "", false
		}
		switch liteErr.ExtendedCode {
		case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
			return ConstraintUnique, true
		case sqlite3.ErrConstraintForeignKey:
			return ConstraintForeignKey, true
		case sqlite3.ErrConstraintNotNull:
			return ConstraintNotNull, true
		case sqlite3.ErrConstraintCheck:
			return ConstraintCheck, true
		default:
			return ConstraintOther, true
		}
	}

	// SQLSTATE class 23 is integrity constraint violation.
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return ConstraintUnique, true
		case "23503":
			return ConstraintForeignKey, true
		case "23502":
			return ConstraintNotNull, true
		case "23514":
			return ConstraintCheck, true
		}
		if len(pgErr.Code) == 5 && pgErr.Code[:2] == "23" {
			return ConstraintOther, true
		}
		return "", false
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case 1062, 1586:
			return ConstraintUnique, true
		case 1216, 1217, 1451, 1452:
			return ConstraintForeignKey, true
		case 1048, 1364:
			return ConstraintNotNull, true
		case 3819:
			return ConstraintCheck, true
		}
		return "", false
	}

	return "", false
}
