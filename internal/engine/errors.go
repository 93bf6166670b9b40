package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/nestmap/internal/store"
)

// ErrorCode categorizes mapping errors detected by the engine.
type ErrorCode string

const (
	// ErrCodeValidation indicates input that cannot be mapped, such as a
	// record missing a primary key column.
	ErrCodeValidation ErrorCode = "VALIDATION"

	// ErrCodeCardinality indicates a nested value that does not match its
	// edge: a list on a one edge, a record on a many edge, or a nested
	// value under a column name.
	ErrCodeCardinality ErrorCode = "CARDINALITY"

	// ErrCodeNotFound indicates the update target matches no row.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
)

// Error is a failure detected by the engine itself. Failures raised by
// the database are returned as store errors instead, wrapped with the
// operation name.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Table is the table of the Definition being mapped.
	Table string

	// Message is a human-readable description.
	Message string

	// Err is an optional underlying cause.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.Table != "" {
		return fmt.Sprintf("%s: %s: %s", e.Code, e.Table, msg)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func validationError(table, format string, args ...any) *Error {
	return &Error{Code: ErrCodeValidation, Table: table, Message: fmt.Sprintf(format, args...)}
}

func cardinalityError(table, format string, args ...any) *Error {
	return &Error{Code: ErrCodeCardinality, Table: table, Message: fmt.Sprintf(format, args...)}
}

func notFoundError(table string) *Error {
	return &Error{Code: ErrCodeNotFound, Table: table, Message: "no record matches the primary key"}
}

func hasCode(err error, codes ...ErrorCode) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	for _, c := range codes {
		if e.Code == c {
			return true
		}
	}
	return false
}

// IsValidation returns true for validation and cardinality errors.
// Uses errors.As to handle wrapped errors.
func IsValidation(err error) bool {
	return hasCode(err, ErrCodeValidation, ErrCodeCardinality)
}

// IsCardinality returns true if a nested value did not match its edge.
func IsCardinality(err error) bool {
	return hasCode(err, ErrCodeCardinality)
}

// IsNotFound returns true if the update target was missing.
func IsNotFound(err error) bool {
	return hasCode(err, ErrCodeNotFound)
}

// IsConstraintViolation returns true if the database rejected a write
// because of a constraint.
func IsConstraintViolation(err error) bool {
	return store.IsConstraintViolation(err)
}

// IsTransactionError returns true if a transaction could not begin,
// commit or roll back.
func IsTransactionError(err error) bool {
	return store.IsTransactionError(err)
}
