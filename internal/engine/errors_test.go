package engine

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/nestmap/internal/store"
)

func TestError_Message(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{"validation", validationError("customers", "missing primary key column %q", "id"), `VALIDATION: customers: missing primary key column "id"`},
		{"not found", notFoundError("orders"), "NOT_FOUND: orders: no record matches the primary key"},
		{"no table", &Error{Code: ErrCodeCardinality, Message: "bad"}, "CARDINALITY: bad"},
		{"with cause", &Error{Code: ErrCodeValidation, Table: "t", Message: "bad", Err: errors.New("cause")}, "VALIDATION: t: bad: cause"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestError_Predicates(t *testing.T) {
	wrapped := fmt.Errorf("update: %w", notFoundError("orders"))
	assert.True(t, IsNotFound(wrapped))
	assert.False(t, IsValidation(wrapped))
	assert.False(t, IsCardinality(wrapped))

	card := fmt.Errorf("insert: %w", cardinalityError("orders", "bad"))
	assert.True(t, IsCardinality(card))
	assert.True(t, IsValidation(card))

	assert.False(t, IsNotFound(errors.New("plain")))
	assert.False(t, IsValidation(nil))
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("cause")
	err := &Error{Code: ErrCodeValidation, Err: cause}
	assert.ErrorIs(t, err, cause)
}

func TestError_StorePredicates(t *testing.T) {
	constraint := fmt.Errorf("insert items: %w", &store.ConstraintError{Table: "items", Kind: store.ConstraintUnique, Err: errors.New("dup")})
	assert.True(t, IsConstraintViolation(constraint))
	assert.False(t, IsTransactionError(constraint))

	tx := &store.TxError{Op: "commit", Err: store.ErrNoTransaction}
	assert.True(t, IsTransactionError(tx))
	assert.False(t, IsConstraintViolation(tx))
}
