package cli

import (
	"github.com/roach88/nestmap/internal/engine"
)

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric  = "E001" // Generic/unknown error
	ErrCodeConfig   = "E002" // Config file, .env or missing setting
	ErrCodeSchema   = "E003" // Schema document failed to load
	ErrCodeConnect  = "E004" // Database connection failed
	ErrCodeNotFound = "E005" // Path or definition not found
	ErrCodeInput    = "E006" // Malformed --data or --where
	ErrCodeExec     = "E007" // SQL script failed

	ErrCodeTestFailed = "E_TEST_FAILED" // One or more scenarios failed

	// Engine errors
	ErrCodeValidation     = "E010" // Missing key or nil record
	ErrCodeRecordNotFound = "E011" // Update target does not exist
	ErrCodeCardinality    = "E012" // Nested value does not fit its edge
	ErrCodeConstraint     = "E013" // Database constraint violated
	ErrCodeTransaction    = "E014" // Begin/commit/rollback failed
)

// engineErrorCode maps an engine error to a CLI error code.
func engineErrorCode(err error) string {
	switch {
	case engine.IsValidation(err):
		return ErrCodeValidation
	case engine.IsNotFound(err):
		return ErrCodeRecordNotFound
	case engine.IsCardinality(err):
		return ErrCodeCardinality
	case engine.IsConstraintViolation(err):
		return ErrCodeConstraint
	case engine.IsTransactionError(err):
		return ErrCodeTransaction
	default:
		return ErrCodeGeneric
	}
}
