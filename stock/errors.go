/*
errors.go - Error taxonomy for the ledger engine

ERROR CATEGORIES:
  1. Validation - bad input, rejected before any store mutation
  2. Not found  - catalog removal of an unknown id
  3. Conflict   - a concurrent append won the per-key compare-and-set;
                  retried by the ledger, never surfaced directly
  4. Transient  - conflict retries exhausted or the key lock was unavailable

USAGE:
  Sentinels are matched with errors.Is; structured errors carry details
  and Unwrap to their sentinel:

    var verr *stock.ValidationError
    if errors.As(err, &verr) {
        for _, f := range verr.Fields { ... }
    }
*/
package stock

import (
	"errors"
	"fmt"
	"strings"

	"github.com/warp/stock-ledger/lock"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is returned when a draft or catalog input breaks a rule.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is returned when a catalog id does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConcurrentModification is returned by a store when the running
	// balance changed between read and write.
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// ErrTransient is returned when an append could not be completed after
	// retrying. The caller may try again later.
	ErrTransient = errors.New("transient failure")

	// ErrDuplicateName marks a DuplicateNameWarning. It is never returned as
	// the error of an operation.
	ErrDuplicateName = errors.New("duplicate name")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// FieldError is one violated rule.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError lists every violated rule of a single input.
type ValidationError struct {
	Fields []FieldError
}

// NewValidationError returns a ValidationError with a single field.
func NewValidationError(field, message string) *ValidationError {
	v := &ValidationError{}
	v.Add(field, message)
	return v
}

func (e *ValidationError) Add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

// OrNil returns nil when no field was added.
func (e *ValidationError) OrNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Field + " " + f.Message
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NotFoundError names the missing catalog entry.
type NotFoundError struct {
	Kind CatalogKind
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind.Singular(), e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// TransientError reports an append that gave up.
type TransientError struct {
	Key      StockKey
	Attempts int
	Err      error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("append to %s failed after %d attempts: %v", e.Key, e.Attempts, e.Err)
}

func (e *TransientError) Unwrap() []error { return []error{ErrTransient, e.Err} }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification) || errors.Is(err, lock.ErrNotObtained)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
