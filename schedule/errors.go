/*
errors.go - Centralized error types for the schedule engine

PURPOSE:
  All error types in one place for consistency and discoverability. The
  engine itself has no fatal paths - missing or malformed data degrades to
  a defined fallback state - so these errors belong to the write side
  (stores, API) where invariants are actually enforced.

ERROR CATEGORIES:
  1. Lookup errors - referenced records that do not exist
  2. Invariant errors - uniqueness and window violations
  3. Input errors - unparseable periods, unknown frequencies

USAGE:
  Callers classify with errors.Is:

    if errors.Is(err, schedule.ErrDuplicatePeriodPayment) { ... }

SEE ALSO:
  - store.go: interfaces whose implementations return these
  - store/sqlite: maps database constraint violations onto them
*/
package schedule

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrCommitmentNotFound is returned when a referenced commitment doesn't exist.
	ErrCommitmentNotFound = errors.New("commitment not found")

	// ErrTermNotFound is returned when a referenced term doesn't exist.
	ErrTermNotFound = errors.New("term not found")

	// ErrPaymentNotFound is returned when a referenced payment doesn't exist.
	ErrPaymentNotFound = errors.New("payment not found")

	// ErrDuplicatePeriodPayment is returned when a second payment is recorded
	// for the same (commitment, period) pair. At most one may exist.
	ErrDuplicatePeriodPayment = errors.New("payment already recorded for period")

	// ErrTermOverlap is returned when a new term's validity window overlaps
	// an existing term of the same commitment.
	ErrTermOverlap = errors.New("term window overlaps existing term")

	// ErrTermClosed is returned when attempting to modify a superseded term.
	ErrTermClosed = errors.New("term already closed")

	// ErrInvalidPeriod is returned for unparseable or malformed period keys.
	ErrInvalidPeriod = errors.New("invalid period")

	// ErrInvalidFrequency is returned for unknown recurrence frequencies.
	ErrInvalidFrequency = errors.New("invalid frequency")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// DuplicatePaymentError reports which existing payment blocks a new one.
type DuplicatePaymentError struct {
	CommitmentID CommitmentID
	Period       Period
	ExistingID   PaymentID
}

func (e *DuplicatePaymentError) Error() string {
	return fmt.Sprintf("period %s already settled for commitment %s (payment: %s)",
		e.Period, e.CommitmentID, e.ExistingID)
}

func (e *DuplicatePaymentError) Unwrap() error { return ErrDuplicatePeriodPayment }

// TermOverlapError reports which term a new window collides with.
type TermOverlapError struct {
	CommitmentID CommitmentID
	NewFrom      Period
	ExistingTerm TermID
	ExistingFrom Period
}

func (e *TermOverlapError) Error() string {
	return fmt.Sprintf("term starting %s overlaps term %s (from %s) on commitment %s",
		e.NewFrom, e.ExistingTerm, e.ExistingFrom, e.CommitmentID)
}

func (e *TermOverlapError) Unwrap() error { return ErrTermOverlap }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrDuplicatePeriodPayment) ||
		errors.Is(err, ErrTermOverlap) ||
		errors.Is(err, ErrTermClosed) ||
		errors.Is(err, ErrInvalidPeriod) ||
		errors.Is(err, ErrInvalidFrequency)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrCommitmentNotFound) ||
		errors.Is(err, ErrTermNotFound) ||
		errors.Is(err, ErrPaymentNotFound)
}
