/*
errors.go - Centralized error types for the engine

PURPOSE:
  All error categories in one place. The taxonomy distinguishes:
  1. Validation errors  - malformed input, rejected before any write
  2. Conflicts          - duplicate hashes, absorbed as no-ops by callers
  3. Period locks       - explicit user-facing re-import guard
  4. Batch failures     - whole-batch rollback, fatal for that batch only

  Skip conditions (zero amount, unrecognized type, refund with no matching
  order) are NOT errors: the normalizer reports them as counted skips.
  Row-level soft failures are collected as RowError values alongside
  successes and never abort sibling rows.

USAGE:
  Domain packages wrap these with context:

    if errors.Is(err, engine.ErrPeriodLocked) {
        var locked *engine.PeriodLockedError
        errors.As(err, &locked)
        // report locked.LockedBy / locked.LockedAt
    }
*/
package engine

import (
	"errors"
	"fmt"
	"time"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNegativeCost is returned when a cost update carries a negative value.
	// Rejected before any write.
	ErrNegativeCost = errors.New("cost per unit must not be negative")

	// ErrInvalidRange is returned when a query range ends before it starts.
	ErrInvalidRange = errors.New("invalid range: end before start")

	// ErrDuplicateHash is returned by stores when a fee record's hash already
	// exists. Callers treat this as a no-op, not a failure.
	ErrDuplicateHash = errors.New("duplicate fee hash")

	// ErrPeriodLocked is returned when importing a statement period that has
	// already been imported and locked.
	ErrPeriodLocked = errors.New("statement period is locked")

	// ErrBatchFailed is returned when a bulk import cannot commit. The whole
	// batch is rolled back.
	ErrBatchFailed = errors.New("statement batch failed")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// PeriodLockedError names the lock holder and timestamp so the caller can
// surface who locked the period and when.
type PeriodLockedError struct {
	Source    string
	PeriodKey string
	LockedBy  string
	LockedAt  time.Time
}

func (e *PeriodLockedError) Error() string {
	return fmt.Sprintf("period %s/%s is locked by %s since %s",
		e.Source, e.PeriodKey, e.LockedBy, e.LockedAt.Format("2006-01-02 15:04:05"))
}

func (e *PeriodLockedError) Unwrap() error {
	return ErrPeriodLocked
}

// RowError is a soft, per-row failure collected during bulk processing.
// Row errors never abort sibling rows.
type RowError struct {
	Line   int // 1-based position in the imported batch
	Reason string
}

func (e RowError) Error() string {
	return fmt.Sprintf("row %d: %s", e.Line, e.Reason)
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsValidation reports whether the error is invalid client input.
func IsValidation(err error) bool {
	return errors.Is(err, ErrNegativeCost) ||
		errors.Is(err, ErrInvalidRange)
}

// IsConflict reports whether the error is an idempotency conflict that the
// caller may safely absorb.
func IsConflict(err error) bool {
	return errors.Is(err, ErrDuplicateHash)
}

// IsLocked reports whether the error is a period-lock violation.
func IsLocked(err error) bool {
	return errors.Is(err, ErrPeriodLocked)
}
