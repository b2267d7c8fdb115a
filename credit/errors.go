/*
errors.go - Centralized error types for the credit ledger

PURPOSE:
  All ledger error types in one place for consistency and discoverability.
  Consumers branch with errors.Is/errors.As; eligibility-style failures are
  expected business outcomes, not exceptional conditions.

SEE ALSO:
  - ledger.go: Uses these errors
  - redemption: Wraps these errors with workflow context
*/
package credit

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInsufficientCredits is returned when a debit exceeds the available
	// balance at call time. This is an expected business outcome.
	ErrInsufficientCredits = errors.New("insufficient credits")

	// ErrInvalidAmount is returned when an award/debit/refund amount is not
	// strictly positive.
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrUnknownUser is returned when a user ID is empty.
	ErrUnknownUser = errors.New("unknown user")

	// ErrDuplicateTransaction is returned when a transaction ID already exists.
	ErrDuplicateTransaction = errors.New("duplicate transaction id")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InsufficientCreditsError provides details about a balance shortage.
type InsufficientCreditsError struct {
	UserID    UserID
	Available int
	Requested int
}

func (e *InsufficientCreditsError) Error() string {
	return fmt.Sprintf("insufficient credits: available %d, requested %d", e.Available, e.Requested)
}

func (e *InsufficientCreditsError) Unwrap() error {
	return ErrInsufficientCredits
}

// IsClientError returns true if the error is due to invalid caller input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInsufficientCredits) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrUnknownUser)
}
