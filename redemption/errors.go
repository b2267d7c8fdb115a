/*
errors.go - Workflow error taxonomy

PURPOSE:
  Distinguishes expected business outcomes (eligibility failures, unknown
  vouchers) from genuine faults (partner outages, storage errors). Expected
  outcomes travel as Result/ValidationResult values; these error types cover
  the fault paths and the taxonomy callers branch on.
*/
package redemption

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrRedemptionNotFound is returned for an unknown redemption ID.
	ErrRedemptionNotFound = errors.New("redemption not found")

	// ErrVoucherNotFound is returned for an unknown voucher code.
	ErrVoucherNotFound = errors.New("voucher not found")

	// ErrStockConflict is returned internally when a conditional stock
	// decrement loses a race. Always compensated before surfacing.
	ErrStockConflict = errors.New("reward out of stock")

	// ErrPartnerUnavailable wraps simulated or real partner failures,
	// including issuance timeouts.
	ErrPartnerUnavailable = errors.New("partner unavailable")

	// ErrInvalidTransition is returned when a status change violates the
	// state machine (e.g. cancelling a completed redemption).
	ErrInvalidTransition = errors.New("invalid status transition")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// PartnerError carries the partner-facing failure detail.
type PartnerError struct {
	Partner string
	Message string
}

func (e *PartnerError) Error() string {
	return fmt.Sprintf("partner %s: %s", e.Partner, e.Message)
}

func (e *PartnerError) Unwrap() error { return ErrPartnerUnavailable }
