/*
Package credit provides the eco-credit ledger engine.

PURPOSE:
  This package contains the core types and algorithms for tracking eco-credits.
  Credits are earned from sustainable activity (step conversion), spent on
  reward redemptions, and refunded when a redemption fails. The ledger is the
  single source of truth; a user's balance is always derived by replaying
  their transactions.

KEY CONCEPTS IN THIS FILE (types.go):
  - CreditTransaction: An immutable ledger entry recording a signed movement
  - Kind: What the movement represents (earned, redemption, refund)
  - Balance: Derived aggregate (available = earned - spent)
  - User/Transaction IDs: Type-safe identifiers

DESIGN PRINCIPLES:
  1. Immutability: Transactions are never edited or deleted, only compensated
  2. Derivation: No stored balance counter is ever authoritative
  3. Type Safety: Strong typing for IDs prevents mixing user/transaction IDs
  4. Auditability: Every movement carries a source and timestamp

USAGE:
  ledger := credit.NewLedger(store)
  txID, err := ledger.Award(ctx, "user-1", 170, "Converted 12000 steps")
  bal, err := ledger.Balance(ctx, "user-1")

SEE ALSO:
  - ledger.go: Award/Debit/Refund operations and balance derivation
  - store.go: Persistence interface
  - errors.go: Sentinel and structured errors
*/
package credit

import (
	"time"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type UserID string
type TransactionID string

// =============================================================================
// TRANSACTION - Atomic signed movement of eco-credits
// =============================================================================

// Kind classifies why credits moved.
type Kind string

const (
	KindEarned     Kind = "earned"     // Activity conversion (positive)
	KindRedemption Kind = "redemption" // Reward redemption debit (negative)
	KindRefund     Kind = "refund"     // Compensation for a failed redemption (positive)
)

// CreditTransaction is an immutable ledger entry. Once written it is never
// mutated or deleted; corrections are new compensating entries.
type CreditTransaction struct {
	ID        TransactionID
	UserID    UserID
	Amount    int // signed: positive for earned/refund, negative for redemption
	Kind      Kind
	Source    string // free text, e.g. "Converted 12000 steps" or a redemption ID
	CreatedAt time.Time
}

// =============================================================================
// BALANCE - Derived aggregate, never stored
// =============================================================================

// Balance summarizes a user's ledger.
//
//	Earned    = sum of positive amounts
//	Spent     = sum of |negative amounts|
//	Available = Earned - Spent
type Balance struct {
	Available int
	Earned    int
	Spent     int
}

// Derive computes a Balance from a transaction history.
func Derive(txs []CreditTransaction) Balance {
	var b Balance
	for _, tx := range txs {
		if tx.Amount >= 0 {
			b.Earned += tx.Amount
		} else {
			b.Spent += -tx.Amount
		}
	}
	b.Available = b.Earned - b.Spent
	return b
}
