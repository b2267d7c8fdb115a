/*
Package redemption implements the credit-to-voucher redemption workflow.

PURPOSE:
  Converts a credit balance into a partner voucher through a compensating
  state machine. A redemption reserves credits and stock, calls the partner
  issuer, and either commits a completed voucher or undoes the reservation.

KEY CONCEPTS IN THIS FILE (types.go):
  - Redemption: One attempt, tracked through a status lifecycle
  - VoucherCode: The partner-redeemable artifact tied 1:1 to a completion
  - Status: PENDING -> PROCESSING -> {COMPLETED | FAILED}; COMPLETED -> USED

STATE MACHINE:
  FAILED, CANCELLED, and USED are terminal. EXPIRED is never stored: it is a
  predicate over COMPLETED redemptions evaluated on read, so a clock change
  or a late sweep can never corrupt stored state.

USED-STATE OWNERSHIP:
  VoucherCode is the single mutation target for the used flag; the Redemption
  row mirrors it inside the same store transaction. The two can never diverge
  because no code path updates one without the other.

SEE ALSO:
  - workflow.go: Reservation, issuance, compensation
  - voucher: Partner issuance profiles
*/
package redemption

import (
	"context"
	"time"

	"github.com/ecosteps/credit-engine/catalog"
	"github.com/ecosteps/credit-engine/credit"
)

// =============================================================================
// STATUS - Redemption lifecycle
// =============================================================================

type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
	StatusCancelled  Status = "CANCELLED"
	StatusUsed       Status = "USED"
)

// Terminal reports whether no further stored transition is possible.
func (s Status) Terminal() bool {
	return s == StatusFailed || s == StatusCancelled || s == StatusUsed
}

// =============================================================================
// REDEMPTION
// =============================================================================

type RedemptionID string

// Redemption is one user's attempt to exchange credits for a reward.
//
// CreditCost is snapshotted from the catalog at creation time and is
// immutable thereafter, even if the catalog price later changes. The ledger
// debit and the recorded cost therefore always agree.
type Redemption struct {
	ID         RedemptionID
	UserID     credit.UserID
	RewardID   catalog.RewardID
	CreditCost int
	Status     Status

	VoucherCode          string
	QRCodeURL            string
	ExpiryDate           *time.Time
	UsedAt               *time.Time
	FailureReason        string
	PartnerTransactionID string

	RedeemedAt time.Time
	UpdatedAt  time.Time
}

// Expired reports whether a completed voucher has passed its expiry.
// EXPIRED is computed on read, never written back.
func (r *Redemption) Expired(now time.Time) bool {
	return r.Status == StatusCompleted && r.ExpiryDate != nil && r.ExpiryDate.Before(now)
}

// Active reports whether the voucher can still be presented to a partner.
func (r *Redemption) Active(now time.Time) bool {
	return r.Status == StatusCompleted && !r.Expired(now)
}

// =============================================================================
// VOUCHER CODE
// =============================================================================

// VoucherCode is the denormalized voucher detail for a completed redemption.
// It owns the used flag; the Redemption row mirrors it.
type VoucherCode struct {
	Code             string
	RedemptionID     RedemptionID
	QRCodeURL        string
	Used             bool
	UsedAt           *time.Time
	ExpiryDate       *time.Time
	PartnerReference string
	CreatedAt        time.Time
}

// Valid reports whether the voucher is unused and unexpired at now.
func (v *VoucherCode) Valid(now time.Time) bool {
	if v.Used {
		return false
	}
	if v.ExpiryDate != nil && v.ExpiryDate.Before(now) {
		return false
	}
	return true
}

// =============================================================================
// RESULTS
// =============================================================================

// Result is the definite, persisted outcome of a redemption attempt.
type Result struct {
	Success    bool
	Message    string
	Redemption *Redemption
}

// ValidationResult is the outcome of a read-only voucher check.
type ValidationResult struct {
	Valid      bool
	Message    string
	Redemption *Redemption
}

// Stats summarizes a user's redemption activity.
type Stats struct {
	TotalRedemptions      int
	TotalCreditsSpent     int
	SuccessfulRedemptions int
	UsedRedemptions       int
	ActiveVouchers        int
}

// =============================================================================
// ISSUER - Partner voucher issuance strategy
// =============================================================================

// Issuance is what a partner integration returns on success.
type Issuance struct {
	Code                 string
	QRCodeURL            string
	ExpiryDate           time.Time
	PartnerTransactionID string
}

// Issuer produces a voucher for a redemption. It models a network call with
// real-world latency: the workflow invokes it outside every lock scope and
// under a bounded timeout. An error is compensated, never propagated as a
// debited-but-unresolved state.
type Issuer interface {
	Issue(ctx context.Context, r *Redemption, reward *catalog.Reward) (*Issuance, error)
}

// =============================================================================
// STORE - Redemption persistence
// =============================================================================

// Store handles redemption and voucher persistence.
//
// Redemptions must be queryable by user, by status, by voucher code, and by
// expiry window (for expiry-notification sweeps).
type Store interface {
	CreateRedemption(ctx context.Context, r *Redemption) error
	UpdateRedemption(ctx context.Context, r *Redemption) error
	GetRedemption(ctx context.Context, id RedemptionID) (*Redemption, error)

	ListByUser(ctx context.Context, userID credit.UserID) ([]Redemption, error)
	ListByStatus(ctx context.Context, status Status) ([]Redemption, error)

	// ListActiveByUser returns COMPLETED, unexpired redemptions.
	ListActiveByUser(ctx context.Context, userID credit.UserID, now time.Time) ([]Redemption, error)

	// ListExpiring returns COMPLETED redemptions with expiry in [from, to],
	// for expiry-notification sweeps.
	ListExpiring(ctx context.Context, from, to time.Time) ([]Redemption, error)

	// Limit counters; also satisfy catalog.RedemptionCounter.
	CountByUserAndReward(ctx context.Context, userID credit.UserID, rewardID catalog.RewardID) (int, error)
	CountDailyByUserAndReward(ctx context.Context, userID credit.UserID, rewardID catalog.RewardID, day time.Time) (int, error)

	SaveVoucher(ctx context.Context, v VoucherCode) error
	GetVoucherByCode(ctx context.Context, code string) (*VoucherCode, error)

	// MarkVoucherUsed sets the used flag and timestamp on the voucher and
	// its redemption in one atomic write.
	MarkVoucherUsed(ctx context.Context, code string, partnerRef string, usedAt time.Time) error

	Stats(ctx context.Context, userID credit.UserID, now time.Time) (Stats, error)
}
