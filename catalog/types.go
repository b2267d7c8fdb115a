/*
Package catalog provides the reward catalog model and redemption eligibility.

PURPOSE:
  Rewards are partner-fulfilled voucher offers priced in eco-credits. This
  package owns the catalog entry model (stock, validity window, per-user
  limits) and the EligibilityChecker that decides whether a user may redeem
  a given entry right now.

KEY CONCEPTS IN THIS FILE (types.go):
  - Partner: Enumerated partner identity used for voucher issuer dispatch
  - Reward: A catalog entry with cost, stock, and limit configuration
  - Store: Catalog persistence including the conditional stock decrement

DESIGN NOTES:
  Partner is an enumerated identifier, not free text. Voucher issuance
  dispatches on it via an explicit lookup table, so a typo in a seeded
  catalog row cannot silently select the wrong integration.

SEE ALSO:
  - eligibility.go: Ordered redemption eligibility rules
  - voucher: Partner issuance profiles keyed by Partner
*/
package catalog

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// PARTNER - Enumerated partner identity
// =============================================================================

// Partner identifies the third-party merchant fulfilling a reward.
type Partner string

const (
	PartnerNTUC      Partner = "ntuc"
	PartnerStarbucks Partner = "starbucks"
	PartnerGrab      Partner = "grab"
)

// Known returns true for partners with a dedicated issuance integration.
// Unknown partners fall back to the default issuance profile.
func (p Partner) Known() bool {
	switch p {
	case PartnerNTUC, PartnerStarbucks, PartnerGrab:
		return true
	}
	return false
}

// =============================================================================
// REWARD - Catalog entry
// =============================================================================

type RewardID string

type Category string

const (
	CategoryVoucher      Category = "voucher"
	CategoryDiscount     Category = "discount"
	CategoryPhysicalGood Category = "physical_good"
	CategoryService      Category = "service"
)

// Reward is a redeemable catalog entry. Stock is the only field mutated by
// the redemption workflow (decrement on reservation, restore on
// compensation); everything else is managed by the catalog collaborator.
type Reward struct {
	ID            RewardID
	Partner       Partner
	Name          string
	Description   string
	CreditCost    int
	MonetaryValue decimal.Decimal // e.g. 5.00 for a $5 NTUC voucher
	Category      Category

	StockQuantity  int
	UnlimitedStock bool

	IsAvailable bool
	IsFeatured  bool

	ValidFrom  *time.Time
	ValidUntil *time.Time

	// Per-user redemption constraints. Nil means unconstrained.
	MinCreditBalance *int
	DailyLimit       *int
	TotalLimit       *int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// CurrentlyAvailable reports whether the reward can be redeemed at all:
// available flag set, inside the validity window, and in stock.
func (r *Reward) CurrentlyAvailable(now time.Time) bool {
	if !r.IsAvailable {
		return false
	}
	if !r.UnlimitedStock && r.StockQuantity <= 0 {
		return false
	}
	if r.ValidFrom != nil && now.Before(*r.ValidFrom) {
		return false
	}
	if r.ValidUntil != nil && now.After(*r.ValidUntil) {
		return false
	}
	return true
}

// =============================================================================
// STORE - Catalog persistence
// =============================================================================

// Store handles reward catalog persistence.
type Store interface {
	// GetReward returns a reward by ID, or nil if it does not exist.
	GetReward(ctx context.Context, id RewardID) (*Reward, error)

	// SaveReward inserts or updates a catalog entry.
	SaveReward(ctx context.Context, r Reward) error

	// ListAvailable returns rewards currently available at now.
	ListAvailable(ctx context.Context, now time.Time) ([]Reward, error)

	// ListFeatured returns featured rewards currently available at now.
	ListFeatured(ctx context.Context, now time.Time) ([]Reward, error)

	// ListByCategory returns available rewards in a category.
	ListByCategory(ctx context.Context, category Category, now time.Time) ([]Reward, error)

	// ListAffordable returns available rewards costing at most credits.
	ListAffordable(ctx context.Context, credits int, now time.Time) ([]Reward, error)

	// DecrementStock atomically decrements stock if it is positive.
	// Returns false if the reward is finite-stock and already at zero:
	// the caller lost the race and must not proceed. Unlimited-stock
	// rewards always succeed without mutation.
	DecrementStock(ctx context.Context, id RewardID) (bool, error)

	// RestoreStock undoes one reservation on a finite-stock reward.
	// No-op for unlimited stock. Called exactly once per compensated
	// redemption.
	RestoreStock(ctx context.Context, id RewardID) error
}
