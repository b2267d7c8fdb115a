/*
eligibility.go - Ordered redemption eligibility rules

PURPOSE:
  Decides whether a user may redeem a reward right now. Rules run in a fixed
  order and short-circuit on the first failure, each with a distinct
  human-readable reason. Ineligibility is an expected business outcome: it is
  returned as a value, never as an error.

RULE ORDER:
  1. Reward exists and is currently available (flag, window, stock)
  2. Available balance covers the credit cost
  3. Daily per-user limit not reached
  4. All-time per-user limit not reached
  5. Minimum standing balance requirement met

NOTE ON RULE 5:
  MinCreditBalance is independent of CreditCost. A reward may require a
  higher standing balance than its price (e.g. premium rewards reserved for
  committed users).

SEE ALSO:
  - redemption: Re-runs this check inside the reservation boundary
*/
package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/ecosteps/credit-engine/credit"
)

// =============================================================================
// COLLABORATOR INTERFACES
// =============================================================================

// BalanceReader exposes the derived credit balance.
// Satisfied by *credit.Ledger.
type BalanceReader interface {
	Balance(ctx context.Context, userID credit.UserID) (credit.Balance, error)
}

// RedemptionCounter counts a user's prior redemption attempts for a reward.
// Failed attempts count toward limits; a user who burns their daily slot on
// a partner outage does not get it back. Satisfied by the redemption store.
type RedemptionCounter interface {
	// CountByUserAndReward returns the user's all-time redemption count.
	CountByUserAndReward(ctx context.Context, userID credit.UserID, rewardID RewardID) (int, error)

	// CountDailyByUserAndReward returns the user's redemption count for the
	// calendar day containing day.
	CountDailyByUserAndReward(ctx context.Context, userID credit.UserID, rewardID RewardID, day time.Time) (int, error)
}

// =============================================================================
// ELIGIBILITY CHECKER
// =============================================================================

// Eligibility is the outcome of a check. Message carries the first violated
// rule's reason when Eligible is false.
type Eligibility struct {
	Eligible bool
	Message  string
}

// EligibilityChecker evaluates the redemption rules for a user and reward.
type EligibilityChecker struct {
	Catalog     Store
	Balances    BalanceReader
	Redemptions RedemptionCounter

	// Clock is injectable for deterministic tests. Defaults to time.Now.
	Clock func() time.Time
}

func NewEligibilityChecker(catalog Store, balances BalanceReader, redemptions RedemptionCounter) *EligibilityChecker {
	return &EligibilityChecker{
		Catalog:     catalog,
		Balances:    balances,
		Redemptions: redemptions,
		Clock:       time.Now,
	}
}

// Check evaluates all rules in order and returns the first failure.
// A returned error means the check itself could not run (storage failure),
// not that the user is ineligible.
func (c *EligibilityChecker) Check(ctx context.Context, userID credit.UserID, rewardID RewardID) (Eligibility, error) {
	now := c.Clock()

	// Rule 1: reward exists and is currently available.
	reward, err := c.Catalog.GetReward(ctx, rewardID)
	if err != nil {
		return Eligibility{}, err
	}
	if reward == nil || !reward.CurrentlyAvailable(now) {
		return ineligible("Reward not found or not available"), nil
	}

	// Rule 2: balance covers the cost.
	bal, err := c.Balances.Balance(ctx, userID)
	if err != nil {
		return Eligibility{}, err
	}
	if bal.Available < reward.CreditCost {
		return ineligible(fmt.Sprintf("Insufficient credits. You have %d, need %d", bal.Available, reward.CreditCost)), nil
	}

	// Rule 3: daily limit.
	if reward.DailyLimit != nil {
		n, err := c.Redemptions.CountDailyByUserAndReward(ctx, userID, rewardID, now)
		if err != nil {
			return Eligibility{}, err
		}
		if n >= *reward.DailyLimit {
			return ineligible(fmt.Sprintf("Daily limit reached (%d/%d)", n, *reward.DailyLimit)), nil
		}
	}

	// Rule 4: all-time limit.
	if reward.TotalLimit != nil {
		n, err := c.Redemptions.CountByUserAndReward(ctx, userID, rewardID)
		if err != nil {
			return Eligibility{}, err
		}
		if n >= *reward.TotalLimit {
			return ineligible(fmt.Sprintf("Total limit reached (%d/%d)", n, *reward.TotalLimit)), nil
		}
	}

	// Rule 5: minimum standing balance, independent of cost.
	if reward.MinCreditBalance != nil && bal.Available < *reward.MinCreditBalance {
		return ineligible(fmt.Sprintf("Minimum credit balance required: %d", *reward.MinCreditBalance)), nil
	}

	return Eligibility{Eligible: true, Message: "Eligible for redemption"}, nil
}

func ineligible(msg string) Eligibility {
	return Eligibility{Eligible: false, Message: msg}
}
