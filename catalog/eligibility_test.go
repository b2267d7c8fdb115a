/*
eligibility_test.go - Unit tests for the ordered eligibility rules

CORE DESIGN:
- Rules run in a fixed order and short-circuit on the first failure
- Each failure carries a distinct human-readable message
- MinCreditBalance is independent of CreditCost
*/
package catalog_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/ecosteps/credit-engine/catalog"
	"github.com/ecosteps/credit-engine/catalog/store"
	"github.com/ecosteps/credit-engine/credit"
)

// =============================================================================
// FAKES
// =============================================================================

type fakeBalances struct {
	available int
}

func (f *fakeBalances) Balance(context.Context, credit.UserID) (credit.Balance, error) {
	return credit.Balance{Available: f.available, Earned: f.available}, nil
}

type fakeCounter struct {
	total int
	daily int
}

func (f *fakeCounter) CountByUserAndReward(context.Context, credit.UserID, catalog.RewardID) (int, error) {
	return f.total, nil
}

func (f *fakeCounter) CountDailyByUserAndReward(context.Context, credit.UserID, catalog.RewardID, time.Time) (int, error) {
	return f.daily, nil
}

type checkerFixture struct {
	checker  *catalog.EligibilityChecker
	catalog  *store.Memory
	balances *fakeBalances
	counter  *fakeCounter
	now      time.Time
}

func newFixture(t *testing.T, reward catalog.Reward) *checkerFixture {
	t.Helper()

	cat := store.NewMemory()
	require.NoError(t, cat.SaveReward(context.Background(), reward))

	f := &checkerFixture{
		catalog:  cat,
		balances: &fakeBalances{available: 1000},
		counter:  &fakeCounter{},
		now:      time.Date(2026, time.March, 14, 12, 0, 0, 0, time.UTC),
	}
	f.checker = catalog.NewEligibilityChecker(cat, f.balances, f.counter)
	f.checker.Clock = func() time.Time { return f.now }
	return f
}

func baseReward() catalog.Reward {
	return catalog.Reward{
		ID:            "test-reward",
		Partner:       catalog.PartnerNTUC,
		Name:          "Test Voucher",
		CreditCost:    100,
		MonetaryValue: decimal.NewFromInt(5),
		Category:      catalog.CategoryVoucher,
		StockQuantity: 10,
		IsAvailable:   true,
	}
}

func check(t *testing.T, f *checkerFixture) catalog.Eligibility {
	t.Helper()
	elig, err := f.checker.Check(context.Background(), "user-1", "test-reward")
	require.NoError(t, err)
	return elig
}

// =============================================================================
// RULE TESTS
// =============================================================================

func TestCheck_Eligible(t *testing.T) {
	f := newFixture(t, baseReward())
	elig := check(t, f)
	require.True(t, elig.Eligible)
	require.Equal(t, "Eligible for redemption", elig.Message)
}

func TestCheck_UnknownReward(t *testing.T) {
	f := newFixture(t, baseReward())
	elig, err := f.checker.Check(context.Background(), "user-1", "no-such-reward")
	require.NoError(t, err)
	require.False(t, elig.Eligible)
	require.Equal(t, "Reward not found or not available", elig.Message)
}

func TestCheck_Unavailable(t *testing.T) {
	// GIVEN: Rewards disabled, out of window, or out of stock
	// THEN: All fail rule 1 with the same message

	disabled := baseReward()
	disabled.IsAvailable = false

	past := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	expired := baseReward()
	expired.ValidUntil = &past

	empty := baseReward()
	empty.StockQuantity = 0

	for name, reward := range map[string]catalog.Reward{
		"disabled": disabled, "expired window": expired, "no stock": empty,
	} {
		f := newFixture(t, reward)
		elig := check(t, f)
		if elig.Eligible {
			t.Errorf("%s: expected ineligible", name)
		}
		if elig.Message != "Reward not found or not available" {
			t.Errorf("%s: got message %q", name, elig.Message)
		}
	}
}

func TestCheck_InsufficientCredits(t *testing.T) {
	f := newFixture(t, baseReward())
	f.balances.available = 60

	elig := check(t, f)
	require.False(t, elig.Eligible)
	require.Equal(t, "Insufficient credits. You have 60, need 100", elig.Message)
}

func TestCheck_DailyLimit(t *testing.T) {
	one := 1
	reward := baseReward()
	reward.DailyLimit = &one

	f := newFixture(t, reward)
	f.counter.daily = 1

	elig := check(t, f)
	require.False(t, elig.Eligible)
	require.Equal(t, "Daily limit reached (1/1)", elig.Message)
}

func TestCheck_TotalLimit(t *testing.T) {
	three := 3
	reward := baseReward()
	reward.TotalLimit = &three

	f := newFixture(t, reward)
	f.counter.total = 3

	elig := check(t, f)
	require.False(t, elig.Eligible)
	require.Equal(t, "Total limit reached (3/3)", elig.Message)
}

func TestCheck_MinimumBalance_IndependentOfCost(t *testing.T) {
	// GIVEN: A 100-credit reward requiring a 500-credit standing balance
	// WHEN: The user holds 450 credits
	// THEN: They can afford it but still fail rule 5

	min := 500
	reward := baseReward()
	reward.MinCreditBalance = &min

	f := newFixture(t, reward)
	f.balances.available = 450

	elig := check(t, f)
	require.False(t, elig.Eligible)
	require.Equal(t, "Minimum credit balance required: 500", elig.Message)

	// At exactly the minimum the rule passes
	f.balances.available = 500
	elig = check(t, f)
	require.True(t, elig.Eligible)
}

func TestCheck_RuleOrder_FirstFailureWins(t *testing.T) {
	// GIVEN: A reward violating both the balance rule and the daily limit
	// WHEN: Checking
	// THEN: The balance message (rule 2) is reported, not the limit (rule 3)

	one := 1
	reward := baseReward()
	reward.DailyLimit = &one

	f := newFixture(t, reward)
	f.balances.available = 10
	f.counter.daily = 5

	elig := check(t, f)
	require.False(t, elig.Eligible)
	require.Equal(t, "Insufficient credits. You have 10, need 100", elig.Message)
}
