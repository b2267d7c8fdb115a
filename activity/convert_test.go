/*
convert_test.go - Unit tests for step-to-credit conversion and submission

CORE DESIGN:
- Credits = steps/100 (integer) plus a single bonus tier
- Goal progress is capped at 100%
- A submission appends one ledger entry and runs achievement evaluation
*/
package activity

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ecosteps/credit-engine/achievement"
	"github.com/ecosteps/credit-engine/credit"
	creditstore "github.com/ecosteps/credit-engine/credit/store"
)

// =============================================================================
// CONVERSION TESTS
// =============================================================================

func TestConvertSteps_BonusTiers(t *testing.T) {
	// GIVEN: The fixed conversion table
	// WHEN: Converting step counts across every tier boundary
	// THEN: Base is steps/100 and exactly one bonus tier applies

	cases := []struct {
		steps string
		in    int
		base  int
		bonus int
		total int
	}{
		{"below minimum", 99, 0, 0, 0},
		{"first credit", 100, 1, 0, 1},
		{"below first tier", 999, 9, 0, 9},
		{"first tier", 1000, 10, 10, 20},
		{"mid tier", 4999, 49, 10, 59},
		{"second tier", 5000, 50, 25, 75},
		{"below top tier", 9999, 99, 25, 124},
		{"top tier", 10000, 100, 50, 150},
		{"past the goal", 12000, 120, 50, 170},
	}

	for _, tc := range cases {
		conv, err := ConvertSteps(tc.in)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.steps, err)
		}
		if conv.BaseCredits != tc.base || conv.BonusCredits != tc.bonus || conv.TotalCredits != tc.total {
			t.Errorf("%s (%d steps): got base=%d bonus=%d total=%d, want %d/%d/%d",
				tc.steps, tc.in, conv.BaseCredits, conv.BonusCredits, conv.TotalCredits,
				tc.base, tc.bonus, tc.total)
		}
	}
}

func TestConvertSteps_GoalProgressCapped(t *testing.T) {
	// GIVEN: A step count past the 10,000 daily goal
	// WHEN: Converting
	// THEN: Progress reports exactly 100, not 120

	conv, err := ConvertSteps(12000)
	require.NoError(t, err)
	require.Equal(t, 100.0, conv.GoalProgress)

	conv, err = ConvertSteps(2500)
	require.NoError(t, err)
	require.Equal(t, 25.0, conv.GoalProgress)
}

func TestConvertSteps_NegativeRejected(t *testing.T) {
	_, err := ConvertSteps(-1)
	require.ErrorIs(t, err, ErrInvalidSteps)
}

// =============================================================================
// SUBMISSION TESTS
// =============================================================================

type memoryAchievements struct {
	byUser map[credit.UserID]map[achievement.Type]achievement.Achievement
}

func newMemoryAchievements() *memoryAchievements {
	return &memoryAchievements{byUser: make(map[credit.UserID]map[achievement.Type]achievement.Achievement)}
}

func (m *memoryAchievements) SaveAchievement(_ context.Context, a achievement.Achievement) error {
	if m.byUser[a.UserID] == nil {
		m.byUser[a.UserID] = make(map[achievement.Type]achievement.Achievement)
	}
	if _, ok := m.byUser[a.UserID][a.Type]; ok {
		return achievement.ErrAlreadyUnlocked
	}
	m.byUser[a.UserID][a.Type] = a
	return nil
}

func (m *memoryAchievements) HasAchievement(_ context.Context, userID credit.UserID, typ achievement.Type) (bool, error) {
	_, ok := m.byUser[userID][typ]
	return ok, nil
}

func (m *memoryAchievements) ListByUser(_ context.Context, userID credit.UserID) ([]achievement.Achievement, error) {
	var out []achievement.Achievement
	for _, a := range m.byUser[userID] {
		out = append(out, a)
	}
	return out, nil
}

func newTestTracker() *Tracker {
	ledger := credit.NewLedger(creditstore.NewMemory())
	evaluator := achievement.NewEvaluator(newMemoryAchievements(), zap.NewNop())
	return NewTracker(ledger, evaluator)
}

func TestSubmit_FullDay(t *testing.T) {
	// GIVEN: A fresh user
	// WHEN: Submitting 12,000 steps
	// THEN: 170 credits are awarded, all four achievements unlock, and the
	//       balance reflects the award

	tracker := newTestTracker()
	ctx := context.Background()
	date := time.Date(2026, time.March, 14, 0, 0, 0, 0, time.UTC)

	result, err := tracker.Submit(ctx, "user-1", 12000, date)
	require.NoError(t, err)

	require.Equal(t, 170, result.Conversion.TotalCredits)
	require.Len(t, result.NewAchievements, 4)
	require.Equal(t, 170, result.Balance.Available)
	require.NotEmpty(t, result.TransactionID)

	txs, err := tracker.Ledger.Transactions(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, txs, 1)
	require.Equal(t, credit.KindEarned, txs[0].Kind)
}

func TestSubmit_UnderMinimum_NoLedgerEntry(t *testing.T) {
	// GIVEN: A submission worth zero credits
	// WHEN: Submitting 99 steps
	// THEN: No ledger entry is appended, balance stays zero

	tracker := newTestTracker()
	ctx := context.Background()

	result, err := tracker.Submit(ctx, "user-1", 99, time.Now())
	require.NoError(t, err)
	require.Equal(t, 0, result.Conversion.TotalCredits)
	require.Empty(t, result.TransactionID)

	txs, err := tracker.Ledger.Transactions(ctx, "user-1")
	require.NoError(t, err)
	require.Empty(t, txs)
}

func TestSubmit_RepeatDay_NoDuplicateAchievements(t *testing.T) {
	// GIVEN: A user who already unlocked achievements for a big day
	// WHEN: Submitting again
	// THEN: Credits accrue again but no achievement unlocks twice

	tracker := newTestTracker()
	ctx := context.Background()
	date := time.Date(2026, time.March, 14, 0, 0, 0, 0, time.UTC)

	first, err := tracker.Submit(ctx, "user-1", 12000, date)
	require.NoError(t, err)
	require.Len(t, first.NewAchievements, 4)

	second, err := tracker.Submit(ctx, "user-1", 12000, date.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Empty(t, second.NewAchievements)
	require.Equal(t, 340, second.Balance.Available)
}
