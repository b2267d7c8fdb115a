/*
ledger_test.go - Unit tests for the append-only credit ledger

CORE DESIGN:
- Balance is DERIVED from transaction history, never stored
- Debits are serialized per user so a balance check cannot go stale
- earned - spent always equals available
*/
package credit_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ecosteps/credit-engine/credit"
	"github.com/ecosteps/credit-engine/credit/store"
)

func newTestLedger() *credit.Ledger {
	return credit.NewLedger(store.NewMemory())
}

// =============================================================================
// BASIC OPERATIONS
// =============================================================================

func TestLedger_AwardAndBalance(t *testing.T) {
	// GIVEN: A fresh user
	// WHEN: Awarding 150 then 20 credits
	// THEN: Balance derives to 170 available, 170 earned, 0 spent

	l := newTestLedger()
	ctx := context.Background()

	_, err := l.Award(ctx, "user-1", 150, "steps 2026-03-14")
	require.NoError(t, err)
	_, err = l.Award(ctx, "user-1", 20, "steps 2026-03-15")
	require.NoError(t, err)

	b, err := l.Balance(ctx, "user-1")
	require.NoError(t, err)
	require.Equal(t, credit.Balance{Available: 170, Earned: 170, Spent: 0}, b)
}

func TestLedger_DebitReducesAvailableOnly(t *testing.T) {
	// GIVEN: 200 earned credits
	// WHEN: Debiting 80
	// THEN: Available drops, earned is untouched, spent records the debit

	l := newTestLedger()
	ctx := context.Background()

	_, err := l.Award(ctx, "user-1", 200, "steps")
	require.NoError(t, err)
	_, err = l.Debit(ctx, "user-1", 80, "redemption:r1")
	require.NoError(t, err)

	b, err := l.Balance(ctx, "user-1")
	require.NoError(t, err)
	require.Equal(t, credit.Balance{Available: 120, Earned: 200, Spent: 80}, b)
}

func TestLedger_RefundRestoresAvailable(t *testing.T) {
	// GIVEN: A debit of 80 against 200 earned
	// WHEN: Refunding the debit
	// THEN: Available returns to 200; the history keeps all three entries

	l := newTestLedger()
	ctx := context.Background()

	l.Award(ctx, "user-1", 200, "steps")
	l.Debit(ctx, "user-1", 80, "redemption:r1")
	_, err := l.Refund(ctx, "user-1", 80, "refund:r1")
	require.NoError(t, err)

	b, err := l.Balance(ctx, "user-1")
	require.NoError(t, err)
	require.Equal(t, 200, b.Available)

	txs, err := l.Transactions(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, txs, 3)
}

func TestLedger_InsufficientCredits(t *testing.T) {
	// GIVEN: 50 available credits
	// WHEN: Debiting 100
	// THEN: ErrInsufficientCredits, no ledger entry appended

	l := newTestLedger()
	ctx := context.Background()

	l.Award(ctx, "user-1", 50, "steps")
	_, err := l.Debit(ctx, "user-1", 100, "redemption:r1")
	require.ErrorIs(t, err, credit.ErrInsufficientCredits)

	var detail *credit.InsufficientCreditsError
	require.ErrorAs(t, err, &detail)
	require.Equal(t, 50, detail.Available)
	require.Equal(t, 100, detail.Requested)

	txs, err := l.Transactions(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, txs, 1)
}

func TestLedger_RejectsNonPositiveAmounts(t *testing.T) {
	l := newTestLedger()
	ctx := context.Background()

	_, err := l.Award(ctx, "user-1", 0, "steps")
	require.ErrorIs(t, err, credit.ErrInvalidAmount)
	_, err = l.Debit(ctx, "user-1", -5, "redemption:r1")
	require.ErrorIs(t, err, credit.ErrInvalidAmount)
	_, err = l.Award(ctx, "", 10, "steps")
	require.ErrorIs(t, err, credit.ErrUnknownUser)
}

// =============================================================================
// CONSISTENCY UNDER CONCURRENCY
// =============================================================================

func TestLedger_ConcurrentDebits_NeverOverspend(t *testing.T) {
	// GIVEN: 100 available credits
	// WHEN: 20 goroutines each try to debit 30
	// THEN: Exactly 3 succeed; the balance never goes negative

	l := newTestLedger()
	ctx := context.Background()
	l.Award(ctx, "user-1", 100, "steps")

	var wg sync.WaitGroup
	results := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.Debit(ctx, "user-1", 30, "redemption:race")
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		if err == nil {
			succeeded++
		} else {
			require.ErrorIs(t, err, credit.ErrInsufficientCredits)
		}
	}
	require.Equal(t, 3, succeeded)

	b, err := l.Balance(ctx, "user-1")
	require.NoError(t, err)
	require.Equal(t, 10, b.Available)
}

func TestLedger_ConsistencyInvariant(t *testing.T) {
	// GIVEN: A mixed history of awards, debits, and refunds
	// WHEN: Deriving the balance
	// THEN: earned - spent == available

	l := newTestLedger()
	ctx := context.Background()

	l.Award(ctx, "user-1", 300, "steps a")
	l.Debit(ctx, "user-1", 120, "redemption:r1")
	l.Award(ctx, "user-1", 40, "steps b")
	l.Debit(ctx, "user-1", 60, "redemption:r2")
	l.Refund(ctx, "user-1", 60, "refund:r2")

	b, err := l.Balance(ctx, "user-1")
	require.NoError(t, err)
	require.Equal(t, b.Available, b.Earned-b.Spent)
	require.Equal(t, 220, b.Available)
}
