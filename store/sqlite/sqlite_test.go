/*
sqlite_test.go - Integration tests for the SQLite store

Uses an in-memory database per test. Covers the contract points the domain
packages lean on: append-only ordering, conditional stock decrement, the
date-based limit counters, and atomic voucher use.
*/
package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/ecosteps/credit-engine/achievement"
	"github.com/ecosteps/credit-engine/catalog"
	"github.com/ecosteps/credit-engine/credit"
	"github.com/ecosteps/credit-engine/redemption"
	"github.com/ecosteps/credit-engine/user"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// =============================================================================
// LEDGER
// =============================================================================

func TestLedgerStore_AppendAndLoad(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, time.March, 14, 10, 0, 0, 0, time.UTC)

	for i, tx := range []credit.CreditTransaction{
		{ID: "t1", UserID: "user-1", Amount: 150, Kind: credit.KindEarned, Source: "steps 2026-03-14", CreatedAt: base},
		{ID: "t2", UserID: "user-1", Amount: -100, Kind: credit.KindRedemption, Source: "redemption:r1", CreatedAt: base.Add(time.Hour)},
		{ID: "t3", UserID: "user-2", Amount: 20, Kind: credit.KindEarned, Source: "steps", CreatedAt: base},
	} {
		require.NoError(t, s.Append(ctx, tx), "tx %d", i)
	}

	txs, err := s.Load(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, txs, 2)
	require.Equal(t, credit.TransactionID("t1"), txs[0].ID)
	require.Equal(t, credit.TransactionID("t2"), txs[1].ID)
	require.Equal(t, -100, txs[1].Amount)

	require.Equal(t, credit.Balance{Available: 50, Earned: 150, Spent: 100}, credit.Derive(txs))
}

func TestLedgerStore_DuplicateIDRejected(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	tx := credit.CreditTransaction{
		ID: "t1", UserID: "user-1", Amount: 10, Kind: credit.KindEarned, CreatedAt: time.Now().UTC(),
	}

	require.NoError(t, s.Append(ctx, tx))
	require.ErrorIs(t, s.Append(ctx, tx), credit.ErrDuplicateTransaction)
}

func TestLedgerStore_LoadRange(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		require.NoError(t, s.Append(ctx, credit.CreditTransaction{
			ID: credit.TransactionID(rune('a' + i)), UserID: "user-1", Amount: 10,
			Kind: credit.KindEarned, CreatedAt: base.AddDate(0, 0, i),
		}))
	}

	txs, err := s.LoadRange(ctx, "user-1", base.AddDate(0, 0, 1), base.AddDate(0, 0, 3))
	require.NoError(t, err)
	require.Len(t, txs, 3)
}

// =============================================================================
// CATALOG
// =============================================================================

func testReward(stock int) catalog.Reward {
	now := time.Now().UTC()
	return catalog.Reward{
		ID: "r1", Partner: catalog.PartnerNTUC, Name: "Test", CreditCost: 100,
		MonetaryValue: decimal.NewFromInt(5), Category: catalog.CategoryVoucher,
		StockQuantity: stock, IsAvailable: true, CreatedAt: now, UpdatedAt: now,
	}
}

func TestCatalogStore_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	min := 50

	r := testReward(10)
	r.IsFeatured = true
	r.MinCreditBalance = &min
	require.NoError(t, s.SaveReward(ctx, r))

	got, err := s.GetReward(ctx, "r1")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, r.Name, got.Name)
	require.True(t, got.MonetaryValue.Equal(decimal.NewFromInt(5)))
	require.NotNil(t, got.MinCreditBalance)
	require.Equal(t, 50, *got.MinCreditBalance)

	missing, err := s.GetReward(ctx, "nope")
	require.NoError(t, err)
	require.Nil(t, missing)
}

func TestCatalogStore_CorruptMonetaryValueSurfacesError(t *testing.T) {
	// GIVEN: A stored row whose monetary_value text is not a valid decimal
	// WHEN: Reading the reward back
	// THEN: The parse failure is reported, not silently zeroed

	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveReward(ctx, testReward(10)))
	_, err := s.db.Exec(`UPDATE rewards SET monetary_value = 'not-a-number' WHERE id = 'r1'`)
	require.NoError(t, err)

	_, err = s.GetReward(ctx, "r1")
	require.Error(t, err)
	require.Contains(t, err.Error(), "monetary_value")
}

func TestCatalogStore_AvailabilityQueries(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	inStock := testReward(10)
	inStock.IsFeatured = true
	require.NoError(t, s.SaveReward(ctx, inStock))

	soldOut := testReward(0)
	soldOut.ID = "r2"
	require.NoError(t, s.SaveReward(ctx, soldOut))

	expired := testReward(10)
	expired.ID = "r3"
	past := now.AddDate(0, 0, -1)
	expired.ValidUntil = &past
	require.NoError(t, s.SaveReward(ctx, expired))

	cheapUnlimited := testReward(0)
	cheapUnlimited.ID = "r4"
	cheapUnlimited.UnlimitedStock = true
	cheapUnlimited.CreditCost = 30
	require.NoError(t, s.SaveReward(ctx, cheapUnlimited))

	available, err := s.ListAvailable(ctx, now)
	require.NoError(t, err)
	require.Len(t, available, 2) // r1 and r4

	featured, err := s.ListFeatured(ctx, now)
	require.NoError(t, err)
	require.Len(t, featured, 1)
	require.Equal(t, catalog.RewardID("r1"), featured[0].ID)

	affordable, err := s.ListAffordable(ctx, 50, now)
	require.NoError(t, err)
	require.Len(t, affordable, 1)
	require.Equal(t, catalog.RewardID("r4"), affordable[0].ID)
}

func TestCatalogStore_ConditionalDecrement(t *testing.T) {
	// GIVEN: A reward with one unit left
	// WHEN: Decrementing twice
	// THEN: The first claim wins, the second reports false; restore brings
	//       the unit back

	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.SaveReward(ctx, testReward(1)))

	ok, err := s.DecrementStock(ctx, "r1")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = s.DecrementStock(ctx, "r1")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.RestoreStock(ctx, "r1"))
	got, err := s.GetReward(ctx, "r1")
	require.NoError(t, err)
	require.Equal(t, 1, got.StockQuantity)
}

func TestCatalogStore_UnlimitedStockNeverBlocks(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	r := testReward(0)
	r.UnlimitedStock = true
	require.NoError(t, s.SaveReward(ctx, r))

	for i := 0; i < 5; i++ {
		ok, err := s.DecrementStock(ctx, "r1")
		require.NoError(t, err)
		require.True(t, ok)
	}
}

// =============================================================================
// REDEMPTIONS AND VOUCHERS
// =============================================================================

func seedRedemption(t *testing.T, s *Store, id redemption.RedemptionID, status redemption.Status, redeemedAt time.Time) *redemption.Redemption {
	t.Helper()
	r := &redemption.Redemption{
		ID: id, UserID: "user-1", RewardID: "r1", CreditCost: 100,
		Status: status, RedeemedAt: redeemedAt, UpdatedAt: redeemedAt,
	}
	require.NoError(t, s.CreateRedemption(context.Background(), r))
	return r
}

func TestRedemptionStore_ListAndCount(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, time.March, 14, 10, 0, 0, 0, time.UTC)

	seedRedemption(t, s, "a", redemption.StatusCompleted, base)
	seedRedemption(t, s, "b", redemption.StatusFailed, base.Add(time.Hour))
	seedRedemption(t, s, "c", redemption.StatusCompleted, base.AddDate(0, 0, 1))

	byUser, err := s.ListByUser(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, byUser, 3)
	require.Equal(t, redemption.RedemptionID("c"), byUser[0].ID) // newest first

	failed, err := s.ListByStatus(ctx, redemption.StatusFailed)
	require.NoError(t, err)
	require.Len(t, failed, 1)

	total, err := s.CountByUserAndReward(ctx, "user-1", "r1")
	require.NoError(t, err)
	require.Equal(t, 3, total) // failed attempts count

	daily, err := s.CountDailyByUserAndReward(ctx, "user-1", "r1", base)
	require.NoError(t, err)
	require.Equal(t, 2, daily) // a and b share the calendar day
}

func TestRedemptionStore_ExpiryQueries(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, time.March, 14, 10, 0, 0, 0, time.UTC)

	active := seedRedemption(t, s, "a", redemption.StatusCompleted, now)
	future := now.Add(48 * time.Hour)
	active.ExpiryDate = &future
	require.NoError(t, s.UpdateRedemption(ctx, active))

	expired := seedRedemption(t, s, "b", redemption.StatusCompleted, now)
	past := now.Add(-time.Hour)
	expired.ExpiryDate = &past
	require.NoError(t, s.UpdateRedemption(ctx, expired))

	activeList, err := s.ListActiveByUser(ctx, "user-1", now)
	require.NoError(t, err)
	require.Len(t, activeList, 1)
	require.Equal(t, redemption.RedemptionID("a"), activeList[0].ID)

	expiring, err := s.ListExpiring(ctx, now, now.Add(72*time.Hour))
	require.NoError(t, err)
	require.Len(t, expiring, 1)
	require.Equal(t, redemption.RedemptionID("a"), expiring[0].ID)
}

func TestVoucherStore_MarkUsedAtomically(t *testing.T) {
	// GIVEN: A completed redemption with its voucher
	// WHEN: Marking the voucher used
	// THEN: Voucher flags and redemption status flip together; a second
	//       attempt finds no eligible row

	s := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, time.March, 14, 10, 0, 0, 0, time.UTC)

	r := seedRedemption(t, s, "a", redemption.StatusCompleted, now)
	require.NoError(t, s.SaveVoucher(ctx, redemption.VoucherCode{
		Code: "NTUC123", RedemptionID: r.ID, QRCodeURL: "https://example.test/qr",
		CreatedAt: now,
	}))

	require.NoError(t, s.MarkVoucherUsed(ctx, "NTUC123", "TERM-7", now.Add(time.Hour)))

	v, err := s.GetVoucherByCode(ctx, "NTUC123")
	require.NoError(t, err)
	require.True(t, v.Used)
	require.NotNil(t, v.UsedAt)
	require.Equal(t, "TERM-7", v.PartnerReference)

	stored, err := s.GetRedemption(ctx, r.ID)
	require.NoError(t, err)
	require.Equal(t, redemption.StatusUsed, stored.Status)
	require.NotNil(t, stored.UsedAt)

	err = s.MarkVoucherUsed(ctx, "NTUC123", "TERM-8", now.Add(2*time.Hour))
	require.ErrorIs(t, err, redemption.ErrVoucherNotFound)
}

func TestRedemptionStore_Stats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, time.March, 14, 10, 0, 0, 0, time.UTC)

	completed := seedRedemption(t, s, "a", redemption.StatusCompleted, now)
	future := now.Add(48 * time.Hour)
	completed.ExpiryDate = &future
	require.NoError(t, s.UpdateRedemption(ctx, completed))

	seedRedemption(t, s, "b", redemption.StatusUsed, now)
	seedRedemption(t, s, "c", redemption.StatusFailed, now)

	stats, err := s.Stats(ctx, "user-1", now)
	require.NoError(t, err)
	require.Equal(t, redemption.Stats{
		TotalRedemptions:      3,
		TotalCreditsSpent:     200,
		SuccessfulRedemptions: 2,
		UsedRedemptions:       1,
		ActiveVouchers:        1,
	}, stats)
}

// =============================================================================
// ACHIEVEMENTS AND USERS
// =============================================================================

func TestAchievementStore_UniquePerUserAndType(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := achievement.Achievement{
		ID: "a1", UserID: "user-1", Type: achievement.TypeFirstSteps,
		Title: "First Steps", Description: "d", EarnedAt: time.Now().UTC(),
	}
	require.NoError(t, s.Achievements().SaveAchievement(ctx, a))

	dup := a
	dup.ID = "a2"
	require.ErrorIs(t, s.Achievements().SaveAchievement(ctx, dup), achievement.ErrAlreadyUnlocked)

	has, err := s.Achievements().HasAchievement(ctx, "user-1", achievement.TypeFirstSteps)
	require.NoError(t, err)
	require.True(t, has)

	has, err = s.Achievements().HasAchievement(ctx, "user-1", achievement.TypeWalker)
	require.NoError(t, err)
	require.False(t, has)

	list, err := s.Achievements().ListByUser(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, list, 1)
}

func TestUserStore_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u := user.User{ID: "user-1", Name: "Ana", Email: "ana@example.test", CreatedAt: time.Now().UTC()}
	require.NoError(t, s.CreateUser(ctx, u))
	require.ErrorIs(t, s.CreateUser(ctx, u), user.ErrUserExists)

	got, err := s.GetUser(ctx, "user-1")
	require.NoError(t, err)
	require.Equal(t, "Ana", got.Name)

	missing, err := s.GetUser(ctx, "user-2")
	require.NoError(t, err)
	require.Nil(t, missing)
}
