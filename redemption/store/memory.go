// Package store provides redemption.Store implementations.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ecosteps/credit-engine/catalog"
	"github.com/ecosteps/credit-engine/credit"
	"github.com/ecosteps/credit-engine/redemption"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

var _ redemption.Store = (*Memory)(nil)

type Memory struct {
	mu          sync.RWMutex
	redemptions map[redemption.RedemptionID]redemption.Redemption
	vouchers    map[string]redemption.VoucherCode
}

func NewMemory() *Memory {
	return &Memory{
		redemptions: make(map[redemption.RedemptionID]redemption.Redemption),
		vouchers:    make(map[string]redemption.VoucherCode),
	}
}

func (m *Memory) CreateRedemption(_ context.Context, r *redemption.Redemption) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.redemptions[r.ID] = *r
	return nil
}

func (m *Memory) UpdateRedemption(_ context.Context, r *redemption.Redemption) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.redemptions[r.ID]; !ok {
		return redemption.ErrRedemptionNotFound
	}
	m.redemptions[r.ID] = *r
	return nil
}

func (m *Memory) GetRedemption(_ context.Context, id redemption.RedemptionID) (*redemption.Redemption, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.redemptions[id]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (m *Memory) ListByUser(_ context.Context, userID credit.UserID) ([]redemption.Redemption, error) {
	return m.filter(func(r *redemption.Redemption) bool {
		return r.UserID == userID
	}), nil
}

func (m *Memory) ListByStatus(_ context.Context, status redemption.Status) ([]redemption.Redemption, error) {
	return m.filter(func(r *redemption.Redemption) bool {
		return r.Status == status
	}), nil
}

func (m *Memory) ListActiveByUser(_ context.Context, userID credit.UserID, now time.Time) ([]redemption.Redemption, error) {
	return m.filter(func(r *redemption.Redemption) bool {
		return r.UserID == userID && r.Active(now)
	}), nil
}

func (m *Memory) ListExpiring(_ context.Context, from, to time.Time) ([]redemption.Redemption, error) {
	return m.filter(func(r *redemption.Redemption) bool {
		return r.Status == redemption.StatusCompleted && r.ExpiryDate != nil &&
			!r.ExpiryDate.Before(from) && !r.ExpiryDate.After(to)
	}), nil
}

func (m *Memory) CountByUserAndReward(_ context.Context, userID credit.UserID, rewardID catalog.RewardID) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, r := range m.redemptions {
		if r.UserID == userID && r.RewardID == rewardID {
			count++
		}
	}
	return count, nil
}

func (m *Memory) CountDailyByUserAndReward(_ context.Context, userID credit.UserID, rewardID catalog.RewardID, day time.Time) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	y, mo, d := day.UTC().Date()
	count := 0
	for _, r := range m.redemptions {
		ry, rmo, rd := r.RedeemedAt.UTC().Date()
		if r.UserID == userID && r.RewardID == rewardID && ry == y && rmo == mo && rd == d {
			count++
		}
	}
	return count, nil
}

func (m *Memory) SaveVoucher(_ context.Context, v redemption.VoucherCode) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.vouchers[v.Code] = v
	return nil
}

func (m *Memory) GetVoucherByCode(_ context.Context, code string) (*redemption.VoucherCode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.vouchers[code]
	if !ok {
		return nil, nil
	}
	return &v, nil
}

// MarkVoucherUsed updates the voucher and its redemption under one lock so
// the pair can never diverge. The used guard makes double-use lose cleanly.
func (m *Memory) MarkVoucherUsed(_ context.Context, code string, partnerRef string, usedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.vouchers[code]
	if !ok || v.Used {
		return redemption.ErrVoucherNotFound
	}

	v.Used = true
	v.UsedAt = &usedAt
	if partnerRef != "" {
		v.PartnerReference = partnerRef
	}
	m.vouchers[code] = v

	if r, ok := m.redemptions[v.RedemptionID]; ok {
		r.Status = redemption.StatusUsed
		r.UsedAt = &usedAt
		r.UpdatedAt = usedAt
		m.redemptions[v.RedemptionID] = r
	}
	return nil
}

func (m *Memory) Stats(_ context.Context, userID credit.UserID, now time.Time) (redemption.Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var st redemption.Stats
	for _, r := range m.redemptions {
		if r.UserID != userID {
			continue
		}
		st.TotalRedemptions++
		switch r.Status {
		case redemption.StatusCompleted, redemption.StatusUsed:
			st.SuccessfulRedemptions++
			st.TotalCreditsSpent += r.CreditCost
		}
		if r.Status == redemption.StatusUsed {
			st.UsedRedemptions++
		}
		if r.Active(now) {
			st.ActiveVouchers++
		}
	}
	return st, nil
}

func (m *Memory) filter(keep func(*redemption.Redemption) bool) []redemption.Redemption {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []redemption.Redemption
	for id := range m.redemptions {
		r := m.redemptions[id]
		if keep(&r) {
			result = append(result, r)
		}
	}
	// Newest first, matching the SQL stores
	sort.Slice(result, func(i, j int) bool {
		return result[i].RedeemedAt.After(result[j].RedeemedAt)
	})
	return result
}
