// Package store provides catalog.Store implementations.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ecosteps/credit-engine/catalog"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

var _ catalog.Store = (*Memory)(nil)

type Memory struct {
	mu      sync.RWMutex
	rewards map[catalog.RewardID]catalog.Reward
}

func NewMemory() *Memory {
	return &Memory{rewards: make(map[catalog.RewardID]catalog.Reward)}
}

func (m *Memory) GetReward(_ context.Context, id catalog.RewardID) (*catalog.Reward, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.rewards[id]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (m *Memory) SaveReward(_ context.Context, r catalog.Reward) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.rewards[r.ID] = r
	return nil
}

func (m *Memory) ListAvailable(_ context.Context, now time.Time) ([]catalog.Reward, error) {
	return m.filter(func(r *catalog.Reward) bool {
		return r.CurrentlyAvailable(now)
	}), nil
}

func (m *Memory) ListFeatured(_ context.Context, now time.Time) ([]catalog.Reward, error) {
	return m.filter(func(r *catalog.Reward) bool {
		return r.IsFeatured && r.CurrentlyAvailable(now)
	}), nil
}

func (m *Memory) ListByCategory(_ context.Context, category catalog.Category, now time.Time) ([]catalog.Reward, error) {
	return m.filter(func(r *catalog.Reward) bool {
		return r.Category == category && r.CurrentlyAvailable(now)
	}), nil
}

func (m *Memory) ListAffordable(_ context.Context, credits int, now time.Time) ([]catalog.Reward, error) {
	return m.filter(func(r *catalog.Reward) bool {
		return r.CreditCost <= credits && r.CurrentlyAvailable(now)
	}), nil
}

// DecrementStock atomically claims one unit. Returns false when the stock
// is already gone; the caller lost the race.
func (m *Memory) DecrementStock(_ context.Context, id catalog.RewardID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.rewards[id]
	if !ok {
		return false, nil
	}
	if r.UnlimitedStock {
		return true, nil
	}
	if r.StockQuantity <= 0 {
		return false, nil
	}
	r.StockQuantity--
	m.rewards[id] = r
	return true, nil
}

// RestoreStock returns one previously claimed unit.
func (m *Memory) RestoreStock(_ context.Context, id catalog.RewardID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.rewards[id]
	if !ok || r.UnlimitedStock {
		return nil
	}
	r.StockQuantity++
	m.rewards[id] = r
	return nil
}

func (m *Memory) filter(keep func(*catalog.Reward) bool) []catalog.Reward {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []catalog.Reward
	for id := range m.rewards {
		r := m.rewards[id]
		if keep(&r) {
			result = append(result, r)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ID < result[j].ID
	})
	return result
}
