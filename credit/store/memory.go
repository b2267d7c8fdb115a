// Package store provides credit.Store implementations.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ecosteps/credit-engine/credit"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu           sync.RWMutex
	transactions map[credit.UserID][]credit.CreditTransaction
	ids          map[credit.TransactionID]bool
}

func NewMemory() *Memory {
	return &Memory{
		transactions: make(map[credit.UserID][]credit.CreditTransaction),
		ids:          make(map[credit.TransactionID]bool),
	}
}

// Append adds a single transaction. Append-only.
func (m *Memory) Append(_ context.Context, tx credit.CreditTransaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ids[tx.ID] {
		return credit.ErrDuplicateTransaction
	}

	txs := m.transactions[tx.UserID]

	// Binary search for insertion point keeps histories chronological.
	i := sort.Search(len(txs), func(i int) bool {
		return txs[i].CreatedAt.After(tx.CreatedAt)
	})
	txs = append(txs, credit.CreditTransaction{})
	copy(txs[i+1:], txs[i:])
	txs[i] = tx

	m.transactions[tx.UserID] = txs
	m.ids[tx.ID] = true
	return nil
}

func (m *Memory) Load(_ context.Context, userID credit.UserID) ([]credit.CreditTransaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]credit.CreditTransaction, len(m.transactions[userID]))
	copy(result, m.transactions[userID])
	return result, nil
}

func (m *Memory) LoadRange(_ context.Context, userID credit.UserID, from, to time.Time) ([]credit.CreditTransaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []credit.CreditTransaction
	for _, tx := range m.transactions[userID] {
		if !tx.CreatedAt.Before(from) && !tx.CreatedAt.After(to) {
			result = append(result, tx)
		}
	}
	return result, nil
}
