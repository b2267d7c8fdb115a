package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ecosteps/credit-engine/credit"
)

// =============================================================================
// CREDIT TRANSACTION STORE (credit.Store interface)
// =============================================================================

// Compile-time check: *Store must satisfy credit.Store.
var _ credit.Store = (*Store)(nil)

// Append adds a transaction to the ledger. The ONLY write path into
// credit_transactions; there is no update or delete.
func (s *Store) Append(ctx context.Context, tx credit.CreditTransaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO credit_transactions (id, user_id, amount, kind, source, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		string(tx.ID),
		string(tx.UserID),
		tx.Amount,
		string(tx.Kind),
		nullString(tx.Source),
		formatTime(tx.CreatedAt),
	)

	if err != nil {
		if isUniqueConstraintError(err) {
			return credit.ErrDuplicateTransaction
		}
		return fmt.Errorf("failed to append credit transaction: %w", err)
	}

	return nil
}

// Load returns all transactions for a user, oldest first.
func (s *Store) Load(ctx context.Context, userID credit.UserID) ([]credit.CreditTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, user_id, amount, kind, source, created_at
		FROM credit_transactions
		WHERE user_id = ?
		ORDER BY created_at ASC, id ASC
	`

	return s.queryTransactions(ctx, query, string(userID))
}

// LoadRange returns a user's transactions with created_at in [from, to].
func (s *Store) LoadRange(ctx context.Context, userID credit.UserID, from, to time.Time) ([]credit.CreditTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, user_id, amount, kind, source, created_at
		FROM credit_transactions
		WHERE user_id = ? AND created_at >= ? AND created_at <= ?
		ORDER BY created_at ASC, id ASC
	`

	return s.queryTransactions(ctx, query, string(userID), formatTime(from), formatTime(to))
}

func (s *Store) queryTransactions(ctx context.Context, query string, args ...any) ([]credit.CreditTransaction, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query credit transactions: %w", err)
	}
	defer rows.Close()

	var transactions []credit.CreditTransaction
	for rows.Next() {
		var (
			tx        credit.CreditTransaction
			source    sql.NullString
			createdAt string
		)
		if err := rows.Scan(&tx.ID, &tx.UserID, &tx.Amount, &tx.Kind, &source, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan credit transaction: %w", err)
		}
		tx.Source = source.String
		tx.CreatedAt = parseTime(createdAt)
		transactions = append(transactions, tx)
	}

	return transactions, rows.Err()
}
