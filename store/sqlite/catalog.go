package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ecosteps/credit-engine/catalog"
)

// =============================================================================
// REWARD CATALOG STORE (catalog.Store interface)
// =============================================================================

// Compile-time check: *Store must satisfy catalog.Store.
var _ catalog.Store = (*Store)(nil)

// availabilityCond matches Reward.CurrentlyAvailable: available flag set,
// inside the validity window, and in stock. Takes two time arguments.
const availabilityCond = `
	is_available = TRUE
	AND (unlimited_stock = TRUE OR stock_quantity > 0)
	AND (valid_from IS NULL OR valid_from <= ?)
	AND (valid_until IS NULL OR valid_until >= ?)
`

const rewardColumns = `
	id, partner, name, description, credit_cost, monetary_value, category,
	stock_quantity, unlimited_stock, is_available, is_featured,
	valid_from, valid_until, min_credit_balance, daily_limit, total_limit,
	created_at, updated_at
`

// SaveReward inserts or updates a catalog entry.
func (s *Store) SaveReward(ctx context.Context, r catalog.Reward) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO rewards (` + rewardColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			partner = excluded.partner,
			name = excluded.name,
			description = excluded.description,
			credit_cost = excluded.credit_cost,
			monetary_value = excluded.monetary_value,
			category = excluded.category,
			stock_quantity = excluded.stock_quantity,
			unlimited_stock = excluded.unlimited_stock,
			is_available = excluded.is_available,
			is_featured = excluded.is_featured,
			valid_from = excluded.valid_from,
			valid_until = excluded.valid_until,
			min_credit_balance = excluded.min_credit_balance,
			daily_limit = excluded.daily_limit,
			total_limit = excluded.total_limit,
			updated_at = excluded.updated_at
	`

	now := time.Now().UTC()
	createdAt := r.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}

	_, err := s.db.ExecContext(ctx, query,
		string(r.ID),
		string(r.Partner),
		r.Name,
		nullString(r.Description),
		r.CreditCost,
		r.MonetaryValue.String(),
		string(r.Category),
		r.StockQuantity,
		r.UnlimitedStock,
		r.IsAvailable,
		r.IsFeatured,
		nullTime(r.ValidFrom),
		nullTime(r.ValidUntil),
		nullInt(r.MinCreditBalance),
		nullInt(r.DailyLimit),
		nullInt(r.TotalLimit),
		formatTime(createdAt),
		formatTime(now),
	)
	if err != nil {
		return fmt.Errorf("failed to save reward: %w", err)
	}
	return nil
}

// GetReward returns a reward by ID, or nil if it does not exist.
func (s *Store) GetReward(ctx context.Context, id catalog.RewardID) (*catalog.Reward, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT `+rewardColumns+` FROM rewards WHERE id = ?`, string(id))

	r, err := scanReward(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

// ListAvailable returns rewards currently available at now, cheapest first.
func (s *Store) ListAvailable(ctx context.Context, now time.Time) ([]catalog.Reward, error) {
	query := `SELECT ` + rewardColumns + ` FROM rewards
		WHERE ` + availabilityCond + ` ORDER BY credit_cost ASC, name ASC`
	return s.queryRewards(ctx, query, formatTime(now), formatTime(now))
}

// ListFeatured returns featured rewards currently available at now.
func (s *Store) ListFeatured(ctx context.Context, now time.Time) ([]catalog.Reward, error) {
	query := `SELECT ` + rewardColumns + ` FROM rewards
		WHERE is_featured = TRUE AND ` + availabilityCond + ` ORDER BY credit_cost ASC`
	return s.queryRewards(ctx, query, formatTime(now), formatTime(now))
}

// ListByCategory returns available rewards in a category.
func (s *Store) ListByCategory(ctx context.Context, category catalog.Category, now time.Time) ([]catalog.Reward, error) {
	query := `SELECT ` + rewardColumns + ` FROM rewards
		WHERE category = ? AND ` + availabilityCond + ` ORDER BY credit_cost ASC`
	return s.queryRewards(ctx, query, string(category), formatTime(now), formatTime(now))
}

// ListAffordable returns available rewards costing at most credits.
func (s *Store) ListAffordable(ctx context.Context, credits int, now time.Time) ([]catalog.Reward, error) {
	query := `SELECT ` + rewardColumns + ` FROM rewards
		WHERE credit_cost <= ? AND ` + availabilityCond + ` ORDER BY credit_cost ASC`
	return s.queryRewards(ctx, query, credits, formatTime(now), formatTime(now))
}

// DecrementStock atomically decrements stock while it is positive.
// Unlimited-stock rewards succeed without mutation. Returns false when a
// finite-stock reward is already at zero: the caller lost the race.
func (s *Store) DecrementStock(ctx context.Context, id catalog.RewardID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var unlimited bool
	err := s.db.QueryRowContext(ctx,
		"SELECT unlimited_stock FROM rewards WHERE id = ?", string(id)).Scan(&unlimited)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read stock mode: %w", err)
	}
	if unlimited {
		return true, nil
	}

	// The stock_quantity > 0 guard is what makes oversell impossible:
	// of N+1 concurrent decrements on stock N, exactly N succeed.
	res, err := s.db.ExecContext(ctx, `
		UPDATE rewards
		SET stock_quantity = stock_quantity - 1, updated_at = ?
		WHERE id = ? AND unlimited_stock = FALSE AND stock_quantity > 0
	`, formatTime(time.Now()), string(id))
	if err != nil {
		return false, fmt.Errorf("failed to decrement stock: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// RestoreStock undoes one reservation on a finite-stock reward.
func (s *Store) RestoreStock(ctx context.Context, id catalog.RewardID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		UPDATE rewards
		SET stock_quantity = stock_quantity + 1, updated_at = ?
		WHERE id = ? AND unlimited_stock = FALSE
	`, formatTime(time.Now()), string(id))
	if err != nil {
		return fmt.Errorf("failed to restore stock: %w", err)
	}
	return nil
}

func (s *Store) queryRewards(ctx context.Context, query string, args ...any) ([]catalog.Reward, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query rewards: %w", err)
	}
	defer rows.Close()

	var rewards []catalog.Reward
	for rows.Next() {
		r, err := scanReward(rows)
		if err != nil {
			return nil, err
		}
		rewards = append(rewards, *r)
	}
	return rewards, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReward(row rowScanner) (*catalog.Reward, error) {
	var (
		r             catalog.Reward
		description   sql.NullString
		monetaryValue sql.NullString
		validFrom     sql.NullString
		validUntil    sql.NullString
		minBalance    sql.NullInt64
		dailyLimit    sql.NullInt64
		totalLimit    sql.NullInt64
		createdAt     string
		updatedAt     string
	)

	err := row.Scan(
		&r.ID, &r.Partner, &r.Name, &description, &r.CreditCost,
		&monetaryValue, &r.Category, &r.StockQuantity, &r.UnlimitedStock,
		&r.IsAvailable, &r.IsFeatured, &validFrom, &validUntil,
		&minBalance, &dailyLimit, &totalLimit, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	r.Description = description.String
	if monetaryValue.Valid {
		d, err := decimal.NewFromString(monetaryValue.String)
		if err != nil {
			return nil, fmt.Errorf("reward %s: bad monetary_value %q: %w", r.ID, monetaryValue.String, err)
		}
		r.MonetaryValue = d
	}
	r.ValidFrom = parseTimePtr(validFrom)
	r.ValidUntil = parseTimePtr(validUntil)
	r.MinCreditBalance = intPtr(minBalance)
	r.DailyLimit = intPtr(dailyLimit)
	r.TotalLimit = intPtr(totalLimit)
	r.CreatedAt = parseTime(createdAt)
	r.UpdatedAt = parseTime(updatedAt)
	return &r, nil
}
