package sqlite

import (
	"context"
	"fmt"

	"github.com/ecosteps/credit-engine/achievement"
	"github.com/ecosteps/credit-engine/credit"
)

// =============================================================================
// ACHIEVEMENT STORE (achievement.Store interface)
// =============================================================================

// AchievementStore is the achievement-domain view of the sqlite Store. It
// exists as a separate type because achievement.Store and redemption.Store
// both declare ListByUser with different return types, so one concrete type
// cannot satisfy both.
type AchievementStore struct {
	s *Store
}

// Achievements returns the achievement-domain view of the store.
func (s *Store) Achievements() *AchievementStore {
	return &AchievementStore{s: s}
}

// Compile-time check: *AchievementStore must satisfy achievement.Store.
var _ achievement.Store = (*AchievementStore)(nil)

// SaveAchievement inserts an unlock row. The UNIQUE(user_id, type) index
// turns a duplicate unlock into ErrAlreadyUnlocked.
func (as *AchievementStore) SaveAchievement(ctx context.Context, a achievement.Achievement) error {
	as.s.mu.Lock()
	defer as.s.mu.Unlock()

	_, err := as.s.db.ExecContext(ctx, `
		INSERT INTO achievements (id, user_id, type, title, description, earned_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, a.ID, string(a.UserID), string(a.Type), a.Title, a.Description, formatTime(a.EarnedAt))
	if err != nil {
		if isUniqueConstraintError(err) {
			return achievement.ErrAlreadyUnlocked
		}
		return fmt.Errorf("failed to save achievement: %w", err)
	}
	return nil
}

// HasAchievement reports whether the user holds this type.
func (as *AchievementStore) HasAchievement(ctx context.Context, userID credit.UserID, t achievement.Type) (bool, error) {
	as.s.mu.RLock()
	defer as.s.mu.RUnlock()

	var count int
	err := as.s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM achievements WHERE user_id = ? AND type = ?
	`, string(userID), string(t)).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// ListByUser returns the user's achievements, newest first.
func (as *AchievementStore) ListByUser(ctx context.Context, userID credit.UserID) ([]achievement.Achievement, error) {
	as.s.mu.RLock()
	defer as.s.mu.RUnlock()

	rows, err := as.s.db.QueryContext(ctx, `
		SELECT id, user_id, type, title, description, earned_at
		FROM achievements
		WHERE user_id = ?
		ORDER BY earned_at DESC
	`, string(userID))
	if err != nil {
		return nil, fmt.Errorf("failed to query achievements: %w", err)
	}
	defer rows.Close()

	var achievements []achievement.Achievement
	for rows.Next() {
		var (
			a        achievement.Achievement
			earnedAt string
		)
		if err := rows.Scan(&a.ID, &a.UserID, &a.Type, &a.Title, &a.Description, &earnedAt); err != nil {
			return nil, err
		}
		a.EarnedAt = parseTime(earnedAt)
		achievements = append(achievements, a)
	}
	return achievements, rows.Err()
}
