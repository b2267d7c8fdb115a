package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ecosteps/credit-engine/credit"
	"github.com/ecosteps/credit-engine/user"
)

// =============================================================================
// USER STORE (user.Store interface)
// =============================================================================

// Compile-time check: *Store must satisfy user.Store.
var _ user.Store = (*Store)(nil)

// CreateUser inserts an account row.
func (s *Store) CreateUser(ctx context.Context, u user.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, name, email, created_at)
		VALUES (?, ?, ?, ?)
	`, string(u.ID), u.Name, nullString(u.Email), formatTime(u.CreatedAt))
	if err != nil {
		if isUniqueConstraintError(err) {
			return user.ErrUserExists
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetUser returns an account by ID, or nil if it does not exist.
func (s *Store) GetUser(ctx context.Context, id credit.UserID) (*user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		u         user.User
		email     sql.NullString
		createdAt string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, email, created_at FROM users WHERE id = ?
	`, string(id)).Scan(&u.ID, &u.Name, &email, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	u.Email = email.String
	u.CreatedAt = parseTime(createdAt)
	return &u, nil
}
