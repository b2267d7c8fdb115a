// Package user holds the account record behind every ledger and redemption
// row. Accounts are created on first sign-in; there is no profile editing.
package user

import (
	"context"
	"errors"
	"time"

	"github.com/ecosteps/credit-engine/credit"
)

// User is an account. ID is the same value the ledger and redemption
// stores key on.
type User struct {
	ID        credit.UserID
	Name      string
	Email     string
	CreatedAt time.Time
}

// ErrUserExists is returned when creating a user whose ID is taken.
var ErrUserExists = errors.New("user already exists")

// Store handles account persistence.
type Store interface {
	// CreateUser inserts a new account; returns ErrUserExists on an ID
	// collision.
	CreateUser(ctx context.Context, u User) error

	// GetUser returns an account by ID, or nil if it does not exist.
	GetUser(ctx context.Context, id credit.UserID) (*User, error)
}
