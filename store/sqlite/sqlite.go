/*
Package sqlite provides the SQLite-backed implementation of all storage
interfaces.

PURPOSE:
  Implements persistence for the credit ledger, reward catalog, redemptions,
  vouchers, achievements, and users. In production the same patterns apply
  to PostgreSQL - only minor SQL dialect differences.

INTERFACES IMPLEMENTED:
  credit.Store:      Append-only credit transactions
  catalog.Store:     Reward catalog with conditional stock decrement
  redemption.Store:  Redemptions, vouchers, limit counters, stats
  achievement.Store: One-row-per-(user, type) unlocks

APPEND-ONLY ENFORCEMENT:
  The credit_transactions table has no UPDATE or DELETE path anywhere in
  this package. Corrections are refund transactions.

UNIQUENESS:
  - credit_transactions.id: duplicate appends rejected
  - achievements(user_id, type): enforces exactly-one-unlock
  - voucher_codes.code: one voucher per code

CONCURRENCY:
  sync.RWMutex for thread-safety, plus WAL mode for crash recovery and
  concurrent readers. The conditional stock decrement
  (stock_quantity > 0 guard) makes oversell impossible regardless of
  interleaving.

FILES:
  sqlite.go      Open, migrate, shared helpers
  ledger.go      credit.Store
  catalog.go     catalog.Store
  redemption.go  redemption.Store
  achievement.go achievement.Store
  users.go       User records

SEE ALSO:
  - credit/store.go, catalog/types.go, redemption/types.go: Contracts
  - credit/store/memory.go: In-memory ledger store for tests
*/
package sqlite

import (
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One connection: SQLite serializes writers anyway, and a pool of
	// connections against ":memory:" would each see a different database.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Credit transactions (append-only ledger)
	CREATE TABLE IF NOT EXISTS credit_transactions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		amount INTEGER NOT NULL,
		kind TEXT NOT NULL,
		source TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_credit_tx_user
		ON credit_transactions(user_id);
	-- Balance derivation and time-range queries (hot path)
	CREATE INDEX IF NOT EXISTS idx_credit_tx_user_created
		ON credit_transactions(user_id, created_at);

	-- Reward catalog
	CREATE TABLE IF NOT EXISTS rewards (
		id TEXT PRIMARY KEY,
		partner TEXT NOT NULL,
		name TEXT NOT NULL,
		description TEXT,
		credit_cost INTEGER NOT NULL,
		monetary_value TEXT,
		category TEXT,
		stock_quantity INTEGER DEFAULT 0,
		unlimited_stock BOOLEAN DEFAULT FALSE,
		is_available BOOLEAN DEFAULT TRUE,
		is_featured BOOLEAN DEFAULT FALSE,
		valid_from TEXT,
		valid_until TEXT,
		min_credit_balance INTEGER,
		daily_limit INTEGER,
		total_limit INTEGER,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_rewards_category
		ON rewards(category);
	CREATE INDEX IF NOT EXISTS idx_rewards_available
		ON rewards(is_available, credit_cost);

	-- Redemptions
	CREATE TABLE IF NOT EXISTS redemptions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		reward_id TEXT NOT NULL,
		credit_cost INTEGER NOT NULL,
		status TEXT NOT NULL,
		voucher_code TEXT,
		qr_code_url TEXT,
		expiry_date TEXT,
		used_at TEXT,
		failure_reason TEXT,
		partner_transaction_id TEXT,
		redeemed_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_redemptions_user
		ON redemptions(user_id, redeemed_at DESC);
	CREATE INDEX IF NOT EXISTS idx_redemptions_status
		ON redemptions(status);
	CREATE INDEX IF NOT EXISTS idx_redemptions_voucher
		ON redemptions(voucher_code) WHERE voucher_code IS NOT NULL;
	-- Expiry-notification sweeps
	CREATE INDEX IF NOT EXISTS idx_redemptions_expiry
		ON redemptions(expiry_date) WHERE expiry_date IS NOT NULL;
	-- Daily/total limit counters
	CREATE INDEX IF NOT EXISTS idx_redemptions_user_reward
		ON redemptions(user_id, reward_id, redeemed_at);

	-- Voucher codes (1:1 with completed redemptions)
	CREATE TABLE IF NOT EXISTS voucher_codes (
		code TEXT PRIMARY KEY,
		redemption_id TEXT NOT NULL UNIQUE,
		qr_code_url TEXT,
		used BOOLEAN DEFAULT FALSE,
		used_at TEXT,
		expiry_date TEXT,
		partner_reference TEXT,
		created_at TEXT NOT NULL
	);

	-- Achievements
	CREATE TABLE IF NOT EXISTS achievements (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		type TEXT NOT NULL,
		title TEXT NOT NULL,
		description TEXT,
		earned_at TEXT NOT NULL
	);

	-- CRITICAL: exactly one achievement per (user, type), ever
	CREATE UNIQUE INDEX IF NOT EXISTS idx_achievements_user_type
		ON achievements(user_id, type);

	-- Users (guest identities)
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT,
		created_at TEXT NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Helper functions

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339), Valid: true}
}

func nullInt(n *int) sql.NullInt64 {
	if n == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*n), Valid: true}
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t
}

func parseTimePtr(ns sql.NullString) *time.Time {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	t := parseTime(ns.String)
	return &t
}

func intPtr(ni sql.NullInt64) *int {
	if !ni.Valid {
		return nil
	}
	n := int(ni.Int64)
	return &n
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}
