/*
store.go - Persistence interface for credit transactions

PURPOSE:
  Defines the interface between the ledger and the database. The Store
  maintains append-only semantics; different implementations can use SQLite
  or in-memory storage.

APPEND-ONLY CONTRACT:
  - Append(): the ONLY write operation
  - NO Update() or Delete() methods exist
  - Corrections are made via refund transactions

IMPLEMENTATIONS:
  - store/sqlite: Production SQLite
  - credit/store: In-memory for testing

SEE ALSO:
  - ledger.go: Higher-level operations using Store
*/
package credit

import (
	"context"
	"time"
)

// Store handles persistence of credit transactions.
// IMPORTANT: Store is APPEND-ONLY. No Update, No Delete. Ever.
type Store interface {
	// Append persists a transaction. Returns ErrDuplicateTransaction if the
	// transaction ID already exists. This is the ONLY write operation.
	Append(ctx context.Context, tx CreditTransaction) error

	// Load returns all transactions for a user, ordered by CreatedAt.
	Load(ctx context.Context, userID UserID) ([]CreditTransaction, error)

	// LoadRange returns a user's transactions with CreatedAt in [from, to].
	LoadRange(ctx context.Context, userID UserID, from, to time.Time) ([]CreditTransaction, error)
}
