/*
ledger.go - Append-only eco-credit ledger

PURPOSE:
  The Ledger is the immutable source of truth for all credit movements.
  Every award, redemption debit, and refund is recorded here. Balance is
  always computed by replaying transactions - there is no separate balance
  field that can drift out of sync.

CRITICAL INVARIANTS:
  1. APPEND-ONLY: No Update, No Delete. EVER.
  2. DERIVED BALANCE: Balance(user) = sum of signed amounts
  3. ATOMIC DEBIT: check-balance-then-append is serialized per user, so two
     concurrent redemptions cannot both pass a check only one can satisfy

WHY PER-USER SERIALIZATION?
  The shared mutable resource is a single user's balance. Requests from
  different users proceed in parallel; only the read-assert-append window for
  the same user is a critical section. A striped lock keyed by user ID keeps
  the scope narrow without global serialization.

CORRECTIONS:
  If a redemption fails after its debit, the ledger is never edited.
  A refund transaction of equal magnitude is appended instead, so the
  failed attempt nets to zero while history is preserved.

SEE ALSO:
  - store.go: Low-level persistence interface
  - redemption: The workflow driving debit/refund pairs
*/
package credit

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// LEDGER
// =============================================================================

const lockStripes = 64

// Ledger records credit movements and derives balances.
//
// Debit serializes the balance check and the append for a given user: two
// concurrent debits for the same user see each other's writes. Awards and
// refunds only ever increase the balance and need no such guard.
type Ledger struct {
	store Store
	locks [lockStripes]sync.Mutex

	// Clock is injectable for deterministic tests. Defaults to time.Now.
	Clock func() time.Time
}

func NewLedger(store Store) *Ledger {
	return &Ledger{store: store, Clock: time.Now}
}

// Award appends an earned transaction. Amount must be positive.
func (l *Ledger) Award(ctx context.Context, userID UserID, amount int, source string) (TransactionID, error) {
	if err := validate(userID, amount); err != nil {
		return "", err
	}
	return l.append(ctx, userID, amount, KindEarned, source)
}

// Debit appends a redemption transaction of -amount, but only if the user's
// current available balance covers it. The check and the append execute as
// one atomic unit per user.
func (l *Ledger) Debit(ctx context.Context, userID UserID, amount int, source string) (TransactionID, error) {
	if err := validate(userID, amount); err != nil {
		return "", err
	}

	mu := l.userLock(userID)
	mu.Lock()
	defer mu.Unlock()

	bal, err := l.loadBalance(ctx, userID)
	if err != nil {
		return "", err
	}
	if bal.Available < amount {
		return "", &InsufficientCreditsError{UserID: userID, Available: bal.Available, Requested: amount}
	}

	return l.append(ctx, userID, -amount, KindRedemption, source)
}

// Refund appends a refund transaction of +amount. Used only to compensate a
// failed redemption that had already been debited.
func (l *Ledger) Refund(ctx context.Context, userID UserID, amount int, source string) (TransactionID, error) {
	if err := validate(userID, amount); err != nil {
		return "", err
	}
	return l.append(ctx, userID, amount, KindRefund, source)
}

// Balance derives the user's balance from their full transaction history.
func (l *Ledger) Balance(ctx context.Context, userID UserID) (Balance, error) {
	if userID == "" {
		return Balance{}, ErrUnknownUser
	}
	return l.loadBalance(ctx, userID)
}

// Transactions returns the user's full history, oldest first.
func (l *Ledger) Transactions(ctx context.Context, userID UserID) ([]CreditTransaction, error) {
	return l.store.Load(ctx, userID)
}

// TransactionsInRange returns the user's transactions in [from, to].
func (l *Ledger) TransactionsInRange(ctx context.Context, userID UserID, from, to time.Time) ([]CreditTransaction, error) {
	return l.store.LoadRange(ctx, userID, from, to)
}

// =============================================================================
// INTERNALS
// =============================================================================

func (l *Ledger) append(ctx context.Context, userID UserID, amount int, kind Kind, source string) (TransactionID, error) {
	tx := CreditTransaction{
		ID:        TransactionID(uuid.NewString()),
		UserID:    userID,
		Amount:    amount,
		Kind:      kind,
		Source:    source,
		CreatedAt: l.Clock().UTC(),
	}
	if err := l.store.Append(ctx, tx); err != nil {
		return "", err
	}
	return tx.ID, nil
}

func (l *Ledger) loadBalance(ctx context.Context, userID UserID) (Balance, error) {
	txs, err := l.store.Load(ctx, userID)
	if err != nil {
		return Balance{}, err
	}
	return Derive(txs), nil
}

func (l *Ledger) userLock(userID UserID) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(userID))
	return &l.locks[h.Sum32()%lockStripes]
}

func validate(userID UserID, amount int) error {
	if userID == "" {
		return ErrUnknownUser
	}
	if amount <= 0 {
		return ErrInvalidAmount
	}
	return nil
}
