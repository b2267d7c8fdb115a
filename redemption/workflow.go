/*
workflow.go - Redemption state machine and compensation logic

PURPOSE:
  Orchestrates a redemption end to end: eligibility, reservation (ledger
  debit + stock decrement), partner issuance, and commit or compensation.

RESERVATION PATTERN:
  The balance gate and the stock gate are each individually atomic: the
  ledger serializes check-then-debit per user, and the stock decrement is
  conditional (only succeeds while stock > 0). The eligibility check runs
  immediately before reservation; any race it misses is caught by one of the
  two atomic gates, which then fails the redemption cleanly.

  The partner call runs OUTSIDE both gates, under a bounded timeout. A slow
  or failing partner never stalls other users' redemptions; it only costs
  this redemption its reservation, which is then compensated.

COMPENSATION INVARIANT:
  A ledger debit exists if and only if its redemption is COMPLETED, USED, or
  carries a matching refund. Every failure path between debit and commit
  refunds the exact snapshot cost and restores finite stock by one.

LEDGER SOURCE CONVENTION:
  Debits are recorded with source "redemption:<id>" and refunds with
  "refund:<id>", so a failed attempt is reconcilable by replaying the ledger.

SEE ALSO:
  - types.go: State machine and store contracts
  - catalog/eligibility.go: The ordered rule set re-run here
*/
package redemption

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ecosteps/credit-engine/catalog"
	"github.com/ecosteps/credit-engine/credit"
)

// DefaultIssueTimeout bounds the partner issuance call. A timeout is treated
// identically to a partner failure: compensate and mark FAILED.
const DefaultIssueTimeout = 5 * time.Second

// =============================================================================
// WORKFLOW
// =============================================================================

// Workflow drives redemptions through their lifecycle.
type Workflow struct {
	Ledger      *credit.Ledger
	Catalog     catalog.Store
	Store       Store
	Issuer      Issuer
	Eligibility *catalog.EligibilityChecker

	IssueTimeout time.Duration
	Clock        func() time.Time
	Logger       *zap.Logger
}

func NewWorkflow(ledger *credit.Ledger, cat catalog.Store, store Store, issuer Issuer, logger *zap.Logger) *Workflow {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Workflow{
		Ledger:       ledger,
		Catalog:      cat,
		Store:        store,
		Issuer:       issuer,
		Eligibility:  catalog.NewEligibilityChecker(cat, ledger, store),
		IssueTimeout: DefaultIssueTimeout,
		Clock:        time.Now,
		Logger:       logger,
	}
}

// Redeem converts credits into a partner voucher. Every attempt yields a
// definite, persisted outcome: a COMPLETED redemption with voucher detail,
// or a FAILED one with its reason and a net-zero ledger effect.
func (w *Workflow) Redeem(ctx context.Context, userID credit.UserID, rewardID catalog.RewardID) (*Result, error) {
	elig, err := w.Eligibility.Check(ctx, userID, rewardID)
	if err != nil {
		return nil, err
	}
	if !elig.Eligible {
		return &Result{Success: false, Message: elig.Message}, nil
	}

	reward, err := w.Catalog.GetReward(ctx, rewardID)
	if err != nil {
		return nil, err
	}
	if reward == nil {
		return &Result{Success: false, Message: "Reward not available"}, nil
	}

	now := w.Clock().UTC()
	r := &Redemption{
		ID:         RedemptionID(uuid.NewString()),
		UserID:     userID,
		RewardID:   rewardID,
		CreditCost: reward.CreditCost, // snapshotted; immutable hereafter
		Status:     StatusPending,
		RedeemedAt: now,
		UpdatedAt:  now,
	}
	if err := w.Store.CreateRedemption(ctx, r); err != nil {
		return nil, err
	}

	// Reservation step 1: atomic balance check + debit.
	if _, err := w.Ledger.Debit(ctx, userID, r.CreditCost, debitSource(r.ID)); err != nil {
		if errors.Is(err, credit.ErrInsufficientCredits) {
			w.markFailed(ctx, r, "insufficient credits")
			return &Result{Success: false, Message: "Insufficient credits", Redemption: r}, nil
		}
		w.markFailed(ctx, r, "failed to deduct credits")
		return nil, fmt.Errorf("debit for redemption %s: %w", r.ID, err)
	}

	// Reservation step 2: conditional stock decrement. On loss, the debit
	// half of the reservation is undone before returning.
	ok, err := w.Catalog.DecrementStock(ctx, rewardID)
	if err == nil && !ok {
		err = ErrStockConflict
	}
	if err != nil {
		w.refund(ctx, r)
		if errors.Is(err, ErrStockConflict) {
			w.markFailed(ctx, r, "out of stock")
			return &Result{Success: false, Message: "Reward out of stock", Redemption: r}, nil
		}
		w.markFailed(ctx, r, "internal error")
		return nil, fmt.Errorf("stock decrement for redemption %s: %w", r.ID, err)
	}

	r.Status = StatusProcessing
	r.UpdatedAt = w.Clock().UTC()
	if err := w.Store.UpdateRedemption(ctx, r); err != nil {
		w.compensate(ctx, r, "internal error")
		return nil, err
	}

	// Issuance runs outside every lock scope, under a bounded timeout.
	issueCtx, cancel := context.WithTimeout(ctx, w.issueTimeout())
	issued, issueErr := w.Issuer.Issue(issueCtx, r, reward)
	deadlineHit := errors.Is(issueCtx.Err(), context.DeadlineExceeded)
	cancel()
	if issueErr == nil && deadlineHit {
		issueErr = &PartnerError{Partner: string(reward.Partner), Message: "issuance timed out"}
	}

	if issueErr != nil {
		reason := issueErr.Error()
		var perr *PartnerError
		if errors.As(issueErr, &perr) {
			reason = perr.Message
		}
		w.compensate(ctx, r, reason)
		w.Logger.Warn("redemption compensated",
			zap.String("redemption_id", string(r.ID)),
			zap.String("user_id", string(userID)),
			zap.String("reward_id", string(rewardID)),
			zap.String("reason", reason))
		return &Result{Success: false, Message: reason, Redemption: r}, nil
	}

	// Commit: completed redemption plus its matching voucher record.
	r.Status = StatusCompleted
	r.VoucherCode = issued.Code
	r.QRCodeURL = issued.QRCodeURL
	expiry := issued.ExpiryDate
	r.ExpiryDate = &expiry
	r.PartnerTransactionID = issued.PartnerTransactionID
	r.UpdatedAt = w.Clock().UTC()

	if err := w.Store.UpdateRedemption(ctx, r); err != nil {
		w.compensate(ctx, r, "internal error")
		return nil, err
	}
	v := VoucherCode{
		Code:             issued.Code,
		RedemptionID:     r.ID,
		QRCodeURL:        issued.QRCodeURL,
		ExpiryDate:       r.ExpiryDate,
		PartnerReference: issued.PartnerTransactionID,
		CreatedAt:        w.Clock().UTC(),
	}
	if err := w.Store.SaveVoucher(ctx, v); err != nil {
		w.compensate(ctx, r, "internal error")
		return nil, err
	}

	w.Logger.Info("redemption completed",
		zap.String("redemption_id", string(r.ID)),
		zap.String("user_id", string(userID)),
		zap.String("reward_id", string(rewardID)),
		zap.Int("credit_cost", r.CreditCost),
		zap.String("partner_txn", issued.PartnerTransactionID))

	return &Result{Success: true, Message: "Reward redeemed successfully!", Redemption: r}, nil
}

// Cancel administratively aborts a redemption still in PENDING or
// PROCESSING (e.g. one stranded by a crash). The reservation is undone: any
// unmatched debit is refunded, and stock is restored when the decrement had
// already happened (PROCESSING and later).
func (w *Workflow) Cancel(ctx context.Context, id RedemptionID) error {
	r, err := w.Store.GetRedemption(ctx, id)
	if err != nil {
		return err
	}
	if r == nil {
		return ErrRedemptionNotFound
	}
	if r.Status != StatusPending && r.Status != StatusProcessing {
		return fmt.Errorf("cancel %s from %s: %w", id, r.Status, ErrInvalidTransition)
	}

	if debited, err := w.hasUnmatchedDebit(ctx, r); err != nil {
		return err
	} else if debited {
		w.refund(ctx, r)
	}
	if r.Status == StatusProcessing {
		if err := w.Catalog.RestoreStock(ctx, r.RewardID); err != nil {
			return err
		}
	}

	r.Status = StatusCancelled
	r.UpdatedAt = w.Clock().UTC()
	return w.Store.UpdateRedemption(ctx, r)
}

// =============================================================================
// VOUCHER OPERATIONS
// =============================================================================

// MarkUsed marks a voucher as consumed at a partner. Valid only for an
// unused, unexpired voucher; otherwise reports false without mutation.
// The voucher and its redemption are updated atomically.
func (w *Workflow) MarkUsed(ctx context.Context, code string, partnerRef string) (bool, error) {
	v, err := w.Store.GetVoucherByCode(ctx, code)
	if err != nil {
		return false, err
	}
	now := w.Clock().UTC()
	if v == nil || !v.Valid(now) {
		return false, nil
	}
	if err := w.Store.MarkVoucherUsed(ctx, code, partnerRef, now); err != nil {
		return false, err
	}
	w.Logger.Info("voucher used",
		zap.String("code", code),
		zap.String("redemption_id", string(v.RedemptionID)),
		zap.String("partner_ref", partnerRef))
	return true, nil
}

// Validate is the read-only counterpart of MarkUsed, for partner-side or
// support verification. It never mutates state.
func (w *Workflow) Validate(ctx context.Context, code string) (*ValidationResult, error) {
	v, err := w.Store.GetVoucherByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return &ValidationResult{Valid: false, Message: "Voucher code not found"}, nil
	}

	r, err := w.Store.GetRedemption(ctx, v.RedemptionID)
	if err != nil {
		return nil, err
	}

	if v.Used {
		msg := "Voucher already used"
		if v.UsedAt != nil {
			msg = fmt.Sprintf("Voucher already used on %s", v.UsedAt.Format(time.RFC3339))
		}
		return &ValidationResult{Valid: false, Message: msg, Redemption: r}, nil
	}
	if v.ExpiryDate != nil && v.ExpiryDate.Before(w.Clock().UTC()) {
		return &ValidationResult{
			Valid:      false,
			Message:    fmt.Sprintf("Voucher expired on %s", v.ExpiryDate.Format(time.RFC3339)),
			Redemption: r,
		}, nil
	}
	return &ValidationResult{Valid: true, Message: "Voucher is valid", Redemption: r}, nil
}

// =============================================================================
// QUERIES
// =============================================================================

// History returns the user's redemptions, newest first.
func (w *Workflow) History(ctx context.Context, userID credit.UserID) ([]Redemption, error) {
	return w.Store.ListByUser(ctx, userID)
}

// ActiveVouchers returns COMPLETED, unexpired redemptions for the user.
func (w *Workflow) ActiveVouchers(ctx context.Context, userID credit.UserID) ([]Redemption, error) {
	return w.Store.ListActiveByUser(ctx, userID, w.Clock().UTC())
}

// UserStats summarizes the user's redemption activity.
func (w *Workflow) UserStats(ctx context.Context, userID credit.UserID) (Stats, error) {
	return w.Store.Stats(ctx, userID, w.Clock().UTC())
}

// ExpiringVouchers returns COMPLETED redemptions expiring within the
// look-ahead window, for notification sweeps.
func (w *Workflow) ExpiringVouchers(ctx context.Context, lookAhead time.Duration) ([]Redemption, error) {
	now := w.Clock().UTC()
	return w.Store.ListExpiring(ctx, now, now.Add(lookAhead))
}

// =============================================================================
// COMPENSATION
// =============================================================================

// compensate undoes a full reservation: refund the exact snapshot cost,
// restore finite stock by one, and mark the redemption FAILED.
func (w *Workflow) compensate(ctx context.Context, r *Redemption, reason string) {
	w.refund(ctx, r)
	if err := w.Catalog.RestoreStock(ctx, r.RewardID); err != nil {
		w.Logger.Error("stock restore failed",
			zap.String("redemption_id", string(r.ID)),
			zap.String("reward_id", string(r.RewardID)),
			zap.Error(err))
	}
	w.markFailed(ctx, r, reason)
}

func (w *Workflow) refund(ctx context.Context, r *Redemption) {
	if _, err := w.Ledger.Refund(ctx, r.UserID, r.CreditCost, refundSource(r.ID)); err != nil {
		// A failed refund is a correctness bug surfaced loudly; the sweep
		// over FAILED redemptions without matching refunds can repair it.
		w.Logger.Error("refund failed",
			zap.String("redemption_id", string(r.ID)),
			zap.String("user_id", string(r.UserID)),
			zap.Int("amount", r.CreditCost),
			zap.Error(err))
	}
}

func (w *Workflow) markFailed(ctx context.Context, r *Redemption, reason string) {
	r.Status = StatusFailed
	r.FailureReason = reason
	r.UpdatedAt = w.Clock().UTC()
	if err := w.Store.UpdateRedemption(ctx, r); err != nil {
		w.Logger.Error("failed to persist FAILED status",
			zap.String("redemption_id", string(r.ID)),
			zap.Error(err))
	}
}

// hasUnmatchedDebit reports whether the redemption's debit exists in the
// ledger without a matching refund.
func (w *Workflow) hasUnmatchedDebit(ctx context.Context, r *Redemption) (bool, error) {
	txs, err := w.Ledger.Transactions(ctx, r.UserID)
	if err != nil {
		return false, err
	}
	var debited, refunded bool
	for _, tx := range txs {
		switch tx.Source {
		case debitSource(r.ID):
			debited = true
		case refundSource(r.ID):
			refunded = true
		}
	}
	return debited && !refunded, nil
}

func (w *Workflow) issueTimeout() time.Duration {
	if w.IssueTimeout > 0 {
		return w.IssueTimeout
	}
	return DefaultIssueTimeout
}

func debitSource(id RedemptionID) string  { return "redemption:" + string(id) }
func refundSource(id RedemptionID) string { return "refund:" + string(id) }
