package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ecosteps/credit-engine/catalog"
	"github.com/ecosteps/credit-engine/credit"
	"github.com/ecosteps/credit-engine/redemption"
)

// =============================================================================
// REDEMPTION STORE (redemption.Store interface)
// =============================================================================

// Compile-time check: *Store must satisfy redemption.Store.
var _ redemption.Store = (*Store)(nil)

const redemptionColumns = `
	id, user_id, reward_id, credit_cost, status, voucher_code, qr_code_url,
	expiry_date, used_at, failure_reason, partner_transaction_id,
	redeemed_at, updated_at
`

// CreateRedemption inserts a new redemption row.
func (s *Store) CreateRedemption(ctx context.Context, r *redemption.Redemption) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO redemptions (` + redemptionColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query, redemptionArgs(r)...)
	if err != nil {
		return fmt.Errorf("failed to create redemption: %w", err)
	}
	return nil
}

// UpdateRedemption persists status and voucher fields for an existing row.
func (s *Store) UpdateRedemption(ctx context.Context, r *redemption.Redemption) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		UPDATE redemptions SET
			status = ?, voucher_code = ?, qr_code_url = ?, expiry_date = ?,
			used_at = ?, failure_reason = ?, partner_transaction_id = ?,
			updated_at = ?
		WHERE id = ?
	`
	res, err := s.db.ExecContext(ctx, query,
		string(r.Status),
		nullString(r.VoucherCode),
		nullString(r.QRCodeURL),
		nullTime(r.ExpiryDate),
		nullTime(r.UsedAt),
		nullString(r.FailureReason),
		nullString(r.PartnerTransactionID),
		formatTime(r.UpdatedAt),
		string(r.ID),
	)
	if err != nil {
		return fmt.Errorf("failed to update redemption: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return redemption.ErrRedemptionNotFound
	}
	return nil
}

// GetRedemption returns a redemption by ID, or nil if it does not exist.
func (s *Store) GetRedemption(ctx context.Context, id redemption.RedemptionID) (*redemption.Redemption, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT `+redemptionColumns+` FROM redemptions WHERE id = ?`, string(id))

	r, err := scanRedemption(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

// ListByUser returns the user's redemptions, newest first.
func (s *Store) ListByUser(ctx context.Context, userID credit.UserID) ([]redemption.Redemption, error) {
	query := `SELECT ` + redemptionColumns + ` FROM redemptions
		WHERE user_id = ? ORDER BY redeemed_at DESC`
	return s.queryRedemptions(ctx, query, string(userID))
}

// ListByStatus returns redemptions in a status, newest first.
func (s *Store) ListByStatus(ctx context.Context, status redemption.Status) ([]redemption.Redemption, error) {
	query := `SELECT ` + redemptionColumns + ` FROM redemptions
		WHERE status = ? ORDER BY redeemed_at DESC`
	return s.queryRedemptions(ctx, query, string(status))
}

// ListActiveByUser returns COMPLETED, unexpired redemptions.
func (s *Store) ListActiveByUser(ctx context.Context, userID credit.UserID, now time.Time) ([]redemption.Redemption, error) {
	query := `SELECT ` + redemptionColumns + ` FROM redemptions
		WHERE user_id = ? AND status = 'COMPLETED'
		  AND (expiry_date IS NULL OR expiry_date >= ?)
		ORDER BY expiry_date ASC`
	return s.queryRedemptions(ctx, query, string(userID), formatTime(now))
}

// ListExpiring returns COMPLETED redemptions with expiry in [from, to],
// for expiry-notification sweeps.
func (s *Store) ListExpiring(ctx context.Context, from, to time.Time) ([]redemption.Redemption, error) {
	query := `SELECT ` + redemptionColumns + ` FROM redemptions
		WHERE status = 'COMPLETED'
		  AND expiry_date IS NOT NULL AND expiry_date >= ? AND expiry_date <= ?
		ORDER BY expiry_date ASC`
	return s.queryRedemptions(ctx, query, formatTime(from), formatTime(to))
}

// CountByUserAndReward returns the user's all-time redemption count for a
// reward. Every attempt counts toward limits, including failed ones.
func (s *Store) CountByUserAndReward(ctx context.Context, userID credit.UserID, rewardID catalog.RewardID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM redemptions
		WHERE user_id = ? AND reward_id = ?
	`, string(userID), string(rewardID)).Scan(&count)
	return count, err
}

// CountDailyByUserAndReward returns the user's redemption count for the
// calendar day containing day.
func (s *Store) CountDailyByUserAndReward(ctx context.Context, userID credit.UserID, rewardID catalog.RewardID, day time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM redemptions
		WHERE user_id = ? AND reward_id = ? AND DATE(redeemed_at) = DATE(?)
	`, string(userID), string(rewardID), formatTime(day)).Scan(&count)
	return count, err
}

// Stats summarizes the user's redemption activity.
func (s *Store) Stats(ctx context.Context, userID credit.UserID, now time.Time) (redemption.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var st redemption.Stats
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN status IN ('COMPLETED', 'USED') THEN credit_cost ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status IN ('COMPLETED', 'USED') THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'USED' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'COMPLETED'
				AND (expiry_date IS NULL OR expiry_date >= ?) THEN 1 ELSE 0 END), 0)
		FROM redemptions
		WHERE user_id = ?
	`, formatTime(now), string(userID)).Scan(
		&st.TotalRedemptions,
		&st.TotalCreditsSpent,
		&st.SuccessfulRedemptions,
		&st.UsedRedemptions,
		&st.ActiveVouchers,
	)
	if err != nil {
		return redemption.Stats{}, fmt.Errorf("failed to compute redemption stats: %w", err)
	}
	return st, nil
}

// =============================================================================
// VOUCHER CODES
// =============================================================================

// SaveVoucher inserts the voucher record for a completed redemption.
func (s *Store) SaveVoucher(ctx context.Context, v redemption.VoucherCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO voucher_codes
			(code, redemption_id, qr_code_url, used, used_at, expiry_date,
			 partner_reference, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		v.Code,
		string(v.RedemptionID),
		nullString(v.QRCodeURL),
		v.Used,
		nullTime(v.UsedAt),
		nullTime(v.ExpiryDate),
		nullString(v.PartnerReference),
		formatTime(v.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save voucher: %w", err)
	}
	return nil
}

// GetVoucherByCode returns a voucher, or nil if the code is unknown.
func (s *Store) GetVoucherByCode(ctx context.Context, code string) (*redemption.VoucherCode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		v          redemption.VoucherCode
		qrCodeURL  sql.NullString
		usedAt     sql.NullString
		expiryDate sql.NullString
		partnerRef sql.NullString
		createdAt  string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT code, redemption_id, qr_code_url, used, used_at, expiry_date,
		       partner_reference, created_at
		FROM voucher_codes WHERE code = ?
	`, code).Scan(&v.Code, &v.RedemptionID, &qrCodeURL, &v.Used, &usedAt,
		&expiryDate, &partnerRef, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get voucher: %w", err)
	}

	v.QRCodeURL = qrCodeURL.String
	v.UsedAt = parseTimePtr(usedAt)
	v.ExpiryDate = parseTimePtr(expiryDate)
	v.PartnerReference = partnerRef.String
	v.CreatedAt = parseTime(createdAt)
	return &v, nil
}

// MarkVoucherUsed flips the used flag on the voucher and mirrors it onto
// the redemption row in one database transaction. The used = FALSE guard
// makes double-use impossible under concurrency.
func (s *Store) MarkVoucherUsed(ctx context.Context, code string, partnerRef string, usedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	res, err := sqlTx.ExecContext(ctx, `
		UPDATE voucher_codes
		SET used = TRUE, used_at = ?,
		    partner_reference = COALESCE(NULLIF(?, ''), partner_reference)
		WHERE code = ? AND used = FALSE
	`, formatTime(usedAt), partnerRef, code)
	if err != nil {
		return fmt.Errorf("failed to mark voucher used: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return redemption.ErrVoucherNotFound
	}

	_, err = sqlTx.ExecContext(ctx, `
		UPDATE redemptions
		SET status = ?, used_at = ?, updated_at = ?
		WHERE id = (SELECT redemption_id FROM voucher_codes WHERE code = ?)
	`, string(redemption.StatusUsed), formatTime(usedAt), formatTime(usedAt), code)
	if err != nil {
		return fmt.Errorf("failed to mirror used state onto redemption: %w", err)
	}

	return sqlTx.Commit()
}

// =============================================================================
// INTERNALS
// =============================================================================

func redemptionArgs(r *redemption.Redemption) []any {
	return []any{
		string(r.ID),
		string(r.UserID),
		string(r.RewardID),
		r.CreditCost,
		string(r.Status),
		nullString(r.VoucherCode),
		nullString(r.QRCodeURL),
		nullTime(r.ExpiryDate),
		nullTime(r.UsedAt),
		nullString(r.FailureReason),
		nullString(r.PartnerTransactionID),
		formatTime(r.RedeemedAt),
		formatTime(r.UpdatedAt),
	}
}

func (s *Store) queryRedemptions(ctx context.Context, query string, args ...any) ([]redemption.Redemption, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query redemptions: %w", err)
	}
	defer rows.Close()

	var redemptions []redemption.Redemption
	for rows.Next() {
		r, err := scanRedemption(rows)
		if err != nil {
			return nil, err
		}
		redemptions = append(redemptions, *r)
	}
	return redemptions, rows.Err()
}

func scanRedemption(row rowScanner) (*redemption.Redemption, error) {
	var (
		r             redemption.Redemption
		voucherCode   sql.NullString
		qrCodeURL     sql.NullString
		expiryDate    sql.NullString
		usedAt        sql.NullString
		failureReason sql.NullString
		partnerTxnID  sql.NullString
		redeemedAt    string
		updatedAt     string
	)

	err := row.Scan(
		&r.ID, &r.UserID, &r.RewardID, &r.CreditCost, &r.Status,
		&voucherCode, &qrCodeURL, &expiryDate, &usedAt, &failureReason,
		&partnerTxnID, &redeemedAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	r.VoucherCode = voucherCode.String
	r.QRCodeURL = qrCodeURL.String
	r.ExpiryDate = parseTimePtr(expiryDate)
	r.UsedAt = parseTimePtr(usedAt)
	r.FailureReason = failureReason.String
	r.PartnerTransactionID = partnerTxnID.String
	r.RedeemedAt = parseTime(redeemedAt)
	r.UpdatedAt = parseTime(updatedAt)
	return &r, nil
}
