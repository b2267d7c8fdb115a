/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/ecosteps/credit-engine/achievement"
	"github.com/ecosteps/credit-engine/catalog"
	"github.com/ecosteps/credit-engine/credit"
	"github.com/ecosteps/credit-engine/redemption"
)

// =============================================================================
// AUTH
// =============================================================================

// GuestSignInRequest creates a guest account plus session. Name is optional.
type GuestSignInRequest struct {
	Name string `json:"name,omitempty"`
}

// SessionDTO is returned after sign-in.
type SessionDTO struct {
	Token     string `json:"token"`
	UserID    string `json:"user_id"`
	ExpiresAt string `json:"expires_at"`
}

// =============================================================================
// ACTIVITY
// =============================================================================

// SubmitStepsRequest records a day of step activity.
type SubmitStepsRequest struct {
	Steps int    `json:"steps"`
	Date  string `json:"date,omitempty"` // YYYY-MM-DD, defaults to today
}

// SubmitStepsResponse reports the credits awarded for a submission.
type SubmitStepsResponse struct {
	BaseCredits     int              `json:"base_credits"`
	BonusCredits    int              `json:"bonus_credits"`
	TotalCredits    int              `json:"total_credits"`
	GoalProgress    float64          `json:"goal_progress"`
	Message         string           `json:"message"`
	NewAchievements []AchievementDTO `json:"new_achievements"`
	Balance         BalanceDTO       `json:"balance"`
}

// =============================================================================
// CREDITS
// =============================================================================

// BalanceDTO is the derived credit balance.
type BalanceDTO struct {
	Available int `json:"available"`
	Earned    int `json:"earned"`
	Spent     int `json:"spent"`
}

// TransactionDTO is one ledger entry.
type TransactionDTO struct {
	ID        string `json:"id"`
	Amount    int    `json:"amount"`
	Kind      string `json:"kind"`
	Source    string `json:"source"`
	CreatedAt string `json:"created_at"`
}

// =============================================================================
// REWARDS
// =============================================================================

// RewardDTO represents a catalog entry in API responses.
type RewardDTO struct {
	ID             string `json:"id"`
	Partner        string `json:"partner"`
	Name           string `json:"name"`
	Description    string `json:"description,omitempty"`
	CreditCost     int    `json:"credit_cost"`
	MonetaryValue  string `json:"monetary_value"`
	Category       string `json:"category"`
	StockQuantity  int    `json:"stock_quantity"`
	UnlimitedStock bool   `json:"unlimited_stock"`
	IsFeatured     bool   `json:"is_featured"`
	ValidUntil     string `json:"valid_until,omitempty"`
}

// EligibilityDTO is the outcome of an eligibility check.
type EligibilityDTO struct {
	Eligible bool   `json:"eligible"`
	Message  string `json:"message"`
}

// =============================================================================
// REDEMPTIONS
// =============================================================================

// RedeemResponse is the definite outcome of a redemption attempt.
type RedeemResponse struct {
	Success    bool           `json:"success"`
	Message    string         `json:"message"`
	Redemption *RedemptionDTO `json:"redemption,omitempty"`
}

// RedemptionDTO represents one redemption attempt.
type RedemptionDTO struct {
	ID                   string `json:"id"`
	RewardID             string `json:"reward_id"`
	CreditCost           int    `json:"credit_cost"`
	Status               string `json:"status"`
	VoucherCode          string `json:"voucher_code,omitempty"`
	QRCodeURL            string `json:"qr_code_url,omitempty"`
	ExpiryDate           string `json:"expiry_date,omitempty"`
	UsedAt               string `json:"used_at,omitempty"`
	FailureReason        string `json:"failure_reason,omitempty"`
	PartnerTransactionID string `json:"partner_transaction_id,omitempty"`
	RedeemedAt           string `json:"redeemed_at"`
	Expired              bool   `json:"expired"`
}

// StatsDTO summarizes a user's redemption activity.
type StatsDTO struct {
	TotalRedemptions      int `json:"total_redemptions"`
	TotalCreditsSpent     int `json:"total_credits_spent"`
	SuccessfulRedemptions int `json:"successful_redemptions"`
	UsedRedemptions       int `json:"used_redemptions"`
	ActiveVouchers        int `json:"active_vouchers"`
}

// =============================================================================
// VOUCHERS (partner-facing)
// =============================================================================

// ValidateVoucherResponse is the read-only voucher check.
type ValidateVoucherResponse struct {
	Valid   bool   `json:"valid"`
	Message string `json:"message"`
}

// UseVoucherRequest marks a voucher consumed at a partner terminal.
type UseVoucherRequest struct {
	PartnerReference string `json:"partner_reference,omitempty"`
}

// UseVoucherResponse reports whether the use attempt won.
type UseVoucherResponse struct {
	Used    bool   `json:"used"`
	Message string `json:"message"`
}

// =============================================================================
// ACHIEVEMENTS
// =============================================================================

// AchievementDTO represents one unlocked achievement.
type AchievementDTO struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	Title       string `json:"title"`
	Description string `json:"description"`
	EarnedAt    string `json:"earned_at"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toBalanceDTO(b credit.Balance) BalanceDTO {
	return BalanceDTO{Available: b.Available, Earned: b.Earned, Spent: b.Spent}
}

func toTransactionDTO(tx credit.CreditTransaction) TransactionDTO {
	return TransactionDTO{
		ID:        string(tx.ID),
		Amount:    tx.Amount,
		Kind:      string(tx.Kind),
		Source:    tx.Source,
		CreatedAt: tx.CreatedAt.Format(time.RFC3339),
	}
}

func toRewardDTO(r catalog.Reward) RewardDTO {
	dto := RewardDTO{
		ID:             string(r.ID),
		Partner:        string(r.Partner),
		Name:           r.Name,
		Description:    r.Description,
		CreditCost:     r.CreditCost,
		MonetaryValue:  r.MonetaryValue.StringFixed(2),
		Category:       string(r.Category),
		StockQuantity:  r.StockQuantity,
		UnlimitedStock: r.UnlimitedStock,
		IsFeatured:     r.IsFeatured,
	}
	if r.ValidUntil != nil {
		dto.ValidUntil = r.ValidUntil.Format(time.RFC3339)
	}
	return dto
}

func toRewardDTOs(rewards []catalog.Reward) []RewardDTO {
	dtos := make([]RewardDTO, len(rewards))
	for i, r := range rewards {
		dtos[i] = toRewardDTO(r)
	}
	return dtos
}

func toRedemptionDTO(r *redemption.Redemption, now time.Time) RedemptionDTO {
	dto := RedemptionDTO{
		ID:                   string(r.ID),
		RewardID:             string(r.RewardID),
		CreditCost:           r.CreditCost,
		Status:               string(r.Status),
		VoucherCode:          r.VoucherCode,
		QRCodeURL:            r.QRCodeURL,
		FailureReason:        r.FailureReason,
		PartnerTransactionID: r.PartnerTransactionID,
		RedeemedAt:           r.RedeemedAt.Format(time.RFC3339),
		Expired:              r.Expired(now),
	}
	if r.ExpiryDate != nil {
		dto.ExpiryDate = r.ExpiryDate.Format(time.RFC3339)
	}
	if r.UsedAt != nil {
		dto.UsedAt = r.UsedAt.Format(time.RFC3339)
	}
	return dto
}

func toRedemptionDTOs(rs []redemption.Redemption, now time.Time) []RedemptionDTO {
	dtos := make([]RedemptionDTO, len(rs))
	for i := range rs {
		dtos[i] = toRedemptionDTO(&rs[i], now)
	}
	return dtos
}

func toAchievementDTO(a achievement.Achievement) AchievementDTO {
	return AchievementDTO{
		ID:          a.ID,
		Type:        string(a.Type),
		Title:       a.Title,
		Description: a.Description,
		EarnedAt:    a.EarnedAt.Format(time.RFC3339),
	}
}

func toAchievementDTOs(as []achievement.Achievement) []AchievementDTO {
	dtos := make([]AchievementDTO, len(as))
	for i, a := range as {
		dtos[i] = toAchievementDTO(a)
	}
	return dtos
}
