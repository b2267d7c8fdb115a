/*
handlers.go - HTTP API handlers for the eco-credit engine

PURPOSE:
  Exposes the credit and redemption engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Auth:
    POST   /api/auth/guest             Create guest account + session
    POST   /api/auth/signout           Invalidate session

  Activity (session required):
    POST   /api/steps                  Submit daily steps, earn credits

  Credits (session required):
    GET    /api/credits/balance        Derived balance
    GET    /api/credits/transactions   Ledger history

  Rewards (session required):
    GET    /api/rewards                Browse catalog (?category=, ?featured=, ?affordable=)
    GET    /api/rewards/{id}           Reward detail
    GET    /api/rewards/{id}/eligibility  Dry-run eligibility check
    POST   /api/rewards/{id}/redeem    Redeem credits for a voucher

  Redemptions (session required):
    GET    /api/redemptions            History, newest first
    POST   /api/redemptions/{id}/cancel  Cancel a stuck redemption
    GET    /api/vouchers/active        Usable vouchers
    GET    /api/stats                  Redemption stats
    GET    /api/achievements           Unlocked achievements

  Partner (no session; partner terminals hold no user token):
    GET    /api/partner/vouchers/{code}/validate
    POST   /api/partner/vouchers/{code}/use

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 401: Missing or expired session
  - 404: Resource not found
  - 500: Internal errors
  A failed redemption is NOT an HTTP error: the attempt reached a definite
  FAILED state, so it returns 200 with success=false.

SEE ALSO:
  - dto.go: Request/response data structures
  - session.go: SessionStore and auth middleware
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ecosteps/credit-engine/achievement"
	"github.com/ecosteps/credit-engine/activity"
	"github.com/ecosteps/credit-engine/catalog"
	"github.com/ecosteps/credit-engine/credit"
	"github.com/ecosteps/credit-engine/redemption"
	"github.com/ecosteps/credit-engine/user"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Ledger       *credit.Ledger
	Tracker      *activity.Tracker
	Catalog      catalog.Store
	Workflow     *redemption.Workflow
	Eligibility  *catalog.EligibilityChecker
	Achievements achievement.Store
	Users        user.Store
	Sessions     SessionStore
	Logger       *zap.Logger

	// SessionTTL bounds guest sessions. Zero means the default.
	SessionTTL time.Duration

	// Clock is injectable for tests.
	Clock func() time.Time
}

const defaultSessionTTL = 30 * 24 * time.Hour

func (h *Handler) now() time.Time {
	if h.Clock != nil {
		return h.Clock()
	}
	return time.Now()
}

func (h *Handler) sessionTTL() time.Duration {
	if h.SessionTTL > 0 {
		return h.SessionTTL
	}
	return defaultSessionTTL
}

// =============================================================================
// AUTH HANDLERS
// =============================================================================

// GuestSignIn creates a guest account and a session for it.
func (h *Handler) GuestSignIn(w http.ResponseWriter, r *http.Request) {
	var req GuestSignInRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body", err)
			return
		}
	}

	name := req.Name
	if name == "" {
		name = "Guest"
	}

	u := user.User{
		ID:        credit.UserID("guest-" + uuid.NewString()),
		Name:      name,
		CreatedAt: h.now().UTC(),
	}
	if err := h.Users.CreateUser(r.Context(), u); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create guest account", err)
		return
	}

	s, err := h.Sessions.Create(r.Context(), u.ID, h.sessionTTL())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create session", err)
		return
	}

	writeJSON(w, http.StatusCreated, SessionDTO{
		Token:     s.Token,
		UserID:    string(s.UserID),
		ExpiresAt: s.ExpiresAt.Format(time.RFC3339),
	})
}

// SignOut invalidates the caller's session.
func (h *Handler) SignOut(w http.ResponseWriter, r *http.Request) {
	if token := bearerToken(r); token != "" {
		if err := h.Sessions.Invalidate(r.Context(), token); err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to sign out", err)
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// ACTIVITY HANDLERS
// =============================================================================

// SubmitSteps records a day of steps and awards eco-credits.
func (h *Handler) SubmitSteps(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFrom(r.Context())

	var req SubmitStepsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	date := h.now().UTC()
	if req.Date != "" {
		parsed, err := time.Parse("2006-01-02", req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
			return
		}
		date = parsed
	}

	result, err := h.Tracker.Submit(r.Context(), userID, req.Steps, date)
	if err != nil {
		if errors.Is(err, activity.ErrInvalidSteps) {
			writeError(w, http.StatusBadRequest, "Steps must not be negative", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to record steps", err)
		return
	}

	writeJSON(w, http.StatusOK, SubmitStepsResponse{
		BaseCredits:     result.Conversion.BaseCredits,
		BonusCredits:    result.Conversion.BonusCredits,
		TotalCredits:    result.Conversion.TotalCredits,
		GoalProgress:    result.Conversion.GoalProgress,
		Message:         result.Conversion.Message,
		NewAchievements: toAchievementDTOs(result.NewAchievements),
		Balance:         toBalanceDTO(result.Balance),
	})
}

// =============================================================================
// CREDIT HANDLERS
// =============================================================================

// GetBalance returns the derived balance for the caller.
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	balance, err := h.Ledger.Balance(r.Context(), UserIDFrom(r.Context()))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load balance", err)
		return
	}
	writeJSON(w, http.StatusOK, toBalanceDTO(balance))
}

// GetTransactions returns the caller's ledger history.
func (h *Handler) GetTransactions(w http.ResponseWriter, r *http.Request) {
	txs, err := h.Ledger.Transactions(r.Context(), UserIDFrom(r.Context()))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load transactions", err)
		return
	}

	dtos := make([]TransactionDTO, len(txs))
	for i, tx := range txs {
		dtos[i] = toTransactionDTO(tx)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// REWARD HANDLERS
// =============================================================================

// ListRewards returns available rewards, optionally filtered.
// Filters: ?category=, ?featured=true, ?affordable=true (caller's balance).
func (h *Handler) ListRewards(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	now := h.now()

	var (
		rewards []catalog.Reward
		err     error
	)
	switch {
	case r.URL.Query().Get("featured") == "true":
		rewards, err = h.Catalog.ListFeatured(ctx, now)
	case r.URL.Query().Get("category") != "":
		category := catalog.Category(r.URL.Query().Get("category"))
		rewards, err = h.Catalog.ListByCategory(ctx, category, now)
	case r.URL.Query().Get("affordable") == "true":
		var balance credit.Balance
		balance, err = h.Ledger.Balance(ctx, UserIDFrom(ctx))
		if err == nil {
			rewards, err = h.Catalog.ListAffordable(ctx, balance.Available, now)
		}
	default:
		rewards, err = h.Catalog.ListAvailable(ctx, now)
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list rewards", err)
		return
	}

	writeJSON(w, http.StatusOK, toRewardDTOs(rewards))
}

// GetReward returns a single catalog entry.
func (h *Handler) GetReward(w http.ResponseWriter, r *http.Request) {
	id := catalog.RewardID(chi.URLParam(r, "id"))

	reward, err := h.Catalog.GetReward(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get reward", err)
		return
	}
	if reward == nil {
		writeError(w, http.StatusNotFound, "Reward not found", nil)
		return
	}

	writeJSON(w, http.StatusOK, toRewardDTO(*reward))
}

// CheckEligibility runs the eligibility rules without redeeming.
func (h *Handler) CheckEligibility(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFrom(r.Context())
	rewardID := catalog.RewardID(chi.URLParam(r, "id"))

	elig, err := h.Eligibility.Check(r.Context(), userID, rewardID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Eligibility check failed", err)
		return
	}

	writeJSON(w, http.StatusOK, EligibilityDTO{Eligible: elig.Eligible, Message: elig.Message})
}

// Redeem exchanges credits for a partner voucher. The response is always a
// definite outcome; a failed attempt is 200 with success=false, its credits
// already refunded.
func (h *Handler) Redeem(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFrom(r.Context())
	rewardID := catalog.RewardID(chi.URLParam(r, "id"))

	result, err := h.Workflow.Redeem(r.Context(), userID, rewardID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Redemption failed", err)
		return
	}

	resp := RedeemResponse{Success: result.Success, Message: result.Message}
	if result.Redemption != nil {
		dto := toRedemptionDTO(result.Redemption, h.now())
		resp.Redemption = &dto
	}
	writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// REDEMPTION HANDLERS
// =============================================================================

// GetHistory returns the caller's redemptions, newest first.
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	rs, err := h.Workflow.History(r.Context(), UserIDFrom(r.Context()))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load history", err)
		return
	}
	writeJSON(w, http.StatusOK, toRedemptionDTOs(rs, h.now()))
}

// CancelRedemption cancels a non-terminal redemption and releases its
// reservation.
func (h *Handler) CancelRedemption(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFrom(r.Context())
	id := redemption.RedemptionID(chi.URLParam(r, "id"))

	rec, err := h.Workflow.Store.GetRedemption(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load redemption", err)
		return
	}
	if rec == nil || rec.UserID != userID {
		writeError(w, http.StatusNotFound, "Redemption not found", nil)
		return
	}

	if err := h.Workflow.Cancel(r.Context(), id); err != nil {
		if errors.Is(err, redemption.ErrInvalidTransition) {
			writeError(w, http.StatusConflict,
				fmt.Sprintf("Redemption in status %s cannot be cancelled", rec.Status), nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to cancel redemption", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetActiveVouchers returns the caller's usable vouchers.
func (h *Handler) GetActiveVouchers(w http.ResponseWriter, r *http.Request) {
	rs, err := h.Workflow.ActiveVouchers(r.Context(), UserIDFrom(r.Context()))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load vouchers", err)
		return
	}
	writeJSON(w, http.StatusOK, toRedemptionDTOs(rs, h.now()))
}

// GetStats returns the caller's redemption summary.
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Workflow.UserStats(r.Context(), UserIDFrom(r.Context()))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load stats", err)
		return
	}
	writeJSON(w, http.StatusOK, StatsDTO{
		TotalRedemptions:      stats.TotalRedemptions,
		TotalCreditsSpent:     stats.TotalCreditsSpent,
		SuccessfulRedemptions: stats.SuccessfulRedemptions,
		UsedRedemptions:       stats.UsedRedemptions,
		ActiveVouchers:        stats.ActiveVouchers,
	})
}

// GetAchievements returns the caller's unlocked achievements.
func (h *Handler) GetAchievements(w http.ResponseWriter, r *http.Request) {
	as, err := h.Achievements.ListByUser(r.Context(), UserIDFrom(r.Context()))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load achievements", err)
		return
	}
	writeJSON(w, http.StatusOK, toAchievementDTOs(as))
}

// =============================================================================
// PARTNER HANDLERS
// =============================================================================

// ValidateVoucher is the read-only check a partner terminal runs before
// accepting a voucher.
func (h *Handler) ValidateVoucher(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	result, err := h.Workflow.Validate(r.Context(), code)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Validation failed", err)
		return
	}

	writeJSON(w, http.StatusOK, ValidateVoucherResponse{
		Valid:   result.Valid,
		Message: result.Message,
	})
}

// UseVoucher marks a voucher consumed. Exactly one concurrent attempt wins.
func (h *Handler) UseVoucher(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	var req UseVoucherRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body", err)
			return
		}
	}

	used, err := h.Workflow.MarkUsed(r.Context(), code, req.PartnerReference)
	if err != nil {
		// A concurrent use attempt that lost the race surfaces as not-found
		// from the conditional update. Report it as an ordinary rejection.
		if !errors.Is(err, redemption.ErrVoucherNotFound) {
			writeError(w, http.StatusInternalServerError, "Failed to use voucher", err)
			return
		}
		used = false
	}

	resp := UseVoucherResponse{Used: used, Message: "Voucher marked as used"}
	if !used {
		resp.Message = "Voucher not valid for use"
	}
	writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
