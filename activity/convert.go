/*
Package activity converts submitted steps into eco-credits.

PURPOSE:
  Entry point for credit earning. A step submission becomes an earned ledger
  transaction plus an achievement evaluation. The conversion itself is a
  pure function; Tracker wires it to the ledger and the evaluator.

CONVERSION:
  base  = steps / 100 (1 eco-credit per 100 steps)
  bonus = +50 at >= 10000 steps (daily sustainable transportation goal)
          +25 at >=  5000 steps (halfway there)
          +10 at >=  1000 steps (getting started)
  goal progress = min(steps / 10000, 1) * 100
*/
package activity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ecosteps/credit-engine/achievement"
	"github.com/ecosteps/credit-engine/credit"
)

const dailyStepGoal = 10000

// ErrInvalidSteps is returned for a negative step count.
var ErrInvalidSteps = errors.New("step count must not be negative")

// =============================================================================
// CONVERSION - Pure calculation
// =============================================================================

// Conversion breaks down a steps-to-credits calculation.
type Conversion struct {
	BaseCredits  int
	BonusCredits int
	TotalCredits int
	GoalProgress float64 // percentage of the daily sustainable goal, capped at 100
	Message      string
}

// ConvertSteps computes the eco-credit value of a day's steps.
func ConvertSteps(steps int) (Conversion, error) {
	if steps < 0 {
		return Conversion{}, ErrInvalidSteps
	}

	base := steps / 100

	var bonus int
	switch {
	case steps >= 10000:
		bonus = 50
	case steps >= 5000:
		bonus = 25
	case steps >= 1000:
		bonus = 10
	}

	progress := float64(steps) / float64(dailyStepGoal)
	if progress > 1 {
		progress = 1
	}

	total := base + bonus
	return Conversion{
		BaseCredits:  base,
		BonusCredits: bonus,
		TotalCredits: total,
		GoalProgress: progress * 100,
		Message: fmt.Sprintf(
			"Converted %d steps of sustainable transportation into %d eco-credits!",
			steps, total),
	}, nil
}

// =============================================================================
// TRACKER - Submission pipeline
// =============================================================================

// SubmissionResult is what a step submission yields: the conversion detail,
// the ledger entry it produced, any newly unlocked achievements, and the
// user's balance afterwards.
type SubmissionResult struct {
	Conversion      Conversion
	TransactionID   credit.TransactionID
	NewAchievements []achievement.Achievement
	Balance         credit.Balance
}

// Tracker feeds step submissions into the ledger and the achievement
// evaluator.
type Tracker struct {
	Ledger    *credit.Ledger
	Evaluator *achievement.Evaluator
}

func NewTracker(ledger *credit.Ledger, evaluator *achievement.Evaluator) *Tracker {
	return &Tracker{Ledger: ledger, Evaluator: evaluator}
}

// Submit converts steps for a date, awards the credits, and evaluates
// achievements. A zero-credit day (under 100 steps) still runs the
// achievement evaluation but appends no ledger entry.
func (t *Tracker) Submit(ctx context.Context, userID credit.UserID, steps int, date time.Time) (*SubmissionResult, error) {
	conv, err := ConvertSteps(steps)
	if err != nil {
		return nil, err
	}

	result := &SubmissionResult{Conversion: conv}

	if conv.TotalCredits > 0 {
		source := fmt.Sprintf("steps %s: %s", date.Format("2006-01-02"), conv.Message)
		txID, err := t.Ledger.Award(ctx, userID, conv.TotalCredits, source)
		if err != nil {
			return nil, err
		}
		result.TransactionID = txID
	}

	unlocked, err := t.Evaluator.Evaluate(ctx, userID, steps, conv.TotalCredits)
	if err != nil {
		return nil, err
	}
	result.NewAchievements = unlocked

	bal, err := t.Ledger.Balance(ctx, userID)
	if err != nil {
		return nil, err
	}
	result.Balance = bal

	return result, nil
}
