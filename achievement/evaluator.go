/*
Package achievement provides the threshold-based unlock engine.

PURPOSE:
  Turns daily activity into one-time achievement unlocks. The engine holds a
  fixed, ordered table of step thresholds; evaluating the same day twice, or
  any number of times, never creates duplicate rows or duplicate side
  effects.

IDEMPOTENCY:
  Exactly one achievement per (user, type) ever exists. The evaluator skips
  types the user already holds, and the store enforces the same uniqueness
  underneath (unique index in SQLite), so a concurrent double-evaluate
  cannot slip a duplicate through.
*/
package achievement

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ecosteps/credit-engine/credit"
)

// =============================================================================
// TYPES
// =============================================================================

type Type string

const (
	TypeFirstSteps  Type = "first_steps"
	TypeWalker      Type = "walker"
	TypeStepper     Type = "stepper"
	TypeGoalCrusher Type = "goal_crusher"
)

// Achievement is created once and never mutated or deleted.
type Achievement struct {
	ID          string
	UserID      credit.UserID
	Type        Type
	Title       string
	Description string
	EarnedAt    time.Time
}

// ErrAlreadyUnlocked is returned by stores when a (user, type) row exists.
// The evaluator treats it as a benign no-op.
var ErrAlreadyUnlocked = errors.New("achievement already unlocked")

// Store handles achievement persistence.
type Store interface {
	// SaveAchievement inserts a row; returns ErrAlreadyUnlocked if the
	// (user, type) pair already exists.
	SaveAchievement(ctx context.Context, a Achievement) error

	// HasAchievement reports whether the user holds this type.
	HasAchievement(ctx context.Context, userID credit.UserID, t Type) (bool, error)

	// ListByUser returns the user's achievements, newest first.
	ListByUser(ctx context.Context, userID credit.UserID) ([]Achievement, error)
}

// =============================================================================
// THRESHOLD TABLE - Fixed and ordered
// =============================================================================

type criterion struct {
	Type        Type
	MinSteps    int
	Title       string
	Description string
}

var criteria = []criterion{
	{TypeFirstSteps, 100, "First Steps",
		"Complete your first 100 steps of sustainable transportation"},
	{TypeWalker, 1000, "Green Walker",
		"Walk 1,000 steps in a day (reducing carbon footprint)"},
	{TypeStepper, 5000, "Eco Stepper",
		"Walk 5,000 steps in a day (halfway to sustainable goal)"},
	{TypeGoalCrusher, 10000, "Sustainable Champion",
		"Reach the daily sustainable transportation goal of 10,000 steps"},
}

// =============================================================================
// EVALUATOR
// =============================================================================

// Evaluator checks activity against the threshold table and unlocks what
// the user has newly earned.
type Evaluator struct {
	Store  Store
	Clock  func() time.Time
	Logger *zap.Logger
}

func NewEvaluator(store Store, logger *zap.Logger) *Evaluator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Evaluator{Store: store, Clock: time.Now, Logger: logger}
}

// Evaluate unlocks every satisfied, not-yet-held achievement and returns
// only the newly unlocked ones. Safe to call repeatedly with the same
// inputs. creditsAwarded is accepted for future credit-based thresholds;
// the current table is step-driven.
func (e *Evaluator) Evaluate(ctx context.Context, userID credit.UserID, stepsToday, creditsAwarded int) ([]Achievement, error) {
	var unlocked []Achievement

	for _, c := range criteria {
		if stepsToday < c.MinSteps {
			continue
		}

		has, err := e.Store.HasAchievement(ctx, userID, c.Type)
		if err != nil {
			return unlocked, err
		}
		if has {
			continue
		}

		a := Achievement{
			ID:          uuid.NewString(),
			UserID:      userID,
			Type:        c.Type,
			Title:       c.Title,
			Description: c.Description,
			EarnedAt:    e.Clock().UTC(),
		}
		if err := e.Store.SaveAchievement(ctx, a); err != nil {
			if errors.Is(err, ErrAlreadyUnlocked) {
				continue // lost a benign race; the earlier unlock stands
			}
			return unlocked, err
		}

		e.Logger.Info("achievement unlocked",
			zap.String("user_id", string(userID)),
			zap.String("type", string(c.Type)),
			zap.String("title", c.Title))
		unlocked = append(unlocked, a)
	}

	return unlocked, nil
}
