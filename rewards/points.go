/*
Package rewards provides point awards for quest outcomes.

PURPOSE:
  Turns quest outcomes into point deltas for the gamification layer:
  completing a quest earns points weighted by its priority and the
  player's streak; finishing late or failing costs points.

KEY CONCEPTS:
  - Base points: Per-priority award for an on-time completion
  - Streak multiplier: Consecutive completion days compound the award,
    capped so streaks stay an incentive rather than an exploit
  - Late factor: Completions after the deadline (but before rollover
    failed them) earn a reduced award
  - Failure penalty: Rollover failures charge a fraction of base points

DESIGN PRINCIPLES:
  Uses decimal.Decimal throughout so repeated multiplications stay exact;
  point balances are user-visible and must never drift from float error.

USAGE:
  policy := rewards.DefaultPolicy()
  pts := policy.CompletionPoints(def, finishedAt, deadline, streakDays)

SEE ALSO:
  - planner: QuestDefinition priorities and QuestRecord.Points
*/
package rewards

import (
	"github.com/shopspring/decimal"

	"github.com/warp/quest-engine/planner"
)

// =============================================================================
// POINTS POLICY
// =============================================================================

// PointsPolicy holds the tunable award parameters.
type PointsPolicy struct {
	// Base award per priority for an on-time completion.
	Base map[planner.Priority]decimal.Decimal

	// StreakBonus is the per-consecutive-day multiplier increment:
	// multiplier = 1 + StreakBonus * streakDays, capped below.
	StreakBonus         decimal.Decimal
	MaxStreakMultiplier decimal.Decimal

	// LateFactor scales the award when the quest finished after its
	// deadline.
	LateFactor decimal.Decimal

	// FailurePenaltyRate is the fraction of base points charged when
	// rollover fails the quest.
	FailurePenaltyRate decimal.Decimal
}

// DefaultPolicy returns the stock tuning.
func DefaultPolicy() PointsPolicy {
	return PointsPolicy{
		Base: map[planner.Priority]decimal.Decimal{
			planner.PriorityLow:      decimal.NewFromInt(5),
			planner.PriorityNormal:   decimal.NewFromInt(10),
			planner.PriorityHigh:     decimal.NewFromInt(20),
			planner.PriorityCritical: decimal.NewFromInt(40),
		},
		StreakBonus:         decimal.NewFromFloat(0.05),
		MaxStreakMultiplier: decimal.NewFromInt(2),
		LateFactor:          decimal.NewFromFloat(0.5),
		FailurePenaltyRate:  decimal.NewFromFloat(0.25),
	}
}

// =============================================================================
// AWARDS
// =============================================================================

// CompletionPoints computes the award for completing a quest.
// finishedAt and deadlineMillis are epoch millis; a zero deadline means
// the quest had none and can never be late. streakDays counts consecutive
// completion days before this one.
func (p PointsPolicy) CompletionPoints(def *planner.QuestDefinition, finishedAt, deadlineMillis int64, streakDays int) decimal.Decimal {
	pts := p.basePoints(def)

	if streakDays > 0 {
		multiplier := decimal.NewFromInt(1).Add(p.StreakBonus.Mul(decimal.NewFromInt(int64(streakDays))))
		if multiplier.GreaterThan(p.MaxStreakMultiplier) {
			multiplier = p.MaxStreakMultiplier
		}
		pts = pts.Mul(multiplier)
	}

	if deadlineMillis > 0 && finishedAt > deadlineMillis {
		pts = pts.Mul(p.LateFactor)
	}

	return pts
}

// FailurePenalty computes the (negative) point delta for a rollover
// failure.
func (p PointsPolicy) FailurePenalty(def *planner.QuestDefinition) decimal.Decimal {
	return p.basePoints(def).Mul(p.FailurePenaltyRate).Neg()
}

func (p PointsPolicy) basePoints(def *planner.QuestDefinition) decimal.Decimal {
	priority := planner.PriorityNormal
	if def != nil && def.Priority != "" {
		priority = def.Priority
	}
	if base, ok := p.Base[priority]; ok {
		return base
	}
	// Unknown priorities score as normal rather than zero.
	if base, ok := p.Base[planner.PriorityNormal]; ok {
		return base
	}
	return decimal.Zero
}
