/*
balance.go - Point balance aggregation over quest history

PURPOSE:
  Computes a user's running point balance from their history records.
  This answers the question the gamification layer cares about:
  "how many points does this player have, and where did they come from?"

BALANCE COMPONENTS:
  Earned:    Points written on completed records (streak and lateness
             already baked in at write time)
  Penalties: Charges for rollover failures, computed at read time from
             the policy and the definition's priority
  Net:       Earned minus Penalties

KEY INSIGHT:
  Completion points are PERSISTED on the record (the streak context that
  produced them is gone by read time), but failure penalties are DERIVED
  at read time so a policy retune applies retroactively to old failures.
  Skipped and cancelled records never move the balance.

SEE ALSO:
  - points.go: The per-outcome award policy
  - planner: QuestRecord, the input to this aggregation
*/
package rewards

import (
	"github.com/shopspring/decimal"

	"github.com/warp/quest-engine/planner"
)

// =============================================================================
// BALANCE
// =============================================================================

// Balance is a user's aggregate point state across their full history.
type Balance struct {
	User planner.UserKey

	Earned    decimal.Decimal
	Penalties decimal.Decimal

	Completed int
	Failed    int
	Skipped   int
	Cancelled int
}

// Net returns earned points minus failure penalties.
func (b Balance) Net() decimal.Decimal {
	return b.Earned.Sub(b.Penalties)
}

// Outcomes returns the total number of resolved instances.
func (b Balance) Outcomes() int {
	return b.Completed + b.Failed + b.Skipped + b.Cancelled
}

// =============================================================================
// CALCULATOR
// =============================================================================

// BalanceCalculator folds history records into a Balance.
type BalanceCalculator struct {
	Policy PointsPolicy
}

// Calculate aggregates records for one user. defs maps definition keys to
// their current definitions so failure penalties can be priced by
// priority; a missing entry prices the penalty at the normal rate.
func (c BalanceCalculator) Calculate(user planner.UserKey, records []*planner.QuestRecord, defs map[planner.DefinitionID]*planner.QuestDefinition) Balance {
	b := Balance{
		User:      user,
		Earned:    decimal.Zero,
		Penalties: decimal.Zero,
	}

	for _, rec := range records {
		if rec == nil {
			continue
		}
		switch rec.Kind {
		case planner.KindCompleted:
			b.Completed++
			b.Earned = b.Earned.Add(rec.Points)
		case planner.KindFailed:
			b.Failed++
			b.Penalties = b.Penalties.Sub(c.Policy.FailurePenalty(defs[rec.DefinitionKey]))
		case planner.KindSkipped:
			b.Skipped++
		case planner.KindCancelled:
			b.Cancelled++
		}
	}
	return b
}
