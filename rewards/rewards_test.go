package rewards_test

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/warp/quest-engine/planner"
	"github.com/warp/quest-engine/rewards"
)

func defWithPriority(p planner.Priority) *planner.QuestDefinition {
	return &planner.QuestDefinition{ID: "def-1", Priority: p, Active: true}
}

func TestCompletionPoints_BaseByPriority(t *testing.T) {
	policy := rewards.DefaultPolicy()

	cases := map[planner.Priority]int64{
		planner.PriorityLow:      5,
		planner.PriorityNormal:   10,
		planner.PriorityHigh:     20,
		planner.PriorityCritical: 40,
	}
	for priority, want := range cases {
		got := policy.CompletionPoints(defWithPriority(priority), 1_000, 2_000, 0)
		if !got.Equal(decimal.NewFromInt(want)) {
			t.Errorf("%s: got %s, want %d", priority, got, want)
		}
	}
}

func TestCompletionPoints_StreakMultiplier(t *testing.T) {
	// 10 base points with a 4-day streak: 10 * (1 + 0.05*4) = 12.

	policy := rewards.DefaultPolicy()
	got := policy.CompletionPoints(defWithPriority(planner.PriorityNormal), 1_000, 2_000, 4)
	if !got.Equal(decimal.NewFromInt(12)) {
		t.Errorf("got %s, want 12", got)
	}
}

func TestCompletionPoints_StreakMultiplierIsCapped(t *testing.T) {
	// A 100-day streak would be a 6x multiplier; the cap holds it at 2x.

	policy := rewards.DefaultPolicy()
	got := policy.CompletionPoints(defWithPriority(planner.PriorityNormal), 1_000, 2_000, 100)
	if !got.Equal(decimal.NewFromInt(20)) {
		t.Errorf("got %s, want 20", got)
	}
}

func TestCompletionPoints_LateCompletionIsDiscounted(t *testing.T) {
	policy := rewards.DefaultPolicy()

	onTime := policy.CompletionPoints(defWithPriority(planner.PriorityHigh), 2_000, 2_000, 0)
	late := policy.CompletionPoints(defWithPriority(planner.PriorityHigh), 2_001, 2_000, 0)

	if !onTime.Equal(decimal.NewFromInt(20)) {
		t.Errorf("on time: got %s, want 20", onTime)
	}
	if !late.Equal(decimal.NewFromInt(10)) {
		t.Errorf("late: got %s, want 10", late)
	}
}

func TestCompletionPoints_NoDeadlineIsNeverLate(t *testing.T) {
	policy := rewards.DefaultPolicy()
	got := policy.CompletionPoints(defWithPriority(planner.PriorityNormal), 5_000_000, 0, 0)
	if !got.Equal(decimal.NewFromInt(10)) {
		t.Errorf("got %s, want full award", got)
	}
}

func TestFailurePenalty_IsNegativeFractionOfBase(t *testing.T) {
	policy := rewards.DefaultPolicy()
	got := policy.FailurePenalty(defWithPriority(planner.PriorityCritical))
	if !got.Equal(decimal.NewFromInt(-10)) {
		t.Errorf("got %s, want -10", got)
	}
}

func TestPoints_UnsetPriorityScoresAsNormal(t *testing.T) {
	policy := rewards.DefaultPolicy()
	got := policy.CompletionPoints(&planner.QuestDefinition{ID: "def-1"}, 1_000, 2_000, 0)
	if !got.Equal(decimal.NewFromInt(10)) {
		t.Errorf("got %s, want 10", got)
	}
}
