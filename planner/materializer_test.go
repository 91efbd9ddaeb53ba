package planner_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/warp/quest-engine/planner"
	"github.com/warp/quest-engine/planner/store"
)

// =============================================================================
// TEST FIXTURES
// =============================================================================
// Note: utcAt and mustZone are defined in window_test.go.

func testWindow(t *testing.T) planner.DayWindow {
	t.Helper()
	cfg := planner.MustConfig(time.UTC, 4)
	return planner.BuildWindow(planner.DayIndexAt(utcAt(2025, time.June, 10, 12, 0), cfg), cfg)
}

func activeDefinition(id string) *planner.QuestDefinition {
	return &planner.QuestDefinition{
		ID:       planner.DefinitionID(id),
		Owner:    "user-1",
		Name:     "Morning workout",
		Priority: planner.PriorityNormal,
		Active:   true,
	}
}

func dailyRule(id string, hour, minute int) *planner.RecurrenceRule {
	anchor := planner.NewDailyAnchor(hour, minute)
	return &planner.RecurrenceRule{
		ID:              planner.RuleID(id),
		Cadence:         planner.NewCadence(1, planner.UnitDay),
		Anchor:          &anchor,
		Active:          true,
		AutoMaterialize: true,
	}
}

// =============================================================================
// IDEMPOTENCE - The load-bearing invariant
// =============================================================================

func TestEnsureInstance_IdempotentAcrossRepeatedCalls(t *testing.T) {
	// GIVEN: A materialized instance for (day, liveKey)
	// WHEN: EnsureInstance is called again with identical input
	// THEN: The same liveKey is returned and the store holds exactly one
	//       instance for that key

	ctx := context.Background()
	mem := store.NewMemory()
	m := planner.NewQuestMaterializer(mem)
	day := testWindow(t)

	def := activeDefinition("def-1")
	rule := dailyRule("rule-1", 9, 30)

	first, err := m.EnsureInstance(ctx, day, def, rule, false)
	if err != nil {
		t.Fatalf("first call: %v", err)
	}
	second, err := m.EnsureInstance(ctx, day, def, rule, false)
	if err != nil {
		t.Fatalf("second call: %v", err)
	}

	if first == nil || second == nil {
		t.Fatal("expected instances from both calls")
	}
	if first.LiveKey != second.LiveKey {
		t.Errorf("live keys differ: %q vs %q", first.LiveKey, second.LiveKey)
	}
	if mem.LiveCountForDay(day.Index) != 1 {
		t.Errorf("store holds %d instances, want 1", mem.LiveCountForDay(day.Index))
	}
}

func TestEnsureInstance_DuplicateCreateConflictReturnsExisting(t *testing.T) {
	// GIVEN: A store whose lookup misses but whose create reports a
	//        uniqueness conflict (the check-then-create race)
	// THEN: The existing record is returned, no error

	ctx := context.Background()
	mem := store.NewMemory()
	day := testWindow(t)
	def := activeDefinition("def-1")
	rule := dailyRule("rule-1", 9, 0)

	// Seed the winner of the race directly.
	if _, err := mem.CreateLiveQuest(ctx, day, def, rule, 0, false); err != nil {
		t.Fatalf("seed: %v", err)
	}

	racing := &blindCreateStore{Memory: mem}
	m := planner.NewQuestMaterializer(racing)

	q, err := m.EnsureInstance(ctx, day, def, rule, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q == nil || q.LiveKey != "def-1/rule-1" {
		t.Fatalf("expected the winner's record back, got %+v", q)
	}
	if mem.LiveCountForDay(day.Index) != 1 {
		t.Errorf("store holds %d instances, want 1", mem.LiveCountForDay(day.Index))
	}
}

// blindCreateStore simulates losing the check-then-create race: the first
// lookup misses even though the row exists, so the materializer proceeds
// to a create that collides.
type blindCreateStore struct {
	*store.Memory
	lookups int
}

func (s *blindCreateStore) FindByDayAndLiveKey(ctx context.Context, day planner.DayIndex, key string) (*planner.LiveQuest, error) {
	s.lookups++
	if s.lookups == 1 {
		return nil, nil
	}
	return s.Memory.FindByDayAndLiveKey(ctx, day, key)
}

// =============================================================================
// SHORT-CIRCUITS AND PRECONDITIONS
// =============================================================================

func TestEnsureInstance_ShortCircuits(t *testing.T) {
	ctx := context.Background()
	day := testWindow(t)

	inactiveDef := activeDefinition("def-1")
	inactiveDef.Active = false

	inactiveRule := dailyRule("rule-1", 9, 0)
	inactiveRule.Active = false

	manualRule := dailyRule("rule-1", 9, 0)
	manualRule.AutoMaterialize = false

	cases := map[string]struct {
		def  *planner.QuestDefinition
		rule *planner.RecurrenceRule
	}{
		"inactive definition": {def: inactiveDef, rule: dailyRule("rule-1", 9, 0)},
		"inactive rule":       {def: activeDefinition("def-1"), rule: inactiveRule},
		"manual-only rule":    {def: activeDefinition("def-1"), rule: manualRule},
	}

	for name, tc := range cases {
		mem := store.NewMemory()
		m := planner.NewQuestMaterializer(mem)
		q, err := m.EnsureInstance(ctx, day, tc.def, tc.rule, false)
		if err != nil {
			t.Errorf("%s: unexpected error %v", name, err)
		}
		if q != nil {
			t.Errorf("%s: expected no instance, got %+v", name, q)
		}
		if mem.LiveCount() != 0 {
			t.Errorf("%s: store should stay empty", name)
		}
	}
}

func TestEnsureInstance_MalformedInputIsAnError(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	m := planner.NewQuestMaterializer(mem)
	day := testWindow(t)

	if _, err := m.EnsureInstance(ctx, day, nil, nil, false); !errors.Is(err, planner.ErrMissingDefinitionKey) {
		t.Errorf("nil definition: got %v, want missing-definition-key", err)
	}
	if _, err := m.EnsureInstance(ctx, day, &planner.QuestDefinition{Active: true}, nil, false); !errors.Is(err, planner.ErrMissingDefinitionKey) {
		t.Errorf("keyless definition: got %v, want missing-definition-key", err)
	}

	keylessRule := dailyRule("", 9, 0)
	if _, err := m.EnsureInstance(ctx, day, activeDefinition("def-1"), keylessRule, false); !errors.Is(err, planner.ErrMissingRuleKey) {
		t.Errorf("keyless rule: got %v, want missing-rule-key", err)
	}
}

// =============================================================================
// SEEDING AND BACKFILL
// =============================================================================

func TestEnsureInstance_WithoutRuleUsesDefinitionKeyAlone(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	m := planner.NewQuestMaterializer(mem)
	day := testWindow(t)

	q, err := m.EnsureInstance(ctx, day, activeDefinition("def-1"), nil, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.LiveKey != "def-1" {
		t.Errorf("live key: got %q, want def-1", q.LiveKey)
	}
	if q.Deadline != 0 {
		t.Errorf("deadline without rule: got %d, want 0", q.Deadline)
	}
}

func TestEnsureInstance_SeedsDeadlineKeysAndStatus(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	m := planner.NewQuestMaterializer(mem)
	day := testWindow(t)

	q, err := m.EnsureInstance(ctx, day, activeDefinition("def-1"), dailyRule("rule-1", 9, 30), true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wantDeadline := day.Start + (9*60+30)*60_000
	if q.Deadline != wantDeadline {
		t.Errorf("deadline: got %d, want %d", q.Deadline, wantDeadline)
	}
	if q.Key != planner.LiveQuestKey(day.Index, "def-1/rule-1") {
		t.Errorf("key: got %q", q.Key)
	}
	if q.ParentDayKey != planner.DayKey(day.Index) {
		t.Errorf("parent day key: got %q", q.ParentDayKey)
	}
	if q.DayNum != day.Index {
		t.Errorf("day num: got %v, want %v", q.DayNum, day.Index)
	}
	if q.Status != planner.StatusActive {
		t.Errorf("status: got %q, want active", q.Status)
	}
	if !q.Skip {
		t.Error("caller-supplied skip flag should be carried onto the instance")
	}
	if q.DefinitionKey != "def-1" || q.RuleKey != "rule-1" {
		t.Errorf("lineage: got %q/%q", q.DefinitionKey, q.RuleKey)
	}
}

func TestEnsureInstance_ExistingInstanceReturnedUnchanged(t *testing.T) {
	// A second call with a different skip flag must NOT rewrite the
	// existing instance; idempotence means returning it as-is.

	ctx := context.Background()
	mem := store.NewMemory()
	m := planner.NewQuestMaterializer(mem)
	day := testWindow(t)
	def := activeDefinition("def-1")
	rule := dailyRule("rule-1", 9, 0)

	first, err := m.EnsureInstance(ctx, day, def, rule, false)
	if err != nil {
		t.Fatalf("first call: %v", err)
	}
	second, err := m.EnsureInstance(ctx, day, def, rule, true)
	if err != nil {
		t.Fatalf("second call: %v", err)
	}
	if second.Skip != first.Skip {
		t.Error("existing instance should be returned unchanged")
	}
}
