package planner_test

import (
	"context"
	"testing"
	"time"

	"github.com/warp/quest-engine/planner"
	"github.com/warp/quest-engine/planner/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestSweeper(t *testing.T, mem *store.Memory) *planner.RolloverSweeper {
	t.Helper()
	p := newTestPlanner(t, mem)
	s, err := planner.NewRolloverSweeper(mem, p)
	if err != nil {
		t.Fatalf("new rollover sweeper: %v", err)
	}
	return s
}

// seedLive creates a live instance directly in the store and returns it
// after applying the given mutation.
func seedLive(t *testing.T, mem *store.Memory, day planner.DayWindow, defID string, mutate func(*planner.LiveQuest)) *planner.LiveQuest {
	t.Helper()
	ctx := context.Background()
	def := activeDefinition(defID)
	q, err := mem.CreateLiveQuest(ctx, day, def, nil, 0, false)
	if err != nil {
		t.Fatalf("seed live quest: %v", err)
	}
	if mutate != nil {
		mutate(q)
	}
	if _, err := mem.Save(ctx, q); err != nil {
		t.Fatalf("save seeded quest: %v", err)
	}
	return q
}

// =============================================================================
// GRACE BOUNDARY
// =============================================================================

func TestRunRollover_GraceBoundaryIsExclusive(t *testing.T) {
	// GIVEN: deadline D, grace G minutes
	// THEN: rollover at now = D + G*60000 does NOT fail the quest;
	//       rollover at now = D + G*60000 + 1 DOES fail and remove it

	ctx := context.Background()
	grace := 30

	for _, tc := range []struct {
		name       string
		nowOffset  int64
		wantFailed int
	}{
		{"exactly at deadline+grace", int64(grace) * 60_000, 0},
		{"one millisecond past", int64(grace)*60_000 + 1, 1},
	} {
		mem := store.NewMemory()
		s := newTestSweeper(t, mem)
		day := s.Windows.GetOrCreate(planner.DayIndexOf(20_250), s.Config)

		deadline := day.Start + 9*3_600_000
		seedLive(t, mem, day, "def-1", func(q *planner.LiveQuest) {
			q.Deadline = deadline
			q.GraceMinutes = &grace
		})

		failed, err := s.RunRollover(ctx, "user-1", day, deadline+tc.nowOffset)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.name, err)
		}
		if len(failed) != tc.wantFailed {
			t.Errorf("%s: got %d failures, want %d", tc.name, len(failed), tc.wantFailed)
		}
		if got := mem.LiveCountForDay(day.Index); got != 1-tc.wantFailed {
			t.Errorf("%s: %d live instances remain, want %d", tc.name, got, 1-tc.wantFailed)
		}
	}
}

func TestRunRollover_NoGraceOverrideMeansZeroGrace(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	s := newTestSweeper(t, mem)
	day := s.Windows.GetOrCreate(planner.DayIndexOf(20_250), s.Config)

	deadline := day.Start + 9*3_600_000
	seedLive(t, mem, day, "def-1", func(q *planner.LiveQuest) {
		q.Deadline = deadline
	})

	failed, err := s.RunRollover(ctx, "user-1", day, deadline+1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(failed) != 1 {
		t.Errorf("got %d failures, want 1 (implicit zero grace)", len(failed))
	}
}

// =============================================================================
// EXEMPTIONS
// =============================================================================

func TestRunRollover_SkippedQuestsAreExcused(t *testing.T) {
	// An overdue instance with skip=true is never failed, regardless of
	// how late the rollover runs.

	ctx := context.Background()
	mem := store.NewMemory()
	s := newTestSweeper(t, mem)
	day := s.Windows.GetOrCreate(planner.DayIndexOf(20_250), s.Config)

	deadline := day.Start + 9*3_600_000
	seedLive(t, mem, day, "def-1", func(q *planner.LiveQuest) {
		q.Deadline = deadline
		q.Skip = true
	})

	failed, err := s.RunRollover(ctx, "user-1", day, deadline+365*24*3_600_000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(failed) != 0 {
		t.Errorf("got %d failures, want 0", len(failed))
	}
	if mem.LiveCountForDay(day.Index) != 1 {
		t.Error("skipped instance should be left untouched")
	}
}

func TestRunRollover_NoDeadlineQuestsNeverAutoFail(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	s := newTestSweeper(t, mem)
	day := s.Windows.GetOrCreate(planner.DayIndexOf(20_250), s.Config)

	seedLive(t, mem, day, "def-1", nil) // deadline stays 0

	failed, err := s.RunRollover(ctx, "user-1", day, day.End+10*24*3_600_000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(failed) != 0 {
		t.Errorf("got %d failures, want 0", len(failed))
	}
	if mem.LiveCountForDay(day.Index) != 1 {
		t.Error("no-deadline instance should be left untouched")
	}
}

// =============================================================================
// SWEEP OUTPUT AND OPENING-DAY MATERIALIZATION
// =============================================================================

func TestRunRollover_FailureRecordsSnapshotLineageAndReason(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	s := newTestSweeper(t, mem)
	day := s.Windows.GetOrCreate(planner.DayIndexOf(20_250), s.Config)

	deadline := day.Start + 9*3_600_000
	seedLive(t, mem, day, "def-1", func(q *planner.LiveQuest) {
		q.Deadline = deadline
	})

	failed, err := s.RunRollover(ctx, "user-1", day, deadline+1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(failed) != 1 {
		t.Fatalf("got %d failures, want 1", len(failed))
	}

	rec := failed[0]
	if rec.Kind != planner.KindFailed {
		t.Errorf("kind: got %q", rec.Kind)
	}
	if rec.Reason != planner.FailureReason {
		t.Errorf("reason: got %q, want %q", rec.Reason, planner.FailureReason)
	}
	if rec.DefinitionKey != "def-1" {
		t.Errorf("definition lineage: got %q", rec.DefinitionKey)
	}
	if rec.Key != planner.RecordKey(planner.KindFailed, day.Index, "def-1") {
		t.Errorf("record key: got %q", rec.Key)
	}
}

func TestRunRollover_OpensTheNextDay(t *testing.T) {
	// GIVEN: A user with an auto-materializing daily rule
	// WHEN: Rolling over from day N
	// THEN: Day N+1 is pre-populated

	ctx := context.Background()
	mem := store.NewMemory()
	s := newTestSweeper(t, mem)
	day := s.Windows.GetOrCreate(planner.DayIndexOf(20_250), s.Config)

	def := activeDefinition("def-1")
	def.Rules = []planner.RecurrenceRule{*dailyRule("rule-1", 9, 0)}
	mem.AddDefinition("user-1", def)

	if _, err := s.RunRollover(ctx, "user-1", day, day.End+1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	next := day.Index.PlusDays(1)
	if mem.LiveCountForDay(next) != 1 {
		t.Errorf("opening day holds %d instances, want 1", mem.LiveCountForDay(next))
	}
}

func TestRunRollover_EmptyDayCompletesWithNoFailures(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	s := newTestSweeper(t, mem)
	day := s.Windows.GetOrCreate(planner.DayIndexOf(20_250), s.Config)

	failed, err := s.RunRollover(ctx, "user-1", day, day.End+1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(failed) != 0 {
		t.Errorf("got %d failures, want 0", len(failed))
	}
}

func TestRunRolloverForYesterday_ResolvesDayFromClock(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	s := newTestSweeper(t, mem)

	now := utcAt(2025, time.June, 11, 12, 0)
	s.Now = func() time.Time { return now }

	yesterday := planner.DayIndexAt(now, s.Config).MinusDays(1)
	day := s.Windows.GetOrCreate(yesterday, s.Config)

	deadline := day.Start + 9*3_600_000
	seedLive(t, mem, day, "def-1", func(q *planner.LiveQuest) {
		q.Deadline = deadline
	})

	failed, err := s.RunRolloverForYesterday(ctx, "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(failed) != 1 {
		t.Errorf("got %d failures, want 1", len(failed))
	}
	if mem.LiveCountForDay(yesterday) != 0 {
		t.Error("failed instance should have been deleted")
	}
}
