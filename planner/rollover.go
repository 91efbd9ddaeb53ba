/*
rollover.go - Day-boundary sweep

PURPOSE:
  Closes one logical day and opens the next: enumerates the closing day's
  active instances, fails the overdue ones past their grace period into
  immutable failure records, deletes the failed live instances, then
  pre-populates the opening day via the DayPlanner.

FAILURE POLICY:
  - No-deadline instances (deadline <= 0) never auto-fail.
  - Explicitly skipped instances (skip flag) are excused regardless of
    how overdue they are.
  - Otherwise an instance fails iff now > deadline + grace. The grace is
    the per-instance override in minutes, else zero; a definition- or
    user-level default is deliberately not consulted here.

  A run either completes (returning the failure records written, possibly
  none) or stops at the first collaborator failure. There is no partial-
  success suppression and no resumable intermediate state.
*/
package planner

import (
	"context"
	"fmt"
	"time"
)

// FailureReason is the reason snapshotted onto records written by the
// sweep.
const FailureReason = "deadline+grace exceeded during rollover"

// RolloverSweeper transitions a user across a day boundary.
type RolloverSweeper struct {
	Store   RolloverStore
	Planner *DayPlanner
	Windows WindowCache
	Config  Config

	// Now is the clock used by RunRolloverForYesterday. Defaults to
	// time.Now.
	Now func() time.Time
}

// NewRolloverSweeper wires a sweeper around an already-wired planner.
func NewRolloverSweeper(store RolloverStore, p *DayPlanner) (*RolloverSweeper, error) {
	if store == nil {
		return nil, fmt.Errorf("rollover sweeper: store is required")
	}
	if p == nil {
		return nil, fmt.Errorf("rollover sweeper: day planner is required")
	}
	return &RolloverSweeper{
		Store:   store,
		Planner: p,
		Windows: p.Windows,
		Config:  p.Config,
		Now:     time.Now,
	}, nil
}

// RunRollover closes fromDay as of nowMillis and opens the following day,
// using the same timezone/rollover configuration as fromDay. It returns
// the failure records written during the sweep. On a collaborator failure
// the records already written are returned alongside the error.
func (s *RolloverSweeper) RunRollover(ctx context.Context, user UserKey, fromDay DayWindow, nowMillis int64) ([]*QuestRecord, error) {
	cfg := fromDay.Config()
	if cfg.IsZero() {
		return nil, fmt.Errorf("rollover: fromDay window carries no config")
	}

	live, err := s.Store.FindActiveLiveQuests(ctx, fromDay.Index)
	if err != nil {
		return nil, fmt.Errorf("enumerate day %s: %w", fromDay.Index, err)
	}

	var failed []*QuestRecord
	for _, q := range live {
		if q.Deadline <= 0 {
			continue
		}
		if q.Skip {
			continue
		}
		if nowMillis <= q.Deadline+graceMillis(q) {
			continue
		}

		rec, err := s.Store.CreateFailureRecord(ctx, q, fromDay, FailureReason)
		if err != nil {
			return failed, fmt.Errorf("record failure for %s: %w", q.Key, err)
		}
		failed = append(failed, rec)

		if err := s.Store.DeleteLiveQuest(ctx, q); err != nil {
			return failed, fmt.Errorf("delete failed quest %s: %w", q.Key, err)
		}
	}

	toDay := s.Windows.GetOrCreate(fromDay.Index.PlusDays(1), cfg)
	if _, err := s.Planner.EnsureDay(ctx, user, toDay); err != nil {
		return failed, fmt.Errorf("open day %s: %w", toDay.Index, err)
	}

	return failed, nil
}

// RunRolloverForYesterday resolves "yesterday relative to now" using the
// sweeper's configuration and calls RunRollover.
func (s *RolloverSweeper) RunRolloverForYesterday(ctx context.Context, user UserKey) ([]*QuestRecord, error) {
	now := s.now()
	today := DayIndexAt(now, s.Config)
	fromDay := s.Windows.GetOrCreate(today.MinusDays(1), s.Config)
	return s.RunRollover(ctx, user, fromDay, now.UnixMilli())
}

func (s *RolloverSweeper) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// graceMillis resolves the effective grace period of one instance. Only
// the per-instance override participates today; the layered lookup
// (instance -> definition -> user default) stops at the first real layer.
func graceMillis(q *LiveQuest) int64 {
	if q.GraceMinutes == nil {
		return 0
	}
	return int64(*q.GraceMinutes) * millisPerMinute
}
