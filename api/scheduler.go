/*
scheduler.go - Automated rollover scheduler

PURPOSE:
  Periodically checks for users whose previous logical day has closed and
  runs the rollover sweep for them: overdue instances fail into history
  records and the new day is materialized.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Iterates distinct definition owners
  - Skips users whose latest completed run already opened today
  - Records rollover runs for audit and UI display

CONFIGURATION:
  - CheckInterval: How often to check (default: 15 minutes)
  - Enabled: Whether scheduler is active (default: true)

USAGE:
  scheduler := NewRolloverScheduler(store, handler)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: TriggerRollover endpoint (manual sweep)
  - planner/rollover.go: RolloverSweeper
*/
package api

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/warp/quest-engine/planner"
	"github.com/warp/quest-engine/store/sqlite"
)

// RolloverScheduler handles automated day-boundary sweeps.
type RolloverScheduler struct {
	Store         *sqlite.Store
	Handler       *Handler
	CheckInterval time.Duration
	Enabled       bool

	ticker *time.Ticker
	stop   chan bool
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewRolloverScheduler creates a new scheduler.
func NewRolloverScheduler(store *sqlite.Store, handler *Handler) *RolloverScheduler {
	return &RolloverScheduler{
		Store:         store,
		Handler:       handler,
		CheckInterval: 15 * time.Minute,
		Enabled:       true,
		stop:          make(chan bool),
	}
}

// Start begins the scheduler.
func (rs *RolloverScheduler) Start() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if !rs.Enabled {
		log.Println("[Scheduler] Disabled, not starting")
		return
	}

	rs.ticker = time.NewTicker(rs.CheckInterval)
	rs.wg.Add(1)

	go rs.run()

	log.Printf("[Scheduler] Started with check interval: %v", rs.CheckInterval)
}

// Stop stops the scheduler.
func (rs *RolloverScheduler) Stop() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rs.ticker != nil {
		rs.ticker.Stop()
		close(rs.stop)
		rs.wg.Wait()
		log.Println("[Scheduler] Stopped")
	}
}

func (rs *RolloverScheduler) run() {
	defer rs.wg.Done()

	// Run immediately on start
	rs.checkAndProcess()

	for {
		select {
		case <-rs.ticker.C:
			rs.checkAndProcess()
		case <-rs.stop:
			return
		}
	}
}

func (rs *RolloverScheduler) checkAndProcess() {
	ctx := context.Background()
	now := time.Now()
	today := planner.DayIndexAt(now, rs.Handler.Config)

	log.Printf("[Scheduler] Checking rollovers at %v (logical %v)", now.Format(time.RFC3339), today)

	owners, err := rs.Store.ListOwners(ctx)
	if err != nil {
		log.Printf("[Scheduler] Error listing owners: %v", err)
		return
	}

	processedCount := 0
	skippedCount := 0

	for _, user := range owners {
		last, found, err := rs.Store.LastCompletedDay(ctx, user)
		if err != nil {
			log.Printf("[Scheduler] Error reading last run for %s: %v", user, err)
			continue
		}
		if found && !last.Before(today) {
			// Already opened today.
			skippedCount++
			continue
		}

		fromDay := today.MinusDays(1)
		if rs.processUser(ctx, user, fromDay, now) {
			processedCount++
		}
	}

	log.Printf("[Scheduler] Done: %d processed, %d up to date", processedCount, skippedCount)
}

func (rs *RolloverScheduler) processUser(ctx context.Context, user planner.UserKey, fromDay planner.DayIndex, now time.Time) bool {
	window := planner.BuildWindow(fromDay, rs.Handler.Config)

	run := sqlite.RolloverRun{
		User:      user,
		FromDay:   fromDay,
		ToDay:     fromDay.PlusDays(1),
		Status:    sqlite.RunPending,
		StartedAt: now.UnixMilli(),
	}

	records, err := rs.Handler.Sweeper.RunRollover(ctx, user, window, now.UnixMilli())
	run.FailedCount = len(records)
	if err != nil {
		log.Printf("[Scheduler] Rollover failed for %s day %v: %v", user, fromDay, err)
		run.Status = sqlite.RunFailed
		run.Error = err.Error()
	} else {
		run.Status = sqlite.RunCompleted
		run.CompletedAt = time.Now().UnixMilli()
	}

	if err := rs.Store.SaveRolloverRun(ctx, run); err != nil {
		log.Printf("[Scheduler] Error saving run for %s: %v", user, err)
		return false
	}
	if run.Status != sqlite.RunCompleted {
		return false
	}

	log.Printf("[Scheduler] Closed %v for %s: %d failed", fromDay, user, len(records))
	return true
}
