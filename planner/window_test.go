package planner_test

import (
	"testing"
	"time"

	"github.com/warp/quest-engine/planner"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func utcAt(year int, month time.Month, day, hour, min int) time.Time {
	return time.Date(year, month, day, hour, min, 0, 0, time.UTC)
}

func mustZone(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	if err != nil {
		t.Fatalf("load zone %s: %v", name, err)
	}
	return loc
}

// epochDays returns the day count of a UTC midnight since the Unix epoch.
func epochDays(t time.Time) int64 {
	return t.Unix() / 86_400
}

// =============================================================================
// CONFIG VALIDATION
// =============================================================================

func TestNewConfig_RejectsInvalidRolloverHour(t *testing.T) {
	for _, hour := range []int{-1, 24, 99} {
		if _, err := planner.NewConfig(time.UTC, hour); err == nil {
			t.Errorf("rollover hour %d should be rejected", hour)
		}
	}
	for _, hour := range []int{0, 4, 23} {
		if _, err := planner.NewConfig(time.UTC, hour); err != nil {
			t.Errorf("rollover hour %d should be accepted: %v", hour, err)
		}
	}
}

func TestNewConfig_RejectsNilLocation(t *testing.T) {
	if _, err := planner.NewConfig(nil, 0); err == nil {
		t.Fatal("nil location should be rejected")
	}
}

// =============================================================================
// DAY INDEX
// =============================================================================

func TestDayIndex_RolloverHourAttribution(t *testing.T) {
	// GIVEN: rolloverHour=4, timezone UTC
	// WHEN: Converting 03:59 and 04:00 on the same calendar date
	// THEN: 03:59 belongs to the previous logical day, 04:00 to the new one

	cfg := planner.MustConfig(time.UTC, 4)

	before := planner.DayIndexAt(utcAt(2025, time.June, 10, 3, 59), cfg)
	after := planner.DayIndexAt(utcAt(2025, time.June, 10, 4, 0), cfg)
	previousNoon := planner.DayIndexAt(utcAt(2025, time.June, 9, 12, 0), cfg)

	if before != previousNoon {
		t.Errorf("03:59 should count toward the previous day: got %v, want %v", before, previousNoon)
	}
	if after != before.PlusDays(1) {
		t.Errorf("04:00 should open the next day: got %v, want %v", after, before.PlusDays(1))
	}
}

func TestDayIndex_MidnightRolloverMatchesEpochDays(t *testing.T) {
	// With UTC and rollover 0, the day index is plain days-since-epoch.
	cfg := planner.UTCMidnight()
	for _, tc := range []time.Time{
		utcAt(1970, time.January, 1, 0, 0),
		utcAt(1970, time.January, 1, 23, 59),
		utcAt(2025, time.June, 10, 12, 0),
		utcAt(2038, time.January, 19, 3, 14),
	} {
		got := planner.DayIndexAt(tc, cfg)
		want := planner.DayIndexOf(epochDays(time.Date(tc.Year(), tc.Month(), tc.Day(), 0, 0, 0, 0, time.UTC)))
		if got != want {
			t.Errorf("%v: got %v, want %v", tc, got, want)
		}
	}
}

func TestDayIndex_BeforeEpochUsesFloorDivision(t *testing.T) {
	// GIVEN: An instant before the epoch
	// THEN: Floor semantics put it in a negative day, not day zero

	cfg := planner.UTCMidnight()
	got := planner.DayIndexAt(utcAt(1969, time.December, 31, 23, 0), cfg)
	if got != planner.DayIndexOf(-1) {
		t.Errorf("pre-epoch instant: got %v, want day--1", got)
	}
}

func TestDayIndex_MonotonicAcrossDSTTransition(t *testing.T) {
	// Sample instants hourly across the 2025 US spring-forward weekend;
	// day indexes must never decrease as time advances.

	cfg := planner.MustConfig(mustZone(t, "America/New_York"), 0)
	start := utcAt(2025, time.March, 8, 0, 0)

	prev := planner.DayIndexAt(start, cfg)
	for i := 1; i <= 72; i++ {
		at := start.Add(time.Duration(i) * time.Hour)
		cur := planner.DayIndexAt(at, cfg)
		if cur < prev {
			t.Fatalf("day index went backwards at %v: %v -> %v", at, prev, cur)
		}
		prev = cur
	}
}

// =============================================================================
// WINDOW BOUNDS
// =============================================================================

func TestWindow_ContainmentAndContiguity(t *testing.T) {
	// For every day in a sample range: start <= end, and the next window
	// starts exactly one millisecond after the previous one ends.

	cfg := planner.MustConfig(time.UTC, 4)
	base := planner.DayIndexAt(utcAt(2025, time.January, 1, 12, 0), cfg)

	for i := int64(0); i < 60; i++ {
		d := base.PlusDays(i)
		start := planner.WindowStart(d, cfg)
		end := planner.WindowEnd(d, cfg)
		if start > end {
			t.Fatalf("%v: start %d after end %d", d, start, end)
		}
		if next := planner.WindowStart(d.PlusDays(1), cfg); next != end+1 {
			t.Fatalf("%v: next start %d != end+1 %d", d, next, end+1)
		}
	}
}

func TestWindow_RoundTripsThroughDayIndex(t *testing.T) {
	// Both window boundaries must map back to their own day. The sample
	// range crosses the 2025-03-09 spring-forward; the single-pass offset
	// approximation only guarantees the round trip on days with a uniform
	// offset, so transition days are skipped rather than asserted.

	cfg := planner.MustConfig(mustZone(t, "America/New_York"), 4)
	base := planner.DayIndexAt(utcAt(2025, time.March, 1, 12, 0), cfg)

	transitions := 0
	for i := int64(0); i < 20; i++ {
		d := base.PlusDays(i)
		if planner.BuildWindow(d, cfg).Duration != 24*3_600_000 {
			transitions++
			continue
		}
		if got := planner.DayIndexForMillis(planner.WindowStart(d, cfg), cfg); got != d {
			t.Errorf("start of %v maps to %v", d, got)
		}
		if got := planner.DayIndexForMillis(planner.WindowEnd(d, cfg), cfg); got != d {
			t.Errorf("end of %v maps to %v", d, got)
		}
	}

	// The range is chosen to contain exactly the one spring-forward day;
	// anything else means the sample drifted off the transition.
	if transitions != 1 {
		t.Errorf("got %d transition days in range, want 1", transitions)
	}
}

func TestWindow_SpringForwardDayIs23Hours(t *testing.T) {
	// GIVEN: America/New_York, rollover 0, the 2025-03-09 transition day
	// THEN: The window is 23h long; the variable-length window is the
	//       intended behavior, not normalized to 24h

	cfg := planner.MustConfig(mustZone(t, "America/New_York"), 0)
	day := planner.DayIndexAt(utcAt(2025, time.March, 9, 12, 0), cfg)
	w := planner.BuildWindow(day, cfg)

	if w.Duration != 23*3_600_000 {
		t.Errorf("spring-forward day duration: got %d, want 23h", w.Duration)
	}
}

func TestWindow_FallBackDayIs25Hours(t *testing.T) {
	cfg := planner.MustConfig(mustZone(t, "America/New_York"), 0)
	day := planner.DayIndexAt(utcAt(2025, time.November, 2, 12, 0), cfg)
	w := planner.BuildWindow(day, cfg)

	if w.Duration != 25*3_600_000 {
		t.Errorf("fall-back day duration: got %d, want 25h", w.Duration)
	}
}

func TestWindow_OrdinaryDayIsExactly24Hours(t *testing.T) {
	cfg := planner.MustConfig(mustZone(t, "America/New_York"), 0)
	day := planner.DayIndexAt(utcAt(2025, time.June, 10, 12, 0), cfg)
	w := planner.BuildWindow(day, cfg)

	if w.Duration != 24*3_600_000 {
		t.Errorf("ordinary day duration: got %d, want 24h", w.Duration)
	}
}

func TestBuildWindow_CalendarFields(t *testing.T) {
	// The window opens at rolloverHour local; calendar fields reflect the
	// logical day's date. 2025-06-10 is a Tuesday, year day 161.

	cfg := planner.MustConfig(time.UTC, 4)
	day := planner.DayIndexAt(utcAt(2025, time.June, 10, 12, 0), cfg)
	w := planner.BuildWindow(day, cfg)

	if w.DayOfWeek != time.Tuesday {
		t.Errorf("day of week: got %v, want Tuesday", w.DayOfWeek)
	}
	if w.DayName != "Tuesday" {
		t.Errorf("day name: got %q, want Tuesday", w.DayName)
	}
	if w.DayOfMonth != 10 {
		t.Errorf("day of month: got %d, want 10", w.DayOfMonth)
	}
	if w.DayOfYear != 161 {
		t.Errorf("day of year: got %d, want 161", w.DayOfYear)
	}
	if w.Start != utcAt(2025, time.June, 10, 4, 0).UnixMilli() {
		t.Errorf("start: got %d, want 04:00 UTC", w.Start)
	}
}
