/*
window.go - Day-window arithmetic (timezone and DST aware)

PURPOSE:
  Pure functions mapping between epoch-millis instants and logical day
  numbers, and materializing the concrete start/end window of a logical
  day in a given timezone/rollover configuration.

ALGORITHM:
  DayIndexAt looks up the timezone's UTC offset AT THE GIVEN INSTANT (so a
  DST transition is resolved for that specific moment, not via a fixed
  offset), adds it to get "local" millis, subtracts the rollover hour so
  that times before the rollover hour count toward the previous logical
  day, and floor-divides by 86,400,000.

  WindowStart is the inverse. Offset lookup itself depends on the instant
  being resolved, so the inverse uses a single-pass approximation: the
  local-shifted value is used as the probe instant for the offset lookup.
  Within a few hours of a DST transition the result can be off by the
  transition delta. This is a known, accepted limitation; windows on
  transition days may not span exactly 24 hours and deadlines computed
  inside them may fall slightly outside the nominal span.

EPOCH:
  Day 0 starts at the Unix epoch (1970-01-01T00:00Z) shifted by the same
  offset/rollover rules as every other day.

SEE ALSO:
  - cache.go: Memoizes BuildWindow results
  - anchor.go: Resolves deadlines inside a window
*/
package planner

import "time"

const (
	millisPerMinute int64 = 60_000
	millisPerHour   int64 = 3_600_000
	millisPerDay    int64 = 86_400_000
)

// =============================================================================
// DAY WINDOW - Concrete span of one logical day
// =============================================================================

// DayWindow is the derived, cacheable record for a (DayIndex, timezone,
// rolloverHour) triple. Start and End are inclusive epoch millis.
// Duration is normally exactly 24h but may differ on DST transition days.
type DayWindow struct {
	Index        DayIndex
	Zone         string
	RolloverHour int

	Start    int64
	End      int64
	Duration int64

	DayOfWeek  time.Weekday
	DayOfMonth int
	DayOfYear  int
	DayName    string

	cfg Config
}

// Config returns the configuration the window was built with.
func (w DayWindow) Config() Config { return w.cfg }

// Contains reports whether the instant falls inside [Start, End].
func (w DayWindow) Contains(epochMillis int64) bool {
	return epochMillis >= w.Start && epochMillis <= w.End
}

// =============================================================================
// INSTANT -> DAY INDEX
// =============================================================================

// DayIndexForMillis converts an epoch-millis instant into the logical day
// it belongs to under the given configuration.
func DayIndexForMillis(epochMillis int64, cfg Config) DayIndex {
	offset := offsetMillis(cfg.Location(), epochMillis)
	shifted := epochMillis + offset - int64(cfg.RolloverHour())*millisPerHour
	return DayIndex(floorDiv(shifted, millisPerDay))
}

// DayIndexAt is DayIndexForMillis for a time.Time.
func DayIndexAt(t time.Time, cfg Config) DayIndex {
	return DayIndexForMillis(t.UnixMilli(), cfg)
}

// =============================================================================
// DAY INDEX -> WINDOW BOUNDS
// =============================================================================

// WindowStart returns the first epoch-millis instant of the logical day.
// Single-pass offset approximation near DST boundaries, see file header.
func WindowStart(day DayIndex, cfg Config) int64 {
	local := int64(day)*millisPerDay + int64(cfg.RolloverHour())*millisPerHour
	offset := offsetMillis(cfg.Location(), local)
	return local - offset
}

// WindowEnd returns the last epoch-millis instant of the logical day,
// defined as the instant before the next day starts.
func WindowEnd(day DayIndex, cfg Config) int64 {
	return WindowStart(day.PlusDays(1), cfg) - 1
}

// BuildWindow materializes the full DayWindow record. Pure function of its
// arguments; see cache.go for the memoizing layer.
func BuildWindow(day DayIndex, cfg Config) DayWindow {
	start := WindowStart(day, cfg)
	end := WindowEnd(day, cfg)

	// The window opens at rolloverHour local time, so the calendar fields
	// of the opening instant are the logical day's calendar date.
	local := time.UnixMilli(start).In(cfg.Location())

	return DayWindow{
		Index:        day,
		Zone:         cfg.Zone(),
		RolloverHour: cfg.RolloverHour(),
		Start:        start,
		End:          end,
		Duration:     end - start + 1,
		DayOfWeek:    local.Weekday(),
		DayOfMonth:   local.Day(),
		DayOfYear:    local.YearDay(),
		DayName:      local.Weekday().String(),
		cfg:          cfg,
	}
}

// =============================================================================
// HELPERS
// =============================================================================

// offsetMillis returns the zone's UTC offset at the given instant.
func offsetMillis(loc *time.Location, epochMillis int64) int64 {
	_, offsetSeconds := time.UnixMilli(epochMillis).In(loc).Zone()
	return int64(offsetSeconds) * 1000
}

// floorDiv divides with floor semantics, not truncation. Instants before
// the epoch must map to negative day numbers, not day zero.
func floorDiv(a, b int64) int64 {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}
