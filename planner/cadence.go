package planner

// =============================================================================
// DURATION APPLIER - Advance a day index by a cadence
// =============================================================================

// ValidateCadence rejects cadences with a non-positive amount or an
// unknown unit. MONTH/YEAR units pass validation; they are valid data that
// ApplyCadence cannot yet act on.
func ValidateCadence(c Cadence) error {
	if c.Amount <= 0 {
		return &InvalidCadenceError{Cadence: c, Why: "amount must be positive"}
	}
	switch c.Unit {
	case UnitDay, UnitWeek, UnitMonth, UnitYear:
		return nil
	case "":
		return &InvalidCadenceError{Cadence: c, Why: "unit is required"}
	default:
		return &InvalidCadenceError{Cadence: c, Why: "unknown unit"}
	}
}

// ApplyCadence advances base by the cadence applied `times` times.
//
// DAY and WEEK are exact integer arithmetic on the flat day index.
// MONTH and YEAR require calendar-date semantics the day index does not
// model; they fail with a typed unsupported error rather than an
// approximation.
func ApplyCadence(base DayIndex, c Cadence, times int) (DayIndex, error) {
	if times == 0 {
		// Short-circuit, not an error: zero applications is a no-op.
		return base, nil
	}
	if err := ValidateCadence(c); err != nil {
		return base, err
	}

	switch c.Unit {
	case UnitDay:
		return base.PlusDays(int64(c.Amount) * int64(times)), nil
	case UnitWeek:
		return base.PlusDays(int64(c.Amount) * int64(times) * 7), nil
	case UnitMonth:
		return base, &UnsupportedError{Feature: "cadence unit month"}
	case UnitYear:
		return base, &UnsupportedError{Feature: "cadence unit year"}
	default:
		return base, &InvalidCadenceError{Cadence: c, Why: "unknown unit"}
	}
}
