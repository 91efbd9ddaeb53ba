/*
anchor.go - Anchor validation and deadline resolution

PURPOSE:
  Validates anchor specifications and computes the absolute deadline
  timestamp of an anchor inside one day window.

SUPPORT MATRIX:
  DAILY:                      implemented
  WEEKLY / MONTHLY / YEARLY:  typed unsupported error; period-relative
                              calendar semantics are not yet defined and
                              must not be inferred here

DST ANOMALY:
  On DST-irregular days a computed deadline can fall slightly outside the
  nominal window span. That is logged and the computed value is returned
  unchanged; callers must tolerate it.
*/
package planner

import "log"

// =============================================================================
// VALIDATION
// =============================================================================

// ValidateAnchor fails when required fields for the anchor's kind are
// missing or out of range. Every kind requires hour and minute; WEEKLY
// additionally requires dayOfWeek, MONTHLY dayOfMonth, YEARLY dayOfYear.
func ValidateAnchor(a Anchor) error {
	switch a.Kind {
	case AnchorDaily, AnchorWeekly, AnchorMonthly, AnchorYearly:
	case "":
		return &InvalidAnchorError{Kind: a.Kind, Field: "kind", Why: "is required"}
	default:
		return &InvalidAnchorError{Kind: a.Kind, Field: "kind", Why: "is unknown"}
	}

	if a.Hour == nil {
		return &InvalidAnchorError{Kind: a.Kind, Field: "hour", Why: "is required"}
	}
	if *a.Hour < 0 || *a.Hour > 23 {
		return &InvalidAnchorError{Kind: a.Kind, Field: "hour", Why: "must be in 0..23"}
	}
	if a.Minute == nil {
		return &InvalidAnchorError{Kind: a.Kind, Field: "minute", Why: "is required"}
	}
	if *a.Minute < 0 || *a.Minute > 59 {
		return &InvalidAnchorError{Kind: a.Kind, Field: "minute", Why: "must be in 0..59"}
	}

	switch a.Kind {
	case AnchorWeekly:
		if a.DayOfWeek == nil {
			return &InvalidAnchorError{Kind: a.Kind, Field: "dayOfWeek", Why: "is required"}
		}
		if *a.DayOfWeek < 0 || *a.DayOfWeek > 6 {
			return &InvalidAnchorError{Kind: a.Kind, Field: "dayOfWeek", Why: "must be in 0..6"}
		}
	case AnchorMonthly:
		if a.DayOfMonth == nil {
			return &InvalidAnchorError{Kind: a.Kind, Field: "dayOfMonth", Why: "is required"}
		}
		if *a.DayOfMonth < 1 || *a.DayOfMonth > 31 {
			return &InvalidAnchorError{Kind: a.Kind, Field: "dayOfMonth", Why: "must be in 1..31"}
		}
	case AnchorYearly:
		if a.DayOfYear == nil {
			return &InvalidAnchorError{Kind: a.Kind, Field: "dayOfYear", Why: "is required"}
		}
		if *a.DayOfYear < 1 || *a.DayOfYear > 366 {
			return &InvalidAnchorError{Kind: a.Kind, Field: "dayOfYear", Why: "must be in 1..366"}
		}
	}
	return nil
}

// =============================================================================
// DEADLINE RESOLUTION
// =============================================================================

// Deadline computes the absolute epoch-millis deadline of the anchor
// inside the given window.
func Deadline(w DayWindow, a Anchor) (int64, error) {
	if err := ValidateAnchor(a); err != nil {
		return 0, err
	}

	switch a.Kind {
	case AnchorDaily:
		deadline := w.Start + (int64(*a.Hour)*60+int64(*a.Minute))*millisPerMinute
		if !w.Contains(deadline) {
			// Only possible on DST-irregular days. Logged, not thrown;
			// the computed value still stands.
			log.Printf("[Anchor] deadline %d outside window %s [%d, %d] (zone %s)",
				deadline, w.Index, w.Start, w.End, w.Zone)
		}
		return deadline, nil
	case AnchorWeekly:
		return 0, &UnsupportedError{Feature: "weekly anchor"}
	case AnchorMonthly:
		return 0, &UnsupportedError{Feature: "monthly anchor"}
	case AnchorYearly:
		return 0, &UnsupportedError{Feature: "yearly anchor"}
	default:
		return 0, &InvalidAnchorError{Kind: a.Kind, Field: "kind", Why: "is unknown"}
	}
}
