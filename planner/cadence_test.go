package planner_test

import (
	"errors"
	"testing"

	"github.com/warp/quest-engine/planner"
)

func TestApplyCadence_Days(t *testing.T) {
	got, err := planner.ApplyCadence(planner.DayIndexOf(10), planner.NewCadence(3, planner.UnitDay), 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != planner.DayIndexOf(16) {
		t.Errorf("got %v, want day-16", got)
	}
}

func TestApplyCadence_Weeks(t *testing.T) {
	// GIVEN: base day 10, cadence "every 2 weeks", applied once
	// THEN: 10 + 2*7 = 24

	got, err := planner.ApplyCadence(planner.DayIndexOf(10), planner.NewCadence(2, planner.UnitWeek), 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != planner.DayIndexOf(24) {
		t.Errorf("got %v, want day-24", got)
	}
}

func TestApplyCadence_ZeroTimesIsNoOp(t *testing.T) {
	// times == 0 short-circuits before validation: no error even for a
	// cadence that could not be applied.

	got, err := planner.ApplyCadence(planner.DayIndexOf(7), planner.NewCadence(1, planner.UnitMonth), 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != planner.DayIndexOf(7) {
		t.Errorf("got %v, want base unchanged", got)
	}
}

func TestApplyCadence_MonthAndYearUnsupported(t *testing.T) {
	for _, unit := range []planner.CadenceUnit{planner.UnitMonth, planner.UnitYear} {
		_, err := planner.ApplyCadence(planner.DayIndexOf(0), planner.NewCadence(1, unit), 1)
		if !planner.IsUnsupported(err) {
			t.Errorf("unit %s: got %v, want unsupported-feature error", unit, err)
		}
		// Unsupported is not a client/validation error.
		if planner.IsClientError(err) {
			t.Errorf("unit %s: unsupported error misclassified as client error", unit)
		}
	}
}

func TestApplyCadence_InvalidCadence(t *testing.T) {
	cases := []planner.Cadence{
		{Amount: 0, Unit: planner.UnitDay},
		{Amount: -1, Unit: planner.UnitWeek},
		{Amount: 1, Unit: ""},
		{Amount: 1, Unit: "fortnight"},
	}
	for _, c := range cases {
		_, err := planner.ApplyCadence(planner.DayIndexOf(0), c, 1)
		if !errors.Is(err, planner.ErrInvalidCadence) {
			t.Errorf("cadence %+v: got %v, want invalid-cadence error", c, err)
		}
	}
}

func TestApplyCadence_NegativeTimesWalksBackwards(t *testing.T) {
	got, err := planner.ApplyCadence(planner.DayIndexOf(10), planner.NewCadence(1, planner.UnitWeek), -1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != planner.DayIndexOf(3) {
		t.Errorf("got %v, want day-3", got)
	}
}
