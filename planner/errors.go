/*
errors.go - Centralized error types for the planner engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  The surrounding application should wrap these with additional context.

ERROR CATEGORIES:
  1. Configuration errors - Invalid rollover hour, nil timezone
  2. Validation errors - Malformed anchors and cadences
  3. Unsupported-feature errors - Deliberate placeholder boundaries
  4. Store errors - Duplicate instances, missing records

USAGE:
  Callers distinguish categories with errors.Is:

    if planner.IsUnsupported(err) {
        // feature doesn't exist yet, not a bad input
    }

SEE ALSO:
  - anchor.go, cadence.go: Produce validation and unsupported errors
  - materializer.go: Maps a duplicate-create conflict back to idempotence
*/
package planner

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrUnsupportedFeature is returned for deliberately unimplemented
	// calendar semantics (MONTH/YEAR cadence, non-daily anchors). This is
	// a placeholder boundary, distinct from invalid input.
	ErrUnsupportedFeature = errors.New("feature not implemented")

	// ErrInvalidAnchor is returned when an anchor is missing required
	// fields for its kind, or a field is out of range.
	ErrInvalidAnchor = errors.New("invalid anchor")

	// ErrInvalidCadence is returned when a cadence has a non-positive
	// amount or an unknown unit.
	ErrInvalidCadence = errors.New("invalid cadence")

	// ErrInvalidRolloverHour is returned at Config construction when the
	// rollover hour is outside 0-23.
	ErrInvalidRolloverHour = errors.New("rollover hour must be in 0..23")

	// ErrNilLocation is returned at Config construction when no timezone
	// is provided.
	ErrNilLocation = errors.New("timezone location is required")

	// ErrMissingDefinitionKey is returned when materialization is asked to
	// process a definition without a key. Malformed input, never skipped
	// silently.
	ErrMissingDefinitionKey = errors.New("quest definition has no key")

	// ErrMissingRuleKey is returned when a supplied rule has no key.
	ErrMissingRuleKey = errors.New("recurrence rule has no key")

	// ErrDuplicateLiveQuest is returned by a LiveQuestStore when a create
	// collides with the (dayNum, liveKey) uniqueness constraint. The
	// materializer treats it as "already exists" and returns the existing
	// record.
	ErrDuplicateLiveQuest = errors.New("live quest already exists for day and live key")

	// ErrDefinitionNotFound is returned when a referenced definition
	// doesn't exist.
	ErrDefinitionNotFound = errors.New("quest definition not found")

	// ErrLiveQuestNotFound is returned when a referenced live instance
	// doesn't exist.
	ErrLiveQuestNotFound = errors.New("live quest not found")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// UnsupportedError identifies which placeholder feature was hit.
type UnsupportedError struct {
	Feature string // e.g. "cadence unit month", "weekly anchor"
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("%s: %s", ErrUnsupportedFeature.Error(), e.Feature)
}

func (e *UnsupportedError) Unwrap() error { return ErrUnsupportedFeature }

// InvalidAnchorError reports which field of an anchor failed validation.
type InvalidAnchorError struct {
	Kind  AnchorKind
	Field string
	Why   string
}

func (e *InvalidAnchorError) Error() string {
	return fmt.Sprintf("invalid %s anchor: %s %s", e.Kind, e.Field, e.Why)
}

func (e *InvalidAnchorError) Unwrap() error { return ErrInvalidAnchor }

// InvalidCadenceError reports why a cadence failed validation.
type InvalidCadenceError struct {
	Cadence Cadence
	Why     string
}

func (e *InvalidCadenceError) Error() string {
	return fmt.Sprintf("invalid cadence {%d %s}: %s", e.Cadence.Amount, e.Cadence.Unit, e.Why)
}

func (e *InvalidCadenceError) Unwrap() error { return ErrInvalidCadence }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsUnsupported returns true if the error marks a deliberately
// unimplemented feature rather than invalid input.
func IsUnsupported(err error) bool {
	return errors.Is(err, ErrUnsupportedFeature)
}

// IsClientError returns true if the error is due to invalid caller input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidAnchor) ||
		errors.Is(err, ErrInvalidCadence) ||
		errors.Is(err, ErrInvalidRolloverHour) ||
		errors.Is(err, ErrMissingDefinitionKey) ||
		errors.Is(err, ErrMissingRuleKey)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrDefinitionNotFound) ||
		errors.Is(err, ErrLiveQuestNotFound)
}
