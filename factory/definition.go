/*
Package factory provides JSON to Go quest-definition conversion.

PURPOSE:
  Converts JSON quest definitions into planner.QuestDefinition objects.
  This enables definition configuration without code changes - definitions
  live in the database as JSON and round-trip through the admin API.

JSON SCHEMA:
  {
    "id": "morning-workout",
    "name": "Morning workout",
    "owner": "user-1",
    "tags": ["health"],
    "priority": "high",
    "grace_minutes": 30,
    "rules": [
      {
        "id": "daily",
        "cadence": {"amount": 1, "unit": "day"},
        "anchor": {"kind": "daily", "hour": 9, "minute": 30},
        "active": true,
        "auto_materialize": true
      }
    ]
  }

KEY FEATURES:
  - Validates structure at the boundary, fail fast
  - Anchors and cadences are checked with the planner's own validators
  - Booleans default to true so terse configs do the expected thing

USAGE:
  f := factory.NewDefinitionFactory()
  def, err := f.ParseDefinition(jsonString)

SEE ALSO:
  - planner/types.go: Domain types this factory produces
  - store/sqlite: Persists the JSON form
*/
package factory

import (
	"encoding/json"
	"fmt"

	"github.com/warp/quest-engine/planner"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// DefinitionJSON is the JSON representation of a quest definition.
type DefinitionJSON struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Owner        string     `json:"owner,omitempty"`
	Tags         []string   `json:"tags,omitempty"`
	Priority     string     `json:"priority,omitempty"`
	GraceMinutes int        `json:"grace_minutes,omitempty"`
	AlarmMinutes int        `json:"alarm_minutes,omitempty"`
	Active       *bool      `json:"active,omitempty"` // default true
	Rules        []RuleJSON `json:"rules,omitempty"`
}

// RuleJSON is the JSON representation of a recurrence rule.
type RuleJSON struct {
	ID              string      `json:"id"`
	Cadence         CadenceJSON `json:"cadence"`
	Anchor          *AnchorJSON `json:"anchor,omitempty"`
	Active          *bool       `json:"active,omitempty"`           // default true
	AutoMaterialize *bool       `json:"auto_materialize,omitempty"` // default true
	ActiveFrom      *int64      `json:"active_from,omitempty"`      // day number
	ActiveUntil     *int64      `json:"active_until,omitempty"`
}

type CadenceJSON struct {
	Amount int    `json:"amount"`
	Unit   string `json:"unit"`
}

type AnchorJSON struct {
	Kind       string `json:"kind"`
	Hour       *int   `json:"hour,omitempty"`
	Minute     *int   `json:"minute,omitempty"`
	DayOfWeek  *int   `json:"day_of_week,omitempty"`
	DayOfMonth *int   `json:"day_of_month,omitempty"`
	DayOfYear  *int   `json:"day_of_year,omitempty"`
}

// =============================================================================
// DEFINITION FACTORY
// =============================================================================

// DefinitionFactory converts JSON definitions to domain structs and back.
type DefinitionFactory struct{}

func NewDefinitionFactory() *DefinitionFactory {
	return &DefinitionFactory{}
}

// ParseDefinition parses and validates a JSON string.
func (f *DefinitionFactory) ParseDefinition(jsonStr string) (*planner.QuestDefinition, error) {
	var dj DefinitionJSON
	if err := json.Unmarshal([]byte(jsonStr), &dj); err != nil {
		return nil, fmt.Errorf("failed to parse definition JSON: %w", err)
	}
	return f.FromJSON(dj)
}

// FromJSON converts DefinitionJSON to a validated planner.QuestDefinition.
func (f *DefinitionFactory) FromJSON(dj DefinitionJSON) (*planner.QuestDefinition, error) {
	if dj.ID == "" {
		return nil, fmt.Errorf("definition: %w", planner.ErrMissingDefinitionKey)
	}

	def := &planner.QuestDefinition{
		ID:                  planner.DefinitionID(dj.ID),
		Owner:               planner.UserKey(dj.Owner),
		Name:                dj.Name,
		Tags:                dj.Tags,
		Priority:            parsePriority(dj.Priority),
		DefaultGraceMinutes: dj.GraceMinutes,
		DefaultAlarmMinutes: dj.AlarmMinutes,
		Active:              boolOr(dj.Active, true),
	}

	for i, rj := range dj.Rules {
		rule, err := f.ruleFromJSON(rj)
		if err != nil {
			return nil, fmt.Errorf("definition %s rule %d: %w", dj.ID, i, err)
		}
		def.Rules = append(def.Rules, *rule)
	}
	return def, nil
}

func (f *DefinitionFactory) ruleFromJSON(rj RuleJSON) (*planner.RecurrenceRule, error) {
	if rj.ID == "" {
		return nil, planner.ErrMissingRuleKey
	}

	cadence := planner.NewCadence(rj.Cadence.Amount, planner.CadenceUnit(rj.Cadence.Unit))
	if err := planner.ValidateCadence(cadence); err != nil {
		return nil, err
	}

	rule := &planner.RecurrenceRule{
		ID:              planner.RuleID(rj.ID),
		Cadence:         cadence,
		Active:          boolOr(rj.Active, true),
		AutoMaterialize: boolOr(rj.AutoMaterialize, true),
	}

	if rj.Anchor != nil {
		anchor := planner.Anchor{
			Kind:       planner.AnchorKind(rj.Anchor.Kind),
			Hour:       rj.Anchor.Hour,
			Minute:     rj.Anchor.Minute,
			DayOfWeek:  rj.Anchor.DayOfWeek,
			DayOfMonth: rj.Anchor.DayOfMonth,
			DayOfYear:  rj.Anchor.DayOfYear,
		}
		if err := planner.ValidateAnchor(anchor); err != nil {
			return nil, err
		}
		rule.Anchor = &anchor
	}

	if rj.ActiveFrom != nil {
		from := planner.DayIndexOf(*rj.ActiveFrom)
		rule.ActiveFrom = &from
	}
	if rj.ActiveUntil != nil {
		until := planner.DayIndexOf(*rj.ActiveUntil)
		rule.ActiveUntil = &until
	}
	return rule, nil
}

// ToJSON converts a domain definition back to its JSON form.
func (f *DefinitionFactory) ToJSON(def *planner.QuestDefinition) DefinitionJSON {
	dj := DefinitionJSON{
		ID:           string(def.ID),
		Name:         def.Name,
		Owner:        string(def.Owner),
		Tags:         def.Tags,
		Priority:     string(def.Priority),
		GraceMinutes: def.DefaultGraceMinutes,
		AlarmMinutes: def.DefaultAlarmMinutes,
		Active:       boolPtr(def.Active),
	}
	for _, rule := range def.Rules {
		rj := RuleJSON{
			ID:              string(rule.ID),
			Cadence:         CadenceJSON{Amount: rule.Cadence.Amount, Unit: string(rule.Cadence.Unit)},
			Active:          boolPtr(rule.Active),
			AutoMaterialize: boolPtr(rule.AutoMaterialize),
		}
		if rule.Anchor != nil {
			rj.Anchor = &AnchorJSON{
				Kind:       string(rule.Anchor.Kind),
				Hour:       rule.Anchor.Hour,
				Minute:     rule.Anchor.Minute,
				DayOfWeek:  rule.Anchor.DayOfWeek,
				DayOfMonth: rule.Anchor.DayOfMonth,
				DayOfYear:  rule.Anchor.DayOfYear,
			}
		}
		if rule.ActiveFrom != nil {
			from := rule.ActiveFrom.Int64()
			rj.ActiveFrom = &from
		}
		if rule.ActiveUntil != nil {
			until := rule.ActiveUntil.Int64()
			rj.ActiveUntil = &until
		}
		dj.Rules = append(dj.Rules, rj)
	}
	return dj
}

// MarshalDefinition serializes the definition for database storage.
func (f *DefinitionFactory) MarshalDefinition(def *planner.QuestDefinition) (string, error) {
	b, err := json.Marshal(f.ToJSON(def))
	if err != nil {
		return "", fmt.Errorf("failed to marshal definition %s: %w", def.ID, err)
	}
	return string(b), nil
}

// =============================================================================
// HELPERS
// =============================================================================

func parsePriority(s string) planner.Priority {
	switch planner.Priority(s) {
	case planner.PriorityLow, planner.PriorityNormal, planner.PriorityHigh, planner.PriorityCritical:
		return planner.Priority(s)
	default:
		return planner.PriorityNormal
	}
}

func boolOr(b *bool, def bool) bool {
	if b == nil {
		return def
	}
	return *b
}

func boolPtr(b bool) *bool { return &b }
