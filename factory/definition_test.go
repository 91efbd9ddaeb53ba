package factory_test

import (
	"errors"
	"testing"

	"github.com/warp/quest-engine/factory"
	"github.com/warp/quest-engine/planner"
)

const workoutJSON = `{
	"id": "morning-workout",
	"name": "Morning workout",
	"owner": "user-1",
	"tags": ["health", "habit"],
	"priority": "high",
	"grace_minutes": 30,
	"rules": [
		{
			"id": "daily",
			"cadence": {"amount": 1, "unit": "day"},
			"anchor": {"kind": "daily", "hour": 9, "minute": 30}
		}
	]
}`

func TestParseDefinition_FullRoundTrip(t *testing.T) {
	f := factory.NewDefinitionFactory()

	def, err := f.ParseDefinition(workoutJSON)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	if def.ID != "morning-workout" || def.Owner != "user-1" {
		t.Errorf("identity: got %s/%s", def.ID, def.Owner)
	}
	if def.Priority != planner.PriorityHigh {
		t.Errorf("priority: got %s", def.Priority)
	}
	if def.DefaultGraceMinutes != 30 {
		t.Errorf("grace: got %d", def.DefaultGraceMinutes)
	}
	if !def.Active {
		t.Error("active should default to true")
	}
	if len(def.Rules) != 1 {
		t.Fatalf("rules: got %d", len(def.Rules))
	}

	rule := def.Rules[0]
	if !rule.Active || !rule.AutoMaterialize {
		t.Error("rule booleans should default to true")
	}
	if rule.Cadence != planner.NewCadence(1, planner.UnitDay) {
		t.Errorf("cadence: got %+v", rule.Cadence)
	}
	if rule.Anchor == nil || rule.Anchor.Kind != planner.AnchorDaily || *rule.Anchor.Hour != 9 || *rule.Anchor.Minute != 30 {
		t.Errorf("anchor: got %+v", rule.Anchor)
	}

	// And back out again through the JSON form.
	marshaled, err := f.MarshalDefinition(def)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	reparsed, err := f.ParseDefinition(marshaled)
	if err != nil {
		t.Fatalf("reparse: %v", err)
	}
	if reparsed.Rules[0].Cadence != rule.Cadence {
		t.Error("cadence lost in round trip")
	}
}

func TestParseDefinition_MissingIDRejected(t *testing.T) {
	f := factory.NewDefinitionFactory()
	_, err := f.ParseDefinition(`{"name": "nameless"}`)
	if !errors.Is(err, planner.ErrMissingDefinitionKey) {
		t.Errorf("got %v, want missing-definition-key", err)
	}
}

func TestParseDefinition_RuleWithoutIDRejected(t *testing.T) {
	f := factory.NewDefinitionFactory()
	_, err := f.ParseDefinition(`{"id": "d", "rules": [{"cadence": {"amount": 1, "unit": "day"}}]}`)
	if !errors.Is(err, planner.ErrMissingRuleKey) {
		t.Errorf("got %v, want missing-rule-key", err)
	}
}

func TestParseDefinition_InvalidCadenceRejected(t *testing.T) {
	f := factory.NewDefinitionFactory()
	_, err := f.ParseDefinition(`{"id": "d", "rules": [{"id": "r", "cadence": {"amount": 0, "unit": "day"}}]}`)
	if !errors.Is(err, planner.ErrInvalidCadence) {
		t.Errorf("got %v, want invalid-cadence", err)
	}
}

func TestParseDefinition_InvalidAnchorRejected(t *testing.T) {
	f := factory.NewDefinitionFactory()
	_, err := f.ParseDefinition(`{"id": "d", "rules": [{"id": "r",
		"cadence": {"amount": 1, "unit": "day"},
		"anchor": {"kind": "daily", "hour": 9}}]}`)
	if !errors.Is(err, planner.ErrInvalidAnchor) {
		t.Errorf("got %v, want invalid-anchor", err)
	}
}

func TestParseDefinition_MonthCadenceIsValidData(t *testing.T) {
	// MONTH cadence is storable configuration; only application rejects
	// it. The factory must accept it.

	f := factory.NewDefinitionFactory()
	def, err := f.ParseDefinition(`{"id": "d", "rules": [{"id": "r",
		"cadence": {"amount": 1, "unit": "month"}}]}`)
	if err != nil {
		t.Fatalf("month cadence should parse: %v", err)
	}
	if def.Rules[0].Cadence.Unit != planner.UnitMonth {
		t.Errorf("unit: got %s", def.Rules[0].Cadence.Unit)
	}
}

func TestParseDefinition_UnknownPriorityDefaultsToNormal(t *testing.T) {
	f := factory.NewDefinitionFactory()
	def, err := f.ParseDefinition(`{"id": "d", "priority": "legendary"}`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if def.Priority != planner.PriorityNormal {
		t.Errorf("priority: got %s, want normal", def.Priority)
	}
}

func TestParseDefinition_ActiveRangeParsed(t *testing.T) {
	f := factory.NewDefinitionFactory()
	def, err := f.ParseDefinition(`{"id": "d", "rules": [{"id": "r",
		"cadence": {"amount": 1, "unit": "day"},
		"active_from": 100, "active_until": 200}]}`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	rule := def.Rules[0]
	if rule.ActiveFrom == nil || *rule.ActiveFrom != planner.DayIndexOf(100) {
		t.Errorf("active_from: got %v", rule.ActiveFrom)
	}
	if rule.ActiveUntil == nil || *rule.ActiveUntil != planner.DayIndexOf(200) {
		t.Errorf("active_until: got %v", rule.ActiveUntil)
	}
	if rule.ActiveOn(planner.DayIndexOf(99)) || !rule.ActiveOn(planner.DayIndexOf(150)) || rule.ActiveOn(planner.DayIndexOf(201)) {
		t.Error("active range not honored")
	}
}
