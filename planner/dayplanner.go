/*
dayplanner.go - Per-day materialization driver

PURPOSE:
  Iterates all active (definition x rule) pairs visible to a user and
  drives the materializer for each, consulting the schedule-template
  collaborator for skip decisions.

GUARANTEES:
  The iteration order over definitions and rules is unspecified; only the
  resulting set of liveKeys is deterministic. Definitions with no rules
  are intentionally skipped here; they require explicit instantiation by
  the surrounding application.
*/
package planner

import (
	"context"
	"fmt"
	"time"
)

// DayPlanner materializes the full instance set of one logical day.
type DayPlanner struct {
	Definitions  QuestDefinitionSource
	Templates    ScheduleTemplateService
	Materializer *QuestMaterializer
	Windows      WindowCache
	Config       Config

	// Now is the clock used by the convenience variants. Defaults to
	// time.Now.
	Now func() time.Time
}

// NewDayPlanner wires a planner. Templates may be nil; skip decisions then
// default to "never skip".
func NewDayPlanner(defs QuestDefinitionSource, templates ScheduleTemplateService, quests LiveQuestStore, windows WindowCache, cfg Config) (*DayPlanner, error) {
	if defs == nil {
		return nil, fmt.Errorf("day planner: definition source is required")
	}
	if quests == nil {
		return nil, fmt.Errorf("day planner: live quest store is required")
	}
	if cfg.IsZero() {
		return nil, fmt.Errorf("day planner: config is required")
	}
	if templates == nil {
		templates = NoopTemplates{}
	}
	if windows == nil {
		windows = NewWindowCache()
	}
	return &DayPlanner{
		Definitions:  defs,
		Templates:    templates,
		Materializer: NewQuestMaterializer(quests),
		Windows:      windows,
		Config:       cfg,
		Now:          time.Now,
	}, nil
}

// EnsureDay materializes every due (definition x rule) instance for the
// user on the given day and returns the non-nil results.
func (p *DayPlanner) EnsureDay(ctx context.Context, user UserKey, day DayWindow) ([]*LiveQuest, error) {
	defs, err := p.Definitions.FindDefinitionsForUser(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("list definitions for %s: %w", user, err)
	}

	var out []*LiveQuest
	for _, def := range defs {
		if def == nil || !def.Active || len(def.Rules) == 0 {
			continue
		}
		for i := range def.Rules {
			rule := &def.Rules[i]
			if !rule.Active || !rule.AutoMaterialize {
				continue
			}
			if !rule.ActiveOn(day.Index) {
				continue
			}

			skip, err := p.Templates.ShouldSkip(ctx, day, def, rule)
			if err != nil {
				return nil, fmt.Errorf("skip decision for %s: %w", MakeLiveKey(def.ID, rule.ID), err)
			}

			q, err := p.Materializer.EnsureInstance(ctx, day, def, rule, skip)
			if err != nil {
				return nil, err
			}
			if q != nil {
				out = append(out, q)
			}
		}
	}
	return out, nil
}

// EnsureToday resolves "today" via the planner's configuration and clock,
// then funnels into EnsureDay.
func (p *DayPlanner) EnsureToday(ctx context.Context, user UserKey) ([]*LiveQuest, error) {
	return p.EnsureDayAt(ctx, user, p.now(), p.Config)
}

// EnsureDayAt resolves the logical day of an arbitrary instant under an
// explicit configuration override, then funnels into EnsureDay.
func (p *DayPlanner) EnsureDayAt(ctx context.Context, user UserKey, at time.Time, cfg Config) ([]*LiveQuest, error) {
	if cfg.IsZero() {
		cfg = p.Config
	}
	day := DayIndexAt(at, cfg)
	return p.EnsureDay(ctx, user, p.Windows.GetOrCreate(day, cfg))
}

func (p *DayPlanner) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}
