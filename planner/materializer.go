/*
materializer.go - Idempotent creation of live quest instances

PURPOSE:
  Given a day window, a quest definition, and (optionally) one of its
  recurrence rules, produce exactly one live instance for that
  (day, liveKey) pair. Calling EnsureInstance any number of times yields
  the same instance; this idempotence is the load-bearing invariant of
  the subsystem.

SHORT-CIRCUITS (evaluated in order, first match wins):
  1. definition inactive        -> no instance, no error
  2. rule present but inactive  -> no instance, no error
  3. rule present but not auto  -> no instance, no error

RACE HANDLING:
  The lookup-then-create window is closed by the store's uniqueness
  constraint: a duplicate-create conflict is mapped to "already exists"
  and the existing record is returned.
*/
package planner

import (
	"context"
	"errors"
	"fmt"
)

// QuestMaterializer idempotently produces live instances.
type QuestMaterializer struct {
	Quests LiveQuestStore
}

func NewQuestMaterializer(quests LiveQuestStore) *QuestMaterializer {
	return &QuestMaterializer{Quests: quests}
}

// EnsureInstance returns the live instance for (day, definition[, rule]),
// creating it if needed. Returns (nil, nil) when a short-circuit
// condition applies. Malformed input (definition or rule without a key)
// is an argument error, never a silent skip.
func (m *QuestMaterializer) EnsureInstance(ctx context.Context, day DayWindow, def *QuestDefinition, rule *RecurrenceRule, skip bool) (*LiveQuest, error) {
	if def == nil || def.ID == "" {
		return nil, ErrMissingDefinitionKey
	}
	if rule != nil && rule.ID == "" {
		return nil, fmt.Errorf("definition %s: %w", def.ID, ErrMissingRuleKey)
	}

	if !def.Active {
		return nil, nil
	}
	if rule != nil && !rule.Active {
		return nil, nil
	}
	if rule != nil && !rule.AutoMaterialize {
		return nil, nil
	}

	var ruleID RuleID
	if rule != nil {
		ruleID = rule.ID
	}
	liveKey := MakeLiveKey(def.ID, ruleID)

	existing, err := m.Quests.FindByDayAndLiveKey(ctx, day.Index, liveKey)
	if err != nil {
		return nil, fmt.Errorf("lookup %s: %w", LiveQuestKey(day.Index, liveKey), err)
	}
	if existing != nil {
		return existing, nil
	}

	var deadline int64
	if rule != nil && rule.Anchor != nil {
		deadline, err = Deadline(day, *rule.Anchor)
		if err != nil {
			return nil, fmt.Errorf("resolve deadline for %s: %w", liveKey, err)
		}
	}

	created, err := m.Quests.CreateLiveQuest(ctx, day, def, rule, deadline, skip)
	if errors.Is(err, ErrDuplicateLiveQuest) {
		// Lost the check-then-create race; the winner's record is ours.
		return m.Quests.FindByDayAndLiveKey(ctx, day.Index, liveKey)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", LiveQuestKey(day.Index, liveKey), err)
	}

	m.backfill(created, day, def, ruleID, liveKey, deadline, skip)
	return m.Quests.Save(ctx, created)
}

// backfill sets the fields the storage collaborator may have left unset
// so every returned instance is fully populated regardless of store
// behavior. Derived keys are assigned from the canonical computation.
func (m *QuestMaterializer) backfill(q *LiveQuest, day DayWindow, def *QuestDefinition, ruleID RuleID, liveKey string, deadline int64, skip bool) {
	q.LiveKey = liveKey
	q.Key = LiveQuestKey(day.Index, liveKey)
	q.ParentDayKey = DayKey(day.Index)
	q.DayNum = day.Index
	q.DefinitionKey = def.ID
	q.RuleKey = ruleID
	if q.Status == "" {
		q.Status = StatusActive
	}
	if q.Deadline == 0 {
		q.Deadline = deadline
	}
	q.Skip = skip
	if q.CreatedAt == 0 {
		q.CreatedAt = nowMillis()
	}
	q.UpdatedAt = nowMillis()
}
