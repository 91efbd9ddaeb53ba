/*
store.go - Collaborator interfaces consumed by the planner core

PURPOSE:
  Defines the boundary between the scheduling logic and the surrounding
  application. The core performs no I/O of its own; everything durable
  goes through these interfaces.

UNIQUENESS CONTRACT:
  The core uses a "read existing, else create" pattern with no locking of
  its own. Two concurrent EnsureInstance calls for the same (day, liveKey)
  can both reach CreateLiveQuest; the store MUST enforce a uniqueness
  constraint on (dayNum, liveKey) and report the collision as
  ErrDuplicateLiveQuest so the race collapses into idempotence.

KEY SCHEME:
  Implementations persist under the hierarchical string namespace from
  types.go: dy/{dayNum}/lv/{liveKey} for live instances and
  dy/{dayNum}/{dn|fld|cncl|skp}/{liveKey} for history records.

IMPLEMENTATIONS:
  - store/sqlite: Production store (unique indexes, WAL)
  - planner/store: In-memory store for tests and dev
*/
package planner

import "context"

// QuestDefinitionSource yields the definition templates visible to a user.
type QuestDefinitionSource interface {
	FindDefinitionsForUser(ctx context.Context, user UserKey) ([]*QuestDefinition, error)
}

// LiveQuestStore persists materialized instances.
type LiveQuestStore interface {
	// FindByDayAndLiveKey returns the live instance for (day, liveKey), or
	// (nil, nil) when none exists.
	FindByDayAndLiveKey(ctx context.Context, day DayIndex, liveKey string) (*LiveQuest, error)

	// CreateLiveQuest creates a new instance seeded with day, lineage,
	// deadline and skip flag. Must return ErrDuplicateLiveQuest when the
	// (dayNum, liveKey) uniqueness constraint is violated.
	CreateLiveQuest(ctx context.Context, day DayWindow, def *QuestDefinition, rule *RecurrenceRule, deadlineMillis int64, skip bool) (*LiveQuest, error)

	// Save persists field updates to an existing instance.
	Save(ctx context.Context, q *LiveQuest) (*LiveQuest, error)
}

// RolloverStore is the sweep-side persistence surface.
type RolloverStore interface {
	// FindActiveLiveQuests enumerates the live instances of one day.
	FindActiveLiveQuests(ctx context.Context, day DayIndex) ([]*LiveQuest, error)

	// CreateFailureRecord writes an immutable failed-history record
	// snapshotting the quest's lineage.
	CreateFailureRecord(ctx context.Context, q *LiveQuest, day DayWindow, reason string) (*QuestRecord, error)

	// DeleteLiveQuest removes a live instance that has been failed over.
	DeleteLiveQuest(ctx context.Context, q *LiveQuest) error
}

// ScheduleTemplateService decides whether a (day, definition, rule)
// materialization should be marked skipped.
type ScheduleTemplateService interface {
	ShouldSkip(ctx context.Context, day DayWindow, def *QuestDefinition, rule *RecurrenceRule) (bool, error)
}

// NoopTemplates is the ScheduleTemplateService for deployments without
// schedule templates: nothing is ever skipped.
type NoopTemplates struct{}

func (NoopTemplates) ShouldSkip(context.Context, DayWindow, *QuestDefinition, *RecurrenceRule) (bool, error) {
	return false, nil
}
