// Package store provides in-memory implementations of the planner's
// collaborator interfaces, for tests and development.
package store

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/warp/quest-engine/planner"
)

// =============================================================================
// MEMORY STORE - Implements all collaborator interfaces
// =============================================================================

// Memory implements QuestDefinitionSource, LiveQuestStore, RolloverStore
// and ScheduleTemplateService. The (dayNum, liveKey) uniqueness contract
// is enforced the same way the production store does it, so the
// materializer's race handling is exercised identically.
type Memory struct {
	mu          sync.RWMutex
	definitions map[planner.UserKey][]*planner.QuestDefinition
	live        map[liveKey]*planner.LiveQuest
	records     map[string]*planner.QuestRecord // keyed by record key
	skips       map[skipKey]bool
}

type liveKey struct {
	Day planner.DayIndex
	Key string
}

type skipKey struct {
	Day  planner.DayIndex
	Def  planner.DefinitionID
	Rule planner.RuleID
}

func NewMemory() *Memory {
	return &Memory{
		definitions: make(map[planner.UserKey][]*planner.QuestDefinition),
		live:        make(map[liveKey]*planner.LiveQuest),
		records:     make(map[string]*planner.QuestRecord),
		skips:       make(map[skipKey]bool),
	}
}

// Compile-time interface checks.
var (
	_ planner.QuestDefinitionSource   = (*Memory)(nil)
	_ planner.LiveQuestStore          = (*Memory)(nil)
	_ planner.RolloverStore           = (*Memory)(nil)
	_ planner.ScheduleTemplateService = (*Memory)(nil)
)

// =============================================================================
// DEFINITION SOURCE
// =============================================================================

func (m *Memory) FindDefinitionsForUser(_ context.Context, user planner.UserKey) ([]*planner.QuestDefinition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*planner.QuestDefinition, len(m.definitions[user]))
	copy(out, m.definitions[user])
	return out, nil
}

// AddDefinition registers a definition for a user. Test helper.
func (m *Memory) AddDefinition(user planner.UserKey, def *planner.QuestDefinition) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.definitions[user] = append(m.definitions[user], def)
}

// =============================================================================
// LIVE QUEST STORE
// =============================================================================

func (m *Memory) FindByDayAndLiveKey(_ context.Context, day planner.DayIndex, key string) (*planner.LiveQuest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	q, ok := m.live[liveKey{Day: day, Key: key}]
	if !ok {
		return nil, nil
	}
	cp := *q
	return &cp, nil
}

func (m *Memory) CreateLiveQuest(_ context.Context, day planner.DayWindow, def *planner.QuestDefinition, rule *planner.RecurrenceRule, deadlineMillis int64, skip bool) (*planner.LiveQuest, error) {
	var ruleID planner.RuleID
	if rule != nil {
		ruleID = rule.ID
	}
	key := planner.MakeLiveKey(def.ID, ruleID)

	m.mu.Lock()
	defer m.mu.Unlock()

	k := liveKey{Day: day.Index, Key: key}
	if _, exists := m.live[k]; exists {
		return nil, planner.ErrDuplicateLiveQuest
	}

	q := &planner.LiveQuest{
		Key:           planner.LiveQuestKey(day.Index, key),
		ParentDayKey:  planner.DayKey(day.Index),
		DayNum:        day.Index,
		LiveKey:       key,
		DefinitionKey: def.ID,
		RuleKey:       ruleID,
		Deadline:      deadlineMillis,
		Status:        planner.StatusActive,
		Skip:          skip,
	}
	m.live[k] = q
	cp := *q
	return &cp, nil
}

func (m *Memory) Save(_ context.Context, q *planner.LiveQuest) (*planner.LiveQuest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *q
	m.live[liveKey{Day: q.DayNum, Key: q.LiveKey}] = &cp
	out := cp
	return &out, nil
}

// =============================================================================
// ROLLOVER STORE
// =============================================================================

func (m *Memory) FindActiveLiveQuests(_ context.Context, day planner.DayIndex) ([]*planner.LiveQuest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*planner.LiveQuest
	for k, q := range m.live {
		if k.Day == day {
			cp := *q
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *Memory) CreateFailureRecord(_ context.Context, q *planner.LiveQuest, day planner.DayWindow, reason string) (*planner.QuestRecord, error) {
	return m.createRecord(planner.KindFailed, q, reason, decimal.Zero)
}

func (m *Memory) DeleteLiveQuest(_ context.Context, q *planner.LiveQuest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := liveKey{Day: q.DayNum, Key: q.LiveKey}
	if _, ok := m.live[k]; !ok {
		return planner.ErrLiveQuestNotFound
	}
	delete(m.live, k)
	return nil
}

// CreateRecord writes a history record of any kind. Used by tests and by
// application-side status transitions against the memory store.
func (m *Memory) CreateRecord(_ context.Context, kind planner.RecordKind, q *planner.LiveQuest, reason string, points decimal.Decimal) (*planner.QuestRecord, error) {
	return m.createRecord(kind, q, reason, points)
}

func (m *Memory) createRecord(kind planner.RecordKind, q *planner.LiveQuest, reason string, points decimal.Decimal) (*planner.QuestRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec := &planner.QuestRecord{
		ID:            uuid.NewString(),
		Kind:          kind,
		Key:           planner.RecordKey(kind, q.DayNum, q.LiveKey),
		DayNum:        q.DayNum,
		LiveKey:       q.LiveKey,
		DefinitionKey: q.DefinitionKey,
		RuleKey:       q.RuleKey,
		Reason:        reason,
		Points:        points,
		OccurredAt:    q.Deadline,
	}
	if rec.OccurredAt == 0 {
		rec.OccurredAt = q.UpdatedAt
	}
	if existing, ok := m.records[rec.Key]; ok {
		// Records are immutable once written.
		cp := *existing
		return &cp, nil
	}
	m.records[rec.Key] = rec
	cp := *rec
	return &cp, nil
}

// =============================================================================
// SCHEDULE TEMPLATES
// =============================================================================

func (m *Memory) ShouldSkip(_ context.Context, day planner.DayWindow, def *planner.QuestDefinition, rule *planner.RecurrenceRule) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var ruleID planner.RuleID
	if rule != nil {
		ruleID = rule.ID
	}
	return m.skips[skipKey{Day: day.Index, Def: def.ID, Rule: ruleID}], nil
}

// SetSkip marks a (day, definition, rule) combination as skipped. Test
// helper.
func (m *Memory) SetSkip(day planner.DayIndex, def planner.DefinitionID, rule planner.RuleID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.skips[skipKey{Day: day, Def: def, Rule: rule}] = true
}

// =============================================================================
// TEST INSPECTION HELPERS
// =============================================================================

// LiveCount returns the number of live instances across all days.
func (m *Memory) LiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.live)
}

// LiveCountForDay returns the number of live instances for one day.
func (m *Memory) LiveCountForDay(day planner.DayIndex) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for k := range m.live {
		if k.Day == day {
			n++
		}
	}
	return n
}

// Records returns all history records of one kind.
func (m *Memory) Records(kind planner.RecordKind) []*planner.QuestRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*planner.QuestRecord
	for _, r := range m.records {
		if r.Kind == kind {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out
}
