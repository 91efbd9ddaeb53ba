/*
Package planner provides the day-window and recurrence-materialization engine.

PURPOSE:
  This package contains the core scheduling logic for a quest/task tracking
  system: converting wall-clock timestamps into stable logical day numbers,
  resolving recurrence rules into absolute deadlines, materializing at most
  one live quest instance per (definition x rule x day), and sweeping overdue
  instances into failure records when a day closes.

KEY CONCEPTS IN THIS FILE (types.go):
  - DayIndex: An integer day number relative to the Unix epoch
  - Cadence: A recurrence repeat interval (amount + unit)
  - Anchor: Where within a period an item is due (hour/minute + selector)
  - QuestDefinition / RecurrenceRule: Templates that spawn instances
  - LiveQuest: A materialized instance for one concrete day
  - QuestRecord: Immutable history entry (completed/failed/cancelled/skipped)

DESIGN PRINCIPLES:
  1. Idempotence: Materialization is safe to repeat; at most one live
     instance exists per (day, liveKey)
  2. Explicit configuration: Timezone and rollover hour are passed-in
     Config values, never global state
  3. Typed unsupported features: Calendar-month/year arithmetic fails with
     a distinct error so callers can tell "not built yet" from "bad input"

USAGE:
  cfg, _ := planner.NewConfig(time.UTC, 4)
  day := planner.DayIndexAt(time.Now(), cfg)
  window := planner.BuildWindow(day, cfg)

SEE ALSO:
  - window.go: Day-window arithmetic (timezone and DST aware)
  - materializer.go: Idempotent instance creation
  - rollover.go: Day-boundary sweep
*/
package planner

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// DAY INDEX - Logical day number relative to the Unix epoch
// =============================================================================

// DayIndex identifies a logical day. The mapping from wall-clock time to
// DayIndex depends on timezone and rollover hour (see window.go); the index
// itself is plain integer arithmetic.
type DayIndex int64

func DayIndexOf(n int64) DayIndex { return DayIndex(n) }

func (d DayIndex) PlusDays(n int64) DayIndex  { return d + DayIndex(n) }
func (d DayIndex) MinusDays(n int64) DayIndex { return d - DayIndex(n) }
func (d DayIndex) Before(o DayIndex) bool     { return d < o }
func (d DayIndex) After(o DayIndex) bool      { return d > o }
func (d DayIndex) Int64() int64               { return int64(d) }

func (d DayIndex) String() string { return fmt.Sprintf("day-%d", int64(d)) }

// =============================================================================
// IDENTIFIERS
// =============================================================================

type DefinitionID string
type RuleID string
type UserKey string

// =============================================================================
// CADENCE - Repeat interval of a recurrence rule
// =============================================================================

type CadenceUnit string

const (
	UnitDay   CadenceUnit = "day"
	UnitWeek  CadenceUnit = "week"
	UnitMonth CadenceUnit = "month" // accepted in data, rejected by ApplyCadence
	UnitYear  CadenceUnit = "year"  // accepted in data, rejected by ApplyCadence
)

// Cadence expresses "repeat every N units".
type Cadence struct {
	Amount int
	Unit   CadenceUnit
}

func NewCadence(amount int, unit CadenceUnit) Cadence {
	return Cadence{Amount: amount, Unit: unit}
}

// =============================================================================
// ANCHOR - Position within a period where an item is due
// =============================================================================

type AnchorKind string

const (
	AnchorDaily   AnchorKind = "daily"
	AnchorWeekly  AnchorKind = "weekly"  // rejected by Deadline (calendar semantics undefined)
	AnchorMonthly AnchorKind = "monthly" // rejected by Deadline
	AnchorYearly  AnchorKind = "yearly"  // rejected by Deadline
)

// Anchor specifies where within its period an item is due. Optional fields
// are pointers: a nil field is "not provided", which ValidateAnchor rejects
// when the kind requires it.
type Anchor struct {
	Kind   AnchorKind
	Hour   *int
	Minute *int

	// Per-kind selector: exactly one is meaningful depending on Kind.
	DayOfWeek  *int // 0=Sunday .. 6=Saturday (weekly)
	DayOfMonth *int // 1..31 (monthly)
	DayOfYear  *int // 1..366 (yearly)
}

// NewDailyAnchor builds a daily anchor due at hour:minute within the day
// window.
func NewDailyAnchor(hour, minute int) Anchor {
	h, m := hour, minute
	return Anchor{Kind: AnchorDaily, Hour: &h, Minute: &m}
}

// =============================================================================
// PRIORITY
// =============================================================================

type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityNormal   Priority = "normal"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Rank orders priorities for sorting and reward weighting.
func (p Priority) Rank() int {
	switch p {
	case PriorityLow:
		return 0
	case PriorityHigh:
		return 2
	case PriorityCritical:
		return 3
	default:
		return 1
	}
}

// =============================================================================
// QUEST DEFINITION + RECURRENCE RULE - Templates
// =============================================================================

// QuestDefinition is the template entity that spawns live instances.
type QuestDefinition struct {
	ID       DefinitionID
	Owner    UserKey
	Name     string
	Tags     []string
	Priority Priority

	// Rules is the ordered set of recurrence rules. A definition with no
	// rules is never auto-materialized; it requires explicit instantiation.
	Rules []RecurrenceRule

	// Defaults applied at materialization time by the surrounding
	// application. The rollover sweeper deliberately consults only the
	// per-instance grace override (see rollover.go).
	DefaultGraceMinutes int
	DefaultAlarmMinutes int

	Active bool

	CreatedAt int64 // epoch millis
	UpdatedAt int64
}

// RecurrenceRule belongs to one QuestDefinition.
type RecurrenceRule struct {
	ID              RuleID
	Cadence         Cadence
	Anchor          *Anchor
	Active          bool
	AutoMaterialize bool

	// Optional active range, inclusive on both ends. Nil means unbounded.
	ActiveFrom  *DayIndex
	ActiveUntil *DayIndex
}

// ActiveOn reports whether the rule's active range covers the given day.
func (r *RecurrenceRule) ActiveOn(day DayIndex) bool {
	if r.ActiveFrom != nil && day.Before(*r.ActiveFrom) {
		return false
	}
	if r.ActiveUntil != nil && day.After(*r.ActiveUntil) {
		return false
	}
	return true
}

// =============================================================================
// LIVE QUEST - Materialized instance for one concrete day
// =============================================================================

type QuestStatus string

const (
	StatusActive  QuestStatus = "active"
	StatusStarted QuestStatus = "started"
)

// LiveQuest is the materialized instance for a (day, liveKey) pair.
// At most one live instance exists per (DayIndex, liveKey); this is the
// central correctness property of the whole subsystem and is enforced by
// the storage collaborator's uniqueness constraint.
type LiveQuest struct {
	Key          string // full storage key: dy/{dayNum}/lv/{liveKey}
	ParentDayKey string // dy/{dayNum}
	DayNum       DayIndex
	LiveKey      string // definitionId[/ruleId]

	DefinitionKey DefinitionID
	RuleKey       RuleID

	// Deadline in epoch millis. 0 means no deadline; such instances are
	// never auto-failed.
	Deadline int64

	Status QuestStatus
	Skip   bool

	// GraceMinutes is the per-instance grace override. Nil means no
	// override was set.
	GraceMinutes *int

	CreatedAt  int64
	UpdatedAt  int64
	StartedAt  int64
	FinishedAt int64
}

// =============================================================================
// QUEST RECORD - Immutable history entry
// =============================================================================

// RecordKind is both the history category and its persisted key segment.
type RecordKind string

const (
	KindCompleted RecordKind = "dn"
	KindFailed    RecordKind = "fld"
	KindCancelled RecordKind = "cncl"
	KindSkipped   RecordKind = "skp"
)

func (k RecordKind) String() string {
	switch k {
	case KindCompleted:
		return "completed"
	case KindFailed:
		return "failed"
	case KindCancelled:
		return "cancelled"
	case KindSkipped:
		return "skipped"
	default:
		return string(k)
	}
}

// QuestRecord snapshots the lineage of a live quest at the moment it left
// the live set. Records are immutable once written.
type QuestRecord struct {
	ID      string
	Kind    RecordKind
	Key     string // dy/{dayNum}/{kind}/{liveKey}
	DayNum  DayIndex
	LiveKey string

	DefinitionKey DefinitionID
	RuleKey       RuleID

	Reason     string
	Points     decimal.Decimal
	OccurredAt int64 // epoch millis
}

// =============================================================================
// KEY SCHEME - String-keyed hierarchical namespace the collaborators honor
// =============================================================================

// MakeLiveKey builds the stable instance identifier: definitionId[/ruleId].
func MakeLiveKey(def DefinitionID, rule RuleID) string {
	if rule == "" {
		return string(def)
	}
	return string(def) + "/" + string(rule)
}

// DayKey returns dy/{dayNum}.
func DayKey(day DayIndex) string {
	return fmt.Sprintf("dy/%d", int64(day))
}

// LiveQuestKey returns dy/{dayNum}/lv/{liveKey}.
func LiveQuestKey(day DayIndex, liveKey string) string {
	return fmt.Sprintf("dy/%d/lv/%s", int64(day), liveKey)
}

// RecordKey returns dy/{dayNum}/{kind}/{liveKey}.
func RecordKey(kind RecordKind, day DayIndex, liveKey string) string {
	return fmt.Sprintf("dy/%d/%s/%s", int64(day), string(kind), liveKey)
}

// nowMillis is the package's single clock access point for defaulted clocks.
func nowMillis() int64 { return time.Now().UnixMilli() }
