/*
Package sqlite provides the SQLite-backed implementation of the planner's
collaborator interfaces.

PURPOSE:
  Implements all persistence interfaces (QuestDefinitionSource,
  LiveQuestStore, RolloverStore, ScheduleTemplateService) using SQLite.
  In production, the same patterns apply to PostgreSQL - only minor SQL
  dialect differences.

INTERFACES IMPLEMENTED:
  planner.QuestDefinitionSource:   Definition templates per user
  planner.LiveQuestStore:          Materialized day instances
  planner.RolloverStore:           Sweep-side reads, failure records, deletes
  planner.ScheduleTemplateService: Weekday skip masks

UNIQUENESS ENFORCEMENT:
  The materializer runs a lock-free "read existing, else create" pattern;
  the store is the arbiter of the at-most-one-instance rule:
  - idx_unique_live_instance on live_quests(day_num, live_key) collapses
    concurrent creates into planner.ErrDuplicateLiveQuest
  - idx_unique_record on quest_records(day_num, kind, live_key) makes
    history writes idempotent: a rerun sweep returns the existing record

KEY TABLES:
  quest_definitions:  Templates with a JSON config column (rules, anchors)
  live_quests:        One row per materialized (day, liveKey) instance
  quest_records:      Immutable history (completed/failed/cancelled/skipped)
  schedule_templates: Weekday skip masks consulted at materialization
  rollover_runs:      Audit trail of sweep executions per user

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. In production with PostgreSQL,
  database-level concurrency control handles this instead.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/quests.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  p, err := planner.NewDayPlanner(store, store, store, nil, cfg)

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - planner/store.go: Interface definitions
  - planner/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/quest-engine/factory"
	"github.com/warp/quest-engine/planner"
)

// Store implements all planner collaborator interfaces using SQLite.
type Store struct {
	db      *sql.DB
	mu      sync.RWMutex
	factory *factory.DefinitionFactory
}

// Compile-time interface checks.
var (
	_ planner.QuestDefinitionSource   = (*Store)(nil)
	_ planner.LiveQuestStore          = (*Store)(nil)
	_ planner.RolloverStore           = (*Store)(nil)
	_ planner.ScheduleTemplateService = (*Store)(nil)
)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db, factory: factory.NewDefinitionFactory()}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Quest definitions (templates)
	CREATE TABLE IF NOT EXISTS quest_definitions (
		id TEXT PRIMARY KEY,
		owner TEXT NOT NULL,
		name TEXT NOT NULL,
		config_json TEXT NOT NULL,
		active INTEGER NOT NULL DEFAULT 1,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_definitions_owner
		ON quest_definitions(owner);

	-- Live quests (one row per materialized day instance)
	CREATE TABLE IF NOT EXISTS live_quests (
		key TEXT PRIMARY KEY,
		parent_day_key TEXT NOT NULL,
		day_num INTEGER NOT NULL,
		live_key TEXT NOT NULL,
		definition_key TEXT NOT NULL,
		rule_key TEXT NOT NULL DEFAULT '',
		deadline INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL,
		skip INTEGER NOT NULL DEFAULT 0,
		grace_minutes INTEGER,
		created_at INTEGER NOT NULL DEFAULT 0,
		updated_at INTEGER NOT NULL DEFAULT 0,
		started_at INTEGER NOT NULL DEFAULT 0,
		finished_at INTEGER NOT NULL DEFAULT 0
	);

	-- CRITICAL: At most one live instance per (day, liveKey). Two racing
	-- materializations both reach INSERT; the loser gets this constraint
	-- and the planner returns the winner's row.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_unique_live_instance
		ON live_quests(day_num, live_key);

	CREATE INDEX IF NOT EXISTS idx_live_quests_day
		ON live_quests(day_num);
	CREATE INDEX IF NOT EXISTS idx_live_quests_definition
		ON live_quests(definition_key);

	-- Quest records (immutable history)
	CREATE TABLE IF NOT EXISTS quest_records (
		id TEXT PRIMARY KEY,
		key TEXT NOT NULL,
		kind TEXT NOT NULL,
		day_num INTEGER NOT NULL,
		live_key TEXT NOT NULL,
		definition_key TEXT NOT NULL,
		rule_key TEXT NOT NULL DEFAULT '',
		reason TEXT NOT NULL DEFAULT '',
		points TEXT NOT NULL DEFAULT '0',
		occurred_at INTEGER NOT NULL DEFAULT 0
	);

	-- Idempotent history: rerunning a sweep or re-posting a completion
	-- finds the existing record instead of writing a second one.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_unique_record
		ON quest_records(day_num, kind, live_key);

	CREATE INDEX IF NOT EXISTS idx_records_day
		ON quest_records(day_num);
	CREATE INDEX IF NOT EXISTS idx_records_definition
		ON quest_records(definition_key);

	-- Schedule templates (weekday skip masks)
	CREATE TABLE IF NOT EXISTS schedule_templates (
		definition_id TEXT NOT NULL,
		rule_id TEXT NOT NULL DEFAULT '',
		weekday INTEGER NOT NULL,
		created_at INTEGER NOT NULL DEFAULT 0
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_unique_template
		ON schedule_templates(definition_id, rule_id, weekday);

	-- Rollover runs (audit trail of sweep executions)
	CREATE TABLE IF NOT EXISTS rollover_runs (
		id TEXT PRIMARY KEY,
		user_key TEXT NOT NULL,
		from_day INTEGER NOT NULL,
		to_day INTEGER NOT NULL,
		failed_count INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'pending',
		error TEXT NOT NULL DEFAULT '',
		started_at INTEGER NOT NULL DEFAULT 0,
		completed_at INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL DEFAULT 0
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_unique_rollover_run
		ON rollover_runs(user_key, from_day, to_day);
	CREATE INDEX IF NOT EXISTS idx_rollover_runs_user
		ON rollover_runs(user_key, to_day DESC);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// DEFINITION STORE (planner.QuestDefinitionSource interface)
// =============================================================================

// SaveDefinition upserts a definition. The full template (rules, anchors,
// cadences) is stored as a JSON config column; owner, name and active are
// denormalized for queries.
func (s *Store) SaveDefinition(ctx context.Context, def *planner.QuestDefinition) error {
	if def == nil || def.ID == "" {
		return planner.ErrMissingDefinitionKey
	}

	configJSON, err := s.factory.MarshalDefinition(def)
	if err != nil {
		return fmt.Errorf("failed to marshal definition config: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO quest_definitions (id, owner, name, config_json, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			owner = excluded.owner,
			name = excluded.name,
			config_json = excluded.config_json,
			active = excluded.active,
			updated_at = excluded.updated_at
	`

	now := time.Now().UnixMilli()
	createdAt := def.CreatedAt
	if createdAt == 0 {
		createdAt = now
	}

	_, err = s.db.ExecContext(ctx, query,
		string(def.ID), string(def.Owner), def.Name, configJSON,
		boolToInt(def.Active), createdAt, now,
	)
	return err
}

// GetDefinition retrieves a definition by ID.
func (s *Store) GetDefinition(ctx context.Context, id planner.DefinitionID) (*planner.QuestDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var configJSON string
	var createdAt, updatedAt int64

	err := s.db.QueryRowContext(ctx,
		"SELECT config_json, created_at, updated_at FROM quest_definitions WHERE id = ?",
		string(id),
	).Scan(&configJSON, &createdAt, &updatedAt)

	if err == sql.ErrNoRows {
		return nil, planner.ErrDefinitionNotFound
	}
	if err != nil {
		return nil, err
	}

	def, err := s.factory.ParseDefinition(configJSON)
	if err != nil {
		return nil, fmt.Errorf("failed to parse definition config: %w", err)
	}
	def.CreatedAt = createdAt
	def.UpdatedAt = updatedAt
	return def, nil
}

// FindDefinitionsForUser returns every definition owned by the user,
// active or not. The planner filters on the Active flag itself.
func (s *Store) FindDefinitionsForUser(ctx context.Context, user planner.UserKey) ([]*planner.QuestDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT config_json, created_at, updated_at FROM quest_definitions WHERE owner = ? ORDER BY name",
		string(user),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var defs []*planner.QuestDefinition
	for rows.Next() {
		var configJSON string
		var createdAt, updatedAt int64
		if err := rows.Scan(&configJSON, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		def, err := s.factory.ParseDefinition(configJSON)
		if err != nil {
			return nil, fmt.Errorf("failed to parse definition config: %w", err)
		}
		def.CreatedAt = createdAt
		def.UpdatedAt = updatedAt
		defs = append(defs, def)
	}
	return defs, rows.Err()
}

// ListOwners returns every distinct definition owner. The rollover
// scheduler iterates this to know whose days need closing.
func (s *Store) ListOwners(ctx context.Context) ([]planner.UserKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT DISTINCT owner FROM quest_definitions ORDER BY owner",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var owners []planner.UserKey
	for rows.Next() {
		var owner string
		if err := rows.Scan(&owner); err != nil {
			return nil, err
		}
		owners = append(owners, planner.UserKey(owner))
	}
	return owners, rows.Err()
}

// DeleteDefinition removes a definition template. Live instances already
// materialized from it are untouched.
func (s *Store) DeleteDefinition(ctx context.Context, id planner.DefinitionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM quest_definitions WHERE id = ?", string(id))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return planner.ErrDefinitionNotFound
	}
	return nil
}

// =============================================================================
// LIVE QUEST STORE (planner.LiveQuestStore interface)
// =============================================================================

const liveQuestColumns = `key, parent_day_key, day_num, live_key, definition_key, rule_key,
	deadline, status, skip, grace_minutes, created_at, updated_at, started_at, finished_at`

// FindByDayAndLiveKey returns the live instance for (day, liveKey), or
// (nil, nil) when none exists.
func (s *Store) FindByDayAndLiveKey(ctx context.Context, day planner.DayIndex, liveKey string) (*planner.LiveQuest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		"SELECT "+liveQuestColumns+" FROM live_quests WHERE day_num = ? AND live_key = ?",
		day.Int64(), liveKey,
	)

	q, err := scanLiveQuest(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return q, nil
}

// CreateLiveQuest inserts a new instance seeded with day, lineage, deadline
// and skip flag. The unique index on (day_num, live_key) turns a racing
// duplicate insert into planner.ErrDuplicateLiveQuest.
func (s *Store) CreateLiveQuest(ctx context.Context, day planner.DayWindow, def *planner.QuestDefinition, rule *planner.RecurrenceRule, deadlineMillis int64, skip bool) (*planner.LiveQuest, error) {
	var ruleID planner.RuleID
	if rule != nil {
		ruleID = rule.ID
	}
	liveKey := planner.MakeLiveKey(def.ID, ruleID)
	now := time.Now().UnixMilli()

	q := &planner.LiveQuest{
		Key:           planner.LiveQuestKey(day.Index, liveKey),
		ParentDayKey:  planner.DayKey(day.Index),
		DayNum:        day.Index,
		LiveKey:       liveKey,
		DefinitionKey: def.ID,
		RuleKey:       ruleID,
		Deadline:      deadlineMillis,
		Status:        planner.StatusActive,
		Skip:          skip,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO live_quests (` + liveQuestColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		q.Key, q.ParentDayKey, q.DayNum.Int64(), q.LiveKey,
		string(q.DefinitionKey), string(q.RuleKey),
		q.Deadline, string(q.Status), boolToInt(q.Skip), nullIntPtr(q.GraceMinutes),
		q.CreatedAt, q.UpdatedAt, q.StartedAt, q.FinishedAt,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return nil, planner.ErrDuplicateLiveQuest
		}
		return nil, fmt.Errorf("failed to create live quest: %w", err)
	}

	return q, nil
}

// Save persists field updates to an existing instance.
func (s *Store) Save(ctx context.Context, q *planner.LiveQuest) (*planner.LiveQuest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q.UpdatedAt = time.Now().UnixMilli()

	query := `
		UPDATE live_quests SET
			deadline = ?, status = ?, skip = ?, grace_minutes = ?,
			updated_at = ?, started_at = ?, finished_at = ?
		WHERE day_num = ? AND live_key = ?
	`

	res, err := s.db.ExecContext(ctx, query,
		q.Deadline, string(q.Status), boolToInt(q.Skip), nullIntPtr(q.GraceMinutes),
		q.UpdatedAt, q.StartedAt, q.FinishedAt,
		q.DayNum.Int64(), q.LiveKey,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to save live quest: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, planner.ErrLiveQuestNotFound
	}
	return q, nil
}

// FindLiveQuestsByDay lists every live instance of one day, ordered by
// deadline then key.
func (s *Store) FindLiveQuestsByDay(ctx context.Context, day planner.DayIndex) ([]*planner.LiveQuest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryLiveQuests(ctx,
		"SELECT "+liveQuestColumns+" FROM live_quests WHERE day_num = ? ORDER BY deadline ASC, live_key ASC",
		day.Int64(),
	)
}

// =============================================================================
// ROLLOVER STORE (planner.RolloverStore interface)
// =============================================================================

// FindActiveLiveQuests enumerates the live instances of one day for the
// rollover sweep.
func (s *Store) FindActiveLiveQuests(ctx context.Context, day planner.DayIndex) ([]*planner.LiveQuest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryLiveQuests(ctx,
		"SELECT "+liveQuestColumns+" FROM live_quests WHERE day_num = ?",
		day.Int64(),
	)
}

// CreateFailureRecord writes an immutable failed-history record snapshotting
// the quest's lineage.
func (s *Store) CreateFailureRecord(ctx context.Context, q *planner.LiveQuest, day planner.DayWindow, reason string) (*planner.QuestRecord, error) {
	return s.CreateRecord(ctx, planner.KindFailed, q, reason, decimal.Zero)
}

// DeleteLiveQuest removes a live instance that has left the live set.
func (s *Store) DeleteLiveQuest(ctx context.Context, q *planner.LiveQuest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"DELETE FROM live_quests WHERE day_num = ? AND live_key = ?",
		q.DayNum.Int64(), q.LiveKey,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return planner.ErrLiveQuestNotFound
	}
	return nil
}

// =============================================================================
// QUEST RECORDS (immutable history)
// =============================================================================

const recordColumns = `id, key, kind, day_num, live_key, definition_key, rule_key, reason, points, occurred_at`

// CreateRecord writes a history record of any kind, snapshotting the
// quest's lineage. A duplicate (day, kind, liveKey) write returns the
// existing record; history is write-once.
func (s *Store) CreateRecord(ctx context.Context, kind planner.RecordKind, q *planner.LiveQuest, reason string, points decimal.Decimal) (*planner.QuestRecord, error) {
	occurredAt := q.Deadline
	if occurredAt == 0 {
		occurredAt = q.UpdatedAt
	}

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
		OccurredAt:    occurredAt,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO quest_records (` + recordColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		rec.ID, rec.Key, string(rec.Kind), rec.DayNum.Int64(), rec.LiveKey,
		string(rec.DefinitionKey), string(rec.RuleKey),
		rec.Reason, rec.Points.String(), rec.OccurredAt,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return s.getRecordLocked(ctx, kind, q.DayNum, q.LiveKey)
		}
		return nil, fmt.Errorf("failed to create quest record: %w", err)
	}

	return rec, nil
}

func (s *Store) getRecordLocked(ctx context.Context, kind planner.RecordKind, day planner.DayIndex, liveKey string) (*planner.QuestRecord, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+recordColumns+" FROM quest_records WHERE day_num = ? AND kind = ? AND live_key = ?",
		day.Int64(), string(kind), liveKey,
	)
	return scanRecord(row)
}

// ListRecords returns all history records of one day.
func (s *Store) ListRecords(ctx context.Context, day planner.DayIndex) ([]*planner.QuestRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryRecords(ctx,
		"SELECT "+recordColumns+" FROM quest_records WHERE day_num = ? ORDER BY occurred_at ASC, live_key ASC",
		day.Int64(),
	)
}

// ListRecordsByKind returns one day's history filtered to a single kind.
func (s *Store) ListRecordsByKind(ctx context.Context, day planner.DayIndex, kind planner.RecordKind) ([]*planner.QuestRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryRecords(ctx,
		"SELECT "+recordColumns+" FROM quest_records WHERE day_num = ? AND kind = ? ORDER BY occurred_at ASC, live_key ASC",
		day.Int64(), string(kind),
	)
}

// ListRecordsForUser returns a user's full history in chronological
// order, joined through the definitions they own. Records for deleted
// definitions drop out of the join; per-day listings still show them.
func (s *Store) ListRecordsForUser(ctx context.Context, user planner.UserKey) ([]*planner.QuestRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT r.id, r.key, r.kind, r.day_num, r.live_key, r.definition_key, r.rule_key,
		r.reason, r.points, r.occurred_at
		FROM quest_records r
		JOIN quest_definitions d ON d.id = r.definition_key
		WHERE d.owner = ?
		ORDER BY r.day_num ASC, r.occurred_at ASC, r.live_key ASC`
	return s.queryRecords(ctx, query, string(user))
}

// =============================================================================
// SCHEDULE TEMPLATES (planner.ScheduleTemplateService interface)
// =============================================================================

// ShouldSkip reports whether a weekday skip mask covers the given day.
// A mask with an empty rule_id applies to every rule of the definition.
func (s *Store) ShouldSkip(ctx context.Context, day planner.DayWindow, def *planner.QuestDefinition, rule *planner.RecurrenceRule) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ruleID planner.RuleID
	if rule != nil {
		ruleID = rule.ID
	}

	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM schedule_templates
		 WHERE definition_id = ? AND (rule_id = '' OR rule_id = ?) AND weekday = ?`,
		string(def.ID), string(ruleID), int(day.DayOfWeek),
	).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// SetSkipWeekday installs a weekday skip mask. An empty ruleID masks every
// rule of the definition.
func (s *Store) SetSkipWeekday(ctx context.Context, defID planner.DefinitionID, ruleID planner.RuleID, weekday time.Weekday) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO schedule_templates (definition_id, rule_id, weekday, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(definition_id, rule_id, weekday) DO NOTHING
	`

	_, err := s.db.ExecContext(ctx, query,
		string(defID), string(ruleID), int(weekday), time.Now().UnixMilli(),
	)
	return err
}

// ClearSkipWeekday removes a weekday skip mask.
func (s *Store) ClearSkipWeekday(ctx context.Context, defID planner.DefinitionID, ruleID planner.RuleID, weekday time.Weekday) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"DELETE FROM schedule_templates WHERE definition_id = ? AND rule_id = ? AND weekday = ?",
		string(defID), string(ruleID), int(weekday),
	)
	return err
}

// =============================================================================
// ROLLOVER RUNS (audit trail)
// =============================================================================

// Rollover run statuses.
const (
	RunPending   = "pending"
	RunCompleted = "completed"
	RunFailed    = "failed"
)

// RolloverRun is one sweep execution for one user.
type RolloverRun struct {
	ID          string
	User        planner.UserKey
	FromDay     planner.DayIndex
	ToDay       planner.DayIndex
	FailedCount int
	Status      string
	Error       string
	StartedAt   int64
	CompletedAt int64
	CreatedAt   int64
}

// SaveRolloverRun upserts a rollover run keyed by (user, fromDay, toDay).
func (s *Store) SaveRolloverRun(ctx context.Context, r RolloverRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt == 0 {
		r.CreatedAt = time.Now().UnixMilli()
	}

	query := `
		INSERT INTO rollover_runs (id, user_key, from_day, to_day, failed_count,
			status, error, started_at, completed_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_key, from_day, to_day) DO UPDATE SET
			failed_count = excluded.failed_count,
			status = excluded.status,
			error = excluded.error,
			started_at = excluded.started_at,
			completed_at = excluded.completed_at
	`

	_, err := s.db.ExecContext(ctx, query,
		r.ID, string(r.User), r.FromDay.Int64(), r.ToDay.Int64(), r.FailedCount,
		r.Status, r.Error, r.StartedAt, r.CompletedAt, r.CreatedAt,
	)
	return err
}

// LastCompletedDay returns the highest day a completed sweep has opened for
// the user. The second return is false when no sweep has completed yet.
func (s *Store) LastCompletedDay(ctx context.Context, user planner.UserKey) (planner.DayIndex, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var toDay sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		"SELECT MAX(to_day) FROM rollover_runs WHERE user_key = ? AND status = ?",
		string(user), RunCompleted,
	).Scan(&toDay)
	if err != nil {
		return 0, false, err
	}
	if !toDay.Valid {
		return 0, false, nil
	}
	return planner.DayIndexOf(toDay.Int64), true, nil
}

// ListRolloverRuns returns the most recent runs for a user, newest first.
func (s *Store) ListRolloverRuns(ctx context.Context, user planner.UserKey, limit int) ([]RolloverRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_key, from_day, to_day, failed_count, status, error,
			started_at, completed_at, created_at
		 FROM rollover_runs WHERE user_key = ?
		 ORDER BY to_day DESC LIMIT ?`,
		string(user), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []RolloverRun
	for rows.Next() {
		var r RolloverRun
		var user string
		var fromDay, toDay int64
		if err := rows.Scan(&r.ID, &user, &fromDay, &toDay, &r.FailedCount,
			&r.Status, &r.Error, &r.StartedAt, &r.CompletedAt, &r.CreatedAt); err != nil {
			return nil, err
		}
		r.User = planner.UserKey(user)
		r.FromDay = planner.DayIndexOf(fromDay)
		r.ToDay = planner.DayIndexOf(toDay)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"live_quests", "quest_records", "schedule_templates", "rollover_runs", "quest_definitions"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *Store) queryLiveQuests(ctx context.Context, query string, args ...any) ([]*planner.LiveQuest, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query live quests: %w", err)
	}
	defer rows.Close()

	var quests []*planner.LiveQuest
	for rows.Next() {
		q, err := scanLiveQuest(rows)
		if err != nil {
			return nil, err
		}
		quests = append(quests, q)
	}
	return quests, rows.Err()
}

func scanLiveQuest(row rowScanner) (*planner.LiveQuest, error) {
	var (
		q             planner.LiveQuest
		dayNum        int64
		definitionKey string
		ruleKey       string
		status        string
		skip          int
		grace         sql.NullInt64
	)

	err := row.Scan(
		&q.Key, &q.ParentDayKey, &dayNum, &q.LiveKey, &definitionKey, &ruleKey,
		&q.Deadline, &status, &skip, &grace,
		&q.CreatedAt, &q.UpdatedAt, &q.StartedAt, &q.FinishedAt,
	)
	if err != nil {
		return nil, err
	}

	q.DayNum = planner.DayIndexOf(dayNum)
	q.DefinitionKey = planner.DefinitionID(definitionKey)
	q.RuleKey = planner.RuleID(ruleKey)
	q.Status = planner.QuestStatus(status)
	q.Skip = skip != 0
	if grace.Valid {
		g := int(grace.Int64)
		q.GraceMinutes = &g
	}
	return &q, nil
}

func (s *Store) queryRecords(ctx context.Context, query string, args ...any) ([]*planner.QuestRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query quest records: %w", err)
	}
	defer rows.Close()

	var records []*planner.QuestRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func scanRecord(row rowScanner) (*planner.QuestRecord, error) {
	var (
		rec           planner.QuestRecord
		kind          string
		dayNum        int64
		definitionKey string
		ruleKey       string
		points        string
	)

	err := row.Scan(
		&rec.ID, &rec.Key, &kind, &dayNum, &rec.LiveKey,
		&definitionKey, &ruleKey, &rec.Reason, &points, &rec.OccurredAt,
	)
	if err != nil {
		return nil, err
	}

	rec.Kind = planner.RecordKind(kind)
	rec.DayNum = planner.DayIndexOf(dayNum)
	rec.DefinitionKey = planner.DefinitionID(definitionKey)
	rec.RuleKey = planner.RuleID(ruleKey)
	rec.Points, err = decimal.NewFromString(points)
	if err != nil {
		return nil, fmt.Errorf("failed to parse record points: %w", err)
	}
	return &rec, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullIntPtr(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
