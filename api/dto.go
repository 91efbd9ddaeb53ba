/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

TYPES:
  Definitions:
    DefinitionDTO (wraps factory.DefinitionJSON)

  Day state:
    WindowDTO, LiveQuestDTO, RecordDTO

  Transitions:
    TransitionRequest (start/complete/skip/cancel share a body)

  Rollover:
    RolloverRequest, RolloverResultDTO, RolloverRunDTO

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/definition.go: DefinitionJSON type
*/
package api

import (
	"time"

	"github.com/warp/quest-engine/factory"
	"github.com/warp/quest-engine/planner"
	"github.com/warp/quest-engine/rewards"
	"github.com/warp/quest-engine/store/sqlite"
)

// =============================================================================
// DEFINITIONS
// =============================================================================

// DefinitionDTO represents a quest definition in API responses.
type DefinitionDTO struct {
	Config    factory.DefinitionJSON `json:"config"`
	CreatedAt string                 `json:"created_at,omitempty"`
	UpdatedAt string                 `json:"updated_at,omitempty"`
}

// =============================================================================
// DAY STATE
// =============================================================================

// WindowDTO describes one logical day window.
type WindowDTO struct {
	Day          int64  `json:"day"`
	DayKey       string `json:"day_key"`
	Zone         string `json:"zone"`
	RolloverHour int    `json:"rollover_hour"`
	Start        int64  `json:"start_millis"`
	End          int64  `json:"end_millis"`
	StartISO     string `json:"start"`
	EndISO       string `json:"end"`
	Hours        string `json:"hours"`
	DayName      string `json:"day_name"`
	DayOfMonth   int    `json:"day_of_month"`
	DayOfYear    int    `json:"day_of_year"`
}

// LiveQuestDTO represents a materialized instance.
type LiveQuestDTO struct {
	Key           string `json:"key"`
	Day           int64  `json:"day"`
	LiveKey       string `json:"live_key"`
	DefinitionKey string `json:"definition_key"`
	RuleKey       string `json:"rule_key,omitempty"`
	Deadline      int64  `json:"deadline,omitempty"`
	DeadlineISO   string `json:"deadline_time,omitempty"`
	Status        string `json:"status"`
	Skip          bool   `json:"skip,omitempty"`
	GraceMinutes  *int   `json:"grace_minutes,omitempty"`
	StartedAt     int64  `json:"started_at,omitempty"`
}

// RecordDTO represents a history record.
type RecordDTO struct {
	ID            string `json:"id"`
	Kind          string `json:"kind"`
	Key           string `json:"key"`
	Day           int64  `json:"day"`
	LiveKey       string `json:"live_key"`
	DefinitionKey string `json:"definition_key"`
	RuleKey       string `json:"rule_key,omitempty"`
	Reason        string `json:"reason,omitempty"`
	Points        string `json:"points"`
	OccurredAt    int64  `json:"occurred_at,omitempty"`
}

// BalanceDTO is a user's aggregate point state.
type BalanceDTO struct {
	User      string `json:"user"`
	Earned    string `json:"earned"`
	Penalties string `json:"penalties"`
	Net       string `json:"net"`
	Completed int    `json:"completed"`
	Failed    int    `json:"failed"`
	Skipped   int    `json:"skipped"`
	Cancelled int    `json:"cancelled"`
}

// =============================================================================
// TRANSITIONS
// =============================================================================

// TransitionRequest is the shared body for quest status transitions.
// The live key addresses the instance because it may contain slashes
// (definitionId/ruleId) and cannot ride in the URL path.
type TransitionRequest struct {
	Day     int64  `json:"day"`
	LiveKey string `json:"live_key"`
	Reason  string `json:"reason,omitempty"`

	// Complete only.
	FinishedAt int64 `json:"finished_at,omitempty"` // epoch millis, defaults to now
	StreakDays int   `json:"streak_days,omitempty"`

	// Save only.
	GraceMinutes *int `json:"grace_minutes,omitempty"`
}

// =============================================================================
// ROLLOVER
// =============================================================================

// RolloverRequest triggers a manual sweep.
type RolloverRequest struct {
	User string `json:"user"`

	// FromDay is the day to close. Nil means yesterday per server config.
	FromDay *int64 `json:"from_day,omitempty"`
}

// RolloverResultDTO is the outcome of one sweep.
type RolloverResultDTO struct {
	User    string      `json:"user"`
	FromDay int64       `json:"from_day"`
	ToDay   int64       `json:"to_day"`
	Failed  []RecordDTO `json:"failed"`
	Opened  int         `json:"opened"`
}

// RolloverRunDTO represents a persisted sweep execution.
type RolloverRunDTO struct {
	ID          string `json:"id"`
	User        string `json:"user"`
	FromDay     int64  `json:"from_day"`
	ToDay       int64  `json:"to_day"`
	FailedCount int    `json:"failed_count"`
	Status      string `json:"status"`
	Error       string `json:"error,omitempty"`
	CompletedAt string `json:"completed_at,omitempty"`
}

// SkipWeekdayRequest installs or clears a weekday skip mask.
type SkipWeekdayRequest struct {
	DefinitionID string `json:"definition_id"`
	RuleID       string `json:"rule_id,omitempty"`
	Weekday      int    `json:"weekday"` // 0=Sunday .. 6=Saturday
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERTERS
// =============================================================================

func toWindowDTO(w planner.DayWindow) WindowDTO {
	loc := w.Config().Location()
	return WindowDTO{
		Day:          w.Index.Int64(),
		DayKey:       planner.DayKey(w.Index),
		Zone:         w.Zone,
		RolloverHour: w.RolloverHour,
		Start:        w.Start,
		End:          w.End,
		StartISO:     time.UnixMilli(w.Start).In(loc).Format(time.RFC3339),
		EndISO:       time.UnixMilli(w.End).In(loc).Format(time.RFC3339),
		Hours:        (time.Duration(w.Duration) * time.Millisecond).String(),
		DayName:      w.DayName,
		DayOfMonth:   w.DayOfMonth,
		DayOfYear:    w.DayOfYear,
	}
}

func toLiveQuestDTO(q *planner.LiveQuest, loc *time.Location) LiveQuestDTO {
	dto := LiveQuestDTO{
		Key:           q.Key,
		Day:           q.DayNum.Int64(),
		LiveKey:       q.LiveKey,
		DefinitionKey: string(q.DefinitionKey),
		RuleKey:       string(q.RuleKey),
		Deadline:      q.Deadline,
		Status:        string(q.Status),
		Skip:          q.Skip,
		GraceMinutes:  q.GraceMinutes,
		StartedAt:     q.StartedAt,
	}
	if q.Deadline > 0 && loc != nil {
		dto.DeadlineISO = time.UnixMilli(q.Deadline).In(loc).Format(time.RFC3339)
	}
	return dto
}

func toLiveQuestDTOs(quests []*planner.LiveQuest, loc *time.Location) []LiveQuestDTO {
	dtos := make([]LiveQuestDTO, 0, len(quests))
	for _, q := range quests {
		dtos = append(dtos, toLiveQuestDTO(q, loc))
	}
	return dtos
}

func toRecordDTO(rec *planner.QuestRecord) RecordDTO {
	return RecordDTO{
		ID:            rec.ID,
		Kind:          rec.Kind.String(),
		Key:           rec.Key,
		Day:           rec.DayNum.Int64(),
		LiveKey:       rec.LiveKey,
		DefinitionKey: string(rec.DefinitionKey),
		RuleKey:       string(rec.RuleKey),
		Reason:        rec.Reason,
		Points:        rec.Points.String(),
		OccurredAt:    rec.OccurredAt,
	}
}

func toRecordDTOs(records []*planner.QuestRecord) []RecordDTO {
	dtos := make([]RecordDTO, 0, len(records))
	for _, rec := range records {
		dtos = append(dtos, toRecordDTO(rec))
	}
	return dtos
}

func toBalanceDTO(b rewards.Balance) BalanceDTO {
	return BalanceDTO{
		User:      string(b.User),
		Earned:    b.Earned.String(),
		Penalties: b.Penalties.String(),
		Net:       b.Net().String(),
		Completed: b.Completed,
		Failed:    b.Failed,
		Skipped:   b.Skipped,
		Cancelled: b.Cancelled,
	}
}

func toRolloverRunDTO(r sqlite.RolloverRun) RolloverRunDTO {
	dto := RolloverRunDTO{
		ID:          r.ID,
		User:        string(r.User),
		FromDay:     r.FromDay.Int64(),
		ToDay:       r.ToDay.Int64(),
		FailedCount: r.FailedCount,
		Status:      r.Status,
		Error:       r.Error,
	}
	if r.CompletedAt > 0 {
		dto.CompletedAt = time.UnixMilli(r.CompletedAt).UTC().Format(time.RFC3339)
	}
	return dto
}
