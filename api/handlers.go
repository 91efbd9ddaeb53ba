/*
handlers.go - HTTP API handlers for the quest planning system

PURPOSE:
  Exposes the planning engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Definitions:
    GET    /api/definitions            List definitions for a user
    POST   /api/definitions            Create/update definition from JSON
    GET    /api/definitions/{id}       Get one definition
    DELETE /api/definitions/{id}       Delete a definition

  Planning:
    POST   /api/plan/today             Materialize today for a user
    POST   /api/plan/{day}             Materialize a specific day
    GET    /api/windows/now            Resolve the current day window
    GET    /api/windows/{day}          Inspect a day window
    GET    /api/days/{day}/quests      List live instances of a day
    GET    /api/days/{day}/records     List history records of a day
    GET    /api/users/{user}/balance   Aggregate point balance

  Transitions (live key rides in the body, it contains slashes):
    POST   /api/quests/start           Mark an instance started
    POST   /api/quests/complete        Complete, award points, write history
    POST   /api/quests/skip            Skip into history
    POST   /api/quests/cancel          Cancel into history
    POST   /api/quests/grace           Set the per-instance grace override

  Admin:
    POST   /api/admin/rollover         Close a day and open the next
    GET    /api/rollover/runs          Sweep audit trail
    POST   /api/admin/templates        Install a weekday skip mask
    DELETE /api/admin/templates        Clear a weekday skip mask
    POST   /api/admin/seed             Load demo definitions
    POST   /api/reset                  Database reset (dev only)

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Resource not found
  - 409: Conflict (duplicate instance)
  - 501: Recognized but unsupported feature (month/year arithmetic)
  - 500: Internal errors

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - scheduler.go: Automated rollover
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/warp/quest-engine/factory"
	"github.com/warp/quest-engine/planner"
	"github.com/warp/quest-engine/rewards"
	"github.com/warp/quest-engine/store/sqlite"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store   *sqlite.Store
	Factory *factory.DefinitionFactory
	Config  planner.Config
	Planner *planner.DayPlanner
	Sweeper *planner.RolloverSweeper
	Points  rewards.PointsPolicy
}

// NewHandler creates a new handler wired to the given store and day
// configuration.
func NewHandler(store *sqlite.Store, cfg planner.Config) (*Handler, error) {
	p, err := planner.NewDayPlanner(store, store, store, planner.NewBoundedWindowCache(512), cfg)
	if err != nil {
		return nil, err
	}
	sweeper, err := planner.NewRolloverSweeper(store, p)
	if err != nil {
		return nil, err
	}

	return &Handler{
		Store:   store,
		Factory: factory.NewDefinitionFactory(),
		Config:  cfg,
		Planner: p,
		Sweeper: sweeper,
		Points:  rewards.DefaultPolicy(),
	}, nil
}

// =============================================================================
// DEFINITION HANDLERS
// =============================================================================

// ListDefinitions returns all definitions owned by a user.
func (h *Handler) ListDefinitions(w http.ResponseWriter, r *http.Request) {
	user := planner.UserKey(r.URL.Query().Get("user"))
	if user == "" {
		writeError(w, http.StatusBadRequest, "Missing user query parameter", nil)
		return
	}

	defs, err := h.Store.FindDefinitionsForUser(r.Context(), user)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list definitions", err)
		return
	}

	dtos := make([]DefinitionDTO, 0, len(defs))
	for _, def := range defs {
		dtos = append(dtos, h.toDefinitionDTO(def))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetDefinition returns a single definition.
func (h *Handler) GetDefinition(w http.ResponseWriter, r *http.Request) {
	id := planner.DefinitionID(chi.URLParam(r, "id"))

	def, err := h.Store.GetDefinition(r.Context(), id)
	if err != nil {
		writeError(w, statusFor(err), "Failed to get definition", err)
		return
	}

	writeJSON(w, http.StatusOK, h.toDefinitionDTO(def))
}

// CreateDefinition creates or updates a definition from its JSON config.
func (h *Handler) CreateDefinition(w http.ResponseWriter, r *http.Request) {
	var dj factory.DefinitionJSON
	if err := json.NewDecoder(r.Body).Decode(&dj); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	def, err := h.Factory.FromJSON(dj)
	if err != nil {
		writeError(w, statusFor(err), "Invalid definition", err)
		return
	}

	if err := h.Store.SaveDefinition(r.Context(), def); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save definition", err)
		return
	}

	writeJSON(w, http.StatusCreated, h.toDefinitionDTO(def))
}

// DeleteDefinition removes a definition template.
func (h *Handler) DeleteDefinition(w http.ResponseWriter, r *http.Request) {
	id := planner.DefinitionID(chi.URLParam(r, "id"))

	if err := h.Store.DeleteDefinition(r.Context(), id); err != nil {
		writeError(w, statusFor(err), "Failed to delete definition", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"deleted": string(id)})
}

func (h *Handler) toDefinitionDTO(def *planner.QuestDefinition) DefinitionDTO {
	dto := DefinitionDTO{Config: h.Factory.ToJSON(def)}
	if def.CreatedAt > 0 {
		dto.CreatedAt = time.UnixMilli(def.CreatedAt).UTC().Format(time.RFC3339)
	}
	if def.UpdatedAt > 0 {
		dto.UpdatedAt = time.UnixMilli(def.UpdatedAt).UTC().Format(time.RFC3339)
	}
	return dto
}

// =============================================================================
// PLANNING HANDLERS
// =============================================================================

// PlanToday materializes the current logical day for a user.
func (h *Handler) PlanToday(w http.ResponseWriter, r *http.Request) {
	user := planner.UserKey(r.URL.Query().Get("user"))
	if user == "" {
		writeError(w, http.StatusBadRequest, "Missing user query parameter", nil)
		return
	}

	quests, err := h.Planner.EnsureToday(r.Context(), user)
	if err != nil {
		writeError(w, statusFor(err), "Failed to plan day", err)
		return
	}

	day := planner.DayIndexAt(time.Now(), h.Config)
	writeJSON(w, http.StatusOK, map[string]any{
		"window": toWindowDTO(planner.BuildWindow(day, h.Config)),
		"quests": toLiveQuestDTOs(quests, h.Config.Location()),
	})
}

// PlanDay materializes a specific logical day for a user.
func (h *Handler) PlanDay(w http.ResponseWriter, r *http.Request) {
	user := planner.UserKey(r.URL.Query().Get("user"))
	if user == "" {
		writeError(w, http.StatusBadRequest, "Missing user query parameter", nil)
		return
	}
	day, ok := parseDay(w, r)
	if !ok {
		return
	}

	window := planner.BuildWindow(day, h.Config)
	quests, err := h.Planner.EnsureDay(r.Context(), user, window)
	if err != nil {
		writeError(w, statusFor(err), "Failed to plan day", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"window": toWindowDTO(window),
		"quests": toLiveQuestDTOs(quests, h.Config.Location()),
	})
}

// GetCurrentWindow resolves the day window containing an instant.
// Accepts ?at=RFC3339; defaults to now.
func (h *Handler) GetCurrentWindow(w http.ResponseWriter, r *http.Request) {
	at := time.Now()
	if raw := r.URL.Query().Get("at"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid at parameter (use RFC3339)", err)
			return
		}
		at = parsed
	}

	day := planner.DayIndexAt(at, h.Config)
	writeJSON(w, http.StatusOK, toWindowDTO(planner.BuildWindow(day, h.Config)))
}

// GetWindow inspects the window of a specific day number.
func (h *Handler) GetWindow(w http.ResponseWriter, r *http.Request) {
	day, ok := parseDay(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toWindowDTO(planner.BuildWindow(day, h.Config)))
}

// GetDayQuests lists the live instances of a day.
func (h *Handler) GetDayQuests(w http.ResponseWriter, r *http.Request) {
	day, ok := parseDay(w, r)
	if !ok {
		return
	}

	quests, err := h.Store.FindLiveQuestsByDay(r.Context(), day)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list quests", err)
		return
	}
	writeJSON(w, http.StatusOK, toLiveQuestDTOs(quests, h.Config.Location()))
}

// GetDayRecords lists the history records of a day, optionally filtered by
// ?kind=completed|failed|cancelled|skipped.
func (h *Handler) GetDayRecords(w http.ResponseWriter, r *http.Request) {
	day, ok := parseDay(w, r)
	if !ok {
		return
	}

	var (
		records []*planner.QuestRecord
		err     error
	)
	if kindName := r.URL.Query().Get("kind"); kindName != "" {
		kind, found := recordKindByName(kindName)
		if !found {
			writeError(w, http.StatusBadRequest, "Unknown record kind: "+kindName, nil)
			return
		}
		records, err = h.Store.ListRecordsByKind(r.Context(), day, kind)
	} else {
		records, err = h.Store.ListRecords(r.Context(), day)
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list records", err)
		return
	}

	writeJSON(w, http.StatusOK, toRecordDTOs(records))
}

// GetUserBalance aggregates a user's full history into a point balance.
func (h *Handler) GetUserBalance(w http.ResponseWriter, r *http.Request) {
	user := planner.UserKey(chi.URLParam(r, "user"))
	ctx := r.Context()

	records, err := h.Store.ListRecordsForUser(ctx, user)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load history", err)
		return
	}

	defs, err := h.Store.FindDefinitionsForUser(ctx, user)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load definitions", err)
		return
	}
	byID := make(map[planner.DefinitionID]*planner.QuestDefinition, len(defs))
	for _, def := range defs {
		byID[def.ID] = def
	}

	calc := rewards.BalanceCalculator{Policy: h.Points}
	writeJSON(w, http.StatusOK, toBalanceDTO(calc.Calculate(user, records, byID)))
}

// =============================================================================
// TRANSITION HANDLERS
// =============================================================================

// StartQuest marks a live instance as started.
func (h *Handler) StartQuest(w http.ResponseWriter, r *http.Request) {
	_, q, ok := h.loadTransitionTarget(w, r)
	if !ok {
		return
	}

	q.Status = planner.StatusStarted
	if q.StartedAt == 0 {
		q.StartedAt = time.Now().UnixMilli()
	}

	saved, err := h.Store.Save(r.Context(), q)
	if err != nil {
		writeError(w, statusFor(err), "Failed to start quest", err)
		return
	}
	writeJSON(w, http.StatusOK, toLiveQuestDTO(saved, h.Config.Location()))
}

// CompleteQuest completes a live instance: it leaves the live set, a
// completed record is written, and points are awarded.
func (h *Handler) CompleteQuest(w http.ResponseWriter, r *http.Request) {
	req, q, ok := h.loadTransitionTarget(w, r)
	if !ok {
		return
	}

	finishedAt := req.FinishedAt
	if finishedAt == 0 {
		finishedAt = time.Now().UnixMilli()
	}
	q.FinishedAt = finishedAt
	q.UpdatedAt = finishedAt

	def, err := h.Store.GetDefinition(r.Context(), q.DefinitionKey)
	if err != nil {
		if !planner.IsNotFound(err) {
			writeError(w, http.StatusInternalServerError, "Failed to load definition", err)
			return
		}
		// Definition deleted since materialization: award at normal priority.
		def = &planner.QuestDefinition{ID: q.DefinitionKey}
	}

	points := h.Points.CompletionPoints(def, finishedAt, q.Deadline, req.StreakDays)
	rec, err := h.Store.CreateRecord(r.Context(), planner.KindCompleted, q, req.Reason, points)
	if err != nil {
		writeError(w, statusFor(err), "Failed to record completion", err)
		return
	}
	if err := h.Store.DeleteLiveQuest(r.Context(), q); err != nil {
		writeError(w, statusFor(err), "Failed to retire quest", err)
		return
	}

	writeJSON(w, http.StatusOK, toRecordDTO(rec))
}

// SkipQuest retires a live instance into a skipped record, no points.
func (h *Handler) SkipQuest(w http.ResponseWriter, r *http.Request) {
	h.retireQuest(w, r, planner.KindSkipped)
}

// CancelQuest retires a live instance into a cancelled record, no points.
func (h *Handler) CancelQuest(w http.ResponseWriter, r *http.Request) {
	h.retireQuest(w, r, planner.KindCancelled)
}

func (h *Handler) retireQuest(w http.ResponseWriter, r *http.Request, kind planner.RecordKind) {
	req, q, ok := h.loadTransitionTarget(w, r)
	if !ok {
		return
	}

	q.UpdatedAt = time.Now().UnixMilli()
	rec, err := h.Store.CreateRecord(r.Context(), kind, q, req.Reason, decimal.Zero)
	if err != nil {
		writeError(w, statusFor(err), "Failed to record "+kind.String()+" quest", err)
		return
	}
	if err := h.Store.DeleteLiveQuest(r.Context(), q); err != nil {
		writeError(w, statusFor(err), "Failed to retire quest", err)
		return
	}

	writeJSON(w, http.StatusOK, toRecordDTO(rec))
}

// SetGrace sets or clears the per-instance grace override consulted by the
// rollover sweep.
func (h *Handler) SetGrace(w http.ResponseWriter, r *http.Request) {
	req, q, ok := h.loadTransitionTarget(w, r)
	if !ok {
		return
	}
	if req.GraceMinutes != nil && *req.GraceMinutes < 0 {
		writeError(w, http.StatusBadRequest, "grace_minutes must be >= 0", nil)
		return
	}

	q.GraceMinutes = req.GraceMinutes
	saved, err := h.Store.Save(r.Context(), q)
	if err != nil {
		writeError(w, statusFor(err), "Failed to update grace", err)
		return
	}
	writeJSON(w, http.StatusOK, toLiveQuestDTO(saved, h.Config.Location()))
}

// loadTransitionTarget decodes the shared transition body and resolves the
// addressed live instance. Writes the error response itself on failure.
func (h *Handler) loadTransitionTarget(w http.ResponseWriter, r *http.Request) (TransitionRequest, *planner.LiveQuest, bool) {
	var req TransitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return req, nil, false
	}
	if req.LiveKey == "" {
		writeError(w, http.StatusBadRequest, "Missing live_key", nil)
		return req, nil, false
	}

	q, err := h.Store.FindByDayAndLiveKey(r.Context(), planner.DayIndexOf(req.Day), req.LiveKey)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load quest", err)
		return req, nil, false
	}
	if q == nil {
		writeError(w, http.StatusNotFound, "Quest not found", nil)
		return req, nil, false
	}
	return req, q, true
}

// =============================================================================
// ROLLOVER HANDLERS
// =============================================================================

// TriggerRollover closes a day for a user: overdue instances fail into
// records and the next day is materialized. The run is persisted for audit.
func (h *Handler) TriggerRollover(w http.ResponseWriter, r *http.Request) {
	var req RolloverRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.User == "" {
		writeError(w, http.StatusBadRequest, "Missing user", nil)
		return
	}

	ctx := r.Context()
	now := time.Now()
	today := planner.DayIndexAt(now, h.Config)

	fromDay := today.MinusDays(1)
	if req.FromDay != nil {
		fromDay = planner.DayIndexOf(*req.FromDay)
	}
	window := planner.BuildWindow(fromDay, h.Config)

	run := sqlite.RolloverRun{
		User:      planner.UserKey(req.User),
		FromDay:   fromDay,
		ToDay:     fromDay.PlusDays(1),
		Status:    sqlite.RunPending,
		StartedAt: now.UnixMilli(),
	}

	records, err := h.Sweeper.RunRollover(ctx, planner.UserKey(req.User), window, now.UnixMilli())
	if err != nil {
		run.Status = sqlite.RunFailed
		run.Error = err.Error()
		run.FailedCount = len(records)
		_ = h.Store.SaveRolloverRun(ctx, run)
		writeError(w, statusFor(err), "Rollover failed", err)
		return
	}

	run.Status = sqlite.RunCompleted
	run.FailedCount = len(records)
	run.CompletedAt = time.Now().UnixMilli()
	if err := h.Store.SaveRolloverRun(ctx, run); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to persist rollover run", err)
		return
	}

	opened, err := h.Store.FindLiveQuestsByDay(ctx, run.ToDay)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to inspect opened day", err)
		return
	}

	writeJSON(w, http.StatusOK, RolloverResultDTO{
		User:    req.User,
		FromDay: fromDay.Int64(),
		ToDay:   run.ToDay.Int64(),
		Failed:  toRecordDTOs(records),
		Opened:  len(opened),
	})
}

// ListRolloverRuns returns the sweep audit trail for a user.
func (h *Handler) ListRolloverRuns(w http.ResponseWriter, r *http.Request) {
	user := planner.UserKey(r.URL.Query().Get("user"))
	if user == "" {
		writeError(w, http.StatusBadRequest, "Missing user query parameter", nil)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	runs, err := h.Store.ListRolloverRuns(r.Context(), user, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list rollover runs", err)
		return
	}

	dtos := make([]RolloverRunDTO, 0, len(runs))
	for _, run := range runs {
		dtos = append(dtos, toRolloverRunDTO(run))
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": dtos})
}

// =============================================================================
// TEMPLATE HANDLERS
// =============================================================================

// SetSkipWeekday installs a weekday skip mask.
func (h *Handler) SetSkipWeekday(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeSkipWeekday(w, r)
	if !ok {
		return
	}

	err := h.Store.SetSkipWeekday(r.Context(),
		planner.DefinitionID(req.DefinitionID), planner.RuleID(req.RuleID), time.Weekday(req.Weekday))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to install skip mask", err)
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

// ClearSkipWeekday removes a weekday skip mask.
func (h *Handler) ClearSkipWeekday(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeSkipWeekday(w, r)
	if !ok {
		return
	}

	err := h.Store.ClearSkipWeekday(r.Context(),
		planner.DefinitionID(req.DefinitionID), planner.RuleID(req.RuleID), time.Weekday(req.Weekday))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to clear skip mask", err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func decodeSkipWeekday(w http.ResponseWriter, r *http.Request) (SkipWeekdayRequest, bool) {
	var req SkipWeekdayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return req, false
	}
	if req.DefinitionID == "" {
		writeError(w, http.StatusBadRequest, "Missing definition_id", nil)
		return req, false
	}
	if req.Weekday < 0 || req.Weekday > 6 {
		writeError(w, http.StatusBadRequest, "weekday must be 0 (Sunday) .. 6 (Saturday)", nil)
		return req, false
	}
	return req, true
}

// ResetDatabase clears all data (dev only).
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "reset"})
}

// =============================================================================
// HELPERS
// =============================================================================

func parseDay(w http.ResponseWriter, r *http.Request) (planner.DayIndex, bool) {
	raw := chi.URLParam(r, "day")
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid day number: "+raw, err)
		return 0, false
	}
	return planner.DayIndexOf(n), true
}

func recordKindByName(name string) (planner.RecordKind, bool) {
	for _, kind := range []planner.RecordKind{
		planner.KindCompleted, planner.KindFailed, planner.KindCancelled, planner.KindSkipped,
	} {
		if kind.String() == name || string(kind) == name {
			return kind, true
		}
	}
	return "", false
}

func statusFor(err error) int {
	switch {
	case planner.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, planner.ErrDuplicateLiveQuest):
		return http.StatusConflict
	case planner.IsUnsupported(err):
		return http.StatusNotImplemented
	case planner.IsClientError(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
