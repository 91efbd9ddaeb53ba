/*
seed.go - Demo data loader for testing and demonstrations

PURPOSE:
  Populates the database with realistic quest definitions so the API can
  be exercised without hand-crafting JSON. The seed covers the interesting
  rule shapes: plain daily, multi-rule, weekly cadence, and a definition
  with a weekday skip mask.

USAGE VIA API:
  POST /api/admin/seed
  {"user": "demo"}

NOTE:
  Seeding resets the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: SeedDemo handler registration
  - factory/definition.go: Definition JSON schema
*/
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/warp/quest-engine/factory"
	"github.com/warp/quest-engine/planner"
)

// SeedDemo resets the database and loads the demo definitions for a user.
func (h *Handler) SeedDemo(w http.ResponseWriter, r *http.Request) {
	var req struct {
		User string `json:"user"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.User == "" {
		req.User = "demo"
	}

	ctx := r.Context()
	if err := h.Store.Reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}

	count, err := h.loadDemoDefinitions(ctx, req.User)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to seed definitions", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"user":        req.User,
		"definitions": count,
	})
}

func (h *Handler) loadDemoDefinitions(ctx context.Context, user string) (int, error) {
	defs := []factory.DefinitionJSON{
		{
			ID:       "morning-workout",
			Name:     "Morning workout",
			Owner:    user,
			Tags:     []string{"health"},
			Priority: "high",
			Rules: []factory.RuleJSON{
				{
					ID:      "daily",
					Cadence: factory.CadenceJSON{Amount: 1, Unit: "day"},
					Anchor:  &factory.AnchorJSON{Kind: "daily", Hour: intRef(9), Minute: intRef(30)},
				},
			},
		},
		{
			ID:           "medication",
			Name:         "Take medication",
			Owner:        user,
			Tags:         []string{"health"},
			Priority:     "critical",
			GraceMinutes: 120,
			Rules: []factory.RuleJSON{
				{
					ID:      "morning",
					Cadence: factory.CadenceJSON{Amount: 1, Unit: "day"},
					Anchor:  &factory.AnchorJSON{Kind: "daily", Hour: intRef(8), Minute: intRef(0)},
				},
				{
					ID:      "evening",
					Cadence: factory.CadenceJSON{Amount: 1, Unit: "day"},
					Anchor:  &factory.AnchorJSON{Kind: "daily", Hour: intRef(20), Minute: intRef(0)},
				},
			},
		},
		{
			ID:       "weekly-review",
			Name:     "Weekly review",
			Owner:    user,
			Priority: "normal",
			Rules: []factory.RuleJSON{
				{
					ID:      "review",
					Cadence: factory.CadenceJSON{Amount: 1, Unit: "week"},
					Anchor:  &factory.AnchorJSON{Kind: "daily", Hour: intRef(17), Minute: intRef(0)},
				},
			},
		},
		{
			ID:       "practice-guitar",
			Name:     "Practice guitar",
			Owner:    user,
			Tags:     []string{"hobby"},
			Priority: "low",
			Rules: []factory.RuleJSON{
				{
					ID:      "session",
					Cadence: factory.CadenceJSON{Amount: 1, Unit: "day"},
					Anchor:  &factory.AnchorJSON{Kind: "daily", Hour: intRef(21), Minute: intRef(0)},
				},
			},
		},
	}

	for _, dj := range defs {
		def, err := h.Factory.FromJSON(dj)
		if err != nil {
			return 0, err
		}
		if err := h.Store.SaveDefinition(ctx, def); err != nil {
			return 0, err
		}
	}

	// Weekends off for the workout.
	for _, wd := range []time.Weekday{time.Saturday, time.Sunday} {
		if err := h.Store.SetSkipWeekday(ctx, planner.DefinitionID("morning-workout"), "", wd); err != nil {
			return 0, err
		}
	}

	return len(defs), nil
}

func intRef(n int) *int { return &n }
