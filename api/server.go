/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/definitions/*    Definition management
  /api/plan/*           Day materialization
  /api/windows/*        Day-window inspection
  /api/days/*           Per-day quests and history
  /api/users/*          Point balances
  /api/quests/*         Status transitions
  /api/admin/*          Rollover, skip masks, demo seed
  /api/reset            Database reset (dev only)

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Definition routes
		r.Route("/definitions", func(r chi.Router) {
			r.Get("/", h.ListDefinitions)
			r.Post("/", h.CreateDefinition)
			r.Get("/{id}", h.GetDefinition)
			r.Delete("/{id}", h.DeleteDefinition)
		})

		// Planning routes
		r.Route("/plan", func(r chi.Router) {
			r.Post("/today", h.PlanToday)
			r.Post("/{day}", h.PlanDay)
		})

		// Window inspection
		r.Route("/windows", func(r chi.Router) {
			r.Get("/now", h.GetCurrentWindow)
			r.Get("/{day}", h.GetWindow)
		})

		// Per-day state
		r.Route("/days", func(r chi.Router) {
			r.Get("/{day}/quests", h.GetDayQuests)
			r.Get("/{day}/records", h.GetDayRecords)
		})

		// Quest transitions (instance addressed in the body)
		// Point balances
		r.Get("/users/{user}/balance", h.GetUserBalance)

		r.Route("/quests", func(r chi.Router) {
			r.Post("/start", h.StartQuest)
			r.Post("/complete", h.CompleteQuest)
			r.Post("/skip", h.SkipQuest)
			r.Post("/cancel", h.CancelQuest)
			r.Post("/grace", h.SetGrace)
		})

		// Rollover routes
		r.Route("/rollover", func(r chi.Router) {
			r.Get("/runs", h.ListRolloverRuns)
		})

		// Admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Post("/rollover", h.TriggerRollover)
			r.Post("/templates", h.SetSkipWeekday)
			r.Delete("/templates", h.ClearSkipWeekday)
			r.Post("/seed", h.SeedDemo)
		})

		r.Post("/reset", h.ResetDatabase)
	})

	// Index page listing the API surface.
	r.Get("/*", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<!DOCTYPE html>
<html>
<head><title>Quest Engine</title></head>
<body style="font-family: system-ui; max-width: 800px; margin: 50px auto; padding: 20px;">
<h1>Quest Engine API</h1>
<h2>API Endpoints</h2>
<ul>
<li><code>GET /api/definitions?user=</code> - List definitions</li>
<li><code>POST /api/plan/today?user=</code> - Materialize today</li>
<li><code>GET /api/windows/now</code> - Current day window</li>
<li><code>GET /api/days/{day}/quests</code> - Live instances</li>
<li><code>GET /api/days/{day}/records</code> - History records</li>
<li><code>POST /api/admin/rollover</code> - Close a day</li>
</ul>
</body>
</html>`))
	})

	return r
}
