/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the quest engine server. Handles configuration,
  dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags
  2. Build the day configuration (timezone + rollover hour)
  3. Initialize SQLite store
  4. Create API handler with dependencies
  5. Start the rollover scheduler
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port           HTTP server port (default: 8080)
  -db             SQLite database path (default: quests.db)
                  Use ":memory:" for an in-memory database
  -tz             IANA timezone for day windows (default: Local)
  -rollover-hour  Local hour at which the logical day rolls (default: 4)
  -sweep-interval How often the scheduler checks for closable days
  -no-scheduler   Disable the background rollover scheduler

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the scheduler
  4. Close database connection
  5. Exit

EXAMPLES:
  # Run with file database, 4am rollover in New York time
  ./server -db=./data/quests.db -tz=America/New_York -rollover-hour=4

  # Run with in-memory database, no background sweeps
  ./server -db=:memory: -no-scheduler

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/warp/quest-engine/api"
	"github.com/warp/quest-engine/planner"
	"github.com/warp/quest-engine/store/sqlite"
)

func main() {
	// Flags
	port := flag.Int("port", 8080, "HTTP server port")
	dbPath := flag.String("db", "quests.db", "SQLite database path")
	tzName := flag.String("tz", "Local", "IANA timezone for day windows")
	rolloverHour := flag.Int("rollover-hour", 4, "local hour at which the logical day rolls (0-23)")
	sweepInterval := flag.Duration("sweep-interval", 15*time.Minute, "rollover scheduler check interval")
	noScheduler := flag.Bool("no-scheduler", false, "disable the background rollover scheduler")
	flag.Parse()

	// Day configuration
	loc, err := time.LoadLocation(*tzName)
	if err != nil {
		log.Fatalf("Unknown timezone %q: %v", *tzName, err)
	}
	cfg, err := planner.NewConfig(loc, *rolloverHour)
	if err != nil {
		log.Fatalf("Invalid day configuration: %v", err)
	}

	// Initialize store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	// Initialize handler
	handler, err := api.NewHandler(store, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize handler: %v", err)
	}

	// Background rollover scheduler
	scheduler := api.NewRolloverScheduler(store, handler)
	scheduler.CheckInterval = *sweepInterval
	scheduler.Enabled = !*noScheduler
	scheduler.Start()
	defer scheduler.Stop()

	// Create router
	router := api.NewRouter(handler)

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Server starting on http://localhost:%d (tz=%s rollover=%02d:00)", *port, cfg.Zone(), cfg.RolloverHour())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}
