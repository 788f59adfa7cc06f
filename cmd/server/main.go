/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the FinanSheet commitment engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load .env (if present) and parse command-line flags
  2. Initialize SQLite store
  3. Create API handler with dependencies
  4. Configure HTTP router
  5. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port    HTTP server port (default: 8080, or PORT env)
  -db      SQLite database path (default: finansheet.db, or DATABASE_PATH)
           Use ":memory:" for an in-memory database
  -env     Path to a .env file to overlay onto the environment

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/finansheet.db"

  # Run with in-memory database
  ./server -db=":memory:"

  # Run on different port
  ./server -port=3000

ENVIRONMENT:
  PORT, DATABASE_PATH, LOG_LEVEL, LOG_FORMAT. Flags take precedence
  over the environment; the environment over defaults.

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
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/finansheet/commitment-engine/api"
	"github.com/finansheet/commitment-engine/internal/logging"
	"github.com/finansheet/commitment-engine/store/sqlite"
)

func main() {
	envFile := flag.String("env", "", "path to .env file")
	port := flag.Int("port", defaultPort(), "HTTP server port")
	dbPath := flag.String("db", defaultDBPath(), "SQLite database path")
	flag.Parse()

	if *envFile != "" {
		if err := godotenv.Load(*envFile); err != nil {
			fmt.Fprintf(os.Stderr, "failed to load env file %s: %v\n", *envFile, err)
			os.Exit(1)
		}
	} else {
		// Best effort: a missing .env is not an error.
		_ = godotenv.Load()
	}

	log := logging.New()

	// Initialize store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize database")
	}
	defer store.Close()

	// Initialize handler and router
	handler := api.NewHandler(store, log)
	router := api.NewRouter(handler)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.WithField(logging.FieldPort, *port).
			WithField(logging.FieldDatabase, *dbPath).
			Info("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.WithError(err).Fatal("server forced to shutdown")
	}

	log.Info("server stopped")
}

func defaultPort() int {
	if raw := os.Getenv("PORT"); raw != "" {
		if p, err := strconv.Atoi(raw); err == nil {
			return p
		}
	}
	return 8080
}

func defaultDBPath() string {
	if path := os.Getenv("DATABASE_PATH"); path != "" {
		return path
	}
	return "finansheet.db"
}
