/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the levy engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load .env (if present) and parse command-line flags
  2. Initialize structured logger
  3. Initialize SQLite store and provision built-in years
  4. Start the years file scheduler (if a file is configured)
  5. Configure HTTP router
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS (environment variable in brackets provides the default):
  -port           HTTP server port [PORT] (default: 8080)
  -db             SQLite database path [LEVY_DB] (default: levy.db)
                  Use ":memory:" for in-memory database
  -years-file     YAML years file kept in sync [LEVY_YEARS_FILE]
  -sync-interval  Years file check interval [LEVY_SYNC_INTERVAL] (default: 1m)
  -seed-presets   Provision built-in years missing from the store
                  [LEVY_SEED_PRESETS] (default: true)
  -cors-origins   Comma-separated allowed origins [LEVY_CORS_ORIGINS]
  -log-level      debug, info, warn or error [LOG_LEVEL] (default: info)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the years file scheduler
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close database connection

EXAMPLES:
  # Run with file database
  ./server -db="./data/levy.db"

  # Run in memory with a years file
  ./server -db=":memory:" -years-file=config/years.yaml

SEE ALSO:
  - api/server.go: Router configuration
  - api/scheduler.go: Years file synchronization
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/warp/levy-engine/api"
	"github.com/warp/levy-engine/factory"
	"github.com/warp/levy-engine/store/sqlite"
)

func main() {
	// A missing .env is normal outside development
	_ = godotenv.Load()

	// Flags
	port := flag.Int("port", envInt("PORT", 8080), "HTTP server port")
	dbPath := flag.String("db", envString("LEVY_DB", "levy.db"), "SQLite database path")
	yearsFile := flag.String("years-file", envString("LEVY_YEARS_FILE", ""), "YAML years file kept in sync with the store")
	syncInterval := flag.Duration("sync-interval", envDuration("LEVY_SYNC_INTERVAL", time.Minute), "Years file check interval")
	seedPresets := flag.Bool("seed-presets", envBool("LEVY_SEED_PRESETS", true), "Provision built-in years missing from the store")
	corsOrigins := flag.String("cors-origins", envString("LEVY_CORS_ORIGINS", ""), "Comma-separated allowed CORS origins")
	logLevel := flag.String("log-level", envString("LOG_LEVEL", "info"), "Log level")
	flag.Parse()

	logger := initLogger(parseLevel(*logLevel))

	if err := run(logger, config{
		port:         *port,
		dbPath:       *dbPath,
		yearsFile:    *yearsFile,
		syncInterval: *syncInterval,
		seedPresets:  *seedPresets,
		corsOrigins:  splitList(*corsOrigins),
	}); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}

type config struct {
	port         int
	dbPath       string
	yearsFile    string
	syncInterval time.Duration
	seedPresets  bool
	corsOrigins  []string
}

func run(logger *slog.Logger, cfg config) error {
	// Initialize store
	store, err := sqlite.New(cfg.dbPath)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer store.Close()

	if cfg.seedPresets {
		presets, err := factory.Presets()
		if err != nil {
			return err
		}
		added, err := store.SeedYearConfigs(context.Background(), presets)
		if err != nil {
			return fmt.Errorf("failed to provision built-in years: %w", err)
		}
		if len(added) > 0 {
			logger.Info("provisioned built-in years", "years", added)
		}
	}

	// Years file scheduler
	scheduler := api.NewYearFileScheduler(store, cfg.yearsFile, logger)
	scheduler.CheckInterval = cfg.syncInterval
	scheduler.Start()
	defer scheduler.Stop()

	// Create router
	handler := api.NewHandler(store, logger)
	router := api.NewRouter(handler, api.RouterOptions{AllowedOrigins: cfg.corsOrigins})

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", "addr", server.Addr, "db", cfg.dbPath)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case <-quit:
	}

	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}

// =============================================================================
// ENVIRONMENT HELPERS
// =============================================================================

func initLogger(level slog.Level) *slog.Logger {
	l := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(l)
	return l
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
