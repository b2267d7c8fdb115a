/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the EcoSteps credit engine server. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load .env (if present) and read environment
  2. Build zap logger
  3. Initialize SQLite store, seed demo catalog if empty
  4. Wire ledger, tracker, voucher issuer, redemption workflow
  5. Start expiry sweep and HTTP server with graceful shutdown

CONFIGURATION (environment, .env supported):
  PORT              HTTP server port (default: 8080)
  DB_PATH           SQLite database path (default: ecosteps.db,
                    ":memory:" for in-memory)
  LOG_LEVEL         zap level: debug, info, warn, error (default: info)
  PARTNER_PROFILES  Optional YAML file overriding partner issuance profiles
  SEED_CATALOG      Set to "false" to skip demo catalog seeding

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the expiry sweep and close the database
  4. Exit

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ecosteps/credit-engine/achievement"
	"github.com/ecosteps/credit-engine/activity"
	"github.com/ecosteps/credit-engine/api"
	"github.com/ecosteps/credit-engine/credit"
	"github.com/ecosteps/credit-engine/redemption"
	"github.com/ecosteps/credit-engine/store/sqlite"
	"github.com/ecosteps/credit-engine/voucher"
)

func main() {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	logger := newLogger(envOr("LOG_LEVEL", "info"))
	defer logger.Sync()

	dbPath := envOr("DB_PATH", "ecosteps.db")
	store, err := sqlite.New(dbPath)
	if err != nil {
		logger.Fatal("failed to initialize database", zap.Error(err))
	}
	defer store.Close()

	if envOr("SEED_CATALOG", "true") != "false" {
		if err := api.SeedCatalog(context.Background(), store, logger); err != nil {
			logger.Warn("catalog seeding failed", zap.Error(err))
		}
	}

	// Domain wiring
	ledger := credit.NewLedger(store)
	evaluator := achievement.NewEvaluator(store.Achievements(), logger)
	tracker := activity.NewTracker(ledger, evaluator)

	issuer := voucher.NewService()
	if path := os.Getenv("PARTNER_PROFILES"); path != "" {
		if err := voucher.LoadProfileOverrides(issuer, path); err != nil {
			logger.Fatal("failed to load partner profiles",
				zap.String("path", path), zap.Error(err))
		}
		logger.Info("loaded partner profile overrides", zap.String("path", path))
	}

	workflow := redemption.NewWorkflow(ledger, store, store, issuer, logger)

	handler := &api.Handler{
		Ledger:       ledger,
		Tracker:      tracker,
		Catalog:      store,
		Workflow:     workflow,
		Eligibility:  workflow.Eligibility,
		Achievements: store.Achievements(),
		Users:        store,
		Sessions:     api.NewMemorySessionStore(),
		Logger:       logger,
	}

	sweep := api.NewExpirySweep(workflow, logger)
	sweep.Start()
	defer sweep.Stop()

	router := api.NewRouter(handler)

	port := envOr("PORT", "8080")
	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting",
			zap.String("addr", server.Addr),
			zap.String("db", dbPath))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func newLogger(level string) *zap.Logger {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = zapcore.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := cfg.Build()
	if err != nil {
		panic(err)
	}
	return logger
}
