// Package cli provides common CLI initialization utilities shared by
// cmd/roomies and cmd/roomies-worker.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"roomies/internal/config"
	applog "roomies/internal/log"
	"roomies/internal/storage"
)

// SetupLogger builds the application logger from LOG_LEVEL and LOG_FORMAT
// and installs it as the slog default.
func SetupLogger(level, format string) *applog.Logger {
	logger := applog.New(applog.Config{
		Level:     applog.ParseLevel(level),
		Format:    format,
		Component: applog.ComponentApp,
		Output:    os.Stdout,
	})
	applog.SetDefault(logger)
	return logger
}

// LoadEnvFile loads variables from ENV_FILE, or .env when unset, without
// overriding the real environment. A missing file is not an error.
func LoadEnvFile() {
	path := os.Getenv("ENV_FILE")
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); err != nil {
		return
	}
	_ = godotenv.Load(path)
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig(logger *applog.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", applog.FieldError, err)
		os.Exit(1)
	}
	return cfg
}

// InitSQLite opens the ledger database and applies pending migrations,
// exiting the process when either fails.
func InitSQLite(logger *applog.Logger, dbPath string) *storage.SQLiteRepository {
	repo, err := storage.NewSQLiteRepository(dbPath)
	if err != nil {
		logger.Error("Failed to open ledger database", applog.FieldError, err, "path", dbPath)
		os.Exit(1)
	}
	logger.Info("Ledger database ready", "path", dbPath, "schema_version", repo.SchemaVersion())
	return repo
}

// GracefulShutdown returns a context cancelled on SIGINT or SIGTERM. After
// the signal, cleanup runs with at most timeout to finish; done is closed
// once it returns or the timeout expires.
func GracefulShutdown(logger *applog.Logger, timeout time.Duration, cleanup func()) (context.Context, <-chan struct{}) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	done := make(chan struct{})

	go func() {
		defer close(done)
		<-ctx.Done()
		stop()
		logger.Info("Shutdown signal received", "timeout", timeout)

		if cleanup == nil {
			return
		}
		finished := make(chan struct{})
		go func() {
			defer close(finished)
			cleanup()
		}()

		timer := time.NewTimer(timeout)
		defer timer.Stop()
		select {
		case <-finished:
			logger.Info("Shutdown complete")
		case <-timer.C:
			logger.Warn("Shutdown timed out, exiting with cleanup pending")
		}
	}()

	return ctx, done
}

// WaitForShutdown blocks until shutdown has been signalled and cleanup
// has settled.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
