package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"roomies/internal/backend"
	"roomies/internal/cache"
	"roomies/internal/cli"
	apphttp "roomies/internal/http"
	applog "roomies/internal/log"
	"roomies/internal/metrics"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))
	cfg := cli.LoadAndValidateConfig(logger)

	m := metrics.New()

	backendConfig, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", applog.FieldError, err)
		os.Exit(1)
	}
	result, err := backend.NewFactory(logger, m).CreateBackend(context.Background(), backendConfig)
	if err != nil {
		logger.Error("Failed to create backend", applog.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}

	caches := cache.NewManager(logger)
	caches.Register(result.Service.MemberCache())
	caches.StartCleanup(10 * time.Minute)

	srv := apphttp.NewServer(":"+cfg.Port, result.Service, apphttp.Options{
		Logger:             logger,
		Metrics:            m,
		CurrencySymbol:     cfg.CurrencySymbol,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		TrustedProxies:     cfg.TrustedProxies,
	})
	srv.MaxHeaderBytes = 1 << 16

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 25*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", applog.FieldError, err)
		}
		caches.Stop()
		if err := result.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", applog.FieldError, err)
		}
	})

	logger.Info("Starting roomies server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"events", result.Publisher != nil)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", applog.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
