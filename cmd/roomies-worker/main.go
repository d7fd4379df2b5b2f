package main

import (
	"context"
	"os"
	"time"

	"roomies/internal/amqp"
	"roomies/internal/backend"
	"roomies/internal/cli"
	applog "roomies/internal/log"
	"roomies/internal/metrics"
	"roomies/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT")).WithComponent(applog.ComponentWorker)
	cfg := cli.LoadAndValidateConfig(logger)

	logger.Info("Starting roomies-worker")

	// The worker reads what the web process wrote, so only the shared
	// SQLite database makes sense here.
	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	m := metrics.New()
	backendConfig, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", applog.FieldError, err)
		os.Exit(1)
	}
	exporter, err := backend.NewFactory(logger, m).CreateExporter(context.Background(), backendConfig)
	if err != nil {
		logger.Error("Failed to initialize exporter", applog.FieldError, err)
		os.Exit(1)
	}
	if cfg.GoogleSpreadsheetID == "" {
		logger.Info("Google Sheets disabled - exporting to memory", "reason", "no GOOGLE_SPREADSHEET_ID provided")
	}

	syncWorker := worker.NewSyncWorker(repo, exporter, m, logger)

	var source worker.EventSource
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", applog.FieldError, err)
			os.Exit(1)
		}
		defer client.Close()
		source = client
	} else {
		logger.Info("AMQP disabled - relying on periodic reconcile", "interval", cfg.SyncInterval)
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	if err := syncWorker.Run(ctx, source, cfg.SyncInterval); err != nil {
		logger.Error("Worker stopped with error", applog.FieldError, err)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped gracefully")
}
