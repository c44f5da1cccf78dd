package main

import (
	"context"
	"errors"
	"os"
	"time"

	"dinamifin/internal/amqp"
	"dinamifin/internal/cli"
	"dinamifin/internal/log"
	gsheet "dinamifin/internal/sheets/google"
	"dinamifin/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	cfg, logger := cli.LoadAndValidateConfig()
	logger.Info("Starting dinamifin-worker")

	if !cfg.AMQPEnabled() {
		logger.Error("AMQP_URL is required for the worker")
		os.Exit(1)
	}

	journal, err := gsheet.NewJournal(context.Background(), cfg.GoogleSpreadsheetID, cfg.GoogleSheetName, logger)
	if err != nil {
		logger.Error("Failed to initialize Google Sheets journal", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Google Sheets journal initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID, "sheet", cfg.GoogleSheetName)

	bus, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}

	mirror := worker.NewMirrorWorker(journal, logger)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(context.Context) {
		if err := bus.Close(); err != nil {
			logger.Error("AMQP close error", log.FieldError, err)
		}
	})

	if err := mirror.Run(ctx, bus); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", log.FieldError, err)
		_ = bus.Close()
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	mirrored, skipped := mirror.Stats()
	logger.Info("Worker shutdown complete", "mirrored", mirrored, "skipped", skipped)
}
