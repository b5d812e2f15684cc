package main

import (
	"os"

	"finify/internal/cli"
	applog "finify/internal/log"
	"finify/internal/sheets"
	gsheet "finify/internal/sheets/google"
	mem "finify/internal/sheets/memory"
	"finify/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	cfg, logger := cli.LoadAndValidateConfig()
	logger.Info("Starting finify-worker")

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	be := cli.InitBackend(ctx, logger, cfg)
	defer func() {
		if err := be.Close(); err != nil {
			logger.Error("Failed to close backend", applog.FieldError, err)
		}
	}()

	var exporter sheets.SummaryExporter
	if cfg.ExportEnabled() {
		client, err := gsheet.New(ctx, gsheet.Config{
			SpreadsheetID:      cfg.GoogleSpreadsheetID,
			SheetName:          cfg.GoogleSummarySheetName,
			ServiceAccountJSON: cfg.GoogleServiceAccountJSON,
			ServiceAccountFile: cfg.GoogleServiceAccountFile,
		}, logger)
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", applog.FieldError, err)
			os.Exit(1)
		}
		exporter = client
		logger.Info("Google Sheets export enabled", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		exporter = mem.New()
		logger.Info("Google Sheets disabled - summaries kept in memory")
	}

	var sub worker.Subscriber
	if client := cli.InitAMQP(logger, cfg, cfg.AMQPQueue+"_export"); client != nil {
		defer client.Close()
		sub = client
	}

	w := worker.NewExportWorker(be.Snapshots, exporter, cfg.UserID, cfg.ExportInterval, logger)
	if err := w.Run(ctx, sub); err != nil && ctx.Err() == nil {
		logger.Error("Export worker stopped", applog.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Worker stopped gracefully")
}
