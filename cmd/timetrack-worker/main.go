package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"timetrack/internal/amqp"
	"timetrack/internal/backend"
	"timetrack/internal/cli"
	"timetrack/internal/log"
	"timetrack/internal/metrics"
	"timetrack/internal/services"
	"timetrack/internal/sheets"
	gsheet "timetrack/internal/sheets/google"
	memsheets "timetrack/internal/sheets/memory"
	"timetrack/internal/worker"

	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, cfgErr := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg, os.Stdout).WithComponent(log.ComponentWorker)
	ctx := context.Background()
	if cfgErr != nil {
		logger.ErrorContext(ctx, "Configuration validation failed", log.FieldError, cfgErr.Error())
		os.Exit(1)
	}
	if !cfg.AMQPEnabled() {
		logger.ErrorContext(ctx, "AMQP_URL is required for the worker")
		os.Exit(1)
	}

	logger.InfoContext(ctx, "Starting timetrack-worker", log.FieldOperation, log.OpStartup)
	if cfg.DataBackend == "memory" {
		logger.WarnContext(ctx, "Memory backend does not share entries with the API process; use sqlite")
	}

	store, err := backend.Open(ctx, cfg, logger)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to open store", log.FieldError, err.Error())
		os.Exit(1)
	}
	svc := services.New(store, nil, services.Options{
		ReportCacheTTL: cfg.ReportCacheTTL,
		Logger:         logger.Logger,
	})
	defer svc.Close()

	sheetsLog := logger.WithComponent(log.ComponentSheets)
	var writer sheets.Writer
	if cfg.SheetsEnabled() {
		credsFile := cfg.GoogleServiceAccountFile
		if credsFile == "" {
			credsFile = cfg.GoogleApplicationCredentials
		}
		client, err := gsheet.New(ctx, gsheet.Options{
			SpreadsheetID:   cfg.GoogleSpreadsheetID,
			EntriesSheet:    cfg.GoogleSheetName,
			ReportSheet:     cfg.ReportSheetName,
			CredentialsJSON: cfg.GoogleServiceAccountJSON,
			CredentialsFile: credsFile,
		})
		if err != nil {
			sheetsLog.ErrorContext(ctx, "Failed to initialize Google Sheets client", log.FieldError, err.Error())
			os.Exit(1)
		}
		writer = client
		sheetsLog.InfoContext(ctx, "Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		writer = memsheets.New()
		sheetsLog.InfoContext(ctx, "Google Sheets disabled - writing to memory")
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.WithComponent(log.ComponentAMQP).ErrorContext(ctx, "Failed to initialize AMQP client", log.FieldError, err.Error())
		os.Exit(1)
	}
	defer amqpClient.Close()

	m := metrics.New()
	syncWorker := worker.NewSyncWorker(store, writer, m)
	scheduler := worker.NewReportScheduler(svc.Reports, writer, m, worker.ReportSchedulerConfig{
		Interval: cfg.SyncInterval,
		Period:   cfg.Period(),
	})

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", m.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	metricsSrv := &http.Server{
		Addr:              ":" + cfg.MetricsPort,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	runCtx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := scheduler.Stop(ctx); err != nil {
			logger.WarnContext(ctx, "Report scheduler stop error", log.FieldError, err.Error())
		}
		if err := metricsSrv.Shutdown(ctx); err != nil {
			logger.WarnContext(ctx, "Metrics server shutdown error", log.FieldError, err.Error())
		}
	})

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		return amqpClient.Consume(gctx, syncWorker.HandleMessage)
	})
	g.Go(func() error {
		go func() {
			<-gctx.Done()
			_ = metricsSrv.Shutdown(context.Background())
		}()
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		if err := scheduler.Start(gctx); err != nil {
			return err
		}
		<-gctx.Done()
		return gctx.Err()
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.NewStructuredLogger(logger).LogError(ctx, "Worker failed", err, log.ComponentWorker, log.OpSync, nil)
		os.Exit(1)
	}

	cli.WaitForShutdown(runCtx, done)
	logger.InfoContext(ctx, "Worker stopped gracefully")
}
