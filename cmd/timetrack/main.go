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
	"timetrack/internal/events"
	apphttp "timetrack/internal/http"
	"timetrack/internal/log"
	"timetrack/internal/metrics"
	"timetrack/internal/middleware/ratelimit"
	"timetrack/internal/services"
)

// observedPublisher counts relay outcomes.
type observedPublisher struct {
	amqp.EventPublisher
	metrics *metrics.Metrics
}

func (p observedPublisher) Publish(ctx context.Context, e events.Event) error {
	err := p.EventPublisher.Publish(ctx, e)
	p.metrics.ObservePublish(err)
	return err
}

func main() {
	cfg, cfgErr := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg, os.Stdout)
	ctx := context.Background()
	if cfgErr != nil {
		logger.ErrorContext(ctx, "Configuration validation failed", log.FieldError, cfgErr.Error())
		os.Exit(1)
	}

	store, err := backend.Open(ctx, cfg, logger)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to open store", log.FieldError, err.Error(), "backend", cfg.DataBackend)
		os.Exit(1)
	}

	m := metrics.New()
	bus := events.NewBus()
	svc := services.New(store, bus, services.Options{
		ReportCacheTTL: cfg.ReportCacheTTL,
		Logger:         logger.Logger,
	})
	if err := m.RegisterCacheStats("report", svc.ReportCacheStats); err != nil {
		logger.WarnContext(ctx, "Failed to register cache metrics", log.FieldError, err.Error())
	}

	eventLog := log.NewStructuredLogger(logger.WithComponent(log.ComponentEvents))
	bus.Subscribe(func(ctx context.Context, e events.Event) {
		eventLog.LogEvent(ctx, string(e.Type), e.EntityID)
		m.ObserveEvent(string(e.Type))
	})

	var amqpClient *amqp.Client
	if cfg.AMQPEnabled() {
		amqpLog := logger.WithComponent(log.ComponentAMQP)
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			// The relay is best effort; the API keeps serving without it
			amqpLog.WarnContext(ctx, "Failed to initialize AMQP client, continuing without relay", log.FieldError, err.Error())
		} else {
			bus.Subscribe(amqp.Relay(observedPublisher{EventPublisher: amqpClient, metrics: m}))
			amqpLog.InfoContext(ctx, "Relaying events to AMQP",
				"exchange", cfg.AMQPExchange,
				"queue", cfg.AMQPQueue)
		}
	}

	srv := apphttp.NewServer(cfg.Addr(), svc, apphttp.Options{
		Logger:         logger,
		Metrics:        m,
		RateLimit:      ratelimit.Config{RequestsPerMinute: cfg.RateLimitPerMinute},
		TrustedProxies: cfg.TrustedProxies,
	})

	// Configure server timeouts and limits
	srv.ReadHeaderTimeout = 5 * time.Second
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 30 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	shutdownCtx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.ErrorContext(ctx, "Server shutdown error", log.FieldError, err.Error())
		}
		if amqpClient != nil {
			if err := amqpClient.Close(); err != nil {
				logger.WarnContext(ctx, "AMQP close error", log.FieldError, err.Error())
			}
		}
		if err := svc.Close(); err != nil {
			logger.ErrorContext(ctx, "Service close error", log.FieldError, err.Error())
		}
	})

	logger.InfoContext(ctx, "Starting timetrack server",
		log.FieldOperation, log.OpStartup,
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"amqp_enabled", amqpClient != nil)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.ErrorContext(ctx, "Server error", log.FieldError, err.Error(), "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(shutdownCtx, done)
	logger.InfoContext(ctx, "Server stopped gracefully")
}
