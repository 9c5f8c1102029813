package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"

	"timetrack/internal/amqp"
	"timetrack/internal/backend"
	"timetrack/internal/cli"
	"timetrack/internal/events"
	"timetrack/internal/log"
	"timetrack/internal/services"
	"timetrack/internal/storage"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "timetrackctl"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := execute(context.Background(), openServices, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// openServices builds the service set from the environment, logging to
// stderr so command output stays clean.
func openServices(ctx context.Context, logLevel string) (*services.Services, func(), error) {
	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		return nil, nil, err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	logger := cli.SetupLogger(cfg, os.Stderr).WithComponent(log.ComponentCLI)

	store, err := backend.Open(ctx, cfg, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}

	var publisher amqp.EventPublisher
	release := func() {}
	if cfg.AMQPEnabled() {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.WarnContext(ctx, "AMQP unavailable, changes will not reach the worker", log.FieldError, err.Error())
		} else {
			publisher = client
			release = func() { _ = client.Close() }
		}
	}
	return newServices(store, publisher, logger.Logger), release, nil
}

// newServices wires the command's services. With a publisher, every change
// event is relayed to the broker.
func newServices(store storage.Store, publisher amqp.EventPublisher, logger *slog.Logger) *services.Services {
	bus := events.NewBus()
	if publisher != nil {
		bus.Subscribe(amqp.Relay(publisher))
	}
	return services.New(store, bus, services.Options{Logger: logger})
}
