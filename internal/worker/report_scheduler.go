package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"timetrack/internal/core"
	"timetrack/internal/report"
	"timetrack/internal/sheets"
)

// ReportSchedulerConfig holds configuration for the report scheduler
type ReportSchedulerConfig struct {
	// Interval is how often the report tab is rewritten (default: 5m)
	Interval time.Duration

	// Period selects the window exported on every run (default: week)
	Period core.Period
}

func DefaultReportSchedulerConfig() ReportSchedulerConfig {
	return ReportSchedulerConfig{
		Interval: 5 * time.Minute,
		Period:   core.PeriodWeek,
	}
}

// RowSource produces export rows for a period. *services.ReportService
// satisfies it.
type RowSource interface {
	Rows(ctx context.Context, period core.Period) ([]report.Row, error)
}

// ReportScheduler periodically overwrites the report tab with the rows of
// the configured period.
type ReportScheduler struct {
	source   RowSource
	sheets   sheets.ReportWriter
	observer WriteObserver
	config   ReportSchedulerConfig

	// Lifecycle management
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewReportScheduler(source RowSource, writer sheets.ReportWriter, observer WriteObserver, config ReportSchedulerConfig) *ReportScheduler {
	if config.Interval <= 0 {
		config.Interval = DefaultReportSchedulerConfig().Interval
	}
	if config.Period == "" {
		config.Period = DefaultReportSchedulerConfig().Period
	}
	return &ReportScheduler{
		source:   source,
		sheets:   writer,
		observer: observer,
		config:   config,
	}
}

// Start begins the scheduling loop. Returns an error if already running.
func (s *ReportScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("report scheduler is already running")
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.mu.Unlock()

	go s.runLoop(ctx)

	slog.InfoContext(ctx, "Report scheduler started",
		"interval", s.config.Interval,
		"period", s.config.Period)
	return nil
}

// Stop signals the loop and waits for it to finish or ctx to expire.
func (s *ReportScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	stopCh, doneCh := s.stopCh, s.doneCh
	s.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
		slog.InfoContext(ctx, "Report scheduler stopped gracefully")
	case <-ctx.Done():
		slog.WarnContext(ctx, "Report scheduler stop timed out")
		return ctx.Err()
	}

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
	return nil
}

func (s *ReportScheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *ReportScheduler) runLoop(ctx context.Context) {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	// Publish immediately on startup
	s.runOnce(ctx)

	for {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *ReportScheduler) runOnce(ctx context.Context) {
	if err := s.Publish(ctx); err != nil {
		slog.ErrorContext(ctx, "Failed to publish report", "period", s.config.Period, "error", err)
	}
}

// Publish writes the current report once.
func (s *ReportScheduler) Publish(ctx context.Context) error {
	rows, err := s.source.Rows(ctx, s.config.Period)
	if err != nil {
		return fmt.Errorf("build report rows: %w", err)
	}

	err = s.sheets.WriteReport(ctx, rows)
	if s.observer != nil {
		s.observer.ObserveSheetsWrite("report", err)
	}
	if err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	slog.InfoContext(ctx, "Report published",
		"period", s.config.Period,
		"rows", len(rows))
	return nil
}
