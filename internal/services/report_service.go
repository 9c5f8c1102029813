package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"timetrack/internal/cache"
	"timetrack/internal/core"
	"timetrack/internal/events"
	"timetrack/internal/report"
	"timetrack/internal/storage"

	"golang.org/x/sync/errgroup"
)

// Report is the grouped view of one period.
type Report struct {
	Period       core.Period       `json:"period" yaml:"period"`
	From         time.Time         `json:"from" yaml:"from"`
	To           time.Time         `json:"to" yaml:"to"`
	Rows         []core.GroupedRow `json:"rows" yaml:"rows"`
	TotalMinutes float64           `json:"totalMinutes" yaml:"totalMinutes"`
	GeneratedAt  time.Time         `json:"generatedAt" yaml:"generatedAt"`
}

// ReportStores is the read side ReportService needs.
type ReportStores interface {
	ListProjects(ctx context.Context) ([]core.Project, error)
	ListTimeEntries(ctx context.Context) ([]core.TimeEntry, error)
}

var _ ReportStores = (storage.Store)(nil)

type ReportService struct {
	store       ReportStores
	cache       cache.Cache[Report]
	clock       core.Clock
	unsubscribe func()
	// generation advances on every purge; a report computed across a purge
	// is returned but not cached.
	generation atomic.Uint64
}

// NewReportService wires the report pipeline. When bus is non-nil, every
// time entry or project change purges the cache.
func NewReportService(store ReportStores, c cache.Cache[Report], bus *events.Bus, clock core.Clock) *ReportService {
	if clock == nil {
		clock = core.SystemClock
	}
	s := &ReportService{store: store, cache: c, clock: clock}
	if bus != nil && c != nil {
		s.unsubscribe = bus.Subscribe(s.onEvent)
	}
	return s
}

func (s *ReportService) onEvent(ctx context.Context, e events.Event) {
	switch e.Type.Domain() {
	case "time_entry", "project":
		s.generation.Add(1)
		s.cache.Clear()
		slog.DebugContext(ctx, "Report cache purged", "event", e.Type)
	}
}

// Close detaches the service from the event bus.
func (s *ReportService) Close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
}

func cacheKey(p core.Period, from time.Time) string {
	return fmt.Sprintf("%s|%d", p, from.Unix())
}

// Report filters every entry to period relative to now and groups the rest
// by project.
func (s *ReportService) Report(ctx context.Context, period core.Period) (Report, error) {
	now := s.clock.Now()
	from, to := core.PeriodRange(period, now)
	key := cacheKey(period, from)

	if s.cache != nil {
		if r, ok := s.cache.Get(key); ok {
			return r, nil
		}
	}
	gen := s.generation.Load()

	var (
		entries  []core.TimeEntry
		projects []core.Project
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		entries, err = s.store.ListTimeEntries(gctx)
		if err != nil {
			return fmt.Errorf("list time entries: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		projects, err = s.store.ListProjects(gctx)
		if err != nil {
			return fmt.Errorf("list projects: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return Report{}, core.Internal(core.EntityTimeEntry, err)
	}

	rows := core.GroupByProject(core.FilterByPeriod(entries, period, now), projects)
	r := Report{
		Period:       period,
		From:         from,
		To:           to,
		Rows:         rows,
		TotalMinutes: core.TotalMinutes(rows),
		GeneratedAt:  now,
	}
	if s.cache != nil && s.generation.Load() == gen {
		s.cache.Set(key, r)
	}
	return r, nil
}

// Rows returns one export row per entry in report order.
func (s *ReportService) Rows(ctx context.Context, period core.Period) ([]report.Row, error) {
	r, err := s.Report(ctx, period)
	if err != nil {
		return nil, err
	}
	return report.Flatten(r.Rows), nil
}

// Export writes the CSV rendering of period to w.
func (s *ReportService) Export(ctx context.Context, period core.Period, w io.Writer) error {
	r, err := s.Report(ctx, period)
	if err != nil {
		return err
	}
	if err := report.WriteCSV(w, r.Rows); err != nil {
		return core.Internal(core.EntityTimeEntry, err)
	}
	return nil
}
