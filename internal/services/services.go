// Package services implements the project, time entry, task name and report
// use cases on top of a storage.Store.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"timetrack/internal/cache"
	"timetrack/internal/core"
	"timetrack/internal/events"
	"timetrack/internal/storage"

	"github.com/google/uuid"
)

// Options tune the service set. Zero values pick defaults.
type Options struct {
	Clock          core.Clock
	ReportCacheTTL time.Duration
	// ReportCacheSize bounds the number of cached reports.
	ReportCacheSize int
	Logger          *slog.Logger
}

// Services bundles the use cases sharing one store and one event bus.
type Services struct {
	Projects    *ProjectService
	TimeEntries *TimeEntryService
	TaskNames   *TaskNameService
	Reports     *ReportService

	store        storage.Store
	bus          *events.Bus
	cacheManager *cache.Manager
	reportCache  *cache.LRUCache[Report]
}

func New(store storage.Store, bus *events.Bus, opts Options) *Services {
	if opts.Clock == nil {
		opts.Clock = core.SystemClock
	}
	if opts.ReportCacheTTL <= 0 {
		opts.ReportCacheTTL = time.Minute
	}
	if opts.ReportCacheSize <= 0 {
		opts.ReportCacheSize = 32
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if bus == nil {
		bus = events.NewBus()
	}

	reportCache := cache.NewLRUCache[Report](opts.ReportCacheSize, opts.ReportCacheTTL)
	manager := cache.NewManager(opts.Logger)
	manager.Register(reportCache)
	manager.StartCleanup(opts.ReportCacheTTL)

	taskNames := NewTaskNameService(store, bus, opts.Clock)
	return &Services{
		Projects:     NewProjectService(store, bus, opts.Clock),
		TimeEntries:  NewTimeEntryService(store, taskNames, bus, opts.Clock),
		TaskNames:    taskNames,
		Reports:      NewReportService(store, reportCache, bus, opts.Clock),
		store:        store,
		bus:          bus,
		cacheManager: manager,
		reportCache:  reportCache,
	}
}

// Bus returns the event bus the services publish to.
func (s *Services) Bus() *events.Bus {
	return s.bus
}

// ReportCacheStats returns the report cache hit and miss counts.
func (s *Services) ReportCacheStats() (hits, misses uint64) {
	if s.reportCache == nil {
		return 0, 0
	}
	return s.reportCache.Stats()
}

// Ping checks that the store is reachable.
func (s *Services) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// Close stops background cache cleanup, detaches the report cache from the
// bus and closes the store.
func (s *Services) Close() error {
	var errs []error

	if s.cacheManager != nil {
		s.cacheManager.Stop()
	}
	if s.Reports != nil {
		s.Reports.Close()
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close services: %w", errors.Join(errs...))
	}
	return nil
}

func newID() string {
	return uuid.NewString()
}

// translate maps storage sentinels onto domain error kinds. Anything
// unrecognised becomes Internal and keeps the cause for logging.
func translate(entity core.Entity, id string, err error) error {
	if err == nil {
		return nil
	}
	var ce *core.Error
	if errors.As(err, &ce) {
		return err
	}
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return core.NotFound(entity, id)
	case errors.Is(err, storage.ErrActiveTimerExists):
		return core.ActiveTimerExists("")
	default:
		return core.Internal(entity, err)
	}
}

func publish(ctx context.Context, p events.Publisher, t events.Type, entityID string) {
	p.Publish(ctx, events.New(t, entityID))
}
