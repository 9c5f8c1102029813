package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"timetrack/internal/amqp"
	"timetrack/internal/core"
	"timetrack/internal/events"
	"timetrack/internal/report"
	"timetrack/internal/sheets"
	"timetrack/internal/storage"
)

// EntryLoader is the read side the sync worker needs.
type EntryLoader interface {
	GetTimeEntry(ctx context.Context, id string) (core.TimeEntry, error)
	GetProject(ctx context.Context, id string) (core.Project, error)
}

// WriteObserver records the outcome of each spreadsheet write.
type WriteObserver interface {
	ObserveSheetsWrite(kind string, err error)
}

// SyncWorker mirrors finished time entries to the spreadsheet entries tab.
type SyncWorker struct {
	store    EntryLoader
	sheets   sheets.EntryWriter
	observer WriteObserver
}

func NewSyncWorker(store EntryLoader, writer sheets.EntryWriter, observer WriteObserver) *SyncWorker {
	return &SyncWorker{
		store:    store,
		sheets:   writer,
		observer: observer,
	}
}

// HandleMessage processes a single event message from AMQP.
func (w *SyncWorker) HandleMessage(ctx context.Context, msg *amqp.EventMessage) error {
	return w.HandleEvent(ctx, msg.Event())
}

// HandleEvent exports the entry named by e once it has an end. Events for
// running entries, other domains or entries deleted since are skipped.
func (w *SyncWorker) HandleEvent(ctx context.Context, e events.Event) error {
	switch e.Type {
	case events.TimeEntryStopped, events.TimeEntryCreated, events.TimeEntryUpdated:
	default:
		slog.DebugContext(ctx, "Ignoring event", "type", e.Type, "entity_id", e.EntityID)
		return nil
	}

	slog.InfoContext(ctx, "Processing event", "type", e.Type, "entity_id", e.EntityID)

	entry, err := w.store.GetTimeEntry(ctx, e.EntityID)
	if errors.Is(err, storage.ErrNotFound) {
		slog.WarnContext(ctx, "Time entry no longer exists, skipping", "id", e.EntityID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get time entry from storage: %w", err)
	}
	if entry.Running() {
		slog.DebugContext(ctx, "Time entry still running, skipping", "id", entry.ID)
		return nil
	}

	return w.syncEntry(ctx, entry)
}

func (w *SyncWorker) projectName(ctx context.Context, id string) (string, error) {
	p, err := w.store.GetProject(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return core.UnknownProjectName, nil
	}
	if err != nil {
		return "", fmt.Errorf("get project from storage: %w", err)
	}
	return p.Name, nil
}

func (w *SyncWorker) syncEntry(ctx context.Context, entry core.TimeEntry) error {
	name, err := w.projectName(ctx, entry.ProjectID)
	if err != nil {
		return err
	}

	ref, err := w.sheets.AppendEntryRow(ctx, report.NewRow(name, entry))
	if w.observer != nil {
		w.observer.ObserveSheetsWrite("entry", err)
	}
	if err != nil {
		return fmt.Errorf("append to sheets: %w", err)
	}

	slog.InfoContext(ctx, "Synced time entry",
		"id", entry.ID,
		"project", name,
		"sheets_ref", ref)
	return nil
}
