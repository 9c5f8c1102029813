package worker

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"timetrack/internal/amqp"
	"timetrack/internal/core"
	"timetrack/internal/events"
	"timetrack/internal/report"
	sheetsmem "timetrack/internal/sheets/memory"
	"timetrack/internal/storage"
	"timetrack/internal/storage/memory"
)

type observed struct {
	kind string
	err  error
}

type fakeObserver struct {
	calls []observed
}

func (f *fakeObserver) ObserveSheetsWrite(kind string, err error) {
	f.calls = append(f.calls, observed{kind, err})
}

type failingWriter struct{}

func (failingWriter) AppendEntryRow(context.Context, report.Row) (string, error) {
	return "", errors.New("quota exceeded")
}

func (failingWriter) WriteReport(context.Context, []report.Row) error {
	return errors.New("quota exceeded")
}

type stubLoader struct {
	entry core.TimeEntry
	err   error
}

func (s stubLoader) GetTimeEntry(context.Context, string) (core.TimeEntry, error) {
	return s.entry, s.err
}

func (s stubLoader) GetProject(context.Context, string) (core.Project, error) {
	return core.Project{}, storage.ErrNotFound
}

func seed(t *testing.T) (*memory.Store, core.TimeEntry, core.TimeEntry) {
	t.Helper()
	ctx := context.Background()
	store := memory.New()

	start := time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)
	end := start.Add(90 * time.Minute)

	if err := store.CreateProject(ctx, core.Project{ID: "p1", Name: "Work", Color: "#fff", CreatedAt: start, UpdatedAt: start}); err != nil {
		t.Fatalf("CreateProject() error = %v", err)
	}
	stopped := core.TimeEntry{ID: "e1", ProjectID: "p1", Notes: "Review, PR", StartedAt: start, EndedAt: &end, CreatedAt: start, UpdatedAt: end}
	running := core.TimeEntry{ID: "e2", ProjectID: "p1", Notes: "Deploy", StartedAt: end, CreatedAt: end, UpdatedAt: end}
	for _, e := range []core.TimeEntry{stopped, running} {
		if err := store.CreateTimeEntry(ctx, e); err != nil {
			t.Fatalf("CreateTimeEntry(%s) error = %v", e.ID, err)
		}
	}
	return store, stopped, running
}

func TestSyncWorker_HandleEvent(t *testing.T) {
	store, stopped, running := seed(t)

	tests := []struct {
		name      string
		event     events.Event
		wantRows  int
		wantError bool
	}{
		{"stopped entry is exported", events.New(events.TimeEntryStopped, stopped.ID), 1, false},
		{"created historical entry is exported", events.New(events.TimeEntryCreated, stopped.ID), 1, false},
		{"running entry is skipped", events.New(events.TimeEntryStarted, running.ID), 0, false},
		{"created running entry is skipped", events.New(events.TimeEntryCreated, running.ID), 0, false},
		{"deleted entry is skipped", events.New(events.TimeEntryStopped, "missing"), 0, false},
		{"project events are ignored", events.New(events.ProjectUpdated, "p1"), 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			writer := sheetsmem.New()
			w := NewSyncWorker(store, writer, nil)

			err := w.HandleEvent(context.Background(), tt.event)
			if (err != nil) != tt.wantError {
				t.Fatalf("HandleEvent() error = %v, wantError %v", err, tt.wantError)
			}
			if got := len(writer.Entries()); got != tt.wantRows {
				t.Errorf("rows written = %d, want %d", got, tt.wantRows)
			}
		})
	}
}

func TestSyncWorker_RowContent(t *testing.T) {
	store, stopped, _ := seed(t)
	writer := sheetsmem.New()
	obs := &fakeObserver{}
	w := NewSyncWorker(store, writer, obs)

	if err := w.HandleEvent(context.Background(), events.New(events.TimeEntryStopped, stopped.ID)); err != nil {
		t.Fatalf("HandleEvent() error = %v", err)
	}
	// Redelivery replaces rather than duplicates
	if err := w.HandleEvent(context.Background(), events.New(events.TimeEntryUpdated, stopped.ID)); err != nil {
		t.Fatalf("HandleEvent() error = %v", err)
	}

	rows := writer.Entries()
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(rows))
	}
	want := report.Row{
		EntryID:  "e1",
		Project:  "Work",
		Task:     "Review, PR",
		Start:    "2024-01-15T09:00:00.000Z",
		End:      "2024-01-15T10:30:00.000Z",
		Duration: "01:30",
	}
	if rows[0] != want {
		t.Errorf("row = %+v, want %+v", rows[0], want)
	}
	if len(obs.calls) != 2 || obs.calls[0].kind != "entry" || obs.calls[0].err != nil {
		t.Errorf("observer calls = %+v", obs.calls)
	}
}

func TestSyncWorker_UnknownProject(t *testing.T) {
	start := time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)
	loader := stubLoader{entry: core.TimeEntry{ID: "e9", ProjectID: "gone", Notes: "x", StartedAt: start, EndedAt: &end}}
	writer := sheetsmem.New()

	if err := NewSyncWorker(loader, writer, nil).HandleEvent(context.Background(), events.New(events.TimeEntryStopped, "e9")); err != nil {
		t.Fatalf("HandleEvent() error = %v", err)
	}
	rows := writer.Entries()
	if len(rows) != 1 || rows[0].Project != core.UnknownProjectName {
		t.Errorf("rows = %+v, want Unknown Project row", rows)
	}
}

func TestSyncWorker_Errors(t *testing.T) {
	t.Run("storage failure", func(t *testing.T) {
		loader := stubLoader{err: errors.New("disk I/O error")}
		w := NewSyncWorker(loader, sheetsmem.New(), nil)

		err := w.HandleEvent(context.Background(), events.New(events.TimeEntryStopped, "e1"))
		if err == nil || !strings.Contains(err.Error(), "get time entry") {
			t.Errorf("HandleEvent() error = %v", err)
		}
	})

	t.Run("sheets failure", func(t *testing.T) {
		store, stopped, _ := seed(t)
		obs := &fakeObserver{}
		w := NewSyncWorker(store, failingWriter{}, obs)

		err := w.HandleEvent(context.Background(), events.New(events.TimeEntryStopped, stopped.ID))
		if err == nil || !strings.Contains(err.Error(), "append to sheets") {
			t.Errorf("HandleEvent() error = %v", err)
		}
		if len(obs.calls) != 1 || obs.calls[0].err == nil {
			t.Errorf("observer calls = %+v, want one failed write", obs.calls)
		}
	})
}

func TestSyncWorker_HandleMessage(t *testing.T) {
	store, stopped, _ := seed(t)
	writer := sheetsmem.New()
	w := NewSyncWorker(store, writer, nil)

	msg := amqp.NewEventMessage(events.New(events.TimeEntryStopped, stopped.ID))
	if err := w.HandleMessage(context.Background(), msg); err != nil {
		t.Fatalf("HandleMessage() error = %v", err)
	}
	if len(writer.Entries()) != 1 {
		t.Errorf("rows = %d, want 1", len(writer.Entries()))
	}
}
