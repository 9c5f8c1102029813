package services

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"timetrack/internal/cache"
	"timetrack/internal/core"
	"timetrack/internal/events"
	"timetrack/internal/storage/memory"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type recorder struct {
	mu     sync.Mutex
	events []events.Type
}

func (r *recorder) handle(_ context.Context, e events.Event) {
	r.mu.Lock()
	r.events = append(r.events, e.Type)
	r.mu.Unlock()
}

func (r *recorder) types() []events.Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]events.Type(nil), r.events...)
}

type fixture struct {
	svc   *Services
	store *memory.Store
	clock *fakeClock
	rec   *recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := &fakeClock{now: time.Date(2024, 1, 1, 9, 0, 0, 0, time.Local)}
	store := memory.New()
	bus := events.NewBus()
	rec := &recorder{}
	bus.Subscribe(rec.handle)
	svc := New(store, bus, Options{Clock: clock, ReportCacheTTL: time.Hour})
	t.Cleanup(func() { svc.Close() })
	return &fixture{svc: svc, store: store, clock: clock, rec: rec}
}

func (f *fixture) project(t *testing.T, name string) core.Project {
	t.Helper()
	p, err := f.svc.Projects.Create(context.Background(), name, "")
	if err != nil {
		t.Fatalf("create project %s: %v", name, err)
	}
	return p
}

func ptr[T any](v T) *T { return &v }

func TestProjectCreateValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p, err := f.svc.Projects.Create(ctx, "  Alpha  ", "")
	if err != nil {
		t.Fatal(err)
	}
	if p.Name != "Alpha" || p.Color != core.DefaultProjectColor || p.ID == "" {
		t.Fatalf("unexpected project %+v", p)
	}

	cases := []struct {
		name    string
		input   string
		message string
	}{
		{"empty", "   ", "Project name cannot be empty."},
		{"duplicate", "Alpha", `A project with the name "Alpha" already exists.`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Projects.Create(ctx, tc.input, "")
			if !errors.Is(err, core.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if err.Error() != tc.message {
				t.Fatalf("message = %q, want %q", err.Error(), tc.message)
			}
		})
	}
}

func TestProjectUpdate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.project(t, "Alpha")
	f.project(t, "Beta")

	if _, err := f.svc.Projects.Update(ctx, a.ID, ProjectUpdate{Name: ptr("Beta")}); !errors.Is(err, core.ErrValidation) {
		t.Fatalf("rename to taken name: expected validation error, got %v", err)
	}

	same, err := f.svc.Projects.Update(ctx, a.ID, ProjectUpdate{Name: ptr("Alpha")})
	if err != nil || same.Name != "Alpha" {
		t.Fatalf("rename to own name: %+v, %v", same, err)
	}

	f.clock.Advance(time.Minute)
	updated, err := f.svc.Projects.Update(ctx, a.ID, ProjectUpdate{Color: ptr("#ff0000")})
	if err != nil {
		t.Fatal(err)
	}
	if updated.Color != "#ff0000" || updated.Name != "Alpha" || !updated.UpdatedAt.After(a.UpdatedAt) {
		t.Fatalf("unexpected update %+v", updated)
	}

	unchanged, err := f.svc.Projects.Update(ctx, a.ID, ProjectUpdate{})
	if err != nil || unchanged.Color != "#ff0000" {
		t.Fatalf("no-op update: %+v, %v", unchanged, err)
	}

	if _, err := f.svc.Projects.Update(ctx, "missing", ProjectUpdate{Name: ptr("x")}); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestProjectDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.project(t, "Alpha")

	if err := f.svc.Projects.Delete(ctx, "missing"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	list, _ := f.svc.Projects.List(ctx)
	if len(list) != 1 {
		t.Fatalf("store changed after failed delete: %+v", list)
	}

	if _, err := f.svc.TimeEntries.Start(ctx, StartInput{ProjectID: a.ID, Notes: "work"}); err != nil {
		t.Fatal(err)
	}
	if err := f.svc.Projects.Delete(ctx, a.ID); !errors.Is(err, core.ErrValidation) {
		t.Fatalf("expected validation error while timer runs, got %v", err)
	}

	active, _ := f.svc.TimeEntries.Active(ctx)
	if _, err := f.svc.TimeEntries.Stop(ctx, active.ID); err != nil {
		t.Fatal(err)
	}
	if err := f.svc.Projects.Delete(ctx, a.ID); err != nil {
		t.Fatalf("delete after stop: %v", err)
	}
	entries, _ := f.svc.TimeEntries.List(ctx)
	if len(entries) != 0 {
		t.Fatalf("entries should be removed with their project, got %d", len(entries))
	}
}

func TestStartWhileRunning(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.project(t, "Alpha")

	first, err := f.svc.TimeEntries.Start(ctx, StartInput{ProjectID: p.ID, Notes: "  first  "})
	if err != nil {
		t.Fatal(err)
	}
	if first.Notes != "first" || !first.Running() || !first.StartedAt.Equal(f.clock.Now()) {
		t.Fatalf("unexpected entry %+v", first)
	}

	_, err = f.svc.TimeEntries.Start(ctx, StartInput{ProjectID: p.ID, Notes: "second"})
	if !errors.Is(err, core.ErrActiveTimerExists) {
		t.Fatalf("expected ActiveTimerExists, got %v", err)
	}
	if !strings.Contains(err.Error(), first.ID) {
		t.Fatalf("message should name the running entry: %q", err.Error())
	}

	entries, _ := f.svc.TimeEntries.List(ctx)
	running := 0
	for _, e := range entries {
		if e.Running() {
			running++
		}
	}
	if running != 1 {
		t.Fatalf("running entries = %d, want 1", running)
	}
}

func TestStartValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.project(t, "Alpha")

	cases := []struct {
		name  string
		input StartInput
	}{
		{"empty notes", StartInput{ProjectID: p.ID, Notes: "   "}},
		{"unknown project", StartInput{ProjectID: "nope", Notes: "x"}},
		{"missing project", StartInput{Notes: "x"}},
		{"unknown task name", StartInput{ProjectID: p.ID, Notes: "x", TaskNameID: "nope"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.TimeEntries.Start(ctx, tc.input)
			if !errors.Is(err, core.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if core.EntityOf(err) != core.EntityTimeEntry {
				t.Fatalf("entity = %q", core.EntityOf(err))
			}
		})
	}
	if a, _ := f.svc.TimeEntries.Active(ctx); a != nil {
		t.Fatalf("no entry should have started, got %+v", a)
	}
}

func TestStartLinksCatalogTaskName(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.project(t, "Alpha")
	tn, err := f.svc.TaskNames.Create(ctx, "Code review", "")
	if err != nil {
		t.Fatal(err)
	}

	f.clock.Advance(time.Hour)
	e, err := f.svc.TimeEntries.Start(ctx, StartInput{ProjectID: p.ID, Notes: "Code review"})
	if err != nil {
		t.Fatal(err)
	}
	if e.TaskNameID != tn.ID {
		t.Fatalf("TaskNameID = %q, want %q", e.TaskNameID, tn.ID)
	}
	got, _ := f.svc.TaskNames.Get(ctx, tn.ID)
	if !got.UpdatedAt.Equal(f.clock.Now()) {
		t.Fatalf("usage not recorded: %v", got.UpdatedAt)
	}
}

func TestStop(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.project(t, "Alpha")

	e, _ := f.svc.TimeEntries.Start(ctx, StartInput{ProjectID: p.ID, Notes: "work"})
	f.clock.Advance(42*time.Minute + 30*time.Second)

	stopped, err := f.svc.TimeEntries.Stop(ctx, e.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stopped.EndedAt == nil || !stopped.EndedAt.Equal(f.clock.Now()) {
		t.Fatalf("EndedAt = %v, want now", stopped.EndedAt)
	}
	d, ok := stopped.Duration()
	if !ok || d != 42*time.Minute+30*time.Second {
		t.Fatalf("Duration = %v, %v", d, ok)
	}
	if core.FormatHHMM(d) != "00:42" {
		t.Fatalf("display = %s, want 00:42", core.FormatHHMM(d))
	}

	if _, err := f.svc.TimeEntries.Stop(ctx, e.ID); !errors.Is(err, core.ErrValidation) {
		t.Fatalf("second stop: expected validation error, got %v", err)
	}
	if _, err := f.svc.TimeEntries.Stop(ctx, "missing"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestUpdateRecomputesDuration(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.project(t, "Alpha")
	start := f.clock.Now()

	e, _ := f.svc.TimeEntries.Start(ctx, StartInput{ProjectID: p.ID, Notes: "work"})
	f.clock.Advance(time.Hour)
	stopped, _ := f.svc.TimeEntries.Stop(ctx, e.ID)

	s2 := start.Add(15 * time.Minute)
	updated, err := f.svc.TimeEntries.Update(ctx, e.ID, UpdateInput{StartedAt: &s2})
	if err != nil {
		t.Fatal(err)
	}
	if d, _ := updated.Duration(); d != stopped.EndedAt.Sub(s2) {
		t.Fatalf("Duration = %v, want %v", d, stopped.EndedAt.Sub(s2))
	}

	running, _ := f.svc.TimeEntries.Start(ctx, StartInput{ProjectID: p.ID, Notes: "more"})
	s3 := running.StartedAt.Add(-time.Hour)
	updated, err = f.svc.TimeEntries.Update(ctx, running.ID, UpdateInput{StartedAt: &s3})
	if err != nil {
		t.Fatal(err)
	}
	if !updated.Running() {
		t.Fatal("supplying only a start must not stop the entry")
	}
	if _, ok := updated.Duration(); ok {
		t.Fatal("running entry should have no duration")
	}
}

func TestUpdateValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.project(t, "Alpha")
	e, _ := f.svc.TimeEntries.Start(ctx, StartInput{ProjectID: p.ID, Notes: "work"})

	before := e.StartedAt.Add(-time.Minute)
	if _, err := f.svc.TimeEntries.Update(ctx, e.ID, UpdateInput{EndedAt: &before}); !errors.Is(err, core.ErrValidation) {
		t.Fatalf("end before start: expected validation error, got %v", err)
	}
	if _, err := f.svc.TimeEntries.Update(ctx, e.ID, UpdateInput{Notes: ptr(" ")}); !errors.Is(err, core.ErrValidation) {
		t.Fatalf("blank notes: expected validation error, got %v", err)
	}
	if _, err := f.svc.TimeEntries.Update(ctx, "missing", UpdateInput{}); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	updated, err := f.svc.TimeEntries.Update(ctx, e.ID, UpdateInput{Notes: ptr("  renamed ")})
	if err != nil || updated.Notes != "renamed" {
		t.Fatalf("notes update: %+v, %v", updated, err)
	}
}

func TestCreateHistorical(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.project(t, "Alpha")

	start := f.clock.Now().Add(-3 * time.Hour)
	end := start.Add(time.Hour)
	e, err := f.svc.TimeEntries.Create(ctx, CreateInput{ProjectID: p.ID, Notes: "past", StartedAt: start, EndedAt: &end})
	if err != nil {
		t.Fatal(err)
	}
	if e.Running() {
		t.Fatal("historical entry should be stopped")
	}

	if _, err := f.svc.TimeEntries.Create(ctx, CreateInput{ProjectID: p.ID, Notes: "bad", StartedAt: end, EndedAt: &start}); !errors.Is(err, core.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	if _, err := f.svc.TimeEntries.Create(ctx, CreateInput{ProjectID: p.ID, Notes: "open", StartedAt: start}); err != nil {
		t.Fatalf("running create: %v", err)
	}
	if _, err := f.svc.TimeEntries.Create(ctx, CreateInput{ProjectID: p.ID, Notes: "open2", StartedAt: start}); !errors.Is(err, core.ErrActiveTimerExists) {
		t.Fatalf("expected ActiveTimerExists, got %v", err)
	}
}

func TestDeleteTimeEntry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.project(t, "Alpha")
	e, _ := f.svc.TimeEntries.Start(ctx, StartInput{ProjectID: p.ID, Notes: "work"})

	if err := f.svc.TimeEntries.Delete(ctx, "missing"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if entries, _ := f.svc.TimeEntries.List(ctx); len(entries) != 1 {
		t.Fatalf("store changed after failed delete")
	}
	if err := f.svc.TimeEntries.Delete(ctx, e.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.TimeEntries.Get(ctx, e.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}

func TestLifecyclePublishesEvents(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.project(t, "Alpha")
	e, _ := f.svc.TimeEntries.Start(ctx, StartInput{ProjectID: p.ID, Notes: "work"})
	f.svc.TimeEntries.Stop(ctx, e.ID)
	f.svc.TimeEntries.Delete(ctx, e.ID)

	want := []events.Type{events.ProjectCreated, events.TimeEntryStarted, events.TimeEntryStopped, events.TimeEntryDeleted}
	got := f.rec.types()
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("events = %v, want %v", got, want)
		}
	}
}

func TestTaskNames(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.TaskNames.Create(ctx, " ", ""); err == nil || err.Error() != "Task name cannot be empty." {
		t.Fatalf("unexpected error %v", err)
	}
	a, _ := f.svc.TaskNames.Create(ctx, "Planning", "weekly")
	f.clock.Advance(time.Minute)
	b, _ := f.svc.TaskNames.Create(ctx, "Code review", "")
	if _, err := f.svc.TaskNames.Create(ctx, "Planning", ""); err == nil || err.Error() != `A task with the name "Planning" already exists.` {
		t.Fatalf("unexpected duplicate error %v", err)
	}

	recent, _ := f.svc.TaskNames.Search(ctx, "", 0)
	if len(recent) != 2 || recent[0].ID != b.ID {
		t.Fatalf("expected most recent first, got %+v", recent)
	}
	found, _ := f.svc.TaskNames.Search(ctx, "PLAN", 5)
	if len(found) != 1 || found[0].ID != a.ID {
		t.Fatalf("unexpected search %+v", found)
	}

	if _, err := f.svc.TaskNames.Update(ctx, a.ID, TaskNameUpdate{Name: ptr("Code review")}); !errors.Is(err, core.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	u, err := f.svc.TaskNames.Update(ctx, a.ID, TaskNameUpdate{Description: ptr("monthly")})
	if err != nil || u.Description != "monthly" {
		t.Fatalf("update: %+v, %v", u, err)
	}

	f.clock.Advance(time.Minute)
	used, err := f.svc.TaskNames.RecordUsage(ctx, " Planning ")
	if err != nil || used.ID != a.ID || !used.UpdatedAt.Equal(f.clock.Now()) {
		t.Fatalf("RecordUsage existing: %+v, %v", used, err)
	}
	fresh, err := f.svc.TaskNames.RecordUsage(ctx, "Writing")
	if err != nil || fresh.ID == "" {
		t.Fatalf("RecordUsage new: %+v, %v", fresh, err)
	}

	if err := f.svc.TaskNames.Delete(ctx, "missing"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := f.svc.TaskNames.Get(ctx, "missing"); !errors.Is(err, core.ErrNotFound) || core.EntityOf(err) != core.EntityTaskName {
		t.Fatalf("expected task name not found, got %v", err)
	}
}

func seedStopped(t *testing.T, f *fixture, projectID, notes string, start time.Time, d time.Duration) {
	t.Helper()
	end := start.Add(d)
	if _, err := f.svc.TimeEntries.Create(context.Background(), CreateInput{ProjectID: projectID, Notes: notes, StartedAt: start, EndedAt: &end}); err != nil {
		t.Fatalf("seed entry: %v", err)
	}
}

func TestReportGroupsCurrentPeriod(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.project(t, "Alpha")
	b := f.project(t, "Beta")
	today := f.clock.Now()

	seedStopped(t, f, a.ID, "a1", today.Add(-2*time.Hour), 10*time.Minute)
	seedStopped(t, f, b.ID, "b1", today.Add(-90*time.Minute), 30*time.Minute)
	seedStopped(t, f, a.ID, "a2", today.Add(-time.Hour), 5*time.Minute)
	seedStopped(t, f, a.ID, "yesterday", today.Add(-24*time.Hour), 8*time.Hour)

	r, err := f.svc.Reports.Report(ctx, core.PeriodDay)
	if err != nil {
		t.Fatal(err)
	}
	if len(r.Rows) != 2 || r.Rows[0].ProjectName != "Beta" || r.Rows[1].ProjectName != "Alpha" {
		t.Fatalf("unexpected rows %+v", r.Rows)
	}
	if r.Rows[1].TotalMinutes != 15 || r.TotalMinutes != 45 {
		t.Fatalf("totals = %v / %v", r.Rows[1].TotalMinutes, r.TotalMinutes)
	}

	week, _ := f.svc.Reports.Report(ctx, core.PeriodWeek)
	// 2024-01-01 is a Monday, so the day before belongs to the previous week.
	if week.TotalMinutes != 45 {
		t.Fatalf("week total = %v, want 45", week.TotalMinutes)
	}
}

func TestReportCachePurgedOnChange(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.project(t, "Alpha")

	first, _ := f.svc.Reports.Report(ctx, core.PeriodDay)
	if len(first.Rows) != 0 {
		t.Fatalf("expected empty report, got %+v", first.Rows)
	}

	seedStopped(t, f, a.ID, "work", f.clock.Now().Add(-time.Hour), 20*time.Minute)
	second, _ := f.svc.Reports.Report(ctx, core.PeriodDay)
	if len(second.Rows) != 1 {
		t.Fatalf("cache not purged after create, got %+v", second.Rows)
	}
}

// changingStore publishes a change event while the first report is being
// read, the way a concurrent write would.
type changingStore struct {
	ReportStores
	bus  *events.Bus
	once sync.Once
}

func (s *changingStore) ListTimeEntries(ctx context.Context) ([]core.TimeEntry, error) {
	entries, err := s.ReportStores.ListTimeEntries(ctx)
	s.once.Do(func() {
		s.bus.Publish(ctx, events.New(events.TimeEntryCreated, "concurrent"))
	})
	return entries, err
}

func TestReportNotCachedAcrossPurge(t *testing.T) {
	ctx := context.Background()
	bus := events.NewBus()
	c := cache.NewLRUCache[Report](4, time.Hour)
	clock := &fakeClock{now: time.Date(2024, 1, 1, 9, 0, 0, 0, time.Local)}
	rs := NewReportService(&changingStore{ReportStores: memory.New(), bus: bus}, c, bus, clock)
	defer rs.Close()

	if _, err := rs.Report(ctx, core.PeriodDay); err != nil {
		t.Fatal(err)
	}
	if c.Size() != 0 {
		t.Fatalf("report read across a purge was cached (size %d)", c.Size())
	}

	if _, err := rs.Report(ctx, core.PeriodDay); err != nil {
		t.Fatal(err)
	}
	if c.Size() != 1 {
		t.Errorf("stable report not cached (size %d)", c.Size())
	}
}

func TestReportExport(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.project(t, "Alpha")
	b := f.project(t, "Beta")
	now := f.clock.Now()

	seedStopped(t, f, a.ID, "a, b", now.Add(-3*time.Hour), 40*time.Minute)
	seedStopped(t, f, b.ID, "beta", now.Add(-2*time.Hour), 20*time.Minute)
	seedStopped(t, f, a.ID, "more", now.Add(-time.Hour), 5*time.Minute)

	var buf bytes.Buffer
	if err := f.svc.Reports.Export(ctx, core.PeriodDay, &buf); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSuffix(buf.String(), "\r\n"), "\r\n")
	if len(lines) != 4 {
		t.Fatalf("expected header + 3 rows, got %q", lines)
	}
	if !strings.HasPrefix(lines[1], `Alpha,"a, b",`) || !strings.HasSuffix(lines[1], ",00:40") {
		t.Fatalf("unexpected first row %q", lines[1])
	}
	if !strings.HasPrefix(lines[3], "Beta,beta,") {
		t.Fatalf("unexpected last row %q", lines[3])
	}

	rows, err := f.svc.Reports.Rows(ctx, core.PeriodDay)
	if err != nil || len(rows) != 3 {
		t.Fatalf("Rows = %d, %v", len(rows), err)
	}
}

func TestServicesClose(t *testing.T) {
	bus := events.NewBus()
	svc := New(memory.New(), bus, Options{})
	if bus.Len() != 1 {
		t.Fatalf("report cache should subscribe, Len = %d", bus.Len())
	}
	if err := svc.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if bus.Len() != 0 {
		t.Fatalf("Close should unsubscribe, Len = %d", bus.Len())
	}
}
