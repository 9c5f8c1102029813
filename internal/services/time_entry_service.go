package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"timetrack/internal/core"
	"timetrack/internal/events"
	"timetrack/internal/storage"
)

// TimeEntryService owns the timer lifecycle: at most one entry runs at a
// time, and a running entry stops exactly once.
type TimeEntryService struct {
	store     storage.Store
	taskNames *TaskNameService
	events    events.Publisher
	clock     core.Clock
}

func NewTimeEntryService(store storage.Store, taskNames *TaskNameService, publisher events.Publisher, clock core.Clock) *TimeEntryService {
	if publisher == nil {
		publisher = events.Discard
	}
	if clock == nil {
		clock = core.SystemClock
	}
	return &TimeEntryService{store: store, taskNames: taskNames, events: publisher, clock: clock}
}

type StartInput struct {
	ProjectID  string
	TaskNameID string
	Notes      string
}

type CreateInput struct {
	ProjectID  string
	TaskNameID string
	Notes      string
	StartedAt  time.Time
	EndedAt    *time.Time
}

// UpdateInput carries the fields to change; nil means keep.
type UpdateInput struct {
	Notes     *string
	StartedAt *time.Time
	EndedAt   *time.Time
}

func (s *TimeEntryService) List(ctx context.Context) ([]core.TimeEntry, error) {
	entries, err := s.store.ListTimeEntries(ctx)
	if err != nil {
		return nil, core.Internal(core.EntityTimeEntry, err)
	}
	return entries, nil
}

func (s *TimeEntryService) Get(ctx context.Context, id string) (core.TimeEntry, error) {
	e, err := s.store.GetTimeEntry(ctx, id)
	if err != nil {
		return core.TimeEntry{}, translate(core.EntityTimeEntry, id, err)
	}
	return e, nil
}

// Active returns the running entry, or nil when no timer runs.
func (s *TimeEntryService) Active(ctx context.Context) (*core.TimeEntry, error) {
	e, err := s.store.FindActiveTimeEntry(ctx)
	if err != nil {
		return nil, core.Internal(core.EntityTimeEntry, err)
	}
	return e, nil
}

func (s *TimeEntryService) ensureNoActive(ctx context.Context) error {
	active, err := s.store.FindActiveTimeEntry(ctx)
	if err != nil {
		return core.Internal(core.EntityTimeEntry, err)
	}
	if active != nil {
		return core.ActiveTimerExists(active.ID)
	}
	return nil
}

func validateNotes(notes string) (string, error) {
	notes = core.NormalizeName(notes)
	if notes == "" {
		return "", core.Validation(core.EntityTimeEntry, "Notes cannot be empty.")
	}
	return notes, nil
}

func (s *TimeEntryService) ensureProject(ctx context.Context, projectID string) error {
	if projectID == "" {
		return core.Validation(core.EntityTimeEntry, "Project is required.")
	}
	_, err := s.store.GetProject(ctx, projectID)
	if errors.Is(err, storage.ErrNotFound) {
		return core.Validation(core.EntityTimeEntry, fmt.Sprintf("Project does not exist: %s", projectID))
	}
	if err != nil {
		return core.Internal(core.EntityTimeEntry, err)
	}
	return nil
}

// resolveTaskName validates an explicit task name id, or links the entry to
// a catalog name equal to its notes. It returns "" when nothing matches.
func (s *TimeEntryService) resolveTaskName(ctx context.Context, taskNameID, notes string) (string, error) {
	if taskNameID != "" {
		tn, err := s.store.GetTaskName(ctx, taskNameID)
		if errors.Is(err, storage.ErrNotFound) {
			return "", core.Validation(core.EntityTimeEntry, fmt.Sprintf("Task name does not exist: %s", taskNameID))
		}
		if err != nil {
			return "", core.Internal(core.EntityTimeEntry, err)
		}
		s.recordUsage(ctx, tn.Name)
		return tn.ID, nil
	}

	tn, err := s.store.GetTaskNameByName(ctx, notes)
	if errors.Is(err, storage.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", core.Internal(core.EntityTimeEntry, err)
	}
	s.recordUsage(ctx, tn.Name)
	return tn.ID, nil
}

func (s *TimeEntryService) recordUsage(ctx context.Context, name string) {
	if s.taskNames == nil {
		return
	}
	if _, err := s.taskNames.RecordUsage(ctx, name); err != nil {
		slog.WarnContext(ctx, "Failed to record task name usage", "name", name, "error", err)
	}
}

// activeConflict turns a store-level single-active violation into the
// domain error, naming the entry that won the race when it can.
func (s *TimeEntryService) activeConflict(ctx context.Context) error {
	active, err := s.store.FindActiveTimeEntry(ctx)
	if err == nil && active != nil {
		return core.ActiveTimerExists(active.ID)
	}
	return core.ActiveTimerExists("")
}

// Start begins a new running entry at the current time.
func (s *TimeEntryService) Start(ctx context.Context, in StartInput) (core.TimeEntry, error) {
	if err := s.ensureNoActive(ctx); err != nil {
		return core.TimeEntry{}, err
	}
	notes, err := validateNotes(in.Notes)
	if err != nil {
		return core.TimeEntry{}, err
	}
	if err := s.ensureProject(ctx, in.ProjectID); err != nil {
		return core.TimeEntry{}, err
	}
	taskNameID, err := s.resolveTaskName(ctx, in.TaskNameID, notes)
	if err != nil {
		return core.TimeEntry{}, err
	}

	now := s.clock.Now()
	e := core.TimeEntry{
		ID:         newID(),
		ProjectID:  in.ProjectID,
		TaskNameID: taskNameID,
		Notes:      notes,
		StartedAt:  now,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.store.CreateTimeEntry(ctx, e); err != nil {
		if errors.Is(err, storage.ErrActiveTimerExists) {
			return core.TimeEntry{}, s.activeConflict(ctx)
		}
		return core.TimeEntry{}, core.Internal(core.EntityTimeEntry, err)
	}

	slog.InfoContext(ctx, "Timer started", "id", e.ID, "project_id", e.ProjectID)
	publish(ctx, s.events, events.TimeEntryStarted, e.ID)
	return e, nil
}

// Stop ends a running entry at the current time. Stopping an entry twice is
// rejected.
func (s *TimeEntryService) Stop(ctx context.Context, id string) (core.TimeEntry, error) {
	e, err := s.store.GetTimeEntry(ctx, id)
	if err != nil {
		return core.TimeEntry{}, translate(core.EntityTimeEntry, id, err)
	}
	if !e.Running() {
		return core.TimeEntry{}, core.Validation(core.EntityTimeEntry, "Time entry is already stopped.")
	}

	now := s.clock.Now()
	end := now
	if end.Before(e.StartedAt) {
		end = e.StartedAt
	}
	e.EndedAt = &end
	e.UpdatedAt = now

	if err := s.store.UpdateTimeEntry(ctx, e); err != nil {
		return core.TimeEntry{}, translate(core.EntityTimeEntry, id, err)
	}

	d, _ := e.Duration()
	slog.InfoContext(ctx, "Timer stopped", "id", e.ID, "duration", core.FormatHHMM(d))
	publish(ctx, s.events, events.TimeEntryStopped, e.ID)
	return e, nil
}

// Create records a historical entry. Without an end the entry is running
// and subject to the single-timer rule.
func (s *TimeEntryService) Create(ctx context.Context, in CreateInput) (core.TimeEntry, error) {
	notes, err := validateNotes(in.Notes)
	if err != nil {
		return core.TimeEntry{}, err
	}
	if err := s.ensureProject(ctx, in.ProjectID); err != nil {
		return core.TimeEntry{}, err
	}

	now := s.clock.Now()
	e := core.TimeEntry{
		ID:        newID(),
		ProjectID: in.ProjectID,
		Notes:     notes,
		StartedAt: in.StartedAt,
		EndedAt:   in.EndedAt,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := e.ValidateBounds(); err != nil {
		return core.TimeEntry{}, err
	}
	if e.Running() {
		if err := s.ensureNoActive(ctx); err != nil {
			return core.TimeEntry{}, err
		}
	}
	if e.TaskNameID, err = s.resolveTaskName(ctx, in.TaskNameID, notes); err != nil {
		return core.TimeEntry{}, err
	}

	if err := s.store.CreateTimeEntry(ctx, e); err != nil {
		if errors.Is(err, storage.ErrActiveTimerExists) {
			return core.TimeEntry{}, s.activeConflict(ctx)
		}
		return core.TimeEntry{}, core.Internal(core.EntityTimeEntry, err)
	}

	slog.InfoContext(ctx, "Time entry created", "id", e.ID, "project_id", e.ProjectID, "running", e.Running())
	publish(ctx, s.events, events.TimeEntryCreated, e.ID)
	return e, nil
}

// Update overwrites the provided fields. Supplying only a start never stops
// a running entry.
func (s *TimeEntryService) Update(ctx context.Context, id string, in UpdateInput) (core.TimeEntry, error) {
	e, err := s.store.GetTimeEntry(ctx, id)
	if err != nil {
		return core.TimeEntry{}, translate(core.EntityTimeEntry, id, err)
	}

	if in.Notes != nil {
		notes, err := validateNotes(*in.Notes)
		if err != nil {
			return core.TimeEntry{}, err
		}
		e.Notes = notes
	}
	if in.StartedAt != nil {
		e.StartedAt = *in.StartedAt
	}
	if in.EndedAt != nil {
		end := *in.EndedAt
		e.EndedAt = &end
	}
	if err := e.ValidateBounds(); err != nil {
		return core.TimeEntry{}, err
	}
	e.UpdatedAt = s.clock.Now()

	if err := s.store.UpdateTimeEntry(ctx, e); err != nil {
		if errors.Is(err, storage.ErrActiveTimerExists) {
			return core.TimeEntry{}, s.activeConflict(ctx)
		}
		return core.TimeEntry{}, translate(core.EntityTimeEntry, id, err)
	}

	slog.InfoContext(ctx, "Time entry updated", "id", e.ID, "running", e.Running())
	publish(ctx, s.events, events.TimeEntryUpdated, e.ID)
	return e, nil
}

func (s *TimeEntryService) Delete(ctx context.Context, id string) error {
	if err := s.store.DeleteTimeEntry(ctx, id); err != nil {
		return translate(core.EntityTimeEntry, id, err)
	}

	slog.InfoContext(ctx, "Time entry deleted", "id", id)
	publish(ctx, s.events, events.TimeEntryDeleted, id)
	return nil
}
