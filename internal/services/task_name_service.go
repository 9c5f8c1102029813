package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"timetrack/internal/core"
	"timetrack/internal/events"
	"timetrack/internal/storage"
)

const defaultSearchLimit = 10

// TaskNameService maintains the catalog of task names offered for
// autocomplete.
type TaskNameService struct {
	store  storage.TaskNameStore
	events events.Publisher
	clock  core.Clock
}

func NewTaskNameService(store storage.TaskNameStore, publisher events.Publisher, clock core.Clock) *TaskNameService {
	if publisher == nil {
		publisher = events.Discard
	}
	if clock == nil {
		clock = core.SystemClock
	}
	return &TaskNameService{store: store, events: publisher, clock: clock}
}

type TaskNameUpdate struct {
	Name        *string
	Description *string
}

func (s *TaskNameService) List(ctx context.Context) ([]core.TaskName, error) {
	names, err := s.store.ListTaskNames(ctx)
	if err != nil {
		return nil, core.Internal(core.EntityTaskName, err)
	}
	return names, nil
}

// Search returns names containing query, ignoring case. An empty query
// returns the most recently used names.
func (s *TaskNameService) Search(ctx context.Context, query string, limit int) ([]core.TaskName, error) {
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	query = strings.TrimSpace(query)
	if query == "" {
		names, err := s.store.ListTaskNames(ctx)
		if err != nil {
			return nil, core.Internal(core.EntityTaskName, err)
		}
		if len(names) > limit {
			names = names[:limit]
		}
		return names, nil
	}

	names, err := s.store.SearchTaskNames(ctx, query, limit)
	if err != nil {
		return nil, core.Internal(core.EntityTaskName, err)
	}
	return names, nil
}

func (s *TaskNameService) Get(ctx context.Context, id string) (core.TaskName, error) {
	t, err := s.store.GetTaskName(ctx, id)
	if err != nil {
		return core.TaskName{}, translate(core.EntityTaskName, id, err)
	}
	return t, nil
}

func duplicateTaskName(name string) error {
	return core.Validation(core.EntityTaskName, fmt.Sprintf("A task with the name %q already exists.", name))
}

func (s *TaskNameService) validateName(ctx context.Context, name, selfID string) error {
	if name == "" {
		return core.Validation(core.EntityTaskName, "Task name cannot be empty.")
	}
	existing, err := s.store.GetTaskNameByName(ctx, name)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return nil
	case err != nil:
		return core.Internal(core.EntityTaskName, err)
	case existing.ID != selfID:
		return duplicateTaskName(name)
	}
	return nil
}

func (s *TaskNameService) Create(ctx context.Context, name, description string) (core.TaskName, error) {
	name = core.NormalizeName(name)
	if err := s.validateName(ctx, name, ""); err != nil {
		return core.TaskName{}, err
	}

	now := s.clock.Now()
	t := core.TaskName{
		ID:          newID(),
		Name:        name,
		Description: strings.TrimSpace(description),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.CreateTaskName(ctx, t); err != nil {
		if errors.Is(err, storage.ErrDuplicateName) {
			return core.TaskName{}, duplicateTaskName(name)
		}
		return core.TaskName{}, core.Internal(core.EntityTaskName, err)
	}

	publish(ctx, s.events, events.TaskNameChanged, t.ID)
	return t, nil
}

func (s *TaskNameService) Update(ctx context.Context, id string, in TaskNameUpdate) (core.TaskName, error) {
	t, err := s.store.GetTaskName(ctx, id)
	if err != nil {
		return core.TaskName{}, translate(core.EntityTaskName, id, err)
	}
	if in.Name == nil && in.Description == nil {
		return t, nil
	}

	if in.Name != nil {
		name := core.NormalizeName(*in.Name)
		if err := s.validateName(ctx, name, t.ID); err != nil {
			return core.TaskName{}, err
		}
		t.Name = name
	}
	if in.Description != nil {
		t.Description = strings.TrimSpace(*in.Description)
	}
	t.UpdatedAt = s.clock.Now()

	if err := s.store.UpdateTaskName(ctx, t); err != nil {
		if errors.Is(err, storage.ErrDuplicateName) {
			return core.TaskName{}, duplicateTaskName(t.Name)
		}
		return core.TaskName{}, translate(core.EntityTaskName, id, err)
	}

	publish(ctx, s.events, events.TaskNameChanged, t.ID)
	return t, nil
}

func (s *TaskNameService) Delete(ctx context.Context, id string) error {
	if err := s.store.DeleteTaskName(ctx, id); err != nil {
		return translate(core.EntityTaskName, id, err)
	}
	publish(ctx, s.events, events.TaskNameChanged, id)
	return nil
}

// RecordUsage marks name as just used, creating it when it is new.
func (s *TaskNameService) RecordUsage(ctx context.Context, name string) (core.TaskName, error) {
	name = core.NormalizeName(name)
	if name == "" {
		return core.TaskName{}, core.Validation(core.EntityTaskName, "Task name cannot be empty.")
	}

	now := s.clock.Now()
	t, err := s.store.GetTaskNameByName(ctx, name)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		t = core.TaskName{ID: newID(), Name: name, CreatedAt: now, UpdatedAt: now}
		err = s.store.CreateTaskName(ctx, t)
	case err == nil:
		t.UpdatedAt = now
		err = s.store.UpdateTaskName(ctx, t)
	}
	if err != nil {
		return core.TaskName{}, core.Internal(core.EntityTaskName, err)
	}

	slog.DebugContext(ctx, "Task name usage recorded", "id", t.ID, "name", t.Name)
	publish(ctx, s.events, events.TaskNameChanged, t.ID)
	return t, nil
}
