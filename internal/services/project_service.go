package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"timetrack/internal/core"
	"timetrack/internal/events"
	"timetrack/internal/storage"
)

// ProjectStores is what ProjectService needs from persistence. The store
// refuses to delete a project that owns the running entry.
type ProjectStores interface {
	storage.ProjectStore
}

type ProjectService struct {
	store  ProjectStores
	events events.Publisher
	clock  core.Clock
}

func NewProjectService(store ProjectStores, publisher events.Publisher, clock core.Clock) *ProjectService {
	if publisher == nil {
		publisher = events.Discard
	}
	if clock == nil {
		clock = core.SystemClock
	}
	return &ProjectService{store: store, events: publisher, clock: clock}
}

// ProjectUpdate carries the fields to change; nil means keep.
type ProjectUpdate struct {
	Name  *string
	Color *string
}

func (s *ProjectService) List(ctx context.Context) ([]core.Project, error) {
	projects, err := s.store.ListProjects(ctx)
	if err != nil {
		return nil, core.Internal(core.EntityProject, err)
	}
	return projects, nil
}

func (s *ProjectService) Get(ctx context.Context, id string) (core.Project, error) {
	p, err := s.store.GetProject(ctx, id)
	if err != nil {
		return core.Project{}, translate(core.EntityProject, id, err)
	}
	return p, nil
}

// GetByName resolves a project by its exact display name.
func (s *ProjectService) GetByName(ctx context.Context, name string) (core.Project, error) {
	name = core.NormalizeName(name)
	p, err := s.store.GetProjectByName(ctx, name)
	if err != nil {
		return core.Project{}, translate(core.EntityProject, name, err)
	}
	return p, nil
}

func (s *ProjectService) validateName(ctx context.Context, name, selfID string) error {
	if name == "" {
		return core.Validation(core.EntityProject, "Project name cannot be empty.")
	}
	existing, err := s.store.GetProjectByName(ctx, name)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return nil
	case err != nil:
		return core.Internal(core.EntityProject, err)
	case existing.ID != selfID:
		return duplicateProject(name)
	}
	return nil
}

func duplicateProject(name string) error {
	return core.Validation(core.EntityProject, fmt.Sprintf("A project with the name %q already exists.", name))
}

func (s *ProjectService) Create(ctx context.Context, name, color string) (core.Project, error) {
	name = core.NormalizeName(name)
	if err := s.validateName(ctx, name, ""); err != nil {
		return core.Project{}, err
	}
	if color == "" {
		color = core.DefaultProjectColor
	}

	now := s.clock.Now()
	p := core.Project{ID: newID(), Name: name, Color: color, CreatedAt: now, UpdatedAt: now}
	if err := s.store.CreateProject(ctx, p); err != nil {
		if errors.Is(err, storage.ErrDuplicateName) {
			return core.Project{}, duplicateProject(name)
		}
		return core.Project{}, core.Internal(core.EntityProject, err)
	}

	slog.InfoContext(ctx, "Project created", "id", p.ID, "name", p.Name)
	publish(ctx, s.events, events.ProjectCreated, p.ID)
	return p, nil
}

func (s *ProjectService) Update(ctx context.Context, id string, in ProjectUpdate) (core.Project, error) {
	p, err := s.store.GetProject(ctx, id)
	if err != nil {
		return core.Project{}, translate(core.EntityProject, id, err)
	}
	if in.Name == nil && in.Color == nil {
		return p, nil
	}

	if in.Name != nil {
		name := core.NormalizeName(*in.Name)
		if err := s.validateName(ctx, name, p.ID); err != nil {
			return core.Project{}, err
		}
		p.Name = name
	}
	if in.Color != nil {
		p.Color = *in.Color
		if p.Color == "" {
			p.Color = core.DefaultProjectColor
		}
	}
	p.UpdatedAt = s.clock.Now()

	if err := s.store.UpdateProject(ctx, p); err != nil {
		if errors.Is(err, storage.ErrDuplicateName) {
			return core.Project{}, duplicateProject(p.Name)
		}
		return core.Project{}, translate(core.EntityProject, id, err)
	}

	slog.InfoContext(ctx, "Project updated", "id", p.ID, "name", p.Name)
	publish(ctx, s.events, events.ProjectUpdated, p.ID)
	return p, nil
}

// Delete removes the project and its stopped entries. A project that owns
// the running entry cannot be deleted until the timer is stopped.
func (s *ProjectService) Delete(ctx context.Context, id string) error {
	err := s.store.DeleteProject(ctx, id)
	if errors.Is(err, storage.ErrProjectRunning) {
		return core.Validation(core.EntityProject, "Cannot delete a project while its timer is running. Stop the timer first.")
	}
	if err != nil {
		return translate(core.EntityProject, id, err)
	}

	slog.InfoContext(ctx, "Project deleted", "id", id)
	publish(ctx, s.events, events.ProjectDeleted, id)
	return nil
}
