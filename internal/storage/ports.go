package storage

import (
	"context"
	"errors"

	"timetrack/internal/core"
)

var (
	ErrNotFound          = errors.New("record not found")
	ErrDuplicateName     = errors.New("duplicate name")
	ErrActiveTimerExists = errors.New("another time entry is running")
	ErrProjectRunning    = errors.New("project owns the running time entry")
)

// ProjectStore persists projects. IDs and timestamps are assigned by callers.
type ProjectStore interface {
	// ListProjects returns projects newest first.
	ListProjects(ctx context.Context) ([]core.Project, error)
	GetProject(ctx context.Context, id string) (core.Project, error)
	GetProjectByName(ctx context.Context, name string) (core.Project, error)
	CreateProject(ctx context.Context, p core.Project) error
	UpdateProject(ctx context.Context, p core.Project) error
	// DeleteProject removes the project together with its time entries. It
	// fails with ErrProjectRunning, deleting nothing, while one of those
	// entries is running.
	DeleteProject(ctx context.Context, id string) error
}

// TimeEntryStore persists time entries and guards the single running entry.
type TimeEntryStore interface {
	// ListTimeEntries returns entries ordered by start, newest first.
	ListTimeEntries(ctx context.Context) ([]core.TimeEntry, error)
	GetTimeEntry(ctx context.Context, id string) (core.TimeEntry, error)
	// FindActiveTimeEntry returns the running entry, or nil when none is.
	FindActiveTimeEntry(ctx context.Context) (*core.TimeEntry, error)
	// CreateTimeEntry fails with ErrActiveTimerExists when e is running and
	// another entry already is.
	CreateTimeEntry(ctx context.Context, e core.TimeEntry) error
	UpdateTimeEntry(ctx context.Context, e core.TimeEntry) error
	DeleteTimeEntry(ctx context.Context, id string) error
}

// TaskNameStore persists the task name catalog.
type TaskNameStore interface {
	// ListTaskNames returns task names most recently updated first.
	ListTaskNames(ctx context.Context) ([]core.TaskName, error)
	// SearchTaskNames matches query case-insensitively anywhere in the name,
	// ordered by name.
	SearchTaskNames(ctx context.Context, query string, limit int) ([]core.TaskName, error)
	GetTaskName(ctx context.Context, id string) (core.TaskName, error)
	GetTaskNameByName(ctx context.Context, name string) (core.TaskName, error)
	CreateTaskName(ctx context.Context, t core.TaskName) error
	UpdateTaskName(ctx context.Context, t core.TaskName) error
	DeleteTaskName(ctx context.Context, id string) error
}

// Store is the full persistence surface used by the services.
type Store interface {
	ProjectStore
	TimeEntryStore
	TaskNameStore

	Ping(ctx context.Context) error
	Close() error
}
