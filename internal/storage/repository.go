package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"timetrack/internal/core"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// timeLayout is fixed width so TEXT ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

type SQLiteRepository struct {
	db *sql.DB
}

var _ Store = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("exec pragma %q: %w", p, err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// parseTime yields the zero time for values that do not parse.
func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t.Local()
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		return se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
	}
	return false
}

func checkAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

// Projects

const projectColumns = `id, name, color, created_at, updated_at`

func scanProject(s scanner) (core.Project, error) {
	var p core.Project
	var createdAt, updatedAt string
	if err := s.Scan(&p.ID, &p.Name, &p.Color, &createdAt, &updatedAt); err != nil {
		return core.Project{}, err
	}
	p.CreatedAt = parseTime(createdAt)
	p.UpdatedAt = parseTime(updatedAt)
	return p, nil
}

func (r *SQLiteRepository) ListProjects(ctx context.Context) ([]core.Project, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+projectColumns+` FROM projects ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	projects := make([]core.Project, 0)
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

func (r *SQLiteRepository) GetProject(ctx context.Context, id string) (core.Project, error) {
	p, err := scanProject(r.db.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Project{}, ErrNotFound
	}
	if err != nil {
		return core.Project{}, fmt.Errorf("get project %s: %w", id, err)
	}
	return p, nil
}

func (r *SQLiteRepository) GetProjectByName(ctx context.Context, name string) (core.Project, error) {
	p, err := scanProject(r.db.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE name = ?`, name))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Project{}, ErrNotFound
	}
	if err != nil {
		return core.Project{}, fmt.Errorf("get project by name: %w", err)
	}
	return p, nil
}

func (r *SQLiteRepository) CreateProject(ctx context.Context, p core.Project) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO projects (id, name, color, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.Color, formatTime(p.CreatedAt), formatTime(p.UpdatedAt))
	if isUniqueViolation(err) {
		return ErrDuplicateName
	}
	if err != nil {
		return fmt.Errorf("create project: %w", err)
	}

	slog.DebugContext(ctx, "Project saved to SQLite", "id", p.ID, "name", p.Name)
	return nil
}

func (r *SQLiteRepository) UpdateProject(ctx context.Context, p core.Project) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE projects SET name = ?, color = ?, updated_at = ? WHERE id = ?`,
		p.Name, p.Color, formatTime(p.UpdatedAt), p.ID)
	if isUniqueViolation(err) {
		return ErrDuplicateName
	}
	if err != nil {
		return fmt.Errorf("update project %s: %w", p.ID, err)
	}
	return checkAffected(res)
}

func (r *SQLiteRepository) DeleteProject(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM projects
		WHERE id = ?
		  AND NOT EXISTS (SELECT 1 FROM time_entries WHERE project_id = ? AND ended_at IS NULL)`, id, id)
	if err != nil {
		return fmt.Errorf("delete project %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete project %s: %w", id, err)
	}
	if n > 0 {
		return nil
	}

	if _, err := r.GetProject(ctx, id); err != nil {
		return err
	}
	return ErrProjectRunning
}

// Time entries

const entryColumns = `id, project_id, task_name_id, notes, started_at, ended_at, created_at, updated_at`

func scanEntry(s scanner) (core.TimeEntry, error) {
	var e core.TimeEntry
	var taskNameID, endedAt sql.NullString
	var startedAt, createdAt, updatedAt string
	if err := s.Scan(&e.ID, &e.ProjectID, &taskNameID, &e.Notes, &startedAt, &endedAt, &createdAt, &updatedAt); err != nil {
		return core.TimeEntry{}, err
	}
	e.TaskNameID = taskNameID.String
	e.StartedAt = parseTime(startedAt)
	if endedAt.Valid {
		t := parseTime(endedAt.String)
		e.EndedAt = &t
	}
	e.CreatedAt = parseTime(createdAt)
	e.UpdatedAt = parseTime(updatedAt)
	return e, nil
}

func entryArgs(e core.TimeEntry) (taskNameID, endedAt sql.NullString) {
	if e.TaskNameID != "" {
		taskNameID = sql.NullString{String: e.TaskNameID, Valid: true}
	}
	if e.EndedAt != nil {
		endedAt = sql.NullString{String: formatTime(*e.EndedAt), Valid: true}
	}
	return taskNameID, endedAt
}

func (r *SQLiteRepository) ListTimeEntries(ctx context.Context) ([]core.TimeEntry, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+entryColumns+` FROM time_entries ORDER BY started_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list time entries: %w", err)
	}
	defer rows.Close()

	entries := make([]core.TimeEntry, 0)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan time entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *SQLiteRepository) GetTimeEntry(ctx context.Context, id string) (core.TimeEntry, error) {
	e, err := scanEntry(r.db.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM time_entries WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return core.TimeEntry{}, ErrNotFound
	}
	if err != nil {
		return core.TimeEntry{}, fmt.Errorf("get time entry %s: %w", id, err)
	}
	return e, nil
}

func (r *SQLiteRepository) FindActiveTimeEntry(ctx context.Context) (*core.TimeEntry, error) {
	e, err := scanEntry(r.db.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM time_entries WHERE ended_at IS NULL ORDER BY started_at DESC LIMIT 1`))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find active time entry: %w", err)
	}
	return &e, nil
}

func (r *SQLiteRepository) CreateTimeEntry(ctx context.Context, e core.TimeEntry) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if e.EndedAt == nil {
		var activeID string
		err := tx.QueryRowContext(ctx, `SELECT id FROM time_entries WHERE ended_at IS NULL LIMIT 1`).Scan(&activeID)
		if err == nil {
			return ErrActiveTimerExists
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("check active time entry: %w", err)
		}
	}

	taskNameID, endedAt := entryArgs(e)
	_, err = tx.ExecContext(ctx,
		`INSERT INTO time_entries (id, project_id, task_name_id, notes, started_at, ended_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.ProjectID, taskNameID, e.Notes, formatTime(e.StartedAt), endedAt,
		formatTime(e.CreatedAt), formatTime(e.UpdatedAt))
	if isUniqueViolation(err) {
		return ErrActiveTimerExists
	}
	if err != nil {
		return fmt.Errorf("create time entry: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit time entry: %w", err)
	}

	slog.DebugContext(ctx, "Time entry saved to SQLite",
		"id", e.ID,
		"project_id", e.ProjectID,
		"running", e.Running())
	return nil
}

func (r *SQLiteRepository) UpdateTimeEntry(ctx context.Context, e core.TimeEntry) error {
	taskNameID, endedAt := entryArgs(e)
	res, err := r.db.ExecContext(ctx,
		`UPDATE time_entries
		 SET project_id = ?, task_name_id = ?, notes = ?, started_at = ?, ended_at = ?, updated_at = ?
		 WHERE id = ?`,
		e.ProjectID, taskNameID, e.Notes, formatTime(e.StartedAt), endedAt, formatTime(e.UpdatedAt), e.ID)
	if isUniqueViolation(err) {
		return ErrActiveTimerExists
	}
	if err != nil {
		return fmt.Errorf("update time entry %s: %w", e.ID, err)
	}
	return checkAffected(res)
}

func (r *SQLiteRepository) DeleteTimeEntry(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM time_entries WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete time entry %s: %w", id, err)
	}
	return checkAffected(res)
}

// Task names

const taskNameColumns = `id, name, description, created_at, updated_at`

func scanTaskName(s scanner) (core.TaskName, error) {
	var t core.TaskName
	var createdAt, updatedAt string
	if err := s.Scan(&t.ID, &t.Name, &t.Description, &createdAt, &updatedAt); err != nil {
		return core.TaskName{}, err
	}
	t.CreatedAt = parseTime(createdAt)
	t.UpdatedAt = parseTime(updatedAt)
	return t, nil
}

func (r *SQLiteRepository) queryTaskNames(ctx context.Context, query string, args ...any) ([]core.TaskName, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	names := make([]core.TaskName, 0)
	for rows.Next() {
		t, err := scanTaskName(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task name: %w", err)
		}
		names = append(names, t)
	}
	return names, rows.Err()
}

func (r *SQLiteRepository) ListTaskNames(ctx context.Context) ([]core.TaskName, error) {
	names, err := r.queryTaskNames(ctx, `SELECT `+taskNameColumns+` FROM task_names ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list task names: %w", err)
	}
	return names, nil
}

func (r *SQLiteRepository) SearchTaskNames(ctx context.Context, query string, limit int) ([]core.TaskName, error) {
	pattern := "%" + escapeLike(strings.ToLower(query)) + "%"
	names, err := r.queryTaskNames(ctx,
		`SELECT `+taskNameColumns+` FROM task_names
		 WHERE lower(name) LIKE ? ESCAPE '\'
		 ORDER BY name ASC LIMIT ?`,
		pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("search task names: %w", err)
	}
	return names, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func (r *SQLiteRepository) GetTaskName(ctx context.Context, id string) (core.TaskName, error) {
	t, err := scanTaskName(r.db.QueryRowContext(ctx, `SELECT `+taskNameColumns+` FROM task_names WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return core.TaskName{}, ErrNotFound
	}
	if err != nil {
		return core.TaskName{}, fmt.Errorf("get task name %s: %w", id, err)
	}
	return t, nil
}

func (r *SQLiteRepository) GetTaskNameByName(ctx context.Context, name string) (core.TaskName, error) {
	t, err := scanTaskName(r.db.QueryRowContext(ctx, `SELECT `+taskNameColumns+` FROM task_names WHERE name = ?`, name))
	if errors.Is(err, sql.ErrNoRows) {
		return core.TaskName{}, ErrNotFound
	}
	if err != nil {
		return core.TaskName{}, fmt.Errorf("get task name by name: %w", err)
	}
	return t, nil
}

func (r *SQLiteRepository) CreateTaskName(ctx context.Context, t core.TaskName) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO task_names (id, name, description, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		t.ID, t.Name, t.Description, formatTime(t.CreatedAt), formatTime(t.UpdatedAt))
	if isUniqueViolation(err) {
		return ErrDuplicateName
	}
	if err != nil {
		return fmt.Errorf("create task name: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) UpdateTaskName(ctx context.Context, t core.TaskName) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE task_names SET name = ?, description = ?, updated_at = ? WHERE id = ?`,
		t.Name, t.Description, formatTime(t.UpdatedAt), t.ID)
	if isUniqueViolation(err) {
		return ErrDuplicateName
	}
	if err != nil {
		return fmt.Errorf("update task name %s: %w", t.ID, err)
	}
	return checkAffected(res)
}

func (r *SQLiteRepository) DeleteTaskName(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM task_names WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete task name %s: %w", id, err)
	}
	return checkAffected(res)
}
