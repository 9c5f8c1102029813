// Package memory is an in-process storage.Store used by tests and by the
// memory data backend. Nothing is persisted across restarts.
package memory

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"timetrack/internal/core"
	"timetrack/internal/storage"

	"github.com/google/uuid"
)

type Store struct {
	mu        sync.Mutex
	projects  []core.Project
	entries   []core.TimeEntry
	taskNames []core.TaskName
}

var _ storage.Store = (*Store)(nil)

func New() *Store {
	return &Store{}
}

// NewFromFiles seeds projects from base/seed_projects.txt, one name per line.
// Blank lines and lines starting with # are ignored.
func NewFromFiles(base string) *Store {
	s := New()
	now := time.Now()
	for i, name := range readLines(filepath.Join(base, "seed_projects.txt")) {
		at := now.Add(time.Duration(i) * time.Millisecond)
		s.projects = append(s.projects, core.Project{
			ID:        uuid.NewString(),
			Name:      name,
			Color:     core.DefaultProjectColor,
			CreatedAt: at,
			UpdatedAt: at,
		})
	}
	return s
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }

// Projects

func (s *Store) projectIndex(id string) int {
	for i, p := range s.projects {
		if p.ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) projectNameTaken(name, exceptID string) bool {
	for _, p := range s.projects {
		if p.Name == name && p.ID != exceptID {
			return true
		}
	}
	return false
}

func (s *Store) ListProjects(context.Context) ([]core.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]core.Project(nil), s.projects...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if out == nil {
		out = []core.Project{}
	}
	return out, nil
}

func (s *Store) GetProject(_ context.Context, id string) (core.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.projectIndex(id); i >= 0 {
		return s.projects[i], nil
	}
	return core.Project{}, storage.ErrNotFound
}

func (s *Store) GetProjectByName(_ context.Context, name string) (core.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.projects {
		if p.Name == name {
			return p, nil
		}
	}
	return core.Project{}, storage.ErrNotFound
}

func (s *Store) CreateProject(_ context.Context, p core.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.projectNameTaken(p.Name, "") {
		return storage.ErrDuplicateName
	}
	s.projects = append(s.projects, p)
	return nil
}

func (s *Store) UpdateProject(_ context.Context, p core.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.projectIndex(p.ID)
	if i < 0 {
		return storage.ErrNotFound
	}
	if s.projectNameTaken(p.Name, p.ID) {
		return storage.ErrDuplicateName
	}
	s.projects[i].Name = p.Name
	s.projects[i].Color = p.Color
	s.projects[i].UpdatedAt = p.UpdatedAt
	return nil
}

func (s *Store) DeleteProject(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.projectIndex(id)
	if i < 0 {
		return storage.ErrNotFound
	}
	for _, e := range s.entries {
		if e.ProjectID == id && e.Running() {
			return storage.ErrProjectRunning
		}
	}
	s.projects = append(s.projects[:i], s.projects[i+1:]...)

	kept := s.entries[:0]
	for _, e := range s.entries {
		if e.ProjectID != id {
			kept = append(kept, e)
		}
	}
	s.entries = kept
	return nil
}

// Time entries

func (s *Store) entryIndex(id string) int {
	for i, e := range s.entries {
		if e.ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) activeIndex(exceptID string) int {
	for i, e := range s.entries {
		if e.EndedAt == nil && e.ID != exceptID {
			return i
		}
	}
	return -1
}

func copyEntry(e core.TimeEntry) core.TimeEntry {
	if e.EndedAt != nil {
		end := *e.EndedAt
		e.EndedAt = &end
	}
	return e
}

func (s *Store) ListTimeEntries(context.Context) ([]core.TimeEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.TimeEntry, len(s.entries))
	for i, e := range s.entries {
		out[i] = copyEntry(e)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return out, nil
}

func (s *Store) GetTimeEntry(_ context.Context, id string) (core.TimeEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.entryIndex(id); i >= 0 {
		return copyEntry(s.entries[i]), nil
	}
	return core.TimeEntry{}, storage.ErrNotFound
}

func (s *Store) FindActiveTimeEntry(context.Context) (*core.TimeEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.activeIndex(""); i >= 0 {
		e := copyEntry(s.entries[i])
		return &e, nil
	}
	return nil, nil
}

func (s *Store) CreateTimeEntry(_ context.Context, e core.TimeEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.EndedAt == nil && s.activeIndex("") >= 0 {
		return storage.ErrActiveTimerExists
	}
	s.entries = append(s.entries, copyEntry(e))
	return nil
}

func (s *Store) UpdateTimeEntry(_ context.Context, e core.TimeEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.entryIndex(e.ID)
	if i < 0 {
		return storage.ErrNotFound
	}
	if e.EndedAt == nil && s.activeIndex(e.ID) >= 0 {
		return storage.ErrActiveTimerExists
	}
	e.CreatedAt = s.entries[i].CreatedAt
	s.entries[i] = copyEntry(e)
	return nil
}

func (s *Store) DeleteTimeEntry(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.entryIndex(id)
	if i < 0 {
		return storage.ErrNotFound
	}
	s.entries = append(s.entries[:i], s.entries[i+1:]...)
	return nil
}

// Task names

func (s *Store) taskNameIndex(id string) int {
	for i, t := range s.taskNames {
		if t.ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) taskNameTaken(name, exceptID string) bool {
	for _, t := range s.taskNames {
		if t.Name == name && t.ID != exceptID {
			return true
		}
	}
	return false
}

func (s *Store) ListTaskNames(context.Context) ([]core.TaskName, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]core.TaskName{}, s.taskNames...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (s *Store) SearchTaskNames(_ context.Context, query string, limit int) ([]core.TaskName, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q := strings.ToLower(query)
	out := make([]core.TaskName, 0)
	for _, t := range s.taskNames {
		if strings.Contains(strings.ToLower(t.Name), q) {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) GetTaskName(_ context.Context, id string) (core.TaskName, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.taskNameIndex(id); i >= 0 {
		return s.taskNames[i], nil
	}
	return core.TaskName{}, storage.ErrNotFound
}

func (s *Store) GetTaskNameByName(_ context.Context, name string) (core.TaskName, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.taskNames {
		if t.Name == name {
			return t, nil
		}
	}
	return core.TaskName{}, storage.ErrNotFound
}

func (s *Store) CreateTaskName(_ context.Context, t core.TaskName) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.taskNameTaken(t.Name, "") {
		return storage.ErrDuplicateName
	}
	s.taskNames = append(s.taskNames, t)
	return nil
}

func (s *Store) UpdateTaskName(_ context.Context, t core.TaskName) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.taskNameIndex(t.ID)
	if i < 0 {
		return storage.ErrNotFound
	}
	if s.taskNameTaken(t.Name, t.ID) {
		return storage.ErrDuplicateName
	}
	s.taskNames[i].Name = t.Name
	s.taskNames[i].Description = t.Description
	s.taskNames[i].UpdatedAt = t.UpdatedAt
	return nil
}

func (s *Store) DeleteTaskName(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.taskNameIndex(id)
	if i < 0 {
		return storage.ErrNotFound
	}
	s.taskNames = append(s.taskNames[:i], s.taskNames[i+1:]...)
	for j := range s.entries {
		if s.entries[j].TaskNameID == id {
			s.entries[j].TaskNameID = ""
		}
	}
	return nil
}

func readLines(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	seen := map[string]struct{}{}
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if _, ok := seen[line]; ok {
			continue
		}
		seen[line] = struct{}{}
		out = append(out, line)
	}
	return out
}
