package core

import (
	"strings"
	"time"
)

// DefaultProjectColor is applied when a project is created without a color.
const DefaultProjectColor = "#3b82f6"

type (
	Project struct {
		ID        string    `json:"id"`
		Name      string    `json:"name"`
		Color     string    `json:"color"`
		CreatedAt time.Time `json:"createdAt"`
		UpdatedAt time.Time `json:"updatedAt"`
	}

	// TimeEntry is running while EndedAt is nil.
	TimeEntry struct {
		ID         string     `json:"id"`
		ProjectID  string     `json:"projectId"`
		TaskNameID string     `json:"taskNameId,omitempty"`
		Notes      string     `json:"notes"`
		StartedAt  time.Time  `json:"startedAt"`
		EndedAt    *time.Time `json:"endedAt,omitempty"`
		CreatedAt  time.Time  `json:"createdAt"`
		UpdatedAt  time.Time  `json:"updatedAt"`
	}

	TaskName struct {
		ID          string    `json:"id"`
		Name        string    `json:"name"`
		Description string    `json:"description,omitempty"`
		CreatedAt   time.Time `json:"createdAt"`
		UpdatedAt   time.Time `json:"updatedAt"`
	}
)

// Running reports whether the entry has no end yet.
func (e TimeEntry) Running() bool {
	return e.EndedAt == nil
}

// Duration returns max(0, end-start). The second result is false while the
// entry is running or its start is unknown.
func (e TimeEntry) Duration() (time.Duration, bool) {
	if e.EndedAt == nil || e.StartedAt.IsZero() {
		return 0, false
	}
	d := e.EndedAt.Sub(e.StartedAt)
	if d < 0 {
		d = 0
	}
	return d, true
}

// Elapsed is the wall-clock time spent so far: the duration of a stopped
// entry, or now-start for a running one.
func (e TimeEntry) Elapsed(now time.Time) time.Duration {
	if d, ok := e.Duration(); ok {
		return d
	}
	if e.StartedAt.IsZero() || now.Before(e.StartedAt) {
		return 0
	}
	return now.Sub(e.StartedAt)
}

// ValidateBounds checks start <= end when an end is present.
func (e TimeEntry) ValidateBounds() error {
	if e.StartedAt.IsZero() {
		return Validation(EntityTimeEntry, "Start time is required.")
	}
	if e.EndedAt != nil && e.EndedAt.Before(e.StartedAt) {
		return Validation(EntityTimeEntry, "End time cannot be before start time.")
	}
	return nil
}

// NormalizeName trims surrounding whitespace from a display name.
func NormalizeName(s string) string {
	return strings.TrimSpace(s)
}
