package http

import (
	"net/http"
	"time"

	"timetrack/internal/core"
	"timetrack/internal/services"
)

type timeEntryRequest struct {
	ProjectID  string  `json:"projectId"`
	TaskNameID string  `json:"taskNameId"`
	Notes      *string `json:"notes"`
	StartedAt  *string `json:"startedAt"`
	EndedAt    *string `json:"endedAt"`
}

// timeEntryView adds the derived fields to the stored entry. A running
// entry has no duration.
type timeEntryView struct {
	core.TimeEntry
	Running         bool   `json:"running"`
	DurationSeconds *int64 `json:"durationSeconds,omitempty"`
	Duration        string `json:"duration,omitempty"`
}

func newTimeEntryView(e core.TimeEntry) timeEntryView {
	v := timeEntryView{TimeEntry: e, Running: e.Running()}
	if d, ok := e.Duration(); ok {
		secs := int64(d / time.Second)
		v.DurationSeconds = &secs
		v.Duration = core.FormatHHMM(d)
	}
	return v
}

func (s *Server) handleListTimeEntries(w http.ResponseWriter, r *http.Request) {
	entries, err := s.svc.TimeEntries.List(r.Context())
	if err != nil {
		writeError(w, r, core.EntityTimeEntry, err)
		return
	}

	views := make([]timeEntryView, 0, len(entries))
	for _, e := range entries {
		views = append(views, newTimeEntryView(e))
	}
	OK(w, views)
}

func (s *Server) handleGetTimeEntry(w http.ResponseWriter, r *http.Request) {
	e, err := s.svc.TimeEntries.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, core.EntityTimeEntry, err)
		return
	}
	OK(w, newTimeEntryView(e))
}

func (s *Server) handleActiveTimeEntry(w http.ResponseWriter, r *http.Request) {
	e, err := s.svc.TimeEntries.Active(r.Context())
	if err != nil {
		writeError(w, r, core.EntityTimeEntry, err)
		return
	}
	if e == nil {
		OK(w, nil)
		return
	}
	OK(w, newTimeEntryView(*e))
}

// handleCreateTimeEntry starts the timer, or records a historical entry
// when the body carries startedAt.
func (s *Server) handleCreateTimeEntry(w http.ResponseWriter, r *http.Request) {
	var req timeEntryRequest
	if err := decodeJSON(w, r, core.EntityTimeEntry, &req); err != nil {
		writeError(w, r, core.EntityTimeEntry, err)
		return
	}
	notes := sanitizeInput(deref(req.Notes))

	if req.StartedAt == nil {
		if req.EndedAt != nil {
			writeError(w, r, core.EntityTimeEntry, core.Validation(core.EntityTimeEntry, "endedAt requires startedAt."))
			return
		}
		e, err := s.svc.TimeEntries.Start(r.Context(), services.StartInput{
			ProjectID:  req.ProjectID,
			TaskNameID: req.TaskNameID,
			Notes:      notes,
		})
		if err != nil {
			writeError(w, r, core.EntityTimeEntry, err)
			return
		}
		Created(w, newTimeEntryView(e))
		return
	}

	started, err := parseTimestamp("startedAt", req.StartedAt)
	if err != nil {
		writeError(w, r, core.EntityTimeEntry, err)
		return
	}
	ended, err := parseTimestamp("endedAt", req.EndedAt)
	if err != nil {
		writeError(w, r, core.EntityTimeEntry, err)
		return
	}

	e, err := s.svc.TimeEntries.Create(r.Context(), services.CreateInput{
		ProjectID:  req.ProjectID,
		TaskNameID: req.TaskNameID,
		Notes:      notes,
		StartedAt:  *started,
		EndedAt:    ended,
	})
	if err != nil {
		writeError(w, r, core.EntityTimeEntry, err)
		return
	}
	Created(w, newTimeEntryView(e))
}

func (s *Server) handleUpdateTimeEntry(w http.ResponseWriter, r *http.Request) {
	var req timeEntryRequest
	if err := decodeJSON(w, r, core.EntityTimeEntry, &req); err != nil {
		writeError(w, r, core.EntityTimeEntry, err)
		return
	}

	var (
		in  = services.UpdateInput{Notes: sanitizePtr(req.Notes)}
		err error
	)
	if in.StartedAt, err = parseTimestamp("startedAt", req.StartedAt); err != nil {
		writeError(w, r, core.EntityTimeEntry, err)
		return
	}
	if in.EndedAt, err = parseTimestamp("endedAt", req.EndedAt); err != nil {
		writeError(w, r, core.EntityTimeEntry, err)
		return
	}

	e, err := s.svc.TimeEntries.Update(r.Context(), r.PathValue("id"), in)
	if err != nil {
		writeError(w, r, core.EntityTimeEntry, err)
		return
	}
	OK(w, newTimeEntryView(e))
}

func (s *Server) handleStopTimeEntry(w http.ResponseWriter, r *http.Request) {
	e, err := s.svc.TimeEntries.Stop(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, core.EntityTimeEntry, err)
		return
	}
	OK(w, newTimeEntryView(e))
}

func (s *Server) handleDeleteTimeEntry(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.svc.TimeEntries.Delete(r.Context(), id); err != nil {
		writeError(w, r, core.EntityTimeEntry, err)
		return
	}
	OK(w, map[string]string{"id": id})
}

