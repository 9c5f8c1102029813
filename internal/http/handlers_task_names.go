package http

import (
	"net/http"

	"timetrack/internal/core"
	"timetrack/internal/services"
)

type taskNameRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

// handleListTaskNames serves autocomplete: ?q= filters by substring and
// ?limit= bounds the result.
func (s *Server) handleListTaskNames(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	names, err := s.svc.TaskNames.Search(r.Context(), sanitizeInput(query.Get("q")), parseLimit(query))
	if err != nil {
		writeError(w, r, core.EntityTaskName, err)
		return
	}
	OK(w, names)
}

func (s *Server) handleCreateTaskName(w http.ResponseWriter, r *http.Request) {
	var req taskNameRequest
	if err := decodeJSON(w, r, core.EntityTaskName, &req); err != nil {
		writeError(w, r, core.EntityTaskName, err)
		return
	}

	t, err := s.svc.TaskNames.Create(r.Context(), sanitizeInput(deref(req.Name)), sanitizeInput(deref(req.Description)))
	if err != nil {
		writeError(w, r, core.EntityTaskName, err)
		return
	}
	Created(w, t)
}

func (s *Server) handleGetTaskName(w http.ResponseWriter, r *http.Request) {
	t, err := s.svc.TaskNames.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, core.EntityTaskName, err)
		return
	}
	OK(w, t)
}

func (s *Server) handleUpdateTaskName(w http.ResponseWriter, r *http.Request) {
	var req taskNameRequest
	if err := decodeJSON(w, r, core.EntityTaskName, &req); err != nil {
		writeError(w, r, core.EntityTaskName, err)
		return
	}

	t, err := s.svc.TaskNames.Update(r.Context(), r.PathValue("id"), services.TaskNameUpdate{
		Name:        sanitizePtr(req.Name),
		Description: sanitizePtr(req.Description),
	})
	if err != nil {
		writeError(w, r, core.EntityTaskName, err)
		return
	}
	OK(w, t)
}

func (s *Server) handleDeleteTaskName(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.svc.TaskNames.Delete(r.Context(), id); err != nil {
		writeError(w, r, core.EntityTaskName, err)
		return
	}
	OK(w, map[string]string{"id": id})
}
