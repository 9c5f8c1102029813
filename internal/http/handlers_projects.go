package http

import (
	"net/http"

	"timetrack/internal/core"
	"timetrack/internal/services"
)

type projectRequest struct {
	Name  *string `json:"name"`
	Color *string `json:"color"`
}

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.svc.Projects.List(r.Context())
	if err != nil {
		writeError(w, r, core.EntityProject, err)
		return
	}
	OK(w, projects)
}

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var req projectRequest
	if err := decodeJSON(w, r, core.EntityProject, &req); err != nil {
		writeError(w, r, core.EntityProject, err)
		return
	}

	p, err := s.svc.Projects.Create(r.Context(), sanitizeInput(deref(req.Name)), deref(req.Color))
	if err != nil {
		writeError(w, r, core.EntityProject, err)
		return
	}
	Created(w, p)
}

func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	p, err := s.svc.Projects.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, core.EntityProject, err)
		return
	}
	OK(w, p)
}

func (s *Server) handleUpdateProject(w http.ResponseWriter, r *http.Request) {
	var req projectRequest
	if err := decodeJSON(w, r, core.EntityProject, &req); err != nil {
		writeError(w, r, core.EntityProject, err)
		return
	}

	p, err := s.svc.Projects.Update(r.Context(), r.PathValue("id"), services.ProjectUpdate{
		Name:  sanitizePtr(req.Name),
		Color: req.Color,
	})
	if err != nil {
		writeError(w, r, core.EntityProject, err)
		return
	}
	OK(w, p)
}

func (s *Server) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.svc.Projects.Delete(r.Context(), id); err != nil {
		writeError(w, r, core.EntityProject, err)
		return
	}
	OK(w, map[string]string{"id": id})
}
