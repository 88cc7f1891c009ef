package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/enerbat/bacs-engine/internal/models"
)

// Project handlers

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	client := ClientFromContext(r.Context())
	if client == nil {
		respondError(w, http.StatusUnauthorized, "not_authenticated", "authentication required")
		return
	}

	var req models.CreateProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "validation_error", "name is required")
		return
	}

	now := time.Now().UTC()
	project := &models.Project{
		ID:        uuid.New().String(),
		UserID:    client.UserID,
		Name:      req.Name,
		Building:  req.Building,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.CreateProject(r.Context(), project); err != nil {
		slog.Error("failed to create project", "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to create project")
		return
	}

	// Seed default enablement so the first summary view has rows to read.
	if err := s.service.LoadProject(r.Context(), project.ID); err != nil {
		slog.Warn("failed to seed new project enablement", "project_id", project.ID, "error", err)
	}

	respondJSON(w, http.StatusCreated, project)
}

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	client := ClientFromContext(r.Context())
	if client == nil {
		respondError(w, http.StatusUnauthorized, "not_authenticated", "authentication required")
		return
	}

	filters := models.ProjectListFilters{
		UserID: client.UserID,
		Limit:  50, // default
		Offset: 0,
	}

	// Admins may list across users.
	if client.IsAdmin {
		filters.UserID = r.URL.Query().Get("user_id")
	}

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil && limit > 0 {
			filters.Limit = limit
		}
	}

	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil && offset >= 0 {
			filters.Offset = offset
		}
	}

	projects, err := s.repo.ListProjects(r.Context(), filters)
	if err != nil {
		slog.Error("failed to list projects", "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to list projects")
		return
	}

	// Warm the in-memory stores for the summary view. Best-effort: the
	// list itself is served from the projects table either way.
	if err := s.service.LoadAssessments(r.Context(), client.UserID, client.IsAdmin); err != nil {
		slog.Warn("failed to warm assessment store", "user_id", client.UserID, "error", err)
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"projects": projects,
		"total":    len(projects),
	})
}

func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	project, ok := s.loadOwnedProject(w, r)
	if !ok {
		return
	}

	respondJSON(w, http.StatusOK, project)
}

func (s *Server) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	project, ok := s.loadOwnedProject(w, r)
	if !ok {
		return
	}

	if err := s.repo.DeleteProject(r.Context(), project.ID); err != nil {
		slog.Error("failed to delete project", "error", err, "id", project.ID)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to delete project")
		return
	}

	// Drop the in-memory mirror and the cached result along with the rows
	s.service.Forget(r.Context(), project.ID)

	respondJSON(w, http.StatusOK, map[string]string{
		"message": "project deleted",
	})
}

// loadOwnedProject resolves the {id} route param to a project the caller
// may access. A project owned by someone else reads as not found, so the
// API never confirms foreign project ids.
func (s *Server) loadOwnedProject(w http.ResponseWriter, r *http.Request) (*models.Project, bool) {
	id := chi.URLParam(r, "id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "validation_error", "project id is required")
		return nil, false
	}

	client := ClientFromContext(r.Context())
	if client == nil {
		respondError(w, http.StatusUnauthorized, "not_authenticated", "authentication required")
		return nil, false
	}

	project, err := s.repo.GetProject(r.Context(), id)
	if err != nil {
		slog.Error("failed to get project", "error", err, "id", id)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to get project")
		return nil, false
	}

	if project == nil || (project.UserID != client.UserID && !client.IsAdmin) {
		respondError(w, http.StatusNotFound, "not_found", "project not found")
		return nil, false
	}

	return project, true
}
