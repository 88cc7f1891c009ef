package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/enerbat/bacs-engine/internal/assessment"
	"github.com/enerbat/bacs-engine/internal/models"
)

// Assessment handlers

func (s *Server) handleGetAssessments(w http.ResponseWriter, r *http.Request) {
	project, ok := s.loadOwnedProject(w, r)
	if !ok {
		return
	}

	if err := s.service.LoadProject(r.Context(), project.ID); err != nil {
		slog.Error("failed to load project state", "error", err, "id", project.ID)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to load assessments")
		return
	}

	selections := s.service.Assessments(project.ID)
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"project_id":  project.ID,
		"assessments": selections,
		"total":       len(selections),
	})
}

func (s *Server) handleUpdateAssessment(w http.ResponseWriter, r *http.Request) {
	project, ok := s.loadOwnedProject(w, r)
	if !ok {
		return
	}

	subCategoryID := chi.URLParam(r, "subCategoryId")
	if subCategoryID == "" {
		respondError(w, http.StatusBadRequest, "validation_error", "sub-category id is required")
		return
	}

	var req models.UpdateAssessmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	class, err := models.ParseClass(req.Class)
	if err != nil {
		respondError(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	if req.OptionID == "" {
		respondError(w, http.StatusBadRequest, "validation_error", "selectedOption is required")
		return
	}

	err = s.service.UpdateAssessment(r.Context(), project.ID, subCategoryID, class, req.OptionID)
	if err != nil {
		switch {
		case errors.Is(err, assessment.ErrSubCategoryUnknown):
			respondError(w, http.StatusBadRequest, "validation_error", "unknown sub-category")
		case errors.Is(err, assessment.ErrOptionUnknown):
			respondError(w, http.StatusBadRequest, "validation_error", "unknown option for sub-category")
		case errors.Is(err, assessment.ErrClassOptionMismatch):
			respondError(w, http.StatusBadRequest, "validation_error", "selected option does not carry the selected class")
		default:
			// Write-through: a persistence failure means the selection was
			// NOT recorded, and the caller must know.
			slog.Error("failed to update assessment", "error", err, "id", project.ID, "sub_category", subCategoryID)
			respondError(w, http.StatusInternalServerError, "internal_error", "failed to save assessment")
		}
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"project_id":      project.ID,
		"sub_category_id": subCategoryID,
		"classType":       class,
		"selectedOption":  req.OptionID,
	})
}

// Category enablement handlers

func (s *Server) handleGetCategorySettings(w http.ResponseWriter, r *http.Request) {
	project, ok := s.loadOwnedProject(w, r)
	if !ok {
		return
	}

	if err := s.service.LoadProject(r.Context(), project.ID); err != nil {
		slog.Error("failed to load enablement", "error", err, "id", project.ID)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to load category settings")
		return
	}

	enabled := s.service.EnabledCategories(project.ID)
	enabledSet := make(map[string]bool, len(enabled))
	for _, id := range enabled {
		enabledSet[id] = true
	}

	settings := make(map[string]bool)
	for _, id := range s.catalog.CategoryIDs() {
		settings[id] = enabledSet[id]
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"project_id": project.ID,
		"categories": settings,
	})
}

func (s *Server) handleToggleCategory(w http.ResponseWriter, r *http.Request) {
	project, ok := s.loadOwnedProject(w, r)
	if !ok {
		return
	}

	categoryID := chi.URLParam(r, "categoryId")
	if categoryID == "" {
		respondError(w, http.StatusBadRequest, "validation_error", "category id is required")
		return
	}

	if err := s.service.ToggleCategory(r.Context(), categoryID, project.ID); err != nil {
		if errors.Is(err, assessment.ErrCategoryUnknown) {
			respondError(w, http.StatusBadRequest, "validation_error", "unknown category")
			return
		}
		slog.Error("failed to toggle category", "error", err, "id", project.ID, "category", categoryID)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to toggle category")
		return
	}

	// Optimistic toggle: the in-memory state is authoritative for the
	// response even if the persist is still being reconciled.
	enabled := s.service.EnabledCategories(project.ID)
	isEnabled := false
	for _, id := range enabled {
		if id == categoryID {
			isEnabled = true
			break
		}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"project_id":  project.ID,
		"category_id": categoryID,
		"is_enabled":  isEnabled,
	})
}

// Result handlers

func (s *Server) handleGetResults(w http.ResponseWriter, r *http.Request) {
	project, ok := s.loadOwnedProject(w, r)
	if !ok {
		return
	}

	result, err := s.service.Result(r.Context(), project.ID)
	if err != nil {
		slog.Error("failed to compute result", "error", err, "id", project.ID)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to compute result")
		return
	}

	respondJSON(w, http.StatusOK, result)
}
