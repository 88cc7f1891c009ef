package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Catalog handlers. The catalog is loaded once at startup and immutable,
// so these never touch the store.

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	categories := s.catalog.Categories()
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"categories": categories,
		"total":      len(categories),
	})
}

func (s *Server) handleGetCategory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "categoryId")
	if id == "" {
		respondError(w, http.StatusBadRequest, "validation_error", "category id is required")
		return
	}

	category := s.catalog.Category(id)
	if category == nil {
		respondError(w, http.StatusNotFound, "not_found", "category not found")
		return
	}

	respondJSON(w, http.StatusOK, category)
}

func (s *Server) handleListSubCategories(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "categoryId")
	if id == "" {
		respondError(w, http.StatusBadRequest, "validation_error", "category id is required")
		return
	}

	if s.catalog.Category(id) == nil {
		respondError(w, http.StatusNotFound, "not_found", "category not found")
		return
	}

	subCategories := s.catalog.SubCategories(id)
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"sub_categories": subCategories,
		"total":          len(subCategories),
	})
}
