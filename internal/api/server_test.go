package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/enerbat/bacs-engine/internal/assessment"
	"github.com/enerbat/bacs-engine/internal/catalog"
	"github.com/enerbat/bacs-engine/internal/config"
	"github.com/enerbat/bacs-engine/internal/models"
	"github.com/enerbat/bacs-engine/internal/services"
	"github.com/enerbat/bacs-engine/internal/storage"
)

const testAPIKey = "sk_test_1234567890"

func newTestServer(t *testing.T) (*Server, *storage.MemoryRepository) {
	t.Helper()

	catalogDir := filepath.Join("..", "..", "catalog")
	if _, err := os.Stat(catalogDir); os.IsNotExist(err) {
		t.Skip("catalog directory not found, skipping")
	}

	loader := catalog.NewLoader()
	if err := loader.LoadFromDir(catalogDir); err != nil {
		t.Fatalf("failed to load catalog: %v", err)
	}

	repo := storage.NewMemoryRepository()
	repo.AddClient(models.ApiClient{
		ID:       "c1",
		Name:     "test client",
		ApiKey:   testAPIKey,
		UserID:   "u1",
		IsActive: true,
	})

	service := assessment.NewService(loader, repo, nil)
	server := NewServer(config.ServerConfig{Host: "127.0.0.1", Port: 8080}, service, loader, repo, services.NewRegistry())
	return server, repo
}

func doRequest(t *testing.T, server *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	req.Header.Set("Authorization", "Bearer "+testAPIKey)
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)
	return rec
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, out interface{}) {
	t.Helper()

	var envelope struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("failed to decode envelope: %v: %s", err, rec.Body.String())
	}
	if !envelope.Success {
		t.Fatalf("expected success envelope: %s", rec.Body.String())
	}
	if out != nil {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			t.Fatalf("failed to decode data: %v", err)
		}
	}
}

func TestAuthRequired(t *testing.T) {
	server, _ := newTestServer(t)

	req := httptest.NewRequest("GET", "/api/v1/projects", nil)
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without api key, got %d", rec.Code)
	}

	req = httptest.NewRequest("GET", "/api/v1/projects", nil)
	req.Header.Set("X-API-Key", "sk_wrong_key")
	rec = httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 with wrong api key, got %d", rec.Code)
	}
}

func TestHealthIsPublic(t *testing.T) {
	server, _ := newTestServer(t)

	req := httptest.NewRequest("GET", "/health", nil)
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 for /health without auth, got %d", rec.Code)
	}
}

func TestProjectLifecycle(t *testing.T) {
	server, _ := newTestServer(t)

	// Create
	rec := doRequest(t, server, "POST", "/api/v1/projects", `{"name":"Tour Horizon","building":"IGH bureaux"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var project models.Project
	decodeData(t, rec, &project)
	if project.ID == "" || project.UserID != "u1" {
		t.Fatalf("unexpected project: %+v", project)
	}

	// Get
	rec = doRequest(t, server, "GET", "/api/v1/projects/"+project.ID, "")
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}

	// Category settings seeded on creation: all seven enabled
	rec = doRequest(t, server, "GET", "/api/v1/projects/"+project.ID+"/categories", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var settings struct {
		Categories map[string]bool `json:"categories"`
	}
	decodeData(t, rec, &settings)
	if len(settings.Categories) != 7 {
		t.Fatalf("expected 7 categories, got %d", len(settings.Categories))
	}
	for id, enabled := range settings.Categories {
		if !enabled {
			t.Errorf("category %s: expected enabled by default", id)
		}
	}

	// Delete
	rec = doRequest(t, server, "DELETE", "/api/v1/projects/"+project.ID, "")
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 on delete, got %d", rec.Code)
	}
	rec = doRequest(t, server, "GET", "/api/v1/projects/"+project.ID, "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 after delete, got %d", rec.Code)
	}
}

func TestForeignProjectReadsAsNotFound(t *testing.T) {
	server, repo := newTestServer(t)

	now := time.Now().UTC()
	if err := repo.CreateProject(context.Background(), &models.Project{
		ID: "foreign", UserID: "u2", Name: "Autre site", CreatedAt: now, UpdatedAt: now,
	}); err != nil {
		t.Fatal(err)
	}

	for _, path := range []string{
		"/api/v1/projects/foreign",
		"/api/v1/projects/foreign/assessments",
		"/api/v1/projects/foreign/results",
	} {
		rec := doRequest(t, server, "GET", path, "")
		if rec.Code != http.StatusNotFound {
			t.Errorf("%s: expected 404 for foreign project, got %d", path, rec.Code)
		}
	}
}

func TestAssessmentEndpoint(t *testing.T) {
	server, _ := newTestServer(t)

	rec := doRequest(t, server, "POST", "/api/v1/projects", `{"name":"Site test"}`)
	var project models.Project
	decodeData(t, rec, &project)

	base := "/api/v1/projects/" + project.ID

	// Valid selection
	rec = doRequest(t, server, "PUT", base+"/assessments/chauffage.regulation_emission",
		`{"classType":"B","selectedOption":"regulation_piece"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	// Option/class mismatch rejected
	rec = doRequest(t, server, "PUT", base+"/assessments/chauffage.regulation_emission",
		`{"classType":"A","selectedOption":"regulation_piece"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for class mismatch, got %d", rec.Code)
	}

	// Unknown sub-category rejected
	rec = doRequest(t, server, "PUT", base+"/assessments/chauffage.inconnu",
		`{"classType":"B","selectedOption":"regulation_piece"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown sub-category, got %d", rec.Code)
	}

	// Invalid class letter rejected
	rec = doRequest(t, server, "PUT", base+"/assessments/chauffage.regulation_emission",
		`{"classType":"E","selectedOption":"regulation_piece"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for invalid class, got %d", rec.Code)
	}

	// The recorded selection is readable back under its composite id
	rec = doRequest(t, server, "GET", base+"/assessments", "")
	var data struct {
		Assessments map[string]models.Selection `json:"assessments"`
	}
	decodeData(t, rec, &data)
	sel, ok := data.Assessments["chauffage.regulation_emission"]
	if !ok {
		t.Fatalf("selection missing from listing: %v", data.Assessments)
	}
	if sel.Class != models.ClassB || sel.OptionID != "regulation_piece" {
		t.Errorf("unexpected selection: %+v", sel)
	}

	// And drives the result
	rec = doRequest(t, server, "GET", base+"/results", "")
	var result models.ProjectResult
	decodeData(t, rec, &result)
	if result.FinalClass != models.ClassB {
		t.Errorf("expected final class B, got %s", result.FinalClass)
	}
}

func TestToggleEndpoint(t *testing.T) {
	server, _ := newTestServer(t)

	rec := doRequest(t, server, "POST", "/api/v1/projects", `{"name":"Site toggle"}`)
	var project models.Project
	decodeData(t, rec, &project)

	base := "/api/v1/projects/" + project.ID

	rec = doRequest(t, server, "POST", base+"/categories/stores/toggle", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var toggled struct {
		IsEnabled bool `json:"is_enabled"`
	}
	decodeData(t, rec, &toggled)
	if toggled.IsEnabled {
		t.Error("expected stores disabled after toggle")
	}

	rec = doRequest(t, server, "POST", base+"/categories/plomberie/toggle", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown category, got %d", rec.Code)
	}
}

func TestCatalogEndpoints(t *testing.T) {
	server, _ := newTestServer(t)

	rec := doRequest(t, server, "GET", "/api/v1/catalog", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var data struct {
		Categories []*models.Category `json:"categories"`
		Total      int                `json:"total"`
	}
	decodeData(t, rec, &data)
	if data.Total != 7 {
		t.Errorf("expected 7 categories, got %d", data.Total)
	}
	if data.Categories[0].ID != "chauffage" {
		t.Errorf("expected chauffage first in display order, got %s", data.Categories[0].ID)
	}

	rec = doRequest(t, server, "GET", "/api/v1/catalog/gtb", "")
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 for gtb, got %d", rec.Code)
	}

	rec = doRequest(t, server, "GET", "/api/v1/catalog/plomberie", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown category, got %d", rec.Code)
	}
}
