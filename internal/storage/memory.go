package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/enerbat/bacs-engine/internal/models"
)

// MemoryRepository is an in-process Repository used by tests and local
// development. It mirrors the Postgres implementation's semantics:
// upsert-by-composite-key, not-found reads return (nil, nil), and
// ReplaceGlobalResults swaps a project's full row set atomically.
type MemoryRepository struct {
	mu sync.RWMutex

	projects    map[string]models.Project
	assessments map[string]map[string]models.AssessmentRow   // project -> "cat.sub" -> row
	results     map[string]map[string]models.GlobalResultRow // project -> category -> row
	clients     map[string]models.ApiClient                  // api key -> client

	// FailWrites makes every mutating call return an error, for testing
	// the persistence-failure paths.
	FailWrites bool
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		projects:    make(map[string]models.Project),
		assessments: make(map[string]map[string]models.AssessmentRow),
		results:     make(map[string]map[string]models.GlobalResultRow),
		clients:     make(map[string]models.ApiClient),
	}
}

func (r *MemoryRepository) writeErr() error {
	if r.FailWrites {
		return fmt.Errorf("memory repository: writes disabled")
	}
	return nil
}

// --- Projects ---

func (r *MemoryRepository) CreateProject(ctx context.Context, p *models.Project) error {
	if err := r.writeErr(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.projects[p.ID]; exists {
		return fmt.Errorf("project already exists: %s", p.ID)
	}
	r.projects[p.ID] = *p
	return nil
}

func (r *MemoryRepository) GetProject(ctx context.Context, id string) (*models.Project, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.projects[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (r *MemoryRepository) DeleteProject(ctx context.Context, id string) error {
	if err := r.writeErr(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.projects[id]; !ok {
		return fmt.Errorf("project not found: %s", id)
	}
	delete(r.projects, id)
	delete(r.assessments, id)
	delete(r.results, id)
	return nil
}

func (r *MemoryRepository) ListProjects(ctx context.Context, filters models.ProjectListFilters) ([]*models.Project, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*models.Project
	for _, p := range r.projects {
		if filters.UserID != "" && p.UserID != filters.UserID {
			continue
		}
		p := p
		result = append(result, &p)
	}
	return result, nil
}

// --- Assessments ---

func (r *MemoryRepository) UpsertAssessment(ctx context.Context, row *models.AssessmentRow) error {
	if err := r.writeErr(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	byProject := r.assessments[row.ProjectID]
	if byProject == nil {
		byProject = make(map[string]models.AssessmentRow)
		r.assessments[row.ProjectID] = byProject
	}
	byProject[row.FullSubCategoryID()] = *row
	return nil
}

func (r *MemoryRepository) GetAssessments(ctx context.Context, projectID string) ([]*models.AssessmentRow, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*models.AssessmentRow
	for _, row := range r.assessments[projectID] {
		row := row
		result = append(result, &row)
	}
	return result, nil
}

func (r *MemoryRepository) ListAssessments(ctx context.Context, userID string, admin bool) ([]*models.AssessmentRow, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*models.AssessmentRow
	for projectID, rows := range r.assessments {
		if !admin {
			p, ok := r.projects[projectID]
			if !ok || p.UserID != userID {
				continue
			}
		}
		for _, row := range rows {
			row := row
			result = append(result, &row)
		}
	}
	return result, nil
}

// --- Global results ---

func (r *MemoryRepository) GetGlobalResults(ctx context.Context, projectID string) ([]*models.GlobalResultRow, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*models.GlobalResultRow
	for _, row := range r.results[projectID] {
		row := row
		result = append(result, &row)
	}
	return result, nil
}

func (r *MemoryRepository) SetCategoryEnabled(ctx context.Context, projectID, categoryID string, enabled bool, ts time.Time) error {
	if err := r.writeErr(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	byProject := r.results[projectID]
	if byProject == nil {
		byProject = make(map[string]models.GlobalResultRow)
		r.results[projectID] = byProject
	}

	row, ok := byProject[categoryID]
	if !ok {
		row = models.GlobalResultRow{
			ProjectID:  projectID,
			CategoryID: categoryID,
			FinalClass: models.ClassNA,
		}
	}
	row.IsEnabled = enabled
	row.LastUpdated = ts
	byProject[categoryID] = row
	return nil
}

func (r *MemoryRepository) SeedDefaultResults(ctx context.Context, projectID string, categoryIDs []string, ts time.Time) error {
	if err := r.writeErr(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	byProject := r.results[projectID]
	if byProject == nil {
		byProject = make(map[string]models.GlobalResultRow)
		r.results[projectID] = byProject
	}

	for _, categoryID := range categoryIDs {
		if _, exists := byProject[categoryID]; exists {
			continue
		}
		byProject[categoryID] = models.GlobalResultRow{
			ProjectID:   projectID,
			CategoryID:  categoryID,
			FinalClass:  models.ClassNA,
			IsEnabled:   true,
			LastUpdated: ts,
		}
	}
	return nil
}

func (r *MemoryRepository) ReplaceGlobalResults(ctx context.Context, projectID string, rows []*models.GlobalResultRow) error {
	if err := r.writeErr(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	byProject := make(map[string]models.GlobalResultRow, len(rows))
	for _, row := range rows {
		byProject[row.CategoryID] = *row
	}
	r.results[projectID] = byProject
	return nil
}

func (r *MemoryRepository) ListStaleResultProjects(ctx context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var ids []string
	for projectID, rows := range r.assessments {
		var newestAssessment time.Time
		for _, row := range rows {
			if row.LastUpdated.After(newestAssessment) {
				newestAssessment = row.LastUpdated
			}
		}
		if newestAssessment.IsZero() {
			continue
		}

		var newestResult time.Time
		for _, row := range r.results[projectID] {
			if row.LastUpdated.After(newestResult) {
				newestResult = row.LastUpdated
			}
		}

		if newestResult.Before(newestAssessment) {
			ids = append(ids, projectID)
		}
	}
	return ids, nil
}

// --- API clients ---

// AddClient registers an API client (test setup helper).
func (r *MemoryRepository) AddClient(client models.ApiClient) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[client.ApiKey] = client
}

func (r *MemoryRepository) GetClientByApiKey(ctx context.Context, apiKey string) (*models.ApiClient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.clients[apiKey]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (r *MemoryRepository) UpdateClientLastUsed(ctx context.Context, apiKey string) error {
	if err := r.writeErr(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.clients[apiKey]; ok {
		now := time.Now()
		c.LastUsedAt = &now
		r.clients[apiKey] = c
	}
	return nil
}

// --- Health ---

func (r *MemoryRepository) Ping(ctx context.Context) error {
	return nil
}

func (r *MemoryRepository) Close() error {
	return nil
}
