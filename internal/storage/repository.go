package storage

import (
	"context"
	"time"

	"github.com/enerbat/bacs-engine/internal/models"
)

// Repository defines the persistence interface for the assessment core.
// Not-found reads return (nil, nil); errors are reserved for the store
// itself misbehaving.
type Repository interface {
	// Projects
	CreateProject(ctx context.Context, p *models.Project) error
	GetProject(ctx context.Context, id string) (*models.Project, error)
	DeleteProject(ctx context.Context, id string) error
	ListProjects(ctx context.Context, filters models.ProjectListFilters) ([]*models.Project, error)

	// Assessments, keyed by (project, category, sub-category); upsert
	// semantics, last write wins.
	UpsertAssessment(ctx context.Context, row *models.AssessmentRow) error
	GetAssessments(ctx context.Context, projectID string) ([]*models.AssessmentRow, error)
	ListAssessments(ctx context.Context, userID string, admin bool) ([]*models.AssessmentRow, error)

	// Global results double as the category-enablement store: one row per
	// (project, category), carrying is_enabled plus the cached aggregate.
	GetGlobalResults(ctx context.Context, projectID string) ([]*models.GlobalResultRow, error)
	SetCategoryEnabled(ctx context.Context, projectID, categoryID string, enabled bool, ts time.Time) error
	SeedDefaultResults(ctx context.Context, projectID string, categoryIDs []string, ts time.Time) error
	ReplaceGlobalResults(ctx context.Context, projectID string, rows []*models.GlobalResultRow) error
	ListStaleResultProjects(ctx context.Context) ([]string, error)

	// API Clients
	GetClientByApiKey(ctx context.Context, apiKey string) (*models.ApiClient, error)
	UpdateClientLastUsed(ctx context.Context, apiKey string) error

	// Health
	Ping(ctx context.Context) error
	Close() error
}
