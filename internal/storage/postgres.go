package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/enerbat/bacs-engine/internal/models"
)

// PostgresRepository implements Repository using PostgreSQL
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// PostgresConfig holds PostgreSQL connection configuration
type PostgresConfig struct {
	DSN          string
	MaxOpenConns int32
	MaxIdleConns int32
	MaxLifetime  time.Duration
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(ctx context.Context, cfg PostgresConfig) (*PostgresRepository, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DSN: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		poolConfig.MaxConns = cfg.MaxOpenConns
	} else {
		poolConfig.MaxConns = 25
	}

	if cfg.MaxIdleConns > 0 {
		poolConfig.MinConns = cfg.MaxIdleConns
	} else {
		poolConfig.MinConns = 5
	}

	if cfg.MaxLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxLifetime
	} else {
		poolConfig.MaxConnLifetime = 30 * time.Minute
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresRepository{pool: pool}, nil
}

// Ping checks database connectivity
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// Close closes the database connection pool
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// --- Projects ---

// CreateProject creates a new project record
func (r *PostgresRepository) CreateProject(ctx context.Context, p *models.Project) error {
	query := `
		INSERT INTO projects (id, user_id, name, building, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.pool.Exec(ctx, query,
		p.ID,
		p.UserID,
		p.Name,
		nullString(p.Building),
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create project: %w", err)
	}

	return nil
}

// GetProject retrieves a project by ID
func (r *PostgresRepository) GetProject(ctx context.Context, id string) (*models.Project, error) {
	query := `
		SELECT id, user_id, name, building, created_at, updated_at
		FROM projects
		WHERE id = $1
	`

	var p models.Project
	var building sql.NullString

	err := r.pool.QueryRow(ctx, query, id).Scan(
		&p.ID,
		&p.UserID,
		&p.Name,
		&building,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get project: %w", err)
	}

	p.Building = building.String
	return &p, nil
}

// DeleteProject deletes a project. Assessments and global results cascade
// at the schema level.
func (r *PostgresRepository) DeleteProject(ctx context.Context, id string) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("project not found: %s", id)
	}

	return nil
}

// ListProjects returns projects matching filters
func (r *PostgresRepository) ListProjects(ctx context.Context, filters models.ProjectListFilters) ([]*models.Project, error) {
	query := `
		SELECT id, user_id, name, building, created_at, updated_at
		FROM projects
		WHERE 1=1
	`
	args := make([]interface{}, 0)
	argNum := 1

	if filters.UserID != "" {
		query += fmt.Sprintf(" AND user_id = $%d", argNum)
		args = append(args, filters.UserID)
		argNum++
	}

	query += " ORDER BY created_at DESC"

	if filters.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argNum)
		args = append(args, filters.Limit)
		argNum++
	}

	if filters.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argNum)
		args = append(args, filters.Offset)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var projects []*models.Project

	for rows.Next() {
		var p models.Project
		var building sql.NullString

		if err := rows.Scan(&p.ID, &p.UserID, &p.Name, &building, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}

		p.Building = building.String
		projects = append(projects, &p)
	}

	return projects, rows.Err()
}

// --- Assessments ---

// UpsertAssessment writes one selection row, keyed by
// (project, category, sub-category). Last write wins.
func (r *PostgresRepository) UpsertAssessment(ctx context.Context, row *models.AssessmentRow) error {
	query := `
		INSERT INTO assessments (project_id, category_id, sub_category_id, selected_class, selected_option, last_updated)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (project_id, category_id, sub_category_id) DO UPDATE
		SET selected_class = EXCLUDED.selected_class,
		    selected_option = EXCLUDED.selected_option,
		    last_updated = EXCLUDED.last_updated
	`

	_, err := r.pool.Exec(ctx, query,
		row.ProjectID,
		row.CategoryID,
		row.SubCategoryID,
		string(row.Class),
		row.OptionID,
		row.LastUpdated,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert assessment: %w", err)
	}

	return nil
}

// GetAssessments retrieves all assessment rows for a project
func (r *PostgresRepository) GetAssessments(ctx context.Context, projectID string) ([]*models.AssessmentRow, error) {
	query := `
		SELECT project_id, category_id, sub_category_id, selected_class, selected_option, last_updated
		FROM assessments
		WHERE project_id = $1
	`

	rows, err := r.pool.Query(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to get assessments: %w", err)
	}
	defer rows.Close()

	return scanAssessments(rows)
}

// ListAssessments retrieves all assessment rows visible to a user in one
// batch. Admins see every project's rows.
func (r *PostgresRepository) ListAssessments(ctx context.Context, userID string, admin bool) ([]*models.AssessmentRow, error) {
	query := `
		SELECT a.project_id, a.category_id, a.sub_category_id, a.selected_class, a.selected_option, a.last_updated
		FROM assessments a
		JOIN projects p ON p.id = a.project_id
	`
	args := make([]interface{}, 0)

	if !admin {
		query += " WHERE p.user_id = $1"
		args = append(args, userID)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list assessments: %w", err)
	}
	defer rows.Close()

	return scanAssessments(rows)
}

func scanAssessments(rows pgx.Rows) ([]*models.AssessmentRow, error) {
	var result []*models.AssessmentRow

	for rows.Next() {
		var row models.AssessmentRow
		var classStr string

		err := rows.Scan(
			&row.ProjectID,
			&row.CategoryID,
			&row.SubCategoryID,
			&classStr,
			&row.OptionID,
			&row.LastUpdated,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan assessment: %w", err)
		}

		row.Class = models.ClassType(classStr)
		result = append(result, &row)
	}

	return result, rows.Err()
}

// --- Global results ---

// GetGlobalResults retrieves all global-result rows for a project
func (r *PostgresRepository) GetGlobalResults(ctx context.Context, projectID string) ([]*models.GlobalResultRow, error) {
	query := `
		SELECT project_id, category_id, final_class, project_progress, is_enabled, last_updated
		FROM global_results
		WHERE project_id = $1
	`

	rows, err := r.pool.Query(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to get global results: %w", err)
	}
	defer rows.Close()

	var result []*models.GlobalResultRow

	for rows.Next() {
		var row models.GlobalResultRow
		var classStr string

		err := rows.Scan(
			&row.ProjectID,
			&row.CategoryID,
			&classStr,
			&row.Progress,
			&row.IsEnabled,
			&row.LastUpdated,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan global result: %w", err)
		}

		row.FinalClass = models.ClassType(classStr)
		result = append(result, &row)
	}

	return result, rows.Err()
}

// SetCategoryEnabled upserts the is_enabled flag of one (project, category)
// row. A freshly inserted row carries a neutral NA aggregate until the
// next recompute replaces it.
func (r *PostgresRepository) SetCategoryEnabled(ctx context.Context, projectID, categoryID string, enabled bool, ts time.Time) error {
	query := `
		INSERT INTO global_results (project_id, category_id, final_class, project_progress, is_enabled, last_updated)
		VALUES ($1, $2, 'NA', 0, $3, $4)
		ON CONFLICT (project_id, category_id) DO UPDATE
		SET is_enabled = EXCLUDED.is_enabled, last_updated = EXCLUDED.last_updated
	`

	_, err := r.pool.Exec(ctx, query, projectID, categoryID, enabled, ts)
	if err != nil {
		return fmt.Errorf("failed to set category enabled: %w", err)
	}

	return nil
}

// SeedDefaultResults inserts one enabled row per category, skipping rows
// that already exist. Both the enablement and the assessment loading
// paths seed defaults; insert-if-absent keeps them idempotent against
// each other.
func (r *PostgresRepository) SeedDefaultResults(ctx context.Context, projectID string, categoryIDs []string, ts time.Time) error {
	query := `
		INSERT INTO global_results (project_id, category_id, final_class, project_progress, is_enabled, last_updated)
		VALUES ($1, $2, 'NA', 0, TRUE, $3)
		ON CONFLICT (project_id, category_id) DO NOTHING
	`

	for _, categoryID := range categoryIDs {
		if _, err := r.pool.Exec(ctx, query, projectID, categoryID, ts); err != nil {
			return fmt.Errorf("failed to seed default result for %s: %w", categoryID, err)
		}
	}

	return nil
}

// ReplaceGlobalResults swaps the full result set of a project in one
// transaction: delete everything, insert the recomputed rows. Stale rows
// for disabled categories disappear with the delete.
func (r *PostgresRepository) ReplaceGlobalResults(ctx context.Context, projectID string, rows []*models.GlobalResultRow) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM global_results WHERE project_id = $1`, projectID); err != nil {
		return fmt.Errorf("failed to delete global results: %w", err)
	}

	query := `
		INSERT INTO global_results (project_id, category_id, final_class, project_progress, is_enabled, last_updated)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	for _, row := range rows {
		_, err := tx.Exec(ctx, query,
			row.ProjectID,
			row.CategoryID,
			string(row.FinalClass),
			row.Progress,
			row.IsEnabled,
			row.LastUpdated,
		)
		if err != nil {
			return fmt.Errorf("failed to insert global result for %s: %w", row.CategoryID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit global results: %w", err)
	}

	return nil
}

// ListStaleResultProjects returns projects whose assessments are newer
// than their cached global results (or that have assessments but no
// results at all).
func (r *PostgresRepository) ListStaleResultProjects(ctx context.Context) ([]string, error) {
	query := `
		SELECT p.id
		FROM projects p
		JOIN (
			SELECT project_id, MAX(last_updated) AS newest
			FROM assessments
			GROUP BY project_id
		) a ON a.project_id = p.id
		LEFT JOIN (
			SELECT project_id, MAX(last_updated) AS newest
			FROM global_results
			GROUP BY project_id
		) g ON g.project_id = p.id
		WHERE g.newest IS NULL OR g.newest < a.newest
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list stale result projects: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan project id: %w", err)
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

// --- API clients ---

// GetClientByApiKey retrieves an API client by its key
func (r *PostgresRepository) GetClientByApiKey(ctx context.Context, apiKey string) (*models.ApiClient, error) {
	query := `
		SELECT id, name, api_key, user_id, is_admin, is_active, created_at, last_used_at
		FROM api_clients
		WHERE api_key = $1
	`

	var client models.ApiClient
	var lastUsedAt sql.NullTime

	err := r.pool.QueryRow(ctx, query, apiKey).Scan(
		&client.ID,
		&client.Name,
		&client.ApiKey,
		&client.UserID,
		&client.IsAdmin,
		&client.IsActive,
		&client.CreatedAt,
		&lastUsedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get api client: %w", err)
	}

	if lastUsedAt.Valid {
		client.LastUsedAt = &lastUsedAt.Time
	}

	return &client, nil
}

// UpdateClientLastUsed updates the last_used_at timestamp for a client
func (r *PostgresRepository) UpdateClientLastUsed(ctx context.Context, apiKey string) error {
	_, err := r.pool.Exec(ctx, `UPDATE api_clients SET last_used_at = NOW() WHERE api_key = $1`, apiKey)
	if err != nil {
		return fmt.Errorf("failed to update client last_used_at: %w", err)
	}

	return nil
}

// Helper for nullable values

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
