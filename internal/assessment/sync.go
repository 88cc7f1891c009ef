package assessment

import (
	"context"
	"log/slog"
	"time"

	"github.com/enerbat/bacs-engine/internal/classify"
	"github.com/enerbat/bacs-engine/internal/models"
)

// syncGlobalResults is the global-results synchronizer: it re-derives the
// project aggregate from the in-memory stores and swaps the project's
// global_results rows in one transaction (one row per enabled category,
// each carrying the same project-level aggregate so summary queries can
// filter by category without a join). The rows are a derived cache, so
// every failure here is logged and swallowed; the reconciler retries
// later and the recompute is idempotent.
func (s *SyncService) syncGlobalResults(ctx context.Context, projectID string) {
	result := s.computeResult(projectID)

	rows := make([]*models.GlobalResultRow, 0, len(result.Categories))
	for _, cr := range result.Categories {
		if !cr.Enabled {
			continue
		}
		rows = append(rows, &models.GlobalResultRow{
			ProjectID:   projectID,
			CategoryID:  cr.CategoryID,
			FinalClass:  result.FinalClass,
			Progress:    result.Progress.Percentage,
			IsEnabled:   true,
			LastUpdated: result.LastUpdated,
		})
	}

	if err := s.repo.ReplaceGlobalResults(ctx, projectID, rows); err != nil {
		slog.Error("failed to replace global results", "project_id", projectID, "error", err)
		return
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, result); err != nil {
			slog.Warn("failed to cache project result", "project_id", projectID, "error", err)
		}
	}

	s.notifier.Publish(*result)

	slog.Info("global results updated",
		"project_id", projectID,
		"final_class", result.FinalClass,
		"progress", result.Progress.Percentage,
		"enabled_categories", len(rows),
	)
}

// computeResult derives the full project aggregate from memory.
func (s *SyncService) computeResult(projectID string) *models.ProjectResult {
	selections := s.Assessments(projectID)
	enabled := s.EnabledCategories(projectID)

	enabledSet := make(map[string]bool, len(enabled))
	for _, id := range enabled {
		enabledSet[id] = true
	}

	result := &models.ProjectResult{
		ProjectID:   projectID,
		FinalClass:  classify.FinalClass(selections, enabled),
		Progress:    classify.ProjectProgress(selections, enabled, s.catalog),
		LastUpdated: time.Now().UTC(),
	}

	for _, categoryID := range s.catalog.CategoryIDs() {
		result.Categories = append(result.Categories, models.CategoryResult{
			CategoryID: categoryID,
			Enabled:    enabledSet[categoryID],
			WorstClass: classify.WorstClassInCategory(categoryID, selections, s.catalog),
			Progress:   classify.CategoryProgress(categoryID, selections, s.catalog),
		})
	}

	return result
}

// Result serves the computed aggregate, preferring the cache. On a cache
// miss the project state is loaded if needed and the aggregate is
// recomputed (and re-cached via the synchronizer on the next mutation).
func (s *SyncService) Result(ctx context.Context, projectID string) (*models.ProjectResult, error) {
	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, projectID); err != nil {
			slog.Warn("result cache read failed", "project_id", projectID, "error", err)
		} else if cached != nil {
			return cached, nil
		}
	}

	if err := s.ensureProject(ctx, projectID); err != nil {
		return nil, err
	}

	return s.computeResult(projectID), nil
}

// Recompute re-derives and re-persists a project's global results,
// loading the project first if this process has not touched it yet.
// Used by the background reconciler; best-effort by contract.
func (s *SyncService) Recompute(ctx context.Context, projectID string) {
	if err := s.ensureProject(ctx, projectID); err != nil {
		slog.Error("failed to load project for recompute", "project_id", projectID, "error", err)
		return
	}
	s.syncGlobalResults(ctx, projectID)
}
