// Package assessment holds the per-project assessment and
// category-enablement state and keeps it synchronized with the remote
// store. It is the only writer of that state; handlers and workers go
// through the Service interface.
package assessment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/enerbat/bacs-engine/internal/catalog"
	"github.com/enerbat/bacs-engine/internal/models"
	"github.com/enerbat/bacs-engine/internal/storage"
)

// Common errors
var (
	ErrProjectNotFound     = errors.New("project not found")
	ErrCategoryUnknown     = errors.New("unknown category")
	ErrSubCategoryUnknown  = errors.New("unknown sub-category")
	ErrOptionUnknown       = errors.New("unknown option for sub-category")
	ErrClassOptionMismatch = errors.New("selected option does not carry the selected class")
)

// writePolicy names the two synchronization disciplines used below.
// Assessment updates are write-through: the remote upsert must succeed
// before local state is committed, and failures propagate to the caller.
// Enablement toggles are optimistic: local state flips first so the UI
// feels instantaneous, and a failed persist triggers a full reload of
// the project's authoritative state instead of an error.
type writePolicy int

const (
	writeThrough writePolicy = iota
	optimistic
)

func (p writePolicy) String() string {
	if p == optimistic {
		return "optimistic"
	}
	return "write-through"
}

// Service is the state interface consumed by the HTTP layer and the
// background reconciler.
type Service interface {
	// LoadAssessments batch-loads every assessment row visible to a user
	// and seeds default enablement for projects that have none yet.
	LoadAssessments(ctx context.Context, userID string, admin bool) error

	// LoadProject loads a project's full state: its persisted selections
	// and its enablement rows (lazily seeding defaults for the latter).
	LoadProject(ctx context.Context, projectID string) error

	// Assessments returns a copy of a project's selection mapping; empty
	// for unknown projects, never an error.
	Assessments(projectID string) map[string]models.Selection

	// UpdateAssessment records one class selection (write-through).
	UpdateAssessment(ctx context.Context, projectID, subCategoryID string, class models.ClassType, optionID string) error

	// EnabledCategories returns the enabled category ids from memory.
	EnabledCategories(projectID string) []string

	// ToggleCategory flips a category's enablement (optimistic).
	ToggleCategory(ctx context.Context, categoryID, projectID string) error

	// Result returns the computed aggregate for a project, preferring the
	// cache and recomputing on miss.
	Result(ctx context.Context, projectID string) (*models.ProjectResult, error)

	// Recompute re-derives and re-persists a project's global results.
	// Best-effort: failures are logged, never returned.
	Recompute(ctx context.Context, projectID string)

	// Subscribe registers for result pushes of one project.
	Subscribe(projectID string) (<-chan models.ProjectResult, func())

	// Forget drops a project's in-memory mirror and cached result,
	// called after the project is deleted from the store.
	Forget(ctx context.Context, projectID string)

	Ping(ctx context.Context) error
}

// projectState is the in-memory mirror of one project's remote rows.
// Selections and enablement load independently: either half being
// present must never be taken as proof the other was fetched, or a
// recompute off the half-empty mirror would persist a wrong aggregate.
type projectState struct {
	selections       map[string]models.Selection
	selectionsLoaded bool
	enabled          map[string]bool
	enablementLoaded bool
	// generation increments on every committed mutation; reloads started
	// before a mutation must not overwrite the newer state.
	generation uint64
}

// SyncService implements Service on top of a Repository, a result cache
// and a subscriber notifier. Constructed once in main and passed down;
// there is no package-level state.
type SyncService struct {
	catalog  *catalog.Loader
	repo     storage.Repository
	cache    *ResultCache
	notifier *Notifier

	mu       sync.RWMutex
	projects map[string]*projectState
}

// NewService creates a SyncService. cache may be nil when no Redis is
// configured; results are then always recomputed on read.
func NewService(cat *catalog.Loader, repo storage.Repository, cache *ResultCache) *SyncService {
	return &SyncService{
		catalog:  cat,
		repo:     repo,
		cache:    cache,
		notifier: NewNotifier(),
		projects: make(map[string]*projectState),
	}
}

// Ping checks that the backing store is reachable.
func (s *SyncService) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

// Subscribe registers for result pushes of one project.
func (s *SyncService) Subscribe(projectID string) (<-chan models.ProjectResult, func()) {
	return s.notifier.Subscribe(projectID)
}

func (s *SyncService) state(projectID string) *projectState {
	st := s.projects[projectID]
	if st == nil {
		st = &projectState{
			selections: make(map[string]models.Selection),
			enabled:    make(map[string]bool),
		}
		s.projects[projectID] = st
	}
	return st
}

// --- Assessment store ---

// Assessments returns a copy of the selection mapping for a project.
func (s *SyncService) Assessments(projectID string) map[string]models.Selection {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := s.projects[projectID]
	if st == nil {
		return map[string]models.Selection{}
	}

	result := make(map[string]models.Selection, len(st.selections))
	for k, v := range st.selections {
		result[k] = v
	}
	return result
}

// UpdateAssessment records one class selection. Policy: writeThrough —
// the remote upsert runs first, memory is only committed on success, and
// a remote failure propagates to the caller untouched.
func (s *SyncService) UpdateAssessment(ctx context.Context, projectID, subCategoryID string, class models.ClassType, optionID string) error {
	if !class.Valid() {
		return fmt.Errorf("invalid class %q", class)
	}

	categoryID, localID, err := models.SplitSubCategoryID(subCategoryID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSubCategoryUnknown, err)
	}
	if s.catalog.SubCategory(subCategoryID) == nil {
		return fmt.Errorf("%w: %s", ErrSubCategoryUnknown, subCategoryID)
	}

	option := s.catalog.Option(subCategoryID, optionID)
	if option == nil {
		return fmt.Errorf("%w: %s/%s", ErrOptionUnknown, subCategoryID, optionID)
	}
	if option.Class != class {
		return fmt.Errorf("%w: option %s is class %s", ErrClassOptionMismatch, optionID, option.Class)
	}

	slog.Debug("updating assessment",
		"project_id", projectID, "sub_category", subCategoryID, "policy", writeThrough)

	// The recompute below derives from the full in-memory mirror, so the
	// project's persisted state must be in memory before this selection
	// joins it.
	if err := s.ensureProject(ctx, projectID); err != nil {
		return err
	}

	now := time.Now().UTC()
	row := &models.AssessmentRow{
		ProjectID:     projectID,
		CategoryID:    categoryID,
		SubCategoryID: localID,
		Class:         class,
		OptionID:      optionID,
		LastUpdated:   now,
	}

	if err := s.repo.UpsertAssessment(ctx, row); err != nil {
		return fmt.Errorf("failed to persist assessment: %w", err)
	}

	s.mu.Lock()
	st := s.state(projectID)
	st.selections[subCategoryID] = models.Selection{
		Class:       class,
		OptionID:    optionID,
		LastUpdated: now,
	}
	st.generation++
	s.mu.Unlock()

	s.syncGlobalResults(ctx, projectID)
	return nil
}

// LoadAssessments fetches all assessment rows visible to the user in one
// batch, groups them by project and populates the in-memory store. For
// every project encountered without global-result rows it seeds default
// enablement (all categories on). Seeding is insert-if-absent, so racing
// with LoadProject is harmless.
func (s *SyncService) LoadAssessments(ctx context.Context, userID string, admin bool) error {
	rows, err := s.repo.ListAssessments(ctx, userID, admin)
	if err != nil {
		return fmt.Errorf("failed to load assessments: %w", err)
	}

	byProject := make(map[string]map[string]models.Selection)
	for _, row := range rows {
		m := byProject[row.ProjectID]
		if m == nil {
			m = make(map[string]models.Selection)
			byProject[row.ProjectID] = m
		}
		m[row.FullSubCategoryID()] = models.Selection{
			Class:       row.Class,
			OptionID:    row.OptionID,
			LastUpdated: row.LastUpdated,
		}
	}

	for projectID, selections := range byProject {
		s.mu.Lock()
		st := s.state(projectID)
		st.selections = selections
		st.selectionsLoaded = true
		st.generation++
		s.mu.Unlock()

		if err := s.ensureEnablementLoaded(ctx, projectID); err != nil {
			slog.Warn("failed to seed enablement during assessment load",
				"project_id", projectID, "error", err)
		}
	}

	slog.Info("assessments loaded", "projects", len(byProject), "rows", len(rows))
	return nil
}

// --- Category enablement store ---

// EnabledCategories derives the enabled set from memory; no round-trip.
// Catalog display order is preserved.
func (s *SyncService) EnabledCategories(projectID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := s.projects[projectID]
	if st == nil {
		return nil
	}

	var enabled []string
	for _, id := range s.catalog.CategoryIDs() {
		if st.enabled[id] {
			enabled = append(enabled, id)
		}
	}
	return enabled
}

// LoadProject makes sure a project's full state (selections and
// enablement) is in memory, fetching whichever half is missing.
func (s *SyncService) LoadProject(ctx context.Context, projectID string) error {
	return s.ensureProject(ctx, projectID)
}

// loadEnablement loads a project's enablement rows. No rows at all means
// first visit: defaults (everything enabled) are seeded remotely and in
// memory. When rows exist, a catalog category missing from them defaults
// to disabled — categories added to the catalog after a project was
// seeded must not silently count toward scoring.
func (s *SyncService) loadEnablement(ctx context.Context, projectID string) error {
	rows, err := s.repo.GetGlobalResults(ctx, projectID)
	if err != nil {
		return fmt.Errorf("failed to load enablement: %w", err)
	}

	categoryIDs := s.catalog.CategoryIDs()
	enabled := make(map[string]bool, len(categoryIDs))

	if len(rows) == 0 {
		// First visit. The existence check above guards re-entrant
		// initialization; the insert itself is conflict-tolerant.
		if err := s.repo.SeedDefaultResults(ctx, projectID, categoryIDs, time.Now().UTC()); err != nil {
			return fmt.Errorf("failed to seed default enablement: %w", err)
		}
		for _, id := range categoryIDs {
			enabled[id] = true
		}
	} else {
		stored := make(map[string]bool, len(rows))
		for _, row := range rows {
			stored[row.CategoryID] = row.IsEnabled
		}
		for _, id := range categoryIDs {
			enabled[id] = stored[id]
		}
	}

	s.mu.Lock()
	st := s.state(projectID)
	st.enabled = enabled
	st.enablementLoaded = true
	st.generation++
	s.mu.Unlock()

	return nil
}

// ToggleCategory flips one category. Policy: optimistic — memory first,
// then persist; a persistence failure is swallowed after reloading the
// authoritative remote state for the whole project.
func (s *SyncService) ToggleCategory(ctx context.Context, categoryID, projectID string) error {
	if s.catalog.Category(categoryID) == nil {
		return fmt.Errorf("%w: %s", ErrCategoryUnknown, categoryID)
	}

	// Full load, not just enablement: the flip triggers a recompute, and
	// a recompute off a selection-less mirror would overwrite the stored
	// aggregate with an empty one.
	if err := s.ensureProject(ctx, projectID); err != nil {
		return err
	}

	slog.Debug("toggling category",
		"project_id", projectID, "category_id", categoryID, "policy", optimistic)

	s.mu.Lock()
	st := s.state(projectID)
	newState := !st.enabled[categoryID]
	st.enabled[categoryID] = newState
	st.generation++
	generation := st.generation
	s.mu.Unlock()

	if err := s.repo.SetCategoryEnabled(ctx, projectID, categoryID, newState, time.Now().UTC()); err != nil {
		slog.Error("failed to persist category toggle, reloading authoritative state",
			"project_id", projectID, "category_id", categoryID, "error", err)
		s.reloadAuthoritative(ctx, projectID, generation)
		return nil
	}

	s.syncGlobalResults(ctx, projectID)
	return nil
}

// ensureEnablementLoaded lazily loads a project's enablement the first
// time it is touched in this process. Used by the batch assessment
// loader, which brings the selections itself.
func (s *SyncService) ensureEnablementLoaded(ctx context.Context, projectID string) error {
	s.mu.RLock()
	st := s.projects[projectID]
	loaded := st != nil && st.enablementLoaded
	s.mu.RUnlock()

	if loaded {
		return nil
	}
	return s.loadEnablement(ctx, projectID)
}

// reloadAuthoritative overwrites in-memory state with the remote truth
// after a failed optimistic write. The generation check drops the reload
// if a newer mutation committed while it was in flight.
func (s *SyncService) reloadAuthoritative(ctx context.Context, projectID string, generation uint64) {
	rows, err := s.repo.GetGlobalResults(ctx, projectID)
	if err != nil {
		slog.Error("failed to reload authoritative enablement", "project_id", projectID, "error", err)
		return
	}

	stored := make(map[string]bool, len(rows))
	for _, row := range rows {
		stored[row.CategoryID] = row.IsEnabled
	}

	enabled := make(map[string]bool)
	if len(rows) == 0 {
		for _, id := range s.catalog.CategoryIDs() {
			enabled[id] = true
		}
	} else {
		for _, id := range s.catalog.CategoryIDs() {
			enabled[id] = stored[id]
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.state(projectID)
	if st.generation != generation {
		slog.Debug("skipping stale enablement reload", "project_id", projectID)
		return
	}
	st.enabled = enabled
	st.enablementLoaded = true
}

// ensureProject makes sure both selections and enablement of a project
// are in memory, fetching whichever half has not been loaded yet.
func (s *SyncService) ensureProject(ctx context.Context, projectID string) error {
	s.mu.RLock()
	st := s.projects[projectID]
	selectionsLoaded := st != nil && st.selectionsLoaded
	enablementLoaded := st != nil && st.enablementLoaded
	s.mu.RUnlock()

	if !selectionsLoaded {
		rows, err := s.repo.GetAssessments(ctx, projectID)
		if err != nil {
			return fmt.Errorf("failed to load project assessments: %w", err)
		}

		selections := make(map[string]models.Selection, len(rows))
		for _, row := range rows {
			selections[row.FullSubCategoryID()] = models.Selection{
				Class:       row.Class,
				OptionID:    row.OptionID,
				LastUpdated: row.LastUpdated,
			}
		}

		s.mu.Lock()
		st = s.state(projectID)
		st.selections = selections
		st.selectionsLoaded = true
		st.generation++
		s.mu.Unlock()
	}

	if enablementLoaded {
		return nil
	}
	return s.loadEnablement(ctx, projectID)
}

// Forget drops a project's in-memory mirror and its cached result. The
// store rows are the caller's responsibility; this runs after deletion.
func (s *SyncService) Forget(ctx context.Context, projectID string) {
	s.mu.Lock()
	delete(s.projects, projectID)
	s.mu.Unlock()

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, projectID); err != nil {
			slog.Warn("failed to invalidate cached result", "project_id", projectID, "error", err)
		}
	}
}
