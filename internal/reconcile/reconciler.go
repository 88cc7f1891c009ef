// Package reconcile repairs the derived global-results cache. The
// synchronizer's delete-then-insert can be interrupted, and any
// individual recompute is best-effort; this worker periodically finds
// projects whose cached results lag behind their assessments and re-runs
// the recompute, which is idempotent.
package reconcile

import (
	"context"
	"log/slog"
	"time"

	"github.com/enerbat/bacs-engine/internal/assessment"
	"github.com/enerbat/bacs-engine/internal/storage"
)

// Reconciler handles periodic reconciliation of stale global results
type Reconciler struct {
	service  assessment.Service
	repo     storage.Repository
	interval time.Duration
}

// NewReconciler creates a new reconciliation worker
func NewReconciler(service assessment.Service, repo storage.Repository, interval time.Duration) *Reconciler {
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	return &Reconciler{
		service:  service,
		repo:     repo,
		interval: interval,
	}
}

// Start begins the reconciliation worker in a goroutine
func (r *Reconciler) Start(ctx context.Context) {
	go r.run(ctx)
}

func (r *Reconciler) run(ctx context.Context) {
	slog.Info("reconcile worker started", "interval", r.interval)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	// Run immediately on start
	r.reconcile(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.Info("reconcile worker stopped")
			return
		case <-ticker.C:
			r.reconcile(ctx)
		}
	}
}

// reconcile finds projects with stale cached results and recomputes them
func (r *Reconciler) reconcile(ctx context.Context) {
	slog.Debug("running reconcile cycle")

	stale, err := r.repo.ListStaleResultProjects(ctx)
	if err != nil {
		slog.Error("failed to list stale result projects", "error", err)
		return
	}

	if len(stale) == 0 {
		slog.Debug("no stale global results found")
		return
	}

	slog.Info("found projects with stale global results", "count", len(stale))

	for _, projectID := range stale {
		r.service.Recompute(ctx, projectID)
	}
}
