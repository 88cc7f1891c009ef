package models

import "time"

// Progress counts evaluated sub-categories. An explicit NA selection
// counts as completed: a decision was recorded.
type Progress struct {
	Completed  int `json:"completed"`
	Total      int `json:"total"`
	Percentage int `json:"percentage"`
}

// GlobalResultRow mirrors the global_results table. One row exists per
// enabled category of a project; every row of a project carries the same
// project-level FinalClass and Progress so list views can filter by
// category without a join. These rows are a derived cache, never a
// source of truth.
type GlobalResultRow struct {
	ProjectID   string    `json:"project_id"`
	CategoryID  string    `json:"category_id"`
	FinalClass  ClassType `json:"final_class"`
	Progress    int       `json:"project_progress"`
	IsEnabled   bool      `json:"is_enabled"`
	LastUpdated time.Time `json:"last_updated"`
}

// CategoryResult is the per-category breakdown of a project result.
type CategoryResult struct {
	CategoryID string    `json:"category_id"`
	Enabled    bool      `json:"enabled"`
	WorstClass ClassType `json:"worst_class"`
	Progress   Progress  `json:"progress"`
}

// ProjectResult is the computed aggregate served to summary views and
// pushed over the result stream.
type ProjectResult struct {
	ProjectID   string           `json:"project_id"`
	FinalClass  ClassType        `json:"final_class"`
	Progress    Progress         `json:"progress"`
	Categories  []CategoryResult `json:"categories"`
	LastUpdated time.Time        `json:"last_updated"`
}
