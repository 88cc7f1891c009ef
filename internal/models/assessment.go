package models

import (
	"fmt"
	"strings"
	"time"
)

// Selection is one recorded decision for a sub-category: the chosen class
// and the catalog option that justified it. Absence of a Selection means
// "not yet evaluated", which is distinct from an explicit NA selection.
type Selection struct {
	Class       ClassType `json:"classType"`
	OptionID    string    `json:"selectedOption"`
	LastUpdated time.Time `json:"last_updated"`
}

// AssessmentRow is the persisted form of a Selection, keyed by
// (project, category, sub-category).
type AssessmentRow struct {
	ProjectID     string    `json:"project_id"`
	CategoryID    string    `json:"category_id"`
	SubCategoryID string    `json:"sub_category_id"` // local part, without the category prefix
	Class         ClassType `json:"selected_class"`
	OptionID      string    `json:"selected_option"`
	LastUpdated   time.Time `json:"last_updated"`
}

// FullSubCategoryID rebuilds the composite "<category>.<local>" id.
func (r AssessmentRow) FullSubCategoryID() string {
	return r.CategoryID + "." + r.SubCategoryID
}

// SplitSubCategoryID splits a composite sub-category id on its first dot.
func SplitSubCategoryID(id string) (categoryID, localID string, err error) {
	categoryID, localID, ok := strings.Cut(id, ".")
	if !ok || categoryID == "" || localID == "" {
		return "", "", fmt.Errorf("malformed sub-category id %q", id)
	}
	return categoryID, localID, nil
}

// UpdateAssessmentRequest is the body for PUT /projects/{id}/assessments/{subCategoryId}.
type UpdateAssessmentRequest struct {
	Class    string `json:"classType"`
	OptionID string `json:"selectedOption"`
}
