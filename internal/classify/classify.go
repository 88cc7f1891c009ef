// Package classify implements the worst-class aggregation rules of
// EN ISO 52120-1 style assessments. Everything here is pure: results are
// fully determined by the selections, the enabled-category set and the
// reference catalog.
package classify

import (
	"math"

	"github.com/enerbat/bacs-engine/internal/models"
)

// CatalogView is the slice of the reference catalog the engine needs.
// *catalog.Loader satisfies it.
type CatalogView interface {
	SubCategories(categoryID string) []models.SubCategory
}

// WorstClass reduces a set of class selections to the worst one.
// Severity ordering is A < B < C < D. NA selections are excluded from the
// comparison entirely; if nothing remains the result is NA. The full
// input is scanned, so the result does not depend on input order.
func WorstClass(classes []models.ClassType) models.ClassType {
	worst := models.ClassNA
	severity := 0
	for _, c := range classes {
		if s := c.Severity(); s > severity {
			worst = c
			severity = s
		}
	}
	return worst
}

// FinalClass computes the project-level class: the worst class among all
// selections whose category is enabled. The enablement filter is applied
// before aggregation, so disabled categories never drive the result no
// matter how bad their selections are.
func FinalClass(assessment map[string]models.Selection, enabledCategories []string) models.ClassType {
	enabled := toSet(enabledCategories)

	var classes []models.ClassType
	for subID, sel := range assessment {
		categoryID, _, err := models.SplitSubCategoryID(subID)
		if err != nil {
			continue
		}
		if enabled[categoryID] {
			classes = append(classes, sel.Class)
		}
	}
	return WorstClass(classes)
}

// WorstClassInCategory is WorstClass restricted to one category's
// sub-categories, used for category-level badges.
func WorstClassInCategory(categoryID string, assessment map[string]models.Selection, cat CatalogView) models.ClassType {
	var classes []models.ClassType
	for _, sub := range cat.SubCategories(categoryID) {
		if sel, ok := assessment[sub.ID]; ok {
			classes = append(classes, sel.Class)
		}
	}
	return WorstClass(classes)
}

// CategoryProgress counts evaluated sub-categories of one category.
// An explicit NA selection counts as completed: a decision was recorded.
func CategoryProgress(categoryID string, assessment map[string]models.Selection, cat CatalogView) models.Progress {
	subs := cat.SubCategories(categoryID)

	completed := 0
	for _, sub := range subs {
		if _, ok := assessment[sub.ID]; ok {
			completed++
		}
	}
	return progress(completed, len(subs))
}

// ProjectProgress aggregates completion over every enabled category,
// using the same counting rule as CategoryProgress.
func ProjectProgress(assessment map[string]models.Selection, enabledCategories []string, cat CatalogView) models.Progress {
	completed, total := 0, 0
	for _, categoryID := range enabledCategories {
		p := CategoryProgress(categoryID, assessment, cat)
		completed += p.Completed
		total += p.Total
	}
	return progress(completed, total)
}

func progress(completed, total int) models.Progress {
	p := models.Progress{Completed: completed, Total: total}
	if total > 0 {
		p.Percentage = int(math.Round(100 * float64(completed) / float64(total)))
	}
	return p
}

func toSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}
