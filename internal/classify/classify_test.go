package classify

import (
	"testing"

	"github.com/enerbat/bacs-engine/internal/models"
)

// fakeCatalog is a minimal CatalogView for the aggregation tests.
type fakeCatalog map[string][]string

func (f fakeCatalog) SubCategories(categoryID string) []models.SubCategory {
	var subs []models.SubCategory
	for _, local := range f[categoryID] {
		subs = append(subs, models.SubCategory{
			ID:         categoryID + "." + local,
			CategoryID: categoryID,
		})
	}
	return subs
}

func sel(class models.ClassType) models.Selection {
	return models.Selection{Class: class, OptionID: "opt"}
}

func TestWorstClass(t *testing.T) {
	tests := []struct {
		name    string
		classes []models.ClassType
		want    models.ClassType
	}{
		{"empty", nil, models.ClassNA},
		{"single A", []models.ClassType{models.ClassA}, models.ClassA},
		{"B and C", []models.ClassType{models.ClassB, models.ClassC}, models.ClassC},
		{"D dominates", []models.ClassType{models.ClassA, models.ClassD, models.ClassB}, models.ClassD},
		{"NA excluded", []models.ClassType{models.ClassNA, models.ClassB}, models.ClassB},
		{"all NA", []models.ClassType{models.ClassNA, models.ClassNA}, models.ClassNA},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := WorstClass(tt.classes); got != tt.want {
				t.Errorf("WorstClass(%v) = %s, want %s", tt.classes, got, tt.want)
			}
		})
	}
}

func TestWorstClassOrderIndependent(t *testing.T) {
	base := []models.ClassType{models.ClassB, models.ClassD, models.ClassA, models.ClassNA, models.ClassC}
	want := WorstClass(base)

	// Rotate through every starting position
	for i := range base {
		rotated := append(append([]models.ClassType{}, base[i:]...), base[:i]...)
		if got := WorstClass(rotated); got != want {
			t.Errorf("rotation %d: WorstClass(%v) = %s, want %s", i, rotated, got, want)
		}
	}
}

func TestFinalClass(t *testing.T) {
	assessment := map[string]models.Selection{
		"chauffage.emission":    sel(models.ClassB),
		"chauffage.pompes":      sel(models.ClassA),
		"eclairage.occupation":  sel(models.ClassD),
		"ventilation.debit_air": sel(models.ClassNA),
	}

	// All categories enabled: D from eclairage wins
	got := FinalClass(assessment, []string{"chauffage", "eclairage", "ventilation"})
	if got != models.ClassD {
		t.Errorf("expected D with all categories enabled, got %s", got)
	}

	// Disabling eclairage removes its D from the aggregation
	got = FinalClass(assessment, []string{"chauffage", "ventilation"})
	if got != models.ClassB {
		t.Errorf("expected B with eclairage disabled, got %s", got)
	}

	// No categories enabled
	got = FinalClass(assessment, nil)
	if got != models.ClassNA {
		t.Errorf("expected NA with nothing enabled, got %s", got)
	}

	// Malformed keys are skipped, not fatal
	assessment["malformed"] = sel(models.ClassD)
	got = FinalClass(assessment, []string{"chauffage"})
	if got != models.ClassB {
		t.Errorf("expected malformed key to be ignored, got %s", got)
	}
}

func TestFinalClassScenarioTwoOfThree(t *testing.T) {
	// Three sub-categories enabled, two evaluated with B and C:
	// final class C, progress 2/3 = 67%.
	cat := fakeCatalog{"chauffage": {"s1", "s2", "s3"}}
	assessment := map[string]models.Selection{
		"chauffage.s1": sel(models.ClassB),
		"chauffage.s2": sel(models.ClassC),
	}
	enabled := []string{"chauffage"}

	if got := FinalClass(assessment, enabled); got != models.ClassC {
		t.Errorf("expected final class C, got %s", got)
	}

	p := ProjectProgress(assessment, enabled, cat)
	if p.Completed != 2 || p.Total != 3 || p.Percentage != 67 {
		t.Errorf("expected progress {2 3 67}, got %+v", p)
	}
}

func TestAllNASelectionsFullProgress(t *testing.T) {
	// Explicit NA everywhere: fully assessed, yet no class to report.
	cat := fakeCatalog{"stores": {"commande"}, "gtb": {"defauts", "reporting"}}
	assessment := map[string]models.Selection{
		"stores.commande": sel(models.ClassNA),
		"gtb.defauts":     sel(models.ClassNA),
		"gtb.reporting":   sel(models.ClassNA),
	}
	enabled := []string{"stores", "gtb"}

	if got := FinalClass(assessment, enabled); got != models.ClassNA {
		t.Errorf("expected final class NA, got %s", got)
	}

	p := ProjectProgress(assessment, enabled, cat)
	if p.Completed != 3 || p.Total != 3 || p.Percentage != 100 {
		t.Errorf("expected progress {3 3 100}, got %+v", p)
	}
}

func TestWorstClassInCategory(t *testing.T) {
	cat := fakeCatalog{
		"chauffage": {"s1", "s2"},
		"ecs":       {"s1"},
	}
	assessment := map[string]models.Selection{
		"chauffage.s1": sel(models.ClassC),
		"chauffage.s2": sel(models.ClassB),
		"ecs.s1":       sel(models.ClassD),
	}

	if got := WorstClassInCategory("chauffage", assessment, cat); got != models.ClassC {
		t.Errorf("expected C for chauffage, got %s", got)
	}
	if got := WorstClassInCategory("ecs", assessment, cat); got != models.ClassD {
		t.Errorf("expected D for ecs, got %s", got)
	}
	if got := WorstClassInCategory("ventilation", assessment, cat); got != models.ClassNA {
		t.Errorf("expected NA for unknown category, got %s", got)
	}
}

func TestCategoryProgress(t *testing.T) {
	cat := fakeCatalog{"ventilation": {"s1", "s2", "s3", "s4"}}

	// Nothing evaluated
	p := CategoryProgress("ventilation", nil, cat)
	if p.Completed != 0 || p.Total != 4 || p.Percentage != 0 {
		t.Errorf("expected progress {0 4 0}, got %+v", p)
	}

	// One evaluated, one explicit NA: both count
	assessment := map[string]models.Selection{
		"ventilation.s1": sel(models.ClassB),
		"ventilation.s2": sel(models.ClassNA),
	}
	p = CategoryProgress("ventilation", assessment, cat)
	if p.Completed != 2 || p.Total != 4 || p.Percentage != 50 {
		t.Errorf("expected progress {2 4 50}, got %+v", p)
	}

	// Empty catalog category: zero total, zero percentage, no divide
	p = CategoryProgress("missing", assessment, cat)
	if p.Completed != 0 || p.Total != 0 || p.Percentage != 0 {
		t.Errorf("expected progress {0 0 0}, got %+v", p)
	}
}

func TestProjectProgressBounds(t *testing.T) {
	cat := fakeCatalog{
		"chauffage": {"s1", "s2", "s3"},
		"ecs":       {"s1", "s2"},
	}
	enabled := []string{"chauffage", "ecs"}

	// Percentage stays within [0, 100] at every fill level
	assessment := map[string]models.Selection{}
	keys := []string{"chauffage.s1", "chauffage.s2", "chauffage.s3", "ecs.s1", "ecs.s2"}
	for i, key := range keys {
		assessment[key] = sel(models.ClassB)
		p := ProjectProgress(assessment, enabled, cat)
		if p.Percentage < 0 || p.Percentage > 100 {
			t.Errorf("step %d: percentage out of bounds: %d", i, p.Percentage)
		}
		if p.Completed != i+1 || p.Total != 5 {
			t.Errorf("step %d: expected %d/5, got %d/%d", i, i+1, p.Completed, p.Total)
		}
	}

	p := ProjectProgress(assessment, enabled, cat)
	if p.Percentage != 100 {
		t.Errorf("expected 100%% when fully assessed, got %d", p.Percentage)
	}
}
