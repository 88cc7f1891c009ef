package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/enerbat/bacs-engine/internal/models"
)

func TestLoadCatalogFromDir(t *testing.T) {
	// Use the actual catalog directory
	catalogDir := filepath.Join("..", "..", "catalog")

	// Check it exists
	if _, err := os.Stat(catalogDir); os.IsNotExist(err) {
		t.Skip("catalog directory not found, skipping")
	}

	loader := NewLoader()
	if err := loader.LoadFromDir(catalogDir); err != nil {
		t.Fatalf("LoadFromDir failed: %v", err)
	}

	// All seven reference categories must load, in display order
	ids := loader.CategoryIDs()
	want := []string{"chauffage", "ecs", "refroidissement", "ventilation", "eclairage", "stores", "gtb"}
	if len(ids) != len(want) {
		t.Fatalf("expected %d categories, got %d: %v", len(want), len(ids), ids)
	}
	for i, id := range want {
		if ids[i] != id {
			t.Errorf("position %d: expected %s, got %s", i, id, ids[i])
		}
	}

	// Check chauffage category
	chauffage := loader.Category("chauffage")
	if chauffage == nil {
		t.Fatal("chauffage category not found")
	}
	if chauffage.Name != "Chauffage" {
		t.Errorf("expected chauffage name 'Chauffage', got '%s'", chauffage.Name)
	}
	if len(chauffage.SubCategories) < 3 {
		t.Errorf("expected at least 3 sub-categories in chauffage, got %d", len(chauffage.SubCategories))
	}

	// Sub-category ids are composite
	sub := loader.SubCategory("chauffage.regulation_emission")
	if sub == nil {
		t.Fatal("chauffage.regulation_emission not found")
	}
	if sub.CategoryID != "chauffage" {
		t.Errorf("expected category id 'chauffage', got '%s'", sub.CategoryID)
	}

	// Options come from the four class groups plus the synthetic NA option
	if len(sub.Options) != 5 {
		t.Fatalf("expected 5 options (4 classes + NA), got %d", len(sub.Options))
	}
	last := sub.Options[len(sub.Options)-1]
	if last.ID != models.NAOptionID {
		t.Errorf("expected last option to be %s, got %s", models.NAOptionID, last.ID)
	}
	if last.Class != models.ClassNA {
		t.Errorf("expected NA option class NA, got %s", last.Class)
	}

	// Class letters come from the group key suffix
	opt := loader.Option("chauffage.regulation_emission", "regulation_piece")
	if opt == nil {
		t.Fatal("regulation_piece option not found")
	}
	if opt.Class != models.ClassB {
		t.Errorf("expected regulation_piece to be class B, got %s", opt.Class)
	}

	worst := loader.Option("chauffage.regulation_emission", "aucune_regulation")
	if worst == nil {
		t.Fatal("aucune_regulation option not found")
	}
	if worst.Class != models.ClassD {
		t.Errorf("expected aucune_regulation to be class D, got %s", worst.Class)
	}

	// Unknown lookups are nil, never a panic
	if loader.Category("plomberie") != nil {
		t.Error("expected nil for unknown category")
	}
	if loader.SubCategory("chauffage") != nil {
		t.Error("expected nil for non-composite sub-category id")
	}
	if loader.Option("chauffage.regulation_emission", "missing") != nil {
		t.Error("expected nil for unknown option")
	}

	// Log summary
	for _, c := range loader.Categories() {
		t.Logf("  %s (%s): %d sub-categories", c.ID, c.Name, len(c.SubCategories))
	}
}

func TestClassFromGroupKey(t *testing.T) {
	tests := []struct {
		key     string
		want    models.ClassType
		wantErr bool
	}{
		{"classe_A", models.ClassA, false},
		{"classe_B", models.ClassB, false},
		{"classe_c", models.ClassC, false},
		{"groupe_classe_D", models.ClassD, false},
		{"classe_", "", true},
		{"classe", "", true},
		{"classe_E", "", true},
		{"classe_NA", "", true},
	}

	for _, tt := range tests {
		got, err := classFromGroupKey(tt.key)
		if tt.wantErr {
			if err == nil {
				t.Errorf("classFromGroupKey(%q): expected error, got %s", tt.key, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("classFromGroupKey(%q): unexpected error: %v", tt.key, err)
			continue
		}
		if got != tt.want {
			t.Errorf("classFromGroupKey(%q) = %s, want %s", tt.key, got, tt.want)
		}
	}
}

func TestLoadFromFileRejectsMalformed(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "bad.yaml")
	content := []byte("bad:\n  nom: \"Bad\"\n  sous_categories:\n    sc:\n      classes:\n        groupe_sans_suffixe:\n          opt: {nom: \"x\"}\n")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatal(err)
	}

	loader := NewLoader()
	if err := loader.LoadFromFile(path); err == nil {
		t.Error("expected error for class group key without class suffix")
	}
}

func TestLoadFromDirEmpty(t *testing.T) {
	loader := NewLoader()
	if err := loader.LoadFromDir(t.TempDir()); err == nil {
		t.Error("expected error for directory without catalog documents")
	}
}
