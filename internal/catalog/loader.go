package catalog

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/enerbat/bacs-engine/internal/models"
)

// displayOrder fixes the presentation order of the seven reference
// categories. Categories found in source files but not listed here are
// appended alphabetically.
var displayOrder = []string{
	"chauffage",
	"ecs",
	"refroidissement",
	"ventilation",
	"eclairage",
	"stores",
	"gtb",
}

// Loader parses the static reference documents into an immutable
// in-memory catalog. Loading happens once at startup; a malformed source
// file is a configuration error and aborts the load.
type Loader struct {
	mu            sync.RWMutex
	categories    map[string]*models.Category
	subCategories map[string]*models.SubCategory
}

// NewLoader creates an empty catalog loader.
func NewLoader() *Loader {
	return &Loader{
		categories:    make(map[string]*models.Category),
		subCategories: make(map[string]*models.SubCategory),
	}
}

// LoadFromDir loads every YAML document in dir. Each document maps one or
// more category keys to their definition.
func (l *Loader) LoadFromDir(dir string) error {
	slog.Info("loading reference catalog", "dir", dir)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read catalog directory: %w", err)
	}

	loaded := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		if err := l.LoadFromFile(filepath.Join(dir, entry.Name())); err != nil {
			return fmt.Errorf("catalog file %s: %w", entry.Name(), err)
		}
		loaded++
	}

	if loaded == 0 {
		return fmt.Errorf("no catalog documents found in %s", dir)
	}

	slog.Info("reference catalog loaded",
		"files", loaded,
		"categories", len(l.categories),
		"sub_categories", len(l.subCategories),
	)
	return nil
}

// LoadFromFile parses a single catalog document.
func (l *Loader) LoadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	var doc map[string]categoryDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}

	for categoryID, cd := range doc {
		category, err := buildCategory(categoryID, cd)
		if err != nil {
			return fmt.Errorf("category %s: %w", categoryID, err)
		}

		l.mu.Lock()
		l.categories[category.ID] = category
		for i := range category.SubCategories {
			sc := &category.SubCategories[i]
			l.subCategories[sc.ID] = sc
		}
		l.mu.Unlock()

		slog.Info("catalog category loaded",
			"id", category.ID,
			"sub_categories", len(category.SubCategories),
		)
	}

	return nil
}

// buildCategory normalizes one category definition: sub-categories sorted
// by key, class groups flattened into one option list per sub-category,
// and the synthetic NA option appended last.
func buildCategory(id string, cd categoryDoc) (*models.Category, error) {
	if len(cd.SousCategories) == 0 {
		return nil, fmt.Errorf("no sous_categories defined")
	}

	category := &models.Category{
		ID:          id,
		Name:        displayName(cd.Nom, id),
		Description: cd.Description,
	}

	for _, subKey := range sortedKeys(cd.SousCategories) {
		sd := cd.SousCategories[subKey]
		sub := models.SubCategory{
			ID:          id + "." + subKey,
			CategoryID:  id,
			Name:        displayName(sd.Nom, subKey),
			Description: sd.Description,
		}

		options, err := flattenClassGroups(sd.Classes)
		if err != nil {
			return nil, fmt.Errorf("sous_categorie %s: %w", subKey, err)
		}
		sub.Options = append(options, naOption())

		category.SubCategories = append(category.SubCategories, sub)
	}

	return category, nil
}

// flattenClassGroups turns the per-class option groups of the source
// shape into a single ordered list. The class letter is the suffix after
// the last underscore of the grouping key (e.g. "classe_A").
func flattenClassGroups(classes map[string]map[string]optionDoc) ([]models.ClassOption, error) {
	if len(classes) == 0 {
		return nil, fmt.Errorf("no classes defined")
	}

	var options []models.ClassOption
	for _, groupKey := range sortedKeys(classes) {
		class, err := classFromGroupKey(groupKey)
		if err != nil {
			return nil, err
		}

		group := classes[groupKey]
		for _, optKey := range sortedKeys(group) {
			od := group[optKey]
			options = append(options, models.ClassOption{
				ID:          optKey,
				Name:        displayName(od.Nom, optKey),
				Description: od.Description,
				Impact:      od.Impact,
				Class:       class,
				Images:      od.Images,
			})
		}
	}
	return options, nil
}

// classFromGroupKey extracts the class letter from a grouping key suffix.
func classFromGroupKey(key string) (models.ClassType, error) {
	idx := strings.LastIndex(key, "_")
	if idx < 0 || idx == len(key)-1 {
		return "", fmt.Errorf("class group key %q has no class suffix", key)
	}
	class := models.ClassType(strings.ToUpper(key[idx+1:]))
	if class.IsNA() || !class.Valid() {
		return "", fmt.Errorf("class group key %q has invalid class suffix", key)
	}
	return class, nil
}

func naOption() models.ClassOption {
	return models.ClassOption{
		ID:          models.NAOptionID,
		Name:        "Non applicable",
		Description: "Cette sous-catégorie ne s'applique pas au bâtiment évalué.",
		Class:       models.ClassNA,
	}
}

func displayName(nom, fallback string) string {
	if nom != "" {
		return nom
	}
	return strings.ReplaceAll(fallback, "_", " ")
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// --- Accessors ---

// Categories returns all categories in display order.
func (l *Loader) Categories() []*models.Category {
	l.mu.RLock()
	defer l.mu.RUnlock()

	result := make([]*models.Category, 0, len(l.categories))
	seen := make(map[string]bool, len(l.categories))
	for _, id := range displayOrder {
		if c, ok := l.categories[id]; ok {
			result = append(result, c)
			seen[id] = true
		}
	}

	var rest []string
	for id := range l.categories {
		if !seen[id] {
			rest = append(rest, id)
		}
	}
	sort.Strings(rest)
	for _, id := range rest {
		result = append(result, l.categories[id])
	}
	return result
}

// CategoryIDs returns the ids of all categories in display order.
func (l *Loader) CategoryIDs() []string {
	categories := l.Categories()
	ids := make([]string, len(categories))
	for i, c := range categories {
		ids[i] = c.ID
	}
	return ids
}

// Category returns a category by id, nil if unknown.
func (l *Loader) Category(id string) *models.Category {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.categories[id]
}

// SubCategories returns the sub-categories of a category, nil if unknown.
func (l *Loader) SubCategories(categoryID string) []models.SubCategory {
	l.mu.RLock()
	defer l.mu.RUnlock()

	c := l.categories[categoryID]
	if c == nil {
		return nil
	}
	return c.SubCategories
}

// SubCategory returns a sub-category by its composite id, nil if unknown.
func (l *Loader) SubCategory(id string) *models.SubCategory {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.subCategories[id]
}

// Option returns an option of a sub-category, nil if either is unknown.
func (l *Loader) Option(subCategoryID, optionID string) *models.ClassOption {
	sub := l.SubCategory(subCategoryID)
	if sub == nil {
		return nil
	}
	for i := range sub.Options {
		if sub.Options[i].ID == optionID {
			return &sub.Options[i]
		}
	}
	return nil
}

// --- YAML file structs ---

// categoryDoc mirrors the published reference document shape.
type categoryDoc struct {
	Nom            string                    `yaml:"nom"`
	Description    string                    `yaml:"description"`
	SousCategories map[string]subCategoryDoc `yaml:"sous_categories"`
}

type subCategoryDoc struct {
	Nom         string                          `yaml:"nom"`
	Description string                          `yaml:"description"`
	Classes     map[string]map[string]optionDoc `yaml:"classes"`
}

type optionDoc struct {
	Nom         string   `yaml:"nom"`
	Description string   `yaml:"description"`
	Impact      string   `yaml:"impact"`
	Images      []string `yaml:"images"`
}
