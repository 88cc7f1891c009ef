package models

// NAOptionID is the id of the synthetic "non applicable" option appended
// to every sub-category at catalog load time. It never appears in the
// reference source documents.
const NAOptionID = "non_applicable"

// Category is a top-level assessment category (e.g. chauffage, ecs, gtb).
type Category struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	Description   string        `json:"description"`
	SubCategories []SubCategory `json:"subCategories"`
}

// SubCategory is one scored line within a category. Its ID is composite:
// "<categoryId>.<localId>", so the parent category is always recoverable
// from the segment before the first dot.
type SubCategory struct {
	ID          string        `json:"id"`
	CategoryID  string        `json:"categoryId"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Options     []ClassOption `json:"options"`
}

// ClassOption is a selectable answer for a sub-category, carrying the
// class letter inherited from its grouping in the source document.
type ClassOption struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Impact      string    `json:"impact,omitempty"`
	Class       ClassType `json:"class"`
	Images      []string  `json:"images,omitempty"`
}
