package models

import "time"

// Project represents one building under assessment.
type Project struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	Building  string    `json:"building,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreateProjectRequest is the body for POST /projects.
type CreateProjectRequest struct {
	Name     string `json:"name"`
	Building string `json:"building,omitempty"`
}

// ProjectListFilters narrows project listing.
type ProjectListFilters struct {
	UserID string
	Limit  int
	Offset int
}
