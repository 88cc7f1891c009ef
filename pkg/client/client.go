// Package client is a Go SDK for the bacs-engine HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/enerbat/bacs-engine/internal/models"
)

// Client is a Go SDK for the bacs-engine API
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// Option configures the client
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout sets the client timeout
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// NewClient creates a new bacs-engine client
func NewClient(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// apiEnvelope mirrors the server's response wrapper.
type apiEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// CreateProjectRequest represents a project creation request
type CreateProjectRequest struct {
	Name     string `json:"name"`
	Building string `json:"building,omitempty"`
}

// UpdateAssessmentRequest records one class selection
type UpdateAssessmentRequest struct {
	Class    string `json:"classType"`
	OptionID string `json:"selectedOption"`
}

// ListOptions contains options for listing projects
type ListOptions struct {
	UserID string
	Limit  int
	Offset int
}

// CreateProject creates a new project
func (c *Client) CreateProject(ctx context.Context, req CreateProjectRequest) (*models.Project, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	var project models.Project
	if err := c.call(ctx, "POST", "/api/v1/projects", bytes.NewReader(body), &project); err != nil {
		return nil, err
	}
	return &project, nil
}

// GetProject retrieves a project by ID
func (c *Client) GetProject(ctx context.Context, id string) (*models.Project, error) {
	var project models.Project
	if err := c.call(ctx, "GET", fmt.Sprintf("/api/v1/projects/%s", id), nil, &project); err != nil {
		return nil, err
	}
	return &project, nil
}

// DeleteProject removes a project and all its assessments
func (c *Client) DeleteProject(ctx context.Context, id string) error {
	return c.call(ctx, "DELETE", fmt.Sprintf("/api/v1/projects/%s", id), nil, nil)
}

// ListProjects retrieves projects visible to the caller
func (c *Client) ListProjects(ctx context.Context, opts ListOptions) ([]*models.Project, error) {
	path := "/api/v1/projects?"
	if opts.UserID != "" {
		path += fmt.Sprintf("user_id=%s&", opts.UserID)
	}
	if opts.Limit > 0 {
		path += fmt.Sprintf("limit=%d&", opts.Limit)
	}
	if opts.Offset > 0 {
		path += fmt.Sprintf("offset=%d&", opts.Offset)
	}

	var data struct {
		Projects []*models.Project `json:"projects"`
		Total    int               `json:"total"`
	}
	if err := c.call(ctx, "GET", path, nil, &data); err != nil {
		return nil, err
	}
	return data.Projects, nil
}

// GetAssessments retrieves a project's recorded selections, keyed by
// composite sub-category id.
func (c *Client) GetAssessments(ctx context.Context, projectID string) (map[string]models.Selection, error) {
	var data struct {
		Assessments map[string]models.Selection `json:"assessments"`
	}
	if err := c.call(ctx, "GET", fmt.Sprintf("/api/v1/projects/%s/assessments", projectID), nil, &data); err != nil {
		return nil, err
	}
	return data.Assessments, nil
}

// UpdateAssessment records one class selection for a sub-category
func (c *Client) UpdateAssessment(ctx context.Context, projectID, subCategoryID string, req UpdateAssessmentRequest) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	path := fmt.Sprintf("/api/v1/projects/%s/assessments/%s", projectID, subCategoryID)
	return c.call(ctx, "PUT", path, bytes.NewReader(body), nil)
}

// GetCategorySettings retrieves the per-category enablement map
func (c *Client) GetCategorySettings(ctx context.Context, projectID string) (map[string]bool, error) {
	var data struct {
		Categories map[string]bool `json:"categories"`
	}
	if err := c.call(ctx, "GET", fmt.Sprintf("/api/v1/projects/%s/categories", projectID), nil, &data); err != nil {
		return nil, err
	}
	return data.Categories, nil
}

// ToggleCategory flips one category's enablement and returns its new state
func (c *Client) ToggleCategory(ctx context.Context, projectID, categoryID string) (bool, error) {
	var data struct {
		IsEnabled bool `json:"is_enabled"`
	}
	path := fmt.Sprintf("/api/v1/projects/%s/categories/%s/toggle", projectID, categoryID)
	if err := c.call(ctx, "POST", path, nil, &data); err != nil {
		return false, err
	}
	return data.IsEnabled, nil
}

// GetResults retrieves the computed classification result of a project
func (c *Client) GetResults(ctx context.Context, projectID string) (*models.ProjectResult, error) {
	var result models.ProjectResult
	if err := c.call(ctx, "GET", fmt.Sprintf("/api/v1/projects/%s/results", projectID), nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ListCategories retrieves the reference catalog
func (c *Client) ListCategories(ctx context.Context) ([]*models.Category, error) {
	var data struct {
		Categories []*models.Category `json:"categories"`
		Total      int                `json:"total"`
	}
	if err := c.call(ctx, "GET", "/api/v1/catalog", nil, &data); err != nil {
		return nil, err
	}
	return data.Categories, nil
}

// Health checks if the service is healthy
func (c *Client) Health(ctx context.Context) error {
	_, err := c.doRequest(ctx, "GET", "/health", nil)
	return err
}

// call performs a request and unwraps the response envelope into out.
// Pass nil for endpoints whose data payload is not needed.
func (c *Client) call(ctx context.Context, method, path string, body io.Reader, out interface{}) error {
	resp, err := c.doRequest(ctx, method, path, body)
	if err != nil {
		return err
	}

	var envelope apiEnvelope
	if err := json.Unmarshal(resp, &envelope); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if !envelope.Success {
		if envelope.Error != nil {
			return fmt.Errorf("API error: %s - %s", envelope.Error.Code, envelope.Error.Message)
		}
		return fmt.Errorf("API error: request failed")
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return fmt.Errorf("failed to unmarshal data: %w", err)
	}
	return nil
}

// doRequest performs an HTTP request
func (c *Client) doRequest(ctx context.Context, method, path string, body io.Reader) ([]byte, error) {
	url := c.baseURL + path

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
	}

	return respBody, nil
}
