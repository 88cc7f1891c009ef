package models

import "time"

// ApiClient is an authenticated caller of the HTTP API. Each key belongs
// to one user; admin keys bypass per-user project scoping.
type ApiClient struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	ApiKey     string     `json:"-"`
	UserID     string     `json:"user_id"`
	IsAdmin    bool       `json:"is_admin"`
	IsActive   bool       `json:"is_active"`
	CreatedAt  time.Time  `json:"created_at"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
}

// MaskedApiKey returns a loggable prefix of the key.
func (c *ApiClient) MaskedApiKey() string {
	if len(c.ApiKey) < 8 {
		return "***"
	}
	return c.ApiKey[:8] + "..."
}
