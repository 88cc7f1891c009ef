package assessment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/enerbat/bacs-engine/internal/models"
)

// ResultCache mirrors the latest computed ProjectResult per project in
// Redis so summary views read a precomputed aggregate instead of
// recomputing client- or server-side. Strictly a read optimization:
// a cold or broken cache only costs a recompute.
type ResultCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewResultCache creates a cache around an existing Redis client.
func NewResultCache(client *redis.Client, ttl time.Duration) *ResultCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &ResultCache{client: client, ttl: ttl}
}

func resultKey(projectID string) string {
	return fmt.Sprintf("bacs:result:%s", projectID)
}

// Set stores the latest result for a project.
func (c *ResultCache) Set(ctx context.Context, result *models.ProjectResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	if err := c.client.Set(ctx, resultKey(result.ProjectID), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache result: %w", err)
	}
	return nil
}

// Get returns the cached result, or (nil, nil) on a miss.
func (c *ResultCache) Get(ctx context.Context, projectID string) (*models.ProjectResult, error) {
	payload, err := c.client.Get(ctx, resultKey(projectID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read cached result: %w", err)
	}

	var result models.ProjectResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached result: %w", err)
	}
	return &result, nil
}

// Invalidate drops the cached result for a project.
func (c *ResultCache) Invalidate(ctx context.Context, projectID string) error {
	return c.client.Del(ctx, resultKey(projectID)).Err()
}
