package services

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisProvider implements Provider for the Redis result cache
type RedisProvider struct {
	BaseProvider
	client *redis.Client
}

// NewRedisProvider creates a new Redis provider
func NewRedisProvider(address, password string, db int) (*RedisProvider, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisProvider{
		BaseProvider: BaseProvider{serviceType: "redis"},
		client:       client,
	}, nil
}

// Client exposes the underlying client for the result cache
func (p *RedisProvider) Client() *redis.Client {
	return p.client
}

// HealthCheck verifies Redis connectivity
func (p *RedisProvider) HealthCheck(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (p *RedisProvider) Close() error {
	return p.client.Close()
}
