package services

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresProvider implements Provider for the PostgreSQL store
type PostgresProvider struct {
	BaseProvider
	pool *pgxpool.Pool
}

// NewPostgresProvider creates a provider with its own small health pool
func NewPostgresProvider(ctx context.Context, dsn string) (*PostgresProvider, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DSN: %w", err)
	}
	cfg.MaxConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	return &PostgresProvider{
		BaseProvider: BaseProvider{serviceType: "postgres"},
		pool:         pool,
	}, nil
}

// HealthCheck verifies PostgreSQL connectivity
func (p *PostgresProvider) HealthCheck(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// Close closes the health pool
func (p *PostgresProvider) Close() error {
	p.pool.Close()
	return nil
}
