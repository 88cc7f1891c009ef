package services

import "context"

// Provider is a backing service the engine depends on (PostgreSQL,
// Redis). Providers are registered once at startup and polled by the
// readiness endpoint.
type Provider interface {
	// Type returns the service type name
	Type() string

	// HealthCheck checks if the service is available
	HealthCheck(ctx context.Context) error

	// Close releases the service connection
	Close() error
}

// BaseProvider provides common functionality for providers
type BaseProvider struct {
	serviceType string
}

// Type returns the service type
func (p *BaseProvider) Type() string {
	return p.serviceType
}
