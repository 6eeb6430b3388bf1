package health

import "context"

// DBPinger checks database availability.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// ProviderChecker checks an upstream model provider (relevance scorer, query embedder).
type ProviderChecker interface {
	HealthCheck(ctx context.Context) error
}
