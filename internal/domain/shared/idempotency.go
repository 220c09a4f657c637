package shared

import (
	"context"
	"time"
)

// IdempotencyStore records processed event IDs so redelivered events
// are dropped instead of applied twice.
type IdempotencyStore interface {
	// MarkProcessed claims the event ID for the given TTL. It returns
	// false when another consumer already holds the claim.
	MarkProcessed(ctx context.Context, eventID string, ttl time.Duration) (bool, error)

	IsProcessed(ctx context.Context, eventID string) (bool, error)

	Close() error
}

// IdempotencyConfig tunes duplicate detection. After TTL elapses the
// same event ID may be processed again.
type IdempotencyConfig struct {
	TTL     time.Duration
	Enabled bool
}

func DefaultIdempotencyConfig() IdempotencyConfig {
	return IdempotencyConfig{
		TTL:     24 * time.Hour,
		Enabled: true,
	}
}
