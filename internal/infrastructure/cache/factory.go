package cache

import (
	"go.uber.org/zap"

	"github.com/mfi/backend/internal/domain/shared"
	"github.com/mfi/backend/internal/infrastructure/config"
)

// NewIdempotencyStore picks the idempotency store backend at startup.
// Redis is preferred so the processed-event marks are shared across
// instances. An unreachable Redis degrades to the in-memory store rather
// than failing startup, which can let a multi-instance deployment process
// an event twice, hence the warning.
func NewIdempotencyStore(cfg config.RedisConfig, log *zap.Logger) shared.IdempotencyStore {
	if log == nil {
		log = zap.NewNop()
	}

	store, err := NewRedisIdempotencyStore(RedisConfig{
		Host:     cfg.Host,
		Port:     cfg.Port,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err == nil {
		log.Info("using Redis idempotency store")
		return store
	}

	log.Warn("Redis unavailable, falling back to in-memory idempotency store. "+
		"This may cause duplicate event processing in distributed deployments.",
		zap.Error(err),
	)
	return NewInMemoryIdempotencyStore()
}
