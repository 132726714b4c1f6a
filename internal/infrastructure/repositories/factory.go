package repositories

import (
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"streamcast/internal/core/ports"
	"streamcast/internal/infrastructure/repositories/memory"
	redisrepo "streamcast/internal/infrastructure/repositories/redis"
	"streamcast/pkg/config"
)

// Factory picks the session store: Redis when configured and
// reachable, in-process memory otherwise.
type Factory struct {
	useRedis    bool
	redisClient *goredis.Client
	logger      *zap.SugaredLogger
}

func NewFactory(cfg *config.Config, logger *zap.SugaredLogger) (*Factory, error) {
	f := &Factory{
		useRedis: cfg.Redis.Enabled,
		logger:   logger,
	}

	if cfg.Redis.Enabled {
		client, err := redisrepo.NewClient(
			cfg.Redis.Address,
			cfg.Redis.Password,
			cfg.Redis.DB,
			cfg.Redis.PoolSize,
			logger,
		)
		if err != nil {
			logger.Warnw("redis unavailable, falling back to memory store", "error", err)
			f.useRedis = false
		} else {
			f.redisClient = client
		}
	}
	return f, nil
}

func (f *Factory) SessionRepository() ports.SessionRepository {
	if f.useRedis && f.redisClient != nil {
		return redisrepo.NewSessionRepository(f.redisClient)
	}
	return memory.NewSessionRepository()
}

func (f *Factory) Close() error {
	return redisrepo.CloseClient(f.redisClient)
}
