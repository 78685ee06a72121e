package redisconn

import (
	"context"

	"github.com/payitonchain/paygate/internal/config"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// New builds the shared Redis client used by the queue transport,
// transfer deduplication and completion fan-out.
func New(cfg config.Config, log *zap.Logger) (*redis.Client, error) {
	if cfg.RedisAddr == "" {
		return nil, config.ErrMissingRedisAddr
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	log.Info("redis client configured", zap.String("addr", cfg.RedisAddr))
	return client, nil
}

func registerHooks(lc fx.Lifecycle, client *redis.Client) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			_ = ctx
			return client.Close()
		},
	})
}

var Module = fx.Module("redis",
	fx.Provide(New),
	fx.Invoke(registerHooks),
)
