package ratelimit

import (
	"context"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/fintrack/internal/clock"
	"github.com/smallbiznis/fintrack/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("rate.limit",
	fx.Provide(NewRedisClient),
	fx.Provide(NewLocker),
	fx.Provide(NewStore),
	fx.Provide(NewLimiters),
)

// Limiters are the request budgets applied by the HTTP server.
type Limiters struct {
	General *Limiter
	Auth    *Limiter
}

// NewRedisClient returns nil when no redis address is configured.
func NewRedisClient(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) *redis.Client {
	if strings.TrimSpace(cfg.Redis.Addr) == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := client.Ping(ctx).Err(); err != nil {
				log.Warn("redis unreachable", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return client.Close()
		},
	})
	return client
}

func NewStore(cfg config.Config, client *redis.Client, clk clock.Clock, log *zap.Logger) Store {
	if cfg.RateLimit.Store == "redis" {
		if store := NewRedisStore(client); store != nil {
			return store
		}
		log.Warn("redis rate limit store requested without REDIS_ADDR, using memory store")
	}
	return NewMemoryStore(clk.Now)
}

func NewLimiters(cfg config.Config, store Store) *Limiters {
	auth := NewLimiter("auth", store, Quota{Limit: cfg.RateLimit.Auth, Window: cfg.RateLimit.Window})
	auth.SkipSuccessful = true
	return &Limiters{
		General: NewLimiter("general", store, Quota{Limit: cfg.RateLimit.General, Window: cfg.RateLimit.Window}),
		Auth:    auth,
	}
}
