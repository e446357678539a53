// internal/common/database/redis.go
package database

import (
	"context"
	"fmt"
	"time"

	"coaching-notifier/internal/common/config"

	"github.com/redis/go-redis/v9"
)

// RedisClient wraps the client backing the preference cache.
type RedisClient struct {
	Client *redis.Client
}

// RedisOptions translates config into go-redis options. Timeouts are short
// because every caller degrades to postgres on a cache error.
func RedisOptions(cfg config.RedisConfig) *redis.Options {
	pool := cfg.PoolSize
	if pool <= 0 {
		pool = 10
	}
	return &redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  500 * time.Millisecond,
		WriteTimeout: 500 * time.Millisecond,
		PoolSize:     pool,
		MinIdleConns: pool / 5,
		// Preference reads are cheap to redo; fail fast instead.
		MaxRetries: 1,
	}
}

func NewRedis(cfg config.RedisConfig) *RedisClient {
	return &RedisClient{Client: redis.NewClient(RedisOptions(cfg))}
}

func (c *RedisClient) Ping(ctx context.Context) error {
	if err := c.Client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping %s: %w", c.Client.Options().Addr, err)
	}
	return nil
}

func (c *RedisClient) Close() error {
	if c.Client == nil {
		return nil
	}
	return c.Client.Close()
}
