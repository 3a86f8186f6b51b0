package database

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-admin/internal/config"
)

// minRedisPool leaves room for request traffic next to the answer and
// extraction workers, each of which parks a connection in BLPOP.
const minRedisPool = 32

// NewRedisClient connects to the Redis instance holding sessions, the
// answer buffer, the monitor hashes and the worker queues.
func NewRedisClient(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*redis.Client, error) {
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	opt.PoolSize = max(opt.PoolSize, minRedisPool)
	if opt.ClientName == "" {
		opt.ClientName = applicationName
	}

	rdb := redis.NewClient(opt)
	ping := func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	if err := pingWithin(ctx, ping); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	log.Info().
		Str("addr", opt.Addr).
		Int("db", opt.DB).
		Int("pool_size", opt.PoolSize).
		Msg("Redis connected")
	return rdb, nil
}
