package cache

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/andresuchdata/pharmalytics/internal/config"
)

const (
	defaultCacheTTL = 10 * time.Minute
	pingTimeout     = 5 * time.Second
)

// newRedisClient connects and pings; an unreachable redis fails at startup
// instead of on the first analysis.
func newRedisClient(ctx context.Context, cfg config.CacheConfig) (*redis.Client, error) {
	opts, err := buildRedisOptions(cfg)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s failed: %w", opts.Addr, err)
	}
	return client, nil
}

func resultTTL(cfg config.CacheConfig) time.Duration {
	if cfg.ResultTTLSeconds <= 0 {
		return defaultCacheTTL
	}
	return time.Duration(cfg.ResultTTLSeconds) * time.Second
}

// buildRedisOptions prefers REDIS_URL and falls back to host/port/db.
func buildRedisOptions(cfg config.CacheConfig) (*redis.Options, error) {
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("invalid redis url: %w", err)
		}
		return opt, nil
	}

	host, port := cfg.RedisHost, cfg.RedisPort
	if host == "" {
		host = "127.0.0.1"
	}
	if port == "" {
		port = "6379"
	}
	return &redis.Options{
		Addr:     net.JoinHostPort(host, port),
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, nil
}

// purgePrefix unlinks every key under prefix, one pipeline per scan page, and
// returns how many keys were removed.
func purgePrefix(ctx context.Context, client *redis.Client, prefix string, pageSize int64) (int, error) {
	var (
		cursor  uint64
		removed int
	)
	for {
		keys, next, err := client.Scan(ctx, cursor, prefix+"*", pageSize).Result()
		if err != nil {
			return removed, fmt.Errorf("redis scan failed: %w", err)
		}
		if len(keys) > 0 {
			pipe := client.Pipeline()
			for _, key := range keys {
				pipe.Unlink(ctx, key)
			}
			if _, err := pipe.Exec(ctx); err != nil {
				return removed, fmt.Errorf("redis unlink failed: %w", err)
			}
			removed += len(keys)
		}
		if cursor = next; cursor == 0 {
			return removed, nil
		}
	}
}
