package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// NewRedis connects the rate limiter's backend. Every gateway send holds a
// connection for a single INCR/EXPIRE round trip, so the pool is sized from
// config to the expected send concurrency rather than left at the client
// default.
func NewRedis(url string, poolSize int) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	if poolSize > 0 {
		opts.PoolSize = poolSize
		opts.MinIdleConns = min(poolSize/4, 8)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return client, nil
}
