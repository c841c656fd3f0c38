//go:build integration

package containers

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"
)

// RedisContainer backs the wizard cache and rate limit suites.
type RedisContainer struct {
	Container testcontainers.Container
	URL       string
	Client    *redis.Client
}

func NewRedisContainer(t *testing.T) *RedisContainer {
	t.Helper()
	ctx := context.Background()

	container, err := tcredis.Run(ctx, RedisImage,
		testcontainers.WithWaitStrategy(wait.ForLog("Ready to accept connections").WithStartupTimeout(startupTimeout)),
	)
	if err != nil {
		abort(t, ctx, nil, "start redis", err)
	}
	url, err := container.ConnectionString(ctx)
	if err != nil {
		abort(t, ctx, container, "redis connection string", err)
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		abort(t, ctx, container, "parse redis url", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		abort(t, ctx, container, "ping redis", err)
	}

	// Shared by every suite through Manager; Ryuk removes it.
	return &RedisContainer{Container: container, URL: url, Client: client}
}

// Flush deletes the keys under prefix so suites sharing the container stay
// isolated from each other.
func (r *RedisContainer) Flush(ctx context.Context, prefix string) error {
	iter := r.Client.Scan(ctx, 0, prefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return r.Client.Del(ctx, keys...).Err()
}

// TTL returns the remaining lifetime of key.
func (r *RedisContainer) TTL(ctx context.Context, key string) (time.Duration, error) {
	return r.Client.TTL(ctx, key).Result()
}
