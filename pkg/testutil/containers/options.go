//go:build integration

package containers

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
)

// Images used by the shared containers. CI mirrors can override each one,
// e.g. TAXPORTAL_TEST_REDIS_IMAGE=mirror.local/redis:7-alpine.
var (
	RedisImage    = imageFromEnv("TAXPORTAL_TEST_REDIS_IMAGE", "redis:7-alpine")
	PostgresImage = imageFromEnv("TAXPORTAL_TEST_POSTGRES_IMAGE", "postgres:16-alpine")
	KafkaImage    = imageFromEnv("TAXPORTAL_TEST_KAFKA_IMAGE", "docker.redpanda.com/redpandadata/redpanda:v24.2.4")
)

const startupTimeout = 60 * time.Second

func imageFromEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// abort terminates a half-started container and fails the test.
func abort(t *testing.T, ctx context.Context, c testcontainers.Container, what string, err error) {
	t.Helper()
	if c != nil {
		_ = c.Terminate(ctx)
	}
	t.Fatalf("%s: %v", what, err)
}
