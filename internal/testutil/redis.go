// Package testutil provides shared test doubles: a Redis-backed store helper
// for package tests and fault-injecting readers for stream tests.
package testutil

import (
	"context"
	"testing"

	"github.com/redis/go-redis/v9"

	"github.com/streamgate-io/streamgate/pkg/store"
)

// NewStore creates a store client against a local Redis test database.
// Tests are skipped when no Redis server is available. The test database is
// flushed before the test and on cleanup.
func NewStore(t *testing.T) *store.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15, // Use a separate DB for tests
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available for testing: %v", err)
	}

	if err := client.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("Failed to flush test DB: %v", err)
	}

	t.Cleanup(func() {
		client.FlushDB(context.Background())
		client.Close()
	})

	return store.New(client)
}
