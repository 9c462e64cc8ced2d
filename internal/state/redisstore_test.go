package state

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redisが必要なテスト。TEST_REDIS_ADDRが未設定の場合はスキップする。
func newTestRedisStore(t *testing.T) *RedisStore {
	t.Helper()

	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis not reachable at %s: %v", addr, err)
	}

	key := "chaos:failure_state:test:" + t.Name()
	t.Cleanup(func() { _ = client.Del(context.Background(), key).Err() })

	return NewRedisStore(client, key)
}

func TestRedisStoreMissingKey(t *testing.T) {
	store := newTestRedisStore(t)

	st, err := store.Read(context.Background())
	if err != nil {
		t.Fatalf("unexpected error for missing key: %v", err)
	}
	if !st.IsHealthy() {
		t.Errorf("expected healthy default, got %v", st.Mode)
	}
}

func TestRedisStoreRoundTrip(t *testing.T) {
	store := newTestRedisStore(t)
	ctx := context.Background()

	want := FailureState{
		Mode:       ModeConfigError,
		Timestamp:  time.Now().Unix(),
		InjectedBy: "manual",
	}

	if err := store.Write(ctx, want); err != nil {
		t.Fatalf("unexpected write error: %v", err)
	}

	got, err := store.Read(ctx)
	if err != nil {
		t.Fatalf("unexpected read error: %v", err)
	}
	if got != want {
		t.Errorf("Read() = %+v, want %+v", got, want)
	}
}
