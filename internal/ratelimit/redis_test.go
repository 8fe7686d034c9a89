package ratelimit

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

func TestRedisLimiter(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { client.Close() })
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis unavailable: %v", err)
	}

	rl := NewRedisLimiter(client, "giftlink-test:"+uuid.NewString()+":")

	for i := 0; i < 3; i++ {
		ok, err := rl.Allow(ctx, "key", 3, time.Minute)
		if err != nil {
			t.Fatalf("allow: %v", err)
		}
		if !ok {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if ok, _ := rl.Allow(ctx, "key", 3, time.Minute); ok {
		t.Error("4th request should be denied")
	}
	if ok, _ := rl.Allow(ctx, "other", 3, time.Minute); !ok {
		t.Error("other key should be independent")
	}
}

func TestRedisLimiterError(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1, DialTimeout: 50 * time.Millisecond})
	t.Cleanup(func() { client.Close() })

	rl := NewRedisLimiter(client, "x:")
	ok, err := rl.Allow(context.Background(), "key", 3, time.Minute)
	if err == nil {
		t.Fatal("expected error from unreachable redis")
	}
	if ok {
		t.Error("should not allow on error")
	}
}
