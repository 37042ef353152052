//go:build integration
// +build integration

package ratelimit

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"
)

func TestRedisLimiter_FixedWindow(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR_TEST")
	if addr == "" {
		t.Skip("REDIS_ADDR_TEST not set")
	}
	limiter, err := NewRedisLimiter(RedisConfig{Addr: addr})
	if err != nil {
		t.Fatalf("new limiter: %v", err)
	}
	defer limiter.Close()

	ctx := context.Background()
	key := fmt.Sprintf("it:%d", time.Now().UnixNano())
	for i := 0; i < 3; i++ {
		d, err := limiter.Allow(ctx, key, 3, 2*time.Second)
		if err != nil {
			t.Fatalf("allow %d: %v", i, err)
		}
		if !d.Allowed || d.Remaining != 2-i {
			t.Fatalf("request %d: %+v", i, d)
		}
	}
	d, err := limiter.Allow(ctx, key, 3, 2*time.Second)
	if err != nil {
		t.Fatalf("allow: %v", err)
	}
	if d.Allowed || d.ResetAt.IsZero() {
		t.Fatalf("fourth request should be denied with a reset time: %+v", d)
	}

	time.Sleep(2100 * time.Millisecond)
	d, err = limiter.Allow(ctx, key, 3, 2*time.Second)
	if err != nil {
		t.Fatalf("allow after window: %v", err)
	}
	if !d.Allowed {
		t.Fatalf("window should have reset: %+v", d)
	}
}
