package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"vizpilot/internal/domain"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "vizpilot:ratelimit:"

type redisLimiter struct {
	client *redis.Client
	now    func() time.Time
}

// incrWindow bumps the counter and starts the window on the first hit.
var incrWindow = redis.NewScript(`
local used = redis.call("INCR", KEYS[1])
if used == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return {used, redis.call("PTTL", KEYS[1])}
`)

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Now      func() time.Time
}

func NewRedisLimiter(cfg RedisConfig) (domain.RateLimiter, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis addr is required")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &redisLimiter{client: client, now: cfg.Now}, nil
}

func (r *redisLimiter) Allow(ctx context.Context, key string, limit int, span time.Duration) (domain.RateLimitDecision, error) {
	if limit <= 0 {
		return domain.RateLimitDecision{Allowed: true, Limit: limit, Remaining: limit}, nil
	}
	ms := span.Milliseconds()
	if ms <= 0 {
		ms = 1000
	}
	raw, err := incrWindow.Run(ctx, r.client, []string{redisKeyPrefix + key}, ms).Result()
	if err != nil {
		return domain.RateLimitDecision{}, fmt.Errorf("redis rate limit: %w", err)
	}
	pair, ok := raw.([]any)
	if !ok || len(pair) != 2 {
		return domain.RateLimitDecision{}, errors.New("unexpected redis rate limit reply")
	}
	used, ok := pair[0].(int64)
	if !ok {
		return domain.RateLimitDecision{}, errors.New("redis rate limit counter is not an integer")
	}
	ttl, _ := pair[1].(int64)

	resetAt := r.now()
	if ttl > 0 {
		resetAt = resetAt.Add(time.Duration(ttl) * time.Millisecond)
	}
	remaining := limit - int(used)
	if remaining < 0 {
		remaining = 0
	}
	return domain.RateLimitDecision{
		Allowed:   used <= int64(limit),
		Limit:     limit,
		Remaining: remaining,
		ResetAt:   resetAt,
	}, nil
}

func (r *redisLimiter) Close() error {
	return r.client.Close()
}
