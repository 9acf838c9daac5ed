package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/gatherkit/walletgate/core"
	"github.com/gatherkit/walletgate/ports"
)

// RedisLimiter counts authentication attempts in redis. The counter key
// carries the window TTL; once the count crosses the maximum a block key
// holding the block deadline is set with the block TTL. Any redis error
// propagates wrapped in core.ErrStoreUnavailable so callers fail closed.
type RedisLimiter struct {
	client *redis.Client
	prefix string
}

func NewRedisLimiter(client *redis.Client) *RedisLimiter {
	return &RedisLimiter{
		client: client,
		prefix: "walletgate:ratelimit:",
	}
}

func (l *RedisLimiter) key(k ports.RateKey) string {
	return l.prefix + string(k.Chain) + ":" + k.Address + ":" + k.IP
}

func (l *RedisLimiter) Check(ctx context.Context, key ports.RateKey, policy ports.RatePolicy) (ports.RateDecision, error) {
	counterKey := l.key(key)
	blockKey := counterKey + ":block"
	now := time.Now()

	// An active block short-circuits without touching the counter.
	blockedUntil, err := l.client.Get(ctx, blockKey).Result()
	if err != nil && err != redis.Nil {
		return ports.RateDecision{}, fmt.Errorf("failed to read block key: %w", core.ErrStoreUnavailable)
	}
	if err == nil {
		until, perr := time.Parse(time.RFC3339, blockedUntil)
		if perr != nil || now.Before(until) {
			if perr != nil {
				until = now.Add(policy.Block)
			}
			return ports.RateDecision{Allowed: false, BlockedUntil: until}, nil
		}
	}

	count, err := l.client.Incr(ctx, counterKey).Result()
	if err != nil {
		return ports.RateDecision{}, fmt.Errorf("failed to increment counter: %w", core.ErrStoreUnavailable)
	}
	if count == 1 {
		if err := l.client.Expire(ctx, counterKey, policy.Window).Err(); err != nil {
			return ports.RateDecision{}, fmt.Errorf("failed to set window expiry: %w", core.ErrStoreUnavailable)
		}
	}

	if count > int64(policy.MaxAttempts) {
		until := now.Add(policy.Block)
		if err := l.client.Set(ctx, blockKey, until.Format(time.RFC3339), policy.Block).Err(); err != nil {
			return ports.RateDecision{}, fmt.Errorf("failed to set block key: %w", core.ErrStoreUnavailable)
		}
		if err := l.client.Del(ctx, counterKey).Err(); err != nil {
			return ports.RateDecision{}, fmt.Errorf("failed to reset counter: %w", core.ErrStoreUnavailable)
		}
		return ports.RateDecision{Allowed: false, BlockedUntil: until}, nil
	}

	return ports.RateDecision{Allowed: true}, nil
}

var _ ports.RateLimiter = (*RedisLimiter)(nil)
