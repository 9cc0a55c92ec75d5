package middleware

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

var errNoRedisClient = errors.New("rate limit: redis client not configured")

// RedisFixedWindowLimiter keeps one counter per key and window in Redis so that
// every API replica sees the same request count.
type RedisFixedWindowLimiter struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
}

func NewRedisFixedWindowLimiter(client redis.UniversalClient, prefix string) *RedisFixedWindowLimiter {
	if prefix == "" {
		prefix = "rl"
	}
	return &RedisFixedWindowLimiter{client: client, prefix: prefix, now: time.Now}
}

// Allow seeds the window with SET NX PX and then increments it in the same
// transaction. INCR keeps the expiry, so the window closes on schedule.
func (l *RedisFixedWindowLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (Decision, error) {
	if l.client == nil {
		return Decision{}, errNoRedisClient
	}
	if key == "" {
		key = "unknown"
	}
	if window < time.Millisecond {
		window = time.Second
	}
	redisKey := l.prefix + ":" + key

	var (
		count *redis.IntCmd
		ttl   *redis.DurationCmd
	)
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SetNX(ctx, redisKey, 0, window)
		count = pipe.Incr(ctx, redisKey)
		ttl = pipe.PTTL(ctx, redisKey)
		return nil
	})
	if err != nil {
		return Decision{}, err
	}

	remainingWindow := ttl.Val()
	if remainingWindow <= 0 {
		remainingWindow = window
	}
	n := int(count.Val())
	d := Decision{
		Allowed:   n <= limit,
		Remaining: max(limit-n, 0),
		ResetAt:   l.now().Add(remainingWindow),
	}
	if !d.Allowed {
		d.RetryAfter = remainingWindow
	}
	return d, nil
}
