package service

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// A failure bumps a counter that lives for the reset window. Once the counter
// passes the free attempts, a lock key with the computed delay as its PX
// blocks further attempts until it expires.
var throttleFailureScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
redis.call("PEXPIRE", KEYS[1], ARGV[1])
local free = tonumber(ARGV[2])
if count <= free then
  return 0
end
local delay = math.floor(tonumber(ARGV[3]) * (tonumber(ARGV[4]) ^ (count - free - 1)))
local cap = tonumber(ARGV[5])
if delay > cap then
  delay = cap
end
if delay < 1 then
  delay = 1
end
redis.call("SET", KEYS[2], "1", "PX", delay)
return delay
`)

type RedisLoginThrottle struct {
	client redis.UniversalClient
	prefix string
	policy ThrottlePolicy
}

func NewRedisLoginThrottle(client redis.UniversalClient, prefix string, policy ThrottlePolicy) *RedisLoginThrottle {
	if prefix == "" {
		prefix = "login_throttle"
	}
	return &RedisLoginThrottle{client: client, prefix: prefix, policy: policy.normalized()}
}

func (t *RedisLoginThrottle) Check(ctx context.Context, scope ThrottleScope, identity, ip string) (time.Duration, error) {
	var wait time.Duration
	for _, key := range throttleKeys(scope, identity, ip) {
		ttl, err := t.client.PTTL(ctx, t.lockKey(key)).Result()
		if err != nil {
			return 0, fmt.Errorf("throttle check: %w", err)
		}
		// PTTL reports -2 for a missing key.
		if ttl > 0 {
			wait = max(wait, ttl)
		}
	}
	return wait, nil
}

func (t *RedisLoginThrottle) RegisterFailure(ctx context.Context, scope ThrottleScope, identity, ip string) (time.Duration, error) {
	var wait time.Duration
	for _, key := range throttleKeys(scope, identity, ip) {
		res, err := throttleFailureScript.Run(ctx, t.client,
			[]string{t.countKey(key), t.lockKey(key)},
			t.policy.ResetWindow.Milliseconds(),
			t.policy.FreeAttempts,
			t.policy.BaseDelay.Milliseconds(),
			t.policy.Multiplier,
			t.policy.MaxDelay.Milliseconds(),
		).Int64()
		if err != nil {
			return 0, fmt.Errorf("throttle failure: %w", err)
		}
		wait = max(wait, time.Duration(res)*time.Millisecond)
	}
	return wait, nil
}

func (t *RedisLoginThrottle) Reset(ctx context.Context, scope ThrottleScope, identity, ip string) error {
	keys := throttleKeys(scope, identity, ip)
	return t.client.Del(ctx,
		t.countKey(keys[0]), t.lockKey(keys[0]),
		t.countKey(keys[1]), t.lockKey(keys[1]),
	).Err()
}

func (t *RedisLoginThrottle) countKey(key string) string { return t.prefix + ":count:" + key }
func (t *RedisLoginThrottle) lockKey(key string) string  { return t.prefix + ":lock:" + key }
