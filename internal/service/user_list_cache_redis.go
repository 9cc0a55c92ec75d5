package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisUserListCache shares listing pages between API instances. Each
// namespace keeps a set of its data keys so invalidation needs no SCAN.
type RedisUserListCache struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisUserListCache(client redis.UniversalClient, prefix string) *RedisUserListCache {
	if prefix == "" {
		prefix = "admin_list_cache"
	}
	return &RedisUserListCache{client: client, prefix: prefix}
}

func (c *RedisUserListCache) Get(ctx context.Context, namespace, key string) ([]byte, bool, error) {
	value, err := c.client.Get(ctx, c.dataKey(namespace, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

func (c *RedisUserListCache) Set(ctx context.Context, namespace, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	dataKey := c.dataKey(namespace, key)
	index := c.indexKey(namespace)
	pipe := c.client.TxPipeline()
	pipe.Set(ctx, dataKey, value, ttl)
	pipe.SAdd(ctx, index, dataKey)
	pipe.Expire(ctx, index, ttl+time.Minute)
	_, err := pipe.Exec(ctx)
	return err
}

func (c *RedisUserListCache) InvalidateNamespace(ctx context.Context, namespace string) error {
	index := c.indexKey(namespace)
	keys, err := c.client.SMembers(ctx, index).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	pipe := c.client.TxPipeline()
	if len(keys) > 0 {
		pipe.Del(ctx, keys...)
	}
	pipe.Del(ctx, index)
	_, err = pipe.Exec(ctx)
	return err
}

func (c *RedisUserListCache) dataKey(namespace, key string) string {
	return fmt.Sprintf("%s:data:%s:%s", c.prefix, namespace, digest(key))
}

func (c *RedisUserListCache) indexKey(namespace string) string {
	return fmt.Sprintf("%s:index:%s", c.prefix, namespace)
}
