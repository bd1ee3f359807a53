package utils

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache stores JSON values in redis.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache creates a Redis cache client.
func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{
		client: client,
	}
}

// Get reads a cached JSON value into dest.
func (c *RedisCache) Get(ctx context.Context, key string, dest interface{}) error {
	val, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return err
	}
	return json.Unmarshal(val, dest)
}

// Set writes value as JSON.
func (c *RedisCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, data, expiration).Err()
}

// Delete removes a cache entry.
func (c *RedisCache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, key).Err()
}

// DeleteByPattern deletes cache entries by pattern.
func (c *RedisCache) DeleteByPattern(ctx context.Context, pattern string) error {
	var cursor uint64
	for {
		keys, nextCursor, err := c.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				return err
			}
		}
		cursor = nextCursor
		if cursor == 0 {
			break
		}
	}
	return nil
}

// BuildCacheKey builds a cache key.
func BuildCacheKey(prefix string, params ...interface{}) string {
	key := prefix
	for _, param := range params {
		key += fmt.Sprintf(":%v", param)
	}
	return key
}

const CacheKeyUserFileList = "user:file:list"

// ListCache caches per-owner listing and tag search results. A nil *ListCache is a
// valid cache that never hits.
type ListCache struct {
	cache *RedisCache
	ttl   time.Duration
}

// NewListCache returns nil when rdb is nil or ttl is not positive.
func NewListCache(rdb *redis.Client, ttl time.Duration) *ListCache {
	if rdb == nil || ttl <= 0 {
		return nil
	}
	return &ListCache{cache: NewRedisCache(rdb), ttl: ttl}
}

func listKey(owner uint64) string {
	return BuildCacheKey(CacheKeyUserFileList, owner)
}

func tagKey(owner uint64, tag string) string {
	return BuildCacheKey(CacheKeyUserFileList, owner, "tag", tag)
}

// GetList reads the owner's cached listing into dest.
func (l *ListCache) GetList(ctx context.Context, owner uint64, dest interface{}) bool {
	if l == nil {
		return false
	}
	return l.cache.Get(ctx, listKey(owner), dest) == nil
}

func (l *ListCache) SetList(ctx context.Context, owner uint64, value interface{}) error {
	if l == nil {
		return nil
	}
	return l.cache.Set(ctx, listKey(owner), value, l.ttl)
}

// GetTagSearch reads a cached tag search result into dest.
func (l *ListCache) GetTagSearch(ctx context.Context, owner uint64, tag string, dest interface{}) bool {
	if l == nil {
		return false
	}
	return l.cache.Get(ctx, tagKey(owner, tag), dest) == nil
}

func (l *ListCache) SetTagSearch(ctx context.Context, owner uint64, tag string, value interface{}) error {
	if l == nil {
		return nil
	}
	return l.cache.Set(ctx, tagKey(owner, tag), value, l.ttl)
}

// Invalidate drops every cached listing and search of the owner.
func (l *ListCache) Invalidate(ctx context.Context, owner uint64) error {
	if l == nil {
		return nil
	}
	if err := l.cache.Delete(ctx, listKey(owner)); err != nil {
		return err
	}
	return l.cache.DeleteByPattern(ctx, listKey(owner)+":*")
}
