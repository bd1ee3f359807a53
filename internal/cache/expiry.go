package cache

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// KeyPrefix marks redis keys that track the lifetime of a local copy.
const KeyPrefix = "cache:"

// Expiry records a TTL in redis for each cached file. When the key expires the
// listener evicts the local copy. A nil client or non-positive ttl disables it.
type Expiry struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewExpiry(rdb *redis.Client, ttl time.Duration) *Expiry {
	return &Expiry{rdb: rdb, ttl: ttl}
}

func (e *Expiry) Enabled() bool {
	return e != nil && e.rdb != nil && e.ttl > 0
}

// Touch starts or restarts the lifetime of a cached file.
func (e *Expiry) Touch(ctx context.Context, name string) error {
	if !e.Enabled() {
		return nil
	}
	return e.rdb.Set(ctx, KeyPrefix+name, 1, e.ttl).Err()
}

// Forget drops the lifetime key of a file that is no longer cached.
func (e *Expiry) Forget(ctx context.Context, name string) error {
	if !e.Enabled() {
		return nil
	}
	return e.rdb.Del(ctx, KeyPrefix+name).Err()
}

// NameFromKey extracts the cache name from an expired redis key.
func NameFromKey(key string) (string, bool) {
	if !strings.HasPrefix(key, KeyPrefix) {
		return "", false
	}
	return strings.TrimPrefix(key, KeyPrefix), true
}
