package repo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"FileVault/config"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var ErrLockBusy = errors.New("lock is busy")

type RedisLock struct {
	rdb   *redis.Client
	key   string
	token string
	ttl   time.Duration
}

// NewRedis connects to Redis and checks the connection.
func NewRedis(ctx context.Context, cfg config.Config) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.RedisHost, cfg.RedisPort),
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("init redis: %w", err)
	}
	return rdb, nil
}

// EnableKeyspaceNotifications enables Redis expired-key events.
func EnableKeyspaceNotifications(ctx context.Context, rdb *redis.Client) error {
	if rdb == nil {
		return errors.New("redis not initialized")
	}
	return rdb.ConfigSet(ctx, "notify-keyspace-events", "Ex").Err()
}

// NewRedisLock creates a Redis lock helper.
func NewRedisLock(rdb *redis.Client, key string, ttl time.Duration) *RedisLock {
	return &RedisLock{
		rdb: rdb,
		key: key,
		ttl: ttl,
	}
}

// Lock acquires the lock once. A held lock returns ErrLockBusy.
func (l *RedisLock) Lock(ctx context.Context) error {
	token := uuid.NewString()
	ok, err := l.rdb.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrLockBusy
	}
	l.token = token
	return nil
}

var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Unlock releases the lock only if this holder still owns it.
func (l *RedisLock) Unlock(ctx context.Context) error {
	if l.token == "" {
		return nil
	}
	err := unlockScript.Run(ctx, l.rdb, []string{l.key}, l.token).Err()
	l.token = ""
	return err
}

// ExpiredHandler receives the name of an expired key.
type ExpiredHandler func(ctx context.Context, key string)

// ListenRedisExpired subscribes to expired-key events of the given database and calls
// handler for each key carrying prefix. It closes ready once subscribed and returns when
// ctx is done.
func ListenRedisExpired(ctx context.Context, rdb *redis.Client, db int, prefix string, handler ExpiredHandler, ready chan<- struct{}, log *zap.Logger) error {
	pubsub := rdb.Subscribe(ctx, fmt.Sprintf("__keyevent@%d__:expired", db))
	defer pubsub.Close()
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe expired events: %w", err)
	}
	if ready != nil {
		close(ready)
	}
	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			key := msg.Payload
			if !strings.HasPrefix(key, prefix) {
				continue
			}
			log.Debug("redis key expired", zap.String("key", key))
			handler(ctx, key)
		}
	}
}
