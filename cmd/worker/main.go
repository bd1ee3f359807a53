package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"FileVault/config"
	"FileVault/internal/logger"
	"FileVault/internal/repo"
	"FileVault/internal/task"
	"FileVault/internal/worker"
	"FileVault/utils"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// main consumes deferred cache metadata writes from RabbitMQ.
func main() {
	if err := config.InitConfig(); err != nil {
		log.Fatalf("load config: %v", err)
	}
	cfg := config.AppConfig
	zlog, err := logger.New(cfg.LogLevel, cfg.Environment)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := repo.OpenDB(cfg)
	if err != nil {
		zlog.Fatal("open database", zap.Error(err))
	}

	var rdb *redis.Client
	if cfg.RedisEnabled {
		if rdb, err = repo.NewRedis(ctx, cfg); err != nil {
			zlog.Warn("redis unavailable, list cache invalidation disabled", zap.Error(err))
			rdb = nil
		} else {
			defer rdb.Close()
		}
	}
	lists := utils.NewListCache(rdb, cfg.ListCacheTTL)
	applier := task.NewApplier(repo.NewMetadataStore(db), zlog, func(ctx context.Context, owner uint64) {
		if err := lists.Invalidate(ctx, owner); err != nil {
			zlog.Debug("list cache invalidate failed", zap.Error(err))
		}
	})

	zlog.Info("cache sync worker started",
		zap.Int("concurrency", cfg.CacheSyncConcurrency),
		zap.Float64("rate", cfg.CacheSyncRate))
	err = worker.RunCacheSyncWorker(ctx, worker.Options{
		URL:         cfg.RabbitMQURL,
		Prefetch:    cfg.RabbitMQPrefetch,
		Concurrency: cfg.CacheSyncConcurrency,
		Rate:        cfg.CacheSyncRate,
		Burst:       cfg.CacheSyncBurst,
		RetryMax:    cfg.CacheSyncRetryMax,
		RetryDelays: cfg.CacheSyncRetryDelays,
	}, applier, zlog.Named("worker"))
	if err != nil {
		zlog.Fatal("cache sync worker stopped", zap.Error(err))
	}
}
