package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"FileVault/config"
	"FileVault/internal/cache"
	"FileVault/internal/handler"
	"FileVault/internal/logger"
	"FileVault/internal/mq"
	"FileVault/internal/repo"
	"FileVault/internal/service"
	"FileVault/internal/storage"
	"FileVault/internal/task"
	"FileVault/router"
	"FileVault/utils"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type dispatcher interface {
	task.Dispatcher
	Wait()
}

// main wires the services and serves HTTP until SIGINT or SIGTERM.
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
	if cfg.Environment != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := repo.OpenDB(cfg)
	if err != nil {
		zlog.Fatal("open database", zap.Error(err))
	}
	metadata := repo.NewMetadataStore(db)

	var rdb *redis.Client
	if cfg.RedisEnabled {
		rdb, err = repo.NewRedis(ctx, cfg)
		if err != nil {
			zlog.Warn("redis unavailable, list cache and cache expiry disabled", zap.Error(err))
			rdb = nil
		} else {
			defer rdb.Close()
		}
	}

	store, err := storage.New(ctx, config.StorageConfigInstance, config.StorageConfigInstance.Bucket)
	if err != nil {
		zlog.Fatal("init object store", zap.Error(err))
	}
	local, err := cache.New(cfg.CacheDir)
	if err != nil {
		zlog.Fatal("init local cache", zap.Error(err))
	}
	lists := utils.NewListCache(rdb, cfg.ListCacheTTL)

	applier := task.NewApplier(metadata, zlog.Named("cache-sync"), func(ctx context.Context, owner uint64) {
		if err := lists.Invalidate(ctx, owner); err != nil {
			zlog.Debug("list cache invalidate failed", zap.Error(err))
		}
	})
	inline := task.NewInlineDispatcher(applier, zlog.Named("cache-sync"), cfg.CacheSyncRetryMax, 200*time.Millisecond)
	var cacheSync dispatcher = inline
	if cfg.CacheSyncMode == "amqp" {
		publisher := mq.NewPublisher(cfg.RabbitMQURL)
		defer publisher.Close()
		cacheSync = task.NewAMQPDispatcher(publisher, inline, zlog.Named("cache-sync"))
	}

	if len(cfg.UserWhitelist) == 0 {
		zlog.Warn("USER_WHITELIST is empty, uploads are denied for every user")
	}
	vault := service.NewVaultService(service.Deps{
		Metadata:      metadata,
		Store:         store,
		Cache:         local,
		Expiry:        cache.NewExpiry(rdb, cfg.CacheTTL),
		Guard:         service.NewUploadGuard(metadata, cfg.UserWhitelist, cfg.DailyUploadLimitBytes),
		Sync:          cacheSync,
		Lists:         lists,
		Log:           zlog.Named("vault"),
		PublicBaseURL: cfg.PublicBaseURL,
	})

	userDeps := service.UserDeps{
		Users:     repo.NewUserStore(db),
		JWTSecret: cfg.JWTSecret,
		TokenTTL:  cfg.TokenTTL,
		UserLimit: cfg.UserLimit,
		SMTP: utils.SMTPConfig{
			Host:        cfg.SMTPHost,
			Port:        cfg.SMTPPort,
			User:        cfg.SMTPUser,
			Pass:        cfg.SMTPPass,
			From:        cfg.SMTPFrom,
			ImplicitTLS: cfg.SMTPImplicitTLS,
			StartTLS:    cfg.SMTPStartTLS,
		},
		Log: zlog.Named("users"),
	}
	if rdb != nil {
		userDeps.NewLock = func() service.Locker {
			return repo.NewRedisLock(rdb, "lock:register", 30*time.Second)
		}
	}
	users := service.NewUserService(userDeps)

	if rdb != nil && cfg.CacheTTL > 0 {
		startExpiryListener(ctx, rdb, cfg.RedisDB, vault, zlog)
	}

	h := handler.New(vault, users, cfg.MaxUploadBytes, zlog.Named("http"))
	srv := &http.Server{
		Addr: cfg.ListenAddr,
		Handler: router.InitRouter(h, router.Options{
			JWTSecret:        cfg.JWTSecret,
			CORSAllowOrigins: cfg.CORSAllowOrigins,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		zlog.Info("http server listening", zap.String("addr", cfg.ListenAddr), zap.String("cache_sync", cfg.CacheSyncMode))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatal("http server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zlog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Warn("http shutdown", zap.Error(err))
	}
	cacheSync.Wait()
	users.Wait()
}

// startExpiryListener evicts local copies whose redis lifetime key expired.
func startExpiryListener(ctx context.Context, rdb *redis.Client, db int, vault *service.VaultService, zlog *zap.Logger) {
	if err := repo.EnableKeyspaceNotifications(ctx, rdb); err != nil {
		zlog.Warn("enable redis keyspace notifications failed", zap.Error(err))
		return
	}
	ready := make(chan struct{})
	errCh := make(chan error, 1)
	go func() {
		errCh <- repo.ListenRedisExpired(ctx, rdb, db, cache.KeyPrefix, vault.EvictExpired, ready, zlog.Named("expiry"))
	}()
	select {
	case <-ready:
	case err := <-errCh:
		zlog.Warn("cache expiry listener stopped", zap.Error(err))
	}
}
