package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/vidfriends/shorts/internal/auth"
	"github.com/vidfriends/shorts/internal/blobs"
	"github.com/vidfriends/shorts/internal/cache"
	"github.com/vidfriends/shorts/internal/cleanup"
	"github.com/vidfriends/shorts/internal/config"
	"github.com/vidfriends/shorts/internal/db"
	"github.com/vidfriends/shorts/internal/handlers"
	"github.com/vidfriends/shorts/internal/metrics"
	"github.com/vidfriends/shorts/internal/middleware"
	"github.com/vidfriends/shorts/internal/persistence"
	"github.com/vidfriends/shorts/internal/repositories"
	"github.com/vidfriends/shorts/internal/service"
	"github.com/vidfriends/shorts/internal/storage"
	"github.com/vidfriends/shorts/internal/token"
)

// openBackend connects the persistence backend selected by cfg.Backend.
func openBackend(ctx context.Context, cfg config.Config) (persistence.Backend, error) {
	switch cfg.Backend {
	case config.BackendPostgres:
		pool, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return persistence.NewPostgres(pool), nil
	case config.BackendMongo:
		return persistence.ConnectMongo(ctx, cfg.MongoURI, cfg.MongoDB)
	case config.BackendMemory:
		return persistence.NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}

// openCache builds the cache store selected by cfg.Cache.Kind. An unreachable
// Redis is logged, not fatal: every cache failure degrades to a miss.
func openCache(ctx context.Context, cfg config.Config, logger *slog.Logger) (cache.Store, func(), error) {
	switch cfg.Cache.Kind {
	case config.CacheRedis:
		rdb := cache.NewRedis(cache.RedisOptions{
			Addr:         cfg.Cache.RedisAddr,
			Password:     cfg.Cache.RedisPass,
			DB:           cfg.Cache.RedisDB,
			PoolSize:     cfg.Cache.PoolSize,
			PoolTimeout:  cfg.Cache.PoolTimeout,
			ReadTimeout:  cfg.Cache.ReadTimeout,
			WriteTimeout: cfg.Cache.WriteTimeout,
		})
		if err := rdb.Ping(ctx); err != nil {
			logger.Warn("redis unreachable at startup", "addr", cfg.Cache.RedisAddr, "error", err)
		}
		return rdb, func() { _ = rdb.Close() }, nil
	case config.CacheMemory:
		local, err := cache.NewLocal(cfg.Cache.LocalMaxCost)
		if err != nil {
			return nil, nil, err
		}
		return local, local.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown cache %q", cfg.Cache.Kind)
	}
}

// openObjectStore selects S3 when a bucket is configured and memory otherwise.
func openObjectStore(ctx context.Context, cfg config.ObjectStoreConfig) (storage.ObjectStore, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return storage.NewMemory(), nil
	}
	return storage.NewS3Storage(ctx, cfg)
}

// buildDependencies wires together concrete implementations used by the HTTP
// handlers. The returned function drains the cleanup worker.
func buildDependencies(ctx context.Context, cfg config.Config, backend persistence.Backend, store cache.Store, logger *slog.Logger) (handlers.Dependencies, func(context.Context) error, error) {
	if backend == nil || store == nil {
		return handlers.Dependencies{}, nil, errors.New("backend and cache store are required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(registry)

	tokens, err := token.NewAuthority(cfg.TokenSecret)
	if err != nil {
		return handlers.Dependencies{}, nil, err
	}

	objects, err := openObjectStore(ctx, cfg.ObjectStore)
	if err != nil {
		return handlers.Dependencies{}, nil, err
	}
	blobSvc := blobs.NewService(objects, tokens)

	ttl := cfg.Cache.DefaultTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	safe := cache.NewSafe(store, collector)

	shortsRepo := repositories.NewShortsRepository(backend, safe, blobSvc, tokens, ttl)
	worker := cleanup.NewWorker(shortsRepo, collector, cleanup.Config{
		QueueSize: cfg.CleanupQueueSize,
		Workers:   cfg.CleanupWorkers,
	}, logger)
	usersRepo := repositories.NewUsersRepository(backend, safe, worker, ttl)

	users := service.NewUsers(usersRepo)
	shorts := service.NewShorts(usersRepo, shortsRepo, tokens, strings.TrimSuffix(cfg.PublicBaseURL, "/")+"/blobs")

	sessionTTL := cfg.SessionTTL
	if sessionTTL <= 0 {
		sessionTTL = time.Hour
	}

	deps := handlers.Dependencies{
		Users:        users,
		Shorts:       shorts,
		Blobs:        blobSvc,
		Sessions:     auth.NewManager(sessionTTL, store, users),
		LoginLimiter: middleware.NewKeyedRateLimiter(cfg.LoginRequests, cfg.LoginWindow, cfg.LoginRequests, 10*time.Minute),
		Metrics:      metrics.Handler(registry),
	}

	return deps, worker.Shutdown, nil
}
