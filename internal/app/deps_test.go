package app

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/vidfriends/shorts/internal/cache"
	"github.com/vidfriends/shorts/internal/config"
	"github.com/vidfriends/shorts/internal/handlers"
	"github.com/vidfriends/shorts/internal/persistence"
	"github.com/vidfriends/shorts/internal/storage"
)

func testConfig() config.Config {
	return config.Config{
		PublicBaseURL: "http://localhost:8080/rest",
		TokenSecret:   "test-secret",
		Backend:       config.BackendMemory,
		Cache:         config.CacheConfig{Kind: config.CacheMemory, DefaultTTL: time.Minute, LocalMaxCost: 1000},
		SessionTTL:    time.Hour,
		LoginRequests: 5,
		LoginWindow:   time.Minute,
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestBuildDependencies(t *testing.T) {
	cfg := testConfig()
	ctx := context.Background()

	backend, err := openBackend(ctx, cfg)
	if err != nil {
		t.Fatalf("open backend: %v", err)
	}
	store, closeStore, err := openCache(ctx, cfg, discardLogger())
	if err != nil {
		t.Fatalf("open cache: %v", err)
	}
	defer closeStore()

	deps, cleanup, err := buildDependencies(ctx, cfg, backend, store, discardLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cleanup == nil {
		t.Fatal("expected cleanup function")
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = cleanup(ctx)
	}()

	if deps.Users == nil {
		t.Fatal("expected user service to be configured")
	}
	if deps.Shorts == nil {
		t.Fatal("expected shorts service to be configured")
	}
	if deps.Blobs == nil {
		t.Fatal("expected blob service to be configured")
	}
	if deps.Sessions == nil {
		t.Fatal("expected session manager to be configured")
	}
	if deps.LoginLimiter == nil {
		t.Fatal("expected login limiter to be configured")
	}
	if deps.Metrics == nil {
		t.Fatal("expected metrics handler to be configured")
	}

	mux := http.NewServeMux()
	handlers.RegisterRoutes(mux, deps)

	req := httptest.NewRequest(http.MethodPost, handlers.BasePath+"/users", strings.NewReader(`{"id":"alice","pwd":"pw","email":"a@example.com","displayName":"A"}`))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("create user through wired stack: status %d body %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "shorts_cache_operations_total") {
		t.Fatalf("expected cache metrics to be exported, got %s", rec.Body.String())
	}
}

func TestBuildDependenciesWithS3(t *testing.T) {
	cfg := testConfig()
	cfg.ObjectStore = config.ObjectStoreConfig{Bucket: "test-bucket", Endpoint: "http://localhost:9000", Region: "us-east-1"}

	t.Setenv("AWS_ACCESS_KEY_ID", "test")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "test")

	objects, err := openObjectStore(context.Background(), cfg.ObjectStore)
	if err != nil {
		t.Fatalf("open object store: %v", err)
	}
	if _, ok := objects.(*storage.S3Storage); !ok {
		t.Fatalf("expected S3 storage, got %T", objects)
	}

	local, err := cache.NewLocal(100)
	if err != nil {
		t.Fatalf("cache: %v", err)
	}
	defer local.Close()

	_, cleanup, err := buildDependencies(context.Background(), cfg, persistence.NewMemory(), local, discardLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := cleanup(ctx); err != nil {
		t.Fatalf("cleanup: %v", err)
	}
}

func TestBuildDependenciesRequiresSecret(t *testing.T) {
	cfg := testConfig()
	cfg.TokenSecret = ""

	local, err := cache.NewLocal(100)
	if err != nil {
		t.Fatalf("cache: %v", err)
	}
	defer local.Close()

	if _, _, err := buildDependencies(context.Background(), cfg, persistence.NewMemory(), local, discardLogger()); err == nil {
		t.Fatal("expected error without a token secret")
	}
}

func TestOpenSelectsStores(t *testing.T) {
	cfg := testConfig()

	if _, ok := mustStore(t, cfg).(*cache.Local); !ok {
		t.Fatal("expected local cache for memory kind")
	}

	cfg.Cache.Kind = config.CacheRedis
	cfg.Cache.RedisAddr = "127.0.0.1:1"
	cfg.Cache.PoolTimeout = 50 * time.Millisecond
	cfg.Cache.ReadTimeout = 50 * time.Millisecond
	cfg.Cache.WriteTimeout = 50 * time.Millisecond
	if _, ok := mustStore(t, cfg).(*cache.Redis); !ok {
		t.Fatal("expected redis cache even when unreachable")
	}

	cfg.Backend = "sqlite"
	if _, err := openBackend(context.Background(), cfg); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}

func mustStore(t *testing.T, cfg config.Config) cache.Store {
	t.Helper()
	store, closeStore, err := openCache(context.Background(), cfg, discardLogger())
	if err != nil {
		t.Fatalf("open cache: %v", err)
	}
	t.Cleanup(closeStore)
	return store
}

func TestRunRejectsUnknownCommand(t *testing.T) {
	if err := Run(context.Background(), nil); err == nil {
		t.Fatal("expected error without a command")
	}
	if err := Run(context.Background(), []string{"seed"}); err == nil {
		t.Fatal("expected error for unknown command")
	}
}
