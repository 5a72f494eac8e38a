// Package bootstrap wires the analysis pipeline from configuration. It is
// shared by the HTTP server and the one-shot CLI.
package bootstrap

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/redis/go-redis/v9"

	"serp-go/internal/config"
	"serp-go/pkg/keyword"
	"serp-go/pkg/logger"
	"serp-go/pkg/pipeline"
	"serp-go/pkg/serp"
	"serp-go/pkg/storage"
	"serp-go/pkg/worker"
)

// App holds the wired components. Pool is created but not started.
type App struct {
	Store   storage.Store
	Pool    *worker.WorkerPool
	Service *pipeline.Service
	// Cache is nil when result caching is disabled
	Cache *serp.CachingClient

	redis *redis.Client
	log   *logger.Logger
}

// New builds every component described by cfg
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	app := &App{log: logger.GetLogger().WithField("component", "bootstrap")}

	store, err := SetupStore(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}
	app.Store = store

	oracle := serp.NewHTTPSearchClient(cfg.SERP)
	search, err := app.setupCache(ctx, cfg.Cache, oracle)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("cache: %w", err)
	}

	var volume serp.VolumeClient
	if cfg.VolumeEnabled() {
		volume = serp.NewHTTPVolumeClient(cfg.Volume, cfg.Pipeline.Scheduler.RetryPolicy())
	}

	scheduler := worker.NewBatchScheduler(serp.NewResolver(search, cfg.Pipeline.ResultsPerQuery), cfg.Pipeline.Scheduler)
	orchestrator := pipeline.NewOrchestrator(store, keyword.NewNormalizer(cfg.Pipeline.Keywords), scheduler, volume)

	// Reverification always asks the oracle directly
	reverifier := pipeline.NewReverifier(store, serp.NewResolver(oracle, cfg.Pipeline.ResultsPerQuery), cfg.Pipeline.Scheduler.RetryPolicy())

	app.Pool = worker.NewWorkerPool(cfg.Worker)
	app.Service = pipeline.NewService(store, orchestrator, reverifier, app.Pool)

	secure := logger.NewSecurityLogger(app.log)
	secure.SafeInfo("Pipeline configured", map[string]interface{}{
		"serp_endpoint":   cfg.SERP.Endpoint,
		"serp_api_key":    cfg.SERP.APIKey,
		"volume_endpoint": cfg.Volume.Endpoint,
		"storage_driver":  cfg.Storage.Driver,
		"cache_driver":    cfg.Cache.Driver,
		"batch_size":      cfg.Pipeline.Scheduler.BatchSize,
		"max_workers":     cfg.Worker.MaxWorkers,
	})
	if cfg.SERP.APIKey == "" {
		secure.SafeWarn("Search API key is not set, analyses will fail until it is configured", map[string]interface{}{
			"serp_endpoint": cfg.SERP.Endpoint,
		})
	}
	return app, nil
}

// SetupStore opens the configured store and applies migrations
func SetupStore(ctx context.Context, cfg storage.StorageConfig) (storage.Store, error) {
	switch cfg.Driver {
	case "", "memory":
		return storage.NewMemoryStorage(), nil
	case "sqlite":
		if dir := filepath.Dir(cfg.DSN); cfg.DSN != ":memory:" && !strings.HasPrefix(cfg.DSN, "file:") && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create data directory: %w", err)
			}
		}
		store, err := storage.NewSQLite(cfg.DSN)
		if err != nil {
			return nil, err
		}
		if err := store.Migrate(ctx); err != nil {
			store.Close()
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

func (a *App) setupCache(ctx context.Context, cfg config.CacheConfig, oracle serp.SearchClient) (serp.SearchClient, error) {
	var cache serp.Cache
	switch cfg.Driver {
	case "", "none":
		return oracle, nil
	case "memory":
		cache = serp.NewMemoryCache(cfg.MaxSize)
	case "redis":
		client, err := serp.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		a.redis = client
		cache = serp.NewRedisCache(client)
	default:
		return nil, fmt.Errorf("unknown cache driver %q", cfg.Driver)
	}

	a.Cache = serp.NewCachingClient(oracle, cache, cfg.TTL)
	return a.Cache, nil
}

// Close releases the store and cache connections. Stop the pool first.
func (a *App) Close() error {
	var firstErr error
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			firstErr = err
		}
	}
	if a.Store != nil {
		if err := a.Store.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
