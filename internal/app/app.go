// Package app wires configuration into the running services shared by the
// batch command and the admin server.
package app

import (
	"context"
	"fmt"

	"sjsage522/flooringscraper/config"
	"sjsage522/flooringscraper/internal"
	"sjsage522/flooringscraper/internal/crawler"
	"sjsage522/flooringscraper/logger"
	"sjsage522/flooringscraper/pkg/errors"
	"sjsage522/flooringscraper/services/cache"
	"sjsage522/flooringscraper/services/publisher"
	"sjsage522/flooringscraper/services/store"
	"sjsage522/flooringscraper/services/worker"
)

const cachePrefix = "flooring:"

// Services holds all the initialized services
type Services struct {
	Deps    internal.Dependencies
	Factory *crawler.Factory
	Worker  *worker.Worker
}

// Cleanup closes every service
func (s *Services) Cleanup() {
	if s.Factory != nil {
		if err := s.Factory.Close(); err != nil {
			logger.LogError("crawler", err, "Failed to close browser")
		}
	}
	if s.Deps.Publisher != nil {
		if err := s.Deps.Publisher.Close(); err != nil {
			logger.LogError("publisher", err, "Failed to close publisher")
		}
	}
	if s.Deps.Store != nil {
		if err := s.Deps.Store.Close(); err != nil {
			logger.LogError("store", err, "Failed to close store")
		}
	}
}

// Initialize opens the store and connects the optional cache and publisher.
// Only a store failure is fatal; an unreachable cache or stream degrades to
// the in-process cache and the no-op publisher.
func Initialize(ctx context.Context, cfg config.Config) (*Services, error) {
	st, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	deps := internal.Dependencies{
		Store: st,
		Cache: openCache(cfg),
		Fetch: internal.FetchSettings{
			FlareSolverrURL:   cfg.FlareSolverrURL,
			FlareSolverrProxy: cfg.FlareSolverrProxy,
			BrowserFallback:   cfg.BrowserFallback,
			BrowserControlURL: cfg.BrowserControlURL,
			BlockTime:         cfg.BlockTime,
		},
		Publisher: openPublisher(ctx, cfg),
	}

	sites, err := crawler.LoadSites(cfg.SitesDir)
	if err != nil {
		deps.Publisher.Close()
		st.Close()
		return nil, errors.NewConfiguration("", "load site definitions", err)
	}
	logger.Info("Loaded %d site definitions", len(sites))

	factory := crawler.NewFactory(deps, sites)
	return &Services{
		Deps:    deps,
		Factory: factory,
		Worker:  worker.NewWorker(deps.Store, deps.Publisher, factory),
	}, nil
}

// OpenStore opens the configured persistence backend
func OpenStore(ctx context.Context, cfg config.Config) (store.Store, error) {
	switch cfg.StoreDriver {
	case config.StoreDriverSQLite:
		st, err := store.NewSQLiteStore(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		logger.Info("Opened SQLite store at %s", cfg.SQLitePath)
		return st, nil
	case config.StoreDriverPostgres:
		st, err := store.NewPostgresStore(ctx, cfg.DatabaseURL, cfg.DatabasePassword)
		if err != nil {
			return nil, err
		}
		logger.Info("Connected to Postgres")
		return st, nil
	}
	return nil, errors.NewConfiguration("", fmt.Sprintf("unknown store driver %q", cfg.StoreDriver), nil)
}

func openCache(cfg config.Config) cache.CacheService {
	log := logger.ForCache()
	if cfg.MemcacheAddr == "" {
		log.Info().Msg("Using in-process cache")
		return cache.NewMemoryCache()
	}
	mc := cache.NewMemcacheService(cfg.MemcacheAddr, cachePrefix)
	if err := mc.Ping(); err != nil {
		log.Warn().Err(errors.NewCache("", "ping memcache", err)).Msg("Memcache unavailable, using in-process cache")
		return cache.NewMemoryCache()
	}
	log.Info().Str("addr", cfg.MemcacheAddr).Msg("Connected to Memcache")
	return mc
}

func openPublisher(ctx context.Context, cfg config.Config) publisher.Publisher {
	log := logger.ForPublisher()
	if cfg.RedisAddr == "" {
		log.Debug().Msg("No Redis address, outcomes will not be streamed")
		return publisher.NoopPublisher{}
	}
	rp := publisher.NewRedisPublisher(cfg.RedisAddr, cfg.RedisDB, cfg.RedisStream, cfg.RedisStreamMaxLength)
	if err := rp.Ping(ctx); err != nil {
		log.Warn().Err(errors.NewPublisher("", "ping redis", err)).Msg("Redis unavailable, outcomes will not be streamed")
		rp.Close()
		return publisher.NoopPublisher{}
	}
	log.Info().
		Str("addr", cfg.RedisAddr).
		Int("db", cfg.RedisDB).
		Str("stream", cfg.RedisStream).
		Msg("Connected to Redis")
	return rp
}
