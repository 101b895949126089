package cli

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ppiankov/toporag/internal/cache"
	"github.com/ppiankov/toporag/internal/gazetteer"
	"github.com/ppiankov/toporag/internal/llm"
	"github.com/ppiankov/toporag/internal/model"
	"github.com/ppiankov/toporag/internal/worker"
)

// memoryCleanupInterval is how often expired in-memory entries are purged
const memoryCleanupInterval = 10 * time.Minute

// openGazetteer builds the configured backend behind its cache layers.
// The returned close function releases every connection it opened.
func openGazetteer(ctx context.Context, cfg *model.Config, logger *slog.Logger) (gazetteer.Gazetteer, func(), error) {
	var (
		backend gazetteer.Gazetteer
		closers []func()
	)
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	switch cfg.Gazetteer.Backend {
	case "static":
		s, err := gazetteer.LoadStatic(cfg.Gazetteer.File)
		if err != nil {
			return nil, nil, err
		}
		backend = s
	default:
		g, err := gazetteer.NewNeo4j(ctx, gazetteer.Neo4jConfig{
			URI:         cfg.Gazetteer.URI,
			User:        cfg.Gazetteer.User,
			Password:    cfg.Gazetteer.Password,
			Database:    cfg.Gazetteer.Database,
			MaxPoolSize: cfg.Gazetteer.MaxPoolSize,
			Logger:      logger,
		})
		if err != nil {
			return nil, nil, err
		}
		closers = append(closers, func() { _ = g.Close(context.Background()) })
		backend = g
	}

	if !cfg.Cache.Enabled {
		return backend, closeAll, nil
	}

	var layers cache.Cache
	if cfg.Cache.RedisAddr != "" {
		client, err := cache.DialRedis(ctx, cfg.Cache.RedisAddr)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		closers = append(closers, func() { _ = client.Close() })
		layers = cache.NewLayeredCache(
			cache.NewMemoryCache(cfg.Cache.MemoryTTL, memoryCleanupInterval),
			cache.NewRedisCache(client, cfg.Cache.DiskTTL),
		)
		logger.Debug("gazetteer cache", "memory_ttl", cfg.Cache.MemoryTTL, "redis", cfg.Cache.RedisAddr)
	} else {
		layers = cache.NewMemoryDiskCache(cfg.Cache.MemoryTTL, cfg.Cache.DiskDir, cfg.Cache.DiskTTL)
		logger.Debug("gazetteer cache", "memory_ttl", cfg.Cache.MemoryTTL, "disk", cfg.Cache.DiskDir)
	}

	return gazetteer.NewCached(backend, layers, cfg.Cache.DiskTTL, logger), closeAll, nil
}

// newJudge builds the rate-limited judgment client for the configured provider
func newJudge(cfg *model.Config, logger *slog.Logger) (*llm.Judge, error) {
	provider, err := newProvider(cfg)
	if err != nil {
		return nil, err
	}
	limiter := worker.NewLimiter(cfg.LLM.RequestsPerSecond, cfg.LLM.Burst)
	return llm.NewJudge(provider, limiter, logger), nil
}

func newProvider(cfg *model.Config) (llm.Provider, error) {
	if cfg.LLM.Provider == "" {
		return nil, fmt.Errorf("%w: no LLM provider configured (set llm.provider or --provider)", model.ErrInvalidConfig)
	}
	provider, err := llm.NewProvider(llm.ConfigFromModel(cfg.LLM))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrInvalidConfig, err)
	}
	return provider, nil
}
