package gazetteer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/ppiankov/toporag/internal/cache"
	"github.com/ppiankov/toporag/internal/model"
)

var (
	_ Gazetteer     = (*Cached)(nil)
	_ StatsProvider = (*Cached)(nil)
)

// Cached fronts a gazetteer with a byte cache. Concurrent identical lookups
// share one backend call. Empty results are cached; errors are not.
type Cached struct {
	next   Gazetteer
	cache  cache.Cache
	ttl    time.Duration
	group  singleflight.Group
	logger *slog.Logger
}

// NewCached wraps next; a zero ttl uses the cache's default expiration
func NewCached(next Gazetteer, c cache.Cache, ttl time.Duration, logger *slog.Logger) *Cached {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cached{next: next, cache: c, ttl: ttl, logger: logger}
}

// Candidates serves from cache or loads through the wrapped gazetteer.
// Keys keep diacritics, matching the case-only folding of the backend query.
func (g *Cached) Candidates(ctx context.Context, name string, limit int) ([]model.Candidate, error) {
	key := cache.Key("candidates", strings.ToLower(model.CleanToponym(name)), strconv.Itoa(limit))
	return load(ctx, g, key, func(ctx context.Context) ([]model.Candidate, error) {
		return g.next.Candidates(ctx, name, limit)
	})
}

// NearbyPlaces serves from cache or loads through the wrapped gazetteer
func (g *Cached) NearbyPlaces(ctx context.Context, lat, lon, radiusKm float64, limit int) ([]model.Place, error) {
	key := cache.Key("nearby",
		strconv.FormatFloat(lat, 'f', 5, 64),
		strconv.FormatFloat(lon, 'f', 5, 64),
		strconv.FormatFloat(radiusKm, 'f', 1, 64),
		strconv.Itoa(limit),
	)
	return load(ctx, g, key, func(ctx context.Context) ([]model.Place, error) {
		return g.next.NearbyPlaces(ctx, lat, lon, radiusKm, limit)
	})
}

// Stats passes through when the wrapped gazetteer reports statistics
func (g *Cached) Stats(ctx context.Context) (Stats, error) {
	sp, ok := g.next.(StatsProvider)
	if !ok {
		return Stats{}, fmt.Errorf("gazetteer %T does not report statistics", g.next)
	}
	return sp.Stats(ctx)
}

func load[T any](ctx context.Context, g *Cached, key string, fetch func(context.Context) ([]T, error)) ([]T, error) {
	if data, ok := g.cache.Get(key); ok {
		var out []T
		if err := json.Unmarshal(data, &out); err == nil {
			return out, nil
		}
		g.logger.Warn("dropping undecodable cache entry", "key", key)
		_ = g.cache.Delete(key)
	}

	// The shared call outlives any single caller; each caller stops waiting on its own context
	detached := context.WithoutCancel(ctx)
	ch := g.group.DoChan(key, func() (any, error) {
		items, err := fetch(detached)
		if err != nil {
			return nil, err
		}
		if data, err := json.Marshal(items); err == nil {
			if err := g.cache.Set(key, data, g.ttl); err != nil {
				g.logger.Warn("failed to cache gazetteer result", "key", key, "error", err)
			}
		}
		return items, nil
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-ch:
	}
	if res.Err != nil {
		return nil, res.Err
	}
	if res.Shared {
		g.logger.Debug("shared gazetteer lookup", "key", key)
	}

	items := res.Val.([]T)
	out := make([]T, len(items))
	copy(out, items)
	return out, nil
}
