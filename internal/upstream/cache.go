package upstream

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"evolab/internal/domain"
	"evolab/internal/storage"
)

// CachingBarSource writes every fetched batch through to a bar store and
// falls back to the cache when the live source is unavailable, so a dead
// price endpoint degrades to stale-but-usable history instead of an
// empty backtest.
type CachingBarSource struct {
	inner BarSource
	cache storage.BarStore
	log   zerolog.Logger
}

func NewCachingBarSource(inner BarSource, cache storage.BarStore, log zerolog.Logger) *CachingBarSource {
	return &CachingBarSource{
		inner: inner,
		cache: cache,
		log:   log.With().Str("component", "bar_cache").Logger(),
	}
}

// RecentBars fetches from the live source and caches the result. On
// ErrUnavailable it serves the most recent cached bars instead.
func (c *CachingBarSource) RecentBars(ctx context.Context, symbol string, limit int) ([]domain.Bar, error) {
	bars, err := c.inner.RecentBars(ctx, symbol, limit)
	if err != nil {
		if !errors.Is(err, ErrUnavailable) {
			return nil, err
		}
		cached, cacheErr := c.cache.GetBars(ctx, symbol)
		if cacheErr != nil || len(cached) == 0 {
			return nil, err
		}
		if len(cached) > limit {
			cached = cached[len(cached)-limit:]
		}
		c.log.Warn().Str("symbol", symbol).Int("bars", len(cached)).Msg("live source down, serving cached bars")
		return cached, nil
	}

	if err := c.store(ctx, symbol, bars); err != nil {
		c.log.Warn().Err(err).Str("symbol", symbol).Msg("bar cache write failed")
	}
	return bars, nil
}

// store inserts only the bars the cache does not already hold.
func (c *CachingBarSource) store(ctx context.Context, symbol string, bars []domain.Bar) error {
	if len(bars) == 0 {
		return nil
	}

	existing, err := c.cache.GetByTimeRange(ctx, symbol, bars[0].TimestampMs, bars[len(bars)-1].TimestampMs)
	if err != nil {
		return fmt.Errorf("read cache: %w", err)
	}
	have := make(map[int64]struct{}, len(existing))
	for _, b := range existing {
		have[b.TimestampMs] = struct{}{}
	}

	var fresh []domain.Bar
	for _, b := range bars {
		if _, ok := have[b.TimestampMs]; !ok {
			fresh = append(fresh, b)
		}
	}
	if len(fresh) == 0 {
		return nil
	}
	return c.cache.InsertBars(ctx, symbol, fresh)
}

// Compile-time interface check.
var _ BarSource = (*CachingBarSource)(nil)
