package upstream

import (
	"context"
	"fmt"
	"testing"

	"github.com/rs/zerolog"

	"evolab/internal/domain"
	storagemem "evolab/internal/storage/memory"
)

type switchableSource struct {
	down bool
	bars []domain.Bar
}

func (s *switchableSource) RecentBars(_ context.Context, _ string, _ int) ([]domain.Bar, error) {
	if s.down {
		return nil, fmt.Errorf("%w: endpoint down", ErrUnavailable)
	}
	return s.bars, nil
}

func TestCachingBarSource_ServesCacheWhenDown(t *testing.T) {
	live := &switchableSource{bars: []domain.Bar{
		{TimestampMs: 100, Close: 100},
		{TimestampMs: 200, Close: 101},
	}}
	src := NewCachingBarSource(live, storagemem.NewBarStore(), zerolog.Nop())
	ctx := context.Background()

	// First call populates the cache.
	bars, err := src.RecentBars(ctx, "BTC_USDT", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(bars) != 2 {
		t.Fatalf("got %d bars, want 2", len(bars))
	}

	// Live source dies: cached bars still serve.
	live.down = true
	bars, err = src.RecentBars(ctx, "BTC_USDT", 10)
	if err != nil {
		t.Fatalf("Expected cached bars, got %v", err)
	}
	if len(bars) != 2 || bars[1].Close != 101 {
		t.Errorf("Cached bars = %v", bars)
	}
}

func TestCachingBarSource_EmptyCachePropagatesError(t *testing.T) {
	src := NewCachingBarSource(&switchableSource{down: true}, storagemem.NewBarStore(), zerolog.Nop())

	if _, err := src.RecentBars(context.Background(), "BTC_USDT", 10); err == nil {
		t.Fatal("Expected error with dead source and empty cache")
	}
}

func TestCachingBarSource_RepeatFetchDoesNotDuplicate(t *testing.T) {
	live := &switchableSource{bars: []domain.Bar{{TimestampMs: 100, Close: 100}}}
	cache := storagemem.NewBarStore()
	src := NewCachingBarSource(live, cache, zerolog.Nop())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := src.RecentBars(ctx, "BTC_USDT", 10); err != nil {
			t.Fatal(err)
		}
	}

	stored, _ := cache.GetBars(ctx, "BTC_USDT")
	if len(stored) != 1 {
		t.Errorf("Cache holds %d bars, want 1", len(stored))
	}
}
