package upstream

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"evolab/internal/domain"
)

type flakySource struct {
	failures int
	calls    int
}

func (f *flakySource) RecentBars(_ context.Context, _ string, limit int) ([]domain.Bar, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, errors.New("connection refused")
	}
	return make([]domain.Bar, limit), nil
}

func TestGuardedBarSource_PassThrough(t *testing.T) {
	src := NewGuardedBarSource(&flakySource{}, zerolog.Nop())

	bars, err := src.RecentBars(context.Background(), "BTC_USDT", 5)
	if err != nil {
		t.Fatalf("RecentBars failed: %v", err)
	}
	if len(bars) != 5 {
		t.Errorf("got %d bars, want 5", len(bars))
	}
}

func TestGuardedBarSource_FailureMapsToUnavailable(t *testing.T) {
	src := NewGuardedBarSource(&flakySource{failures: 1}, zerolog.Nop())

	if _, err := src.RecentBars(context.Background(), "BTC_USDT", 5); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("error = %v, want ErrUnavailable", err)
	}

	// Breaker still closed after a single failure; next call succeeds.
	if _, err := src.RecentBars(context.Background(), "BTC_USDT", 5); err != nil {
		t.Fatalf("RecentBars after recovery failed: %v", err)
	}
}

func TestGuardedBarSource_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	inner := &flakySource{failures: 100}
	src := NewGuardedBarSource(inner, zerolog.Nop())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := src.RecentBars(ctx, "BTC_USDT", 5); !errors.Is(err, ErrUnavailable) {
			t.Fatalf("call %d error = %v, want ErrUnavailable", i, err)
		}
	}

	callsBefore := inner.calls
	if _, err := src.RecentBars(ctx, "BTC_USDT", 5); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("error = %v, want ErrUnavailable while open", err)
	}
	if inner.calls != callsBefore {
		t.Error("Open breaker should short-circuit without calling upstream")
	}
}
