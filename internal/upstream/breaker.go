package upstream

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"evolab/internal/domain"
)

// newBreaker builds a circuit breaker that opens after a run of
// consecutive failures and probes again after the timeout.
func newBreaker(name string, log zerolog.Logger) *gobreaker.CircuitBreaker {
	st := gobreaker.Settings{
		Name:    name,
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state change")
		},
	}
	return gobreaker.NewCircuitBreaker(st)
}

// GuardedSuggestionSource wraps a SuggestionSource with a circuit breaker
// so a flapping reasoning collaborator degrades to ErrUnavailable instead
// of stalling every cycle on a dead endpoint.
type GuardedSuggestionSource struct {
	inner SuggestionSource
	cb    *gobreaker.CircuitBreaker
}

func NewGuardedSuggestionSource(inner SuggestionSource, log zerolog.Logger) *GuardedSuggestionSource {
	return &GuardedSuggestionSource{
		inner: inner,
		cb:    newBreaker("suggestion-source", log),
	}
}

func (g *GuardedSuggestionSource) NextSuggestion(ctx context.Context, market *domain.MarketContext, risk domain.RiskSnapshot) (*domain.Suggestion, error) {
	out, err := g.cb.Execute(func() (interface{}, error) {
		return g.inner.NextSuggestion(ctx, market, risk)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return out.(*domain.Suggestion), nil
}

// GuardedBarSource wraps a BarSource with a circuit breaker.
type GuardedBarSource struct {
	inner BarSource
	cb    *gobreaker.CircuitBreaker
}

func NewGuardedBarSource(inner BarSource, log zerolog.Logger) *GuardedBarSource {
	return &GuardedBarSource{
		inner: inner,
		cb:    newBreaker("bar-source", log),
	}
}

func (g *GuardedBarSource) RecentBars(ctx context.Context, symbol string, limit int) ([]domain.Bar, error) {
	out, err := g.cb.Execute(func() (interface{}, error) {
		return g.inner.RecentBars(ctx, symbol, limit)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return out.([]domain.Bar), nil
}

// Compile-time interface checks.
var (
	_ SuggestionSource = (*GuardedSuggestionSource)(nil)
	_ BarSource        = (*GuardedBarSource)(nil)
)
