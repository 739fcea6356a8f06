// Package upstream defines the external collaborator contracts: the
// reasoning source that emits suggestions, the price-history source that
// serves bars, and the account equity feed. All network-bound work lives
// behind these interfaces; the core never dials anything itself.
package upstream

import (
	"context"
	"errors"

	"evolab/internal/domain"
)

// ErrUnavailable means the collaborator could not serve this cycle. The
// caller degrades to "no new suggestions/backtests this cycle" and keeps
// trading on the last active version.
var ErrUnavailable = errors.New("upstream unavailable")

// SuggestionSource produces evolution suggestions from recent market and
// risk context.
type SuggestionSource interface {
	// NextSuggestion returns the collaborator's current proposal, or
	// ErrUnavailable when no proposal can be produced this cycle.
	NextSuggestion(ctx context.Context, market *domain.MarketContext, risk domain.RiskSnapshot) (*domain.Suggestion, error)
}

// BarSource serves ordered historical bars for a symbol.
type BarSource interface {
	// RecentBars returns up to limit bars ending at the present, ordered
	// by timestamp ASC.
	RecentBars(ctx context.Context, symbol string, limit int) ([]domain.Bar, error)
}

// EquitySource reports current account equity.
type EquitySource interface {
	CurrentEquity(ctx context.Context) (float64, error)
}
