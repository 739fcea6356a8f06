package strategy

import (
	"context"

	"evolab/internal/domain"
)

// Strategy produces trading decisions from market context and the shared
// risk snapshot. Implementations are stateless between calls so the same
// input always yields the same decision.
type Strategy interface {
	// Decide returns the trading decision for the current bar.
	Decide(ctx context.Context, market *domain.MarketContext, risk domain.RiskSnapshot) (*domain.Decision, error)

	// ID returns the strategy identifier (includes parameters).
	ID() string

	// Config returns the declarative definition the strategy was built
	// from.
	Config() domain.StrategyConfig
}

// Sizing defaults applied when the definition leaves them unset.
const (
	DefaultPositionFraction = 0.95
	DefaultMinConfidence    = 0.6
)

// PositionFraction returns the configured position fraction or the default.
func PositionFraction(cfg domain.StrategyConfig) float64 {
	if cfg.PositionFraction != nil && *cfg.PositionFraction > 0 {
		return *cfg.PositionFraction
	}
	return DefaultPositionFraction
}

// MinConfidence returns the configured decision gate or the default.
func MinConfidence(cfg domain.StrategyConfig) float64 {
	if cfg.MinConfidence != nil {
		return *cfg.MinConfidence
	}
	return DefaultMinConfidence
}

// protectivePrices derives absolute stop-loss / take-profit prices for an
// entry at the given price. Either pointer is nil when unconfigured.
func protectivePrices(cfg domain.StrategyConfig, entryPrice float64) (stop, take *float64) {
	if cfg.StopLossPct != nil && *cfg.StopLossPct > 0 {
		p := entryPrice * (1 - *cfg.StopLossPct)
		stop = &p
	}
	if cfg.TakeProfitPct != nil && *cfg.TakeProfitPct > 0 {
		p := entryPrice * (1 + *cfg.TakeProfitPct)
		take = &p
	}
	return stop, take
}
