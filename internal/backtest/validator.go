// Package backtest replays a candidate strategy over historical bars and
// gates deployment on risk-adjusted performance. The simulation mirrors
// the live tick: same decision entry point, same risk scaling, same
// protective exits.
package backtest

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"evolab/internal/domain"
	"evolab/internal/strategy"
)

// ErrInsufficientData means the series is too short for a meaningful
// verdict. Callers must treat this as a rejection, never a pass.
var ErrInsufficientData = errors.New("insufficient historical data")

// Config holds the validation thresholds and simulation parameters.
type Config struct {
	MinSharpe      float64
	MaxDrawdown    float64
	MinBars        int
	InitialCapital float64
	FeePct         float64
}

// DefaultConfig returns the production gate: annualized Sharpe above 1.2,
// max drawdown below 5%, at least 100 bars of history.
func DefaultConfig() Config {
	return Config{
		MinSharpe:      1.2,
		MaxDrawdown:    0.05,
		MinBars:        100,
		InitialCapital: 10_000,
		FeePct:         0.001,
	}
}

// Validator runs candidate strategies through the historical replay.
type Validator struct {
	cfg Config
	log zerolog.Logger
}

func NewValidator(cfg Config, log zerolog.Logger) *Validator {
	return &Validator{cfg: cfg, log: log.With().Str("component", "backtest").Logger()}
}

// Run replays the strategy over the series and returns the performance
// result. A series shorter than MinBars yields ErrInsufficientData along
// with a result flagged Insufficient.
func (v *Validator) Run(ctx context.Context, strat strategy.Strategy, symbol string, bars []domain.Bar, risk domain.RiskSnapshot) (*domain.BacktestResult, error) {
	if len(bars) < v.cfg.MinBars {
		v.log.Warn().
			Str("strategy", strat.ID()).
			Int("bars", len(bars)).
			Int("min_bars", v.cfg.MinBars).
			Msg("series too short to validate")
		return &domain.BacktestResult{Insufficient: true, FinalEquity: v.cfg.InitialCapital}, ErrInsufficientData
	}

	st, err := replay(ctx, strat, symbol, bars, risk, v.cfg.InitialCapital, v.cfg.FeePct)
	if err != nil {
		return nil, err
	}

	res := computeMetrics(st, bars, v.cfg.InitialCapital)
	v.log.Info().
		Str("strategy", strat.ID()).
		Float64("sharpe", res.SharpeRatio).
		Float64("max_drawdown", res.MaxDrawdown).
		Float64("total_return", res.TotalReturn).
		Int("trades", res.TradeCount).
		Msg("backtest complete")
	return res, nil
}

// PassesGate reports whether the result clears the deployment thresholds.
// An insufficient result never passes.
func (v *Validator) PassesGate(res *domain.BacktestResult) bool {
	if res == nil || res.Insufficient {
		return false
	}
	return res.SharpeRatio > v.cfg.MinSharpe && res.MaxDrawdown < v.cfg.MaxDrawdown
}
