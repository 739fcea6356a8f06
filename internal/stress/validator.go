// Package stress probes candidates with a synthetic shock that realized
// history under-represents. The backtest only replays what actually
// happened; this validator asks what the candidate does when the market
// gaps hard against an open position.
package stress

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"evolab/internal/domain"
	"evolab/internal/strategy"
)

// Violation identifies a failed check in the stress report.
type Violation string

const (
	// ViolationNoStopLoss means the candidate defines no stop-loss
	// mechanism at all.
	ViolationNoStopLoss Violation = "NO_STOP_LOSS"

	// ViolationStopNotTriggered means the stop exists but sits below the
	// shock trough, so it never fires during the scenario.
	ViolationStopNotTriggered Violation = "STOP_NOT_TRIGGERED"

	// ViolationDrawdownExceeded means the simulated loss through the
	// shock breaches the drawdown ceiling.
	ViolationDrawdownExceeded Violation = "DRAWDOWN_EXCEEDED"
)

// Report is the structured verdict handed back to the caller so rejection
// reasons can be logged exactly.
type Report struct {
	Approved      bool
	Violations    []Violation
	ShockPct      float64
	SimulatedLoss float64
	StopPrice     float64 // 0 when no stop is defined
	EntryPrice    float64
}

// Config holds the shock scenario parameters.
type Config struct {
	ShockPct    float64
	MaxDrawdown float64
}

// DefaultConfig returns the production scenario: an instantaneous 20%
// crash, with a 15% drawdown ceiling.
func DefaultConfig() Config {
	return Config{ShockPct: -0.20, MaxDrawdown: 0.15}
}

// Validator replays candidates against the shock scenario.
type Validator struct {
	cfg Config
	log zerolog.Logger
}

func NewValidator(cfg Config, log zerolog.Logger) *Validator {
	return &Validator{cfg: cfg, log: log.With().Str("component", "stress").Logger()}
}

// Run forces the candidate into a position at the last known price, gaps
// the market down by the configured shock, and checks that the candidate's
// protective logic contains the loss. The market context supplies the
// price level; a nil or empty context falls back to a nominal price.
func (v *Validator) Run(ctx context.Context, strat strategy.Strategy, market *domain.MarketContext) (*Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entry := 100.0
	if market != nil {
		if last := market.LastClose(); last > 0 {
			entry = last
		}
	}

	rep := &Report{
		ShockPct:   v.cfg.ShockPct,
		EntryPrice: entry,
	}

	cfg := strat.Config()
	trough := entry * (1 + v.cfg.ShockPct)

	if !cfg.HasStopLoss() {
		rep.Violations = append(rep.Violations, ViolationNoStopLoss)
		rep.SimulatedLoss = -v.cfg.ShockPct
	} else {
		rep.StopPrice = entry * (1 - *cfg.StopLossPct)
		if rep.StopPrice < trough {
			// The gap never reaches the stop, so the position rides
			// the full shock unprotected.
			rep.Violations = append(rep.Violations, ViolationStopNotTriggered)
			rep.SimulatedLoss = -v.cfg.ShockPct
		} else {
			rep.SimulatedLoss = (entry - rep.StopPrice) / entry
		}
	}

	if rep.SimulatedLoss >= v.cfg.MaxDrawdown {
		rep.Violations = append(rep.Violations, ViolationDrawdownExceeded)
	}

	rep.Approved = len(rep.Violations) == 0

	evt := v.log.Info()
	if !rep.Approved {
		evt = v.log.Warn()
	}
	evt.
		Str("strategy", strat.ID()).
		Float64("shock_pct", v.cfg.ShockPct).
		Float64("simulated_loss", rep.SimulatedLoss).
		Bool("approved", rep.Approved).
		Str("violations", fmt.Sprintf("%v", rep.Violations)).
		Msg("stress scenario complete")

	return rep, nil
}
