package strategy

import (
	"context"
	"fmt"
	"math"

	"evolab/internal/domain"
)

// SMACrossStrategy trades moving-average crossovers: BUY on a golden cross
// (fast crossing above slow), SELL on a death cross. An optional RSI filter
// suppresses entries into overbought conditions.
type SMACrossStrategy struct {
	cfg        domain.StrategyConfig
	fastPeriod int
	slowPeriod int
}

// NewSMACrossStrategy creates an SMACrossStrategy.
func NewSMACrossStrategy(cfg domain.StrategyConfig, fastPeriod, slowPeriod int) *SMACrossStrategy {
	return &SMACrossStrategy{
		cfg:        cfg,
		fastPeriod: fastPeriod,
		slowPeriod: slowPeriod,
	}
}

// ID returns the strategy identifier including parameters.
func (s *SMACrossStrategy) ID() string {
	return fmt.Sprintf("SMA_CROSS_fast%d_slow%d", s.fastPeriod, s.slowPeriod)
}

// Config returns the declarative definition.
func (s *SMACrossStrategy) Config() domain.StrategyConfig {
	return s.cfg
}

// Decide evaluates the crossover on the latest bar.
func (s *SMACrossStrategy) Decide(_ context.Context, market *domain.MarketContext, risk domain.RiskSnapshot) (*domain.Decision, error) {
	hold := &domain.Decision{Action: domain.ActionHold, Confidence: 0}

	closes := closePrices(market.Bars)
	if len(closes) < s.slowPeriod+1 {
		return hold, nil
	}

	fastNow := sma(closes, s.fastPeriod)
	slowNow := sma(closes, s.slowPeriod)
	fastPrev := sma(closes[:len(closes)-1], s.fastPeriod)
	slowPrev := sma(closes[:len(closes)-1], s.slowPeriod)
	if slowNow == 0 || slowPrev == 0 {
		return hold, nil
	}

	goldenCross := fastPrev <= slowPrev && fastNow > slowNow
	deathCross := fastPrev >= slowPrev && fastNow < slowNow
	if !goldenCross && !deathCross {
		return hold, nil
	}

	// Spread between the averages drives confidence.
	spread := math.Abs(fastNow-slowNow) / slowNow
	confidence := math.Min(0.6+spread*40, 1.0)

	if goldenCross {
		if s.cfg.RSIPeriod != nil && s.cfg.RSIOverbought != nil {
			if rsi(closes, *s.cfg.RSIPeriod) >= *s.cfg.RSIOverbought {
				return &domain.Decision{
					Action:     domain.ActionHold,
					Confidence: 0,
					Reason:     "golden cross suppressed by overbought RSI",
				}, nil
			}
		}
		if risk.Level == domain.RiskLevelHigh {
			confidence *= 0.8
		}
		entry := market.LastClose()
		stop, take := protectivePrices(s.cfg, entry)
		return &domain.Decision{
			Action:     domain.ActionBuy,
			Confidence: confidence,
			StopLoss:   stop,
			TakeProfit: take,
			Reason:     fmt.Sprintf("golden cross fast=%.2f slow=%.2f", fastNow, slowNow),
		}, nil
	}

	return &domain.Decision{
		Action:     domain.ActionSell,
		Confidence: confidence,
		Reason:     fmt.Sprintf("death cross fast=%.2f slow=%.2f", fastNow, slowNow),
	}, nil
}

// Ensure SMACrossStrategy implements Strategy
var _ Strategy = (*SMACrossStrategy)(nil)
