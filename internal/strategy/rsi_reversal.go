package strategy

import (
	"context"
	"fmt"

	"evolab/internal/domain"
)

// RSIReversalStrategy trades mean reversion: BUY when RSI falls below the
// oversold line, SELL when it rises above the overbought line.
type RSIReversalStrategy struct {
	cfg        domain.StrategyConfig
	period     int
	oversold   float64
	overbought float64
}

// NewRSIReversalStrategy creates an RSIReversalStrategy.
func NewRSIReversalStrategy(cfg domain.StrategyConfig, period int, oversold, overbought float64) *RSIReversalStrategy {
	return &RSIReversalStrategy{
		cfg:        cfg,
		period:     period,
		oversold:   oversold,
		overbought: overbought,
	}
}

// ID returns the strategy identifier including parameters.
func (s *RSIReversalStrategy) ID() string {
	return fmt.Sprintf("RSI_REVERSAL_p%d_os%.0f_ob%.0f", s.period, s.oversold, s.overbought)
}

// Config returns the declarative definition.
func (s *RSIReversalStrategy) Config() domain.StrategyConfig {
	return s.cfg
}

// Decide evaluates RSI on the latest bar.
func (s *RSIReversalStrategy) Decide(_ context.Context, market *domain.MarketContext, risk domain.RiskSnapshot) (*domain.Decision, error) {
	hold := &domain.Decision{Action: domain.ActionHold, Confidence: 0}

	closes := closePrices(market.Bars)
	if len(closes) < s.period+1 {
		return hold, nil
	}

	value := rsi(closes, s.period)

	switch {
	case value <= s.oversold:
		// Deeper oversold reads give higher confidence.
		confidence := (s.oversold - value) / s.oversold
		if confidence > 1 {
			confidence = 1
		}
		if confidence < 0.6 {
			confidence = 0.6
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
			Reason:     fmt.Sprintf("RSI %.1f below oversold %.1f", value, s.oversold),
		}, nil

	case value >= s.overbought:
		confidence := (value - s.overbought) / (100 - s.overbought)
		if confidence > 1 {
			confidence = 1
		}
		if confidence < 0.6 {
			confidence = 0.6
		}
		return &domain.Decision{
			Action:     domain.ActionSell,
			Confidence: confidence,
			Reason:     fmt.Sprintf("RSI %.1f above overbought %.1f", value, s.overbought),
		}, nil
	}

	return hold, nil
}

// Ensure RSIReversalStrategy implements Strategy
var _ Strategy = (*RSIReversalStrategy)(nil)
