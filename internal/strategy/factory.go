package strategy

import (
	"errors"

	"evolab/internal/domain"
)

// Factory errors
var (
	ErrUnknownStrategyType  = errors.New("unknown strategy type")
	ErrMissingFastPeriod    = errors.New("SMA_CROSS requires fast_period")
	ErrMissingSlowPeriod    = errors.New("SMA_CROSS requires slow_period")
	ErrInvalidPeriodOrder   = errors.New("SMA_CROSS requires fast_period < slow_period")
	ErrMissingRSIPeriod     = errors.New("RSI_REVERSAL requires rsi_period")
	ErrMissingRSIOversold   = errors.New("RSI_REVERSAL requires rsi_oversold")
	ErrMissingRSIOverbought = errors.New("RSI_REVERSAL requires rsi_overbought")
	ErrInvalidRSIBounds     = errors.New("RSI_REVERSAL requires rsi_oversold < rsi_overbought")
)

// FromConfig creates a Strategy from domain.StrategyConfig.
// Validates required parameters per strategy type.
// Returns clear errors for missing/invalid params.
func FromConfig(cfg domain.StrategyConfig) (Strategy, error) {
	switch cfg.StrategyType {
	case domain.StrategyTypeSMACross:
		return fromSMACrossConfig(cfg)
	case domain.StrategyTypeRSIReversal:
		return fromRSIReversalConfig(cfg)
	default:
		return nil, ErrUnknownStrategyType
	}
}

// fromSMACrossConfig creates SMACrossStrategy from config.
func fromSMACrossConfig(cfg domain.StrategyConfig) (*SMACrossStrategy, error) {
	if cfg.FastPeriod == nil {
		return nil, ErrMissingFastPeriod
	}
	if cfg.SlowPeriod == nil {
		return nil, ErrMissingSlowPeriod
	}
	if *cfg.FastPeriod <= 0 || *cfg.SlowPeriod <= 0 || *cfg.FastPeriod >= *cfg.SlowPeriod {
		return nil, ErrInvalidPeriodOrder
	}

	return NewSMACrossStrategy(cfg, *cfg.FastPeriod, *cfg.SlowPeriod), nil
}

// fromRSIReversalConfig creates RSIReversalStrategy from config.
func fromRSIReversalConfig(cfg domain.StrategyConfig) (*RSIReversalStrategy, error) {
	if cfg.RSIPeriod == nil {
		return nil, ErrMissingRSIPeriod
	}
	if cfg.RSIOversold == nil {
		return nil, ErrMissingRSIOversold
	}
	if cfg.RSIOverbought == nil {
		return nil, ErrMissingRSIOverbought
	}
	if *cfg.RSIPeriod <= 0 {
		return nil, ErrMissingRSIPeriod
	}
	if *cfg.RSIOversold >= *cfg.RSIOverbought {
		return nil, ErrInvalidRSIBounds
	}

	return NewRSIReversalStrategy(cfg, *cfg.RSIPeriod, *cfg.RSIOversold, *cfg.RSIOverbought), nil
}
