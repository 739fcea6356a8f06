package domain

// StrategyConfig is the declarative definition of a strategy candidate.
// Candidates arrive as a JSON document that unmarshals into this struct;
// the strategy factory validates required parameters per type.
type StrategyConfig struct {
	StrategyType string `json:"strategy_type"` // "SMA_CROSS" | "RSI_REVERSAL"

	// SMA_CROSS parameters
	FastPeriod *int `json:"fast_period,omitempty"`
	SlowPeriod *int `json:"slow_period,omitempty"`

	// RSI parameters (filter for SMA_CROSS, primary for RSI_REVERSAL)
	RSIPeriod     *int     `json:"rsi_period,omitempty"`
	RSIOversold   *float64 `json:"rsi_oversold,omitempty"`
	RSIOverbought *float64 `json:"rsi_overbought,omitempty"`

	// Protective exits, as fractions of entry price
	StopLossPct   *float64 `json:"stop_loss_pct,omitempty"`
	TakeProfitPct *float64 `json:"take_profit_pct,omitempty"`

	// Sizing
	PositionFraction *float64 `json:"position_fraction,omitempty"` // of available cash, default 0.95
	MinConfidence    *float64 `json:"min_confidence,omitempty"`    // decision gate, default 0.6
}

// Strategy type constants
const (
	StrategyTypeSMACross    = "SMA_CROSS"
	StrategyTypeRSIReversal = "RSI_REVERSAL"
)

// HasStopLoss reports whether the definition carries a stop-loss mechanism.
func (c StrategyConfig) HasStopLoss() bool {
	return c.StopLossPct != nil && *c.StopLossPct > 0
}
