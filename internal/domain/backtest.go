package domain

// BacktestResult holds risk-adjusted performance metrics for a candidate
// replay. Derived, non-persisted, consumed once by the gating decision.
type BacktestResult struct {
	SharpeRatio  float64 // annualized from the series' bar interval
	MaxDrawdown  float64 // largest peak-to-trough fraction, positive
	TotalReturn  float64 // (final − initial) / initial
	WinRate      float64 // winning round trips / round trips
	TradeCount   int     // completed round trips
	FinalEquity  float64
	Insufficient bool // true if the series had too few bars to judge
}
