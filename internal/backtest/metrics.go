package backtest

import (
	"math"
	"sort"

	"evolab/internal/domain"
)

const (
	tradingDaysPerYear = 252
	millisPerDay       = 24 * 60 * 60 * 1000
)

// computeMetrics derives the result from a finished replay. Sharpe is
// annualized by the bar frequency inferred from the series timestamps.
func computeMetrics(st *replayState, bars []domain.Bar, initialCapital float64) *domain.BacktestResult {
	res := &domain.BacktestResult{
		FinalEquity: initialCapital,
		MaxDrawdown: 0,
	}
	if len(st.curve) == 0 {
		return res
	}

	final := st.curve[len(st.curve)-1].Equity
	res.FinalEquity = final
	res.TotalReturn = final/initialCapital - 1

	res.MaxDrawdown = maxDrawdown(st.curve)
	res.SharpeRatio = sharpeRatio(st.curve, periodsPerDay(bars))

	res.TradeCount = len(st.trades)
	wins := 0
	for _, tr := range st.trades {
		if tr.exitValue > tr.entryValue {
			wins++
		}
	}
	if res.TradeCount > 0 {
		res.WinRate = float64(wins) / float64(res.TradeCount)
	}
	return res
}

// maxDrawdown is the largest peak-to-trough decline over the equity curve,
// as a fraction of the peak.
func maxDrawdown(curve []EquityPoint) float64 {
	peak := curve[0].Equity
	worst := 0.0
	for _, p := range curve {
		if p.Equity > peak {
			peak = p.Equity
		}
		if peak > 0 {
			if dd := (peak - p.Equity) / peak; dd > worst {
				worst = dd
			}
		}
	}
	return worst
}

// sharpeRatio computes the annualized Sharpe ratio of per-bar returns,
// assuming a zero risk-free rate.
func sharpeRatio(curve []EquityPoint, periodsPerDay float64) float64 {
	if len(curve) < 2 {
		return 0
	}

	returns := make([]float64, 0, len(curve)-1)
	for i := 1; i < len(curve); i++ {
		prev := curve[i-1].Equity
		if prev <= 0 {
			continue
		}
		returns = append(returns, curve[i].Equity/prev-1)
	}
	if len(returns) < 2 {
		return 0
	}

	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	variance := 0.0
	for _, r := range returns {
		d := r - mean
		variance += d * d
	}
	variance /= float64(len(returns) - 1)
	if variance == 0 {
		return 0
	}

	return mean / math.Sqrt(variance) * math.Sqrt(tradingDaysPerYear*periodsPerDay)
}

// periodsPerDay infers the bar frequency from the median gap between
// successive timestamps. Falls back to 15-minute bars when the series
// carries no usable timestamps.
func periodsPerDay(bars []domain.Bar) float64 {
	const fallback = 96 // 15m bars

	if len(bars) < 2 {
		return fallback
	}

	gaps := make([]int64, 0, len(bars)-1)
	for i := 1; i < len(bars); i++ {
		if g := bars[i].TimestampMs - bars[i-1].TimestampMs; g > 0 {
			gaps = append(gaps, g)
		}
	}
	if len(gaps) == 0 {
		return fallback
	}

	sort.Slice(gaps, func(i, j int) bool { return gaps[i] < gaps[j] })
	median := gaps[len(gaps)/2]
	return float64(millisPerDay) / float64(median)
}
