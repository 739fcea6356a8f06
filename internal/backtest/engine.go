package backtest

import (
	"context"
	"fmt"

	"evolab/internal/domain"
	"evolab/internal/strategy"
)

// warmupBars is the number of bars consumed before the first decision, so
// indicators have history to work with.
const warmupBars = 20

// EquityPoint is one sample of the simulated equity curve.
type EquityPoint struct {
	TimestampMs int64
	Equity      float64
}

// trade is a completed round trip in the simulation.
type trade struct {
	entryValue float64
	exitValue  float64
}

// replayState tracks the simulated account across bars.
type replayState struct {
	cash       float64
	units      float64
	entryValue float64
	stopPrice  float64 // 0 when unset
	takePrice  float64 // 0 when unset
	curve      []EquityPoint
	trades     []trade
}

// replay runs the strategy bar by bar over the series, simulating entries
// and exits at signaled points, and returns the equity curve plus the
// completed trades. The risk snapshot scales position sizing the same way
// the live tick would.
func replay(ctx context.Context, strat strategy.Strategy, symbol string, bars []domain.Bar, risk domain.RiskSnapshot, initialCapital, feePct float64) (*replayState, error) {
	st := &replayState{cash: initialCapital}
	cfg := strat.Config()
	posFraction := strategy.PositionFraction(cfg)
	minConfidence := strategy.MinConfidence(cfg)

	for i := warmupBars; i < len(bars); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		bar := bars[i]

		// Protective exits first: intra-bar stop/take fills.
		if st.units > 0 {
			if st.stopPrice > 0 && bar.Low <= st.stopPrice {
				st.exit(st.stopPrice, feePct)
			} else if st.takePrice > 0 && bar.High >= st.takePrice {
				st.exit(st.takePrice, feePct)
			}
		}

		market := &domain.MarketContext{Symbol: symbol, Bars: bars[:i+1]}
		decision, err := strat.Decide(ctx, market, risk)
		if err != nil {
			return nil, fmt.Errorf("decision at bar %d: %w", i, err)
		}

		if decision.Confidence >= minConfidence {
			switch decision.Action {
			case domain.ActionBuy:
				if st.units == 0 {
					st.enter(bar.Close, posFraction*risk.PositionScale(), feePct, decision)
				}
			case domain.ActionSell:
				if st.units > 0 {
					st.exit(bar.Close, feePct)
				}
			}
		}

		st.curve = append(st.curve, EquityPoint{
			TimestampMs: bar.TimestampMs,
			Equity:      st.cash + st.units*bar.Close,
		})
	}

	return st, nil
}

// enter opens a long position with the given fraction of cash.
func (st *replayState) enter(price, fraction, feePct float64, decision *domain.Decision) {
	if fraction <= 0 || price <= 0 {
		return
	}
	if fraction > 1 {
		fraction = 1
	}

	spend := st.cash * fraction
	st.units = spend * (1 - feePct) / price
	st.cash -= spend
	st.entryValue = spend

	st.stopPrice = 0
	st.takePrice = 0
	if decision.StopLoss != nil {
		st.stopPrice = *decision.StopLoss
	}
	if decision.TakeProfit != nil {
		st.takePrice = *decision.TakeProfit
	}
}

// exit closes the open position at the given price.
func (st *replayState) exit(price, feePct float64) {
	proceeds := st.units * price * (1 - feePct)
	st.cash += proceeds
	st.trades = append(st.trades, trade{entryValue: st.entryValue, exitValue: proceeds})
	st.units = 0
	st.entryValue = 0
	st.stopPrice = 0
	st.takePrice = 0
}
