package domain

// Action is a trading decision emitted by a strategy.
type Action string

// Action constants.
const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionHold Action = "HOLD"
)

// Bar represents a single OHLCV candle.
type Bar struct {
	TimestampMs int64 // bar open time, Unix milliseconds
	Open        float64
	High        float64
	Low         float64
	Close       float64
	Volume      float64
}

// MarketContext is the input handed to a strategy on each decision tick.
// Bars are ordered by timestamp ASC; the last bar is the current one.
type MarketContext struct {
	Symbol string
	Bars   []Bar
}

// LastClose returns the close of the most recent bar, or 0 if empty.
func (m *MarketContext) LastClose() float64 {
	if len(m.Bars) == 0 {
		return 0
	}
	return m.Bars[len(m.Bars)-1].Close
}

// Decision is the produced contract between the active strategy and the
// live trading tick: action, confidence and optional protective prices.
type Decision struct {
	Action     Action
	Confidence float64  // [0, 1]
	StopLoss   *float64 // absolute price, nil if the strategy sets none
	TakeProfit *float64 // absolute price, nil if the strategy sets none
	Reason     string
}

// Valid reports whether the decision satisfies the produced contract.
func (d *Decision) Valid() bool {
	if d == nil {
		return false
	}
	switch d.Action {
	case ActionBuy, ActionSell, ActionHold:
	default:
		return false
	}
	return d.Confidence >= 0 && d.Confidence <= 1
}
