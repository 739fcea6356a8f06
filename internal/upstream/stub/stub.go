// Package stub provides deterministic in-process collaborators for the
// daemon's default wiring and the one-shot CLI. They stand in for the
// real reasoning and exchange endpoints during local runs.
package stub

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sync"
	"time"

	"evolab/internal/domain"
	"evolab/internal/upstream"
)

// SuggestionSource emits a rotating set of plausible strategy proposals.
type SuggestionSource struct {
	mu   sync.Mutex
	tick int
}

func NewSuggestionSource() *SuggestionSource {
	return &SuggestionSource{}
}

// NextSuggestion rotates through a fixed proposal set so repeated cycles
// exercise both strategy families.
func (s *SuggestionSource) NextSuggestion(_ context.Context, market *domain.MarketContext, risk domain.RiskSnapshot) (*domain.Suggestion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	regime := "ranging"
	if market != nil && len(market.Bars) >= 2 {
		first := market.Bars[0].Close
		last := market.LastClose()
		if first > 0 && math.Abs(last/first-1) > 0.02 {
			regime = "trending"
		}
	}

	proposals := []domain.StrategyConfig{
		{
			StrategyType: domain.StrategyTypeSMACross,
			FastPeriod:   intPtr(5 + s.tick%3),
			SlowPeriod:   intPtr(20),
			StopLossPct:  floatPtr(0.02),
		},
		{
			StrategyType:  domain.StrategyTypeRSIReversal,
			RSIPeriod:     intPtr(14),
			RSIOversold:   floatPtr(30),
			RSIOverbought: floatPtr(70),
			StopLossPct:   floatPtr(0.03),
		},
	}
	cfg := proposals[s.tick%len(proposals)]
	s.tick++

	changes, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", upstream.ErrUnavailable, err)
	}

	confidence := 0.7
	if risk.Level == domain.RiskLevelHigh {
		confidence = 0.55
	}

	return &domain.Suggestion{
		Reason:          fmt.Sprintf("%s regime favors %s", regime, cfg.StrategyType),
		ProposedChanges: string(changes),
		Confidence:      confidence,
		Regime:          regime,
	}, nil
}

// BarSource synthesizes a smooth oscillating price series. The same
// symbol and limit always yield the same bars for a fixed anchor time.
type BarSource struct {
	Interval time.Duration
	now      func() time.Time
}

func NewBarSource(interval time.Duration) *BarSource {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	return &BarSource{Interval: interval, now: time.Now}
}

// RecentBars returns limit synthetic bars ending at the present.
func (s *BarSource) RecentBars(_ context.Context, symbol string, limit int) ([]domain.Bar, error) {
	if limit <= 0 {
		return nil, nil
	}

	end := s.now().Truncate(s.Interval)
	bars := make([]domain.Bar, limit)
	base := 100.0
	for i := 0; i < limit; i++ {
		ts := end.Add(-time.Duration(limit-1-i) * s.Interval)
		phase := float64(ts.UnixMilli()/s.Interval.Milliseconds()) * 0.35
		price := base * (1 + 0.015*math.Sin(phase) + 0.004*math.Sin(phase*3.7))
		bars[i] = domain.Bar{
			TimestampMs: ts.UnixMilli(),
			Open:        price * 0.999,
			High:        price * 1.003,
			Low:         price * 0.997,
			Close:       price,
			Volume:      1000 + 100*math.Abs(math.Sin(phase*2)),
		}
	}
	_ = symbol
	return bars, nil
}

// EquitySource serves a fixed equity value that callers may adjust.
type EquitySource struct {
	mu     sync.RWMutex
	equity float64
}

func NewEquitySource(initial float64) *EquitySource {
	return &EquitySource{equity: initial}
}

func (s *EquitySource) CurrentEquity(_ context.Context) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.equity, nil
}

// SetEquity updates the reported value.
func (s *EquitySource) SetEquity(v float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.equity = v
}

// Compile-time interface checks.
var (
	_ upstream.SuggestionSource = (*SuggestionSource)(nil)
	_ upstream.BarSource        = (*BarSource)(nil)
	_ upstream.EquitySource     = (*EquitySource)(nil)
)

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }
