package strategy

import (
	"errors"
	"testing"

	"evolab/internal/domain"
)

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }

func TestFromConfig_SMACross(t *testing.T) {
	cfg := domain.StrategyConfig{
		StrategyType: domain.StrategyTypeSMACross,
		FastPeriod:   intPtr(5),
		SlowPeriod:   intPtr(20),
	}

	s, err := FromConfig(cfg)
	if err != nil {
		t.Fatalf("FromConfig failed: %v", err)
	}
	if s.ID() != "SMA_CROSS_fast5_slow20" {
		t.Errorf("ID = %s", s.ID())
	}
}

func TestFromConfig_RSIReversal(t *testing.T) {
	cfg := domain.StrategyConfig{
		StrategyType:  domain.StrategyTypeRSIReversal,
		RSIPeriod:     intPtr(14),
		RSIOversold:   floatPtr(25),
		RSIOverbought: floatPtr(75),
	}

	s, err := FromConfig(cfg)
	if err != nil {
		t.Fatalf("FromConfig failed: %v", err)
	}
	if s.ID() != "RSI_REVERSAL_p14_os25_ob75" {
		t.Errorf("ID = %s", s.ID())
	}
}

func TestFromConfig_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		cfg     domain.StrategyConfig
		wantErr error
	}{
		{"unknown type", domain.StrategyConfig{StrategyType: "MARTINGALE"}, ErrUnknownStrategyType},
		{"missing fast", domain.StrategyConfig{StrategyType: domain.StrategyTypeSMACross, SlowPeriod: intPtr(20)}, ErrMissingFastPeriod},
		{"missing slow", domain.StrategyConfig{StrategyType: domain.StrategyTypeSMACross, FastPeriod: intPtr(5)}, ErrMissingSlowPeriod},
		{"fast >= slow", domain.StrategyConfig{StrategyType: domain.StrategyTypeSMACross, FastPeriod: intPtr(20), SlowPeriod: intPtr(5)}, ErrInvalidPeriodOrder},
		{"missing rsi period", domain.StrategyConfig{StrategyType: domain.StrategyTypeRSIReversal, RSIOversold: floatPtr(25), RSIOverbought: floatPtr(75)}, ErrMissingRSIPeriod},
		{"inverted bounds", domain.StrategyConfig{StrategyType: domain.StrategyTypeRSIReversal, RSIPeriod: intPtr(14), RSIOversold: floatPtr(75), RSIOverbought: floatPtr(25)}, ErrInvalidRSIBounds},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromConfig(tt.cfg)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("FromConfig error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
