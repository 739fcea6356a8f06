package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_EmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Guardrail.KillSwitchThreshold != 0.03 {
		t.Errorf("KillSwitchThreshold = %f, want 0.03", cfg.Guardrail.KillSwitchThreshold)
	}
	if cfg.Guardrail.StabilityLock.Std() != 12*time.Hour {
		t.Errorf("StabilityLock = %s, want 12h", cfg.Guardrail.StabilityLock)
	}
	if cfg.Memory.EvaluationWindow.Std() != 2*time.Hour {
		t.Errorf("EvaluationWindow = %s, want 2h", cfg.Memory.EvaluationWindow)
	}
	if cfg.Backtest.MinSharpe != 1.2 || cfg.Backtest.MaxDrawdown != 0.05 {
		t.Errorf("Backtest gate = %+v, want 1.2/0.05", cfg.Backtest)
	}
	if cfg.Stress.ShockPct != -0.20 {
		t.Errorf("ShockPct = %f, want -0.20", cfg.Stress.ShockPct)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Defaults must validate: %v", err)
	}
}

func TestLoad_OverridesKeepUnsetDefaults(t *testing.T) {
	path := writeConfig(t, `
symbol: ETH_USDT
guardrail:
  kill_switch_threshold: 0.05
  kill_switch_window: 1h
  stability_lock: 6h
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Symbol != "ETH_USDT" {
		t.Errorf("Symbol = %s", cfg.Symbol)
	}
	if cfg.Guardrail.KillSwitchThreshold != 0.05 {
		t.Errorf("KillSwitchThreshold = %f, want override", cfg.Guardrail.KillSwitchThreshold)
	}
	if cfg.Guardrail.StabilityLock.Std() != 6*time.Hour {
		t.Errorf("StabilityLock = %s, want 6h", cfg.Guardrail.StabilityLock)
	}
	// Untouched sections keep their defaults.
	if cfg.Backtest.MinSharpe != 1.2 {
		t.Errorf("MinSharpe = %f, want default", cfg.Backtest.MinSharpe)
	}
}

func TestLoad_InvalidConfigRejected(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"positive shock", "stress:\n  shock_pct: 0.2\n"},
		{"unknown backend", "storage:\n  backend: sqlite\n"},
		{"postgres without dsn", "storage:\n  backend: postgres\n"},
		{"zero evaluation window", "memory:\n  evaluation_window: 0s\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tc.body)); err == nil {
				t.Error("Load should reject invalid config")
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Error("Load should fail on missing file")
	}
}
