// Package config loads the daemon configuration from YAML with
// production defaults for every field.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full daemon configuration.
type Config struct {
	// Trading surface
	Symbol      string   `yaml:"symbol"`
	BarInterval Duration `yaml:"bar_interval"`
	BarLimit    int      `yaml:"bar_limit"`

	// Loop cadence
	SuggestionInterval     Duration `yaml:"suggestion_interval"`
	EvolutionCheckInterval Duration `yaml:"evolution_check_interval"`
	EquitySampleInterval   Duration `yaml:"equity_sample_interval"`

	Guardrail Guardrail `yaml:"guardrail"`
	Backtest  Backtest  `yaml:"backtest"`
	Stress    Stress    `yaml:"stress"`
	Memory    Memory    `yaml:"memory"`
	Storage   Storage   `yaml:"storage"`

	// Observability
	MetricsAddr string `yaml:"metrics_addr"`
	LogLevel    string `yaml:"log_level"`
}

// Guardrail holds the safety thresholds.
type Guardrail struct {
	KillSwitchThreshold float64  `yaml:"kill_switch_threshold"`
	KillSwitchWindow    Duration `yaml:"kill_switch_window"`
	StabilityLock       Duration `yaml:"stability_lock"`
}

// Backtest holds the backtest gate parameters.
type Backtest struct {
	MinSharpe      float64 `yaml:"min_sharpe"`
	MaxDrawdown    float64 `yaml:"max_drawdown"`
	MinBars        int     `yaml:"min_bars"`
	InitialCapital float64 `yaml:"initial_capital"`
	FeePct         float64 `yaml:"fee_pct"`
}

// Stress holds the shock scenario parameters.
type Stress struct {
	ShockPct    float64 `yaml:"shock_pct"`
	MaxDrawdown float64 `yaml:"max_drawdown"`
}

// Memory holds the evaluation and blacklist policy.
type Memory struct {
	EvaluationWindow Duration `yaml:"evaluation_window"`
	BlacklistTTL     Duration `yaml:"blacklist_ttl"`
}

// Storage selects and configures the persistence backends.
type Storage struct {
	// Backend is "memory" or "postgres".
	Backend     string `yaml:"backend"`
	PostgresDSN string `yaml:"postgres_dsn"`

	// ClickhouseDSN enables the ClickHouse bar cache when set.
	ClickhouseDSN string `yaml:"clickhouse_dsn"`
}

// Default returns the production defaults.
func Default() Config {
	return Config{
		Symbol:                 "BTC_USDT",
		BarInterval:            Duration(15 * time.Minute),
		BarLimit:               500,
		SuggestionInterval:     Duration(15 * time.Minute),
		EvolutionCheckInterval: Duration(time.Minute),
		EquitySampleInterval:   Duration(15 * time.Second),
		Guardrail: Guardrail{
			KillSwitchThreshold: 0.03,
			KillSwitchWindow:    Duration(time.Hour),
			StabilityLock:       Duration(12 * time.Hour),
		},
		Backtest: Backtest{
			MinSharpe:      1.2,
			MaxDrawdown:    0.05,
			MinBars:        100,
			InitialCapital: 10_000,
			FeePct:         0.001,
		},
		Stress: Stress{
			ShockPct:    -0.20,
			MaxDrawdown: 0.15,
		},
		Memory: Memory{
			EvaluationWindow: Duration(2 * time.Hour),
		},
		Storage: Storage{
			Backend: "memory",
		},
		MetricsAddr: ":9090",
		LogLevel:    "info",
	}
}

// Load reads a YAML file over the defaults. An empty path returns the
// defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations that would disable a safety predicate.
func (c Config) Validate() error {
	if c.Symbol == "" {
		return fmt.Errorf("symbol must be set")
	}
	if c.Guardrail.KillSwitchThreshold <= 0 {
		return fmt.Errorf("guardrail.kill_switch_threshold must be positive")
	}
	if c.Guardrail.KillSwitchWindow <= 0 {
		return fmt.Errorf("guardrail.kill_switch_window must be positive")
	}
	if c.Guardrail.StabilityLock < 0 {
		return fmt.Errorf("guardrail.stability_lock must not be negative")
	}
	if c.Backtest.MinBars <= 0 {
		return fmt.Errorf("backtest.min_bars must be positive")
	}
	if c.Backtest.InitialCapital <= 0 {
		return fmt.Errorf("backtest.initial_capital must be positive")
	}
	if c.Stress.ShockPct >= 0 {
		return fmt.Errorf("stress.shock_pct must be negative")
	}
	if c.Stress.MaxDrawdown <= 0 {
		return fmt.Errorf("stress.max_drawdown must be positive")
	}
	if c.Memory.EvaluationWindow <= 0 {
		return fmt.Errorf("memory.evaluation_window must be positive")
	}
	switch c.Storage.Backend {
	case "memory", "postgres":
	default:
		return fmt.Errorf("storage.backend must be memory or postgres, got %q", c.Storage.Backend)
	}
	if c.Storage.Backend == "postgres" && c.Storage.PostgresDSN == "" {
		return fmt.Errorf("storage.postgres_dsn required for postgres backend")
	}
	return nil
}
