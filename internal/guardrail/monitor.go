// Package guardrail implements the safety authority of the evolution
// pipeline: the 1-hour equity kill switch and the post-deployment
// stability lock. It is the single component allowed to answer "may
// trading proceed" and "may evolution proceed".
package guardrail

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Defaults from the original system configuration.
const (
	DefaultKillSwitchThreshold = 0.03
	DefaultStabilityLock       = 12 * time.Hour
	DefaultKillSwitchWindow    = time.Hour

	// retentionMargin keeps samples slightly past the window so the
	// earliest-within-window sample is never pruned prematurely.
	retentionMargin = 5 * time.Minute
)

// EquitySample is a timestamped account-equity snapshot.
type EquitySample struct {
	At     time.Time
	Equity float64
}

// Status is a point-in-time snapshot of the monitor, for telemetry.
type Status struct {
	KillSwitchActive       bool
	EvolutionAllowed       bool
	CurrentEquity          float64
	SampleCount            int
	LastDeployment         time.Time
	StabilityLockRemaining time.Duration
}

// Config holds monitor thresholds.
type Config struct {
	KillSwitchThreshold float64       // fractional 1h loss that trips the switch
	KillSwitchWindow    time.Duration // lookback window
	StabilityLock       time.Duration // cooldown between deployments
}

// DefaultConfig returns the production defaults (3% / 1h / 12h).
func DefaultConfig() Config {
	return Config{
		KillSwitchThreshold: DefaultKillSwitchThreshold,
		KillSwitchWindow:    DefaultKillSwitchWindow,
		StabilityLock:       DefaultStabilityLock,
	}
}

// Monitor tracks a rolling equity history and enforces the kill switch and
// stability lock. All operations are local and never fail; with
// insufficient history the kill switch reports not-triggered and flags the
// evaluation as insufficient (safe-for-trading default, documented choice).
type Monitor struct {
	mu             sync.Mutex
	cfg            Config
	log            zerolog.Logger
	samples        []EquitySample
	triggered      bool // latched until ResetKillSwitch
	lastDeployment time.Time
	now            func() time.Time
}

// NewMonitor creates a Monitor with the given thresholds.
func NewMonitor(cfg Config, log zerolog.Logger) *Monitor {
	if cfg.KillSwitchWindow <= 0 {
		cfg.KillSwitchWindow = DefaultKillSwitchWindow
	}
	if cfg.StabilityLock <= 0 {
		cfg.StabilityLock = DefaultStabilityLock
	}
	if cfg.KillSwitchThreshold <= 0 {
		cfg.KillSwitchThreshold = DefaultKillSwitchThreshold
	}
	return &Monitor{
		cfg: cfg,
		log: log,
		now: time.Now,
	}
}

// RecordEquity appends a sample, prunes history older than the retention
// horizon and re-evaluates the kill switch.
func (m *Monitor) RecordEquity(at time.Time, equity float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.samples = append(m.samples, EquitySample{At: at, Equity: equity})
	m.prune(at)
	m.evaluateKillSwitch()
}

// KillSwitchActive reports whether the kill switch has triggered. The
// switch latches: once triggered it stays active until ResetKillSwitch,
// because a momentary equity bounce must not silently resume trading.
func (m *Monitor) KillSwitchActive() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.evaluateKillSwitch()
	return m.triggered
}

// ResetKillSwitch clears the latch and discards the equity history, so the
// next evaluation starts from a fresh baseline instead of re-triggering on
// the loss that was just reviewed. Manual operation only.
func (m *Monitor) ResetKillSwitch() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.triggered {
		m.log.Warn().Msg("kill switch manually reset")
	}
	m.triggered = false
	m.samples = nil
}

// EvolutionAllowed reports whether the stability lock has expired. No
// candidate may deploy while this is false, regardless of validator
// outcomes.
func (m *Monitor) EvolutionAllowed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.lastDeployment.IsZero() {
		return true
	}
	return m.now().Sub(m.lastDeployment) >= m.cfg.StabilityLock
}

// RecordDeployment resets the stability-lock clock. Called only by the
// orchestrator after a successful deployment.
func (m *Monitor) RecordDeployment(at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.lastDeployment = at
	m.log.Info().
		Time("deployed_at", at).
		Dur("stability_lock", m.cfg.StabilityLock).
		Msg("deployment recorded, stability lock armed")
}

// Status returns a telemetry snapshot.
func (m *Monitor) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	var current float64
	if n := len(m.samples); n > 0 {
		current = m.samples[n-1].Equity
	}

	var remaining time.Duration
	allowed := true
	if !m.lastDeployment.IsZero() {
		elapsed := m.now().Sub(m.lastDeployment)
		if elapsed < m.cfg.StabilityLock {
			allowed = false
			remaining = m.cfg.StabilityLock - elapsed
		}
	}

	return Status{
		KillSwitchActive:       m.triggered,
		EvolutionAllowed:       allowed,
		CurrentEquity:          current,
		SampleCount:            len(m.samples),
		LastDeployment:         m.lastDeployment,
		StabilityLockRemaining: remaining,
	}
}

// evaluateKillSwitch latches the switch when the delta between the latest
// sample and the earliest sample within the window breaches the threshold.
// Caller must hold m.mu.
func (m *Monitor) evaluateKillSwitch() {
	if m.triggered || len(m.samples) < 2 {
		return
	}

	latest := m.samples[len(m.samples)-1]
	cutoff := latest.At.Add(-m.cfg.KillSwitchWindow)

	var earliest *EquitySample
	for i := range m.samples {
		if !m.samples[i].At.Before(cutoff) {
			earliest = &m.samples[i]
			break
		}
	}
	if earliest == nil || earliest.At.Equal(latest.At) || earliest.Equity == 0 {
		return
	}

	delta := (latest.Equity - earliest.Equity) / earliest.Equity
	if delta <= -m.cfg.KillSwitchThreshold {
		m.triggered = true
		m.log.Error().
			Float64("delta", delta).
			Float64("threshold", m.cfg.KillSwitchThreshold).
			Float64("equity", latest.Equity).
			Msg("kill switch triggered")
	}
}

// prune drops samples older than the window plus margin. Caller must hold
// m.mu.
func (m *Monitor) prune(now time.Time) {
	horizon := now.Add(-(m.cfg.KillSwitchWindow + retentionMargin))
	i := 0
	for i < len(m.samples) && m.samples[i].At.Before(horizon) {
		i++
	}
	if i > 0 {
		m.samples = m.samples[i:]
	}
}
