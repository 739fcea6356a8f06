package guardrail

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
)

var t0 = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestMonitor(cfg Config) *Monitor {
	return NewMonitor(cfg, zerolog.Nop())
}

func TestKillSwitch_TriggersAndLatches(t *testing.T) {
	m := newTestMonitor(DefaultConfig())

	// 4% drop in 30 minutes exceeds the 3% threshold.
	m.RecordEquity(t0, 10000)
	m.RecordEquity(t0.Add(30*time.Minute), 9600)

	if !m.KillSwitchActive() {
		t.Fatal("Kill switch should trigger on 4% drop within 1h")
	}

	// Recovery must not clear the latch.
	m.RecordEquity(t0.Add(45*time.Minute), 9900)
	if !m.KillSwitchActive() {
		t.Error("Kill switch must stay latched after equity recovery")
	}
}

func TestKillSwitch_BelowThresholdDoesNotTrigger(t *testing.T) {
	m := newTestMonitor(DefaultConfig())

	m.RecordEquity(t0, 10000)
	m.RecordEquity(t0.Add(30*time.Minute), 9750) // 2.5% drop

	if m.KillSwitchActive() {
		t.Error("2.5% drop should not trigger a 3% kill switch")
	}
}

func TestKillSwitch_InsufficientHistory(t *testing.T) {
	m := newTestMonitor(DefaultConfig())

	if m.KillSwitchActive() {
		t.Error("Kill switch active with no samples")
	}

	m.RecordEquity(t0, 10000)
	if m.KillSwitchActive() {
		t.Error("Kill switch active with a single sample")
	}
}

func TestKillSwitch_IgnoresSamplesOlderThanWindow(t *testing.T) {
	m := newTestMonitor(DefaultConfig())

	// Big loss, but spread over 3 hours; within any 1h window the move
	// stays under threshold.
	m.RecordEquity(t0, 10000)
	m.RecordEquity(t0.Add(90*time.Minute), 9800)
	m.RecordEquity(t0.Add(3*time.Hour), 9600)

	if m.KillSwitchActive() {
		t.Error("Kill switch evaluated against samples older than the window")
	}
}

func TestKillSwitch_ManualReset(t *testing.T) {
	m := newTestMonitor(DefaultConfig())

	m.RecordEquity(t0, 10000)
	m.RecordEquity(t0.Add(10*time.Minute), 9000)
	if !m.KillSwitchActive() {
		t.Fatal("Expected trigger")
	}

	m.ResetKillSwitch()
	if m.KillSwitchActive() {
		t.Error("Kill switch still active after manual reset")
	}
}

func TestEquityHistory_Pruned(t *testing.T) {
	m := newTestMonitor(DefaultConfig())

	for i := 0; i < 10; i++ {
		m.RecordEquity(t0.Add(time.Duration(i)*30*time.Minute), 10000)
	}

	// Retention horizon is window + margin, so at most ~3 half-hour
	// samples survive (65min lookback) plus the latest.
	if got := m.Status().SampleCount; got > 4 {
		t.Errorf("SampleCount = %d, want pruned history", got)
	}
}

func TestStabilityLock(t *testing.T) {
	m := newTestMonitor(Config{
		KillSwitchThreshold: 0.03,
		KillSwitchWindow:    time.Hour,
		StabilityLock:       12 * time.Hour,
	})

	if !m.EvolutionAllowed() {
		t.Fatal("Evolution should be allowed before any deployment")
	}

	m.now = func() time.Time { return t0.Add(time.Hour) }
	m.RecordDeployment(t0)

	if m.EvolutionAllowed() {
		t.Error("Evolution allowed 1h after deployment with 12h lock")
	}

	m.now = func() time.Time { return t0.Add(13 * time.Hour) }
	if !m.EvolutionAllowed() {
		t.Error("Evolution still locked after lock expiry")
	}
}

func TestStatus(t *testing.T) {
	m := newTestMonitor(DefaultConfig())
	m.now = func() time.Time { return t0.Add(2 * time.Hour) }

	m.RecordEquity(t0.Add(2*time.Hour), 10500)
	m.RecordDeployment(t0)

	st := m.Status()
	if st.CurrentEquity != 10500 {
		t.Errorf("CurrentEquity = %f, want 10500", st.CurrentEquity)
	}
	if st.EvolutionAllowed {
		t.Error("Status should report evolution locked")
	}
	if st.StabilityLockRemaining != 10*time.Hour {
		t.Errorf("StabilityLockRemaining = %s, want 10h", st.StabilityLockRemaining)
	}
	if st.KillSwitchActive {
		t.Error("Kill switch should be inactive")
	}
}
