package strategy

import (
	"context"
	"errors"
	"sync"
	"testing"

	"evolab/internal/domain"
)

func testVersion(t *testing.T, id string) *Version {
	t.Helper()

	cfg := domain.StrategyConfig{
		StrategyType: domain.StrategyTypeSMACross,
		FastPeriod:   intPtr(2),
		SlowPeriod:   intPtr(4),
	}
	s, err := FromConfig(cfg)
	if err != nil {
		t.Fatal(err)
	}
	return &Version{
		VersionID:   id,
		Fingerprint: "fp-" + id,
		Strategy:    s,
	}
}

func TestRegistry_DeployAndActive(t *testing.T) {
	r := NewRegistry()

	if r.Active() != nil {
		t.Fatal("Empty registry should have no active version")
	}

	v1 := testVersion(t, "v1")
	if err := r.Deploy(v1); err != nil {
		t.Fatalf("Deploy failed: %v", err)
	}
	if r.Active() != v1 {
		t.Error("Active should be v1 after deploy")
	}

	v2 := testVersion(t, "v2")
	if err := r.Deploy(v2); err != nil {
		t.Fatalf("Deploy failed: %v", err)
	}
	if r.Active() != v2 {
		t.Error("Active should be v2 after second deploy")
	}
	if got := len(r.History()); got != 2 {
		t.Errorf("History length = %d, want 2", got)
	}
}

func TestRegistry_DeployValidation(t *testing.T) {
	r := NewRegistry()

	if err := r.Deploy(nil); !errors.Is(err, ErrNilVersion) {
		t.Errorf("Deploy(nil) error = %v, want ErrNilVersion", err)
	}
	if err := r.Deploy(&Version{}); !errors.Is(err, ErrVersionIncomplete) {
		t.Errorf("Deploy(incomplete) error = %v, want ErrVersionIncomplete", err)
	}
}

func TestRegistry_Rollback(t *testing.T) {
	r := NewRegistry()
	v1 := testVersion(t, "v1")
	v2 := testVersion(t, "v2")
	_ = r.Deploy(v1)
	_ = r.Deploy(v2)

	restored, err := r.Rollback()
	if err != nil {
		t.Fatalf("Rollback failed: %v", err)
	}
	if restored != v1 || r.Active() != v1 {
		t.Error("Rollback should restore v1")
	}

	// History keeps the faulty version for the ledger.
	if got := len(r.History()); got != 2 {
		t.Errorf("History length = %d, want 2 after rollback", got)
	}

	if _, err := r.Rollback(); !errors.Is(err, ErrNothingToRevert) {
		t.Errorf("Second rollback error = %v, want ErrNothingToRevert", err)
	}
}

func TestRegistry_RollbackEmpty(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Rollback(); !errors.Is(err, ErrNoActiveVersion) {
		t.Errorf("Rollback on empty registry error = %v, want ErrNoActiveVersion", err)
	}
}

func TestRegistry_ConcurrentReadersDuringSwap(t *testing.T) {
	r := NewRegistry()
	v1 := testVersion(t, "v1")
	_ = r.Deploy(v1)

	var wg sync.WaitGroup
	stop := make(chan struct{})

	// Readers: the active version must always be whole.
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				v := r.Active()
				if v == nil || v.VersionID == "" || v.Strategy == nil {
					t.Error("Observed a torn or partial version")
					return
				}
			}
		}()
	}

	// Writer: continuous swaps.
	for i := 0; i < 200; i++ {
		_ = r.Deploy(testVersion(t, "swap"))
	}
	close(stop)
	wg.Wait()
}

func TestRegistry_DecideDelegatesToActive(t *testing.T) {
	r := NewRegistry()

	if _, err := r.Decide(context.Background(), &domain.MarketContext{}, domain.RiskSnapshot{}); !errors.Is(err, ErrNoActiveVersion) {
		t.Fatalf("Decide error = %v, want ErrNoActiveVersion", err)
	}

	_ = r.Deploy(testVersion(t, "v1"))
	market := &domain.MarketContext{Bars: barsFromCloses([]float64{100, 100, 100, 100, 100})}
	d, err := r.Decide(context.Background(), market, normalRisk())
	if err != nil {
		t.Fatalf("Decide failed: %v", err)
	}
	if !d.Valid() {
		t.Errorf("Decision invalid: %+v", d)
	}
}
