package strategy

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"evolab/internal/domain"
)

// Registry errors
var (
	ErrNoActiveVersion   = errors.New("no active strategy version")
	ErrNothingToRevert   = errors.New("no prior version to roll back to")
	ErrNilVersion        = errors.New("nil version")
	ErrVersionIncomplete = errors.New("version missing id or strategy")
)

// Version is an immutable deployed strategy. Each successful evolution
// appends a new Version; the active pointer is a reference swap, never a
// rewrite of executable logic.
type Version struct {
	VersionID    string
	Fingerprint  string
	Definition   string // JSON source the strategy was built from
	Strategy     Strategy
	DeployedAtMs int64
	Reason       string
}

// Registry holds the append-only version history and the active pointer.
// Readers (the live trading tick) load the active version lock-free and
// always observe either the old or the new version in full.
type Registry struct {
	mu       sync.Mutex
	versions []*Version
	active   atomic.Pointer[Version]
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Deploy appends the version to the history and atomically makes it
// active.
func (r *Registry) Deploy(v *Version) error {
	if v == nil {
		return ErrNilVersion
	}
	if v.VersionID == "" || v.Strategy == nil {
		return ErrVersionIncomplete
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.versions = append(r.versions, v)
	r.active.Store(v)
	return nil
}

// Active returns the current strategy version, or nil before the first
// deployment. Lock-free.
func (r *Registry) Active() *Version {
	return r.active.Load()
}

// Rollback reverts the active pointer to the version deployed immediately
// before the current one. The history keeps the faulty version for the
// ledger; only the pointer moves. Returns the restored version.
func (r *Registry) Rollback() (*Version, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current := r.active.Load()
	if current == nil {
		return nil, ErrNoActiveVersion
	}

	idx := -1
	for i, v := range r.versions {
		if v == current {
			idx = i
			break
		}
	}
	if idx <= 0 {
		return nil, ErrNothingToRevert
	}

	prior := r.versions[idx-1]
	r.active.Store(prior)
	return prior, nil
}

// History returns the deployed versions in order. The slice is a copy; the
// versions themselves are immutable.
func (r *Registry) History() []*Version {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*Version, len(r.versions))
	copy(out, r.versions)
	return out
}

// Decide runs the active strategy, satisfying the produced contract of the
// live trading tick. Returns ErrNoActiveVersion before the first
// deployment.
func (r *Registry) Decide(ctx context.Context, market *domain.MarketContext, risk domain.RiskSnapshot) (*domain.Decision, error) {
	v := r.active.Load()
	if v == nil {
		return nil, ErrNoActiveVersion
	}
	return v.Strategy.Decide(ctx, market, risk)
}
