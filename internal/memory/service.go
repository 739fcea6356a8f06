// Package memory is the system's durable learning layer. It records every
// deployment in the evolution ledger, closes each record's evaluation
// window against live equity, and blacklists the parameter fingerprints
// of versions that lost money in production.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"evolab/internal/domain"
	"evolab/internal/storage"
)

// Config holds the evaluation and expiry policy.
type Config struct {
	// EvaluationWindow is how long a deployed version trades live before
	// its PnL verdict is taken.
	EvaluationWindow time.Duration

	// BlacklistTTL expires blacklist entries by age. Zero means entries
	// are permanent until explicitly purged.
	BlacklistTTL time.Duration
}

// DefaultConfig returns the production policy: a 2 hour evaluation window
// and a permanent blacklist.
func DefaultConfig() Config {
	return Config{EvaluationWindow: 2 * time.Hour}
}

// Service serializes all writes to the evolution ledger. The background
// evaluator and the orchestrator both mutate the store; a single-writer
// mutex keeps the ledger consistent between them.
type Service struct {
	mu    sync.Mutex
	cfg   Config
	store storage.EvolutionStore
	log   zerolog.Logger
	now   func() time.Time
}

// NewService creates a memory service over the given store.
func NewService(store storage.EvolutionStore, cfg Config, log zerolog.Logger) *Service {
	if cfg.EvaluationWindow <= 0 {
		cfg.EvaluationWindow = DefaultConfig().EvaluationWindow
	}
	return &Service{
		cfg:   cfg,
		store: store,
		log:   log.With().Str("component", "memory").Logger(),
		now:   time.Now,
	}
}

// IsBlacklisted reports whether the fingerprint has a live blacklist
// entry. Matching is exact; an entry older than the configured TTL no
// longer blocks.
func (s *Service) IsBlacklisted(ctx context.Context, fingerprint string) (bool, error) {
	entry, err := s.store.GetBlacklist(ctx, fingerprint)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("lookup blacklist: %w", err)
	}

	if s.cfg.BlacklistTTL > 0 {
		age := s.now().UnixMilli() - entry.CreatedAtMs
		if age >= s.cfg.BlacklistTTL.Milliseconds() {
			return false, nil
		}
	}
	return true, nil
}

// RecordEvolution appends a ledger entry for a fresh deployment with an
// open evaluation window.
func (s *Service) RecordEvolution(ctx context.Context, versionID, fingerprint, reason string, equityAtDeployment float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	nowMs := s.now().UnixMilli()
	rec := &domain.EvolutionRecord{
		VersionID:          versionID,
		Fingerprint:        fingerprint,
		Reason:             reason,
		EquityAtDeployment: equityAtDeployment,
		DeployedAtMs:       nowMs,
		CreatedAtMs:        nowMs,
	}
	if err := s.store.InsertEvolution(ctx, rec); err != nil {
		return fmt.Errorf("record evolution: %w", err)
	}

	s.log.Info().
		Str("version_id", versionID).
		Str("fingerprint", fingerprint).
		Float64("equity", equityAtDeployment).
		Msg("evolution recorded")
	return nil
}

// EvaluateDue closes every record whose evaluation window has fully
// elapsed, taking the PnL verdict against the given live equity. A
// negative verdict blacklists the fingerprint. Records still inside their
// window are left untouched; partial data never blacklists.
func (s *Service) EvaluateDue(ctx context.Context, currentEquity float64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pending, err := s.store.GetUnevaluated(ctx)
	if err != nil {
		return 0, fmt.Errorf("fetch pending evolutions: %w", err)
	}

	nowMs := s.now().UnixMilli()
	windowMs := s.cfg.EvaluationWindow.Milliseconds()

	closed := 0
	for _, rec := range pending {
		if nowMs-rec.DeployedAtMs < windowMs {
			continue
		}

		pnl := currentEquity - rec.EquityAtDeployment
		if err := s.store.MarkEvaluated(ctx, rec.VersionID, pnl); err != nil {
			return closed, fmt.Errorf("close evaluation for %s: %w", rec.VersionID, err)
		}
		closed++

		evt := s.log.Info()
		if pnl < 0 {
			evt = s.log.Warn()
		}
		evt.
			Str("version_id", rec.VersionID).
			Str("fingerprint", rec.Fingerprint).
			Float64("final_pnl", pnl).
			Msg("evaluation window closed")

		if pnl >= 0 {
			continue
		}

		err := s.store.InsertBlacklist(ctx, &domain.BlacklistEntry{
			Fingerprint: rec.Fingerprint,
			Loss:        pnl,
			Reason:      fmt.Sprintf("live pnl %.2f after %s", pnl, s.cfg.EvaluationWindow),
			CreatedAtMs: nowMs,
		})
		if err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
			return closed, fmt.Errorf("blacklist %s: %w", rec.Fingerprint, err)
		}
	}

	return closed, nil
}

// Statistics summarizes the ledger. Success rate counts evaluated records
// that did not end in a blacklist entry, over all evaluated records.
func (s *Service) Statistics(ctx context.Context) (domain.EvolutionStats, error) {
	records, err := s.store.ListEvolutions(ctx)
	if err != nil {
		return domain.EvolutionStats{}, fmt.Errorf("list evolutions: %w", err)
	}
	blacklist, err := s.store.ListBlacklist(ctx)
	if err != nil {
		return domain.EvolutionStats{}, fmt.Errorf("list blacklist: %w", err)
	}

	stats := domain.EvolutionStats{
		TotalEvolutions: len(records),
		Blacklisted:     len(blacklist),
	}
	succeeded := 0
	for _, rec := range records {
		if !rec.Evaluated {
			stats.Pending++
			continue
		}
		stats.Evaluated++
		if rec.FinalPnl != nil && *rec.FinalPnl >= 0 {
			succeeded++
		}
	}
	if stats.Evaluated > 0 {
		stats.SuccessRate = float64(succeeded) / float64(stats.Evaluated)
	}
	return stats, nil
}

// PurgeExpired removes blacklist entries older than the configured TTL.
// A zero TTL makes this a no-op.
func (s *Service) PurgeExpired(ctx context.Context) (int, error) {
	if s.cfg.BlacklistTTL <= 0 {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-s.cfg.BlacklistTTL).UnixMilli()
	removed, err := s.store.DeleteBlacklistBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge expired blacklist entries: %w", err)
	}
	if removed > 0 {
		s.log.Info().Int("removed", removed).Msg("expired blacklist entries purged")
	}
	return removed, nil
}
