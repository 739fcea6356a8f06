// Package storage defines the persistence contracts for the evolution
// ledger, the blacklist, and the historical bar cache. Backends live in
// subpackages; callers depend only on these interfaces.
package storage

import (
	"context"

	"evolab/internal/domain"
)

// EvolutionStore provides access to the evolution ledger and the blacklist.
// Evolution records are append-only: the only permitted mutation is closing
// a record's evaluation window via MarkEvaluated.
type EvolutionStore interface {
	// InsertEvolution appends a new record. Returns ErrDuplicateKey if
	// version_id exists.
	InsertEvolution(ctx context.Context, rec *domain.EvolutionRecord) error

	// GetUnevaluated retrieves records whose evaluation window has not yet
	// been closed, ordered by deployed_at ASC.
	GetUnevaluated(ctx context.Context) ([]*domain.EvolutionRecord, error)

	// MarkEvaluated sets evaluated=true and final_pnl on the record with
	// the given version ID. Returns ErrNotFound if no such record, and
	// ErrDuplicateKey if the record was already evaluated.
	MarkEvaluated(ctx context.Context, versionID string, finalPnl float64) error

	// ListEvolutions retrieves all records, ordered by deployed_at ASC.
	ListEvolutions(ctx context.Context) ([]*domain.EvolutionRecord, error)

	// InsertBlacklist adds a blacklist entry. Returns ErrDuplicateKey if
	// the fingerprint is already blacklisted.
	InsertBlacklist(ctx context.Context, entry *domain.BlacklistEntry) error

	// GetBlacklist retrieves the entry for a fingerprint. Returns
	// ErrNotFound if the fingerprint is not blacklisted.
	GetBlacklist(ctx context.Context, fingerprint string) (*domain.BlacklistEntry, error)

	// ListBlacklist retrieves all entries, ordered by created_at ASC.
	ListBlacklist(ctx context.Context) ([]*domain.BlacklistEntry, error)

	// DeleteBlacklistBefore removes entries created before the cutoff
	// timestamp and reports how many were removed. Supports age-based
	// blacklist expiry.
	DeleteBlacklistBefore(ctx context.Context, cutoffMs int64) (int, error)
}

// BarStore provides access to the historical bar cache used by the
// backtest validator and the one-shot CLI.
type BarStore interface {
	// InsertBars adds multiple bars for a symbol. Fails the entire batch
	// on a duplicate (symbol, timestamp_ms).
	InsertBars(ctx context.Context, symbol string, bars []domain.Bar) error

	// GetBars retrieves all bars for a symbol, ordered by timestamp ASC.
	GetBars(ctx context.Context, symbol string) ([]domain.Bar, error)

	// GetByTimeRange retrieves bars for a symbol within [start, end]
	// (inclusive), ordered by timestamp ASC.
	GetByTimeRange(ctx context.Context, symbol string, start, end int64) ([]domain.Bar, error)
}
