package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"evolab/internal/domain"
	"evolab/internal/storage"
)

// EvolutionStore implements storage.EvolutionStore using PostgreSQL.
type EvolutionStore struct {
	pool *Pool
}

// NewEvolutionStore creates a new EvolutionStore.
func NewEvolutionStore(pool *Pool) *EvolutionStore {
	return &EvolutionStore{pool: pool}
}

// Compile-time interface check.
var _ storage.EvolutionStore = (*EvolutionStore)(nil)

// InsertEvolution appends a new record. Returns ErrDuplicateKey if
// version_id exists.
func (s *EvolutionStore) InsertEvolution(ctx context.Context, rec *domain.EvolutionRecord) error {
	if rec == nil || rec.VersionID == "" || rec.Fingerprint == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO evolutions (
			version_id, fingerprint, reason, equity_at_deployment,
			deployed_at_ms, evaluated, final_pnl, created_at_ms
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := s.pool.Exec(ctx, query,
		rec.VersionID,
		rec.Fingerprint,
		rec.Reason,
		rec.EquityAtDeployment,
		rec.DeployedAtMs,
		rec.Evaluated,
		rec.FinalPnl,
		rec.CreatedAtMs,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert evolution: %w", err)
	}
	return nil
}

// GetUnevaluated retrieves records with an open evaluation window, ordered
// by deployed_at ASC.
func (s *EvolutionStore) GetUnevaluated(ctx context.Context) ([]*domain.EvolutionRecord, error) {
	query := `
		SELECT version_id, fingerprint, reason, equity_at_deployment,
		       deployed_at_ms, evaluated, final_pnl, created_at_ms
		FROM evolutions
		WHERE evaluated = FALSE
		ORDER BY deployed_at_ms ASC, version_id ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get unevaluated evolutions: %w", err)
	}
	defer rows.Close()

	return scanEvolutions(rows)
}

// MarkEvaluated closes the record's evaluation window with the final PnL.
// The WHERE clause guards against double evaluation.
func (s *EvolutionStore) MarkEvaluated(ctx context.Context, versionID string, finalPnl float64) error {
	query := `
		UPDATE evolutions
		SET evaluated = TRUE, final_pnl = $2
		WHERE version_id = $1 AND evaluated = FALSE
	`

	tag, err := s.pool.Exec(ctx, query, versionID, finalPnl)
	if err != nil {
		return fmt.Errorf("mark evolution evaluated: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Distinguish a missing record from one already evaluated.
		var evaluated bool
		err := s.pool.QueryRow(ctx, `SELECT evaluated FROM evolutions WHERE version_id = $1`, versionID).Scan(&evaluated)
		if err != nil {
			if isNotFoundError(err) {
				return storage.ErrNotFound
			}
			return fmt.Errorf("check evolution state: %w", err)
		}
		return storage.ErrDuplicateKey
	}
	return nil
}

// ListEvolutions retrieves all records, ordered by deployed_at ASC.
func (s *EvolutionStore) ListEvolutions(ctx context.Context) ([]*domain.EvolutionRecord, error) {
	query := `
		SELECT version_id, fingerprint, reason, equity_at_deployment,
		       deployed_at_ms, evaluated, final_pnl, created_at_ms
		FROM evolutions
		ORDER BY deployed_at_ms ASC, version_id ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list evolutions: %w", err)
	}
	defer rows.Close()

	return scanEvolutions(rows)
}

// InsertBlacklist adds a blacklist entry. Returns ErrDuplicateKey if the
// fingerprint is already blacklisted.
func (s *EvolutionStore) InsertBlacklist(ctx context.Context, entry *domain.BlacklistEntry) error {
	if entry == nil || entry.Fingerprint == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO blacklist (fingerprint, loss, reason, created_at_ms)
		VALUES ($1, $2, $3, $4)
	`

	_, err := s.pool.Exec(ctx, query,
		entry.Fingerprint,
		entry.Loss,
		entry.Reason,
		entry.CreatedAtMs,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert blacklist entry: %w", err)
	}
	return nil
}

// GetBlacklist retrieves the entry for a fingerprint. Returns ErrNotFound
// if the fingerprint is not blacklisted.
func (s *EvolutionStore) GetBlacklist(ctx context.Context, fingerprint string) (*domain.BlacklistEntry, error) {
	query := `
		SELECT fingerprint, loss, reason, created_at_ms
		FROM blacklist
		WHERE fingerprint = $1
	`

	var e domain.BlacklistEntry
	err := s.pool.QueryRow(ctx, query, fingerprint).Scan(
		&e.Fingerprint, &e.Loss, &e.Reason, &e.CreatedAtMs,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get blacklist entry: %w", err)
	}
	return &e, nil
}

// ListBlacklist retrieves all entries, ordered by created_at ASC.
func (s *EvolutionStore) ListBlacklist(ctx context.Context) ([]*domain.BlacklistEntry, error) {
	query := `
		SELECT fingerprint, loss, reason, created_at_ms
		FROM blacklist
		ORDER BY created_at_ms ASC, fingerprint ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list blacklist: %w", err)
	}
	defer rows.Close()

	var entries []*domain.BlacklistEntry
	for rows.Next() {
		var e domain.BlacklistEntry
		if err := rows.Scan(&e.Fingerprint, &e.Loss, &e.Reason, &e.CreatedAtMs); err != nil {
			return nil, fmt.Errorf("scan blacklist row: %w", err)
		}
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate blacklist rows: %w", err)
	}
	return entries, nil
}

// DeleteBlacklistBefore removes entries created before the cutoff.
func (s *EvolutionStore) DeleteBlacklistBefore(ctx context.Context, cutoffMs int64) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM blacklist WHERE created_at_ms < $1`, cutoffMs)
	if err != nil {
		return 0, fmt.Errorf("delete expired blacklist entries: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// scanEvolutions scans multiple rows into a slice of EvolutionRecord.
func scanEvolutions(rows pgx.Rows) ([]*domain.EvolutionRecord, error) {
	var records []*domain.EvolutionRecord

	for rows.Next() {
		var rec domain.EvolutionRecord
		err := rows.Scan(
			&rec.VersionID,
			&rec.Fingerprint,
			&rec.Reason,
			&rec.EquityAtDeployment,
			&rec.DeployedAtMs,
			&rec.Evaluated,
			&rec.FinalPnl,
			&rec.CreatedAtMs,
		)
		if err != nil {
			return nil, fmt.Errorf("scan evolution row: %w", err)
		}
		records = append(records, &rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate evolution rows: %w", err)
	}

	return records, nil
}
