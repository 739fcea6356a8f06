package memory

import (
	"context"
	"sort"
	"sync"

	"evolab/internal/domain"
	"evolab/internal/storage"
)

// EvolutionStore is an in-memory implementation of storage.EvolutionStore.
type EvolutionStore struct {
	mu        sync.RWMutex
	records   map[string]*domain.EvolutionRecord // keyed by version_id
	blacklist map[string]*domain.BlacklistEntry  // keyed by fingerprint
}

// NewEvolutionStore creates a new in-memory evolution store.
func NewEvolutionStore() *EvolutionStore {
	return &EvolutionStore{
		records:   make(map[string]*domain.EvolutionRecord),
		blacklist: make(map[string]*domain.BlacklistEntry),
	}
}

// InsertEvolution appends a new record. Returns ErrDuplicateKey if
// version_id exists.
func (s *EvolutionStore) InsertEvolution(_ context.Context, rec *domain.EvolutionRecord) error {
	if rec == nil || rec.VersionID == "" || rec.Fingerprint == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[rec.VersionID]; exists {
		return storage.ErrDuplicateKey
	}

	// Store a copy to prevent external mutation
	recCopy := copyRecord(rec)
	s.records[rec.VersionID] = recCopy
	return nil
}

// GetUnevaluated retrieves records whose evaluation window has not yet
// been closed, ordered by deployed_at ASC.
func (s *EvolutionStore) GetUnevaluated(_ context.Context) ([]*domain.EvolutionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.EvolutionRecord
	for _, rec := range s.records {
		if !rec.Evaluated {
			result = append(result, copyRecord(rec))
		}
	}
	sortRecords(result)
	return result, nil
}

// MarkEvaluated closes the record's evaluation window with the final PnL.
func (s *EvolutionStore) MarkEvaluated(_ context.Context, versionID string, finalPnl float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, exists := s.records[versionID]
	if !exists {
		return storage.ErrNotFound
	}
	if rec.Evaluated {
		return storage.ErrDuplicateKey
	}

	rec.Evaluated = true
	pnl := finalPnl
	rec.FinalPnl = &pnl
	return nil
}

// ListEvolutions retrieves all records, ordered by deployed_at ASC.
func (s *EvolutionStore) ListEvolutions(_ context.Context) ([]*domain.EvolutionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.EvolutionRecord, 0, len(s.records))
	for _, rec := range s.records {
		result = append(result, copyRecord(rec))
	}
	sortRecords(result)
	return result, nil
}

// InsertBlacklist adds a blacklist entry. Returns ErrDuplicateKey if the
// fingerprint is already blacklisted.
func (s *EvolutionStore) InsertBlacklist(_ context.Context, entry *domain.BlacklistEntry) error {
	if entry == nil || entry.Fingerprint == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.blacklist[entry.Fingerprint]; exists {
		return storage.ErrDuplicateKey
	}

	entryCopy := *entry
	s.blacklist[entry.Fingerprint] = &entryCopy
	return nil
}

// GetBlacklist retrieves the entry for a fingerprint. Returns ErrNotFound
// if the fingerprint is not blacklisted.
func (s *EvolutionStore) GetBlacklist(_ context.Context, fingerprint string) (*domain.BlacklistEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, exists := s.blacklist[fingerprint]
	if !exists {
		return nil, storage.ErrNotFound
	}

	entryCopy := *entry
	return &entryCopy, nil
}

// ListBlacklist retrieves all entries, ordered by created_at ASC.
func (s *EvolutionStore) ListBlacklist(_ context.Context) ([]*domain.BlacklistEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.BlacklistEntry, 0, len(s.blacklist))
	for _, entry := range s.blacklist {
		entryCopy := *entry
		result = append(result, &entryCopy)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAtMs != result[j].CreatedAtMs {
			return result[i].CreatedAtMs < result[j].CreatedAtMs
		}
		return result[i].Fingerprint < result[j].Fingerprint
	})
	return result, nil
}

// DeleteBlacklistBefore removes entries created before the cutoff.
func (s *EvolutionStore) DeleteBlacklistBefore(_ context.Context, cutoffMs int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for fp, entry := range s.blacklist {
		if entry.CreatedAtMs < cutoffMs {
			delete(s.blacklist, fp)
			removed++
		}
	}
	return removed, nil
}

// copyRecord clones a record including its nullable final PnL.
func copyRecord(rec *domain.EvolutionRecord) *domain.EvolutionRecord {
	recCopy := *rec
	if rec.FinalPnl != nil {
		pnl := *rec.FinalPnl
		recCopy.FinalPnl = &pnl
	}
	return &recCopy
}

// sortRecords orders records by deployed_at ASC with version_id tiebreak.
func sortRecords(records []*domain.EvolutionRecord) {
	sort.Slice(records, func(i, j int) bool {
		if records[i].DeployedAtMs != records[j].DeployedAtMs {
			return records[i].DeployedAtMs < records[j].DeployedAtMs
		}
		return records[i].VersionID < records[j].VersionID
	})
}

// Verify interface compliance at compile time.
var _ storage.EvolutionStore = (*EvolutionStore)(nil)
