package memory

import (
	"context"
	"sort"
	"sync"

	"evolab/internal/domain"
	"evolab/internal/storage"
)

// BarStore is an in-memory implementation of storage.BarStore.
type BarStore struct {
	mu   sync.RWMutex
	data map[string]map[int64]domain.Bar // symbol -> timestamp_ms -> bar
}

// NewBarStore creates a new in-memory bar store.
func NewBarStore() *BarStore {
	return &BarStore{
		data: make(map[string]map[int64]domain.Bar),
	}
}

// InsertBars adds multiple bars for a symbol. Fails the entire batch on a
// duplicate (symbol, timestamp_ms).
func (s *BarStore) InsertBars(_ context.Context, symbol string, bars []domain.Bar) error {
	if symbol == "" {
		return storage.ErrInvalidInput
	}
	if len(bars) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing := s.data[symbol]

	// Reject before mutating so a failed batch leaves no partial state.
	seen := make(map[int64]struct{}, len(bars))
	for _, b := range bars {
		if _, dup := seen[b.TimestampMs]; dup {
			return storage.ErrDuplicateKey
		}
		seen[b.TimestampMs] = struct{}{}
		if _, dup := existing[b.TimestampMs]; dup {
			return storage.ErrDuplicateKey
		}
	}

	if existing == nil {
		existing = make(map[int64]domain.Bar, len(bars))
		s.data[symbol] = existing
	}
	for _, b := range bars {
		existing[b.TimestampMs] = b
	}
	return nil
}

// GetBars retrieves all bars for a symbol, ordered by timestamp ASC.
func (s *BarStore) GetBars(_ context.Context, symbol string) ([]domain.Bar, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.Bar
	for _, b := range s.data[symbol] {
		result = append(result, b)
	}
	sortBars(result)
	return result, nil
}

// GetByTimeRange retrieves bars for a symbol within [start, end] (inclusive).
func (s *BarStore) GetByTimeRange(_ context.Context, symbol string, start, end int64) ([]domain.Bar, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.Bar
	for ts, b := range s.data[symbol] {
		if ts >= start && ts <= end {
			result = append(result, b)
		}
	}
	sortBars(result)
	return result, nil
}

func sortBars(bars []domain.Bar) {
	sort.Slice(bars, func(i, j int) bool {
		return bars[i].TimestampMs < bars[j].TimestampMs
	})
}

// Verify interface compliance at compile time.
var _ storage.BarStore = (*BarStore)(nil)
