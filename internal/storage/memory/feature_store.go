package memory

import (
	"context"
	"sort"
	"sync"

	"orderbook-feature-lab/internal/domain"
	"orderbook-feature-lab/internal/results"
	"orderbook-feature-lab/internal/storage"
)

// FeatureStore is an in-memory implementation of storage.FeatureStore.
type FeatureStore struct {
	mu    sync.RWMutex
	runs  map[string]*domain.FeatureRun
	cells map[string][]results.Cell // keyed by run_id
}

// NewFeatureStore creates a new in-memory feature store.
func NewFeatureStore() *FeatureStore {
	return &FeatureStore{
		runs:  make(map[string]*domain.FeatureRun),
		cells: make(map[string][]results.Cell),
	}
}

// InsertRun stores a run and its cells. Returns ErrDuplicateKey if run_id exists.
func (s *FeatureStore) InsertRun(_ context.Context, run *domain.FeatureRun, cells []results.Cell) error {
	if run == nil || run.RunID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.runs[run.RunID]; exists {
		return storage.ErrDuplicateKey
	}

	r := *run
	s.runs[run.RunID] = &r
	s.cells[run.RunID] = append([]results.Cell(nil), cells...)
	return nil
}

// GetRun retrieves run metadata. Returns ErrNotFound if not exists.
func (s *FeatureStore) GetRun(_ context.Context, runID string) (*domain.FeatureRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[runID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	r := *run
	return &r, nil
}

// GetCells retrieves all cells of a run, ordered by (instrument, feature).
func (s *FeatureStore) GetCells(_ context.Context, runID string) ([]results.Cell, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := append([]results.Cell(nil), s.cells[runID]...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Instrument != out[j].Instrument {
			return out[i].Instrument < out[j].Instrument
		}
		return out[i].Feature < out[j].Feature
	})
	return out, nil
}

var _ storage.FeatureStore = (*FeatureStore)(nil)
