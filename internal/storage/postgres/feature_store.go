package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"orderbook-feature-lab/internal/domain"
	"orderbook-feature-lab/internal/results"
	"orderbook-feature-lab/internal/storage"
)

// FeatureStore implements storage.FeatureStore using PostgreSQL.
type FeatureStore struct {
	pool *Pool
}

// NewFeatureStore creates a new FeatureStore.
func NewFeatureStore(pool *Pool) *FeatureStore {
	return &FeatureStore{pool: pool}
}

// Compile-time interface check.
var _ storage.FeatureStore = (*FeatureStore)(nil)

// InsertRun stores a run and its cells in one transaction.
// Returns ErrDuplicateKey if run_id exists.
func (s *FeatureStore) InsertRun(ctx context.Context, run *domain.FeatureRun, cells []results.Cell) error {
	if run == nil || run.RunID == "" {
		return storage.ErrInvalidInput
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO feature_runs (run_id, mode, from_ms, to_ms, handlers, issues, created_at_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, run.RunID, run.Mode, run.FromMs, run.ToMs, run.Handlers, run.Issues, run.CreatedAtMs)
	if err != nil {
		return storeError("insert feature run", err)
	}

	batch := &pgx.Batch{}
	for _, c := range cells {
		batch.Queue(`
			INSERT INTO feature_values (run_id, instrument, feature, value)
			VALUES ($1, $2, $3, $4)
		`, run.RunID, c.Instrument, c.Feature, c.Value)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return storeError("insert feature values", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetRun retrieves run metadata. Returns ErrNotFound if not exists.
func (s *FeatureStore) GetRun(ctx context.Context, runID string) (*domain.FeatureRun, error) {
	query := `
		SELECT run_id, mode, from_ms, to_ms, handlers, issues, created_at_ms
		FROM feature_runs
		WHERE run_id = $1
	`

	var run domain.FeatureRun
	err := s.pool.QueryRow(ctx, query, runID).Scan(
		&run.RunID,
		&run.Mode,
		&run.FromMs,
		&run.ToMs,
		&run.Handlers,
		&run.Issues,
		&run.CreatedAtMs,
	)
	if err != nil {
		return nil, storeError("get feature run "+runID, err)
	}

	return &run, nil
}

// GetCells retrieves all cells of a run, ordered by (instrument, feature).
func (s *FeatureStore) GetCells(ctx context.Context, runID string) ([]results.Cell, error) {
	query := `
		SELECT instrument, feature, value
		FROM feature_values
		WHERE run_id = $1
		ORDER BY instrument COLLATE "C" ASC, feature COLLATE "C" ASC
	`

	rows, err := s.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("get feature values: %w", err)
	}
	defer rows.Close()

	var cells []results.Cell
	for rows.Next() {
		var c results.Cell
		if err := rows.Scan(&c.Instrument, &c.Feature, &c.Value); err != nil {
			return nil, fmt.Errorf("scan feature value row: %w", err)
		}
		cells = append(cells, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate feature value rows: %w", err)
	}

	return cells, nil
}
