package clickhouse

import (
	"context"
	"fmt"

	"orderbook-feature-lab/internal/domain"
	"orderbook-feature-lab/internal/results"
	"orderbook-feature-lab/internal/storage"
)

// FeatureStore implements storage.FeatureStore using ClickHouse.
type FeatureStore struct {
	conn *Conn
}

// NewFeatureStore creates a new FeatureStore.
func NewFeatureStore(conn *Conn) *FeatureStore {
	return &FeatureStore{conn: conn}
}

// Compile-time interface check.
var _ storage.FeatureStore = (*FeatureStore)(nil)

// InsertRun stores a run and its cells. Returns ErrDuplicateKey if run_id exists.
// Cells are written before the run row so that a visible run always has its values.
func (s *FeatureStore) InsertRun(ctx context.Context, run *domain.FeatureRun, cells []results.Cell) error {
	if run == nil || run.RunID == "" {
		return storage.ErrInvalidInput
	}

	// Check for intra-batch duplicates
	type key struct {
		instrument string
		feature    string
	}
	seen := make(map[key]struct{}, len(cells))
	for _, c := range cells {
		k := key{c.Instrument, c.Feature}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
	}

	exists, err := s.exists(ctx, run.RunID)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	if exists {
		return storage.ErrDuplicateKey
	}

	if len(cells) > 0 {
		batch, err := s.conn.PrepareBatch(ctx, `
			INSERT INTO feature_values (run_id, instrument, feature, value)
		`)
		if err != nil {
			return fmt.Errorf("prepare batch: %w", err)
		}
		for _, c := range cells {
			if err := batch.Append(run.RunID, c.Instrument, c.Feature, c.Value); err != nil {
				return fmt.Errorf("append to batch: %w", err)
			}
		}
		if err := batch.Send(); err != nil {
			return fmt.Errorf("send batch: %w", err)
		}
	}

	err = s.conn.Exec(ctx, `
		INSERT INTO feature_runs (run_id, mode, from_ms, to_ms, handlers, issues, created_at_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, run.RunID, run.Mode, run.FromMs, run.ToMs, uint32(run.Handlers), uint32(run.Issues), run.CreatedAtMs)
	if err != nil {
		return fmt.Errorf("insert feature run: %w", err)
	}

	return nil
}

// GetRun retrieves run metadata. Returns ErrNotFound if not exists.
func (s *FeatureStore) GetRun(ctx context.Context, runID string) (*domain.FeatureRun, error) {
	query := `
		SELECT run_id, mode, from_ms, to_ms, handlers, issues, created_at_ms
		FROM feature_runs
		WHERE run_id = ?
		LIMIT 1
	`

	rows, err := s.conn.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("query feature run: %w", err)
	}
	defer rows.Close()

	runs, err := scanFeatureRuns(rows)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, storage.ErrNotFound
	}
	return runs[0], nil
}

// GetCells retrieves all cells of a run, ordered by (instrument, feature).
func (s *FeatureStore) GetCells(ctx context.Context, runID string) ([]results.Cell, error) {
	query := `
		SELECT instrument, feature, value
		FROM feature_values
		WHERE run_id = ?
		ORDER BY instrument ASC, feature ASC
	`

	rows, err := s.conn.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("query feature values: %w", err)
	}
	defer rows.Close()

	return scanCells(rows)
}

// exists checks if a run with the given id exists.
func (s *FeatureStore) exists(ctx context.Context, runID string) (bool, error) {
	query := `SELECT count(*) FROM feature_runs WHERE run_id = ?`

	var count uint64
	if err := s.conn.QueryRow(ctx, query, runID).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

// scanFeatureRuns scans multiple rows.
func scanFeatureRuns(rows chRows) ([]*domain.FeatureRun, error) {
	var runs []*domain.FeatureRun

	for rows.Next() {
		var run domain.FeatureRun
		var handlers, issues uint32

		err := rows.Scan(
			&run.RunID, &run.Mode, &run.FromMs, &run.ToMs,
			&handlers, &issues, &run.CreatedAtMs,
		)
		if err != nil {
			return nil, fmt.Errorf("scan feature run row: %w", err)
		}
		run.Handlers = int(handlers)
		run.Issues = int(issues)

		runs = append(runs, &run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate feature run rows: %w", err)
	}

	return runs, nil
}

// scanCells scans multiple rows.
func scanCells(rows chRows) ([]results.Cell, error) {
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
