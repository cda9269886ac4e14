package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"orderbook-feature-lab/internal/domain"
	"orderbook-feature-lab/internal/storage"
)

// SnapshotStore implements storage.SnapshotStore using PostgreSQL.
// Each instrument of a snapshot is stored as one row with its fields as JSONB.
type SnapshotStore struct {
	pool *Pool
}

// NewSnapshotStore creates a new SnapshotStore.
func NewSnapshotStore(pool *Pool) *SnapshotStore {
	return &SnapshotStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SnapshotStore = (*SnapshotStore)(nil)

// InsertBulk adds snapshot events atomically. Fails entire batch on any duplicate.
func (s *SnapshotStore) InsertBulk(ctx context.Context, events []*domain.MarketEvent) error {
	if len(events) == 0 {
		return nil
	}

	for _, ev := range events {
		if ev == nil || ev.Kind != domain.EventKindSnapshot || len(ev.Snapshot) == 0 {
			return storage.ErrInvalidInput
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO book_snapshots (timestamp_ms, seq, instrument, fields)
		VALUES ($1, $2, $3, $4)
	`

	for _, ev := range events {
		for instrument, fields := range ev.Snapshot {
			data, err := json.Marshal(fields)
			if err != nil {
				return fmt.Errorf("encode fields for %s: %w", instrument, err)
			}
			if _, err := tx.Exec(ctx, query, ev.TimestampMs, ev.Seq, instrument, data); err != nil {
				return storeError("insert snapshot in bulk", err)
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetByTimeRange retrieves snapshots within [start, end] (inclusive).
func (s *SnapshotStore) GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.MarketEvent, error) {
	query := `
		SELECT timestamp_ms, seq, instrument, fields
		FROM book_snapshots
		WHERE timestamp_ms >= $1 AND timestamp_ms <= $2
		ORDER BY timestamp_ms ASC, seq ASC, instrument ASC
	`

	rows, err := s.pool.Query(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("get snapshots by time range: %w", err)
	}
	defer rows.Close()

	return scanSnapshots(rows)
}

// scanSnapshots regroups per-instrument rows into snapshot events.
// Rows must be ordered by (timestamp_ms, seq).
func scanSnapshots(rows pgx.Rows) ([]*domain.MarketEvent, error) {
	var events []*domain.MarketEvent
	var current *domain.MarketEvent

	for rows.Next() {
		var (
			timestampMs, seq int64
			instrument       string
			data             []byte
		)
		if err := rows.Scan(&timestampMs, &seq, &instrument, &data); err != nil {
			return nil, fmt.Errorf("scan snapshot row: %w", err)
		}

		var fields domain.FieldMap
		if err := json.Unmarshal(data, &fields); err != nil {
			return nil, fmt.Errorf("decode fields for %s: %w", instrument, err)
		}

		if current == nil || current.TimestampMs != timestampMs || current.Seq != seq {
			current = domain.NewSnapshotEvent(timestampMs, domain.OrderBookSnapshot{})
			current.Seq = seq
			events = append(events, current)
		}
		current.Snapshot[instrument] = fields
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshot rows: %w", err)
	}

	return events, nil
}
