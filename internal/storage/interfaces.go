package storage

import (
	"context"

	"orderbook-feature-lab/internal/domain"
	"orderbook-feature-lab/internal/results"
)

// SnapshotStore provides access to order book snapshots.
type SnapshotStore interface {
	// InsertBulk adds snapshot events atomically. The key is (timestamp_ms, seq, instrument).
	// Fails entire batch on any duplicate or non-snapshot event.
	InsertBulk(ctx context.Context, events []*domain.MarketEvent) error

	// GetByTimeRange retrieves snapshots within [start, end] (inclusive),
	// ordered by (timestamp_ms, seq). Rows sharing a key are regrouped into
	// one event.
	GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.MarketEvent, error)
}

// TradeStore provides access to trade prints.
type TradeStore interface {
	// InsertBulk adds trade events atomically. The key is (instrument, timestamp_ms, seq).
	// Fails entire batch on any duplicate or non-trade event.
	InsertBulk(ctx context.Context, events []*domain.MarketEvent) error

	// GetByTimeRange retrieves trades within [start, end] (inclusive),
	// ordered by (timestamp_ms, seq, instrument).
	GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.MarketEvent, error)
}

// FeatureStore provides access to persisted result tables.
type FeatureStore interface {
	// InsertRun stores a run and its cells. Returns ErrDuplicateKey if run_id exists.
	InsertRun(ctx context.Context, run *domain.FeatureRun, cells []results.Cell) error

	// GetRun retrieves run metadata. Returns ErrNotFound if not exists.
	GetRun(ctx context.Context, runID string) (*domain.FeatureRun, error)

	// GetCells retrieves all cells of a run, ordered by (instrument, feature).
	GetCells(ctx context.Context, runID string) ([]results.Cell, error)
}
