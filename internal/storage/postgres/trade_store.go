package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"orderbook-feature-lab/internal/domain"
	"orderbook-feature-lab/internal/storage"
)

// TradeStore implements storage.TradeStore using PostgreSQL.
type TradeStore struct {
	pool *Pool
}

// NewTradeStore creates a new TradeStore.
func NewTradeStore(pool *Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TradeStore = (*TradeStore)(nil)

// InsertBulk adds trade events atomically. Fails entire batch on any duplicate.
func (s *TradeStore) InsertBulk(ctx context.Context, events []*domain.MarketEvent) error {
	if len(events) == 0 {
		return nil
	}

	for _, ev := range events {
		if ev == nil || ev.Kind != domain.EventKindTrade || ev.Trade == nil || ev.Trade.Instrument == "" {
			return storage.ErrInvalidInput
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO trade_prints (
			instrument, timestamp_ms, seq, cumulative_volume, price, aggressor
		) VALUES ($1, $2, $3, $4, $5, $6)
	`

	for _, ev := range events {
		_, err := tx.Exec(ctx, query,
			ev.Trade.Instrument,
			ev.TimestampMs,
			ev.Seq,
			ev.Trade.CumulativeVolume,
			ev.Trade.Price,
			int16(ev.Trade.Aggressor),
		)
		if err != nil {
			return storeError("insert trade in bulk", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetByTimeRange retrieves trades within [start, end] (inclusive).
func (s *TradeStore) GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.MarketEvent, error) {
	query := `
		SELECT instrument, timestamp_ms, seq, cumulative_volume, price, aggressor
		FROM trade_prints
		WHERE timestamp_ms >= $1 AND timestamp_ms <= $2
		ORDER BY timestamp_ms ASC, seq ASC, instrument ASC
	`

	rows, err := s.pool.Query(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("get trades by time range: %w", err)
	}
	defer rows.Close()

	return scanTrades(rows)
}

// scanTrades scans multiple rows into trade events.
func scanTrades(rows pgx.Rows) ([]*domain.MarketEvent, error) {
	var events []*domain.MarketEvent

	for rows.Next() {
		var (
			trade            domain.TradeFlag
			timestampMs, seq int64
			aggressor        int16
		)

		err := rows.Scan(
			&trade.Instrument,
			&timestampMs,
			&seq,
			&trade.CumulativeVolume,
			&trade.Price,
			&aggressor,
		)
		if err != nil {
			return nil, fmt.Errorf("scan trade row: %w", err)
		}
		trade.Aggressor = domain.Side(aggressor)

		ev := domain.NewTradeEvent(timestampMs, trade)
		ev.Seq = seq
		events = append(events, ev)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trade rows: %w", err)
	}

	return events, nil
}
