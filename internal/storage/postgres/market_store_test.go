package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orderbook-feature-lab/internal/domain"
	"orderbook-feature-lab/internal/storage"
)

func TestSnapshotStore_InsertBulkAndRegroup(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewSnapshotStore(pool)
	ctx := context.Background()

	first := domain.NewSnapshotEvent(1000, domain.OrderBookSnapshot{
		"A": {domain.FieldBestBid: 9.95, domain.FieldBestAsk: 10.05, domain.FieldCumulativeVolume: 100},
		"B": {domain.FieldBestBid: 99, domain.FieldBestAsk: 101},
	})
	first.Seq = 1
	second := domain.NewSnapshotEvent(2000, domain.OrderBookSnapshot{
		"A": {domain.FieldBestBid: 9.96, domain.FieldBestAsk: 10.04},
	})
	second.Seq = 2

	require.NoError(t, store.InsertBulk(ctx, []*domain.MarketEvent{second, first}))

	got, err := store.GetByTimeRange(ctx, 1000, 2000)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, int64(1000), got[0].TimestampMs)
	assert.Equal(t, int64(1), got[0].Seq)
	assert.Equal(t, first.Snapshot, got[0].Snapshot)
	assert.Equal(t, second.Snapshot, got[1].Snapshot)
}

func TestSnapshotStore_DuplicateRollsBack(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewSnapshotStore(pool)
	ctx := context.Background()

	ev := domain.NewSnapshotEvent(1000, domain.OrderBookSnapshot{"A": {domain.FieldBestBid: 1}})
	require.NoError(t, store.InsertBulk(ctx, []*domain.MarketEvent{ev}))

	fresh := domain.NewSnapshotEvent(3000, domain.OrderBookSnapshot{"A": {domain.FieldBestBid: 2}})
	err := store.InsertBulk(ctx, []*domain.MarketEvent{fresh, ev})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	got, err := store.GetByTimeRange(ctx, 0, 5000)
	require.NoError(t, err)
	assert.Len(t, got, 1, "failed batch must not leave partial rows")
}

func TestTradeStore_InsertBulkAndGet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewTradeStore(pool)
	ctx := context.Background()

	trades := []*domain.MarketEvent{
		domain.NewTradeEvent(2000, domain.TradeFlag{Instrument: "A", CumulativeVolume: 190, Aggressor: domain.SideAsk}),
		domain.NewTradeEvent(1000, domain.TradeFlag{Instrument: "A", CumulativeVolume: 140, Price: 9.95}),
		domain.NewTradeEvent(1000, domain.TradeFlag{Instrument: "B", CumulativeVolume: 7, Aggressor: domain.SideBid}),
	}
	require.NoError(t, store.InsertBulk(ctx, trades))

	got, err := store.GetByTimeRange(ctx, 1000, 1999)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "A", got[0].Trade.Instrument)
	assert.Equal(t, 9.95, got[0].Trade.Price)
	assert.Equal(t, domain.SideUnknown, got[0].Trade.Aggressor)
	assert.Equal(t, "B", got[1].Trade.Instrument)
	assert.Equal(t, domain.SideBid, got[1].Trade.Aggressor)

	err = store.InsertBulk(ctx, trades[:1])
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestTradeStore_RejectsSnapshots(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewTradeStore(pool)

	err := store.InsertBulk(context.Background(), []*domain.MarketEvent{
		domain.NewSnapshotEvent(1000, domain.OrderBookSnapshot{"A": {}}),
	})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}
