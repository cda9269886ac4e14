package clickhouse

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orderbook-feature-lab/internal/domain"
	"orderbook-feature-lab/internal/results"
	"orderbook-feature-lab/internal/storage"
)

func TestFeatureStore_InsertRun(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewFeatureStore(conn)
	ctx := context.Background()

	run := &domain.FeatureRun{
		RunID:       "run-1",
		Mode:        "replay",
		FromMs:      -5000,
		ToMs:        10_000,
		Handlers:    2,
		Issues:      1,
		CreatedAtMs: 1_700_000_000_000,
	}
	cells := []results.Cell{
		{Instrument: "B", Feature: "mid_price_return", Value: math.Inf(-1)},
		{Instrument: "A", Feature: "total_vol", Value: 90},
		{Instrument: "A", Feature: "cubid_vol", Value: 40},
	}

	require.NoError(t, store.InsertRun(ctx, run, cells))

	got, err := store.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, run, got)

	stored, err := store.GetCells(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, stored, 3)
	assert.Equal(t, "cubid_vol", stored[0].Feature)
	assert.Equal(t, 40.0, stored[0].Value)
	assert.Equal(t, "total_vol", stored[1].Feature)
	assert.True(t, math.IsInf(stored[2].Value, -1))
}

func TestFeatureStore_DuplicateRun(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewFeatureStore(conn)
	ctx := context.Background()

	run := &domain.FeatureRun{RunID: "run-1", Mode: "live"}
	require.NoError(t, store.InsertRun(ctx, run, nil))

	err := store.InsertRun(ctx, run, nil)
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestFeatureStore_DuplicateCellInBatch(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewFeatureStore(conn)
	ctx := context.Background()

	err := store.InsertRun(ctx, &domain.FeatureRun{RunID: "run-2"}, []results.Cell{
		{Instrument: "A", Feature: "x", Value: 1},
		{Instrument: "A", Feature: "x", Value: 2},
	})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	_, err = store.GetRun(ctx, "run-2")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
