package features

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orderbook-feature-lab/internal/domain"
)

func cumBook(cum float64) domain.FieldMap {
	return quotes(9.95, 10.05, float64(domain.FieldCumulativeVolume), cum)
}

func cumulativeRow(t *testing.T, events ...*domain.MarketEvent) map[string]float64 {
	t.Helper()
	h := NewCumulativeTickVolume("", "", mustWindow(t, 0, 10, "A"))
	table, _ := run(t, []Handler{h}, events...)
	row := table.Row("A")
	require.NotEmpty(t, row)
	return row
}

func TestCumulativeTickVolume_TwoTrades(t *testing.T) {
	row := cumulativeRow(t,
		snapshotAt(0, map[string]domain.FieldMap{"A": cumBook(100)}),
		tradeAt(2, "A", 140, domain.SideBid),
		tradeAt(5, "A", 190, domain.SideAsk),
		snapshotAt(10, map[string]domain.FieldMap{"A": cumBook(190)}),
	)

	assert.Equal(t, map[string]float64{
		FeatureCubidTime: 1,
		FeatureCuaskTime: 1,
		FeatureCubidVol:  40,
		FeatureCuaskVol:  50,
		FeatureTotalVol:  90,
		FeatureVolDiff:   10,
		FeatureTimeDiff:  0,
	}, row)
}

func TestCumulativeTickVolume_NoTradesWritesZeros(t *testing.T) {
	row := cumulativeRow(t,
		snapshotAt(0, map[string]domain.FieldMap{"A": cumBook(100)}),
		snapshotAt(10, map[string]domain.FieldMap{"A": cumBook(100)}),
	)

	require.Len(t, row, len(CumulativeTickColumns))
	for _, c := range CumulativeTickColumns {
		assert.Equal(t, 0.0, row[c], c)
	}
}

func TestCumulativeTickVolume_DuplicateDeliveryCountedOnce(t *testing.T) {
	row := cumulativeRow(t,
		snapshotAt(0, map[string]domain.FieldMap{"A": cumBook(100)}),
		tradeAt(2, "A", 140, domain.SideBid),
		tradeAt(2, "A", 140, domain.SideBid),
		tradeAt(3, "A", 130, domain.SideBid),
		snapshotAt(10, map[string]domain.FieldMap{"A": cumBook(140)}),
	)

	assert.Equal(t, 1.0, row[FeatureCubidTime])
	assert.Equal(t, 40.0, row[FeatureCubidVol])
}

func TestCumulativeTickVolume_BoundaryTradeExcluded(t *testing.T) {
	row := cumulativeRow(t,
		snapshotAt(0, map[string]domain.FieldMap{"A": cumBook(100)}),
		tradeAt(10, "A", 150, domain.SideAsk),
	)

	assert.Equal(t, 0.0, row[FeatureCuaskTime])
	assert.Equal(t, 0.0, row[FeatureTotalVol])
}

func TestCumulativeTickVolume_UnclassifiedTradeAdvancesBaseline(t *testing.T) {
	h := NewCumulativeTickVolume("", "", mustWindow(t, 0, 10, "A"))
	r := NewRegistry()
	require.NoError(t, r.Register(h))

	for _, ev := range []*domain.MarketEvent{
		snapshotAt(0, map[string]domain.FieldMap{"A": cumBook(100)}),
		pricedTradeAt(2, "A", 120, 10.0),  // inside the spread
		pricedTradeAt(3, "A", 125, 10.05), // at the ask
		snapshotAt(10, map[string]domain.FieldMap{"A": cumBook(125)}),
	} {
		require.NoError(t, r.Dispatch(t.Context(), ev))
	}
	table, issues := r.Finish()

	row := table.Row("A")
	assert.Equal(t, 0.0, row[FeatureCubidTime])
	assert.Equal(t, 1.0, row[FeatureCuaskTime])
	assert.Equal(t, 5.0, row[FeatureCuaskVol])
	assert.Equal(t, 5.0, row[FeatureTotalVol])
	assert.Empty(t, issues, "unclassifiable trades are not issues")
}

func TestCumulativeTickVolume_MissingBaselineFirstTradeSetsIt(t *testing.T) {
	row := cumulativeRow(t,
		snapshotAt(0, map[string]domain.FieldMap{"A": quotes(9.95, 10.05)}),
		tradeAt(2, "A", 500, domain.SideAsk),
		tradeAt(3, "A", 530, domain.SideAsk),
		snapshotAt(10, map[string]domain.FieldMap{"A": quotes(9.95, 10.05)}),
	)

	assert.Equal(t, 2.0, row[FeatureCuaskTime])
	assert.Equal(t, 30.0, row[FeatureCuaskVol])
}

func TestCumulativeTickVolume_PrefixedColumns(t *testing.T) {
	h := NewCumulativeTickVolume("", "fut_", mustWindow(t, 0, 10, "A"))

	assert.Equal(t, "fut_cumulative_tick_volume", h.Name())
	assert.Contains(t, h.Features(), "fut_cubid_time")
	assert.Contains(t, h.Features(), "fut_time_diff")
	assert.Len(t, h.Features(), len(CumulativeTickColumns))
}

func TestCumulativeTickVolume_AllModeQuietInstrumentGetsZeros(t *testing.T) {
	h := NewCumulativeTickVolume("", "", mustWindow(t, 0, 10, domain.AllInstruments))

	table, issues := run(t, []Handler{h},
		snapshotAt(0, map[string]domain.FieldMap{"A": cumBook(100), "B": cumBook(7)}),
		tradeAt(4, "A", 110, domain.SideAsk),
		snapshotAt(10, map[string]domain.FieldMap{"A": cumBook(110)}),
	)

	assert.Empty(t, issues)
	assert.Equal(t, 10.0, table.Row("A")[FeatureCuaskVol])
	b := table.Row("B")
	require.Len(t, b, len(CumulativeTickColumns))
	assert.Equal(t, 0.0, b[FeatureTotalVol])
}

func TestCumulativeTickVolume_ColdStartTradeInstrument(t *testing.T) {
	h := NewCumulativeTickVolume("", "", mustWindow(t, 0, 10, domain.AllInstruments))

	table, issues := run(t, []Handler{h},
		snapshotAt(0, map[string]domain.FieldMap{"A": cumBook(100)}),
		tradeAt(4, "C", 10, domain.SideAsk),
		snapshotAt(10, map[string]domain.FieldMap{"A": cumBook(100)}),
	)

	assert.Empty(t, table.Row("C"))
	require.Len(t, issues, 1)
	assert.Equal(t, "C", issues[0].Instrument)
	assert.True(t, errors.Is(issues[0].Err, ErrMissingInstrumentState))
}

// total_vol = cubid_vol + cuask_vol, vol_diff = cuask_vol - cubid_vol and
// time_diff = cuask_time - cubid_time for any trade sequence.
func TestCumulativeTickVolume_Invariants(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for trial := 0; trial < 100; trial++ {
		events := []*domain.MarketEvent{snapshotAt(0, map[string]domain.FieldMap{"A": cumBook(0)})}
		cum := 0.0
		for ts := int64(1); ts < 10; ts++ {
			cum += float64(rng.Intn(5))
			side := domain.Side(rng.Intn(3))
			events = append(events, tradeAt(ts, "A", cum, side))
		}
		events = append(events, snapshotAt(10, map[string]domain.FieldMap{"A": cumBook(cum)}))

		row := cumulativeRow(t, events...)
		require.Equal(t, row[FeatureCubidVol]+row[FeatureCuaskVol], row[FeatureTotalVol])
		require.Equal(t, row[FeatureCuaskVol]-row[FeatureCubidVol], row[FeatureVolDiff])
		require.Equal(t, row[FeatureCuaskTime]-row[FeatureCubidTime], row[FeatureTimeDiff])
		require.LessOrEqual(t, row[FeatureTotalVol], cum)
	}
}

func TestLastTickVolume(t *testing.T) {
	tests := []struct {
		name   string
		events []*domain.MarketEvent
		want   float64
	}{
		{
			name: "last trade ask-initiated",
			events: []*domain.MarketEvent{
				tradeAt(2, "A", 140, domain.SideBid),
				tradeAt(5, "A", 190, domain.SideAsk),
			},
			want: 50,
		},
		{
			name: "last trade bid-initiated",
			events: []*domain.MarketEvent{
				tradeAt(5, "A", 140, domain.SideBid),
			},
			want: -40,
		},
		{
			name: "last trade unclassifiable",
			events: []*domain.MarketEvent{
				tradeAt(2, "A", 140, domain.SideBid),
				pricedTradeAt(5, "A", 150, 10.0),
			},
			want: 0,
		},
		{
			name: "boundary trade excluded",
			events: []*domain.MarketEvent{
				tradeAt(5, "A", 140, domain.SideBid),
				tradeAt(10, "A", 200, domain.SideAsk),
			},
			want: -40,
		},
		{
			name: "no trades",
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewLastTickVolume("", mustWindow(t, 0, 10, "A"))
			events := append([]*domain.MarketEvent{snapshotAt(0, map[string]domain.FieldMap{"A": cumBook(100)})}, tt.events...)
			events = append(events, snapshotAt(10, map[string]domain.FieldMap{"A": cumBook(100)}))

			table, _ := run(t, []Handler{h}, events...)

			v, ok := table.Get("A", DefaultLastTickVolumeFeature)
			require.True(t, ok)
			assert.Equal(t, tt.want, v)
		})
	}
}
