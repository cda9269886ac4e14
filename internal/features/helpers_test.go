package features

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"orderbook-feature-lab/internal/domain"
	"orderbook-feature-lab/internal/results"
)

// quotes builds a field map with best bid/ask and optional extra fields.
func quotes(bid, ask float64, extra ...float64) domain.FieldMap {
	f := domain.FieldMap{domain.FieldBestBid: bid, domain.FieldBestAsk: ask}
	for i := 0; i+1 < len(extra); i += 2 {
		f[domain.FieldCode(extra[i])] = extra[i+1]
	}
	return f
}

func snapshotAt(ts int64, book map[string]domain.FieldMap) *domain.MarketEvent {
	return domain.NewSnapshotEvent(ts, domain.OrderBookSnapshot(book))
}

func tradeAt(ts int64, instrument string, cum float64, side domain.Side) *domain.MarketEvent {
	return domain.NewTradeEvent(ts, domain.TradeFlag{Instrument: instrument, CumulativeVolume: cum, Aggressor: side})
}

func pricedTradeAt(ts int64, instrument string, cum, price float64) *domain.MarketEvent {
	return domain.NewTradeEvent(ts, domain.TradeFlag{Instrument: instrument, CumulativeVolume: cum, Price: price})
}

func mustWindow(t *testing.T, start, end int64, instrument string) domain.Window {
	t.Helper()
	w, err := domain.NewWindow(start, end, instrument)
	require.NoError(t, err)
	return w
}

// run registers handlers, plays events, and returns the finished table and issues.
func run(t *testing.T, handlers []Handler, events ...*domain.MarketEvent) (*results.Table, []Issue) {
	t.Helper()
	r := NewRegistry()
	for _, h := range handlers {
		require.NoError(t, r.Register(h))
	}
	ctx := context.Background()
	for _, ev := range events {
		require.NoError(t, r.Dispatch(ctx, ev))
	}
	return r.Finish()
}

// countingHooks counts hook invocations.
type countingHooks struct {
	opens, updates, closes int
	updateTimes            []int64
}

func (c *countingHooks) OnOpen(*Scope) error { c.opens++; return nil }

func (c *countingHooks) OnUpdate(s *Scope) error {
	c.updates++
	c.updateTimes = append(c.updateTimes, s.Event.TimestampMs)
	return nil
}

func (c *countingHooks) OnClose(*Scope, Writer) error { c.closes++; return nil }

// recordingOutput collects writes and reports without a registry.
type recordingOutput struct {
	writes  map[string]float64
	reports []error
}

func newRecordingOutput() *recordingOutput {
	return &recordingOutput{writes: make(map[string]float64)}
}

func (o *recordingOutput) Write(instrument, feature string, value float64) {
	o.writes[instrument+"|"+feature] = value
}

func (o *recordingOutput) Report(_ string, err error) {
	o.reports = append(o.reports, err)
}
