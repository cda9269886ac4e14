package replay

import (
	"context"
	"errors"
	"testing"

	"orderbook-feature-lab/internal/domain"
	"orderbook-feature-lab/internal/storage/memory"
)

// collectingEngine collects events for verification.
type collectingEngine struct {
	events []*domain.MarketEvent
}

func (e *collectingEngine) OnEvent(_ context.Context, event *domain.MarketEvent) error {
	e.events = append(e.events, event)
	return nil
}

// orderValidatingEngine validates that events are received in order.
type orderValidatingEngine struct {
	last       *domain.MarketEvent
	orderError error
}

func (e *orderValidatingEngine) OnEvent(_ context.Context, event *domain.MarketEvent) error {
	if e.last != nil && compareEvents(e.last, event) > 0 {
		e.orderError = ErrInvalidOrdering
		return e.orderError
	}
	e.last = event
	return nil
}

// completingEngine reports completion after limit events.
type completingEngine struct {
	collectingEngine
	limit int
}

func (e *completingEngine) IsComplete() bool {
	return len(e.events) >= e.limit
}

func snapshot(ts, seq int64, instruments ...string) *domain.MarketEvent {
	book := domain.OrderBookSnapshot{}
	for _, id := range instruments {
		book[id] = domain.FieldMap{domain.FieldBestBid: 9.95, domain.FieldBestAsk: 10.05}
	}
	ev := domain.NewSnapshotEvent(ts, book)
	ev.Seq = seq
	return ev
}

func trade(ts, seq int64, instrument string, cum float64) *domain.MarketEvent {
	ev := domain.NewTradeEvent(ts, domain.TradeFlag{Instrument: instrument, CumulativeVolume: cum})
	ev.Seq = seq
	return ev
}

func seedStores(t *testing.T) (*memory.SnapshotStore, *memory.TradeStore) {
	t.Helper()
	ctx := context.Background()

	snapshots := memory.NewSnapshotStore()
	trades := memory.NewTradeStore()

	if err := snapshots.InsertBulk(ctx, []*domain.MarketEvent{
		snapshot(3000, 3, "A"),
		snapshot(1000, 1, "A", "B"),
		snapshot(2000, 2, "A"),
	}); err != nil {
		t.Fatalf("InsertBulk snapshots failed: %v", err)
	}
	if err := trades.InsertBulk(ctx, []*domain.MarketEvent{
		trade(2000, 2, "A", 150),
		trade(1500, 0, "B", 10),
		trade(2500, 0, "A", 160),
	}); err != nil {
		t.Fatalf("InsertBulk trades failed: %v", err)
	}
	return snapshots, trades
}

func TestRunner_OrdersEventsDeterministically(t *testing.T) {
	snapshots, trades := seedStores(t)
	runner := NewRunner(snapshots, trades)

	engine := &orderValidatingEngine{}
	n, err := runner.Run(context.Background(), 0, 5000, engine)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if n != 6 {
		t.Errorf("Expected 6 events, got %d", n)
	}
	if engine.orderError != nil {
		t.Errorf("Events not in order: %v", engine.orderError)
	}
}

func TestRunner_SnapshotBeforeTradeOnTie(t *testing.T) {
	snapshots, trades := seedStores(t)
	runner := NewRunner(snapshots, trades)

	engine := &collectingEngine{}
	if _, err := runner.Run(context.Background(), 2000, 2000, engine); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(engine.events) != 2 {
		t.Fatalf("Expected 2 events at ts=2000, got %d", len(engine.events))
	}
	if engine.events[0].Kind != domain.EventKindSnapshot {
		t.Errorf("Expected snapshot first, got %s", engine.events[0].Kind)
	}
	if engine.events[1].Kind != domain.EventKindTrade {
		t.Errorf("Expected trade second, got %s", engine.events[1].Kind)
	}
}

func TestRunner_RangeInclusive(t *testing.T) {
	snapshots, trades := seedStores(t)
	runner := NewRunner(snapshots, trades)

	engine := &collectingEngine{}
	n, err := runner.Run(context.Background(), 1500, 2500, engine)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	// trade B@1500, snapshot@2000, trade A@2000, trade A@2500
	if n != 4 {
		t.Errorf("Expected 4 events in [1500, 2500], got %d", n)
	}
}

func TestRunner_StopsWhenEngineComplete(t *testing.T) {
	snapshots, trades := seedStores(t)
	runner := NewRunner(snapshots, trades)

	engine := &completingEngine{limit: 2}
	n, err := runner.Run(context.Background(), 0, 5000, engine)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if n != 2 {
		t.Errorf("Expected replay to stop after 2 events, got %d", n)
	}
}

func TestRunner_PropagatesEngineError(t *testing.T) {
	snapshots, trades := seedStores(t)
	runner := NewRunner(snapshots, trades)

	boom := errors.New("boom")
	_, err := runner.Run(context.Background(), 0, 5000, EngineFunc(func(context.Context, *domain.MarketEvent) error {
		return boom
	}))
	if !errors.Is(err, boom) {
		t.Errorf("Expected engine error, got %v", err)
	}
}

func TestRunner_InvalidRange(t *testing.T) {
	runner := NewRunner(memory.NewSnapshotStore(), memory.NewTradeStore())

	_, err := runner.Run(context.Background(), 10, 5, &collectingEngine{})
	if !errors.Is(err, ErrInvalidRange) {
		t.Errorf("Expected ErrInvalidRange, got %v", err)
	}
}

func TestSortEvents_TieBreakers(t *testing.T) {
	events := []*domain.MarketEvent{
		trade(1000, 1, "B", 1),
		trade(1000, 1, "A", 1),
		snapshot(1000, 1, "C"),
		snapshot(1000, 0, "Z"),
		trade(999, 5, "Z", 1),
	}

	SortEvents(events)

	want := []string{"Z", "Z", "C", "A", "B"}
	for i, ev := range events {
		if got := eventInstrument(ev); got != want[i] {
			t.Errorf("Position %d: got instrument %s, want %s", i, got, want[i])
		}
	}
	if events[1].Kind != domain.EventKindSnapshot || events[1].Seq != 0 {
		t.Errorf("Expected seq 0 snapshot at position 1, got %s seq=%d", events[1].Kind, events[1].Seq)
	}
}
