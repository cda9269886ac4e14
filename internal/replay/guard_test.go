package replay

import (
	"context"
	"errors"
	"testing"

	"orderbook-feature-lab/internal/domain"
)

func TestOrderGuard_DropsPerInstrumentRegression(t *testing.T) {
	engine := &collectingEngine{}
	guard := NewOrderGuard(engine)
	ctx := context.Background()

	events := []*domain.MarketEvent{
		trade(2000, 0, "A", 10),
		trade(1000, 0, "B", 10),
		trade(1500, 0, "A", 11),
		// A regresses inside a multi-instrument snapshot.
		snapshot(1800, 0, "A", "B"),
		trade(2000, 0, "A", 12),
	}
	for _, ev := range events {
		if err := guard.OnEvent(ctx, ev); err != nil {
			t.Fatalf("OnEvent failed: %v", err)
		}
	}

	if len(engine.events) != 3 {
		t.Fatalf("Expected 3 forwarded events, got %d", len(engine.events))
	}
	if guard.Dropped() != 2 {
		t.Errorf("Expected 2 dropped events, got %d", guard.Dropped())
	}
}

func TestOrderGuard_Strict(t *testing.T) {
	guard := NewOrderGuard(&collectingEngine{}, WithStrict())
	ctx := context.Background()

	if err := guard.OnEvent(ctx, trade(2000, 0, "A", 10)); err != nil {
		t.Fatalf("OnEvent failed: %v", err)
	}
	err := guard.OnEvent(ctx, trade(1000, 0, "A", 11))
	if !errors.Is(err, ErrInvalidOrdering) {
		t.Errorf("Expected ErrInvalidOrdering, got %v", err)
	}
}

func TestOrderGuard_ForwardsCompletion(t *testing.T) {
	engine := &completingEngine{limit: 1}
	guard := NewOrderGuard(engine)

	if guard.IsComplete() {
		t.Fatal("Expected incomplete before any event")
	}
	if err := guard.OnEvent(context.Background(), trade(1, 0, "A", 1)); err != nil {
		t.Fatalf("OnEvent failed: %v", err)
	}
	if !guard.IsComplete() {
		t.Error("Expected complete after limit reached")
	}
	if NewOrderGuard(&collectingEngine{}).IsComplete() {
		t.Error("Engine without completion tracking must never be complete")
	}
}
