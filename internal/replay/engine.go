package replay

import (
	"context"

	"orderbook-feature-lab/internal/domain"
)

// Engine processes market events in deterministic order.
type Engine interface {
	// OnEvent is called for each event in order.
	// Events are ordered by (timestamp, seq, kind, instrument).
	OnEvent(ctx context.Context, event *domain.MarketEvent) error
}

// EngineFunc adapts a function to the Engine interface.
type EngineFunc func(ctx context.Context, event *domain.MarketEvent) error

// OnEvent calls f(ctx, event).
func (f EngineFunc) OnEvent(ctx context.Context, event *domain.MarketEvent) error {
	return f(ctx, event)
}
