package replay

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"orderbook-feature-lab/internal/domain"
	"orderbook-feature-lab/internal/observability"
)

// OrderGuard enforces non-decreasing timestamps per instrument in front of
// an engine. Live feeds only guarantee ordering per instrument, so an event
// that moves any of its instruments backwards is dropped (or rejected with
// ErrInvalidOrdering in strict mode).
type OrderGuard struct {
	next    Engine
	strict  bool
	last    map[string]int64
	dropped int
	logger  *zap.Logger
	metrics *observability.Metrics
}

// GuardOption configures an OrderGuard.
type GuardOption func(*OrderGuard)

// WithStrict makes the guard return ErrInvalidOrdering instead of dropping.
func WithStrict() GuardOption {
	return func(g *OrderGuard) { g.strict = true }
}

// WithGuardLogger sets the logger for dropped events.
func WithGuardLogger(logger *zap.Logger) GuardOption {
	return func(g *OrderGuard) { g.logger = logger.Named("order_guard") }
}

// WithGuardMetrics sets the metrics sink for dropped events.
func WithGuardMetrics(m *observability.Metrics) GuardOption {
	return func(g *OrderGuard) { g.metrics = m }
}

// NewOrderGuard wraps next.
func NewOrderGuard(next Engine, opts ...GuardOption) *OrderGuard {
	g := &OrderGuard{
		next:   next,
		last:   make(map[string]int64),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// OnEvent forwards ev if none of its instruments has seen a later timestamp.
func (g *OrderGuard) OnEvent(ctx context.Context, ev *domain.MarketEvent) error {
	for _, id := range ev.Instruments() {
		if last, ok := g.last[id]; ok && ev.TimestampMs < last {
			if g.strict {
				return fmt.Errorf("%w: instrument %s at %d after %d", ErrInvalidOrdering, id, ev.TimestampMs, last)
			}
			g.dropped++
			g.metrics.RecordOutOfOrder()
			g.logger.Warn("dropping out-of-order event",
				zap.String("instrument", id),
				zap.Int64("ts_ms", ev.TimestampMs),
				zap.Int64("last_ts_ms", last),
			)
			return nil
		}
	}
	for _, id := range ev.Instruments() {
		g.last[id] = ev.TimestampMs
	}
	return g.next.OnEvent(ctx, ev)
}

// IsComplete reports completion of the wrapped engine when it tracks one.
func (g *OrderGuard) IsComplete() bool {
	c, ok := g.next.(interface{ IsComplete() bool })
	return ok && c.IsComplete()
}

// Dropped returns the number of events dropped so far.
func (g *OrderGuard) Dropped() int {
	return g.dropped
}
