package feed

import (
	"context"

	"orderbook-feature-lab/internal/domain"
	"orderbook-feature-lab/internal/observability"
	"orderbook-feature-lab/internal/replay"
)

// Queue is the bounded hand-off between a feed source and the engine.
// Push blocks when full, so a slow engine slows the source down instead of
// dropping events.
type Queue struct {
	ch      chan *domain.MarketEvent
	metrics *observability.Metrics
}

// NewQueue creates a queue holding up to size events.
func NewQueue(size int, metrics *observability.Metrics) *Queue {
	if size < 1 {
		size = 1
	}
	return &Queue{ch: make(chan *domain.MarketEvent, size), metrics: metrics}
}

// Push enqueues ev, waiting for room or ctx cancellation.
func (q *Queue) Push(ctx context.Context, ev *domain.MarketEvent) error {
	select {
	case q.ch <- ev:
		q.metrics.SetQueueDepth(len(q.ch))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close signals that no more events will be pushed.
func (q *Queue) Close() {
	close(q.ch)
}

// Events returns the receive side of the queue.
func (q *Queue) Events() <-chan *domain.MarketEvent {
	return q.ch
}

// Len returns the number of queued events.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Completer is implemented by engines that know when they need no more input.
type Completer interface {
	IsComplete() bool
}

// Drain feeds queued events to engine until the queue is closed, ctx is
// cancelled or the engine reports completion. It returns the number of
// events delivered.
func (q *Queue) Drain(ctx context.Context, engine replay.Engine) (int, error) {
	completer, _ := engine.(Completer)
	n := 0
	for {
		if completer != nil && completer.IsComplete() {
			return n, nil
		}
		select {
		case <-ctx.Done():
			return n, ctx.Err()
		case ev, ok := <-q.ch:
			if !ok {
				return n, nil
			}
			q.metrics.SetQueueDepth(len(q.ch))
			if err := engine.OnEvent(ctx, ev); err != nil {
				return n, err
			}
			n++
		}
	}
}

// Source produces events into a queue until ctx is cancelled.
type Source interface {
	Name() string
	Run(ctx context.Context, q *Queue) error
}

var (
	_ Source = (*WSSource)(nil)
	_ Source = (*RedisSource)(nil)
)
