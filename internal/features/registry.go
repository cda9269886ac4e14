package features

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"orderbook-feature-lab/internal/domain"
	"orderbook-feature-lab/internal/observability"
	"orderbook-feature-lab/internal/results"
)

// Registry holds a set of handlers and broadcasts every event to all of
// them in registration order, then collects their output in one table.
//
// Dispatch is single-threaded: each event is fully handled by every handler
// before the next is accepted. Handlers share no mutable state; the book is
// owned by the registry and read-only to them.
type Registry struct {
	handlers []Handler
	columns  map[string][]columnOwner // feature column -> handlers writing it

	book     *BookState
	table    *results.Table
	issues   []Issue
	finished bool

	logger  *zap.Logger
	metrics *observability.Metrics
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the registry logger.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *observability.Metrics) Option {
	return func(r *Registry) { r.metrics = m }
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		columns: make(map[string][]columnOwner),
		book:    NewBookState(),
		table:   results.NewTable(),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.Named("registry")
	return r
}

// Register adds a handler. Two handlers may write the same feature column
// only for disjoint instruments; a handler over all instruments overlaps
// every other.
func (r *Registry) Register(h Handler) error {
	instrument := h.Window().Instrument
	for _, f := range h.Features() {
		for _, owner := range r.columns[f] {
			if owner.overlaps(instrument) {
				return fmt.Errorf("%w: %s for %s (owned by %s)", ErrDuplicateFeature, f, instrument, owner.handler)
			}
		}
	}
	for _, f := range h.Features() {
		r.columns[f] = append(r.columns[f], columnOwner{instrument: instrument, handler: h.Name()})
	}
	r.handlers = append(r.handlers, h)
	r.updatePhaseGauge()
	return nil
}

// columnOwner is one handler's claim on a feature column.
type columnOwner struct {
	instrument string
	handler    string
}

func (o columnOwner) overlaps(instrument string) bool {
	return o.instrument == instrument ||
		o.instrument == domain.AllInstruments ||
		instrument == domain.AllInstruments
}

// Len returns the number of registered handlers.
func (r *Registry) Len() int {
	return len(r.handlers)
}

// Handlers returns the registered handlers in registration order.
func (r *Registry) Handlers() []Handler {
	out := make([]Handler, len(r.handlers))
	copy(out, r.handlers)
	return out
}

// OnEvent implements replay.Engine.
func (r *Registry) OnEvent(ctx context.Context, ev *domain.MarketEvent) error {
	return r.Dispatch(ctx, ev)
}

// Dispatch folds ev into the book and delivers it to every handler.
// Handler failures are isolated and recorded; only malformed events and
// context cancellation are returned as errors.
func (r *Registry) Dispatch(ctx context.Context, ev *domain.MarketEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validateEvent(ev); err != nil {
		if r.metrics != nil {
			r.metrics.InvalidEvents.Inc()
		}
		return err
	}

	start := time.Now()

	if ev.Kind == domain.EventKindSnapshot {
		if err := ev.Snapshot.Validate(); err != nil {
			r.logger.Warn("snapshot violates book invariants",
				zap.Int64("ts_ms", ev.TimestampMs),
				zap.Error(err),
			)
			if r.metrics != nil {
				r.metrics.BookInvariantFails.Inc()
			}
		}
	}
	r.book.Apply(ev)

	for _, h := range r.handlers {
		before := h.Phase()
		r.handle(h, ev)
		if after := h.Phase(); after != before {
			r.logger.Debug("handler phase changed",
				zap.String("handler", h.Name()),
				zap.Stringer("from", before),
				zap.Stringer("to", after),
				zap.Int64("ts_ms", ev.TimestampMs),
			)
			r.updatePhaseGauge()
		}
	}

	if r.metrics != nil {
		r.metrics.EventsDispatched.WithLabelValues(string(ev.Kind)).Inc()
		r.metrics.DispatchLatency.WithLabelValues(string(ev.Kind)).Observe(time.Since(start).Seconds())
	}
	return nil
}

// handle runs one handler and contains any panic it raises.
func (r *Registry) handle(h Handler, ev *domain.MarketEvent) {
	out := &handlerOutput{registry: r, handler: h}
	defer func() {
		if p := recover(); p != nil {
			out.Report(h.Window().Instrument, fmt.Errorf("%w: %v", ErrHandlerPanic, p))
		}
	}()
	h.Handle(ev, r.book, out)
}

// IsComplete reports whether every handler is Done.
func (r *Registry) IsComplete() bool {
	for _, h := range r.handlers {
		if h.Phase() != PhaseDone {
			return false
		}
	}
	return true
}

// Drain returns the result table. It fails with ErrNotComplete unless every
// handler is Done.
func (r *Registry) Drain() (*results.Table, error) {
	if !r.IsComplete() {
		return nil, ErrNotComplete
	}
	return r.table, nil
}

// Finish ends the run after the stream stopped. Handlers that are not Done
// are reported with ErrIncompleteWindow and their features are omitted.
// Returns the table and every issue recorded during the run.
func (r *Registry) Finish() (*results.Table, []Issue) {
	if r.finished {
		return r.table, r.Issues()
	}
	r.finished = true
	for _, h := range r.handlers {
		if h.Phase() == PhaseDone {
			continue
		}
		r.record(h, Issue{
			Instrument: h.Window().Instrument,
			Handler:    h.Name(),
			Err:        fmt.Errorf("%w: handler %s is %s", ErrIncompleteWindow, h.Name(), h.Phase()),
		})
	}
	return r.table, r.Issues()
}

// Issues returns the issues recorded so far, in the order they occurred.
func (r *Registry) Issues() []Issue {
	out := make([]Issue, len(r.issues))
	copy(out, r.issues)
	return out
}

func (r *Registry) record(h Handler, issue Issue) {
	r.issues = append(r.issues, issue)
	r.logger.Warn("handler issue",
		zap.String("handler", issue.Handler),
		zap.String("instrument", issue.Instrument),
		zap.Error(issue.Err),
	)
	if r.metrics != nil {
		r.metrics.HandlerIssues.WithLabelValues(string(h.Kind()), errorType(issue.Err)).Inc()
	}
}

func (r *Registry) updatePhaseGauge() {
	if r.metrics == nil {
		return
	}
	counts := map[Phase]int{PhaseIdle: 0, PhaseActive: 0, PhaseDone: 0}
	for _, h := range r.handlers {
		counts[h.Phase()]++
	}
	for p, n := range counts {
		r.metrics.HandlersByPhase.WithLabelValues(p.String()).Set(float64(n))
	}
}

// handlerOutput is the Output given to one handler for one event.
type handlerOutput struct {
	registry *Registry
	handler  Handler
}

func (o *handlerOutput) Write(instrument, feature string, value float64) {
	r := o.registry
	if r.table.Set(instrument, feature, value) {
		r.record(o.handler, Issue{
			Instrument: instrument,
			Handler:    o.handler.Name(),
			Err:        fmt.Errorf("%w: feature %s", ErrDuplicateWrite, feature),
		})
	}
	if r.metrics != nil {
		r.metrics.FeaturesWritten.Inc()
	}
}

func (o *handlerOutput) Report(instrument string, err error) {
	r := o.registry
	switch {
	case errors.Is(err, ErrUnclassifiableTrade):
		r.logger.Debug("trade discounted from both sides",
			zap.String("handler", o.handler.Name()),
			zap.String("instrument", instrument),
			zap.Error(err),
		)
		if r.metrics != nil {
			r.metrics.UnclassifiedTrades.Inc()
		}
	case errors.Is(err, ErrDegenerateDivision):
		if r.metrics != nil {
			r.metrics.DegenerateDivisions.Inc()
		}
		r.record(o.handler, Issue{Instrument: instrument, Handler: o.handler.Name(), Err: err})
	default:
		r.record(o.handler, Issue{Instrument: instrument, Handler: o.handler.Name(), Err: err})
	}
}

func validateEvent(ev *domain.MarketEvent) error {
	if ev == nil {
		return fmt.Errorf("%w: nil event", ErrInvalidEvent)
	}
	switch ev.Kind {
	case domain.EventKindSnapshot:
		if ev.Snapshot == nil {
			return fmt.Errorf("%w: snapshot event without snapshot", ErrInvalidEvent)
		}
	case domain.EventKindTrade:
		if ev.Trade == nil || ev.Trade.Instrument == "" {
			return fmt.Errorf("%w: trade event without instrument", ErrInvalidEvent)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidEvent, ev.Kind)
	}
	return nil
}

func errorType(err error) string {
	switch {
	case errors.Is(err, ErrMissingInstrumentState):
		return "missing_instrument_state"
	case errors.Is(err, ErrDegenerateDivision):
		return "degenerate_division"
	case errors.Is(err, ErrIncompleteWindow):
		return "incomplete_window"
	case errors.Is(err, ErrDuplicateWrite):
		return "duplicate_write"
	case errors.Is(err, ErrHandlerPanic):
		return "panic"
	default:
		return "other"
	}
}
