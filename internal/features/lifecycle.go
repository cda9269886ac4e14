// Package features implements windowed feature handlers over a market event
// stream and the registry that dispatches events to them.
package features

import (
	"fmt"
	"sort"

	"orderbook-feature-lab/internal/domain"
)

// Phase is the lifecycle state of a handler.
type Phase int

// Phase constants. Transitions are monotonic: Idle -> Active -> Done.
const (
	PhaseIdle Phase = iota
	PhaseActive
	PhaseDone
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseActive:
		return "active"
	case PhaseDone:
		return "done"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Writer receives feature values at window close.
type Writer interface {
	Write(instrument, feature string, value float64)
}

// Output is where a handler sends results and non-fatal problems.
// The registry provides one Output per handler.
type Output interface {
	Writer
	Report(instrument string, err error)
}

// Hooks are the variant-specific parts of a handler.
//
// OnOpen is called exactly once when the window opens, OnClose exactly once
// when it closes. OnUpdate is called for every event in between and once more
// with the closing event, so it must tolerate seeing an event twice.
type Hooks interface {
	OnOpen(s *Scope) error
	OnUpdate(s *Scope) error
	OnClose(s *Scope, w Writer) error
}

// Handler is what the registry drives.
type Handler interface {
	Name() string
	Kind() domain.HandlerKind
	Window() domain.Window
	Features() []string
	Phase() Phase
	Handle(ev *domain.MarketEvent, book Book, out Output)
}

// Windowed drives Hooks through the Idle -> Active -> Done lifecycle
// against a half-open [start, end) window.
type Windowed struct {
	kind     domain.HandlerKind
	name     string
	window   domain.Window
	features []string
	hooks    Hooks

	phase  Phase
	failed map[string]struct{}
}

// NewWindowed wraps hooks with the shared lifecycle.
func NewWindowed(kind domain.HandlerKind, name string, window domain.Window, features []string, hooks Hooks) *Windowed {
	return &Windowed{
		kind:     kind,
		name:     name,
		window:   window,
		features: features,
		hooks:    hooks,
		failed:   make(map[string]struct{}),
	}
}

// Name returns the handler name.
func (w *Windowed) Name() string { return w.name }

// Kind returns the handler variant.
func (w *Windowed) Kind() domain.HandlerKind { return w.kind }

// Window returns the configured window.
func (w *Windowed) Window() domain.Window { return w.window }

// Features returns the feature columns this handler writes.
func (w *Windowed) Features() []string {
	out := make([]string, len(w.features))
	copy(out, w.features)
	return out
}

// Phase returns the current phase.
func (w *Windowed) Phase() Phase { return w.phase }

// Failed returns the instruments this handler skipped, in ascending order.
func (w *Windowed) Failed() []string {
	out := make([]string, 0, len(w.failed))
	for id := range w.failed {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Handle advances the lifecycle with one event.
func (w *Windowed) Handle(ev *domain.MarketEvent, book Book, out Output) {
	if w.phase == PhaseDone || ev.TimestampMs < w.window.StartMs {
		return
	}

	s := &Scope{Event: ev, Window: w.window, book: book, owner: w, out: out}

	if ev.TimestampMs < w.window.EndMs {
		if w.phase == PhaseIdle {
			w.phase = PhaseActive
			w.call(s, w.hooks.OnOpen(s))
			// An opening trade belongs to the window too.
			if ev.Kind == domain.EventKindTrade {
				w.call(s, w.hooks.OnUpdate(s))
			}
			return
		}
		w.call(s, w.hooks.OnUpdate(s))
		return
	}

	// The stream jumped past the whole window: nothing inside it was
	// observed, so no feature is written.
	if w.phase == PhaseIdle {
		w.phase = PhaseDone
		s.Report(w.window.Instrument, fmt.Errorf("%w: no event inside window of %s", ErrIncompleteWindow, w.name))
		return
	}
	w.phase = PhaseDone
	w.call(s, w.hooks.OnUpdate(s))
	w.call(s, w.hooks.OnClose(s, &closeWriter{owner: w, out: out}))
}

func (w *Windowed) call(s *Scope, err error) {
	if err != nil {
		s.Report(w.window.Instrument, err)
	}
}

var _ Handler = (*Windowed)(nil)

// closeWriter drops writes for instruments the handler failed on.
type closeWriter struct {
	owner *Windowed
	out   Output
}

func (c *closeWriter) Write(instrument, feature string, value float64) {
	if _, failed := c.owner.failed[instrument]; failed {
		return
	}
	c.out.Write(instrument, feature, value)
}

// Scope is the view a hook gets of the current event.
type Scope struct {
	Event  *domain.MarketEvent
	Window domain.Window

	book  Book
	owner *Windowed
	out   Output
}

// Instruments returns the instruments in scope: the configured instrument in
// single mode, every instrument in the book in all mode.
func (s *Scope) Instruments() []string {
	if !s.Window.AllMode() {
		return []string{s.Window.Instrument}
	}
	return s.book.Instruments()
}

// Fields returns book fields for an instrument, or ErrMissingInstrumentState
// if no snapshot for it has been seen.
func (s *Scope) Fields(instrument string) (domain.FieldMap, error) {
	f, ok := s.book.Fields(instrument)
	if !ok {
		return nil, fmt.Errorf("%w: instrument %s", ErrMissingInstrumentState, instrument)
	}
	return f, nil
}

// Trade returns the event's trade if it is in scope and inside the window.
// Boundary trades at EndMs are excluded by the half-open window.
func (s *Scope) Trade() (*domain.TradeFlag, bool) {
	if s.Event.Kind != domain.EventKindTrade || s.Event.Trade == nil {
		return nil, false
	}
	if !s.Window.Contains(s.Event.TimestampMs) || !s.Window.Matches(s.Event.Trade.Instrument) {
		return nil, false
	}
	return s.Event.Trade, true
}

// Fail marks an instrument as skipped and reports err.
func (s *Scope) Fail(instrument string, err error) {
	if _, already := s.owner.failed[instrument]; already {
		return
	}
	s.owner.failed[instrument] = struct{}{}
	s.out.Report(instrument, err)
}

// Failed reports whether the handler already skipped an instrument.
func (s *Scope) Failed(instrument string) bool {
	_, ok := s.owner.failed[instrument]
	return ok
}

// Report surfaces a non-fatal problem without skipping the instrument.
func (s *Scope) Report(instrument string, err error) {
	s.out.Report(instrument, err)
}
