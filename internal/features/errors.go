package features

import (
	"errors"

	"orderbook-feature-lab/internal/domain"
)

// Handler errors.
var (
	// ErrMissingInstrumentState is reported when a handler needs book state
	// for an instrument before any snapshot for it has been seen.
	// The handler emits nothing for that instrument.
	ErrMissingInstrumentState = errors.New("missing instrument state")

	// ErrUnclassifiableTrade is reported when a trade's aggressor side cannot
	// be decided. The trade is counted on neither side.
	ErrUnclassifiableTrade = errors.New("unclassifiable trade")

	// ErrDegenerateDivision is reported when a ratio feature has a zero
	// denominator. A signed-infinity sentinel is written instead.
	ErrDegenerateDivision = errors.New("degenerate division")

	// ErrWindowConfiguration is returned at construction when start >= end.
	ErrWindowConfiguration = domain.ErrWindowConfiguration

	// ErrIncompleteWindow is reported for handlers that never reached Done
	// before the stream ended. Their features are omitted.
	ErrIncompleteWindow = errors.New("window incomplete at end of stream")

	// ErrDuplicateWrite is reported when a handler writes the same
	// (instrument, feature) cell twice.
	ErrDuplicateWrite = errors.New("duplicate result write")

	// ErrHandlerPanic is reported when a handler hook panics.
	ErrHandlerPanic = errors.New("handler panic")
)

// Registry errors.
var (
	// ErrDuplicateFeature is returned by Register when a feature column is
	// already produced by another handler.
	ErrDuplicateFeature = errors.New("feature column already registered")

	// ErrNotComplete is returned by Drain while some handler is not Done.
	ErrNotComplete = errors.New("handlers not complete")

	// ErrInvalidEvent is returned by Dispatch for malformed events.
	ErrInvalidEvent = errors.New("invalid market event")
)

// Issue records a per-handler, per-instrument failure surfaced by a run.
type Issue struct {
	Instrument string
	Handler    string
	Err        error
}
