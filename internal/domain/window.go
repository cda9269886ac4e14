package domain

import (
	"errors"
	"fmt"
)

// AllInstruments is the instrument key meaning "every instrument present
// in the current snapshot".
const AllInstruments = "all"

// ErrWindowConfiguration is returned when a window has start >= end.
var ErrWindowConfiguration = errors.New("window configuration: start must be before end")

// Window is the half-open interval [StartMs, EndMs) bound to an instrument key.
type Window struct {
	StartMs    int64
	EndMs      int64
	Instrument string // concrete id or AllInstruments
}

// NewWindow validates and builds a window.
func NewWindow(startMs, endMs int64, instrument string) (Window, error) {
	if startMs >= endMs {
		return Window{}, fmt.Errorf("%w: start=%d end=%d", ErrWindowConfiguration, startMs, endMs)
	}
	if instrument == "" {
		return Window{}, fmt.Errorf("%w: empty instrument key", ErrWindowConfiguration)
	}
	return Window{StartMs: startMs, EndMs: endMs, Instrument: instrument}, nil
}

// AllMode reports whether the window applies to every instrument.
func (w Window) AllMode() bool {
	return w.Instrument == AllInstruments
}

// Matches reports whether instrument is in scope for the window.
func (w Window) Matches(instrument string) bool {
	return w.AllMode() || w.Instrument == instrument
}

// Contains reports whether t lies in [StartMs, EndMs).
func (w Window) Contains(t int64) bool {
	return t >= w.StartMs && t < w.EndMs
}
