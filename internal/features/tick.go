package features

import (
	"sort"

	"orderbook-feature-lab/internal/domain"
)

// tickState tracks the last cumulative volume seen for one instrument.
type tickState struct {
	lastCum     float64
	hasBaseline bool
}

// advance moves the baseline to cum and returns the traded volume.
// Non-increasing cumulative volume is a repeated or stale delivery and is
// rejected with fresh = false.
func (t *tickState) advance(cum float64) (delta float64, fresh bool) {
	if !t.hasBaseline {
		t.lastCum = cum
		t.hasBaseline = true
		return 0, true
	}
	if cum <= t.lastCum {
		return 0, false
	}
	delta = cum - t.lastCum
	t.lastCum = cum
	return delta, true
}

// tick is one classified trade.
type tick struct {
	instrument string
	side       domain.Side
	volume     float64
}

// tickTape turns in-window trade flags into classified volume deltas.
// Shared by the tick-volume handlers; each handler owns its own tape.
type tickTape struct {
	classifier Classifier
	states     map[string]*tickState
}

func newTickTape() *tickTape {
	return &tickTape{states: make(map[string]*tickState)}
}

// open seeds a baseline for every instrument in scope from the book's
// cumulative volume. Instruments with no book are failed.
func (t *tickTape) open(s *Scope) []string {
	var opened []string
	for _, id := range s.Instruments() {
		fields, err := s.Fields(id)
		if err != nil {
			s.Fail(id, err)
			continue
		}
		t.states[id] = baselineFrom(fields)
		opened = append(opened, id)
	}
	return opened
}

// observe classifies the scope's trade. ok is false when there is nothing to
// account for: no trade, out of window, failed instrument or duplicate.
// Unclassifiable trades are reported and returned with SideUnknown.
func (t *tickTape) observe(s *Scope) (tick, bool) {
	trade, ok := s.Trade()
	if !ok {
		return tick{}, false
	}
	id := trade.Instrument
	if s.Failed(id) {
		return tick{}, false
	}

	st, ok := t.states[id]
	if !ok {
		if !s.Window.AllMode() {
			return tick{}, false
		}
		fields, err := s.Fields(id)
		if err != nil {
			s.Fail(id, err)
			return tick{}, false
		}
		st = baselineFrom(fields)
		t.states[id] = st
	}

	volume, fresh := st.advance(trade.CumulativeVolume)
	if !fresh {
		return tick{}, false
	}

	fields, _ := s.Fields(id)
	side, err := t.classifier.Classify(trade, fields)
	if err != nil {
		s.Report(id, err)
	}
	return tick{instrument: id, side: side, volume: volume}, true
}

// instruments returns every instrument the tape knows plus, in all mode,
// every instrument in the book, in ascending order.
func (t *tickTape) instruments(s *Scope) []string {
	set := make(map[string]struct{}, len(t.states))
	for id := range t.states {
		set[id] = struct{}{}
	}
	for _, id := range s.Instruments() {
		set[id] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func baselineFrom(fields domain.FieldMap) *tickState {
	cum, ok := fields.Get(domain.FieldCumulativeVolume)
	return &tickState{lastCum: cum, hasBaseline: ok}
}
