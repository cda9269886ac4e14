package features

import (
	"fmt"

	"orderbook-feature-lab/internal/domain"
)

// DefaultMidPriceReturnFeature is the column written when no name is configured.
const DefaultMidPriceReturnFeature = "mid_price_return"

// midPriceReturn writes (mid_close - mid_open) / mid_open per instrument.
type midPriceReturn struct {
	feature  string
	startMid map[string]float64
}

// NewMidPriceReturn creates a mid-price return handler.
func NewMidPriceReturn(name string, window domain.Window) *Windowed {
	feature := name
	if feature == "" {
		feature = DefaultMidPriceReturnFeature
	}
	h := &midPriceReturn{feature: feature, startMid: make(map[string]float64)}
	return NewWindowed(domain.HandlerKindMidPriceReturn, feature, window, []string{feature}, h)
}

func (h *midPriceReturn) OnOpen(s *Scope) error {
	for _, id := range s.Instruments() {
		mid, err := midOf(s, id)
		if err != nil {
			s.Fail(id, err)
			continue
		}
		h.startMid[id] = mid
	}
	return nil
}

func (h *midPriceReturn) OnUpdate(*Scope) error { return nil }

func (h *midPriceReturn) OnClose(s *Scope, w Writer) error {
	for _, id := range s.Instruments() {
		if s.Failed(id) {
			continue
		}
		start, ok := h.startMid[id]
		if !ok {
			s.Fail(id, fmt.Errorf("%w: instrument %s had no book at window open", ErrMissingInstrumentState, id))
			continue
		}
		mid, err := midOf(s, id)
		if err != nil {
			s.Fail(id, err)
			continue
		}
		value, degenerate := ratio(mid-start, start)
		if degenerate {
			s.Report(id, fmt.Errorf("%w: opening mid is zero", ErrDegenerateDivision))
		}
		w.Write(id, h.feature, value)
	}
	return nil
}

func midOf(s *Scope, instrument string) (float64, error) {
	fields, err := s.Fields(instrument)
	if err != nil {
		return 0, err
	}
	mid, ok := fields.Mid()
	if !ok {
		return 0, fmt.Errorf("%w: instrument %s has no best bid/ask", ErrMissingInstrumentState, instrument)
	}
	return mid, nil
}
