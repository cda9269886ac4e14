package features

import (
	"fmt"

	"orderbook-feature-lab/internal/domain"
)

// orderBookPressure writes sum(bid vol[1..depth]) / sum(ask vol[1..depth])
// from the closing book.
type orderBookPressure struct {
	feature string
	depth   int
}

// ErrInvalidDepth is returned when pressure depth is outside [1, 5].
var ErrInvalidDepth = fmt.Errorf("order book pressure depth must be in [1, %d]", domain.MaxDepth)

// NewOrderBookPressure creates an order book pressure handler.
func NewOrderBookPressure(name string, window domain.Window, depth int) (*Windowed, error) {
	if depth < 1 || depth > domain.MaxDepth {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidDepth, depth)
	}
	feature := name
	if feature == "" {
		feature = fmt.Sprintf("ob_pressure_%d", depth)
	}
	h := &orderBookPressure{feature: feature, depth: depth}
	return NewWindowed(domain.HandlerKindOrderBookPressure, feature, window, []string{feature}, h), nil
}

func (h *orderBookPressure) OnOpen(*Scope) error   { return nil }
func (h *orderBookPressure) OnUpdate(*Scope) error { return nil }

func (h *orderBookPressure) OnClose(s *Scope, w Writer) error {
	for _, id := range s.Instruments() {
		fields, err := s.Fields(id)
		if err != nil {
			s.Fail(id, err)
			continue
		}
		bidSum, askSum := fields.DepthSums(h.depth)
		value, degenerate := ratio(bidSum, askSum)
		if degenerate {
			s.Report(id, fmt.Errorf("%w: ask volume is zero over %d levels", ErrDegenerateDivision, h.depth))
		}
		w.Write(id, h.feature, value)
	}
	return nil
}
