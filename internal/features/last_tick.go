package features

import "orderbook-feature-lab/internal/domain"

// DefaultLastTickVolumeFeature is the column written when no name is configured.
const DefaultLastTickVolumeFeature = "last_tick_volume"

// lastTickVolume writes the signed volume of the last in-window trade:
// ask-initiated is positive, bid-initiated negative, unclassified zero.
type lastTickVolume struct {
	feature string
	tape    *tickTape
	last    map[string]tick
}

// NewLastTickVolume creates a last-tick signed volume handler.
func NewLastTickVolume(name string, window domain.Window) *Windowed {
	feature := name
	if feature == "" {
		feature = DefaultLastTickVolumeFeature
	}
	h := &lastTickVolume{feature: feature, tape: newTickTape(), last: make(map[string]tick)}
	return NewWindowed(domain.HandlerKindLastTickVolume, feature, window, []string{feature}, h)
}

func (h *lastTickVolume) OnOpen(s *Scope) error {
	h.tape.open(s)
	return nil
}

func (h *lastTickVolume) OnUpdate(s *Scope) error {
	if t, ok := h.tape.observe(s); ok {
		h.last[t.instrument] = t
	}
	return nil
}

func (h *lastTickVolume) OnClose(s *Scope, w Writer) error {
	for _, id := range h.tape.instruments(s) {
		t, traded := h.last[id]
		if !traded {
			w.Write(id, h.feature, 0)
			continue
		}
		w.Write(id, h.feature, t.side.Sign()*t.volume)
	}
	return nil
}
