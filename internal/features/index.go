package features

import (
	"fmt"

	"orderbook-feature-lab/internal/domain"
)

// indexField captures one book field. With delta set it writes
// field(close) - field(open), otherwise field(close).
type indexField struct {
	feature string
	field   domain.FieldCode
	delta   bool
	open    map[string]float64
}

// NewIndexSnapshot creates a handler recording a raw field value at close.
func NewIndexSnapshot(name string, window domain.Window, field domain.FieldCode) *Windowed {
	feature := name
	if feature == "" {
		feature = fmt.Sprintf("index_snapshot_%d", field)
	}
	h := &indexField{feature: feature, field: field}
	return NewWindowed(domain.HandlerKindIndexSnapshot, feature, window, []string{feature}, h)
}

// NewIndexDelta creates a handler recording field(close) - field(open).
func NewIndexDelta(name string, window domain.Window, field domain.FieldCode) *Windowed {
	feature := name
	if feature == "" {
		feature = fmt.Sprintf("index_delta_%d", field)
	}
	h := &indexField{feature: feature, field: field, delta: true, open: make(map[string]float64)}
	return NewWindowed(domain.HandlerKindIndexDelta, feature, window, []string{feature}, h)
}

func (h *indexField) OnOpen(s *Scope) error {
	if !h.delta {
		return nil
	}
	for _, id := range s.Instruments() {
		v, err := h.value(s, id)
		if err != nil {
			s.Fail(id, err)
			continue
		}
		h.open[id] = v
	}
	return nil
}

func (h *indexField) OnUpdate(*Scope) error { return nil }

func (h *indexField) OnClose(s *Scope, w Writer) error {
	for _, id := range s.Instruments() {
		if s.Failed(id) {
			continue
		}
		v, err := h.value(s, id)
		if err != nil {
			s.Fail(id, err)
			continue
		}
		if !h.delta {
			w.Write(id, h.feature, v)
			continue
		}
		start, ok := h.open[id]
		if !ok {
			s.Fail(id, fmt.Errorf("%w: instrument %s had no field %d at window open", ErrMissingInstrumentState, id, h.field))
			continue
		}
		w.Write(id, h.feature, v-start)
	}
	return nil
}

func (h *indexField) value(s *Scope, instrument string) (float64, error) {
	fields, err := s.Fields(instrument)
	if err != nil {
		return 0, err
	}
	v, ok := fields.Get(h.field)
	if !ok {
		return 0, fmt.Errorf("%w: instrument %s has no field %d", ErrMissingInstrumentState, instrument, h.field)
	}
	return v, nil
}
