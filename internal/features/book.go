package features

import (
	"sort"

	"orderbook-feature-lab/internal/domain"
)

// Book is a read-only view of the latest known fields per instrument.
// Returned field maps must not be modified.
type Book interface {
	Fields(instrument string) (domain.FieldMap, bool)
	Instruments() []string
}

// BookState accumulates snapshot fields per instrument.
// Each snapshot overwrites the fields it carries; trades do not touch it.
type BookState struct {
	fields map[string]domain.FieldMap
}

// NewBookState creates an empty book state.
func NewBookState() *BookState {
	return &BookState{fields: make(map[string]domain.FieldMap)}
}

// Apply folds a snapshot event into the state. Other events are ignored.
func (b *BookState) Apply(ev *domain.MarketEvent) {
	if ev == nil || ev.Kind != domain.EventKindSnapshot {
		return
	}
	for instrument, update := range ev.Snapshot {
		current, ok := b.fields[instrument]
		if !ok {
			b.fields[instrument] = update.Clone()
			continue
		}
		current.Merge(update)
	}
}

// Fields returns the latest fields of an instrument.
func (b *BookState) Fields(instrument string) (domain.FieldMap, bool) {
	f, ok := b.fields[instrument]
	return f, ok
}

// Instruments returns every instrument seen so far, in ascending order.
func (b *BookState) Instruments() []string {
	out := make([]string, 0, len(b.fields))
	for id := range b.fields {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

var _ Book = (*BookState)(nil)
