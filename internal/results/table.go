// Package results holds the instrument-keyed feature table produced by a run.
package results

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrConflictingCell is returned by Merge when both tables hold the same
// (instrument, feature) cell.
var ErrConflictingCell = errors.New("conflicting result cell")

// Table is a sparse instrument -> feature -> value table.
// Writes overwrite (last write wins). Feature names are remembered in the
// order they were first written.
type Table struct {
	mu       sync.RWMutex
	rows     map[string]map[string]float64
	features []string
	seen     map[string]struct{}
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{
		rows: make(map[string]map[string]float64),
		seen: make(map[string]struct{}),
	}
}

// Set writes one cell. Returns true if the cell already held a value.
func (t *Table) Set(instrument, feature string, value float64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	row, ok := t.rows[instrument]
	if !ok {
		row = make(map[string]float64)
		t.rows[instrument] = row
	}
	_, replaced := row[feature]
	row[feature] = value

	if _, ok := t.seen[feature]; !ok {
		t.seen[feature] = struct{}{}
		t.features = append(t.features, feature)
	}
	return replaced
}

// Get looks up one cell.
func (t *Table) Get(instrument, feature string) (float64, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	row, ok := t.rows[instrument]
	if !ok {
		return 0, false
	}
	v, ok := row[feature]
	return v, ok
}

// Has reports whether a cell is present.
func (t *Table) Has(instrument, feature string) bool {
	_, ok := t.Get(instrument, feature)
	return ok
}

// Row returns a copy of all features for one instrument.
func (t *Table) Row(instrument string) map[string]float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()

	row := t.rows[instrument]
	out := make(map[string]float64, len(row))
	for k, v := range row {
		out[k] = v
	}
	return out
}

// Instruments returns the instrument ids in ascending order.
func (t *Table) Instruments() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]string, 0, len(t.rows))
	for id := range t.rows {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Features returns feature names in first-written order.
func (t *Table) Features() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]string, len(t.features))
	copy(out, t.features)
	return out
}

// Column returns the values of one feature for every instrument that has it,
// ordered by instrument id. The returned instruments align with values.
func (t *Table) Column(feature string) (instruments []string, values []float64) {
	for _, id := range t.Instruments() {
		if v, ok := t.Get(id, feature); ok {
			instruments = append(instruments, id)
			values = append(values, v)
		}
	}
	return instruments, values
}

// Len returns the number of populated cells.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	n := 0
	for _, row := range t.rows {
		n += len(row)
	}
	return n
}

// Merge copies every cell of other into t. Shards must be disjoint:
// if any cell exists in both tables, nothing is copied and
// ErrConflictingCell is returned.
func (t *Table) Merge(other *Table) error {
	if other == nil || other == t {
		return nil
	}

	other.mu.RLock()
	defer other.mu.RUnlock()
	t.mu.Lock()
	defer t.mu.Unlock()

	for id, row := range other.rows {
		existing := t.rows[id]
		for feature := range row {
			if _, ok := existing[feature]; ok {
				return fmt.Errorf("%w: instrument=%s feature=%s", ErrConflictingCell, id, feature)
			}
		}
	}

	for _, feature := range other.features {
		if _, ok := t.seen[feature]; !ok {
			t.seen[feature] = struct{}{}
			t.features = append(t.features, feature)
		}
	}
	for id, row := range other.rows {
		dst, ok := t.rows[id]
		if !ok {
			dst = make(map[string]float64, len(row))
			t.rows[id] = dst
		}
		for feature, v := range row {
			dst[feature] = v
		}
	}
	return nil
}

// Cell is one populated table entry.
type Cell struct {
	Instrument string
	Feature    string
	Value      float64
}

// Cells returns every populated cell ordered by instrument then feature order.
func (t *Table) Cells() []Cell {
	features := t.Features()
	var out []Cell
	for _, id := range t.Instruments() {
		for _, f := range features {
			if v, ok := t.Get(id, f); ok {
				out = append(out, Cell{Instrument: id, Feature: f, Value: v})
			}
		}
	}
	return out
}

// FromCells rebuilds a table from persisted cells.
func FromCells(cells []Cell) *Table {
	t := NewTable()
	for _, c := range cells {
		t.Set(c.Instrument, c.Feature, c.Value)
	}
	return t
}
