// Package verification checks that replaying a stored run reproduces the
// feature values that were persisted for it.
package verification

import (
	"context"
	"errors"
	"fmt"
	"math"

	"orderbook-feature-lab/internal/results"
	"orderbook-feature-lab/internal/storage"
)

// FloatTolerance is the absolute tolerance for comparing feature values.
const FloatTolerance = 1e-9

// ErrRunNotFound is returned when the run id has no stored results.
var ErrRunNotFound = errors.New("run not found")

// Divergence kinds.
const (
	DivergenceMissing = "missing"  // stored, not replayed
	DivergenceExtra   = "extra"    // replayed, not stored
	DivergenceValue   = "mismatch" // both present, values differ
)

// Divergence is one cell that differs between stored and replayed results.
type Divergence struct {
	Instrument string
	Feature    string
	Kind       string
	Stored     float64
	Replayed   float64
}

// VerificationResult is the outcome of verifying one run.
type VerificationResult struct {
	RunID       string
	Match       bool
	Cells       int // stored cells compared
	Divergences []Divergence
}

// Verifier compares replayed tables against stored runs.
type Verifier struct {
	featureStore storage.FeatureStore
}

// NewVerifier creates a verifier backed by featureStore.
func NewVerifier(featureStore storage.FeatureStore) *Verifier {
	return &Verifier{featureStore: featureStore}
}

// VerifyRun loads the stored cells of runID and compares them with replayed.
func (v *Verifier) VerifyRun(ctx context.Context, runID string, replayed *results.Table) (*VerificationResult, error) {
	if _, err := v.featureStore.GetRun(ctx, runID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrRunNotFound
		}
		return nil, fmt.Errorf("get run %s: %w", runID, err)
	}

	cells, err := v.featureStore.GetCells(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("get cells for run %s: %w", runID, err)
	}

	divergences := CompareTables(results.FromCells(cells), replayed)
	return &VerificationResult{
		RunID:       runID,
		Match:       len(divergences) == 0,
		Cells:       len(cells),
		Divergences: divergences,
	}, nil
}

// CompareTables returns every cell that differs between stored and
// replayed, stored cells first in table order. Values match when they are
// within FloatTolerance, equal infinities or both NaN.
func CompareTables(stored, replayed *results.Table) []Divergence {
	var divergences []Divergence

	for _, c := range stored.Cells() {
		got, ok := replayed.Get(c.Instrument, c.Feature)
		switch {
		case !ok:
			divergences = append(divergences, Divergence{
				Instrument: c.Instrument,
				Feature:    c.Feature,
				Kind:       DivergenceMissing,
				Stored:     c.Value,
				Replayed:   math.NaN(),
			})
		case !floatEqual(c.Value, got):
			divergences = append(divergences, Divergence{
				Instrument: c.Instrument,
				Feature:    c.Feature,
				Kind:       DivergenceValue,
				Stored:     c.Value,
				Replayed:   got,
			})
		}
	}

	for _, c := range replayed.Cells() {
		if !stored.Has(c.Instrument, c.Feature) {
			divergences = append(divergences, Divergence{
				Instrument: c.Instrument,
				Feature:    c.Feature,
				Kind:       DivergenceExtra,
				Stored:     math.NaN(),
				Replayed:   c.Value,
			})
		}
	}

	return divergences
}

func floatEqual(a, b float64) bool {
	if math.IsNaN(a) || math.IsNaN(b) {
		return math.IsNaN(a) && math.IsNaN(b)
	}
	if math.IsInf(a, 0) || math.IsInf(b, 0) {
		return a == b
	}
	return math.Abs(a-b) <= FloatTolerance
}
