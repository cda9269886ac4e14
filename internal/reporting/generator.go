package reporting

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"orderbook-feature-lab/internal/features"
	"orderbook-feature-lab/internal/results"
	"orderbook-feature-lab/internal/storage"
)

// Generator builds reports from finished runs or stored results.
type Generator struct {
	featureStore storage.FeatureStore
	now          func() time.Time
}

// NewGenerator creates a new report generator. featureStore may be nil
// when only Build is used.
func NewGenerator(featureStore storage.FeatureStore) *Generator {
	return &Generator{
		featureStore: featureStore,
		now:          time.Now,
	}
}

// RunInfo identifies the run a report describes.
type RunInfo struct {
	RunID  string
	Mode   string
	FromMs int64
	ToMs   int64
}

// Build creates a report for an in-process result table.
func (g *Generator) Build(info RunInfo, table *results.Table, issues []features.Issue) *Report {
	r := &Report{
		GeneratedAt: g.now().UTC(),
		RunID:       info.RunID,
		Mode:        info.Mode,
		FromMs:      info.FromMs,
		ToMs:        info.ToMs,
		Table:       table,
		Summary:     summarize(table),
	}

	for _, is := range issues {
		row := IssueRow{Instrument: is.Instrument, Handler: is.Handler}
		if is.Err != nil {
			row.Error = is.Err.Error()
		}
		r.Issues = append(r.Issues, row)
	}
	sort.SliceStable(r.Issues, func(i, j int) bool {
		if r.Issues[i].Handler != r.Issues[j].Handler {
			return r.Issues[i].Handler < r.Issues[j].Handler
		}
		return r.Issues[i].Instrument < r.Issues[j].Instrument
	})

	return r
}

// Load creates a report for a persisted run.
func (g *Generator) Load(ctx context.Context, runID string) (*Report, error) {
	if g.featureStore == nil {
		return nil, fmt.Errorf("load run %s: no feature store configured", runID)
	}

	run, err := g.featureStore.GetRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", runID, err)
	}

	cells, err := g.featureStore.GetCells(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("get cells for run %s: %w", runID, err)
	}

	info := RunInfo{RunID: run.RunID, Mode: run.Mode, FromMs: run.FromMs, ToMs: run.ToMs}
	return g.Build(info, results.FromCells(cells), nil), nil
}

// summarize computes one FeatureSummaryRow per table feature.
func summarize(table *results.Table) []FeatureSummaryRow {
	if table == nil {
		return nil
	}

	var rows []FeatureSummaryRow
	for _, feature := range table.Features() {
		_, values := table.Column(feature)

		finite := make([]float64, 0, len(values))
		for _, v := range values {
			if !math.IsInf(v, 0) && !math.IsNaN(v) {
				finite = append(finite, v)
			}
		}

		row := FeatureSummaryRow{
			Feature:   feature,
			Count:     len(values),
			NonFinite: len(values) - len(finite),
		}
		if len(finite) > 0 {
			sort.Float64s(finite)
			row.Mean = stat.Mean(finite, nil)
			if len(finite) > 1 {
				row.Stddev = stat.StdDev(finite, nil)
			}
			row.Min = finite[0]
			row.Max = finite[len(finite)-1]
			row.P10 = stat.Quantile(0.10, stat.Empirical, finite, nil)
			row.Median = stat.Quantile(0.50, stat.Empirical, finite, nil)
			row.P90 = stat.Quantile(0.90, stat.Empirical, finite, nil)
		}
		rows = append(rows, row)
	}

	return rows
}
