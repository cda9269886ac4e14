package reporting

import (
	"time"

	"orderbook-feature-lab/internal/results"
)

// Report represents a rendered feature run.
type Report struct {
	// Metadata
	GeneratedAt time.Time
	RunID       string
	Mode        string
	FromMs      int64 // Unix ms
	ToMs        int64 // Unix ms

	// Result table (instrument x feature)
	Table *results.Table

	// Per-feature distribution across instruments, in table feature order
	Summary []FeatureSummaryRow

	// Handler issues; empty for runs loaded from storage
	Issues []IssueRow
}

// FeatureSummaryRow describes one feature column across instruments.
// Statistics cover finite values only; NonFinite counts the rest.
// Quantiles are empirical (no interpolation).
type FeatureSummaryRow struct {
	Feature   string
	Count     int
	NonFinite int
	Mean      float64
	Stddev    float64 // sample, n-1 denominator
	Min       float64
	P10       float64
	Median    float64
	P90       float64
	Max       float64
}

// IssueRow is one handler issue.
type IssueRow struct {
	Instrument string
	Handler    string
	Error      string
}
