// Package main inspects a stored feature run: it flags outlying instruments
// in one feature column and runs a unit root test on the column.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"orderbook-feature-lab/internal/analysis"
	"orderbook-feature-lab/internal/logging"
	"orderbook-feature-lab/internal/reporting"
	"orderbook-feature-lab/internal/results"
	"orderbook-feature-lab/internal/storage"
	chstore "orderbook-feature-lab/internal/storage/clickhouse"
	pgstore "orderbook-feature-lab/internal/storage/postgres"
)

// columnAnalysis is the analysis of one feature column.
type columnAnalysis struct {
	RunID    string              `json:"run_id"`
	Feature  string              `json:"feature"`
	Count    int                 `json:"count"`
	Skipped  int                 `json:"skipped_non_finite"`
	K        float64             `json:"k"`
	Outliers []string            `json:"outliers"`
	ADF      *analysis.ADFResult `json:"adf,omitempty"`
	ADFError string              `json:"adf_error,omitempty"`
}

func main() {
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string (preferred)")
	runID := flag.String("run-id", os.Getenv("RUN_ID"), "Run to analyze")
	feature := flag.String("feature", "", "Feature column to analyze")
	k := flag.Float64("k", 3, "Outlier threshold in standard deviations")
	maxLag := flag.Int("max-lag", -1, "ADF maximum lag (-1 = Schwert rule)")
	asJSON := flag.Bool("json", false, "Print analysis as JSON")
	withReport := flag.Bool("report", false, "Also print the run's markdown report")
	logLevel := flag.String("log-level", "info", "Log level")

	flag.Parse()

	logger, err := logging.New(*logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync() //nolint:errcheck
	logger = logger.Named("analyze")

	if *runID == "" || *feature == "" {
		logger.Fatal("--run-id and --feature are required")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var featureStore storage.FeatureStore
	switch {
	case *clickhouseDSN != "":
		conn, err := chstore.NewConn(ctx, *clickhouseDSN)
		if err != nil {
			logger.Fatal("connect to clickhouse", zap.Error(err))
		}
		defer conn.Close()
		featureStore = chstore.NewFeatureStore(conn)
	case *postgresDSN != "":
		pool, err := pgstore.NewPool(ctx, *postgresDSN)
		if err != nil {
			logger.Fatal("connect to postgres", zap.Error(err))
		}
		defer pool.Close()
		featureStore = pgstore.NewFeatureStore(pool)
	default:
		logger.Fatal("--clickhouse-dsn or --postgres-dsn is required")
	}

	report, err := reporting.NewGenerator(featureStore).Load(ctx, *runID)
	if err != nil {
		logger.Fatal("load run", zap.Error(err))
	}

	result, err := analyzeColumn(report.Table, *feature, *k, *maxLag)
	if err != nil {
		logger.Fatal("analyze", zap.Error(err))
	}
	result.RunID = *runID

	if *asJSON {
		err = writeJSON(os.Stdout, result)
	} else {
		writeText(os.Stdout, result)
	}
	if err != nil {
		logger.Fatal("write output", zap.Error(err))
	}

	if *withReport {
		fmt.Println()
		fmt.Print(reporting.RenderMarkdown(report))
	}
}

// analyzeColumn flags instruments whose finite value lies more than k
// standard deviations above the column mean and tests the column, in
// instrument order, for a unit root. An ADF failure is reported in the
// result rather than returned.
func analyzeColumn(table *results.Table, feature string, k float64, maxLag int) (*columnAnalysis, error) {
	instruments, values := table.Column(feature)
	if len(values) == 0 {
		return nil, fmt.Errorf("feature %q has no values", feature)
	}

	out := &columnAnalysis{Feature: feature, K: k, Outliers: []string{}}
	var ids []string
	var xs []float64
	for i, v := range values {
		if math.IsInf(v, 0) || math.IsNaN(v) {
			out.Skipped++
			continue
		}
		ids = append(ids, instruments[i])
		xs = append(xs, v)
	}
	out.Count = len(xs)

	for _, i := range analysis.OutlierIndices(xs, k) {
		out.Outliers = append(out.Outliers, ids[i])
	}

	adf, err := analysis.ADF(xs, maxLag)
	switch {
	case err == nil:
		out.ADF = adf
	case errors.Is(err, analysis.ErrInsufficientData), errors.Is(err, analysis.ErrDegenerateSeries):
		out.ADFError = err.Error()
	default:
		return nil, err
	}
	return out, nil
}

func writeJSON(w io.Writer, a *columnAnalysis) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(a)
}

func writeText(w io.Writer, a *columnAnalysis) {
	fmt.Fprintf(w, "Run:      %s\n", a.RunID)
	fmt.Fprintf(w, "Feature:  %s\n", a.Feature)
	fmt.Fprintf(w, "Values:   %d (%d non-finite skipped)\n", a.Count, a.Skipped)
	fmt.Fprintf(w, "Outliers (> %.2f std): %d\n", a.K, len(a.Outliers))
	for _, id := range a.Outliers {
		fmt.Fprintf(w, "  %s\n", id)
	}

	if a.ADF == nil {
		fmt.Fprintf(w, "ADF:      not computed (%s)\n", a.ADFError)
		return
	}
	fmt.Fprintf(w, "ADF:      stat=%.4f p=%.4f lag=%d nobs=%d\n",
		a.ADF.Statistic, a.ADF.PValue, a.ADF.UsedLag, a.ADF.NObs)
	for _, level := range []string{"1%", "5%", "10%"} {
		fmt.Fprintf(w, "  critical %-3s %.4f\n", level, a.ADF.Critical[level])
	}
}
