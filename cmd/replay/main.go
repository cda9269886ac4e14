// Package main replays stored market events through a handler set and
// writes the resulting feature table.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"orderbook-feature-lab/internal/config"
	"orderbook-feature-lab/internal/domain"
	"orderbook-feature-lab/internal/features"
	"orderbook-feature-lab/internal/feed"
	"orderbook-feature-lab/internal/idhash"
	"orderbook-feature-lab/internal/logging"
	"orderbook-feature-lab/internal/observability"
	"orderbook-feature-lab/internal/replay"
	"orderbook-feature-lab/internal/reporting"
	"orderbook-feature-lab/internal/results"
	"orderbook-feature-lab/internal/storage"
	chstore "orderbook-feature-lab/internal/storage/clickhouse"
	"orderbook-feature-lab/internal/storage/memory"
	"orderbook-feature-lab/internal/storage/migrations"
	pgstore "orderbook-feature-lab/internal/storage/postgres"
	"orderbook-feature-lab/internal/verification"
)

func main() {
	// Parse flags (env vars as defaults)
	handlersFile := flag.String("handlers", envOr("HANDLERS_FILE", "handlers.yaml"), "Handler set YAML file")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string (event store)")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string (feature store)")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage")
	eventsFile := flag.String("events", "", "JSON-lines wire messages to load into memory storage")
	fromMs := flag.Int64("from", 0, "Replay start (Unix ms, default earliest window start minus warmup)")
	toMs := flag.Int64("to", 0, "Replay end (Unix ms, default latest window end plus grace)")
	warmup := flag.Duration("warmup", 0, "Replay this much history before the earliest window")
	grace := flag.Duration("grace", 0, "Replay this much past the latest window end")
	format := flag.String("format", "csv", "Output format: csv, markdown or json")
	output := flag.String("output", "", "Output file (default stdout)")
	runID := flag.String("run-id", os.Getenv("RUN_ID"), "Run id (default derived from handler set and range)")
	verify := flag.Bool("verify", false, "Fail if an already stored run differs from this replay")
	logLevel := flag.String("log-level", envOr("LOG_LEVEL", "info"), "Log level")

	flag.Parse()

	logger, err := logging.New(*logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync() //nolint:errcheck
	logger = logger.Named("replay")

	outFormat, err := reporting.ParseFormat(*format)
	if err != nil {
		logger.Fatal("invalid flags", zap.Error(err))
	}
	if *useMemory == (*postgresDSN != "") {
		logger.Fatal("exactly one of --use-memory or --postgres-dsn is required")
	}

	// Create context with cancellation on signal
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfgs, err := config.LoadHandlerSet(*handlersFile)
	if err != nil {
		logger.Fatal("load handler set", zap.Error(err))
	}

	metrics := observability.NewMetrics("", nil)
	registry, err := features.BuildRegistry(cfgs,
		features.WithLogger(logger),
		features.WithMetrics(metrics),
	)
	if err != nil {
		logger.Fatal("build registry", zap.Error(err))
	}

	from, to := replayRange(cfgs, *warmup, *grace)
	if *fromMs != 0 {
		from = *fromMs
	}
	if *toMs != 0 {
		to = *toMs
	}
	if *runID == "" {
		*runID = idhash.ComputeRunID("replay", from, to, cfgs)
	}

	// Create stores
	var snapshotStore storage.SnapshotStore
	var tradeStore storage.TradeStore
	var featureStore storage.FeatureStore

	if *useMemory {
		snapshots, trades := memory.NewSnapshotStore(), memory.NewTradeStore()
		if *eventsFile != "" {
			n, err := loadEvents(ctx, *eventsFile, snapshots, trades)
			if err != nil {
				logger.Fatal("load events", zap.Error(err))
			}
			logger.Info("loaded events", zap.String("file", *eventsFile), zap.Int("events", n))
		}
		snapshotStore, tradeStore = snapshots, trades
	} else {
		pool, err := pgstore.NewPool(ctx, *postgresDSN)
		if err != nil {
			logger.Fatal("connect to postgres", zap.Error(err))
		}
		defer pool.Close()

		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			logger.Fatal("postgres migrations", zap.Error(err))
		}
		snapshotStore = pgstore.NewSnapshotStore(pool)
		tradeStore = pgstore.NewTradeStore(pool)
		featureStore = pgstore.NewFeatureStore(pool)
	}

	if *clickhouseDSN != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, *clickhouseDSN)
		if err != nil {
			logger.Fatal("clickhouse migrations", zap.Error(err))
		}
		defer conn.Close()
		featureStore = chstore.NewFeatureStore(conn)
	}

	// Run replay
	start := time.Now()
	runner := replay.NewRunner(snapshotStore, tradeStore,
		replay.WithLogger(logger),
		replay.WithMetrics(metrics),
	)
	n, err := runner.Run(ctx, from, to, registry)
	if err != nil {
		metrics.RecordRun("replay", "error", time.Since(start).Seconds())
		logger.Fatal("replay failed", zap.Error(err))
	}

	table, issues := registry.Finish()
	metrics.RecordRun("replay", "ok", time.Since(start).Seconds())
	logger.Info("replay complete",
		zap.String("run_id", *runID),
		zap.Int("events", n),
		zap.Int("cells", table.Len()),
		zap.Int("issues", len(issues)),
	)

	if featureStore != nil {
		run := &domain.FeatureRun{
			RunID:       *runID,
			Mode:        "replay",
			FromMs:      from,
			ToMs:        to,
			Handlers:    registry.Len(),
			Issues:      len(issues),
			CreatedAtMs: time.Now().UnixMilli(),
		}
		err := featureStore.InsertRun(ctx, run, table.Cells())
		switch {
		case errors.Is(err, storage.ErrDuplicateKey):
			if err := verifyStored(ctx, logger, featureStore, *runID, table, *verify); err != nil {
				logger.Fatal("verify stored run", zap.Error(err))
			}
		case err != nil:
			logger.Fatal("store results", zap.Error(err))
		}
	}

	info := reporting.RunInfo{RunID: *runID, Mode: "replay", FromMs: from, ToMs: to}
	report := reporting.NewGenerator(featureStore).Build(info, table, issues)
	if err := reporting.WriteFile(*output, report, outFormat); err != nil {
		logger.Fatal("write output", zap.Error(err))
	}
}

// replayRange returns [min start - warmup, max end + grace] over all handlers.
func replayRange(cfgs []domain.HandlerConfig, warmup, grace time.Duration) (int64, int64) {
	if len(cfgs) == 0 {
		return 0, 0
	}
	from, to := cfgs[0].StartMs, cfgs[0].EndMs
	for _, c := range cfgs[1:] {
		if c.StartMs < from {
			from = c.StartMs
		}
		if c.EndMs > to {
			to = c.EndMs
		}
	}
	return from - warmup.Milliseconds(), to + grace.Milliseconds()
}

// loadEvents reads JSON-lines wire messages into the memory stores.
// Messages without a sequence number get their line number.
func loadEvents(ctx context.Context, path string, snapshots storage.SnapshotStore, trades storage.TradeStore) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	var snaps, prints []*domain.MarketEvent
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		if len(scanner.Bytes()) == 0 {
			continue
		}
		ev, err := feed.Decode(scanner.Bytes())
		if err != nil {
			return 0, fmt.Errorf("line %d: %w", line, err)
		}
		if ev.Seq == 0 {
			ev.Seq = int64(line)
		}
		if ev.Kind == domain.EventKindSnapshot {
			snaps = append(snaps, ev)
		} else {
			prints = append(prints, ev)
		}
	}
	if err := scanner.Err(); err != nil {
		return 0, err
	}

	if err := snapshots.InsertBulk(ctx, snaps); err != nil {
		return 0, fmt.Errorf("insert snapshots: %w", err)
	}
	if err := trades.InsertBulk(ctx, prints); err != nil {
		return 0, fmt.Errorf("insert trades: %w", err)
	}
	return len(snaps) + len(prints), nil
}

// verifyStored compares table with the run already stored under runID.
// Divergences are logged; with strict they are an error.
func verifyStored(ctx context.Context, logger *zap.Logger, store storage.FeatureStore, runID string, table *results.Table, strict bool) error {
	res, err := verification.NewVerifier(store).VerifyRun(ctx, runID, table)
	if err != nil {
		return err
	}
	if res.Match {
		logger.Info("run already stored, replay matches", zap.String("run_id", runID), zap.Int("cells", res.Cells))
		return nil
	}

	for _, d := range res.Divergences {
		logger.Warn("replay divergence",
			zap.String("instrument", d.Instrument),
			zap.String("feature", d.Feature),
			zap.String("kind", d.Kind),
			zap.Float64("stored", d.Stored),
			zap.Float64("replayed", d.Replayed),
		)
	}
	if strict {
		return fmt.Errorf("run %s: %d divergent cells", runID, len(res.Divergences))
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
