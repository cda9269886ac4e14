// Package main computes features over a live market data feed. It reads
// wire messages from a websocket endpoint or a redis stream until every
// handler window has closed, then stores and prints the result table.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"orderbook-feature-lab/internal/config"
	"orderbook-feature-lab/internal/domain"
	"orderbook-feature-lab/internal/features"
	"orderbook-feature-lab/internal/feed"
	"orderbook-feature-lab/internal/idhash"
	"orderbook-feature-lab/internal/logging"
	"orderbook-feature-lab/internal/observability"
	"orderbook-feature-lab/internal/replay"
	"orderbook-feature-lab/internal/reporting"
	"orderbook-feature-lab/internal/storage"
	chstore "orderbook-feature-lab/internal/storage/clickhouse"
	"orderbook-feature-lab/internal/storage/migrations"
	pgstore "orderbook-feature-lab/internal/storage/postgres"
)

func main() {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load configuration: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync() //nolint:errcheck
	logger = logger.Named("live")

	if err := run(cfg, logger); err != nil {
		logger.Fatal("live session failed", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics := observability.NewMetrics("", nil)
	srv := startMetricsServer(cfg.MetricsAddr, logger)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	cfgs, err := config.LoadHandlerSet(cfg.HandlersFile)
	if err != nil {
		return fmt.Errorf("load handler set: %w", err)
	}
	registry, err := features.BuildRegistry(cfgs,
		features.WithLogger(logger),
		features.WithMetrics(metrics),
	)
	if err != nil {
		return fmt.Errorf("build registry: %w", err)
	}
	from, to := sessionRange(cfgs)

	// Storage is optional; without it results are only printed.
	var featureStore storage.FeatureStore
	var engine replay.Engine = registry
	var archiver *feed.Archiver

	if cfg.PostgresDSN != "" {
		pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
		if err != nil {
			return fmt.Errorf("connect to postgres: %w", err)
		}
		defer pool.Close()
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			return fmt.Errorf("postgres migrations: %w", err)
		}
		archiver = feed.NewArchiver(registry, pgstore.NewSnapshotStore(pool), pgstore.NewTradeStore(pool), 0, logger)
		engine = archiver
		featureStore = pgstore.NewFeatureStore(pool)
	}
	if cfg.ClickHouseDSN != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickHouseDSN)
		if err != nil {
			return fmt.Errorf("clickhouse migrations: %w", err)
		}
		defer conn.Close()
		featureStore = chstore.NewFeatureStore(conn)
	}

	guard := replay.NewOrderGuard(engine,
		replay.WithGuardLogger(logger),
		replay.WithGuardMetrics(metrics),
	)

	source, closeSource, err := newSource(ctx, cfg, logger, metrics)
	if err != nil {
		return err
	}
	defer closeSource()

	logger.Info("live session starting",
		zap.String("source", source.Name()),
		zap.Int("handlers", registry.Len()),
		zap.Int64("from_ms", from),
		zap.Int64("to_ms", to),
	)

	start := time.Now()
	queue := feed.NewQueue(cfg.QueueSize, metrics)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer queue.Close()
		return source.Run(gctx, queue)
	})

	var delivered int
	g.Go(func() error {
		n, err := queue.Drain(gctx, guard)
		delivered = n
		// All windows closed (or the feed ended): stop the source.
		stop()
		return err
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		metrics.RecordRun("live", "error", time.Since(start).Seconds())
		return err
	}

	// The session context may already be cancelled; finish with a fresh one.
	finishCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if archiver != nil {
		if err := archiver.Flush(finishCtx); err != nil {
			logger.Error("flush archive", zap.Error(err))
		}
	}

	table, issues := registry.Finish()
	metrics.RecordRun("live", "ok", time.Since(start).Seconds())

	runID := cfg.RunID
	if runID == "" {
		runID = idhash.ComputeRunID("live", from, to, cfgs)
	}
	logger.Info("live session complete",
		zap.String("run_id", runID),
		zap.Int("events", delivered),
		zap.Int("dropped", guard.Dropped()),
		zap.Int("cells", table.Len()),
		zap.Int("issues", len(issues)),
	)

	if featureStore != nil {
		featureRun := &domain.FeatureRun{
			RunID:       runID,
			Mode:        "live",
			FromMs:      from,
			ToMs:        to,
			Handlers:    registry.Len(),
			Issues:      len(issues),
			CreatedAtMs: time.Now().UnixMilli(),
		}
		err := featureStore.InsertRun(finishCtx, featureRun, table.Cells())
		if err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
			return fmt.Errorf("store results: %w", err)
		}
	}

	info := reporting.RunInfo{RunID: runID, Mode: "live", FromMs: from, ToMs: to}
	report := reporting.NewGenerator(featureStore).Build(info, table, issues)
	return reporting.WriteFile("", report, reporting.FormatMarkdown)
}

// newSource builds the configured feed source and its cleanup.
func newSource(ctx context.Context, cfg *config.Config, logger *zap.Logger, metrics *observability.Metrics) (feed.Source, func(), error) {
	switch cfg.FeedSource {
	case config.FeedSourceRedis:
		src, err := feed.NewRedisSource(ctx, feed.RedisConfig{
			URL:           cfg.RedisURL,
			Password:      cfg.RedisPassword,
			StreamKey:     cfg.StreamKey,
			ConsumerGroup: cfg.ConsumerGroup,
			ConsumerName:  cfg.ConsumerName,
		}, logger, metrics)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to redis: %w", err)
		}
		return src, func() { _ = src.Close() }, nil

	default:
		wsCfg := feed.DefaultWSConfig()
		wsCfg.ReconnectDelay = cfg.ReconnectMin
		wsCfg.MaxReconnectDelay = cfg.ReconnectMax
		return feed.NewWSSource(cfg.FeedURL, &wsCfg, logger, metrics), func() {}, nil
	}
}

// sessionRange spans all handler windows.
func sessionRange(cfgs []domain.HandlerConfig) (int64, int64) {
	if len(cfgs) == 0 {
		return 0, 0
	}
	from, to := cfgs[0].StartMs, cfgs[0].EndMs
	for _, c := range cfgs[1:] {
		from = min(from, c.StartMs)
		to = max(to, c.EndMs)
	}
	return from, to
}

// startMetricsServer serves /metrics and /health on addr.
func startMetricsServer(addr string, logger *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("metrics server listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()
	return srv
}
