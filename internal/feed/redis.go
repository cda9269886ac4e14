package feed

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"orderbook-feature-lab/internal/domain"
	"orderbook-feature-lab/internal/observability"
)

// RedisConfig configures the redis stream source.
type RedisConfig struct {
	URL           string
	Password      string
	StreamKey     string
	ConsumerGroup string
	ConsumerName  string
	BlockTime     time.Duration // how long XREADGROUP waits for messages
	BatchSize     int64         // messages read per call
}

// RedisSource reads wire messages from a redis stream with a consumer group.
// Each stream entry carries the JSON message in its "data" field. Entries are
// acknowledged once queued; undecodable entries are acknowledged and dropped.
type RedisSource struct {
	client  *redis.Client
	cfg     RedisConfig
	logger  *zap.Logger
	metrics *observability.Metrics
}

// NewRedisSource connects to redis and ensures the consumer group exists.
func NewRedisSource(ctx context.Context, cfg RedisConfig, logger *zap.Logger, metrics *observability.Metrics) (*RedisSource, error) {
	opt, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	if cfg.Password != "" {
		opt.Password = cfg.Password
	}
	if cfg.BlockTime <= 0 {
		cfg.BlockTime = 5 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	// XGroupCreateMkStream creates the stream if missing.
	err = client.XGroupCreateMkStream(pingCtx, cfg.StreamKey, cfg.ConsumerGroup, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		client.Close()
		return nil, fmt.Errorf("failed to create consumer group: %w", err)
	}

	return &RedisSource{
		client: client,
		cfg:    cfg,
		logger: logger.Named("redis").With(
			zap.String("stream_key", cfg.StreamKey),
			zap.String("consumer_group", cfg.ConsumerGroup),
		),
		metrics: metrics,
	}, nil
}

// Name returns the source label used in metrics.
func (s *RedisSource) Name() string { return "redis" }

// Run streams decoded events into q until ctx is cancelled.
func (s *RedisSource) Run(ctx context.Context, q *Queue) error {
	s.logger.Info("consumer starting", zap.String("consumer_name", s.cfg.ConsumerName))

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		// ">" reads only entries never delivered to this group.
		streams, err := s.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    s.cfg.ConsumerGroup,
			Consumer: s.cfg.ConsumerName,
			Streams:  []string{s.cfg.StreamKey, ">"},
			Count:    s.cfg.BatchSize,
			Block:    s.cfg.BlockTime,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.logger.Error("xreadgroup failed", zap.Error(err))
			s.metrics.RecordReconnect(s.Name())
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Second):
			}
			continue
		}

		for _, stream := range streams {
			for _, message := range stream.Messages {
				if err := s.process(ctx, message, q); err != nil {
					return err
				}
				if err := s.client.XAck(ctx, s.cfg.StreamKey, s.cfg.ConsumerGroup, message.ID).Err(); err != nil {
					// Unacked entries stay pending and are not lost.
					s.logger.Error("xack failed", zap.String("stream_id", message.ID), zap.Error(err))
				}
			}
		}
	}
}

// process decodes one entry and queues it. Only queue errors are returned.
func (s *RedisSource) process(ctx context.Context, msg redis.XMessage, q *Queue) error {
	raw, ok := msg.Values["data"].(string)
	if !ok {
		err := fmt.Errorf("%w: entry %s has no data field", ErrDecode, msg.ID)
		s.metrics.RecordFeedMessage(s.Name(), err)
		s.logger.Warn("dropping entry", zap.String("stream_id", msg.ID), zap.Error(err))
		return nil
	}

	ev, err := Decode([]byte(raw))
	s.metrics.RecordFeedMessage(s.Name(), err)
	if err != nil {
		s.logger.Warn("dropping undecodable entry", zap.String("stream_id", msg.ID), zap.Error(err))
		return nil
	}
	return q.Push(ctx, ev)
}

// Publish appends an event to the stream in wire form.
func (s *RedisSource) Publish(ctx context.Context, ev *domain.MarketEvent) error {
	data, err := Encode(ev)
	if err != nil {
		return err
	}
	return s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: s.cfg.StreamKey,
		Values: map[string]interface{}{"data": string(data)},
	}).Err()
}

// Close closes the redis connection.
func (s *RedisSource) Close() error {
	s.logger.Info("consumer closing")
	return s.client.Close()
}
