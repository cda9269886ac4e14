package feed

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"orderbook-feature-lab/internal/observability"
)

// WSConfig configures the websocket source.
type WSConfig struct {
	// ReconnectDelay is the initial delay before a reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay caps the exponential backoff.
	MaxReconnectDelay time.Duration
	// PingInterval is the interval between ping frames.
	PingInterval time.Duration
	// ReadTimeout is the read deadline, extended by every pong.
	ReadTimeout time.Duration
	// WriteTimeout bounds control frame writes.
	WriteTimeout time.Duration
}

// DefaultWSConfig returns default websocket settings.
func DefaultWSConfig() WSConfig {
	return WSConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      20 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
}

// WSSource reads wire messages from a websocket endpoint and reconnects
// with exponential backoff when the connection drops.
type WSSource struct {
	endpoint string
	config   WSConfig
	logger   *zap.Logger
	metrics  *observability.Metrics
}

// NewWSSource creates a websocket source. config may be nil for defaults.
func NewWSSource(endpoint string, config *WSConfig, logger *zap.Logger, metrics *observability.Metrics) *WSSource {
	cfg := DefaultWSConfig()
	if config != nil {
		cfg = *config
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WSSource{
		endpoint: endpoint,
		config:   cfg,
		logger:   logger.Named("ws").With(zap.String("endpoint", endpoint)),
		metrics:  metrics,
	}
}

// Name returns the source label used in metrics.
func (s *WSSource) Name() string { return "ws" }

// Run streams decoded events into q until ctx is cancelled.
// Undecodable messages are logged and skipped.
func (s *WSSource) Run(ctx context.Context, q *Queue) error {
	delay := s.config.ReconnectDelay

	for {
		conn, err := s.dial(ctx)
		if err == nil {
			delay = s.config.ReconnectDelay
			err = s.consume(ctx, conn, q)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		s.logger.Warn("websocket disconnected, reconnecting",
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		s.metrics.RecordReconnect(s.Name())

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		delay *= 2
		if delay > s.config.MaxReconnectDelay {
			delay = s.config.MaxReconnectDelay
		}
	}
}

func (s *WSSource) dial(ctx context.Context) (*websocket.Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}
	conn, _, err := dialer.DialContext(ctx, s.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial: %w", err)
	}
	s.logger.Info("websocket connected")
	return conn, nil
}

// consume reads one connection until it fails or ctx is cancelled.
func (s *WSSource) consume(ctx context.Context, conn *websocket.Conn, q *Queue) error {
	var writeMu sync.Mutex
	done := make(chan struct{})
	defer close(done)

	conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))
	})

	go func() {
		ticker := time.NewTicker(s.config.PingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				writeMu.Lock()
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
					time.Now().Add(s.config.WriteTimeout))
				writeMu.Unlock()
				conn.Close()
				return
			case <-ticker.C:
				writeMu.Lock()
				err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(s.config.WriteTimeout))
				writeMu.Unlock()
				if err != nil {
					conn.Close()
					return
				}
			}
		}
	}()
	defer conn.Close()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return errors.New("server closed connection")
			}
			return fmt.Errorf("websocket read: %w", err)
		}

		ev, err := Decode(data)
		s.metrics.RecordFeedMessage(s.Name(), err)
		if err != nil {
			s.logger.Warn("dropping undecodable message", zap.Error(err))
			continue
		}
		if err := q.Push(ctx, ev); err != nil {
			return err
		}
	}
}
