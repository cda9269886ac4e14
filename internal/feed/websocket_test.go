package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orderbook-feature-lab/internal/domain"
)

// wsServer sends messages to every connection and closes it.
func wsServer(t *testing.T, messages []string, connections *atomic.Int32) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		connections.Add(1)
		for _, m := range messages {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(m)); err != nil {
				return
			}
		}
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	}))
}

func TestWSSource_StreamsAndReconnects(t *testing.T) {
	var connections atomic.Int32
	srv := wsServer(t, []string{
		`{"type":"snapshot","ts":1,"book":{"A":{"4":"1","14":"2"}}}`,
		`not json`,
		`{"type":"trade","ts":2,"instrument":"A","cum_volume":"5","aggressor":1}`,
	}, &connections)
	defer srv.Close()

	endpoint := "ws" + strings.TrimPrefix(srv.URL, "http")
	cfg := DefaultWSConfig()
	cfg.ReconnectDelay = 10 * time.Millisecond
	cfg.MaxReconnectDelay = 20 * time.Millisecond
	src := NewWSSource(endpoint, &cfg, nil, nil)

	q := NewQueue(16, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- src.Run(ctx, q) }()

	var got []*domain.MarketEvent
	deadline := time.After(5 * time.Second)
	for len(got) < 4 {
		select {
		case ev := <-q.Events():
			got = append(got, ev)
		case <-deadline:
			t.Fatalf("received %d events before timeout", len(got))
		}
	}
	cancel()

	require.ErrorIs(t, <-errCh, context.Canceled)
	assert.GreaterOrEqual(t, connections.Load(), int32(2))
	assert.Equal(t, domain.EventKindSnapshot, got[0].Kind)
	assert.Equal(t, domain.EventKindTrade, got[1].Kind)
	assert.Equal(t, domain.SideAsk, got[1].Trade.Aggressor)
	assert.Equal(t, domain.EventKindSnapshot, got[2].Kind, "second connection replays the stream")
}

func TestWSSource_DialFailureRetriesUntilCancelled(t *testing.T) {
	cfg := DefaultWSConfig()
	cfg.ReconnectDelay = 5 * time.Millisecond
	cfg.MaxReconnectDelay = 5 * time.Millisecond
	src := NewWSSource("ws://127.0.0.1:1/none", &cfg, nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := src.Run(ctx, NewQueue(1, nil))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
