package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"orderbook-feature-lab/internal/domain"
	"orderbook-feature-lab/internal/storage"
)

// TradeStore is an in-memory implementation of storage.TradeStore.
type TradeStore struct {
	mu   sync.RWMutex
	data map[string]*domain.MarketEvent // keyed by composite key
}

// NewTradeStore creates a new in-memory trade store.
func NewTradeStore() *TradeStore {
	return &TradeStore{
		data: make(map[string]*domain.MarketEvent),
	}
}

// tradeKey generates a unique key for a trade.
func tradeKey(instrument string, timestampMs, seq int64) string {
	return fmt.Sprintf("%s|%d|%d", instrument, timestampMs, seq)
}

func copyTrade(ev *domain.MarketEvent) *domain.MarketEvent {
	out := domain.NewTradeEvent(ev.TimestampMs, *ev.Trade)
	out.Seq = ev.Seq
	return out
}

// InsertBulk adds trade events atomically. Fails entire batch on any duplicate.
func (s *TradeStore) InsertBulk(_ context.Context, events []*domain.MarketEvent) error {
	if len(events) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[string]struct{}, len(events))

	for _, ev := range events {
		if ev == nil || ev.Kind != domain.EventKindTrade || ev.Trade == nil || ev.Trade.Instrument == "" {
			return storage.ErrInvalidInput
		}
		key := tradeKey(ev.Trade.Instrument, ev.TimestampMs, ev.Seq)
		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	for _, ev := range events {
		s.data[tradeKey(ev.Trade.Instrument, ev.TimestampMs, ev.Seq)] = copyTrade(ev)
	}

	return nil
}

// GetByTimeRange retrieves trades within [start, end] (inclusive).
func (s *TradeStore) GetByTimeRange(_ context.Context, start, end int64) ([]*domain.MarketEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.MarketEvent
	for _, ev := range s.data {
		if ev.TimestampMs >= start && ev.TimestampMs <= end {
			result = append(result, copyTrade(ev))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].TimestampMs != result[j].TimestampMs {
			return result[i].TimestampMs < result[j].TimestampMs
		}
		if result[i].Seq != result[j].Seq {
			return result[i].Seq < result[j].Seq
		}
		return result[i].Trade.Instrument < result[j].Trade.Instrument
	})

	return result, nil
}

var _ storage.TradeStore = (*TradeStore)(nil)
