package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"orderbook-feature-lab/internal/domain"
	"orderbook-feature-lab/internal/storage"
)

// SnapshotStore is an in-memory implementation of storage.SnapshotStore.
type SnapshotStore struct {
	mu   sync.RWMutex
	data map[string]*snapshotRow // keyed by composite key
}

// snapshotRow is one instrument's fields from one snapshot.
type snapshotRow struct {
	timestampMs int64
	seq         int64
	instrument  string
	fields      domain.FieldMap
}

// NewSnapshotStore creates a new in-memory snapshot store.
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{
		data: make(map[string]*snapshotRow),
	}
}

// snapshotKey generates a unique key for a snapshot row.
func snapshotKey(timestampMs, seq int64, instrument string) string {
	return fmt.Sprintf("%d|%d|%s", timestampMs, seq, instrument)
}

// InsertBulk adds snapshot events atomically. Fails entire batch on any duplicate.
func (s *SnapshotStore) InsertBulk(_ context.Context, events []*domain.MarketEvent) error {
	if len(events) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Track keys in this batch to detect intra-batch duplicates
	batchKeys := make(map[string]struct{})

	// First pass: validate and check for duplicates
	for _, ev := range events {
		if ev == nil || ev.Kind != domain.EventKindSnapshot || len(ev.Snapshot) == 0 {
			return storage.ErrInvalidInput
		}
		for instrument := range ev.Snapshot {
			key := snapshotKey(ev.TimestampMs, ev.Seq, instrument)
			if _, exists := s.data[key]; exists {
				return storage.ErrDuplicateKey
			}
			if _, exists := batchKeys[key]; exists {
				return storage.ErrDuplicateKey
			}
			batchKeys[key] = struct{}{}
		}
	}

	// Second pass: insert all
	for _, ev := range events {
		for instrument, fields := range ev.Snapshot {
			s.data[snapshotKey(ev.TimestampMs, ev.Seq, instrument)] = &snapshotRow{
				timestampMs: ev.TimestampMs,
				seq:         ev.Seq,
				instrument:  instrument,
				fields:      fields.Clone(),
			}
		}
	}

	return nil
}

// GetByTimeRange retrieves snapshots within [start, end] (inclusive).
func (s *SnapshotStore) GetByTimeRange(_ context.Context, start, end int64) ([]*domain.MarketEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var rows []*snapshotRow
	for _, row := range s.data {
		if row.timestampMs >= start && row.timestampMs <= end {
			rows = append(rows, row)
		}
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].timestampMs != rows[j].timestampMs {
			return rows[i].timestampMs < rows[j].timestampMs
		}
		if rows[i].seq != rows[j].seq {
			return rows[i].seq < rows[j].seq
		}
		return rows[i].instrument < rows[j].instrument
	})

	var result []*domain.MarketEvent
	var current *domain.MarketEvent
	for _, row := range rows {
		if current == nil || current.TimestampMs != row.timestampMs || current.Seq != row.seq {
			current = domain.NewSnapshotEvent(row.timestampMs, domain.OrderBookSnapshot{})
			current.Seq = row.seq
			result = append(result, current)
		}
		current.Snapshot[row.instrument] = row.fields.Clone()
	}

	return result, nil
}

var _ storage.SnapshotStore = (*SnapshotStore)(nil)
