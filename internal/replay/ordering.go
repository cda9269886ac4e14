package replay

import (
	"sort"

	"orderbook-feature-lab/internal/domain"
)

// SortEvents orders events by (timestamp ASC, seq ASC, kind, instrument ASC).
// Snapshots sort before trades sharing a timestamp and sequence number, so
// a trade is classified against the book published with it.
func SortEvents(events []*domain.MarketEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		return compareEvents(events[i], events[j]) < 0
	})
}

// MergeEvents combines snapshots and trades into a sorted event stream.
func MergeEvents(snapshots, trades []*domain.MarketEvent) []*domain.MarketEvent {
	events := make([]*domain.MarketEvent, 0, len(snapshots)+len(trades))
	events = append(events, snapshots...)
	events = append(events, trades...)
	SortEvents(events)
	return events
}

// compareEvents returns:
//   - negative if a < b
//   - zero if a == b
//   - positive if a > b
//
// Order: (timestamp ASC, seq ASC, kind, instrument ASC)
// Kind order: snapshot < trade
func compareEvents(a, b *domain.MarketEvent) int {
	if a.TimestampMs != b.TimestampMs {
		if a.TimestampMs < b.TimestampMs {
			return -1
		}
		return 1
	}
	if a.Seq != b.Seq {
		if a.Seq < b.Seq {
			return -1
		}
		return 1
	}
	if ka, kb := kindRank(a.Kind), kindRank(b.Kind); ka != kb {
		if ka < kb {
			return -1
		}
		return 1
	}
	ia, ib := eventInstrument(a), eventInstrument(b)
	if ia != ib {
		if ia < ib {
			return -1
		}
		return 1
	}
	return 0
}

func kindRank(k domain.EventKind) int {
	if k == domain.EventKindSnapshot {
		return 0
	}
	return 1
}

// eventInstrument is the tie-break key: the trade instrument, or the
// smallest instrument of a snapshot.
func eventInstrument(e *domain.MarketEvent) string {
	if e.Kind == domain.EventKindTrade && e.Trade != nil {
		return e.Trade.Instrument
	}
	first := ""
	for id := range e.Snapshot {
		if first == "" || id < first {
			first = id
		}
	}
	return first
}
