package domain

import "fmt"

// EventKind represents the type of market event.
type EventKind string

// Event kind constants.
const (
	EventKindSnapshot EventKind = "snapshot"
	EventKindTrade    EventKind = "trade"
)

// Side is the aggressor side of a trade.
type Side int

// Side constants. SideAsk means the trade executed against the offer
// (ask-initiated), SideBid against the bid (bid-initiated).
const (
	SideUnknown Side = 0
	SideAsk     Side = 1
	SideBid     Side = 2
)

// String returns the protocol name of the side.
func (s Side) String() string {
	switch s {
	case SideAsk:
		return "ask"
	case SideBid:
		return "bid"
	default:
		return "unknown"
	}
}

// Sign returns +1 for ask-initiated, -1 for bid-initiated, 0 otherwise.
func (s Side) Sign() float64 {
	switch s {
	case SideAsk:
		return 1
	case SideBid:
		return -1
	default:
		return 0
	}
}

// SideFromFlag maps the protocol aggressor flag (field 25) to a Side.
// 1 = ask-initiated, 2 = bid-initiated; anything else is unknown.
func SideFromFlag(flag float64) Side {
	switch flag {
	case 1:
		return SideAsk
	case 2:
		return SideBid
	default:
		return SideUnknown
	}
}

// OrderBookSnapshot maps instrument id to its field map.
type OrderBookSnapshot map[string]FieldMap

// Validate checks the per-instrument book invariants:
// bid <= ask and non-negative depth volumes.
func (s OrderBookSnapshot) Validate() error {
	for instrument, fields := range s {
		if bid, ask, ok := fields.Quotes(); ok && bid > ask {
			return fmt.Errorf("instrument %s: crossed book bid=%f ask=%f", instrument, bid, ask)
		}
		for level := 1; level <= MaxDepth; level++ {
			if v, ok := fields[BidVolumeField(level)]; ok && v < 0 {
				return fmt.Errorf("instrument %s: negative bid volume at depth %d", instrument, level)
			}
			if v, ok := fields[AskVolumeField(level)]; ok && v < 0 {
				return fmt.Errorf("instrument %s: negative ask volume at depth %d", instrument, level)
			}
		}
	}
	return nil
}

// TradeFlag is emitted once per trade print.
type TradeFlag struct {
	Instrument       string
	CumulativeVolume float64 // cumulative volume-to-date after this trade
	Price            float64 // 0 if not supplied; book field 1 is used instead
	Aggressor        Side    // SideUnknown if not supplied
}

// MarketEvent represents one snapshot or one trade print.
// Only one of Snapshot or Trade is set, based on Kind.
type MarketEvent struct {
	Kind        EventKind
	TimestampMs int64 // Unix timestamp in milliseconds
	Seq         int64 // feed sequence number, tie-breaker for equal timestamps
	Snapshot    OrderBookSnapshot
	Trade       *TradeFlag
}

// Instruments returns the instrument ids carried by the event.
func (e *MarketEvent) Instruments() []string {
	switch e.Kind {
	case EventKindSnapshot:
		out := make([]string, 0, len(e.Snapshot))
		for id := range e.Snapshot {
			out = append(out, id)
		}
		return out
	case EventKindTrade:
		if e.Trade != nil {
			return []string{e.Trade.Instrument}
		}
	}
	return nil
}

// NewSnapshotEvent builds a snapshot event.
func NewSnapshotEvent(timestampMs int64, snapshot OrderBookSnapshot) *MarketEvent {
	return &MarketEvent{Kind: EventKindSnapshot, TimestampMs: timestampMs, Snapshot: snapshot}
}

// NewTradeEvent builds a trade event.
func NewTradeEvent(timestampMs int64, trade TradeFlag) *MarketEvent {
	return &MarketEvent{Kind: EventKindTrade, TimestampMs: timestampMs, Trade: &trade}
}
