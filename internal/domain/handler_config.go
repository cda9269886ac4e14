package domain

// HandlerKind identifies a feature handler variant.
type HandlerKind string

// Handler kind constants.
const (
	HandlerKindMidPriceReturn       HandlerKind = "mid_price_return"
	HandlerKindOrderBookPressure    HandlerKind = "order_book_pressure"
	HandlerKindLastTickVolume       HandlerKind = "last_tick_volume"
	HandlerKindCumulativeTickVolume HandlerKind = "cumulative_tick_volume"
	HandlerKindIndexDelta           HandlerKind = "index_delta"
	HandlerKindIndexSnapshot        HandlerKind = "index_snapshot"
)

// HandlerConfig describes one handler instance.
// Optional parameters are nil when not set.
type HandlerConfig struct {
	Kind       HandlerKind
	Name       string // feature column name; defaults per kind when empty
	Instrument string // concrete id or AllInstruments
	StartMs    int64
	EndMs      int64

	Depth  *int       // ORDER_BOOK_PRESSURE: levels summed per side, 1..5
	Field  *FieldCode // INDEX_DELTA / INDEX_SNAPSHOT: captured field
	Prefix string     // CUMULATIVE_TICK_VOLUME: column name prefix
}
