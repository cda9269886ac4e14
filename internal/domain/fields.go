package domain

// FieldCode identifies one numeric field of a per-instrument order book record.
// Codes are stable across the upstream protocol.
type FieldCode int

// Recognized field codes.
const (
	FieldLastPrice        FieldCode = 1  // last traded price
	FieldLastVolume       FieldCode = 2  // last traded volume (magnitude)
	FieldCumulativeVolume FieldCode = 3  // cumulative traded volume-to-date
	FieldBestBid          FieldCode = 4  // best bid price
	FieldBidVolume1       FieldCode = 9  // bid volume at depth 1
	FieldBidVolume5       FieldCode = 13 // bid volume at depth 5
	FieldBestAsk          FieldCode = 14 // best ask price
	FieldAskVolume1       FieldCode = 19 // ask volume at depth 1
	FieldAskVolume5       FieldCode = 23 // ask volume at depth 5
	FieldAggressor        FieldCode = 25 // last-trade aggressor flag
)

// MaxDepth is the number of book levels carried per side.
const MaxDepth = 5

// BidVolumeField returns the bid volume field code for depth level (1-based).
func BidVolumeField(level int) FieldCode {
	return FieldBidVolume1 + FieldCode(level-1)
}

// AskVolumeField returns the ask volume field code for depth level (1-based).
func AskVolumeField(level int) FieldCode {
	return FieldAskVolume1 + FieldCode(level-1)
}

// FieldMap holds the numeric fields of one instrument.
// Values are parsed once at ingestion; absent fields are absent keys.
type FieldMap map[FieldCode]float64

// Get returns the value of a field and whether it is present.
func (m FieldMap) Get(code FieldCode) (float64, bool) {
	v, ok := m[code]
	return v, ok
}

// Quotes returns best bid and best ask. ok is false if either is missing.
func (m FieldMap) Quotes() (bid, ask float64, ok bool) {
	bid, bidOK := m[FieldBestBid]
	ask, askOK := m[FieldBestAsk]
	return bid, ask, bidOK && askOK
}

// Mid returns (best_ask + best_bid) / 2. ok is false if either quote is missing.
func (m FieldMap) Mid() (float64, bool) {
	bid, ask, ok := m.Quotes()
	if !ok {
		return 0, false
	}
	return (ask + bid) / 2, true
}

// DepthSums sums the first depth bid and ask volume levels.
// Missing levels count as zero.
func (m FieldMap) DepthSums(depth int) (bidSum, askSum float64) {
	for level := 1; level <= depth; level++ {
		bidSum += m[BidVolumeField(level)]
		askSum += m[AskVolumeField(level)]
	}
	return bidSum, askSum
}

// Clone returns a copy of the map.
func (m FieldMap) Clone() FieldMap {
	out := make(FieldMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Merge overwrites fields of m with the fields present in update.
// Fields missing from update keep their previous value.
func (m FieldMap) Merge(update FieldMap) {
	for k, v := range update {
		m[k] = v
	}
}
