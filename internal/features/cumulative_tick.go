package features

import "orderbook-feature-lab/internal/domain"

// Cumulative tick volume columns, before prefixing.
const (
	FeatureCubidTime = "cubid_time"
	FeatureCuaskTime = "cuask_time"
	FeatureCubidVol  = "cubid_vol"
	FeatureCuaskVol  = "cuask_vol"
	FeatureTotalVol  = "total_vol"
	FeatureVolDiff   = "vol_diff"
	FeatureTimeDiff  = "time_diff"
)

// CumulativeTickColumns lists the columns in write order.
var CumulativeTickColumns = []string{
	FeatureCubidTime, FeatureCuaskTime, FeatureCubidVol, FeatureCuaskVol,
	FeatureTotalVol, FeatureVolDiff, FeatureTimeDiff,
}

type sideCounters struct {
	bidCount, askCount float64
	bidVol, askVol     float64
}

// cumulativeTickVolume counts trades and sums volume per aggressor side.
type cumulativeTickVolume struct {
	prefix   string
	tape     *tickTape
	counters map[string]*sideCounters
}

// NewCumulativeTickVolume creates a cumulative tick volume handler.
// Column names are prefix + the CumulativeTickColumns names.
func NewCumulativeTickVolume(name, prefix string, window domain.Window) *Windowed {
	if name == "" {
		name = prefix + string(domain.HandlerKindCumulativeTickVolume)
	}
	columns := make([]string, len(CumulativeTickColumns))
	for i, c := range CumulativeTickColumns {
		columns[i] = prefix + c
	}
	h := &cumulativeTickVolume{prefix: prefix, tape: newTickTape(), counters: make(map[string]*sideCounters)}
	return NewWindowed(domain.HandlerKindCumulativeTickVolume, name, window, columns, h)
}

func (h *cumulativeTickVolume) OnOpen(s *Scope) error {
	for _, id := range h.tape.open(s) {
		h.counters[id] = &sideCounters{}
	}
	return nil
}

func (h *cumulativeTickVolume) OnUpdate(s *Scope) error {
	t, ok := h.tape.observe(s)
	if !ok {
		return nil
	}
	c, ok := h.counters[t.instrument]
	if !ok {
		c = &sideCounters{}
		h.counters[t.instrument] = c
	}
	switch t.side {
	case domain.SideBid:
		c.bidCount++
		c.bidVol += t.volume
	case domain.SideAsk:
		c.askCount++
		c.askVol += t.volume
	}
	return nil
}

func (h *cumulativeTickVolume) OnClose(s *Scope, w Writer) error {
	for _, id := range h.tape.instruments(s) {
		c, ok := h.counters[id]
		if !ok {
			c = &sideCounters{}
		}
		w.Write(id, h.prefix+FeatureCubidTime, c.bidCount)
		w.Write(id, h.prefix+FeatureCuaskTime, c.askCount)
		w.Write(id, h.prefix+FeatureCubidVol, c.bidVol)
		w.Write(id, h.prefix+FeatureCuaskVol, c.askVol)
		w.Write(id, h.prefix+FeatureTotalVol, c.bidVol+c.askVol)
		w.Write(id, h.prefix+FeatureVolDiff, c.askVol-c.bidVol)
		w.Write(id, h.prefix+FeatureTimeDiff, c.askCount-c.bidCount)
	}
	return nil
}
