package features

import (
	"fmt"

	"orderbook-feature-lab/internal/domain"
)

// Classifier decides whether a trade was ask- or bid-initiated.
//
// Order of evidence:
//  1. the trade's own aggressor marker;
//  2. the book's field 25, when the latest snapshot describes this trade
//     (its cumulative volume equals the trade's);
//  3. trade price against the last best quotes: price >= ask is
//     ask-initiated, price <= bid is bid-initiated.
//
// Anything else is ErrUnclassifiableTrade.
type Classifier struct{}

// Classify returns the aggressor side of trade given the latest book fields
// of its instrument. fields may be nil.
func (Classifier) Classify(trade *domain.TradeFlag, fields domain.FieldMap) (domain.Side, error) {
	if trade.Aggressor == domain.SideAsk || trade.Aggressor == domain.SideBid {
		return trade.Aggressor, nil
	}

	describesTrade := false
	if cum, ok := fields.Get(domain.FieldCumulativeVolume); ok && cum == trade.CumulativeVolume {
		describesTrade = true
		if flag, ok := fields.Get(domain.FieldAggressor); ok {
			if side := domain.SideFromFlag(flag); side != domain.SideUnknown {
				return side, nil
			}
		}
	}

	price := trade.Price
	if price <= 0 && describesTrade {
		price = fields[domain.FieldLastPrice]
	}
	if price <= 0 {
		return domain.SideUnknown, fmt.Errorf("%w: instrument %s has no trade price", ErrUnclassifiableTrade, trade.Instrument)
	}

	bid, ask, ok := fields.Quotes()
	if !ok {
		return domain.SideUnknown, fmt.Errorf("%w: instrument %s has no quotes", ErrUnclassifiableTrade, trade.Instrument)
	}

	switch {
	case price >= ask:
		return domain.SideAsk, nil
	case price <= bid:
		return domain.SideBid, nil
	default:
		return domain.SideUnknown, fmt.Errorf("%w: instrument %s price %g inside spread [%g, %g]",
			ErrUnclassifiableTrade, trade.Instrument, price, bid, ask)
	}
}
