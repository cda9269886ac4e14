// Package feed turns live market data streams into domain.MarketEvent values.
package feed

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"

	"orderbook-feature-lab/internal/domain"
)

// ErrDecode is returned for messages that cannot be turned into an event.
var ErrDecode = errors.New("feed decode")

// Message types on the wire.
const (
	MessageSnapshot = "snapshot"
	MessageTrade    = "trade"
)

// Message is the JSON wire form of one market event.
//
// Snapshot:
//
//	{"type":"snapshot","ts":1704187800000,"seq":7,"book":{"IF2401":{"4":"3500.2","14":"3500.4"}}}
//
// Trade:
//
//	{"type":"trade","ts":1704187800120,"seq":8,"instrument":"IF2401","cum_volume":"12040","price":"3500.4","aggressor":1}
//
// Numeric values may be JSON numbers or decimal strings.
type Message struct {
	Type string `json:"type"`
	Ts   int64  `json:"ts"`
	Seq  int64  `json:"seq"`

	Book map[string]map[string]decimal.Decimal `json:"book,omitempty"`

	Instrument string           `json:"instrument,omitempty"`
	CumVolume  *decimal.Decimal `json:"cum_volume,omitempty"`
	Price      *decimal.Decimal `json:"price,omitempty"`
	Aggressor  *decimal.Decimal `json:"aggressor,omitempty"`
}

// Decode parses one wire message.
func Decode(data []byte) (*domain.MarketEvent, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return msg.Event()
}

// Event converts the message into a market event.
func (m *Message) Event() (*domain.MarketEvent, error) {
	if m.Ts <= 0 {
		return nil, fmt.Errorf("%w: missing timestamp", ErrDecode)
	}

	switch m.Type {
	case MessageSnapshot:
		if len(m.Book) == 0 {
			return nil, fmt.Errorf("%w: snapshot without book", ErrDecode)
		}
		snapshot := make(domain.OrderBookSnapshot, len(m.Book))
		for instrument, raw := range m.Book {
			fields, err := decodeFields(raw)
			if err != nil {
				return nil, fmt.Errorf("%w: instrument %s: %v", ErrDecode, instrument, err)
			}
			snapshot[instrument] = fields
		}
		ev := domain.NewSnapshotEvent(m.Ts, snapshot)
		ev.Seq = m.Seq
		return ev, nil

	case MessageTrade:
		if m.Instrument == "" {
			return nil, fmt.Errorf("%w: trade without instrument", ErrDecode)
		}
		if m.CumVolume == nil {
			return nil, fmt.Errorf("%w: trade without cum_volume", ErrDecode)
		}
		trade := domain.TradeFlag{
			Instrument:       m.Instrument,
			CumulativeVolume: m.CumVolume.InexactFloat64(),
		}
		if m.Aggressor != nil {
			trade.Aggressor = domain.SideFromFlag(m.Aggressor.InexactFloat64())
		}
		if m.Price != nil {
			trade.Price = m.Price.InexactFloat64()
		}
		ev := domain.NewTradeEvent(m.Ts, trade)
		ev.Seq = m.Seq
		return ev, nil

	default:
		return nil, fmt.Errorf("%w: unknown message type %q", ErrDecode, m.Type)
	}
}

// Encode renders an event in wire form.
func Encode(ev *domain.MarketEvent) ([]byte, error) {
	msg := Message{Type: string(ev.Kind), Ts: ev.TimestampMs, Seq: ev.Seq}
	switch ev.Kind {
	case domain.EventKindSnapshot:
		msg.Book = make(map[string]map[string]decimal.Decimal, len(ev.Snapshot))
		for instrument, fields := range ev.Snapshot {
			raw := make(map[string]decimal.Decimal, len(fields))
			for code, v := range fields {
				raw[strconv.Itoa(int(code))] = decimal.NewFromFloat(v)
			}
			msg.Book[instrument] = raw
		}
	case domain.EventKindTrade:
		cum := decimal.NewFromFloat(ev.Trade.CumulativeVolume)
		msg.Instrument = ev.Trade.Instrument
		msg.CumVolume = &cum
		if ev.Trade.Aggressor != domain.SideUnknown {
			flag := decimal.NewFromInt(int64(ev.Trade.Aggressor))
			msg.Aggressor = &flag
		}
		if ev.Trade.Price > 0 {
			price := decimal.NewFromFloat(ev.Trade.Price)
			msg.Price = &price
		}
	default:
		return nil, fmt.Errorf("unknown event kind %q", ev.Kind)
	}
	return json.Marshal(msg)
}

func decodeFields(raw map[string]decimal.Decimal) (domain.FieldMap, error) {
	fields := make(domain.FieldMap, len(raw))
	for key, v := range raw {
		code, err := strconv.Atoi(key)
		if err != nil || code < 1 {
			return nil, fmt.Errorf("invalid field code %q", key)
		}
		fields[domain.FieldCode(code)] = v.InexactFloat64()
	}
	return fields, nil
}
