package features

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"orderbook-feature-lab/internal/domain"
)

func TestClassifier_Classify(t *testing.T) {
	book := quotes(10, 11, float64(domain.FieldCumulativeVolume), 500, float64(domain.FieldAggressor), 2, float64(domain.FieldLastPrice), 11)

	tests := []struct {
		name    string
		trade   domain.TradeFlag
		fields  domain.FieldMap
		want    domain.Side
		wantErr error
	}{
		{
			name:   "explicit marker wins over book",
			trade:  domain.TradeFlag{Instrument: "A", CumulativeVolume: 500, Aggressor: domain.SideAsk},
			fields: book,
			want:   domain.SideAsk,
		},
		{
			name:   "field 25 when snapshot describes the trade",
			trade:  domain.TradeFlag{Instrument: "A", CumulativeVolume: 500, Price: 11},
			fields: book,
			want:   domain.SideBid,
		},
		{
			name:   "field 25 ignored for a different trade",
			trade:  domain.TradeFlag{Instrument: "A", CumulativeVolume: 510, Price: 11.5},
			fields: book,
			want:   domain.SideAsk,
		},
		{
			name:   "price at ask",
			trade:  domain.TradeFlag{Instrument: "A", CumulativeVolume: 1, Price: 11},
			fields: quotes(10, 11),
			want:   domain.SideAsk,
		},
		{
			name:   "price below bid",
			trade:  domain.TradeFlag{Instrument: "A", CumulativeVolume: 1, Price: 9.5},
			fields: quotes(10, 11),
			want:   domain.SideBid,
		},
		{
			name:   "last price fallback when snapshot describes the trade",
			trade:  domain.TradeFlag{Instrument: "A", CumulativeVolume: 7},
			fields: quotes(10, 11, float64(domain.FieldCumulativeVolume), 7, float64(domain.FieldLastPrice), 10),
			want:   domain.SideBid,
		},
		{
			name:    "price inside spread",
			trade:   domain.TradeFlag{Instrument: "A", CumulativeVolume: 1, Price: 10.5},
			fields:  quotes(10, 11),
			wantErr: ErrUnclassifiableTrade,
		},
		{
			name:    "no price",
			trade:   domain.TradeFlag{Instrument: "A", CumulativeVolume: 1},
			fields:  quotes(10, 11),
			wantErr: ErrUnclassifiableTrade,
		},
		{
			name:    "no quotes",
			trade:   domain.TradeFlag{Instrument: "A", CumulativeVolume: 1, Price: 10},
			fields:  nil,
			wantErr: ErrUnclassifiableTrade,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trade := tt.trade
			got, err := Classifier{}.Classify(&trade, tt.fields)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				assert.Equal(t, domain.SideUnknown, got)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
