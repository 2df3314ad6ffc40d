package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestRateSnapshot_CopiesInput(t *testing.T) {
	in := map[string]Rate{"BTC/USDT": NewRate(d("101"), d("99"))}
	snap := NewRateSnapshot(in, time.Unix(100, 0))

	in["BTC/USDT"] = NewRate(d("1"), d("1"))
	in["ETH/USDT"] = NewRate(d("2"), d("2"))

	r, ok := snap.Get("BTC/USDT")
	require.True(t, ok)
	assert.True(t, r.Mid.Equal(d("100")))
	assert.Equal(t, []string{"BTC/USDT"}, snap.Symbols())
	assert.Equal(t, 1, snap.Len())
	assert.Equal(t, time.Unix(100, 0), snap.TakenAt())

	var empty *RateSnapshot
	_, ok = empty.Get("BTC/USDT")
	assert.False(t, ok)
	assert.Zero(t, empty.Len())
}

func TestPriceMode_Price(t *testing.T) {
	r := NewRate(d("105"), d("95"))
	tests := []struct {
		mode      PriceMode
		buy, sell string
	}{
		{PriceModeMid, "100", "100"},
		{PriceModePassive, "95", "105"},
		{PriceModeCheap, "105", "95"},
	}
	for _, tt := range tests {
		t.Run(tt.mode.String(), func(t *testing.T) {
			assert.True(t, tt.mode.Price(r, DirectionBuy).Equal(d(tt.buy)))
			assert.True(t, tt.mode.Price(r, DirectionSell).Equal(d(tt.sell)))
		})
	}

	_, err := ParsePriceMode("aggressive")
	assert.Error(t, err)
	m, err := ParsePriceMode("cheap")
	require.NoError(t, err)
	assert.Equal(t, PriceModeCheap, m)
}

func TestRoute_Inverse(t *testing.T) {
	route := Route{
		NewHop("STMX", "BTC", DirectionSell),
		NewHop("BTC", "USDT", DirectionSell),
	}
	assert.Equal(t, "STMX", route.From())
	assert.Equal(t, "USDT", route.To())

	inv := route.Inverse()
	require.Len(t, inv, 2)
	assert.Equal(t, "USDT", inv.From())
	assert.Equal(t, "STMX", inv.To())
	assert.Equal(t, DirectionBuy, inv[0].Direction)
	assert.Equal(t, "BTC/USDT", inv[0].Symbol)
	assert.Equal(t, DirectionSell, route[0].Direction, "original untouched")

	assert.True(t, Route{}.IsEmpty())
	assert.Equal(t, "direct", Route{}.String())
}

func TestTradePair(t *testing.T) {
	p := TradePair{Base: "ETH", Quote: "BTC"}
	assert.Equal(t, "ETH/BTC", p.Symbol())
	other, ok := p.Other("BTC")
	assert.True(t, ok)
	assert.Equal(t, "ETH", other)
	_, ok = p.Other("USDT")
	assert.False(t, ok)

	base, quote, err := ParseSymbol("ETH/BTC")
	require.NoError(t, err)
	assert.Equal(t, "ETH", base)
	assert.Equal(t, "BTC", quote)
	for _, bad := range []string{"ETHBTC", "/BTC", "ETH/", "A/B/C"} {
		_, _, err := ParseSymbol(bad)
		assert.Error(t, err, bad)
	}
}

func TestOrder_ConfirmationToOrder(t *testing.T) {
	draft := NewOrder(NewHop("BTC", "USDT", DirectionSell), d("0.2"), d("50000"))
	assert.True(t, draft.TotalInQuote.Equal(d("10000")))
	assert.Equal(t, OrderStatusDraft, draft.Status)

	o := OrderConfirmation{ID: "1", Amount: d("0.1"), Filled: true}.ToOrder(draft)
	assert.True(t, o.Amount.Equal(d("0.1")))
	assert.True(t, o.Price.Equal(d("50000")))
	assert.True(t, o.TotalInQuote.Equal(d("5000")))
	assert.Equal(t, OrderStatusFilled, o.Status)
	assert.Equal(t, "BTC/USDT", o.Symbol)
	assert.True(t, draft.Amount.Equal(d("0.2")), "draft untouched")

	o = OrderConfirmation{}.ToOrder(draft)
	assert.Equal(t, OrderStatusSubmitted, o.Status)
	assert.True(t, o.Status.IsTerminal())
	assert.False(t, OrderStatusValidated.IsTerminal())
}

func TestBalances(t *testing.T) {
	b := Balances{"ETH": d("1"), "BTC": d("0.5"), "DOGE": decimal.Zero}
	assert.Equal(t, []string{"BTC", "ETH"}, b.Assets())
	assert.True(t, b.Get("XRP").IsZero())

	c := b.Clone()
	c["BTC"] = d("9")
	assert.True(t, b.Get("BTC").Equal(d("0.5")))
}

func TestTradeIntent_SignedWeights(t *testing.T) {
	w := TradeIntent{From: "BTC", To: "USDT", Weight: d("0.1")}.SignedWeights()
	assert.True(t, w["BTC"].Equal(d("-0.1")))
	assert.True(t, w["USDT"].Equal(d("0.1")))
}
