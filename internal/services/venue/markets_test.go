package venue

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cbh4ou/CryptoRebalanceSVC/internal/domain"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func testPairs() []domain.TradePair {
	return []domain.TradePair{
		{
			Base: "BTC", Quote: "USDT", Active: true,
			Limits:    domain.Limits{MinAmount: d("0.0001"), MinCost: d("10")},
			Precision: domain.Precision{AmountStep: d("0.00001"), PriceTick: d("0.01")},
		},
		{
			Base: "ETH", Quote: "BTC", Active: true,
			Limits:    domain.Limits{MinAmount: d("0.001"), MinCost: d("0.0001")},
			Precision: domain.Precision{AmountStep: d("0.0001"), PriceTick: d("0.00001")},
		},
		{Base: "LTC", Quote: "USDT", Active: false},
		{Base: "XRP", Quote: "EUR", Active: true},
	}
}

func TestMarkets_Precision(t *testing.T) {
	m := NewMarkets(testPairs()...)

	tests := []struct {
		name   string
		symbol string
		amount string
		price  string
		wantA  string
		wantP  string
	}{
		{name: "amount truncates", symbol: "BTC/USDT", amount: "0.123456789", price: "50000.004", wantA: "0.12345", wantP: "50000"},
		{name: "price rounds up", symbol: "BTC/USDT", amount: "1", price: "50000.005", wantA: "1", wantP: "50000.01"},
		{name: "cross pair", symbol: "ETH/BTC", amount: "2.99999", price: "0.054321", wantA: "2.9999", wantP: "0.05432"},
		{name: "no precision leaves values", symbol: "XRP/EUR", amount: "1.234567", price: "0.5123", wantA: "1.234567", wantP: "0.5123"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			amount, err := m.AmountToPrecision(tt.symbol, d(tt.amount))
			require.NoError(t, err)
			price, err := m.PriceToPrecision(tt.symbol, d(tt.price))
			require.NoError(t, err)
			assert.True(t, amount.Equal(d(tt.wantA)), "amount %s", amount)
			assert.True(t, price.Equal(d(tt.wantP)), "price %s", price)
		})
	}
}

func TestMarkets_UnknownPair(t *testing.T) {
	m := NewMarkets(testPairs()...)

	_, err := m.Limits("DOGE/USDT")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrUnknownPair))

	limits, err := m.Limits("BTC/USDT")
	require.NoError(t, err)
	assert.True(t, limits.MinCost.Equal(d("10")))
}

func TestMarkets_ActiveSorted(t *testing.T) {
	m := NewMarkets(testPairs()...)

	var symbols []string
	for _, p := range m.Active() {
		symbols = append(symbols, p.Symbol())
	}
	assert.Equal(t, []string{"BTC/USDT", "ETH/BTC", "XRP/EUR"}, symbols)

	m.Replace(testPairs()[:1])
	assert.Len(t, m.Active(), 1)
}

func TestFilterTouching(t *testing.T) {
	got := FilterTouching(testPairs(), []string{"ETH", "LTC"})
	require.Len(t, got, 1)
	assert.Equal(t, "ETH/BTC", got[0].Symbol())

	got = FilterTouching(testPairs(), []string{"USDT", "BTC"})
	assert.Len(t, got, 2)
}

func TestCloidFromID(t *testing.T) {
	cloid := cloidFromID("7f9c24e8-3b12-4a6f-9d2b-2f6f1c1f0a11")
	assert.Equal(t, "0x7f9c24e83b124a6f9d2b2f6f1c1f0a11", cloid)

	other := cloidFromID("not-a-uuid")
	assert.Len(t, other, 34)
	assert.Equal(t, other, cloidFromID("not-a-uuid"))
}
