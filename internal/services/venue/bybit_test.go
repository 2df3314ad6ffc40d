package venue

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hirokisan/bybit/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const bybitInstruments = `{
  "retCode": 0, "retMsg": "OK",
  "result": {
    "category": "spot",
    "list": [
      {
        "symbol": "BTCUSDT", "baseCoin": "BTC", "quoteCoin": "USDT", "innovation": "0",
        "status": "Trading", "marginTrading": "both",
        "lotSizeFilter": {"basePrecision": "0.000001", "quotePrecision": "0.00000001",
          "minOrderQty": "0.000048", "maxOrderQty": "71.73956243", "minOrderAmt": "1", "maxOrderAmt": "2000000"},
        "priceFilter": {"tickSize": "0.01"}
      },
      {
        "symbol": "ETHUSDT", "baseCoin": "ETH", "quoteCoin": "USDT", "innovation": "0",
        "status": "Trading", "marginTrading": "both",
        "lotSizeFilter": {"basePrecision": "0.00001", "quotePrecision": "0.0000001",
          "minOrderQty": "0.00062", "maxOrderQty": "1229.2336", "minOrderAmt": "1", "maxOrderAmt": "2000000"},
        "priceFilter": {"tickSize": "0.01"}
      },
      {
        "symbol": "OLDUSDT", "baseCoin": "OLD", "quoteCoin": "USDT", "innovation": "0",
        "status": "Closed", "marginTrading": "none",
        "lotSizeFilter": {"basePrecision": "1", "quotePrecision": "0.01",
          "minOrderQty": "1", "maxOrderQty": "1000", "minOrderAmt": "1", "maxOrderAmt": "1000"},
        "priceFilter": {"tickSize": "0.0001"}
      }
    ]
  },
  "retExtInfo": {}, "time": 1700000000000
}`

// ETHUSDT is missing so its quote comes from the order book.
const bybitTickers = `{
  "retCode": 0, "retMsg": "OK",
  "result": {
    "category": "spot",
    "list": [
      {"symbol": "BTCUSDT", "bid1Price": "49990", "bid1Size": "1", "ask1Price": "50010", "ask1Size": "1", "lastPrice": "50000"}
    ]
  },
  "retExtInfo": {}, "time": 1700000000000
}`

const bybitOrderbook = `{
  "retCode": 0, "retMsg": "OK",
  "result": {"s": "ETHUSDT", "a": [["2500.5", "1.2"]], "b": [["2499.5", "3.4"]], "ts": 1700000000000, "u": 1},
  "retExtInfo": {}, "time": 1700000000000
}`

const bybitWallet = `{
  "retCode": 0, "retMsg": "OK",
  "result": {
    "list": [
      {
        "accountType": "UNIFIED",
        "coin": [
          {"coin": "BTC", "walletBalance": "1.5", "locked": "0.25"},
          {"coin": "USDT", "walletBalance": "1000", "locked": "100"},
          {"coin": "DOGE", "walletBalance": "0", "locked": "0"}
        ]
      },
      {
        "accountType": "UNIFIED",
        "coin": [
          {"coin": "BTC", "walletBalance": "0.5", "locked": "0"}
        ]
      }
    ]
  },
  "retExtInfo": {}, "time": 1700000000000
}`

func newTestBybit(t *testing.T) *Bybit {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/v5/market/instruments-info":
			io.WriteString(w, bybitInstruments)
		case "/v5/market/tickers":
			io.WriteString(w, bybitTickers)
		case "/v5/market/orderbook":
			if r.URL.Query().Get("symbol") == "ETHUSDT" {
				io.WriteString(w, bybitOrderbook)
				return
			}
			io.WriteString(w, `{"retCode": 0, "retMsg": "OK", "result": {"s": "OLDUSDT", "a": [], "b": [], "ts": 1, "u": 1}, "retExtInfo": {}, "time": 1}`)
		case "/v5/account/wallet-balance":
			io.WriteString(w, bybitWallet)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)

	client := bybit.NewClient().WithBaseURL(srv.URL).WithAuth("key", "secret")
	b, err := NewBybit(client, zap.NewNop(), d("0"))
	require.NoError(t, err)
	return b
}

func TestBybit_ListPairs(t *testing.T) {
	b := newTestBybit(t)
	assert.True(t, b.MakerFee().Equal(BybitMakerFee))

	pairs, err := b.ListPairs(context.Background())
	require.NoError(t, err)
	require.Len(t, pairs, 3)

	btc, err := b.Rules().Pair("BTC/USDT")
	require.NoError(t, err)
	assert.True(t, btc.Active)
	assert.True(t, btc.Limits.MinAmount.Equal(d("0.000048")))
	assert.True(t, btc.Limits.MinCost.Equal(d("1")))
	assert.True(t, btc.Precision.AmountStep.Equal(d("0.000001")))
	assert.True(t, btc.Precision.PriceTick.Equal(d("0.01")))

	old, err := b.Rules().Pair("OLD/USDT")
	require.NoError(t, err)
	assert.False(t, old.Active)
}

func TestBybit_FetchQuotesFallsBackToOrderbook(t *testing.T) {
	b := newTestBybit(t)
	pairs, err := b.ListPairs(context.Background())
	require.NoError(t, err)

	snap, err := b.FetchQuotes(context.Background(), pairs)
	require.NoError(t, err)

	btc, ok := snap.Get("BTC/USDT")
	require.True(t, ok)
	assert.True(t, btc.Mid.Equal(d("50000")))

	eth, ok := snap.Get("ETH/USDT")
	require.True(t, ok, "quote from the order book")
	assert.True(t, eth.High.Equal(d("2500.5")))
	assert.True(t, eth.Low.Equal(d("2499.5")))
	assert.True(t, eth.Mid.Equal(d("2500")))

	// empty book
	_, ok = snap.Get("OLD/USDT")
	assert.False(t, ok)
	assert.Equal(t, 2, snap.Len())
}

func TestBybit_FetchBalancesAggregatesAccounts(t *testing.T) {
	b := newTestBybit(t)

	set, err := b.FetchBalances(context.Background())
	require.NoError(t, err)

	assert.True(t, set.Total.Get("BTC").Equal(d("2")))
	assert.True(t, set.Used.Get("BTC").Equal(d("0.25")))
	assert.True(t, set.Free.Get("BTC").Equal(d("1.75")))

	assert.True(t, set.Total.Get("USDT").Equal(d("1000")))
	assert.True(t, set.Used.Get("USDT").Equal(d("100")))
	assert.True(t, set.Free.Get("USDT").Equal(d("900")))

	assert.NotContains(t, set.Total, "DOGE")
	for _, asset := range set.Total.Assets() {
		assert.True(t, set.Total.Get(asset).Equal(set.Free.Get(asset).Add(set.Used.Get(asset))), asset)
	}
}
