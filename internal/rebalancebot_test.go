package internal

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cbh4ou/CryptoRebalanceSVC/config"
	"github.com/cbh4ou/CryptoRebalanceSVC/internal/domain"
	"github.com/cbh4ou/CryptoRebalanceSVC/internal/services/venue"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type fakeExchange struct {
	mu        sync.Mutex
	markets   *venue.Markets
	balances  domain.Balances
	rates     map[string]domain.Rate
	submitted []*domain.Order
	cancelled [][]domain.TradePair
	failOn    string
	quotesErr error
	onSubmit  func()
}

func newFakeExchange() *fakeExchange {
	return &fakeExchange{
		markets: venue.NewMarkets(
			domain.TradePair{
				Base: "BTC", Quote: "USDT", Active: true,
				Limits:    domain.Limits{MinAmount: d("0.0001"), MinCost: d("10")},
				Precision: domain.Precision{AmountStep: d("0.00001"), PriceTick: d("0.01")},
			},
			domain.TradePair{
				Base: "ETH", Quote: "USDT", Active: true,
				Limits:    domain.Limits{MinAmount: d("0.001"), MinCost: d("10")},
				Precision: domain.Precision{AmountStep: d("0.0001"), PriceTick: d("0.01")},
			},
			domain.TradePair{Base: "XRP", Quote: "EUR", Active: true},
		),
		balances: domain.Balances{"BTC": d("1.2"), "USDT": d("40000")},
		rates: map[string]domain.Rate{
			"BTC/USDT": domain.NewRate(d("50000"), d("50000")),
			"ETH/USDT": domain.NewRate(d("2000"), d("2000")),
		},
	}
}

func (f *fakeExchange) Name() string              { return "fake" }
func (f *fakeExchange) Rules() *venue.Markets     { return f.markets }
func (f *fakeExchange) MakerFee() decimal.Decimal { return d("0.001") }

func (f *fakeExchange) ListPairs(ctx context.Context) ([]domain.TradePair, error) {
	return f.markets.Active(), nil
}

func (f *fakeExchange) FetchBalances(ctx context.Context) (domain.BalanceSet, error) {
	return domain.BalanceSet{Free: f.balances.Clone(), Used: domain.Balances{}, Total: f.balances.Clone()}, nil
}

func (f *fakeExchange) FetchQuotes(ctx context.Context, pairs []domain.TradePair) (*domain.RateSnapshot, error) {
	if f.quotesErr != nil {
		return nil, f.quotesErr
	}
	return domain.NewRateSnapshot(f.rates, time.Now()), nil
}

func (f *fakeExchange) SubmitOrder(ctx context.Context, order *domain.Order) (domain.OrderConfirmation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if order.Symbol == f.failOn {
		return domain.OrderConfirmation{}, errors.New("venue rejected order")
	}
	f.submitted = append(f.submitted, order)
	if f.onSubmit != nil {
		f.onSubmit()
	}
	return domain.OrderConfirmation{ID: order.ClientOrderID, Filled: true}, nil
}

func (f *fakeExchange) CancelOpenOrders(ctx context.Context, pairs []domain.TradePair) ([]domain.OrderConfirmation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, pairs)
	return []domain.OrderConfirmation{{ID: "open-1", Symbol: "BTC/USDT"}}, nil
}

type memJournal struct {
	records []domain.RunRecord
}

func (j *memJournal) Save(record domain.RunRecord) (uint64, error) {
	j.records = append(j.records, record)
	return uint64(len(j.records)), nil
}

func testConfig() config.Config {
	return config.Config{
		Platform:          config.PlatformSimulate,
		Targets:           map[string]decimal.Decimal{"BTC": d("50"), "USDT": d("50")},
		Threshold:         d("1"),
		ValuationCurrency: "USDT",
		Mode:              domain.PriceModeMid,
		MaxOrders:         5,
	}
}

func TestRebalanceBot_DryRun(t *testing.T) {
	ex := newFakeExchange()
	journal := &memJournal{}
	bot, err := NewRebalanceBot(zap.NewNop(), testConfig(), ex, journal)
	require.NoError(t, err)

	out, err := bot.Run(context.Background())
	require.NoError(t, err)

	assert.True(t, out.Valuation.Total.Equal(d("100000")))
	assert.True(t, out.Valuation.NeedsBalancing)
	require.Len(t, out.Plan.Intents, 1)
	assert.Equal(t, "BTC", out.Plan.Intents[0].From)

	require.Len(t, out.Orders, 1)
	o := out.Orders[0]
	assert.Equal(t, "BTC/USDT", o.Symbol)
	assert.Equal(t, domain.DirectionSell, o.Direction)
	assert.True(t, o.Amount.Equal(d("0.2")), "amount %s", o.Amount)
	assert.NotEmpty(t, o.ClientOrderID)

	assert.True(t, out.Result.DryRun)
	assert.Empty(t, ex.submitted)
	assert.True(t, out.Result.TotalFee.Equal(d("10")))
	assert.True(t, out.Result.Proposed.Weight("BTC").Equal(d("0.5")))

	require.Len(t, journal.records, 1)
	rec := journal.records[0]
	assert.Equal(t, uint64(1), out.JournalIndex)
	assert.Equal(t, "fake", rec.Platform)
	assert.Equal(t, "100000", rec.TotalValue)
	assert.False(t, rec.Executed)
	assert.Len(t, rec.Orders, 1)
	assert.Equal(t, "60.0000", rec.Allocation["BTC"])
}

func TestRebalanceBot_TradeWithFailure(t *testing.T) {
	ex := newFakeExchange()
	ex.balances = domain.Balances{"BTC": d("1"), "ETH": d("0"), "USDT": d("50000")}
	ex.failOn = "ETH/USDT"

	conf := testConfig()
	// BTC -> ETH has no direct market: sell BTC/USDT then buy ETH/USDT
	conf.Targets = map[string]decimal.Decimal{"BTC": d("40"), "ETH": d("10"), "USDT": d("50")}
	conf.Trade = true

	journal := &memJournal{}
	bot, err := NewRebalanceBot(zap.NewNop(), conf, ex, journal)
	require.NoError(t, err)

	out, err := bot.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, out.Orders, 2)
	// 10000 USDT from the BTC sale minus the 0.1% maker fee buys 4.995 ETH
	assert.True(t, out.Orders[1].Amount.Equal(d("4.995")), "ETH amount %s", out.Orders[1].Amount)

	res := out.Result
	require.Len(t, res.Successes, 1)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, "ETH/USDT", res.Failures[0].Order.Symbol)
	assert.Error(t, res.Err())

	require.Len(t, ex.submitted, 1)
	assert.Equal(t, "BTC/USDT", ex.submitted[0].Symbol)

	rec := journal.records[0]
	assert.True(t, rec.Executed)
	assert.Len(t, rec.Submitted, 1)
	assert.Len(t, rec.Failed, 1)
}

func TestRebalanceBot_InterruptedExecutionIsJournaled(t *testing.T) {
	ex := newFakeExchange()
	ex.balances = domain.Balances{"BTC": d("1"), "ETH": d("0"), "USDT": d("50000")}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ex.onSubmit = cancel

	conf := testConfig()
	conf.Targets = map[string]decimal.Decimal{"BTC": d("40"), "ETH": d("10"), "USDT": d("50")}
	conf.Trade = true

	journal := &memJournal{}
	bot, err := NewRebalanceBot(zap.NewNop(), conf, ex, journal)
	require.NoError(t, err)

	out, err := bot.Run(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))

	require.NotNil(t, out)
	require.NotNil(t, out.Result)
	assert.True(t, out.Result.Interrupted)
	require.Len(t, out.Result.Successes, 1)
	assert.Equal(t, "BTC/USDT", out.Result.Successes[0].Symbol)
	require.Len(t, out.Result.Failures, 1)
	assert.Equal(t, "ETH/USDT", out.Result.Failures[0].Order.Symbol)
	require.Len(t, ex.submitted, 1)

	require.Len(t, journal.records, 1)
	rec := journal.records[0]
	assert.True(t, rec.Interrupted)
	assert.Len(t, rec.Submitted, 1)
	assert.Len(t, rec.Failed, 1)
	assert.Equal(t, uint64(1), out.JournalIndex)
}

func TestRebalanceBot_WithinThreshold(t *testing.T) {
	ex := newFakeExchange()
	ex.balances = domain.Balances{"BTC": d("1"), "USDT": d("50000")}

	bot, err := NewRebalanceBot(zap.NewNop(), testConfig(), ex, nil)
	require.NoError(t, err)

	out, err := bot.Run(context.Background())
	require.NoError(t, err)
	assert.False(t, out.Valuation.NeedsBalancing)
	assert.True(t, out.Plan.IsEmpty())
	assert.True(t, out.Result.Skipped)
	assert.Zero(t, out.JournalIndex)
}

func TestRebalanceBot_CancelsBeforeSnapshot(t *testing.T) {
	ex := newFakeExchange()
	conf := testConfig()
	conf.Cancel = true

	bot, err := NewRebalanceBot(zap.NewNop(), conf, ex, nil)
	require.NoError(t, err)

	out, err := bot.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, ex.cancelled, 1)
	var symbols []string
	for _, p := range ex.cancelled[0] {
		symbols = append(symbols, p.Symbol())
	}
	assert.ElementsMatch(t, []string{"BTC/USDT", "ETH/USDT"}, symbols, "only pairs touching portfolio assets")
	assert.Len(t, out.Cancelled, 1)
}

func TestRebalanceBot_SnapshotFailureAborts(t *testing.T) {
	ex := newFakeExchange()
	ex.quotesErr = errors.Wrap(domain.ErrUnknownPair, "quotes")

	bot, err := NewRebalanceBot(zap.NewNop(), testConfig(), ex, nil)
	require.NoError(t, err)

	_, err = bot.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrUnknownPair))
}

func TestNewRebalanceBot_Validation(t *testing.T) {
	_, err := NewRebalanceBot(zap.NewNop(), testConfig(), nil, nil)
	assert.Error(t, err)

	conf := testConfig()
	conf.Targets = map[string]decimal.Decimal{"BTC": d("90")}
	_, err = NewRebalanceBot(zap.NewNop(), conf, newFakeExchange(), nil)
	assert.True(t, errors.Is(err, domain.ErrConfiguration))
}
