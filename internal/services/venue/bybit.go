package venue

import (
	"context"
	"time"

	"github.com/hirokisan/bybit/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/cbh4ou/CryptoRebalanceSVC/internal/domain"
)

// BybitMakerFee default spot maker fee.
var BybitMakerFee = decimal.RequireFromString("0.001")

// Bybit spot venue on a unified trading account.
type Bybit struct {
	client   *bybit.Client
	l        *zap.Logger
	markets  *Markets
	makerFee decimal.Decimal
}

// NewBybit creates a Bybit venue.
func NewBybit(client *bybit.Client, l *zap.Logger, makerFee decimal.Decimal) (*Bybit, error) {
	if client == nil {
		return nil, errors.New("bybit client is nil")
	}
	if l == nil {
		l = zap.NewNop()
	}
	if makerFee.IsZero() {
		makerFee = BybitMakerFee
	}
	return &Bybit{client: client, l: l, markets: NewMarkets(), makerFee: makerFee}, nil
}

func (b *Bybit) Name() string { return "bybit" }

func (b *Bybit) Rules() *Markets { return b.markets }

func (b *Bybit) MakerFee() decimal.Decimal { return b.makerFee }

// ListPairs reads spot instruments and refreshes the rule book.
func (b *Bybit) ListPairs(ctx context.Context) ([]domain.TradePair, error) {
	res, err := b.client.V5().Market().GetInstrumentsInfo(bybit.V5GetInstrumentsInfoParam{
		Category: bybit.CategoryV5Spot,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to get bybit instruments")
	}
	if res.Result.Spot == nil {
		return nil, errors.New("bybit API returned no spot instruments")
	}

	pairs := make([]domain.TradePair, 0, len(res.Result.Spot.List))
	for _, item := range res.Result.Spot.List {
		minQty, err1 := parseDecimal(item.LotSizeFilter.MinOrderQty)
		minAmt, err2 := parseDecimal(item.LotSizeFilter.MinOrderAmt)
		step, err3 := parseDecimal(item.LotSizeFilter.BasePrecision)
		tick, err4 := parseDecimal(item.PriceFilter.TickSize)
		if err := firstErr(err1, err2, err3, err4); err != nil {
			b.l.Debug("skipping bybit instrument", zap.String("symbol", string(item.Symbol)), zap.Error(err))
			continue
		}
		pairs = append(pairs, domain.TradePair{
			Base:      string(item.BaseCoin),
			Quote:     string(item.QuoteCoin),
			Active:    item.Status == bybit.InstrumentStatusTrading,
			Limits:    domain.Limits{MinAmount: minQty, MinCost: minAmt},
			Precision: domain.Precision{AmountStep: step, PriceTick: tick},
		})
	}
	b.markets.Replace(pairs)

	return pairs, nil
}

// FetchQuotes reads bid1/ask1 of every spot ticker in one call and falls back
// to the order book for pairs missing from it.
func (b *Bybit) FetchQuotes(ctx context.Context, pairs []domain.TradePair) (*domain.RateSnapshot, error) {
	res, err := b.client.V5().Market().GetTickers(bybit.V5GetTickersParam{
		Category: bybit.CategoryV5Spot,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to get bybit tickers")
	}
	if res.Result.Spot == nil {
		return nil, errors.New("bybit API returned empty tickers")
	}

	bySymbol := make(map[string]domain.Rate, len(res.Result.Spot.List))
	for _, t := range res.Result.Spot.List {
		ask, err1 := parseDecimal(t.Ask1Price)
		bid, err2 := parseDecimal(t.Bid1Price)
		if firstErr(err1, err2) != nil || !ask.IsPositive() || !bid.IsPositive() {
			continue
		}
		bySymbol[string(t.Symbol)] = domain.NewRate(ask, bid)
	}

	rates := make(map[string]domain.Rate, len(pairs))
	for _, p := range pairs {
		if rate, ok := bySymbol[p.Base+p.Quote]; ok {
			rates[p.Symbol()] = rate
			continue
		}

		rate, err := b.orderbookRate(p.Base + p.Quote)
		if err != nil {
			b.l.Warn("no quote for pair", zap.String("pair", p.Symbol()), zap.Error(err))
			continue
		}
		rates[p.Symbol()] = rate
	}

	return domain.NewRateSnapshot(rates, time.Now()), nil
}

func (b *Bybit) orderbookRate(symbol string) (domain.Rate, error) {
	limit := 1
	res, err := b.client.V5().Market().GetOrderbook(bybit.V5GetOrderbookParam{
		Category: bybit.CategoryV5Spot,
		Symbol:   bybit.SymbolV5(symbol),
		Limit:    &limit,
	})
	if err != nil {
		return domain.Rate{}, errors.Wrapf(err, "failed to get bybit order book for %s", symbol)
	}
	if len(res.Result.Bids) == 0 || len(res.Result.Asks) == 0 {
		return domain.Rate{}, errors.Errorf("empty order book for %s", symbol)
	}
	bid, err := parseDecimal(res.Result.Bids[0].Price)
	if err != nil {
		return domain.Rate{}, err
	}
	ask, err := parseDecimal(res.Result.Asks[0].Price)
	if err != nil {
		return domain.Rate{}, err
	}
	if !bid.IsPositive() || !ask.IsPositive() {
		return domain.Rate{}, errors.Errorf("no bid or ask for %s", symbol)
	}
	return domain.NewRate(ask, bid), nil
}

// FetchBalances reads the unified account wallet.
func (b *Bybit) FetchBalances(ctx context.Context) (domain.BalanceSet, error) {
	res, err := b.client.V5().Account().GetWalletBalance(bybit.AccountTypeV5("UNIFIED"), nil)
	if err != nil {
		return domain.BalanceSet{}, errors.Wrap(err, "failed to get bybit wallet balance")
	}

	set := domain.BalanceSet{Free: domain.Balances{}, Used: domain.Balances{}, Total: domain.Balances{}}
	for _, account := range res.Result.List {
		for _, c := range account.Coin {
			total, err := parseDecimal(c.WalletBalance)
			if err != nil {
				return domain.BalanceSet{}, errors.Wrapf(err, "failed to parse %s balance", c.Coin)
			}
			locked, err := parseDecimal(c.Locked)
			if err != nil {
				return domain.BalanceSet{}, errors.Wrapf(err, "failed to parse %s locked balance", c.Coin)
			}
			if total.IsZero() {
				continue
			}
			asset := string(c.Coin)
			set.Total[asset] = set.Total.Get(asset).Add(total)
			set.Used[asset] = set.Used.Get(asset).Add(locked)
			set.Free[asset] = set.Free.Get(asset).Add(total.Sub(locked))
		}
	}
	return set, nil
}

// SubmitOrder places a GTC limit order.
func (b *Bybit) SubmitOrder(ctx context.Context, order *domain.Order) (domain.OrderConfirmation, error) {
	pair, err := b.markets.Pair(order.Symbol)
	if err != nil {
		return domain.OrderConfirmation{}, err
	}
	side := bybit.SideBuy
	if order.Direction == domain.DirectionSell {
		side = bybit.SideSell
	}
	price := order.Price.String()
	tif := bybit.TimeInForceGoodTillCancel
	param := bybit.V5CreateOrderParam{
		Category:    bybit.CategoryV5Spot,
		Symbol:      bybit.SymbolV5(pair.Base + pair.Quote),
		Side:        side,
		OrderType:   bybit.OrderTypeLimit,
		Qty:         order.Amount.String(),
		Price:       &price,
		TimeInForce: &tif,
	}
	if order.ClientOrderID != "" {
		id := order.ClientOrderID
		param.OrderLinkID = &id
	}

	res, err := b.client.V5().Order().CreateOrder(param)
	if err != nil {
		return domain.OrderConfirmation{}, errors.Wrap(err, "failed to create bybit order")
	}

	return domain.OrderConfirmation{
		ID:        res.Result.OrderID,
		Symbol:    order.Symbol,
		Direction: order.Direction,
		Amount:    order.Amount,
		Price:     order.Price,
	}, nil
}

// CancelOpenOrders cancels every open spot order on the given pairs.
func (b *Bybit) CancelOpenOrders(ctx context.Context, pairs []domain.TradePair) ([]domain.OrderConfirmation, error) {
	cancelled := make([]domain.OrderConfirmation, 0)
	for _, p := range pairs {
		symbol := bybit.SymbolV5(p.Base + p.Quote)
		res, err := b.client.V5().Order().CancelAllOrders(bybit.V5CancelAllOrdersParam{
			Category: bybit.CategoryV5Spot,
			Symbol:   &symbol,
		})
		if err != nil {
			return cancelled, errors.Wrapf(err, "failed to cancel bybit orders for %s", p.Symbol())
		}
		for _, o := range res.Result.List {
			cancelled = append(cancelled, domain.OrderConfirmation{ID: o.OrderID, Symbol: p.Symbol()})
		}
	}
	return cancelled, nil
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
