package venue

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/cbh4ou/CryptoRebalanceSVC/internal/domain"
)

// BinanceMakerFee default spot maker fee.
var BinanceMakerFee = decimal.RequireFromString("0.001")

const binanceTrading = "TRADING"

// Binance spot venue.
type Binance struct {
	client   *binance.Client
	l        *zap.Logger
	markets  *Markets
	makerFee decimal.Decimal

	mu sync.RWMutex
	// exchange symbol (BTCUSDT) -> domain symbol (BTC/USDT)
	symbols map[string]string
	// domain symbol -> exchange symbol
	exchange map[string]string
}

// NewBinance creates a Binance venue.
func NewBinance(client *binance.Client, l *zap.Logger, makerFee decimal.Decimal) (*Binance, error) {
	if client == nil {
		return nil, errors.New("binance client is nil")
	}
	if l == nil {
		l = zap.NewNop()
	}
	if makerFee.IsZero() {
		makerFee = BinanceMakerFee
	}
	return &Binance{
		client:   client,
		l:        l,
		markets:  NewMarkets(),
		makerFee: makerFee,
		symbols:  make(map[string]string),
		exchange: make(map[string]string),
	}, nil
}

func (b *Binance) Name() string { return "binance" }

// Rules precision and limits of the pairs seen by the last ListPairs.
func (b *Binance) Rules() *Markets { return b.markets }

func (b *Binance) MakerFee() decimal.Decimal { return b.makerFee }

// ListPairs reads exchange info and refreshes the rule book.
func (b *Binance) ListPairs(ctx context.Context) ([]domain.TradePair, error) {
	info, err := b.client.NewExchangeInfoService().Do(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get binance exchange info")
	}

	pairs := make([]domain.TradePair, 0, len(info.Symbols))
	symbols := make(map[string]string, len(info.Symbols))
	exchange := make(map[string]string, len(info.Symbols))
	for _, s := range info.Symbols {
		pair, err := binancePair(s)
		if err != nil {
			b.l.Debug("skipping binance symbol", zap.String("symbol", s.Symbol), zap.Error(err))
			continue
		}
		pairs = append(pairs, pair)
		symbols[s.Symbol] = pair.Symbol()
		exchange[pair.Symbol()] = s.Symbol
	}

	b.mu.Lock()
	b.symbols = symbols
	b.exchange = exchange
	b.mu.Unlock()
	b.markets.Replace(pairs)

	return pairs, nil
}

func binancePair(s binance.Symbol) (domain.TradePair, error) {
	pair := domain.TradePair{
		Base:   s.BaseAsset,
		Quote:  s.QuoteAsset,
		Active: s.Status == binanceTrading && s.IsSpotTradingAllowed,
	}

	if f := s.LotSizeFilter(); f != nil {
		minQty, err := parseDecimal(f.MinQuantity)
		if err != nil {
			return pair, errors.Wrap(err, "min quantity")
		}
		step, err := parseDecimal(f.StepSize)
		if err != nil {
			return pair, errors.Wrap(err, "step size")
		}
		pair.Limits.MinAmount = minQty
		pair.Precision.AmountStep = step
	}
	if f := s.PriceFilter(); f != nil {
		tick, err := parseDecimal(f.TickSize)
		if err != nil {
			return pair, errors.Wrap(err, "tick size")
		}
		pair.Precision.PriceTick = tick
	}
	if f := s.NotionalFilter(); f != nil {
		minCost, err := parseDecimal(f.MinNotional)
		if err != nil {
			return pair, errors.Wrap(err, "min notional")
		}
		pair.Limits.MinCost = minCost
	} else if f := s.MinNotionalFilter(); f != nil {
		minCost, err := parseDecimal(f.MinNotional)
		if err != nil {
			return pair, errors.Wrap(err, "min notional")
		}
		pair.Limits.MinCost = minCost
	}

	return pair, nil
}

// FetchQuotes reads best bid/ask for every pair in one book ticker call and
// falls back to the order book for pairs missing from it.
func (b *Binance) FetchQuotes(ctx context.Context, pairs []domain.TradePair) (*domain.RateSnapshot, error) {
	tickers, err := b.client.NewListBookTickersService().Do(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list binance book tickers")
	}
	byExchange := make(map[string]*binance.BookTicker, len(tickers))
	for _, t := range tickers {
		byExchange[t.Symbol] = t
	}

	rates := make(map[string]domain.Rate, len(pairs))
	for _, p := range pairs {
		ex := b.exchangeSymbol(p)
		if t, ok := byExchange[ex]; ok {
			ask, askErr := parseDecimal(t.AskPrice)
			bid, bidErr := parseDecimal(t.BidPrice)
			if askErr == nil && bidErr == nil && ask.IsPositive() && bid.IsPositive() {
				rates[p.Symbol()] = domain.NewRate(ask, bid)
				continue
			}
		}

		rate, err := b.depthRate(ctx, ex)
		if err != nil {
			b.l.Warn("no quote for pair", zap.String("pair", p.Symbol()), zap.Error(err))
			continue
		}
		rates[p.Symbol()] = rate
	}

	return domain.NewRateSnapshot(rates, time.Now()), nil
}

func (b *Binance) depthRate(ctx context.Context, symbol string) (domain.Rate, error) {
	depth, err := b.client.NewDepthService().Symbol(symbol).Limit(5).Do(ctx)
	if err != nil {
		return domain.Rate{}, errors.Wrapf(err, "failed to get binance depth for %s", symbol)
	}
	if len(depth.Bids) == 0 || len(depth.Asks) == 0 {
		return domain.Rate{}, errors.Errorf("empty order book for %s", symbol)
	}
	bid, err := parseDecimal(depth.Bids[0].Price)
	if err != nil {
		return domain.Rate{}, err
	}
	ask, err := parseDecimal(depth.Asks[0].Price)
	if err != nil {
		return domain.Rate{}, err
	}
	return domain.NewRate(ask, bid), nil
}

// FetchBalances reads spot account balances.
func (b *Binance) FetchBalances(ctx context.Context) (domain.BalanceSet, error) {
	account, err := b.client.NewGetAccountService().Do(ctx)
	if err != nil {
		return domain.BalanceSet{}, errors.Wrap(err, "failed to get binance account balance")
	}

	set := domain.BalanceSet{Free: domain.Balances{}, Used: domain.Balances{}, Total: domain.Balances{}}
	for _, balance := range account.Balances {
		free, err := parseDecimal(balance.Free)
		if err != nil {
			return domain.BalanceSet{}, errors.Wrapf(err, "failed to parse %s free balance", balance.Asset)
		}
		locked, err := parseDecimal(balance.Locked)
		if err != nil {
			return domain.BalanceSet{}, errors.Wrapf(err, "failed to parse %s locked balance", balance.Asset)
		}
		if free.IsZero() && locked.IsZero() {
			continue
		}
		set.Free[balance.Asset] = free
		set.Used[balance.Asset] = locked
		set.Total[balance.Asset] = free.Add(locked)
	}
	return set, nil
}

// SubmitOrder places a GTC limit order.
func (b *Binance) SubmitOrder(ctx context.Context, order *domain.Order) (domain.OrderConfirmation, error) {
	pair, err := b.markets.Pair(order.Symbol)
	if err != nil {
		return domain.OrderConfirmation{}, err
	}
	side := binance.SideTypeBuy
	if order.Direction == domain.DirectionSell {
		side = binance.SideTypeSell
	}

	svc := b.client.NewCreateOrderService().Symbol(b.exchangeSymbol(pair)).
		Side(side).Type(binance.OrderTypeLimit).
		TimeInForce(binance.TimeInForceTypeGTC).
		Quantity(order.Amount.String()).
		Price(order.Price.String())
	if order.ClientOrderID != "" {
		svc = svc.NewClientOrderID(order.ClientOrderID)
	}

	resp, err := svc.Do(ctx)
	if err != nil {
		var apiErr *common.APIError
		if errors.As(err, &apiErr) {
			return domain.OrderConfirmation{}, errors.Wrapf(err, "binance rejected order (code %d)", apiErr.Code)
		}
		return domain.OrderConfirmation{}, errors.Wrap(err, "failed to create binance order")
	}

	amount, _ := parseDecimal(resp.OrigQuantity)
	price, _ := parseDecimal(resp.Price)
	return domain.OrderConfirmation{
		ID:        strconv.FormatInt(resp.OrderID, 10),
		Symbol:    order.Symbol,
		Direction: order.Direction,
		Amount:    amount,
		Price:     price,
		Filled:    resp.Status == binance.OrderStatusTypeFilled,
	}, nil
}

// CancelOpenOrders cancels every open order on the given pairs.
func (b *Binance) CancelOpenOrders(ctx context.Context, pairs []domain.TradePair) ([]domain.OrderConfirmation, error) {
	cancelled := make([]domain.OrderConfirmation, 0)
	for _, p := range pairs {
		ex := b.exchangeSymbol(p)
		open, err := b.client.NewListOpenOrdersService().Symbol(ex).Do(ctx)
		if err != nil {
			return cancelled, errors.Wrapf(err, "failed to list binance open orders for %s", p.Symbol())
		}
		for _, o := range open {
			if o == nil {
				continue
			}
			_, err := b.client.NewCancelOrderService().Symbol(ex).OrderID(o.OrderID).Do(ctx)
			if err != nil {
				var apiErr *common.APIError
				// -2011 unknown order: already filled or cancelled
				if errors.As(err, &apiErr) && apiErr.Code == -2011 {
					continue
				}
				return cancelled, errors.Wrapf(err, "failed to cancel binance order %d", o.OrderID)
			}
			amount, _ := parseDecimal(o.OrigQuantity)
			price, _ := parseDecimal(o.Price)
			direction := domain.DirectionBuy
			if o.Side == binance.SideTypeSell {
				direction = domain.DirectionSell
			}
			cancelled = append(cancelled, domain.OrderConfirmation{
				ID:        strconv.FormatInt(o.OrderID, 10),
				Symbol:    p.Symbol(),
				Direction: direction,
				Amount:    amount,
				Price:     price,
			})
		}
	}
	return cancelled, nil
}

func (b *Binance) exchangeSymbol(p domain.TradePair) string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if ex, ok := b.exchange[p.Symbol()]; ok {
		return ex
	}
	return p.Base + p.Quote
}
