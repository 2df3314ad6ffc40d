package venue

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	hyperliquid "github.com/sonirico/go-hyperliquid"
	"go.uber.org/zap"

	"github.com/cbh4ou/CryptoRebalanceSVC/internal/domain"
)

// HyperliquidMakerFee default spot maker fee.
var HyperliquidMakerFee = decimal.RequireFromString("0.0004")

const (
	hyperliquidSizeDecimals = 4
	hyperliquidMinCost      = 10
)

var hyperliquidPriceTick = decimal.RequireFromString("0.0001")

// Hyperliquid spot venue. The SDK offers no cheap listing of spot pairs with
// limits, so the tradable pairs come from configuration.
type Hyperliquid struct {
	ex          *hyperliquid.Exchange
	info        *hyperliquid.Info
	accountAddr string
	l           *zap.Logger
	pairs       []domain.TradePair
	markets     *Markets
	makerFee    decimal.Decimal
}

// HyperliquidPair spot pair with the venue's default limits and precision.
func HyperliquidPair(base, quote string) domain.TradePair {
	return domain.TradePair{
		Base:      base,
		Quote:     quote,
		Active:    true,
		Limits:    domain.Limits{MinCost: decimal.NewFromInt(hyperliquidMinCost)},
		Precision: domain.Precision{AmountStep: stepFromDecimals(hyperliquidSizeDecimals), PriceTick: hyperliquidPriceTick},
	}
}

// NewHyperliquid creates a Hyperliquid venue trading the given pairs.
func NewHyperliquid(ex *hyperliquid.Exchange, accountAddr string, pairs []domain.TradePair, l *zap.Logger, makerFee decimal.Decimal) (*Hyperliquid, error) {
	if ex == nil {
		return nil, errors.New("hyperliquid exchange is nil")
	}
	if len(pairs) == 0 {
		return nil, errors.Wrap(domain.ErrConfiguration, "hyperliquid needs at least one configured pair")
	}
	if l == nil {
		l = zap.NewNop()
	}
	if makerFee.IsZero() {
		makerFee = HyperliquidMakerFee
	}
	return &Hyperliquid{
		ex:          ex,
		info:        ex.Info(),
		accountAddr: accountAddr,
		l:           l,
		pairs:       pairs,
		markets:     NewMarkets(pairs...),
		makerFee:    makerFee,
	}, nil
}

func (h *Hyperliquid) Name() string { return "hyperliquid" }

func (h *Hyperliquid) Rules() *Markets { return h.markets }

func (h *Hyperliquid) MakerFee() decimal.Decimal { return h.makerFee }

// ListPairs returns the configured pairs.
func (h *Hyperliquid) ListPairs(ctx context.Context) ([]domain.TradePair, error) {
	out := make([]domain.TradePair, len(h.pairs))
	copy(out, h.pairs)
	return out, nil
}

// FetchQuotes reads mid prices. Hyperliquid exposes only mids here, so high
// and low collapse onto the mid.
func (h *Hyperliquid) FetchQuotes(ctx context.Context, pairs []domain.TradePair) (*domain.RateSnapshot, error) {
	mids, err := h.info.AllMids(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get hyperliquid mids")
	}
	return domain.NewRateSnapshot(h.ratesFromMids(mids, pairs), time.Now()), nil
}

// ratesFromMids looks pairs up by symbol first, then by base coin.
func (h *Hyperliquid) ratesFromMids(mids map[string]string, pairs []domain.TradePair) map[string]domain.Rate {
	rates := make(map[string]domain.Rate, len(pairs))
	for _, p := range pairs {
		mid, ok := mids[p.Symbol()]
		if !ok || mid == "" {
			mid, ok = mids[p.Base]
		}
		if !ok || mid == "" {
			h.l.Warn("no quote for pair", zap.String("pair", p.Symbol()))
			continue
		}
		price, err := parseDecimal(mid)
		if err != nil || !price.IsPositive() {
			h.l.Warn("bad mid price", zap.String("pair", p.Symbol()), zap.String("mid", mid))
			continue
		}
		rates[p.Symbol()] = domain.NewRate(price, price)
	}
	return rates
}

// FetchBalances reads spot balances.
func (h *Hyperliquid) FetchBalances(ctx context.Context) (domain.BalanceSet, error) {
	st, err := h.info.SpotUserState(ctx, h.accountAddr)
	if err != nil {
		return domain.BalanceSet{}, errors.Wrap(err, "get spot user state")
	}

	set := domain.BalanceSet{Free: domain.Balances{}, Used: domain.Balances{}, Total: domain.Balances{}}
	for _, b := range st.Balances {
		total, err := parseDecimal(b.Total)
		if err != nil {
			return domain.BalanceSet{}, errors.Wrapf(err, "failed to parse %s balance", b.Coin)
		}
		hold, err := parseDecimal(b.Hold)
		if err != nil {
			return domain.BalanceSet{}, errors.Wrapf(err, "failed to parse %s hold", b.Coin)
		}
		if total.IsZero() {
			continue
		}
		set.Total[b.Coin] = total
		set.Used[b.Coin] = hold
		set.Free[b.Coin] = total.Sub(hold)
	}
	return set, nil
}

// SubmitOrder places a GTC limit order.
func (h *Hyperliquid) SubmitOrder(ctx context.Context, order *domain.Order) (domain.OrderConfirmation, error) {
	if _, err := h.markets.Pair(order.Symbol); err != nil {
		return domain.OrderConfirmation{}, err
	}

	size, _ := order.Amount.Float64()
	price, _ := order.Price.Float64()
	cloid := cloidFromID(order.ClientOrderID)
	req := hyperliquid.CreateOrderRequest{
		Coin:          order.Symbol,
		IsBuy:         order.Direction == domain.DirectionBuy,
		Price:         price,
		Size:          size,
		ClientOrderID: &cloid,
		OrderType: hyperliquid.OrderType{
			Limit: &hyperliquid.LimitOrderType{Tif: hyperliquid.TifGtc},
		},
	}

	if _, err := h.ex.Order(ctx, req, nil); err != nil {
		return domain.OrderConfirmation{}, errors.Wrap(err, "failed to place hyperliquid order")
	}

	return domain.OrderConfirmation{
		ID:        cloid,
		Symbol:    order.Symbol,
		Direction: order.Direction,
		Amount:    order.Amount,
		Price:     order.Price,
	}, nil
}

// CancelOpenOrders cancels resting orders on the given pairs.
func (h *Hyperliquid) CancelOpenOrders(ctx context.Context, pairs []domain.TradePair) ([]domain.OrderConfirmation, error) {
	open, err := h.info.FrontendOpenOrders(ctx, h.accountAddr)
	if err != nil {
		return nil, errors.Wrap(err, "list hyperliquid open orders")
	}

	wanted := make(map[string]string, len(pairs))
	for _, p := range pairs {
		wanted[strings.ToUpper(p.Symbol())] = p.Symbol()
	}

	var (
		cancels   []hyperliquid.CancelOrderRequest
		cancelled []domain.OrderConfirmation
	)
	for _, o := range open {
		symbol, ok := wanted[strings.ToUpper(o.Coin)]
		if !ok {
			continue
		}
		cancels = append(cancels, hyperliquid.CancelOrderRequest{Coin: o.Coin, OrderID: o.Oid})
		cancelled = append(cancelled, domain.OrderConfirmation{ID: fmt.Sprint(o.Oid), Symbol: symbol})
	}
	if len(cancels) == 0 {
		return cancelled, nil
	}
	if _, err := h.ex.BulkCancel(ctx, cancels); err != nil {
		return nil, errors.Wrap(err, "cancel hyperliquid orders")
	}
	return cancelled, nil
}

// cloidFromID converts a client order id into a Hyperliquid cloid (0x + 32 hex chars).
func cloidFromID(id string) string {
	if u, err := uuid.Parse(id); err == nil {
		return "0x" + hex.EncodeToString(u[:])
	}
	s := strings.TrimSpace(id)
	if s == "" {
		s = uuid.NewString()
	}
	sum := sha256.Sum256([]byte(s))
	return "0x" + hex.EncodeToString(sum[:16])
}
