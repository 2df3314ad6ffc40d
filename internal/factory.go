package internal

import (
	"context"
	"fmt"

	binance "github.com/adshao/go-binance/v2"
	bybit "github.com/hirokisan/bybit/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/cbh4ou/CryptoRebalanceSVC/internal/clients"
	"github.com/cbh4ou/CryptoRebalanceSVC/internal/domain"
	"github.com/cbh4ou/CryptoRebalanceSVC/internal/services/venue"
	"github.com/cbh4ou/CryptoRebalanceSVC/internal/storage/simstate"
)

// Exchange everything a rebalancing run needs from one account.
type Exchange interface {
	Name() string
	Rules() *venue.Markets
	MakerFee() decimal.Decimal
	ListPairs(ctx context.Context) ([]domain.TradePair, error)
	FetchBalances(ctx context.Context) (domain.BalanceSet, error)
	FetchQuotes(ctx context.Context, pairs []domain.TradePair) (*domain.RateSnapshot, error)
	SubmitOrder(ctx context.Context, order *domain.Order) (domain.OrderConfirmation, error)
	CancelOpenOrders(ctx context.Context, pairs []domain.TradePair) ([]domain.OrderConfirmation, error)
}

// ExchangeOptions account settings the adapters need besides the client.
type ExchangeOptions struct {
	// MakerFee overrides the venue default when positive.
	MakerFee         decimal.Decimal
	Quote            string
	HyperliquidPairs []domain.TradePair
	SimulateBalances domain.Balances
}

// NewExchange creates the venue adapter for the client type.
// This is the single point of dispatch to platform-specific implementations.
func NewExchange(client any, logger *zap.Logger, opts ExchangeOptions) (Exchange, error) {
	switch c := client.(type) {
	case *binance.Client:
		return venue.NewBinance(c, logger, opts.MakerFee)
	case *bybit.Client:
		return venue.NewBybit(c, logger, opts.MakerFee)
	case *clients.HyperliquidClient:
		pairs := make([]domain.TradePair, 0, len(opts.HyperliquidPairs))
		for _, p := range opts.HyperliquidPairs {
			pairs = append(pairs, venue.HyperliquidPair(p.Base, p.Quote))
		}
		return venue.NewHyperliquid(c.Exchange(), c.AccountAddress(), pairs, logger, opts.MakerFee)
	case *clients.SimulateClient:
		data, err := venue.NewBinance(c.GetBinanceClient(), logger, decimal.Zero)
		if err != nil {
			return nil, errors.Wrap(err, "simulate market data")
		}
		store, err := simstate.NewStore(c.StateDir(), c.Scope())
		if err != nil {
			return nil, err
		}
		return venue.NewSimulate(data, store, logger, opts.MakerFee, opts.Quote, opts.SimulateBalances)
	default:
		return nil, fmt.Errorf("unsupported client type: %T", client)
	}
}
