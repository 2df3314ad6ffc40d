package venue

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/cbh4ou/CryptoRebalanceSVC/internal/domain"
	"github.com/cbh4ou/CryptoRebalanceSVC/internal/storage/simstate"
)

// ErrInsufficientBalance simulated wallet cannot cover an order.
var ErrInsufficientBalance = errors.New("insufficient balance")

// defaultSimulateDeposit quote currency funded into an empty simulated wallet.
var defaultSimulateDeposit = decimal.NewFromInt(10000)

type marketData interface {
	ListPairs(ctx context.Context) ([]domain.TradePair, error)
	FetchQuotes(ctx context.Context, pairs []domain.TradePair) (*domain.RateSnapshot, error)
	Rules() *Markets
}

type stateStore interface {
	Load() (*simstate.State, error)
	Save(state simstate.State) error
}

// Simulate paper-trading venue. Market data comes from a real venue, orders
// fill immediately at their limit price against a persisted wallet.
type Simulate struct {
	mu       sync.Mutex
	l        *zap.Logger
	data     marketData
	store    stateStore
	wallet   domain.Balances
	orders   []simstate.StoredOrder
	makerFee decimal.Decimal
	now      func() time.Time
}

// NewSimulate creates a simulated venue. An empty wallet is seeded with initial,
// or with a deposit of quote when initial is empty.
func NewSimulate(data marketData, store stateStore, l *zap.Logger, makerFee decimal.Decimal,
	quote string, initial domain.Balances) (*Simulate, error) {
	if data == nil {
		return nil, errors.New("market data source is required for simulation")
	}
	if l == nil {
		l = zap.NewNop()
	}
	if makerFee.IsZero() {
		makerFee = BinanceMakerFee
	}

	s := &Simulate{
		l:        l,
		data:     data,
		store:    store,
		wallet:   domain.Balances{},
		makerFee: makerFee,
		now:      time.Now,
	}
	if err := s.restore(); err != nil {
		l.Warn("failed to restore simulate state", zap.Error(err))
	}
	if len(s.wallet.Assets()) == 0 {
		if len(initial.Assets()) > 0 {
			s.wallet = initial.Clone()
		} else {
			s.wallet = domain.Balances{quote: defaultSimulateDeposit}
		}
		s.persist()
	}

	l.Info("simulate init", zap.Int("assets", len(s.wallet.Assets())), zap.Int("orders", len(s.orders)))
	return s, nil
}

func (s *Simulate) Name() string { return "simulate" }

func (s *Simulate) Rules() *Markets { return s.data.Rules() }

func (s *Simulate) MakerFee() decimal.Decimal { return s.makerFee }

func (s *Simulate) ListPairs(ctx context.Context) ([]domain.TradePair, error) {
	return s.data.ListPairs(ctx)
}

func (s *Simulate) FetchQuotes(ctx context.Context, pairs []domain.TradePair) (*domain.RateSnapshot, error) {
	return s.data.FetchQuotes(ctx, pairs)
}

// FetchBalances returns the simulated wallet; nothing is ever locked.
func (s *Simulate) FetchBalances(ctx context.Context) (domain.BalanceSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.BalanceSet{Free: s.wallet.Clone(), Used: domain.Balances{}, Total: s.wallet.Clone()}, nil
}

// SubmitOrder fills the order at its limit price, charging the maker fee on the received asset.
func (s *Simulate) SubmitOrder(ctx context.Context, order *domain.Order) (domain.OrderConfirmation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !order.Amount.IsPositive() || !order.Price.IsPositive() {
		return domain.OrderConfirmation{}, errors.Errorf("order amount and price must be positive, got %s", order.String())
	}

	cost := order.Amount.Mul(order.Price)
	switch order.Direction {
	case domain.DirectionSell:
		if s.wallet.Get(order.Base).LessThan(order.Amount) {
			return domain.OrderConfirmation{}, errors.Wrapf(ErrInsufficientBalance, "need %s %s, have %s",
				order.Amount.String(), order.Base, s.wallet.Get(order.Base).String())
		}
		received := cost.Sub(cost.Mul(s.makerFee))
		s.wallet[order.Base] = s.wallet.Get(order.Base).Sub(order.Amount)
		s.wallet[order.Quote] = s.wallet.Get(order.Quote).Add(received)
	case domain.DirectionBuy:
		if s.wallet.Get(order.Quote).LessThan(cost) {
			return domain.OrderConfirmation{}, errors.Wrapf(ErrInsufficientBalance, "need %s %s, have %s",
				cost.String(), order.Quote, s.wallet.Get(order.Quote).String())
		}
		received := order.Amount.Sub(order.Amount.Mul(s.makerFee))
		s.wallet[order.Quote] = s.wallet.Get(order.Quote).Sub(cost)
		s.wallet[order.Base] = s.wallet.Get(order.Base).Add(received)
	default:
		return domain.OrderConfirmation{}, errors.Errorf("unknown direction %q", order.Direction)
	}

	id := order.ClientOrderID
	if id == "" {
		id = uuid.NewString()
	}
	s.orders = append(s.orders, simstate.StoredOrder{
		ID:        id,
		Symbol:    order.Symbol,
		Direction: order.Direction,
		Amount:    order.Amount.String(),
		Price:     order.Price.String(),
		FilledAt:  s.now(),
	})
	s.persist()

	s.l.Info("simulated fill",
		zap.String("order", order.String()),
		zap.String(order.Base, s.wallet.Get(order.Base).String()),
		zap.String(order.Quote, s.wallet.Get(order.Quote).String()))

	return domain.OrderConfirmation{
		ID:        id,
		Symbol:    order.Symbol,
		Direction: order.Direction,
		Amount:    order.Amount,
		Price:     order.Price,
		Filled:    true,
	}, nil
}

// CancelOpenOrders orders never rest in simulation.
func (s *Simulate) CancelOpenOrders(ctx context.Context, pairs []domain.TradePair) ([]domain.OrderConfirmation, error) {
	return nil, nil
}

func (s *Simulate) restore() error {
	if s.store == nil {
		return nil
	}
	state, err := s.store.Load()
	if err != nil {
		return err
	}
	if state == nil {
		return nil
	}
	wallet, err := state.Balances()
	if err != nil {
		return err
	}
	s.wallet = wallet
	s.orders = state.Orders
	return nil
}

func (s *Simulate) persist() {
	if s.store == nil {
		return
	}
	if err := s.store.Save(simstate.NewState(s.wallet, s.orders, s.now())); err != nil {
		s.l.Warn("failed to persist simulate state", zap.Error(err))
	}
}
