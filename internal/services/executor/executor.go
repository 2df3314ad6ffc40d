// Package executor submits validated orders to a venue and reports the outcome
// of every order without aborting the batch on individual failures.
package executor

import (
	"context"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/cbh4ou/CryptoRebalanceSVC/internal/domain"
	"github.com/cbh4ou/CryptoRebalanceSVC/internal/services/portfolio"
)

// submitter single submission path to the venue.
type submitter interface {
	SubmitOrder(ctx context.Context, order *domain.Order) (domain.OrderConfirmation, error)
}

// Config execution switches.
type Config struct {
	// ExecuteTrades when false the run is a dry run and nothing is submitted.
	ExecuteTrades bool
	// Force runs even when the portfolio is within threshold.
	Force bool
	// MaxOrders caps the number of orders considered, zero means no cap.
	// Whole intents are kept or dropped so a route is never cut in half.
	MaxOrders int
	// MakerFee fee rate used for the informational fee estimate.
	MakerFee decimal.Decimal
}

// Result outcome of one execution.
type Result struct {
	// Skipped is set when the portfolio did not need balancing and force was off.
	Skipped bool
	// DryRun is set when orders were planned but not submitted.
	DryRun bool
	// Interrupted is set when the context was cancelled mid-batch. Orders not
	// attempted are reported as failures.
	Interrupted bool
	Orders    []*domain.Order
	Successes []*domain.Order
	Failures  []*domain.OrderSubmissionError
	// TotalFee estimated maker fee in the valuation currency.
	TotalFee decimal.Decimal
	Initial  *portfolio.Valuation
	// Proposed valuation after applying the orders on the same snapshot.
	Proposed *portfolio.Valuation
}

// Err combines submission failures, nil when every order went through.
func (r *Result) Err() error {
	if r == nil {
		return nil
	}
	var err error
	for _, f := range r.Failures {
		err = multierr.Append(err, f)
	}
	return err
}

// Executor submits orders sequentially.
type Executor struct {
	l         *zap.Logger
	submitter submitter
	cfg       Config
}

// NewExecutor creates an executor.
func NewExecutor(l *zap.Logger, s submitter, cfg Config) (*Executor, error) {
	if s == nil {
		return nil, errors.New("order submitter is required")
	}
	if cfg.MaxOrders < 0 {
		return nil, errors.Wrapf(domain.ErrConfiguration, "max orders must not be negative, got %d", cfg.MaxOrders)
	}
	if cfg.MakerFee.IsNegative() {
		return nil, errors.Wrapf(domain.ErrConfiguration, "maker fee must not be negative, got %s", cfg.MakerFee.String())
	}
	if l == nil {
		l = zap.NewNop()
	}
	return &Executor{l: l, submitter: s, cfg: cfg}, nil
}

// Execute submits orders built from valuation's plan. Each group holds the
// orders of one intent in route order. Orders are submitted one by one; a
// failed order is recorded and the batch goes on with the next intent, while
// later hops of the same intent are not attempted.
//
// When ctx is cancelled mid-batch the remaining orders are recorded as not
// attempted and the partial result is returned together with the error.
func (e *Executor) Execute(ctx context.Context, valuation *portfolio.Valuation, groups [][]*domain.Order) (*Result, error) {
	if valuation == nil {
		return nil, errors.New("valuation is required")
	}

	res := &Result{
		Initial:  valuation,
		Proposed: valuation,
		TotalFee: decimal.Zero,
	}

	if !valuation.NeedsBalancing && !e.cfg.Force {
		res.Skipped = true
		e.l.Info("portfolio within threshold, nothing to execute",
			zap.String("max_error", valuation.MaxError.String()),
			zap.String("threshold", valuation.Threshold.String()))
		return res, nil
	}

	groups = e.capGroups(groups)
	for _, group := range groups {
		res.Orders = append(res.Orders, group...)
	}
	res.Successes = make([]*domain.Order, 0, len(res.Orders))

	for _, order := range res.Orders {
		res.TotalFee = res.TotalFee.Add(e.estimateFee(valuation, order))
	}

	if !e.cfg.ExecuteTrades {
		res.DryRun = true
		res.Proposed = propose(valuation, res.Orders)
		e.l.Info("dry run, orders not submitted", zap.Int("orders", len(res.Orders)))
		return res, nil
	}

	var interrupted error
	for _, group := range groups {
		var previous error
		for _, order := range group {
			if interrupted == nil && ctx.Err() != nil {
				interrupted = errors.Wrap(ctx.Err(), "execution interrupted")
				e.l.Warn("execution interrupted, remaining orders not attempted", zap.Error(ctx.Err()))
			}
			switch {
			case interrupted != nil:
				e.fail(res, order, interrupted)
				continue
			case previous != nil:
				e.fail(res, order, errors.Wrapf(domain.ErrPrecondition, "previous hop failed: %v", previous))
				continue
			}

			confirmed, err := e.submit(ctx, order)
			if err != nil {
				e.fail(res, order, err)
				previous = err
				continue
			}
			res.Successes = append(res.Successes, confirmed)
			e.l.Info("order submitted", zap.String("order", confirmed.String()))
		}
	}

	res.Proposed = propose(valuation, res.Successes)

	if interrupted != nil {
		res.Interrupted = true
		return res, interrupted
	}
	return res, nil
}

// capGroups keeps leading groups while their combined order count fits MaxOrders.
func (e *Executor) capGroups(groups [][]*domain.Order) [][]*domain.Order {
	if e.cfg.MaxOrders == 0 {
		return groups
	}
	var planned, kept int
	for _, g := range groups {
		planned += len(g)
	}
	capped := make([][]*domain.Order, 0, len(groups))
	for _, g := range groups {
		if kept+len(g) > e.cfg.MaxOrders {
			break
		}
		capped = append(capped, g)
		kept += len(g)
	}
	if kept < planned {
		e.l.Warn("order count capped",
			zap.Int("planned", planned),
			zap.Int("kept", kept),
			zap.Int("max_orders", e.cfg.MaxOrders))
	}
	return capped
}

func (e *Executor) fail(res *Result, order *domain.Order, err error) {
	order.Status = domain.OrderStatusFailed
	res.Failures = append(res.Failures, &domain.OrderSubmissionError{Order: order, Err: err})
	e.l.Error("order submission failed",
		zap.String("order", order.String()),
		zap.Error(err))
}

func (e *Executor) submit(ctx context.Context, order *domain.Order) (*domain.Order, error) {
	if order.Type != domain.OrderTypeLimit || order.Status != domain.OrderStatusValidated {
		return nil, errors.Wrapf(domain.ErrPrecondition, "order %s is %s %s", order.Symbol, order.Type, order.Status)
	}

	confirmation, err := e.submitter.SubmitOrder(ctx, order)
	if err != nil {
		return nil, err
	}
	order.Status = domain.OrderStatusSubmitted

	return confirmation.ToOrder(order), nil
}

// estimateFee maker fee of the order's notional, converted to the valuation currency.
func (e *Executor) estimateFee(v *portfolio.Valuation, order *domain.Order) decimal.Decimal {
	if e.cfg.MakerFee.IsZero() {
		return decimal.Zero
	}
	unit, err := v.UnitPrice(order.Quote)
	if err != nil {
		e.l.Warn("cannot value fee", zap.String("quote", order.Quote), zap.Error(err))
		return decimal.Zero
	}
	return order.TotalInQuote.Mul(e.cfg.MakerFee).Mul(unit)
}

// propose re-values the portfolio as if orders were filled at their limit price.
func propose(v *portfolio.Valuation, orders []*domain.Order) *portfolio.Valuation {
	p := v.Portfolio()
	if p == nil {
		return v
	}
	return p.WithBalances(ApplyOrders(p.Balances(), orders)).Valuate()
}

// ApplyOrders returns balances after orders fill completely at their price.
func ApplyOrders(balances domain.Balances, orders []*domain.Order) domain.Balances {
	out := balances.Clone()
	for _, o := range orders {
		switch o.Direction {
		case domain.DirectionSell:
			out[o.Base] = out.Get(o.Base).Sub(o.Amount)
			out[o.Quote] = out.Get(o.Quote).Add(o.TotalInQuote)
		case domain.DirectionBuy:
			out[o.Base] = out.Get(o.Base).Add(o.Amount)
			out[o.Quote] = out.Get(o.Quote).Sub(o.TotalInQuote)
		}
	}
	return out
}
