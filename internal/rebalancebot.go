package internal

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/cbh4ou/CryptoRebalanceSVC/config"
	"github.com/cbh4ou/CryptoRebalanceSVC/internal/domain"
	"github.com/cbh4ou/CryptoRebalanceSVC/internal/services/executor"
	"github.com/cbh4ou/CryptoRebalanceSVC/internal/services/orderbuilder"
	"github.com/cbh4ou/CryptoRebalanceSVC/internal/services/portfolio"
	"github.com/cbh4ou/CryptoRebalanceSVC/internal/services/rebalancer"
	"github.com/cbh4ou/CryptoRebalanceSVC/internal/services/routing"
	"github.com/cbh4ou/CryptoRebalanceSVC/internal/services/snapshot"
	"github.com/cbh4ou/CryptoRebalanceSVC/internal/services/venue"
	"github.com/cbh4ou/CryptoRebalanceSVC/pkg/retrier"
)

type runJournal interface {
	Save(record domain.RunRecord) (uint64, error)
}

// Outcome everything a single run computed, for reporting.
type Outcome struct {
	Snapshot  *snapshot.Snapshot
	Valuation *portfolio.Valuation
	Plan      *rebalancer.Plan
	Orders    []*domain.Order
	// Rejected intents the order builder refused, keyed by intent.
	Rejected map[string]error
	// Cancelled open orders cancelled before the snapshot.
	Cancelled []domain.OrderConfirmation
	Result    *executor.Result
	// JournalIndex WAL index of the run record, zero when not journaled.
	JournalIndex uint64
}

// RebalanceBot runs rebalancing for a single account.
type RebalanceBot struct {
	l        *zap.Logger
	conf     config.Config
	exchange Exchange
	journal  runJournal
	capturer *snapshot.Capturer
	retrier  *retrier.Retrier
	newID    func() string
}

// NewRebalanceBot creates a bot. journal may be nil to skip journaling.
func NewRebalanceBot(l *zap.Logger, conf config.Config, ex Exchange, journal runJournal) (*RebalanceBot, error) {
	if ex == nil {
		return nil, errors.New("exchange is required")
	}
	if err := portfolio.ValidateTargets(conf.Targets); err != nil {
		return nil, err
	}
	if l == nil {
		l = zap.NewNop()
	}
	l = l.With(zap.String("platform", ex.Name()), zap.String("quote", conf.ValuationCurrency))

	r := retrier.New(
		retrier.WithRetryIf(snapshot.Retryable),
		retrier.WithOnRetry(func(attempt int, err error) {
			l.Warn("venue call failed, retrying", zap.Int("attempt", attempt), zap.Error(err))
		}),
	)

	return &RebalanceBot{
		l:        l,
		conf:     conf,
		exchange: ex,
		journal:  journal,
		capturer: snapshot.NewCapturer(l, ex, r),
		retrier:  r,
		newID:    uuid.NewString,
	}, nil
}

// Run performs one rebalancing cycle: snapshot, valuation, plan, orders and
// execution. Per-asset and per-order problems end up in the outcome; only
// configuration and snapshot failures abort. An interrupted execution returns
// the journaled outcome together with the error.
func (b *RebalanceBot) Run(ctx context.Context) (*Outcome, error) {
	out := &Outcome{Rejected: make(map[string]error)}

	if b.conf.Cancel {
		cancelled, err := b.cancelOpenOrders(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "cancel open orders")
		}
		out.Cancelled = cancelled
	}

	snap, err := b.capturer.Capture(ctx, b.conf.ValuationCurrency, b.conf.Assets())
	if err != nil {
		return nil, errors.Wrap(err, "capture snapshot")
	}
	out.Snapshot = snap

	finder := routing.NewFinder(snap.Pairs)
	pf, err := portfolio.New(b.conf.Targets, snap.Balances.Total, snap.Rates, finder,
		b.conf.ValuationCurrency, b.conf.Threshold)
	if err != nil {
		return nil, err
	}

	valuation := pf.Valuate()
	out.Valuation = valuation
	if err := valuation.Err(); err != nil {
		b.l.Warn("assets excluded from valuation", zap.Strings("assets", valuation.UnroutableAssets()), zap.Error(err))
	}
	b.l.Info("portfolio valued",
		zap.String("total", valuation.Total.String()),
		zap.String("max_error", valuation.MaxError.String()),
		zap.String("rms_error", valuation.RMSError.String()),
		zap.Bool("needs_balancing", valuation.NeedsBalancing))

	builder, err := orderbuilder.NewBuilder(b.exchange.Rules(), snap.Rates, finder, b.conf.Mode,
		orderbuilder.WithFee(b.exchange.MakerFee()))
	if err != nil {
		return nil, err
	}

	plan := rebalancer.NewSolver(b.l, finder, builder).Solve(valuation, b.conf.Force)
	out.Plan = plan

	groups := make([][]*domain.Order, 0, len(plan.Intents))
	for _, intent := range plan.Intents {
		orders, err := builder.Build(intent, valuation.Total, valuation)
		if err != nil {
			out.Rejected[intent.String()] = err
			b.l.Info("intent rejected", zap.String("intent", intent.String()), zap.Error(err))
			continue
		}
		for _, o := range orders {
			o.ClientOrderID = b.newID()
		}
		out.Orders = append(out.Orders, orders...)
		groups = append(groups, orders)
	}

	exec, err := executor.NewExecutor(b.l, b.exchange, executor.Config{
		ExecuteTrades: b.conf.Trade,
		Force:         b.conf.Force,
		MaxOrders:     b.conf.MaxOrders,
		MakerFee:      b.exchange.MakerFee(),
	})
	if err != nil {
		return nil, err
	}

	res, execErr := exec.Execute(ctx, valuation, groups)
	if res == nil {
		return nil, errors.Wrap(execErr, "execute orders")
	}
	out.Result = res

	if b.journal != nil {
		index, err := b.journal.Save(b.record(out))
		if err != nil {
			b.l.Error("failed to journal run", zap.Error(err))
		} else {
			out.JournalIndex = index
		}
	}

	if execErr != nil {
		return out, errors.Wrap(execErr, "execute orders")
	}
	return out, nil
}

func (b *RebalanceBot) cancelOpenOrders(ctx context.Context) ([]domain.OrderConfirmation, error) {
	pairs, err := retrier.DoWithData(b.retrier, ctx, b.exchange.ListPairs)
	if err != nil {
		return nil, err
	}
	assets := append([]string{b.conf.ValuationCurrency}, b.conf.Assets()...)
	touching := venue.FilterTouching(pairs, assets)

	cancelled, err := retrier.DoWithData(b.retrier, ctx, func(ctx context.Context) ([]domain.OrderConfirmation, error) {
		return b.exchange.CancelOpenOrders(ctx, touching)
	})
	if err != nil {
		return nil, err
	}
	b.l.Info("open orders cancelled", zap.Int("count", len(cancelled)))
	return cancelled, nil
}

func (b *RebalanceBot) record(out *Outcome) domain.RunRecord {
	v := out.Valuation
	rec := domain.RunRecord{
		Timestamp:      time.Now().UTC(),
		Platform:       b.exchange.Name(),
		Quote:          v.Quote,
		Mode:           b.conf.Mode.String(),
		TotalValue:     v.Total.String(),
		MaxError:       v.MaxError.String(),
		RMSError:       v.RMSError.String(),
		NeedsBalancing: v.NeedsBalancing,
		Allocation:     make(map[string]string, len(v.AllocationPct)),
		Unroutable:     v.UnroutableAssets(),
	}
	for asset, pct := range v.AllocationPct {
		rec.Allocation[asset] = pct.StringFixed(4)
	}
	if out.Plan != nil && out.Plan.Untradeable.IsPositive() {
		rec.Untradeable = out.Plan.Untradeable.String()
	}

	res := out.Result
	if res == nil {
		return rec
	}
	for _, o := range res.Orders {
		rec.Orders = append(rec.Orders, o.String())
	}
	for _, o := range res.Successes {
		rec.Submitted = append(rec.Submitted, o.String())
	}
	for _, f := range res.Failures {
		rec.Failed = append(rec.Failed, f.Error())
	}
	rec.TotalFee = res.TotalFee.String()
	rec.Executed = !res.Skipped && !res.DryRun
	rec.Interrupted = res.Interrupted
	return rec
}
