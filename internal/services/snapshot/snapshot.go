// Package snapshot captures pairs, balances and quotes once per run so every
// later computation works on the same consistent view of the venue.
package snapshot

import (
	"context"
	"sort"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cbh4ou/CryptoRebalanceSVC/internal/domain"
	"github.com/cbh4ou/CryptoRebalanceSVC/internal/services/venue"
	"github.com/cbh4ou/CryptoRebalanceSVC/pkg/retrier"
)

type marketData interface {
	ListPairs(ctx context.Context) ([]domain.TradePair, error)
	FetchBalances(ctx context.Context) (domain.BalanceSet, error)
	FetchQuotes(ctx context.Context, pairs []domain.TradePair) (*domain.RateSnapshot, error)
}

// Snapshot venue state captured for one run.
type Snapshot struct {
	// Pairs active pairs touching the portfolio's assets.
	Pairs    []domain.TradePair
	Balances domain.BalanceSet
	Rates    *domain.RateSnapshot
	TakenAt  time.Time
}

// Capturer reads venue state with retries on transient failures.
type Capturer struct {
	l       *zap.Logger
	venue   marketData
	retrier *retrier.Retrier
}

// NewCapturer creates a capturer. A nil retrier falls back to the default backoff.
func NewCapturer(l *zap.Logger, md marketData, r *retrier.Retrier) *Capturer {
	if l == nil {
		l = zap.NewNop()
	}
	if r == nil {
		r = retrier.New(retrier.WithRetryIf(Retryable))
	}
	return &Capturer{l: l, venue: md, retrier: r}
}

// Capture fetches pairs and balances concurrently, then quotes for the pairs
// touching held assets, extra assets and quote. Any failure aborts the capture.
func (c *Capturer) Capture(ctx context.Context, quote string, assets []string) (*Snapshot, error) {
	var (
		pairs    []domain.TradePair
		balances domain.BalanceSet
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		pairs, err = retrier.DoWithData(c.retrier, gctx, c.venue.ListPairs)
		return errors.Wrap(err, "list pairs")
	})
	g.Go(func() error {
		var err error
		balances, err = retrier.DoWithData(c.retrier, gctx, c.venue.FetchBalances)
		return errors.Wrap(err, "fetch balances")
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	touching := venue.FilterTouching(pairs, interesting(quote, assets, balances.Total))
	sort.Slice(touching, func(i, j int) bool { return touching[i].Symbol() < touching[j].Symbol() })

	rates, err := retrier.DoWithData(c.retrier, ctx, func(ctx context.Context) (*domain.RateSnapshot, error) {
		return c.venue.FetchQuotes(ctx, touching)
	})
	if err != nil {
		return nil, errors.Wrap(err, "fetch quotes")
	}

	c.l.Debug("snapshot captured",
		zap.Int("pairs", len(touching)),
		zap.Int("quotes", rates.Len()),
		zap.Int("assets", len(balances.Total.Assets())))

	return &Snapshot{
		Pairs:    touching,
		Balances: balances,
		Rates:    rates,
		TakenAt:  rates.TakenAt(),
	}, nil
}

// Retryable reports whether err is worth another attempt. Configuration and
// unknown pair errors never heal on their own.
func Retryable(err error) bool {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false
	case errors.Is(err, domain.ErrConfiguration), errors.Is(err, domain.ErrUnknownPair):
		return false
	}
	return true
}

func interesting(quote string, assets []string, held domain.Balances) []string {
	out := make([]string, 0, len(assets)+len(held)+1)
	out = append(out, quote)
	out = append(out, assets...)
	out = append(out, held.Assets()...)
	return out
}
