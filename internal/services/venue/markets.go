// Package venue adapts exchange SDKs to the capability set consumed by the rebalancer.
package venue

import (
	"sort"
	"sync"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/cbh4ou/CryptoRebalanceSVC/internal/domain"
)

// Markets rule book of pairs listed by a venue.
// Amounts are truncated to the lot step, prices rounded to the nearest tick.
type Markets struct {
	mu    sync.RWMutex
	pairs map[string]domain.TradePair
}

// NewMarkets creates a rule book holding the given pairs.
func NewMarkets(pairs ...domain.TradePair) *Markets {
	m := &Markets{pairs: make(map[string]domain.TradePair, len(pairs))}
	m.Replace(pairs)
	return m
}

// Replace swaps the listed pairs.
func (m *Markets) Replace(pairs []domain.TradePair) {
	byID := make(map[string]domain.TradePair, len(pairs))
	for _, p := range pairs {
		byID[p.Symbol()] = p
	}
	m.mu.Lock()
	m.pairs = byID
	m.mu.Unlock()
}

// Pair returns the listed pair for the symbol.
func (m *Markets) Pair(symbol string) (domain.TradePair, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.pairs[symbol]
	if !ok {
		return domain.TradePair{}, errors.Wrapf(domain.ErrUnknownPair, "%s", symbol)
	}
	return p, nil
}

// Active returns active pairs sorted by symbol.
func (m *Markets) Active() []domain.TradePair {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.TradePair, 0, len(m.pairs))
	for _, p := range m.pairs {
		if p.Active {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol() < out[j].Symbol() })
	return out
}

// Limits minimum amount and cost of the pair.
func (m *Markets) Limits(symbol string) (domain.Limits, error) {
	p, err := m.Pair(symbol)
	if err != nil {
		return domain.Limits{}, err
	}
	return p.Limits, nil
}

// AmountToPrecision truncates amount to the pair's lot step.
func (m *Markets) AmountToPrecision(symbol string, amount decimal.Decimal) (decimal.Decimal, error) {
	p, err := m.Pair(symbol)
	if err != nil {
		return decimal.Zero, err
	}
	return truncateToStep(amount, p.Precision.AmountStep), nil
}

// PriceToPrecision rounds price to the pair's tick size.
func (m *Markets) PriceToPrecision(symbol string, price decimal.Decimal) (decimal.Decimal, error) {
	p, err := m.Pair(symbol)
	if err != nil {
		return decimal.Zero, err
	}
	return roundToStep(price, p.Precision.PriceTick), nil
}

// FilterTouching returns active pairs with at least one side among assets.
func FilterTouching(pairs []domain.TradePair, assets []string) []domain.TradePair {
	set := make(map[string]struct{}, len(assets))
	for _, a := range assets {
		set[a] = struct{}{}
	}
	out := make([]domain.TradePair, 0)
	for _, p := range pairs {
		if !p.Active {
			continue
		}
		_, base := set[p.Base]
		_, quote := set[p.Quote]
		if base || quote {
			out = append(out, p)
		}
	}
	return out
}

func truncateToStep(v, step decimal.Decimal) decimal.Decimal {
	if !step.IsPositive() {
		return v
	}
	return v.Div(step).Floor().Mul(step)
}

func roundToStep(v, step decimal.Decimal) decimal.Decimal {
	if !step.IsPositive() {
		return v
	}
	return v.Div(step).Round(0).Mul(step)
}

// stepFromDecimals converts a count of decimal places into a step (3 -> 0.001).
func stepFromDecimals(places int) decimal.Decimal {
	return decimal.New(1, int32(-places))
}

// parseDecimal parses a venue number, empty strings are zero.
func parseDecimal(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "parse %q", s)
	}
	return d, nil
}
