// Package routing discovers conversion paths between assets over the active markets of a venue.
package routing

import (
	"sort"

	"github.com/cbh4ou/CryptoRebalanceSVC/internal/domain"
)

// Finder resolves routes of at most two hops between assets.
// Active pairs are enumerated in ascending symbol order, which makes the
// choice of intermediate asset deterministic when several candidates exist.
type Finder struct {
	pairs    []domain.TradePair
	bySymbol map[string]domain.TradePair
}

// NewFinder builds a finder over the active pairs from the given set.
func NewFinder(pairs []domain.TradePair) *Finder {
	active := make([]domain.TradePair, 0, len(pairs))
	bySymbol := make(map[string]domain.TradePair, len(pairs))
	for _, p := range pairs {
		if !p.Active {
			continue
		}
		if _, dup := bySymbol[p.Symbol()]; dup {
			continue
		}
		active = append(active, p)
		bySymbol[p.Symbol()] = p
	}
	sort.Slice(active, func(i, j int) bool {
		return active[i].Symbol() < active[j].Symbol()
	})

	return &Finder{pairs: active, bySymbol: bySymbol}
}

// Pair returns the active pair for the symbol.
func (f *Finder) Pair(symbol string) (domain.TradePair, bool) {
	p, ok := f.bySymbol[symbol]
	return p, ok
}

// Pairs returns active pairs in enumeration order.
func (f *Finder) Pairs() []domain.TradePair {
	out := make([]domain.TradePair, len(f.pairs))
	copy(out, f.pairs)
	return out
}

// Find returns the route converting from into to. Same asset yields an empty route.
func (f *Finder) Find(from, to string) (domain.Route, error) {
	if from == to {
		return domain.Route{}, nil
	}

	if _, ok := f.bySymbol[domain.FormatSymbol(from, to)]; ok {
		return domain.Route{domain.NewHop(from, to, domain.DirectionSell)}, nil
	}
	if _, ok := f.bySymbol[domain.FormatSymbol(to, from)]; ok {
		return domain.Route{domain.NewHop(to, from, domain.DirectionBuy)}, nil
	}

	reachable := f.quotesOf(from)
	if len(reachable) == 0 {
		return nil, &domain.RouteNotFoundError{From: from, To: to}
	}

	for _, p := range f.pairs {
		intermediate, ok := p.Other(to)
		if !ok || intermediate == from {
			continue
		}
		if _, ok := reachable[intermediate]; !ok {
			continue
		}

		first := domain.NewHop(from, intermediate, domain.DirectionSell)
		if p.Base == to {
			return domain.Route{first, domain.NewHop(to, intermediate, domain.DirectionBuy)}, nil
		}
		return domain.Route{first, domain.NewHop(intermediate, to, domain.DirectionSell)}, nil
	}

	return nil, &domain.RouteNotFoundError{From: from, To: to}
}

// quotesOf collects quote assets of active pairs where asset is the base.
func (f *Finder) quotesOf(asset string) map[string]struct{} {
	quotes := make(map[string]struct{})
	for _, p := range f.pairs {
		if p.Base == asset {
			quotes[p.Quote] = struct{}{}
		}
	}
	return quotes
}
