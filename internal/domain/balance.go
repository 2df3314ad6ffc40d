package domain

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Balances asset quantities keyed by asset symbol.
type Balances map[string]decimal.Decimal

// Get returns the quantity held for the asset, zero if absent.
func (b Balances) Get(asset string) decimal.Decimal {
	if v, ok := b[asset]; ok {
		return v
	}
	return decimal.Zero
}

// Assets returns assets with a non-zero quantity in ascending order.
func (b Balances) Assets() []string {
	assets := make([]string, 0, len(b))
	for asset, qty := range b {
		if qty.IsZero() {
			continue
		}
		assets = append(assets, asset)
	}
	sort.Strings(assets)
	return assets
}

// Clone returns an independent copy.
func (b Balances) Clone() Balances {
	c := make(Balances, len(b))
	for asset, qty := range b {
		c[asset] = qty
	}
	return c
}

// BalanceSet free, used and total views of the same asset set as reported by the venue.
type BalanceSet struct {
	Free  Balances
	Used  Balances
	Total Balances
}
