package routing

import (
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/cbh4ou/CryptoRebalanceSVC/internal/domain"
)

// PriceFunc selects the price used for a hop from its captured rate.
type PriceFunc func(rate domain.Rate, direction domain.Direction) decimal.Decimal

// MidPrice values every hop at the mid rate.
func MidPrice(rate domain.Rate, _ domain.Direction) decimal.Decimal {
	return rate.Mid
}

// Convert walks qty of the route's starting asset along its hops:
// selling multiplies by the rate, buying divides by it.
func Convert(qty decimal.Decimal, route domain.Route, rates *domain.RateSnapshot, price PriceFunc) (decimal.Decimal, error) {
	if price == nil {
		price = MidPrice
	}

	current := qty
	for _, hop := range route {
		rate, ok := rates.Get(hop.Symbol)
		if !ok {
			return decimal.Zero, errors.Wrapf(domain.ErrUnknownPair, "no rate captured for %s", hop.Symbol)
		}
		px := price(rate, hop.Direction)
		if !px.IsPositive() {
			return decimal.Zero, errors.Errorf("non-positive rate %s for %s", px.String(), hop.Symbol)
		}

		if hop.Direction == domain.DirectionSell {
			current = current.Mul(px)
		} else {
			current = current.Div(px)
		}
	}

	return current, nil
}
