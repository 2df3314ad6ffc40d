package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// TradeIntent planned but unexecuted conversion between two assets.
type TradeIntent struct {
	// From overweight asset being sold.
	From string
	// To underweight asset being bought.
	To    string
	Route Route
	// Weight magnitude moved, as a fraction of total portfolio value.
	Weight decimal.Decimal
}

// SignedWeights returns the intent's effect per asset: negative for the sell
// side, positive for the buy side.
func (t TradeIntent) SignedWeights() map[string]decimal.Decimal {
	return map[string]decimal.Decimal{
		t.From: t.Weight.Neg(),
		t.To:   t.Weight,
	}
}

// String returns a human-readable string representation.
func (t TradeIntent) String() string {
	return fmt.Sprintf("%s -> %s weight %s via %s", t.From, t.To, t.Weight.StringFixed(6), t.Route.String())
}
