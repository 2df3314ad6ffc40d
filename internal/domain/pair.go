// Package domain defines core data structures used throughout the rebalancer.
package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Direction side of a conversion hop or order.
type Direction string

const (
	// DirectionBuy buy the base asset paying with the quote asset.
	DirectionBuy Direction = "buy"
	// DirectionSell sell the base asset receiving the quote asset.
	DirectionSell Direction = "sell"
)

// String returns the string representation.
func (d Direction) String() string {
	return string(d)
}

// Opposite returns the reversed direction.
func (d Direction) Opposite() Direction {
	if d == DirectionBuy {
		return DirectionSell
	}
	return DirectionBuy
}

// Limits minimum order constraints imposed by the venue.
type Limits struct {
	// MinAmount minimum order quantity in the base asset.
	MinAmount decimal.Decimal
	// MinCost minimum order notional in the quote asset.
	MinCost decimal.Decimal
}

// Precision quantisation rules for order amount and price.
// A zero step means the venue does not constrain that value.
type Precision struct {
	AmountStep decimal.Decimal
	PriceTick  decimal.Decimal
}

// TradePair market converting between a base and a quote asset.
type TradePair struct {
	// Base asset symbol.
	Base string
	// Quote asset symbol.
	Quote string
	// Active whether the market is open for trading.
	Active    bool
	Limits    Limits
	Precision Precision
}

// Symbol returns the unified symbol representation (BASE/QUOTE).
func (p TradePair) Symbol() string {
	return FormatSymbol(p.Base, p.Quote)
}

// String returns the string representation.
func (p TradePair) String() string {
	return p.Symbol()
}

// Other returns the counter asset of the pair for the given side, or false
// when the asset is not part of the pair.
func (p TradePair) Other(asset string) (string, bool) {
	switch asset {
	case p.Base:
		return p.Quote, true
	case p.Quote:
		return p.Base, true
	default:
		return "", false
	}
}

// Has reports whether the asset is the base or the quote of the pair.
func (p TradePair) Has(asset string) bool {
	return p.Base == asset || p.Quote == asset
}

// FormatSymbol joins base and quote into a unified symbol.
func FormatSymbol(base, quote string) string {
	return fmt.Sprintf("%s/%s", base, quote)
}

// ParseSymbol splits a unified symbol into base and quote.
func ParseSymbol(symbol string) (base, quote string, err error) {
	parts := strings.Split(symbol, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid symbol %q, expected BASE/QUOTE", symbol)
	}
	return parts[0], parts[1], nil
}
