package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// PriceMode selects which side of the book limit orders are priced at.
type PriceMode string

const (
	// PriceModeMid prices every order at the mid rate.
	PriceModeMid PriceMode = "mid"
	// PriceModePassive rests orders on own side of the book (buy at bid, sell at ask).
	PriceModePassive PriceMode = "passive"
	// PriceModeCheap crosses the spread (buy at ask, sell at bid).
	PriceModeCheap PriceMode = "cheap"
)

// String returns the string representation.
func (m PriceMode) String() string {
	return string(m)
}

// IsValid checks if the PriceMode value is valid.
func (m PriceMode) IsValid() bool {
	return m == PriceModeMid || m == PriceModePassive || m == PriceModeCheap
}

// ParsePriceMode converts a string to PriceMode.
func ParsePriceMode(s string) (PriceMode, error) {
	m := PriceMode(s)
	if !m.IsValid() {
		return "", fmt.Errorf("invalid price mode %q (supported: mid, passive, cheap)", s)
	}
	return m, nil
}

// Price picks the order price from the rate for the given direction.
func (m PriceMode) Price(r Rate, direction Direction) decimal.Decimal {
	switch m {
	case PriceModePassive:
		if direction == DirectionBuy {
			return r.Low
		}
		return r.High
	case PriceModeCheap:
		if direction == DirectionBuy {
			return r.High
		}
		return r.Low
	default:
		return r.Mid
	}
}
