package domain

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

var two = decimal.NewFromInt(2)

// Rate top of book for a pair taken at snapshot time.
type Rate struct {
	// Mid arithmetic mean of High and Low.
	Mid decimal.Decimal
	// High best ask.
	High decimal.Decimal
	// Low best bid.
	Low decimal.Decimal
}

// NewRate builds a rate from the best ask (high) and best bid (low).
func NewRate(high, low decimal.Decimal) Rate {
	return Rate{
		Mid:  high.Add(low).Div(two),
		High: high,
		Low:  low,
	}
}

// RateSnapshot immutable point-in-time mapping from pair symbol to rate.
type RateSnapshot struct {
	rates   map[string]Rate
	takenAt time.Time
}

// NewRateSnapshot copies the provided rates into a new snapshot.
func NewRateSnapshot(rates map[string]Rate, takenAt time.Time) *RateSnapshot {
	copied := make(map[string]Rate, len(rates))
	for symbol, r := range rates {
		copied[symbol] = r
	}
	return &RateSnapshot{rates: copied, takenAt: takenAt}
}

// Get returns the rate captured for the symbol.
func (s *RateSnapshot) Get(symbol string) (Rate, bool) {
	if s == nil {
		return Rate{}, false
	}
	r, ok := s.rates[symbol]
	return r, ok
}

// Symbols returns captured symbols in ascending order.
func (s *RateSnapshot) Symbols() []string {
	if s == nil {
		return nil
	}
	symbols := make([]string, 0, len(s.rates))
	for symbol := range s.rates {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)
	return symbols
}

// Len number of captured pairs.
func (s *RateSnapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.rates)
}

// TakenAt capture time.
func (s *RateSnapshot) TakenAt() time.Time {
	if s == nil {
		return time.Time{}
	}
	return s.takenAt
}
