package domain

import "strings"

// Hop single conversion step on one market.
type Hop struct {
	Symbol    string
	Base      string
	Quote     string
	Direction Direction
}

// NewHop creates a hop on the pair base/quote.
func NewHop(base, quote string, direction Direction) Hop {
	return Hop{
		Symbol:    FormatSymbol(base, quote),
		Base:      base,
		Quote:     quote,
		Direction: direction,
	}
}

// From asset spent by the hop.
func (h Hop) From() string {
	if h.Direction == DirectionSell {
		return h.Base
	}
	return h.Quote
}

// To asset received by the hop.
func (h Hop) To() string {
	if h.Direction == DirectionSell {
		return h.Quote
	}
	return h.Base
}

// String returns the string representation.
func (h Hop) String() string {
	return h.Direction.String() + " " + h.Symbol
}

// Route ordered hops connecting a starting asset to a destination asset.
// An empty route means no conversion is needed.
type Route []Hop

// IsEmpty reports whether no conversion is required.
func (r Route) IsEmpty() bool {
	return len(r) == 0
}

// From starting asset of the route.
func (r Route) From() string {
	if len(r) == 0 {
		return ""
	}
	return r[0].From()
}

// To destination asset of the route.
func (r Route) To() string {
	if len(r) == 0 {
		return ""
	}
	return r[len(r)-1].To()
}

// Inverse returns the route travelled backwards.
func (r Route) Inverse() Route {
	inverse := make(Route, 0, len(r))
	for i := len(r) - 1; i >= 0; i-- {
		h := r[i]
		h.Direction = h.Direction.Opposite()
		inverse = append(inverse, h)
	}
	return inverse
}

// String returns the string representation.
func (r Route) String() string {
	if len(r) == 0 {
		return "direct"
	}
	parts := make([]string, 0, len(r))
	for _, h := range r {
		parts = append(parts, h.String())
	}
	return strings.Join(parts, " -> ")
}
