// Package orderbuilder turns trade intents into venue-ready limit orders.
package orderbuilder

import (
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/cbh4ou/CryptoRebalanceSVC/internal/domain"
)

// marketRules venue-owned precision and minimums.
type marketRules interface {
	AmountToPrecision(symbol string, amount decimal.Decimal) (decimal.Decimal, error)
	PriceToPrecision(symbol string, price decimal.Decimal) (decimal.Decimal, error)
	Limits(symbol string) (domain.Limits, error)
}

type routeFinder interface {
	Find(from, to string) (domain.Route, error)
}

// UnitPricer values one unit of an asset in the valuation currency.
type UnitPricer interface {
	UnitPrice(asset string) (decimal.Decimal, error)
}

// Builder prices and validates orders against one rate snapshot.
type Builder struct {
	rules  marketRules
	rates  *domain.RateSnapshot
	finder routeFinder
	mode   domain.PriceMode
	fee    decimal.Decimal
}

// Option configures a Builder.
type Option func(*Builder)

// WithFee sets the fee rate charged on every hop. Quantities passed to the
// next hop of a route are reduced by it, so the follow-up order only spends
// what the venue actually credits.
func WithFee(fee decimal.Decimal) Option {
	return func(b *Builder) {
		b.fee = fee
	}
}

// NewBuilder creates an order builder.
func NewBuilder(rules marketRules, rates *domain.RateSnapshot, finder routeFinder, mode domain.PriceMode, opts ...Option) (*Builder, error) {
	if rules == nil {
		return nil, errors.New("market rules are required")
	}
	if rates == nil || finder == nil {
		return nil, errors.New("rates and route finder are required")
	}
	if !mode.IsValid() {
		return nil, errors.Wrapf(domain.ErrConfiguration, "invalid price mode %q", mode)
	}
	b := &Builder{rules: rules, rates: rates, finder: finder, mode: mode, fee: decimal.Zero}
	for _, opt := range opts {
		opt(b)
	}
	if b.fee.IsNegative() || b.fee.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return nil, errors.Wrapf(domain.ErrConfiguration, "fee must be in [0, 1), got %s", b.fee.String())
	}
	return b, nil
}

// Build converts weight*total of the intent's starting asset into one limit
// order per hop. The whole intent is rejected when any hop fails validation.
func (b *Builder) Build(intent domain.TradeIntent, total decimal.Decimal, prices UnitPricer) ([]*domain.Order, error) {
	if intent.Route.IsEmpty() {
		return nil, nil
	}

	from := intent.Route.From()
	unit, err := prices.UnitPrice(from)
	if err != nil {
		return nil, errors.Wrapf(err, "price %s", from)
	}
	if !unit.IsPositive() {
		return nil, errors.Wrapf(domain.ErrLimitRejected, "%s has no value in the valuation currency", from)
	}

	qty := intent.Weight.Mul(total).Div(unit)
	orders := make([]*domain.Order, 0, len(intent.Route))
	for _, hop := range intent.Route {
		order, next, err := b.buildHop(hop, qty)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
		qty = next
	}

	return orders, nil
}

// Check reports whether moving weight*total of asset into quote clears venue minimums.
func (b *Builder) Check(asset, quote string, weight, total decimal.Decimal, prices UnitPricer) error {
	route, err := b.finder.Find(asset, quote)
	if err != nil {
		return err
	}
	_, err = b.Build(domain.TradeIntent{From: asset, To: quote, Route: route, Weight: weight}, total, prices)
	return err
}

// buildHop spends qty of the hop's source asset and returns the validated
// order together with the quantity received.
func (b *Builder) buildHop(hop domain.Hop, qty decimal.Decimal) (*domain.Order, decimal.Decimal, error) {
	rate, ok := b.rates.Get(hop.Symbol)
	if !ok {
		return nil, decimal.Zero, errors.Wrapf(domain.ErrUnknownPair, "no rate captured for %s", hop.Symbol)
	}
	price := b.mode.Price(rate, hop.Direction)
	if !price.IsPositive() {
		return nil, decimal.Zero, errors.Wrapf(domain.ErrLimitRejected, "%s has no %s price", hop.Symbol, b.mode)
	}

	amount := qty
	if hop.Direction == domain.DirectionBuy {
		amount = qty.Div(price)
	}

	order := domain.NewOrder(hop, amount, price)
	if err := b.preprocess(order); err != nil {
		return nil, decimal.Zero, err
	}

	received := order.Amount
	if hop.Direction == domain.DirectionSell {
		received = order.TotalInQuote
	}
	received = received.Sub(received.Mul(b.fee))
	return order, received, nil
}

// preprocess snaps the order to venue precision and enforces venue minimums.
func (b *Builder) preprocess(order *domain.Order) error {
	limits, err := b.rules.Limits(order.Symbol)
	if err != nil {
		return err
	}
	amount, err := b.rules.AmountToPrecision(order.Symbol, order.Amount)
	if err != nil {
		return err
	}
	price, err := b.rules.PriceToPrecision(order.Symbol, order.Price)
	if err != nil {
		return err
	}
	order.SetAmountPrice(amount, price)

	if order.Price.IsZero() || order.Amount.IsZero() {
		return errors.Wrapf(domain.ErrLimitRejected, "%s rounds to zero", order.String())
	}
	if order.Amount.LessThan(limits.MinAmount) {
		return errors.Wrapf(domain.ErrLimitRejected, "%s amount below minimum %s", order.String(), limits.MinAmount.String())
	}
	if order.TotalInQuote.LessThan(limits.MinCost) {
		return errors.Wrapf(domain.ErrLimitRejected, "%s cost %s below minimum %s",
			order.String(), order.TotalInQuote.String(), limits.MinCost.String())
	}

	order.Type = domain.OrderTypeLimit
	order.Status = domain.OrderStatusValidated
	return nil
}
