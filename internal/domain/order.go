package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// OrderType venue order type.
type OrderType string

// OrderTypeLimit limit order; the only type produced by the order builder.
const OrderTypeLimit OrderType = "LIMIT"

// OrderStatus lifecycle state of an order.
type OrderStatus string

const (
	OrderStatusDraft     OrderStatus = "draft"
	OrderStatusValidated OrderStatus = "validated"
	OrderStatusRejected  OrderStatus = "rejected"
	OrderStatusSubmitted OrderStatus = "submitted"
	OrderStatusFilled    OrderStatus = "filled"
	OrderStatusFailed    OrderStatus = "failed"
)

// IsTerminal reports whether the order can no longer change apart from fill status.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderStatusRejected, OrderStatusSubmitted, OrderStatusFilled, OrderStatusFailed:
		return true
	}
	return false
}

// Order concrete conversion on a single market.
type Order struct {
	Symbol    string
	Base      string
	Quote     string
	Direction Direction
	// Amount quantity of the base asset.
	Amount decimal.Decimal
	// Price in the quote asset per unit of base.
	Price decimal.Decimal
	// TotalInQuote Amount*Price.
	TotalInQuote  decimal.Decimal
	Type          OrderType
	Status        OrderStatus
	ClientOrderID string
}

// NewOrder creates a draft order for the hop.
func NewOrder(hop Hop, amount, price decimal.Decimal) *Order {
	return &Order{
		Symbol:       hop.Symbol,
		Base:         hop.Base,
		Quote:        hop.Quote,
		Direction:    hop.Direction,
		Amount:       amount,
		Price:        price,
		TotalInQuote: amount.Mul(price),
		Status:       OrderStatusDraft,
	}
}

// SetAmountPrice replaces amount and price keeping TotalInQuote consistent.
func (o *Order) SetAmountPrice(amount, price decimal.Decimal) {
	o.Amount = amount
	o.Price = price
	o.TotalInQuote = amount.Mul(price)
}

// Clone returns a copy of the order.
func (o *Order) Clone() *Order {
	c := *o
	return &c
}

// String returns a human-readable string representation.
func (o *Order) String() string {
	return fmt.Sprintf("%s %s %s @ %s", o.Direction, o.Amount.String(), o.Symbol, o.Price.String())
}

// OrderConfirmation venue acknowledgement of a submitted order.
type OrderConfirmation struct {
	ID        string
	Symbol    string
	Direction Direction
	Amount    decimal.Decimal
	Price     decimal.Decimal
	Filled    bool
}

// ToOrder converts the confirmation back into the order shape.
func (c OrderConfirmation) ToOrder(draft *Order) *Order {
	o := draft.Clone()
	if c.Symbol != "" {
		o.Symbol = c.Symbol
	}
	if c.Direction != "" {
		o.Direction = c.Direction
	}
	amount, price := o.Amount, o.Price
	if c.Amount.IsPositive() {
		amount = c.Amount
	}
	if c.Price.IsPositive() {
		price = c.Price
	}
	o.SetAmountPrice(amount, price)
	o.Status = OrderStatusSubmitted
	if c.Filled {
		o.Status = OrderStatusFilled
	}
	return o
}
