package domain

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrConfiguration targets are malformed or do not sum to 100.
	ErrConfiguration = errors.New("invalid configuration")
	// ErrLimitRejected computed order falls below venue minimums or rounds to zero.
	ErrLimitRejected = errors.New("order below venue limits")
	// ErrPrecondition order submitted without preprocessing.
	ErrPrecondition = errors.New("order needs preprocessing first")
	// ErrUnknownPair pair is not listed by the venue.
	ErrUnknownPair = errors.New("unknown pair")
)

// RouteNotFoundError no path exists between two assets.
type RouteNotFoundError struct {
	From string
	To   string
}

func (e *RouteNotFoundError) Error() string {
	return fmt.Sprintf("no route from %s to %s", e.From, e.To)
}

// OrderSubmissionError venue refused or failed an individual order.
type OrderSubmissionError struct {
	Order *Order
	Err   error
}

func (e *OrderSubmissionError) Error() string {
	return fmt.Sprintf("could not place order %s: %v", e.Order.String(), e.Err)
}

func (e *OrderSubmissionError) Unwrap() error {
	return e.Err
}
