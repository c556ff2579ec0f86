package orderbookv1

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrNilOrder      = errors.New("order cannot be nil")
	ErrEmptyOrderID  = errors.New("order ID cannot be empty")
	ErrInvalidSide   = errors.New("side must be buy or sell")
	ErrInvalidPrice  = errors.New("price must be positive")
	ErrInvalidSize   = errors.New("size must be positive")
	ErrOrderNotFound = errors.New("order not found")
	ErrNilSnapshot   = errors.New("snapshot cannot be nil")
)

// ConsistencyOp names the operation that detected a consistency violation.
type ConsistencyOp string

const (
	// OpMatch is reported when a trade's maker is not the head of its price level.
	OpMatch ConsistencyOp = "match"
	// OpChange is reported when a resize's old size differs from the recorded size.
	OpChange ConsistencyOp = "change"
)

// ConsistencyError reports that the applied event stream and the local book have diverged.
// It is never a normal negative result: the book has to be rebuilt from a snapshot.
type ConsistencyError struct {
	Op       ConsistencyOp
	OrderID  string
	Side     Side
	Price    decimal.Decimal
	Expected string
	Actual   string
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("orderbook %s inconsistent for order %s at %s %s: expected %s, got %s",
		e.Op, e.OrderID, e.Side, e.Price, e.Expected, e.Actual)
}

// IsConsistencyError reports whether err is or wraps a *ConsistencyError.
func IsConsistencyError(err error) bool {
	var target *ConsistencyError
	return errors.As(err, &target)
}
