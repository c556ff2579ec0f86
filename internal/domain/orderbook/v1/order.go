package orderbookv1

import "github.com/shopspring/decimal"

// Order represents a single resting order in the order book.
type Order struct {
	ID    string          `json:"id"`
	Side  Side            `json:"side"`
	Price decimal.Decimal `json:"price"`
	Size  decimal.Decimal `json:"size"`
	Limit *Limit          `json:"-"`

	prev, next *Order
}

// NewOrder creates a new order with the given parameters.
func NewOrder(id string, side Side, price, size decimal.Decimal) *Order {
	return &Order{
		ID:    id,
		Side:  side,
		Price: price,
		Size:  size,
	}
}

// IsBid checks if the order is a bid (buy) order.
func (o *Order) IsBid() bool {
	return o.Side.IsBid()
}

// Clone returns a detached copy that is safe to hand out to readers.
func (o *Order) Clone() *Order {
	return &Order{
		ID:    o.ID,
		Side:  o.Side,
		Price: o.Price,
		Size:  o.Size,
	}
}
