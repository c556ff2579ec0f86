package orderbookv1

import (
	"errors"
	"fmt"
	"iter"

	"github.com/shopspring/decimal"
)

// Limit is one price level: a FIFO queue of resting orders plus their summed size.
// The queue is linked through the orders themselves so removal from any position is O(1).
// The owning book serializes access.
type Limit struct {
	Price       decimal.Decimal `json:"price"`
	TotalVolume decimal.Decimal `json:"totalVolume"`

	head, tail *Order
	count      int
}

// NewLimit returns an empty level at price.
func NewLimit(price decimal.Decimal) *Limit {
	return &Limit{Price: price, TotalVolume: decimal.Zero}
}

// AddOrder queues order behind the existing ones. An order already resting in a level
// must be removed first.
func (l *Limit) AddOrder(order *Order) error {
	if order == nil {
		return ErrNilOrder
	}
	if !order.Size.IsPositive() {
		return fmt.Errorf("%w: got %s", ErrInvalidSize, order.Size)
	}
	if order.Limit != nil {
		return fmt.Errorf("order %s already rests at %s", order.ID, order.Limit.Price)
	}

	order.Limit = l
	order.prev, order.next = l.tail, nil
	if l.tail != nil {
		l.tail.next = order
	} else {
		l.head = order
	}
	l.tail = order
	l.count++
	l.TotalVolume = l.TotalVolume.Add(order.Size)

	return nil
}

// RemoveOrder takes order out of the queue. Orders behind it keep their relative position.
func (l *Limit) RemoveOrder(order *Order) error {
	if order == nil {
		return ErrNilOrder
	}
	if order.Limit != l {
		return ErrOrderNotFound
	}

	if order.prev != nil {
		order.prev.next = order.next
	} else {
		l.head = order.next
	}
	if order.next != nil {
		order.next.prev = order.prev
	} else {
		l.tail = order.prev
	}

	order.prev, order.next, order.Limit = nil, nil, nil
	l.count--
	l.TotalVolume = l.TotalVolume.Sub(order.Size)
	return nil
}

// Resize sets the size of an order in place, keeping its queue position.
func (l *Limit) Resize(order *Order, size decimal.Decimal) error {
	if order == nil {
		return ErrNilOrder
	}
	if order.Limit != l {
		return ErrOrderNotFound
	}
	if !size.IsPositive() {
		return fmt.Errorf("%w: got %s", ErrInvalidSize, size)
	}

	l.TotalVolume = l.TotalVolume.Sub(order.Size).Add(size)
	order.Size = size

	return nil
}

// Head returns the order with priority, or nil for an empty limit.
func (l *Limit) Head() *Order {
	return l.head
}

func (l *Limit) IsEmpty() bool {
	return l.count == 0
}

func (l *Limit) OrderCount() int {
	return l.count
}

// All yields the queue in priority order. The queue must not be modified while iterating.
func (l *Limit) All() iter.Seq[*Order] {
	return func(yield func(*Order) bool) {
		for o := l.head; o != nil; o = o.next {
			if !yield(o) {
				return
			}
		}
	}
}

// GetOrders returns the queue in priority order as a new slice.
func (l *Limit) GetOrders() []*Order {
	orders := make([]*Order, 0, l.count)
	for o := range l.All() {
		orders = append(orders, o)
	}
	return orders
}

// Validate checks the queue links and count, that every order points back here at the
// level's price with a positive size, and that TotalVolume is their sum.
func (l *Limit) Validate() error {
	if !l.Price.IsPositive() {
		return fmt.Errorf("%w: limit price %s", ErrInvalidPrice, l.Price)
	}
	if l.IsEmpty() {
		return errors.New("empty limit at " + l.Price.String())
	}

	sum := decimal.Zero
	seen := 0
	var prev *Order
	for order := l.head; order != nil; order = order.next {
		if order.prev != prev {
			return fmt.Errorf("order %s is unlinked in limit %s", order.ID, l.Price)
		}
		if order.Limit != l {
			return fmt.Errorf("order %s does not point back to limit %s", order.ID, l.Price)
		}
		if !order.Price.Equal(l.Price) {
			return fmt.Errorf("order %s priced %s sits in limit %s", order.ID, order.Price, l.Price)
		}
		if !order.Size.IsPositive() {
			return fmt.Errorf("%w: order %s has size %s", ErrInvalidSize, order.ID, order.Size)
		}
		sum = sum.Add(order.Size)
		prev = order
		seen++
	}

	if prev != l.tail || seen != l.count {
		return fmt.Errorf("limit %s holds %d linked orders, counted %d", l.Price, seen, l.count)
	}
	if !sum.Equal(l.TotalVolume) {
		return fmt.Errorf("limit %s volume is %s, orders sum to %s", l.Price, l.TotalVolume, sum)
	}

	return nil
}
