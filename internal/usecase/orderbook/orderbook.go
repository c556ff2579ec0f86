package orderbook

import (
	"fmt"
	"sync"

	orderbookv1 "github.com/muhammadchandra19/booksync/internal/domain/orderbook/v1"
	snapshotv1 "github.com/muhammadchandra19/booksync/internal/domain/snapshot/v1"
	"github.com/shopspring/decimal"
)

var _ orderbookv1.Orderbook = (*Orderbook)(nil)

// Orderbook is a level-3 order book: two price-ordered sides plus an order ID index.
// Every order in the index sits in exactly one limit and every limit holds at least one order.
type Orderbook struct {
	mu     sync.RWMutex
	bids   *orderbookv1.BookSide
	asks   *orderbookv1.BookSide
	orders map[string]*orderbookv1.Order // orderID -> order
}

// NewOrderbook creates a new orderbook
func NewOrderbook() *Orderbook {
	return &Orderbook{
		bids:   orderbookv1.NewBookSide(orderbookv1.Buy),
		asks:   orderbookv1.NewBookSide(orderbookv1.Sell),
		orders: make(map[string]*orderbookv1.Order),
	}
}

// Add appends an order to the tail of its price level. An order whose ID is already in the
// book replaces the resting one, which loses its queue position; replaced reports this.
func (ob *Orderbook) Add(order *orderbookv1.Order) (bool, error) {
	ob.mu.Lock()
	defer ob.mu.Unlock()

	return ob.add(order)
}

func (ob *Orderbook) add(order *orderbookv1.Order) (bool, error) {
	if order == nil {
		return false, orderbookv1.ErrNilOrder
	}
	if order.ID == "" {
		return false, orderbookv1.ErrEmptyOrderID
	}
	if !order.Side.IsValid() {
		return false, fmt.Errorf("%w: order %s has side %q", orderbookv1.ErrInvalidSide, order.ID, order.Side)
	}
	if !order.Price.IsPositive() {
		return false, fmt.Errorf("%w: order %s has price %s", orderbookv1.ErrInvalidPrice, order.ID, order.Price)
	}
	if !order.Size.IsPositive() {
		return false, fmt.Errorf("%w: order %s has size %s", orderbookv1.ErrInvalidSize, order.ID, order.Size)
	}

	existing, replaced := ob.orders[order.ID]
	if replaced {
		ob.remove(existing)
	}

	limit := ob.side(order.Side).GetOrCreate(order.Price)
	if err := limit.AddOrder(order); err != nil {
		return replaced, err
	}
	ob.orders[order.ID] = order

	return replaced, nil
}

// Remove deletes an order, and its limit when the limit becomes empty.
func (ob *Orderbook) Remove(orderID string) error {
	ob.mu.Lock()
	defer ob.mu.Unlock()

	order, exists := ob.orders[orderID]
	if !exists {
		return fmt.Errorf("%w: %s", orderbookv1.ErrOrderNotFound, orderID)
	}

	ob.remove(order)
	return nil
}

func (ob *Orderbook) remove(order *orderbookv1.Order) {
	// Store limit reference before removing order (since RemoveOrder sets order.Limit to nil)
	limit := order.Limit
	if limit != nil {
		_ = limit.RemoveOrder(order)
		if limit.IsEmpty() {
			ob.side(order.Side).Delete(limit.Price)
		}
	}

	delete(ob.orders, order.ID)
}

// Match applies a trade to the head of the maker's price level. A maker that is not the
// head, or a missing level, is reported as a *orderbookv1.ConsistencyError.
func (ob *Orderbook) Match(trade orderbookv1.Trade) error {
	if !trade.Size.IsPositive() {
		return fmt.Errorf("%w: trade against %s has size %s", orderbookv1.ErrInvalidSize, trade.MakerOrderID, trade.Size)
	}

	ob.mu.Lock()
	defer ob.mu.Unlock()

	limit := ob.side(trade.Side).Get(trade.Price)
	if limit == nil {
		return &orderbookv1.ConsistencyError{
			Op:       orderbookv1.OpMatch,
			OrderID:  trade.MakerOrderID,
			Side:     trade.Side,
			Price:    trade.Price,
			Expected: "maker at head of level",
			Actual:   "no level",
		}
	}

	head := limit.Head()
	if head.ID != trade.MakerOrderID {
		return &orderbookv1.ConsistencyError{
			Op:       orderbookv1.OpMatch,
			OrderID:  trade.MakerOrderID,
			Side:     trade.Side,
			Price:    trade.Price,
			Expected: trade.MakerOrderID,
			Actual:   head.ID,
		}
	}

	remaining := head.Size.Sub(trade.Size)
	if !remaining.IsPositive() {
		ob.remove(head)
		return nil
	}

	return limit.Resize(head, remaining)
}

// Change resizes an order in place. Changes without a price are ignored. An order that is
// unknown, or does not rest at the given price, yields orderbookv1.ErrOrderNotFound and leaves
// the book untouched. A recorded size different from OldSize is a consistency violation.
func (ob *Orderbook) Change(change orderbookv1.Change) error {
	if !change.Price.Valid {
		return nil
	}

	ob.mu.Lock()
	defer ob.mu.Unlock()

	order, exists := ob.orders[change.OrderID]
	if !exists {
		return fmt.Errorf("%w: %s", orderbookv1.ErrOrderNotFound, change.OrderID)
	}

	limit := ob.side(change.Side).Get(change.Price.Decimal)
	if limit == nil || order.Limit != limit {
		return fmt.Errorf("%w: %s at %s %s", orderbookv1.ErrOrderNotFound, change.OrderID, change.Side, change.Price.Decimal)
	}

	if !order.Size.Equal(change.OldSize) {
		return &orderbookv1.ConsistencyError{
			Op:       orderbookv1.OpChange,
			OrderID:  order.ID,
			Side:     order.Side,
			Price:    order.Price,
			Expected: change.OldSize.String(),
			Actual:   order.Size.String(),
		}
	}

	if !change.NewSize.IsPositive() {
		ob.remove(order)
		return nil
	}

	return limit.Resize(order, change.NewSize)
}

// LoadSnapshot replaces the whole book with the snapshot's orders, keeping the given entry
// order as FIFO order within each level. On error the current book is left unchanged.
func (ob *Orderbook) LoadSnapshot(snapshot *snapshotv1.Snapshot) error {
	if snapshot == nil {
		return orderbookv1.ErrNilSnapshot
	}

	fresh := NewOrderbook()
	load := func(side orderbookv1.Side, entries []snapshotv1.Entry) error {
		for _, entry := range entries {
			order := orderbookv1.NewOrder(entry.OrderID, side, entry.Price, entry.Size)
			if _, err := fresh.add(order); err != nil {
				return fmt.Errorf("failed to load order %s: %w", entry.OrderID, err)
			}
		}
		return nil
	}

	if err := load(orderbookv1.Buy, snapshot.Bids); err != nil {
		return err
	}
	if err := load(orderbookv1.Sell, snapshot.Asks); err != nil {
		return err
	}

	ob.mu.Lock()
	defer ob.mu.Unlock()

	ob.bids = fresh.bids
	ob.asks = fresh.asks
	ob.orders = fresh.orders

	return nil
}

// Get returns a copy of the order with the given ID.
func (ob *Orderbook) Get(orderID string) (*orderbookv1.Order, error) {
	ob.mu.RLock()
	defer ob.mu.RUnlock()

	order, exists := ob.orders[orderID]
	if !exists {
		return nil, fmt.Errorf("%w: %s", orderbookv1.ErrOrderNotFound, orderID)
	}
	return order.Clone(), nil
}

// Export returns a copy of every order, bids highest price first, asks lowest price first,
// FIFO within each level.
func (ob *Orderbook) Export() orderbookv1.BookState {
	ob.mu.RLock()
	defer ob.mu.RUnlock()

	return orderbookv1.BookState{
		Bids: exportSide(ob.bids),
		Asks: exportSide(ob.asks),
	}
}

func exportSide(side *orderbookv1.BookSide) []*orderbookv1.Order {
	orders := make([]*orderbookv1.Order, 0)
	side.Walk(func(limit *orderbookv1.Limit) bool {
		for order := range limit.All() {
			orders = append(orders, order.Clone())
		}
		return true
	})
	return orders
}

// CreateSnapshot creates a snapshot of the current orderbook state
func (ob *Orderbook) CreateSnapshot() *snapshotv1.Snapshot {
	state := ob.Export()

	toEntries := func(orders []*orderbookv1.Order) []snapshotv1.Entry {
		entries := make([]snapshotv1.Entry, len(orders))
		for i, order := range orders {
			entries[i] = snapshotv1.Entry{Price: order.Price, Size: order.Size, OrderID: order.ID}
		}
		return entries
	}

	return &snapshotv1.Snapshot{
		Sequence: 0, // This will be set by the engine
		Bids:     toEntries(state.Bids),
		Asks:     toEntries(state.Asks),
	}
}

// Depth aggregates up to levels price levels per side. levels <= 0 returns every level.
func (ob *Orderbook) Depth(levels int) orderbookv1.Depth {
	ob.mu.RLock()
	defer ob.mu.RUnlock()

	return orderbookv1.Depth{
		Bids: depthSide(ob.bids, levels),
		Asks: depthSide(ob.asks, levels),
	}
}

func depthSide(side *orderbookv1.BookSide, levels int) []orderbookv1.DepthLevel {
	depth := make([]orderbookv1.DepthLevel, 0)
	side.Walk(func(limit *orderbookv1.Limit) bool {
		depth = append(depth, orderbookv1.DepthLevel{
			Price:  limit.Price,
			Size:   limit.TotalVolume,
			Orders: limit.OrderCount(),
		})
		return levels <= 0 || len(depth) < levels
	})
	return depth
}

// AskTotalVolume returns total ask volume
func (ob *Orderbook) AskTotalVolume() decimal.Decimal {
	ob.mu.RLock()
	defer ob.mu.RUnlock()

	return totalVolume(ob.asks)
}

// BidTotalVolume returns total bid volume
func (ob *Orderbook) BidTotalVolume() decimal.Decimal {
	ob.mu.RLock()
	defer ob.mu.RUnlock()

	return totalVolume(ob.bids)
}

func totalVolume(side *orderbookv1.BookSide) decimal.Decimal {
	total := decimal.Zero
	side.Walk(func(limit *orderbookv1.Limit) bool {
		total = total.Add(limit.TotalVolume)
		return true
	})
	return total
}

// Len returns the number of resting orders.
func (ob *Orderbook) Len() int {
	ob.mu.RLock()
	defer ob.mu.RUnlock()

	return len(ob.orders)
}

// Validate checks that the index and both sides describe the same set of orders and that
// no limit is empty.
func (ob *Orderbook) Validate() error {
	ob.mu.RLock()
	defer ob.mu.RUnlock()

	count := 0
	for _, side := range []*orderbookv1.BookSide{ob.bids, ob.asks} {
		var err error
		side.Walk(func(limit *orderbookv1.Limit) bool {
			if err = limit.Validate(); err != nil {
				return false
			}
			for order := range limit.All() {
				if order.Side != side.Side() {
					err = fmt.Errorf("order %s on side %s sits in %s book", order.ID, order.Side, side.Side())
					return false
				}
				if indexed := ob.orders[order.ID]; indexed != order {
					err = fmt.Errorf("order %s at %s is not indexed", order.ID, limit.Price)
					return false
				}
			}
			count += limit.OrderCount()
			return true
		})
		if err != nil {
			return err
		}
	}

	if count != len(ob.orders) {
		return fmt.Errorf("index holds %d orders, levels hold %d", len(ob.orders), count)
	}

	return nil
}

func (ob *Orderbook) side(side orderbookv1.Side) *orderbookv1.BookSide {
	if side.IsBid() {
		return ob.bids
	}
	return ob.asks
}
