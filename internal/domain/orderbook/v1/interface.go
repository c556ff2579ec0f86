package orderbookv1

import (
	snapshotv1 "github.com/muhammadchandra19/booksync/internal/domain/snapshot/v1"
	"github.com/shopspring/decimal"
)

// Reader is the read-only query surface of an order book.
type Reader interface {
	AskTotalVolume() decimal.Decimal
	BidTotalVolume() decimal.Decimal
	CreateSnapshot() *snapshotv1.Snapshot
	Depth(levels int) Depth
	Export() BookState
	Get(orderID string) (*Order, error)
	Len() int
}

// Orderbook defines the interface for a level-3 order book kept in sync with a feed.
type Orderbook interface {
	Reader
	Add(order *Order) (replaced bool, err error)
	Remove(orderID string) error
	Match(trade Trade) error
	Change(change Change) error
	LoadSnapshot(snapshot *snapshotv1.Snapshot) error
	Validate() error
}
