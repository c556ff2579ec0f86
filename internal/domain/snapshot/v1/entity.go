package snapshotv1

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Entry is one resting order of a level-3 snapshot.
// On the wire it is the array [price, size, order_id].
type Entry struct {
	Price   decimal.Decimal
	Size    decimal.Decimal
	OrderID string
}

// NewEntry creates an Entry from decimal strings. It panics on malformed input and is meant
// for fixtures and tests.
func NewEntry(price, size, orderID string) Entry {
	return Entry{
		Price:   decimal.RequireFromString(price),
		Size:    decimal.RequireFromString(size),
		OrderID: orderID,
	}
}

// MarshalJSON encodes the entry as [price, size, order_id].
func (e Entry) MarshalJSON() ([]byte, error) {
	return json.Marshal([3]string{e.Price.String(), e.Size.String(), e.OrderID})
}

// UnmarshalJSON decodes the entry from [price, size, order_id].
func (e *Entry) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) != 3 {
		return fmt.Errorf("snapshot entry must have 3 elements, got %d", len(raw))
	}

	if err := json.Unmarshal(raw[0], &e.Price); err != nil {
		return fmt.Errorf("snapshot entry price: %w", err)
	}
	if err := json.Unmarshal(raw[1], &e.Size); err != nil {
		return fmt.Errorf("snapshot entry size: %w", err)
	}
	if err := json.Unmarshal(raw[2], &e.OrderID); err != nil {
		return fmt.Errorf("snapshot entry order id: %w", err)
	}

	return nil
}

// Snapshot is a full point-in-time dump of a book and the feed sequence it corresponds to.
// Bids are highest price first, asks lowest price first, FIFO within a price.
type Snapshot struct {
	ProductID string  `json:"product_id,omitempty"`
	Sequence  int64   `json:"sequence"`
	Bids      []Entry `json:"bids"`
	Asks      []Entry `json:"asks"`
}

// Len returns the number of entries on both sides.
func (s *Snapshot) Len() int {
	return len(s.Bids) + len(s.Asks)
}

// Checkpoint is an exported book persisted for inspection and warm restarts of consumers.
type Checkpoint struct {
	Snapshot  *Snapshot `json:"snapshot"`
	CreatedAt time.Time `json:"createdAt"`
}
