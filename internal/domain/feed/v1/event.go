package feedv1

import (
	"encoding/json"
	"fmt"
	"time"

	orderbookv1 "github.com/muhammadchandra19/booksync/internal/domain/orderbook/v1"
	"github.com/shopspring/decimal"
)

// Type is the kind of a feed message.
type Type string

const (
	TypeReceived      Type = "received"
	TypeOpen          Type = "open"
	TypeDone          Type = "done"
	TypeMatch         Type = "match"
	TypeChange        Type = "change"
	TypeActivate      Type = "activate"
	TypeHeartbeat     Type = "heartbeat"
	TypeSubscriptions Type = "subscriptions"
	TypeError         Type = "error"
)

// MutatesBook reports whether events of this type are applied to the book.
func (t Type) MutatesBook() bool {
	switch t {
	case TypeOpen, TypeDone, TypeMatch, TypeChange:
		return true
	default:
		return false
	}
}

// Event is one decoded message of the level-3 ("full") channel.
// Fields that a message type does not carry stay at their zero value.
type Event struct {
	Type      Type      `json:"type"`
	Sequence  int64     `json:"sequence"`
	ProductID string    `json:"product_id"`
	Time      time.Time `json:"time"`

	OrderID       string              `json:"order_id,omitempty"`
	Side          string              `json:"side,omitempty"`
	Price         decimal.NullDecimal `json:"price"`
	Size          decimal.NullDecimal `json:"size"`
	RemainingSize decimal.NullDecimal `json:"remaining_size"`
	Reason        string              `json:"reason,omitempty"`

	TradeID      int64  `json:"trade_id,omitempty"`
	MakerOrderID string `json:"maker_order_id,omitempty"`
	TakerOrderID string `json:"taker_order_id,omitempty"`

	OldSize decimal.NullDecimal `json:"old_size"`
	NewSize decimal.NullDecimal `json:"new_size"`

	Message string `json:"message,omitempty"`

	// Raw is the message exactly as received.
	Raw json.RawMessage `json:"-"`
}

// Decode parses one feed message and keeps a copy of the original bytes.
func Decode(data []byte) (*Event, error) {
	var event Event
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, err
	}
	if event.Type == "" {
		return nil, fmt.Errorf("feed message has no type")
	}

	event.Raw = append(json.RawMessage(nil), data...)
	return &event, nil
}

// Bytes returns the original message, encoding the event when it was built in memory.
func (e *Event) Bytes() ([]byte, error) {
	if len(e.Raw) > 0 {
		return e.Raw, nil
	}
	return json.Marshal(e)
}

// ToOrder builds the resting order an open event describes. The remaining size is
// preferred over the original size.
func (e *Event) ToOrder() (*orderbookv1.Order, error) {
	side, err := orderbookv1.ParseSide(e.Side)
	if err != nil {
		return nil, err
	}
	if !e.Price.Valid {
		return nil, fmt.Errorf("%w: open %s has no price", orderbookv1.ErrInvalidPrice, e.OrderID)
	}

	size := e.RemainingSize
	if !size.Valid {
		size = e.Size
	}
	if !size.Valid {
		return nil, fmt.Errorf("%w: open %s has no size", orderbookv1.ErrInvalidSize, e.OrderID)
	}

	return orderbookv1.NewOrder(e.OrderID, side, e.Price.Decimal, size.Decimal), nil
}

// ToTrade builds the trade a match event describes.
func (e *Event) ToTrade() (orderbookv1.Trade, error) {
	side, err := orderbookv1.ParseSide(e.Side)
	if err != nil {
		return orderbookv1.Trade{}, err
	}
	if !e.Price.Valid || !e.Size.Valid {
		return orderbookv1.Trade{}, fmt.Errorf("match %d is missing price or size", e.TradeID)
	}

	return orderbookv1.Trade{
		Side:         side,
		Price:        e.Price.Decimal,
		Size:         e.Size.Decimal,
		MakerOrderID: e.MakerOrderID,
		TakerOrderID: e.TakerOrderID,
	}, nil
}

// ToChange builds the resize a change event describes. The price stays null for market
// orders.
func (e *Event) ToChange() (orderbookv1.Change, error) {
	side, err := orderbookv1.ParseSide(e.Side)
	if err != nil {
		return orderbookv1.Change{}, err
	}

	change := orderbookv1.Change{
		OrderID: e.OrderID,
		Side:    side,
		Price:   e.Price,
	}
	if !e.Price.Valid {
		return change, nil
	}
	if !e.OldSize.Valid || !e.NewSize.Valid {
		return orderbookv1.Change{}, fmt.Errorf("change %s is missing old_size or new_size", e.OrderID)
	}
	change.OldSize = e.OldSize.Decimal
	change.NewSize = e.NewSize.Decimal

	return change, nil
}
