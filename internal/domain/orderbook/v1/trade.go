package orderbookv1

import "github.com/shopspring/decimal"

// Trade is a fill against the head order of a price level.
// Side is the maker's side.
type Trade struct {
	Side         Side
	Price        decimal.Decimal
	Size         decimal.Decimal
	MakerOrderID string
	TakerOrderID string
}

// Change is an in-place resize of a resting order.
// A Change without a price refers to a market order and never touches the book.
type Change struct {
	OrderID string
	Side    Side
	Price   decimal.NullDecimal
	OldSize decimal.Decimal
	NewSize decimal.Decimal
}
