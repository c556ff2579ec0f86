package orderbookv1

import "github.com/shopspring/decimal"

// BookState is the full book, bids highest price first and asks lowest price first,
// FIFO within each price level.
type BookState struct {
	Bids []*Order `json:"bids"`
	Asks []*Order `json:"asks"`
}

// Len returns the number of orders on both sides.
func (s BookState) Len() int {
	return len(s.Bids) + len(s.Asks)
}

// DepthLevel is one aggregated price level.
type DepthLevel struct {
	Price  decimal.Decimal `json:"price"`
	Size   decimal.Decimal `json:"size"`
	Orders int             `json:"orders"`
}

// Depth is an aggregated view of the best levels on each side.
type Depth struct {
	Bids []DepthLevel `json:"bids"`
	Asks []DepthLevel `json:"asks"`
}
