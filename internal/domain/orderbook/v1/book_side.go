package orderbookv1

import (
	"github.com/google/btree"
	"github.com/shopspring/decimal"
)

const bookSideDegree = 32

// BookSide is the price-ordered collection of limits for one side of the book.
// Limits are stored in ascending price order and walked best price first:
// highest first for bids, lowest first for asks.
type BookSide struct {
	side Side
	tree *btree.BTreeG[*Limit]
}

// NewBookSide creates an empty side.
func NewBookSide(side Side) *BookSide {
	return &BookSide{
		side: side,
		tree: btree.NewG(bookSideDegree, func(a, b *Limit) bool {
			return a.Price.LessThan(b.Price)
		}),
	}
}

// Side returns the side this BookSide holds.
func (s *BookSide) Side() Side {
	return s.side
}

// Len returns the number of price levels.
func (s *BookSide) Len() int {
	return s.tree.Len()
}

// Get returns the limit at price, or nil.
func (s *BookSide) Get(price decimal.Decimal) *Limit {
	limit, ok := s.tree.Get(&Limit{Price: price})
	if !ok {
		return nil
	}
	return limit
}

// GetOrCreate returns the limit at price, inserting an empty one if absent. The caller must
// add an order to a created limit or delete it again.
func (s *BookSide) GetOrCreate(price decimal.Decimal) *Limit {
	if limit := s.Get(price); limit != nil {
		return limit
	}
	limit := NewLimit(price)
	s.tree.ReplaceOrInsert(limit)
	return limit
}

// Delete removes the limit at price and reports whether one existed.
func (s *BookSide) Delete(price decimal.Decimal) bool {
	_, ok := s.tree.Delete(&Limit{Price: price})
	return ok
}

// Best returns the limit with the best price, or nil for an empty side.
func (s *BookSide) Best() *Limit {
	var (
		limit *Limit
		ok    bool
	)
	if s.side.IsBid() {
		limit, ok = s.tree.Max()
	} else {
		limit, ok = s.tree.Min()
	}
	if !ok {
		return nil
	}
	return limit
}

// Walk calls fn for every limit, best price first, until fn returns false.
func (s *BookSide) Walk(fn func(limit *Limit) bool) {
	if s.side.IsBid() {
		s.tree.Descend(fn)
		return
	}
	s.tree.Ascend(fn)
}

// Limits returns every limit, best price first.
func (s *BookSide) Limits() []*Limit {
	limits := make([]*Limit, 0, s.tree.Len())
	s.Walk(func(limit *Limit) bool {
		limits = append(limits, limit)
		return true
	})
	return limits
}
