package main

import (
	"fmt"
	"math/rand/v2"
	"time"

	feedv1 "github.com/muhammadchandra19/booksync/internal/domain/feed/v1"
	orderbookv1 "github.com/muhammadchandra19/booksync/internal/domain/orderbook/v1"
	"github.com/muhammadchandra19/booksync/internal/usecase/orderbook"
	"github.com/shopspring/decimal"
)

// generator produces a gap-free full-channel stream for one product, starting from an
// empty book. It keeps its own book so every done and match refers to a resting order.
type generator struct {
	rnd       *rand.Rand
	book      *orderbook.Orderbook
	productID string
	sequence  int64
	basePrice decimal.Decimal
	spread    decimal.Decimal
	nextID    int
}

func newGenerator(productID string, startSequence int64, basePrice, spread float64, seed uint64) *generator {
	return &generator{
		rnd:       rand.New(rand.NewPCG(seed, seed)),
		book:      orderbook.NewOrderbook(),
		productID: productID,
		sequence:  startSequence,
		basePrice: decimal.NewFromFloat(basePrice),
		spread:    decimal.NewFromFloat(spread),
	}
}

// next returns the next event, already applied to the generator's book.
func (g *generator) next() (*feedv1.Event, error) {
	g.sequence++
	event := &feedv1.Event{
		Sequence:  g.sequence,
		ProductID: g.productID,
		Time:      time.Now().UTC(),
	}

	roll := g.rnd.Float64()
	switch {
	case g.book.Len() == 0 || roll < 0.5:
		g.open(event)
	case roll < 0.75:
		g.done(event)
	default:
		g.match(event)
	}

	if err := g.apply(event); err != nil {
		return nil, fmt.Errorf("sequence %d: %w", event.Sequence, err)
	}
	return event, nil
}

func (g *generator) id() string {
	g.nextID++
	return fmt.Sprintf("%s-%08d", g.productID, g.nextID)
}

func (g *generator) open(event *feedv1.Event) {
	side := orderbookv1.Buy
	if g.rnd.Float64() < 0.5 {
		side = orderbookv1.Sell
	}

	// bids stay below the base price and asks above it, so the book never crosses
	offset := g.spread.Mul(decimal.NewFromFloat(g.rnd.Float64()*0.8 + 0.01))
	price := g.basePrice.Add(offset)
	if side.IsBid() {
		price = g.basePrice.Sub(offset)
	}
	price = price.Round(1)
	if !price.IsPositive() {
		price = g.basePrice.Round(1)
	}

	size := decimal.NewFromFloat(0.01 + g.rnd.Float64()*9.99).Round(3)

	event.Type = feedv1.TypeOpen
	event.OrderID = g.id()
	event.Side = string(side)
	event.Price = decimal.NewNullDecimal(price)
	event.RemainingSize = decimal.NewNullDecimal(size)
}

func (g *generator) done(event *feedv1.Event) {
	state := g.book.Export()
	orders := append(state.Bids, state.Asks...)
	order := orders[g.rnd.IntN(len(orders))]

	event.Type = feedv1.TypeDone
	event.OrderID = order.ID
	event.Side = string(order.Side)
	event.Price = decimal.NewNullDecimal(order.Price)
	event.RemainingSize = decimal.NewNullDecimal(order.Size)
	event.Reason = "canceled"
}

func (g *generator) match(event *feedv1.Event) {
	state := g.book.Export()
	makers := state.Bids
	if len(makers) == 0 || (len(state.Asks) > 0 && g.rnd.Float64() < 0.5) {
		makers = state.Asks
	}
	maker := makers[0]

	size := maker.Size.Mul(decimal.NewFromFloat(g.rnd.Float64())).Round(3)
	if !size.IsPositive() || size.GreaterThan(maker.Size) {
		size = maker.Size
	}

	event.Type = feedv1.TypeMatch
	event.TradeID = event.Sequence
	event.MakerOrderID = maker.ID
	event.TakerOrderID = g.id()
	event.Side = string(maker.Side)
	event.Price = decimal.NewNullDecimal(maker.Price)
	event.Size = decimal.NewNullDecimal(size)
}

func (g *generator) apply(event *feedv1.Event) error {
	switch event.Type {
	case feedv1.TypeOpen:
		order, err := event.ToOrder()
		if err != nil {
			return err
		}
		_, err = g.book.Add(order)
		return err
	case feedv1.TypeDone:
		return g.book.Remove(event.OrderID)
	case feedv1.TypeMatch:
		trade, err := event.ToTrade()
		if err != nil {
			return err
		}
		return g.book.Match(trade)
	default:
		return nil
	}
}
