// Package book implements a single-instrument central limit order book with
// price-time priority matching.
//
// Prices and quantities are integer ticks. The book is not safe for concurrent
// use; one simulation run owns one Book and drives it from a single goroutine.
package book

import (
	"errors"
	"fmt"
)

// MaxTicks bounds prices and quantities accepted by the book. Values above it
// cannot be represented exactly in the float64 notional used for P&L.
const MaxTicks int64 = 1 << 53

var (
	// ErrInvalidOrder is returned when an order is rejected before it touches
	// the book (non-positive quantity, bad side or kind, bad limit price,
	// duplicate id).
	ErrInvalidOrder = errors.New("invalid order")

	// ErrInvariantViolation signals that book state can no longer be trusted,
	// e.g. an aggregate quantity overflowed. A run that sees it must abort.
	ErrInvariantViolation = errors.New("order book invariant violation")
)

// Side is the direction of an order.
type Side uint8

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	switch s {
	case Buy:
		return "BUY"
	case Sell:
		return "SELL"
	default:
		return fmt.Sprintf("Side(%d)", uint8(s))
	}
}

// Opposite returns the contra side.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

// Valid reports whether s is Buy or Sell.
func (s Side) Valid() bool { return s == Buy || s == Sell }

// OrderKind distinguishes limit, market and cancel instructions.
type OrderKind uint8

const (
	Limit OrderKind = iota
	Market
	Cancel
)

func (k OrderKind) String() string {
	switch k {
	case Limit:
		return "LIMIT"
	case Market:
		return "MARKET"
	case Cancel:
		return "CANCEL"
	default:
		return fmt.Sprintf("OrderKind(%d)", uint8(k))
	}
}

// Order is an instruction submitted to the book. It is never mutated after
// submission; the book tracks remaining quantity separately.
type Order struct {
	ID        uint64
	Side      Side
	Kind      OrderKind
	Price     int64 // ticks; ignored for Market and Cancel
	Quantity  int64
	Timestamp int64 // simulated nanoseconds
	OwnerID   uint64
}

// RestingOrder is a read-only view of an order sitting in the book.
type RestingOrder struct {
	Order
	Remaining int64
	Sequence  uint64 // arrival sequence, the time-priority tiebreak within a level
}

// Trade records one match between a resting (maker) order and an incoming
// (taker) order. Price is always the maker's price.
type Trade struct {
	MakerOrderID uint64
	TakerOrderID uint64
	MakerID      uint64 // owner of the resting order
	TakerID      uint64 // owner of the incoming order
	TakerSide    Side
	Price        int64
	Quantity     int64
	Timestamp    int64
}

// MakerSide is the side of the resting order.
func (t Trade) MakerSide() Side { return t.TakerSide.Opposite() }

// MarketSnapshot is a point-in-time top-of-book read. Zero means "no quote"
// for the price and quantity fields.
type MarketSnapshot struct {
	Timestamp      int64
	BestBid        int64
	BestAsk        int64
	BestBidQty     int64
	BestAskQty     int64
	LastTradePrice int64
}

// HasTwoSidedQuote reports whether both sides of the book are populated.
func (s MarketSnapshot) HasTwoSidedQuote() bool {
	return s.BestBid > 0 && s.BestAsk > 0
}

// Mid returns the integer mid price, or 0 when either side is empty.
func (s MarketSnapshot) Mid() int64 {
	if !s.HasTwoSidedQuote() {
		return 0
	}
	return (s.BestBid + s.BestAsk) / 2
}

// Spread returns best ask minus best bid, or 0 when either side is empty.
func (s MarketSnapshot) Spread() int64 {
	if !s.HasTwoSidedQuote() {
		return 0
	}
	return s.BestAsk - s.BestBid
}

// DepthLevel is one row of an aggregated depth view. Bid rows carry only
// BidQuantity, ask rows only AskQuantity.
type DepthLevel struct {
	Price       int64
	BidQuantity int64
	AskQuantity int64
}
