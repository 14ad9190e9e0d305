package book

import (
	"fmt"
	"math"
)

// Book is a central limit order book. Bids are matched highest price first,
// asks lowest price first; within a price level strictly by arrival.
type Book struct {
	arena arena
	index map[uint64]int32 // order id -> arena slot

	bidLevels map[int64]*priceLevel
	askLevels map[int64]*priceLevel
	bids      ladder
	asks      ladder

	seq            uint64
	lastTradePrice int64
	volume         int64
	tradeCount     int64
}

// New returns an empty book.
func New() *Book {
	return &Book{
		index:     make(map[uint64]int32),
		bidLevels: make(map[int64]*priceLevel),
		askLevels: make(map[int64]*priceLevel),
		bids:      newBidLadder(),
		asks:      newAskLadder(),
	}
}

// SubmitLimit matches o against the opposite side while it crosses and rests
// any remainder at the tail of its price level.
func (b *Book) SubmitLimit(o Order) ([]Trade, error) {
	if o.Kind != Limit {
		return nil, fmt.Errorf("%w: order %d: kind %s submitted as limit", ErrInvalidOrder, o.ID, o.Kind)
	}
	if err := b.validate(o); err != nil {
		return nil, err
	}
	trades, remaining, err := b.match(o)
	if err != nil {
		return trades, err
	}
	if remaining > 0 {
		if err := b.rest(o, remaining); err != nil {
			return trades, err
		}
	}
	return trades, nil
}

// SubmitMarket matches o against the opposite side and discards whatever
// quantity the book cannot fill. Market orders never rest.
func (b *Book) SubmitMarket(o Order) ([]Trade, error) {
	if o.Kind != Market {
		return nil, fmt.Errorf("%w: order %d: kind %s submitted as market", ErrInvalidOrder, o.ID, o.Kind)
	}
	if err := b.validate(o); err != nil {
		return nil, err
	}
	trades, _, err := b.match(o)
	return trades, err
}

// Cancel removes a resting order. It returns false when the id is unknown,
// already filled or already cancelled.
func (b *Book) Cancel(id uint64) bool {
	slot, ok := b.index[id]
	if !ok {
		return false
	}
	n := &b.arena.nodes[slot]
	l := n.level
	side := n.order.Side
	l.total -= n.remaining
	b.arena.unlink(slot)
	delete(b.index, id)
	b.arena.release(slot)
	if l.count == 0 {
		b.dropLevel(side, l.price)
	}
	return true
}

// Snapshot reads the top of book, stamped with ts.
func (b *Book) Snapshot(ts int64) MarketSnapshot {
	s := MarketSnapshot{Timestamp: ts, LastTradePrice: b.lastTradePrice}
	if p, ok := b.bids.best(); ok {
		s.BestBid = p
		s.BestBidQty = b.bidLevels[p].total
	}
	if p, ok := b.asks.best(); ok {
		s.BestAsk = p
		s.BestAskQty = b.askLevels[p].total
	}
	return s
}

// BestBid returns the highest bid price.
func (b *Book) BestBid() (int64, bool) { return b.bids.best() }

// BestAsk returns the lowest ask price.
func (b *Book) BestAsk() (int64, bool) { return b.asks.best() }

// Depth aggregates up to levels price levels per side: bids best-first, then
// asks best-first.
func (b *Book) Depth(levels int) []DepthLevel {
	if levels <= 0 {
		return nil
	}
	out := make([]DepthLevel, 0, 2*levels)
	n := 0
	b.bids.walk(func(p int64) bool {
		out = append(out, DepthLevel{Price: p, BidQuantity: b.bidLevels[p].total})
		n++
		return n < levels
	})
	n = 0
	b.asks.walk(func(p int64) bool {
		out = append(out, DepthLevel{Price: p, AskQuantity: b.askLevels[p].total})
		n++
		return n < levels
	})
	return out
}

// Order looks up a resting order by id.
func (b *Book) Order(id uint64) (RestingOrder, bool) {
	slot, ok := b.index[id]
	if !ok {
		return RestingOrder{}, false
	}
	n := b.arena.nodes[slot]
	return RestingOrder{Order: n.order, Remaining: n.remaining, Sequence: n.seq}, true
}

// Len is the number of resting orders.
func (b *Book) Len() int { return len(b.index) }

// LastTradePrice is the price of the most recent trade, 0 before any.
func (b *Book) LastTradePrice() int64 { return b.lastTradePrice }

// Volume is the total matched quantity.
func (b *Book) Volume() int64 { return b.volume }

// TradeCount is the number of trades emitted.
func (b *Book) TradeCount() int64 { return b.tradeCount }

func (b *Book) validate(o Order) error {
	if !o.Side.Valid() {
		return fmt.Errorf("%w: order %d: unknown side %d", ErrInvalidOrder, o.ID, uint8(o.Side))
	}
	if o.Quantity <= 0 || o.Quantity > MaxTicks {
		return fmt.Errorf("%w: order %d: quantity %d out of range", ErrInvalidOrder, o.ID, o.Quantity)
	}
	if o.Kind == Limit && (o.Price <= 0 || o.Price > MaxTicks) {
		return fmt.Errorf("%w: order %d: limit price %d out of range", ErrInvalidOrder, o.ID, o.Price)
	}
	if _, live := b.index[o.ID]; live {
		return fmt.Errorf("%w: order %d: id already resting", ErrInvalidOrder, o.ID)
	}
	return nil
}

// match runs the price-time matching loop for an incoming order and returns
// the trades plus the unfilled quantity.
func (b *Book) match(o Order) ([]Trade, int64, error) {
	var trades []Trade
	remaining := o.Quantity
	contra, levels := &b.asks, b.askLevels
	if o.Side == Sell {
		contra, levels = &b.bids, b.bidLevels
	}

	for remaining > 0 {
		price, ok := contra.best()
		if !ok || !crosses(o, price) {
			break
		}
		l := levels[price]
		for remaining > 0 && l.head != nilSlot {
			slot := l.head
			maker := &b.arena.nodes[slot]
			qty := min(remaining, maker.remaining)

			trades = append(trades, Trade{
				MakerOrderID: maker.order.ID,
				TakerOrderID: o.ID,
				MakerID:      maker.order.OwnerID,
				TakerID:      o.OwnerID,
				TakerSide:    o.Side,
				Price:        price,
				Quantity:     qty,
				Timestamp:    o.Timestamp,
			})
			if b.volume > math.MaxInt64-qty {
				return trades, remaining, fmt.Errorf("%w: traded volume overflow", ErrInvariantViolation)
			}
			b.volume += qty
			b.tradeCount++
			b.lastTradePrice = price

			remaining -= qty
			maker.remaining -= qty
			l.total -= qty
			if maker.remaining == 0 {
				id := maker.order.ID
				b.arena.unlink(slot)
				delete(b.index, id)
				b.arena.release(slot)
			}
		}
		if l.count == 0 {
			b.dropLevel(o.Side.Opposite(), price)
		}
	}
	return trades, remaining, nil
}

func crosses(o Order, contraPrice int64) bool {
	if o.Kind == Market {
		return true
	}
	if o.Side == Buy {
		return o.Price >= contraPrice
	}
	return o.Price <= contraPrice
}

func (b *Book) rest(o Order, remaining int64) error {
	levels, lad := b.bidLevels, &b.bids
	if o.Side == Sell {
		levels, lad = b.askLevels, &b.asks
	}
	l, ok := levels[o.Price]
	if ok && l.total > math.MaxInt64-remaining {
		return fmt.Errorf("%w: level %d aggregate quantity overflow", ErrInvariantViolation, o.Price)
	}
	if !ok {
		l = &priceLevel{price: o.Price, head: nilSlot, tail: nilSlot}
		levels[o.Price] = l
		lad.insert(o.Price)
	}
	b.seq++
	slot := b.arena.alloc(node{order: o, remaining: remaining, seq: b.seq, prev: nilSlot, next: nilSlot})
	b.arena.pushBack(l, slot)
	b.index[o.ID] = slot
	return nil
}

func (b *Book) dropLevel(side Side, price int64) {
	if side == Buy {
		delete(b.bidLevels, price)
		b.bids.remove(price)
		return
	}
	delete(b.askLevels, price)
	b.asks.remove(price)
}

// CheckInvariants walks the whole book and reports the first broken
// structural invariant. It is O(orders) and meant for tests and debug runs.
func (b *Book) CheckInvariants() error {
	live := 0
	check := func(side Side, lad *ladder, levels map[int64]*priceLevel) error {
		if len(lad.prices) != len(levels) {
			return fmt.Errorf("%w: %s ladder has %d prices, %d levels", ErrInvariantViolation, side, len(lad.prices), len(levels))
		}
		for i, p := range lad.prices {
			if i > 0 && lad.better(lad.prices[i-1], p) >= 0 {
				return fmt.Errorf("%w: %s ladder out of order at %d", ErrInvariantViolation, side, p)
			}
			l, ok := levels[p]
			if !ok {
				return fmt.Errorf("%w: %s ladder price %d has no level", ErrInvariantViolation, side, p)
			}
			if l.count == 0 || l.head == nilSlot {
				return fmt.Errorf("%w: empty %s level at %d", ErrInvariantViolation, side, p)
			}
			var sum int64
			var lastSeq uint64
			count := 0
			for s := l.head; s != nilSlot; s = b.arena.nodes[s].next {
				n := b.arena.nodes[s]
				if n.remaining <= 0 {
					return fmt.Errorf("%w: order %d has remaining %d", ErrInvariantViolation, n.order.ID, n.remaining)
				}
				if n.seq <= lastSeq {
					return fmt.Errorf("%w: level %d not in arrival order", ErrInvariantViolation, p)
				}
				if n.order.Side != side || n.order.Price != p {
					return fmt.Errorf("%w: order %d filed under wrong level", ErrInvariantViolation, n.order.ID)
				}
				if got, ok := b.index[n.order.ID]; !ok || got != s {
					return fmt.Errorf("%w: order %d missing from index", ErrInvariantViolation, n.order.ID)
				}
				lastSeq = n.seq
				sum += n.remaining
				count++
			}
			if sum != l.total || count != l.count {
				return fmt.Errorf("%w: level %d total %d/%d orders, sum %d/%d orders", ErrInvariantViolation, p, l.total, l.count, sum, count)
			}
			live += count
		}
		return nil
	}
	if err := check(Buy, &b.bids, b.bidLevels); err != nil {
		return err
	}
	if err := check(Sell, &b.asks, b.askLevels); err != nil {
		return err
	}
	if live != len(b.index) {
		return fmt.Errorf("%w: index holds %d ids, levels hold %d orders", ErrInvariantViolation, len(b.index), live)
	}
	bid, hasBid := b.bids.best()
	ask, hasAsk := b.asks.best()
	if hasBid && hasAsk && bid >= ask {
		return fmt.Errorf("%w: crossed book bid %d >= ask %d", ErrInvariantViolation, bid, ask)
	}
	return nil
}
