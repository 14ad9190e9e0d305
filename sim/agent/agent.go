// Package agent holds the synthetic trading population that drives the order
// book: a quote-refreshing market maker, an intensity-driven liquidity taker,
// and a noise trader that places and cancels random limit orders.
//
// Agents never touch the book. Each step the kernel hands an agent a
// MarketView and submits the returned intents in order; outcomes for the
// agent's own orders come back through OnExecution.
package agent

import (
	"github.com/lobsim/lobsim/sim/book"
)

// Owner ids of the standard population.
const (
	MarketMakerID uint64 = 1
	TakerID       uint64 = 2
	NoiseTraderID uint64 = 3
)

// idShift splits an order id into owner (high bits) and per-owner sequence.
const idShift = 40

// OrderID builds the globally unique id of an owner's seq-th order.
func OrderID(owner, seq uint64) uint64 { return owner<<idShift | seq }

// OwnerOf recovers the owner id encoded in an order id.
func OwnerOf(orderID uint64) uint64 { return orderID >> idShift }

// Intent is an instruction an agent wants submitted. For Cancel intents
// OrderID names the target and Side, Price and Quantity are ignored.
type Intent struct {
	Kind     book.OrderKind
	Side     book.Side
	Price    int64
	Quantity int64
	OrderID  uint64
}

// ExecutionKind distinguishes fills from rejections.
type ExecutionKind uint8

const (
	Fill ExecutionKind = iota
	Reject
)

func (k ExecutionKind) String() string {
	if k == Fill {
		return "FILL"
	}
	return "REJECT"
}

// Execution reports what happened to one of the agent's own orders.
type Execution struct {
	OrderID  uint64
	Kind     ExecutionKind
	Quantity int64
	Price    int64
}

// AgentState is the kernel-owned position of one agent.
type AgentState struct {
	ID        uint64
	PnL       float64
	Inventory int64
}

// Apply books a fill using cash-flow accounting: buying spends notional,
// selling receives it. Inventory is never marked to market.
func (s *AgentState) Apply(side book.Side, price, qty int64) {
	notional := float64(price) * float64(qty)
	if side == book.Buy {
		s.Inventory += qty
		s.PnL -= notional
		return
	}
	s.Inventory -= qty
	s.PnL += notional
}

// MarketView is everything an agent may observe when deciding.
type MarketView struct {
	Snapshot  book.MarketSnapshot
	Reference int64 // fallback price when the book is one-sided or empty
	Self      AgentState
}

// Mid is the top-of-book mid when both sides quote, else the reference price.
func (v MarketView) Mid() int64 {
	if v.Snapshot.HasTwoSidedQuote() {
		return v.Snapshot.Mid()
	}
	return v.Reference
}

// Agent is one participant in the simulated market.
type Agent interface {
	ID() uint64
	Name() string
	// Update returns the intents for this step. It may only consult the view,
	// the agent's own state and the agent's own RNG stream.
	Update(now int64, view MarketView) []Intent
	// OnExecution is called for every fill or rejection of the agent's orders.
	OnExecution(e Execution)
}
