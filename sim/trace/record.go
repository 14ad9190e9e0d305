// Package trace provides order-flow recording for post-run analysis of a
// simulation. This package has no dependencies on sim/ or its other
// sub-packages; it stores pure data types.
package trace

// OrderRecord captures one limit or market order and what the book did with it.
type OrderRecord struct {
	Step     int64
	Clock    int64
	AgentID  uint64
	OrderID  uint64
	Kind     string // "LIMIT" or "MARKET"
	Side     string // "BUY" or "SELL"
	Price    int64  // 0 for market orders
	Quantity int64
	Filled   int64 // quantity matched on arrival
	Trades   int   // number of trades emitted on arrival
	Rejected bool
	Reason   string // rejection detail; empty when accepted
}

// Rested reports whether some of the order was left in the book.
func (r OrderRecord) Rested() bool {
	return !r.Rejected && r.Kind == "LIMIT" && r.Filled < r.Quantity
}

// CancelRecord captures one cancel instruction.
type CancelRecord struct {
	Step    int64
	Clock   int64
	AgentID uint64
	OrderID uint64
	Found   bool // false when the target had already filled or been cancelled
}
