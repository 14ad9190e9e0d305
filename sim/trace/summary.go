package trace

// TraceSummary aggregates statistics from an OrderTrace.
type TraceSummary struct {
	TotalOrders     int
	RejectedCount   int
	FullyFilled     int
	PartiallyFilled int
	Unfilled        int
	Rested          int     // accepted limit orders that left a remainder in the book
	MeanFillRatio   float64 // mean of filled/quantity over accepted orders
	TotalCancels    int
	CancelHits      int            // cancels that removed a resting order
	OrdersByAgent   map[uint64]int // agent ID → accepted + rejected orders
}

// Summarize computes aggregate statistics from an OrderTrace.
// Safe for nil or empty traces (returns zero-value fields).
func Summarize(ot *OrderTrace) *TraceSummary {
	summary := &TraceSummary{
		OrdersByAgent: make(map[uint64]int),
	}
	if ot == nil {
		return summary
	}

	summary.TotalOrders = len(ot.Orders)
	accepted := 0
	totalRatio := 0.0
	for _, o := range ot.Orders {
		summary.OrdersByAgent[o.AgentID]++
		if o.Rejected {
			summary.RejectedCount++
			continue
		}
		accepted++
		if o.Rested() {
			summary.Rested++
		}
		switch {
		case o.Filled >= o.Quantity:
			summary.FullyFilled++
		case o.Filled > 0:
			summary.PartiallyFilled++
		default:
			summary.Unfilled++
		}
		if o.Quantity > 0 {
			totalRatio += float64(o.Filled) / float64(o.Quantity)
		}
	}
	if accepted > 0 {
		summary.MeanFillRatio = totalRatio / float64(accepted)
	}

	summary.TotalCancels = len(ot.Cancels)
	for _, c := range ot.Cancels {
		if c.Found {
			summary.CancelHits++
		}
	}

	return summary
}
