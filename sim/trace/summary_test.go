package trace

import (
	"math"
	"testing"
)

func TestSummarize_EmptyTrace_ZeroValues(t *testing.T) {
	// GIVEN an empty trace
	ot := NewOrderTrace(TraceConfig{Level: TraceLevelOrders})

	// WHEN summarized
	summary := Summarize(ot)

	// THEN all counts are zero
	if summary.TotalOrders != 0 || summary.TotalCancels != 0 {
		t.Errorf("expected zero totals, got %d orders, %d cancels", summary.TotalOrders, summary.TotalCancels)
	}
	if summary.MeanFillRatio != 0 {
		t.Errorf("expected 0 mean fill ratio, got %f", summary.MeanFillRatio)
	}
	if len(summary.OrdersByAgent) != 0 {
		t.Error("expected empty per-agent distribution")
	}
}

func TestSummarize_NilTrace_ZeroValues(t *testing.T) {
	summary := Summarize(nil)
	if summary == nil || summary.OrdersByAgent == nil {
		t.Fatal("expected non-nil summary with initialized map")
	}
	if summary.TotalOrders != 0 {
		t.Errorf("expected 0 orders, got %d", summary.TotalOrders)
	}
}

func TestSummarize_PopulatedTrace_CorrectCounts(t *testing.T) {
	// GIVEN a trace with mixed outcomes
	ot := NewOrderTrace(TraceConfig{Level: TraceLevelOrders})
	ot.RecordOrder(OrderRecord{AgentID: 1, Kind: "LIMIT", Quantity: 10, Filled: 0})
	ot.RecordOrder(OrderRecord{AgentID: 2, Kind: "MARKET", Quantity: 10, Filled: 10})
	ot.RecordOrder(OrderRecord{AgentID: 3, Kind: "LIMIT", Quantity: 10, Filled: 5})
	ot.RecordOrder(OrderRecord{AgentID: 3, Kind: "LIMIT", Quantity: 0, Rejected: true})
	ot.RecordCancel(CancelRecord{AgentID: 3, Found: true})
	ot.RecordCancel(CancelRecord{AgentID: 3, Found: false})

	// WHEN summarized
	summary := Summarize(ot)

	// THEN counts match
	if summary.TotalOrders != 4 {
		t.Errorf("expected 4 orders, got %d", summary.TotalOrders)
	}
	if summary.RejectedCount != 1 {
		t.Errorf("expected 1 rejected, got %d", summary.RejectedCount)
	}
	if summary.FullyFilled != 1 || summary.PartiallyFilled != 1 || summary.Unfilled != 1 {
		t.Errorf("fill buckets = %d/%d/%d, want 1/1/1", summary.FullyFilled, summary.PartiallyFilled, summary.Unfilled)
	}
	// the unfilled and the partially filled limits rest; the market order never does
	if summary.Rested != 2 {
		t.Errorf("expected 2 rested, got %d", summary.Rested)
	}
	if math.Abs(summary.MeanFillRatio-0.5) > 1e-12 {
		t.Errorf("expected mean fill ratio 0.5, got %f", summary.MeanFillRatio)
	}
	if summary.TotalCancels != 2 || summary.CancelHits != 1 {
		t.Errorf("cancels = %d (hits %d), want 2 (hits 1)", summary.TotalCancels, summary.CancelHits)
	}
	if summary.OrdersByAgent[3] != 2 {
		t.Errorf("expected 2 orders from agent 3, got %d", summary.OrdersByAgent[3])
	}
}
