package trace

import (
	"testing"
)

func TestOrderTrace_RecordOrder_AppendsRecord(t *testing.T) {
	// GIVEN a trace configured for orders
	ot := NewOrderTrace(TraceConfig{Level: TraceLevelOrders})

	// WHEN an order record is recorded
	ot.RecordOrder(OrderRecord{
		Step:     3,
		Clock:    3000,
		AgentID:  2,
		OrderID:  42,
		Kind:     "MARKET",
		Side:     "BUY",
		Quantity: 10,
		Filled:   10,
		Trades:   2,
	})

	// THEN the trace contains one order record with correct data
	if len(ot.Orders) != 1 {
		t.Fatalf("expected 1 order, got %d", len(ot.Orders))
	}
	if ot.Orders[0].OrderID != 42 {
		t.Errorf("expected order ID 42, got %d", ot.Orders[0].OrderID)
	}
	if ot.Orders[0].Rested() {
		t.Error("market order must never be reported as resting")
	}
}

func TestOrderTrace_MultipleRecords_PreservesOrder(t *testing.T) {
	// GIVEN a trace
	ot := NewOrderTrace(TraceConfig{Level: TraceLevelOrders})

	// WHEN multiple records are added
	ot.RecordOrder(OrderRecord{OrderID: 1, Clock: 100})
	ot.RecordOrder(OrderRecord{OrderID: 2, Clock: 200, Rejected: true, Reason: "quantity 0 out of range"})
	ot.RecordCancel(CancelRecord{OrderID: 1, Clock: 150, Found: true})

	// THEN order is preserved
	if len(ot.Orders) != 2 {
		t.Fatalf("expected 2 orders, got %d", len(ot.Orders))
	}
	if ot.Orders[0].OrderID != 1 || ot.Orders[1].OrderID != 2 {
		t.Error("order record sequence not preserved")
	}
	if len(ot.Cancels) != 1 || ot.Cancels[0].OrderID != 1 {
		t.Error("cancel record mismatch")
	}
}

func TestOrderTrace_MaxRecords_DropsOverflow(t *testing.T) {
	// GIVEN a trace capped at 2 records
	ot := NewOrderTrace(TraceConfig{Level: TraceLevelOrders, MaxRecords: 2})

	// WHEN 4 records arrive
	ot.RecordOrder(OrderRecord{OrderID: 1})
	ot.RecordCancel(CancelRecord{OrderID: 1})
	ot.RecordOrder(OrderRecord{OrderID: 2})
	ot.RecordCancel(CancelRecord{OrderID: 2})

	// THEN only the first two are kept and the rest are counted
	if len(ot.Orders)+len(ot.Cancels) != 2 {
		t.Errorf("expected 2 kept records, got %d", len(ot.Orders)+len(ot.Cancels))
	}
	if ot.Dropped != 2 {
		t.Errorf("expected 2 dropped, got %d", ot.Dropped)
	}
}

func TestOrderRecord_Rested(t *testing.T) {
	tests := []struct {
		name string
		rec  OrderRecord
		want bool
	}{
		{"unfilled limit", OrderRecord{Kind: "LIMIT", Quantity: 5}, true},
		{"partially filled limit", OrderRecord{Kind: "LIMIT", Quantity: 5, Filled: 2}, true},
		{"filled limit", OrderRecord{Kind: "LIMIT", Quantity: 5, Filled: 5}, false},
		{"rejected limit", OrderRecord{Kind: "LIMIT", Quantity: 5, Rejected: true}, false},
		{"market", OrderRecord{Kind: "MARKET", Quantity: 5}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.rec.Rested(); got != tt.want {
				t.Errorf("Rested() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsValidTraceLevel_ValidLevels(t *testing.T) {
	tests := []struct {
		level string
		valid bool
	}{
		{"none", true},
		{"orders", true},
		{"", true},
		{"decisions", false},
		{"ORDERS", false},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			if got := IsValidTraceLevel(tt.level); got != tt.valid {
				t.Errorf("IsValidTraceLevel(%q) = %v, want %v", tt.level, got, tt.valid)
			}
		})
	}
}

func TestTraceLevel_Enabled(t *testing.T) {
	if TraceLevelNone.Enabled() || TraceLevel("").Enabled() {
		t.Error("none and empty levels must be disabled")
	}
	if !TraceLevelOrders.Enabled() {
		t.Error("orders level must be enabled")
	}
}
