package trace

// TraceLevel controls the verbosity of order-flow tracing.
type TraceLevel string

const (
	// TraceLevelNone disables tracing (zero overhead).
	TraceLevelNone TraceLevel = "none"
	// TraceLevelOrders captures every submitted order and cancel with its outcome.
	TraceLevelOrders TraceLevel = "orders"
)

// validTraceLevels maps accepted trace level strings.
var validTraceLevels = map[TraceLevel]bool{
	TraceLevelNone:   true,
	TraceLevelOrders: true,
	"":               true, // empty defaults to none
}

// IsValidTraceLevel returns true if the given level string is a recognized trace level.
func IsValidTraceLevel(level string) bool {
	return validTraceLevels[TraceLevel(level)]
}

// Enabled reports whether l records anything.
func (l TraceLevel) Enabled() bool {
	return l == TraceLevelOrders
}

// TraceConfig controls trace collection behavior.
type TraceConfig struct {
	Level      TraceLevel
	MaxRecords int // cap on orders+cancels kept; 0 means unbounded
}

// OrderTrace collects order-flow records during one simulation run.
type OrderTrace struct {
	Config  TraceConfig
	Orders  []OrderRecord
	Cancels []CancelRecord
	Dropped int // records discarded after MaxRecords was reached
}

// NewOrderTrace creates an OrderTrace ready for recording.
func NewOrderTrace(config TraceConfig) *OrderTrace {
	return &OrderTrace{
		Config:  config,
		Orders:  make([]OrderRecord, 0),
		Cancels: make([]CancelRecord, 0),
	}
}

func (ot *OrderTrace) full() bool {
	if ot.Config.MaxRecords > 0 && len(ot.Orders)+len(ot.Cancels) >= ot.Config.MaxRecords {
		ot.Dropped++
		return true
	}
	return false
}

// RecordOrder appends a limit or market order record.
func (ot *OrderTrace) RecordOrder(record OrderRecord) {
	if ot.full() {
		return
	}
	ot.Orders = append(ot.Orders, record)
}

// RecordCancel appends a cancel record.
func (ot *OrderTrace) RecordCancel(record CancelRecord) {
	if ot.full() {
		return
	}
	ot.Cancels = append(ot.Cancels, record)
}
