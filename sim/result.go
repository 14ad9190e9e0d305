package sim

import (
	"github.com/lobsim/lobsim/sim/agent"
	"github.com/lobsim/lobsim/sim/book"
	"github.com/lobsim/lobsim/sim/trace"
)

// finalDepthLevels is how many price levels per side RunResult.FinalDepth keeps.
const finalDepthLevels = 10

// AgentPnLRecord is one row of the per-agent P&L/inventory series. A row is
// written for an agent only in steps where one of its trades changed its state.
type AgentPnLRecord struct {
	Timestamp int64
	AgentID   uint64
	PnL       float64
	Inventory int64
}

// RunResult is the immutable outcome of one Simulator.Run call. Callers must
// treat all slices and maps as read-only.
type RunResult struct {
	Seed  int64
	Steps int64 // steps actually executed, min(nSteps, MaxSteps)

	Trades          []book.Trade          // generation order
	MarketSnapshots []book.MarketSnapshot // one per SnapshotInterval steps
	AgentPnL        []AgentPnLRecord

	TotalEventsProcessed int64 // intents handled, including rejected orders and no-op cancels
	TotalTrades          int64
	TotalVolume          int64
	RejectedOrders       int64
	CancelledOrders      int64 // cancels that removed a resting order

	SimulationDuration    int64   // simulated ns, Steps*TimeStep
	SimulationTimeSeconds float64 // wall clock

	FinalAgents     []agent.AgentState
	AgentNames      map[uint64]string
	FinalDepth      []book.DepthLevel
	StreamPositions map[string]uint64
	Trace           *trace.OrderTrace // nil unless tracing was enabled
}

// EventsPerSecond is the wall-clock throughput of the run.
func (r *RunResult) EventsPerSecond() float64 {
	if r.SimulationTimeSeconds <= 0 {
		return 0
	}
	return float64(r.TotalEventsProcessed) / r.SimulationTimeSeconds
}

// FinalState returns the closing state of the agent with the given id.
func (r *RunResult) FinalState(id uint64) (agent.AgentState, bool) {
	for _, s := range r.FinalAgents {
		if s.ID == id {
			return s, true
		}
	}
	return agent.AgentState{}, false
}

// aggregator accumulates the append-only logs and counters of one run.
type aggregator struct {
	trades    []book.Trade
	snapshots []book.MarketSnapshot
	pnl       []AgentPnLRecord

	events    int64
	volume    int64
	rejected  int64
	cancelled int64
}

func newAggregator(steps, snapshotInterval int64) *aggregator {
	return &aggregator{
		snapshots: make([]book.MarketSnapshot, 0, steps/snapshotInterval+1),
	}
}

func (a *aggregator) addTrade(t book.Trade) {
	a.trades = append(a.trades, t)
	a.volume += t.Quantity
}

func (a *aggregator) addSnapshot(s book.MarketSnapshot) {
	a.snapshots = append(a.snapshots, s)
}

func (a *aggregator) addPnL(now int64, s agent.AgentState) {
	a.pnl = append(a.pnl, AgentPnLRecord{Timestamp: now, AgentID: s.ID, PnL: s.PnL, Inventory: s.Inventory})
}

func (a *aggregator) finalize(rc *runContext, steps, duration int64, wallSeconds float64) *RunResult {
	names := make(map[uint64]string, len(rc.agents))
	for _, ag := range rc.agents {
		names[ag.ID()] = ag.Name()
	}
	return &RunResult{
		Seed:                  rc.cfg.Seed,
		Steps:                 steps,
		Trades:                a.trades,
		MarketSnapshots:       a.snapshots,
		AgentPnL:              a.pnl,
		TotalEventsProcessed:  a.events,
		TotalTrades:           int64(len(a.trades)),
		TotalVolume:           a.volume,
		RejectedOrders:        a.rejected,
		CancelledOrders:       a.cancelled,
		SimulationDuration:    duration,
		SimulationTimeSeconds: wallSeconds,
		FinalAgents:           append([]agent.AgentState(nil), rc.states...),
		AgentNames:            names,
		FinalDepth:            rc.book.Depth(finalDepthLevels),
		StreamPositions:       rc.rng.Positions(),
		Trace:                 rc.trace,
	}
}
