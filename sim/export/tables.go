// Package export converts a RunResult into columnar tables and persists them
// as CSV files plus a YAML run header and a plain-text summary.
package export

import (
	"github.com/lobsim/lobsim/sim"
	"github.com/lobsim/lobsim/sim/book"
)

// Column orders are part of the file format.
var (
	tradeColumns    = []string{"timestamp", "maker_id", "taker_id", "price", "quantity"}
	snapshotColumns = []string{"timestamp", "best_bid", "best_ask", "best_bid_qty", "best_ask_qty", "last_trade_price"}
	pnlColumns      = []string{"timestamp", "agent_id", "pnl", "inventory"}
)

// RunHeader carries run-level metadata that does not fit the row tables.
type RunHeader struct {
	Seed                 int64             `yaml:"seed"`
	Steps                int64             `yaml:"steps"`
	SimulationDuration   int64             `yaml:"simulation_duration_ns"`
	TotalEventsProcessed int64             `yaml:"total_events_processed"`
	TotalTrades          int64             `yaml:"total_trades"`
	TotalVolume          int64             `yaml:"total_volume"`
	RejectedOrders       int64             `yaml:"rejected_orders"`
	CancelledOrders      int64             `yaml:"cancelled_orders"`
	WallSeconds          float64           `yaml:"wall_seconds"`
	Agents               map[uint64]string `yaml:"agents"`
}

// TradeTable is the trade log in column form.
type TradeTable struct {
	Timestamp []int64
	MakerID   []uint64
	TakerID   []uint64
	Price     []int64
	Quantity  []int64
}

func (t *TradeTable) Len() int { return len(t.Timestamp) }

func (t *TradeTable) append(tr book.Trade) {
	t.Timestamp = append(t.Timestamp, tr.Timestamp)
	t.MakerID = append(t.MakerID, tr.MakerID)
	t.TakerID = append(t.TakerID, tr.TakerID)
	t.Price = append(t.Price, tr.Price)
	t.Quantity = append(t.Quantity, tr.Quantity)
}

// SnapshotTable is the market snapshot log in column form.
type SnapshotTable struct {
	Timestamp      []int64
	BestBid        []int64
	BestAsk        []int64
	BestBidQty     []int64
	BestAskQty     []int64
	LastTradePrice []int64
}

func (t *SnapshotTable) Len() int { return len(t.Timestamp) }

func (t *SnapshotTable) append(s book.MarketSnapshot) {
	t.Timestamp = append(t.Timestamp, s.Timestamp)
	t.BestBid = append(t.BestBid, s.BestBid)
	t.BestAsk = append(t.BestAsk, s.BestAsk)
	t.BestBidQty = append(t.BestBidQty, s.BestBidQty)
	t.BestAskQty = append(t.BestAskQty, s.BestAskQty)
	t.LastTradePrice = append(t.LastTradePrice, s.LastTradePrice)
}

// PnLTable is the agent P&L series in column form.
type PnLTable struct {
	Timestamp []int64
	AgentID   []uint64
	PnL       []float64
	Inventory []int64
}

func (t *PnLTable) Len() int { return len(t.Timestamp) }

func (t *PnLTable) append(r sim.AgentPnLRecord) {
	t.Timestamp = append(t.Timestamp, r.Timestamp)
	t.AgentID = append(t.AgentID, r.AgentID)
	t.PnL = append(t.PnL, r.PnL)
	t.Inventory = append(t.Inventory, r.Inventory)
}

// Tables is the columnar view of one run.
type Tables struct {
	Header    RunHeader
	Trades    TradeTable
	Snapshots SnapshotTable
	PnL       PnLTable
}

// NewTables builds the columnar view of r.
func NewTables(r *sim.RunResult) *Tables {
	t := &Tables{
		Header: RunHeader{
			Seed:                 r.Seed,
			Steps:                r.Steps,
			SimulationDuration:   r.SimulationDuration,
			TotalEventsProcessed: r.TotalEventsProcessed,
			TotalTrades:          r.TotalTrades,
			TotalVolume:          r.TotalVolume,
			RejectedOrders:       r.RejectedOrders,
			CancelledOrders:      r.CancelledOrders,
			WallSeconds:          r.SimulationTimeSeconds,
			Agents:               r.AgentNames,
		},
	}
	for _, tr := range r.Trades {
		t.Trades.append(tr)
	}
	for _, s := range r.MarketSnapshots {
		t.Snapshots.append(s)
	}
	for _, p := range r.AgentPnL {
		t.PnL.append(p)
	}
	return t
}

// TradeLog rebuilds the trade rows. Order ids and taker side are not part of
// the table and come back zero.
func (t *Tables) TradeLog() []book.Trade {
	out := make([]book.Trade, t.Trades.Len())
	for i := range out {
		out[i] = book.Trade{
			Timestamp: t.Trades.Timestamp[i],
			MakerID:   t.Trades.MakerID[i],
			TakerID:   t.Trades.TakerID[i],
			Price:     t.Trades.Price[i],
			Quantity:  t.Trades.Quantity[i],
		}
	}
	return out
}

// SnapshotLog rebuilds the snapshot rows.
func (t *Tables) SnapshotLog() []book.MarketSnapshot {
	out := make([]book.MarketSnapshot, t.Snapshots.Len())
	for i := range out {
		out[i] = book.MarketSnapshot{
			Timestamp:      t.Snapshots.Timestamp[i],
			BestBid:        t.Snapshots.BestBid[i],
			BestAsk:        t.Snapshots.BestAsk[i],
			BestBidQty:     t.Snapshots.BestBidQty[i],
			BestAskQty:     t.Snapshots.BestAskQty[i],
			LastTradePrice: t.Snapshots.LastTradePrice[i],
		}
	}
	return out
}

// PnLLog rebuilds the P&L rows.
func (t *Tables) PnLLog() []sim.AgentPnLRecord {
	out := make([]sim.AgentPnLRecord, t.PnL.Len())
	for i := range out {
		out[i] = sim.AgentPnLRecord{
			Timestamp: t.PnL.Timestamp[i],
			AgentID:   t.PnL.AgentID[i],
			PnL:       t.PnL.PnL[i],
			Inventory: t.PnL.Inventory[i],
		}
	}
	return out
}
