// Package analysis computes post-run market statistics from the logs of a
// RunResult: VWAP, TWAP, spread and depth distributions, realized volatility,
// and per-agent performance.
package analysis

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/lobsim/lobsim/sim"
	"github.com/lobsim/lobsim/sim/book"
)

// Report aggregates all statistics for one run.
type Report struct {
	Trades    TradeStats
	Prices    PriceStats
	Spread    SpreadStats
	Liquidity LiquidityStats
	Agents    []AgentPerformance // sorted by agent ID
}

// TradeStats summarizes the trade log.
type TradeStats struct {
	Count    int
	Volume   int64
	VWAP     float64
	MinPrice int64
	MaxPrice int64
	MeanSize float64
}

// PriceStats summarizes the mid-price path over the sampled snapshots.
type PriceStats struct {
	TWAP               float64 // mean mid over two-sided snapshots
	MidStdDev          float64
	RealizedVolatility float64 // population std dev of mid log returns
}

// SpreadStats describes the quoted spread over two-sided snapshots.
type SpreadStats struct {
	Samples      int
	Min          float64
	Max          float64
	Mean         float64
	Median       float64
	StdDev       float64 // population
	P25          float64
	P75          float64
	P95          float64
	MeanRelative float64 // spread / mid
}

// LiquidityStats describes top-of-book depth.
type LiquidityStats struct {
	MeanDepth        float64 // best bid qty + best ask qty
	DepthStdDev      float64
	TwoSidedFraction float64 // share of snapshots with both sides quoted
}

// AgentPerformance summarizes one agent's P&L series and trading activity.
type AgentPerformance struct {
	AgentID        uint64
	Name           string
	FinalPnL       float64
	FinalInventory int64
	MaxPnL         float64
	MinPnL         float64
	MaxDrawdown    float64
	Sharpe         float64 // mean/std of P&L changes between records; 0 when undefined
	Trades         int
	MakerVolume    int64
	TakerVolume    int64
}

// Analyze computes the full Report for r.
func Analyze(r *sim.RunResult) *Report {
	return AnalyzeLogs(r.Trades, r.MarketSnapshots, r.AgentPnL, r.AgentNames)
}

// AnalyzeLogs computes a Report from bare logs, e.g. ones read back from CSV.
// names may be nil.
func AnalyzeLogs(trades []book.Trade, snaps []book.MarketSnapshot, pnl []sim.AgentPnLRecord, names map[uint64]string) *Report {
	return &Report{
		Trades:    Trades(trades),
		Prices:    Prices(snaps),
		Spread:    Spreads(snaps),
		Liquidity: Liquidity(snaps),
		Agents:    Agents(pnl, trades, names),
	}
}

// VWAP is the volume-weighted average trade price, 0 without trades.
func VWAP(trades []book.Trade) float64 {
	if len(trades) == 0 {
		return 0
	}
	prices := make([]float64, len(trades))
	weights := make([]float64, len(trades))
	for i, t := range trades {
		prices[i] = float64(t.Price)
		weights[i] = float64(t.Quantity)
	}
	return stat.Mean(prices, weights)
}

// TWAP is the mean mid price over two-sided snapshots, 0 if there are none.
func TWAP(snaps []book.MarketSnapshot) float64 {
	mids := midPrices(snaps)
	if len(mids) == 0 {
		return 0
	}
	return stat.Mean(mids, nil)
}

// RealizedVolatility is the population standard deviation of log returns
// between consecutive two-sided snapshots.
func RealizedVolatility(snaps []book.MarketSnapshot) float64 {
	var returns []float64
	for i := 1; i < len(snaps); i++ {
		prev, cur := snaps[i-1], snaps[i]
		if !prev.HasTwoSidedQuote() || !cur.HasTwoSidedQuote() {
			continue
		}
		returns = append(returns, math.Log(exactMid(cur)/exactMid(prev)))
	}
	if len(returns) == 0 {
		return 0
	}
	_, std := stat.PopMeanStdDev(returns, nil)
	return std
}

func Trades(trades []book.Trade) TradeStats {
	ts := TradeStats{Count: len(trades)}
	if len(trades) == 0 {
		return ts
	}
	ts.MinPrice, ts.MaxPrice = trades[0].Price, trades[0].Price
	for _, t := range trades {
		ts.Volume += t.Quantity
		ts.MinPrice = min(ts.MinPrice, t.Price)
		ts.MaxPrice = max(ts.MaxPrice, t.Price)
	}
	ts.VWAP = VWAP(trades)
	ts.MeanSize = float64(ts.Volume) / float64(len(trades))
	return ts
}

func Prices(snaps []book.MarketSnapshot) PriceStats {
	mids := midPrices(snaps)
	ps := PriceStats{RealizedVolatility: RealizedVolatility(snaps)}
	if len(mids) == 0 {
		return ps
	}
	ps.TWAP = stat.Mean(mids, nil)
	if len(mids) > 1 {
		ps.MidStdDev = stat.StdDev(mids, nil)
	}
	return ps
}

func Spreads(snaps []book.MarketSnapshot) SpreadStats {
	var spreads, relative []float64
	for _, s := range snaps {
		if !s.HasTwoSidedQuote() {
			continue
		}
		sp := float64(s.BestAsk - s.BestBid)
		spreads = append(spreads, sp)
		relative = append(relative, sp/exactMid(s))
	}
	ss := SpreadStats{Samples: len(spreads)}
	if len(spreads) == 0 {
		return ss
	}
	sort.Float64s(spreads)
	ss.Min = spreads[0]
	ss.Max = spreads[len(spreads)-1]
	ss.Mean, ss.StdDev = stat.PopMeanStdDev(spreads, nil)
	ss.Median = stat.Quantile(0.5, stat.Empirical, spreads, nil)
	ss.P25 = stat.Quantile(0.25, stat.Empirical, spreads, nil)
	ss.P75 = stat.Quantile(0.75, stat.Empirical, spreads, nil)
	ss.P95 = stat.Quantile(0.95, stat.Empirical, spreads, nil)
	ss.MeanRelative = stat.Mean(relative, nil)
	return ss
}

func Liquidity(snaps []book.MarketSnapshot) LiquidityStats {
	var ls LiquidityStats
	if len(snaps) == 0 {
		return ls
	}
	depth := make([]float64, len(snaps))
	twoSided := 0
	for i, s := range snaps {
		depth[i] = float64(s.BestBidQty + s.BestAskQty)
		if s.HasTwoSidedQuote() {
			twoSided++
		}
	}
	ls.MeanDepth, ls.DepthStdDev = stat.PopMeanStdDev(depth, nil)
	ls.TwoSidedFraction = float64(twoSided) / float64(len(snaps))
	return ls
}

// Agents summarizes each agent that appears in the P&L series or the trade
// log. names may be nil.
func Agents(pnl []sim.AgentPnLRecord, trades []book.Trade, names map[uint64]string) []AgentPerformance {
	byID := map[uint64]*AgentPerformance{}
	get := func(id uint64) *AgentPerformance {
		p, ok := byID[id]
		if !ok {
			p = &AgentPerformance{AgentID: id, Name: names[id]}
			byID[id] = p
		}
		return p
	}

	series := map[uint64][]float64{}
	for _, r := range pnl {
		p := get(r.AgentID)
		p.FinalPnL = r.PnL
		p.FinalInventory = r.Inventory
		series[r.AgentID] = append(series[r.AgentID], r.PnL)
	}
	for id, s := range series {
		p := byID[id]
		p.MaxPnL, p.MinPnL = s[0], s[0]
		for _, v := range s {
			p.MaxPnL = math.Max(p.MaxPnL, v)
			p.MinPnL = math.Min(p.MinPnL, v)
		}
		p.MaxDrawdown = maxDrawdown(s)
		p.Sharpe = sharpe(s)
	}

	for _, t := range trades {
		m := get(t.MakerID)
		m.Trades++
		m.MakerVolume += t.Quantity
		tk := get(t.TakerID)
		if t.TakerID != t.MakerID {
			tk.Trades++
		}
		tk.TakerVolume += t.Quantity
	}

	out := make([]AgentPerformance, 0, len(byID))
	for _, p := range byID {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AgentID < out[j].AgentID })
	return out
}

// maxDrawdown is the largest fall from a running peak, starting from a flat
// (zero) account.
func maxDrawdown(series []float64) float64 {
	peak, dd := 0.0, 0.0
	for _, v := range series {
		peak = math.Max(peak, v)
		dd = math.Max(dd, peak-v)
	}
	return dd
}

func sharpe(series []float64) float64 {
	if len(series) < 3 {
		return 0
	}
	deltas := make([]float64, len(series)-1)
	for i := 1; i < len(series); i++ {
		deltas[i-1] = series[i] - series[i-1]
	}
	mean, std := stat.MeanStdDev(deltas, nil)
	if std == 0 || math.IsNaN(std) {
		return 0
	}
	return mean / std
}

func midPrices(snaps []book.MarketSnapshot) []float64 {
	var mids []float64
	for _, s := range snaps {
		if s.HasTwoSidedQuote() {
			mids = append(mids, exactMid(s))
		}
	}
	return mids
}

// exactMid keeps the half tick that the integer MarketSnapshot.Mid drops.
func exactMid(s book.MarketSnapshot) float64 {
	return float64(s.BestBid+s.BestAsk) / 2
}
