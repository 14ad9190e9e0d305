package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/lobsim/lobsim/sim/analysis"
)

const summaryTitle = "Market Microstructure Simulation Summary"

// WriteSummary writes the plain-text statistics report for t. Monetary
// aggregates are formatted with fixed-point decimals so large notionals do
// not pick up float rounding. The run section is omitted when t has no header.
func WriteSummary(w io.Writer, t *Tables) error {
	rep := analysis.AnalyzeLogs(t.TradeLog(), t.SnapshotLog(), t.PnLLog(), t.Header.Agents)

	var b strings.Builder
	b.WriteString(summaryTitle + "\n")
	b.WriteString(strings.Repeat("=", 50) + "\n\n")

	h := t.Header
	if h.Steps > 0 || len(h.Agents) > 0 {
		fmt.Fprintf(&b, "seed: %d\n", h.Seed)
		fmt.Fprintf(&b, "steps: %d\n", h.Steps)
		fmt.Fprintf(&b, "simulation_duration_ns: %d\n", h.SimulationDuration)
		fmt.Fprintf(&b, "total_events_processed: %d\n", h.TotalEventsProcessed)
		fmt.Fprintf(&b, "rejected_orders: %d\n", h.RejectedOrders)
		fmt.Fprintf(&b, "cancelled_orders: %d\n", h.CancelledOrders)
		if h.WallSeconds > 0 {
			fmt.Fprintf(&b, "events_per_second: %.0f\n", float64(h.TotalEventsProcessed)/h.WallSeconds)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "total_trades: %d\n", rep.Trades.Count)
	fmt.Fprintf(&b, "total_volume: %d\n", rep.Trades.Volume)
	fmt.Fprintf(&b, "notional: %s\n", Notional(t).String())
	if rep.Trades.Count > 0 {
		fmt.Fprintf(&b, "vwap: %s\n", fixed(rep.Trades.VWAP, 4))
		fmt.Fprintf(&b, "min_price: %d\n", rep.Trades.MinPrice)
		fmt.Fprintf(&b, "max_price: %d\n", rep.Trades.MaxPrice)
		fmt.Fprintf(&b, "mean_trade_size: %s\n", fixed(rep.Trades.MeanSize, 2))
	}
	fmt.Fprintf(&b, "twap: %s\n", fixed(rep.Prices.TWAP, 4))
	fmt.Fprintf(&b, "mid_std: %s\n", fixed(rep.Prices.MidStdDev, 4))
	fmt.Fprintf(&b, "realized_volatility: %.6g\n", rep.Prices.RealizedVolatility)
	b.WriteString("\n")

	s := rep.Spread
	b.WriteString("spread:\n")
	fmt.Fprintf(&b, "  samples: %d\n", s.Samples)
	fmt.Fprintf(&b, "  min: %g\n", s.Min)
	fmt.Fprintf(&b, "  max: %g\n", s.Max)
	fmt.Fprintf(&b, "  mean: %.4f\n", s.Mean)
	fmt.Fprintf(&b, "  median: %g\n", s.Median)
	fmt.Fprintf(&b, "  std: %.4f\n", s.StdDev)
	fmt.Fprintf(&b, "  p25: %g\n", s.P25)
	fmt.Fprintf(&b, "  p75: %g\n", s.P75)
	fmt.Fprintf(&b, "  p95: %g\n", s.P95)
	fmt.Fprintf(&b, "  mean_relative: %.6f\n", s.MeanRelative)
	b.WriteString("\n")

	l := rep.Liquidity
	b.WriteString("liquidity:\n")
	fmt.Fprintf(&b, "  mean_depth: %.2f\n", l.MeanDepth)
	fmt.Fprintf(&b, "  depth_std: %.2f\n", l.DepthStdDev)
	fmt.Fprintf(&b, "  two_sided_fraction: %.4f\n", l.TwoSidedFraction)

	for _, a := range rep.Agents {
		name := a.Name
		if name == "" {
			name = "agent"
		}
		fmt.Fprintf(&b, "\n%s (%d):\n", name, a.AgentID)
		fmt.Fprintf(&b, "  final_pnl: %s\n", fixed(a.FinalPnL, 2))
		fmt.Fprintf(&b, "  final_inventory: %d\n", a.FinalInventory)
		fmt.Fprintf(&b, "  max_pnl: %s\n", fixed(a.MaxPnL, 2))
		fmt.Fprintf(&b, "  min_pnl: %s\n", fixed(a.MinPnL, 2))
		fmt.Fprintf(&b, "  max_drawdown: %s\n", fixed(a.MaxDrawdown, 2))
		fmt.Fprintf(&b, "  sharpe: %.4f\n", a.Sharpe)
		fmt.Fprintf(&b, "  trades: %d\n", a.Trades)
		fmt.Fprintf(&b, "  maker_volume: %d\n", a.MakerVolume)
		fmt.Fprintf(&b, "  taker_volume: %d\n", a.TakerVolume)
	}

	if _, err := io.WriteString(w, b.String()); err != nil {
		return fmt.Errorf("writing summary: %w", err)
	}
	return nil
}

// Notional is the exact traded value Σ price·quantity in ticks.
func Notional(t *Tables) decimal.Decimal {
	total := decimal.Zero
	for i := range t.Trades.Price {
		total = total.Add(decimal.NewFromInt(t.Trades.Price[i]).Mul(decimal.NewFromInt(t.Trades.Quantity[i])))
	}
	return total
}

func fixed(v float64, places int32) string {
	return decimal.NewFromFloat(v).StringFixed(places)
}
