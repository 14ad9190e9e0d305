// Package testutil provides shared test infrastructure for the simulator.
// It consolidates fixture builders and assertion helpers used across the
// sim/ sub-package tests. It must not import sim itself so that internal
// tests of sim can use it.
package testutil

import (
	"math"
	"testing"

	"github.com/lobsim/lobsim/sim/agent"
	"github.com/lobsim/lobsim/sim/book"
)

// AgentConfigs bundles the three agent configs a run needs.
type AgentConfigs struct {
	Maker agent.MarketMakerConfig
	Taker agent.TakerConfig
	Noise agent.NoiseTraderConfig
}

// DefaultAgentConfigs returns the reference agent population.
func DefaultAgentConfigs() AgentConfigs {
	return AgentConfigs{
		Maker: agent.DefaultMarketMakerConfig(),
		Taker: agent.DefaultTakerConfig(),
		Noise: agent.DefaultNoiseTraderConfig(),
	}
}

// AssertFloat64Equal compares two float64 values with relative tolerance.
func AssertFloat64Equal(t *testing.T, name string, want, got, relTol float64) {
	t.Helper()
	if want == 0 && got == 0 {
		return
	}
	diff := math.Abs(want - got)
	maxVal := math.Max(math.Abs(want), math.Abs(got))
	if diff/maxVal > relTol {
		t.Errorf("%s: got %v, want %v (diff=%v, relDiff=%v)", name, got, want, diff, diff/maxVal)
	}
}

// Trade builds a trade between the standard market maker (resting) and
// taker (incoming).
func Trade(ts, price, qty int64, takerSide book.Side) book.Trade {
	return book.Trade{
		MakerOrderID: agent.OrderID(agent.MarketMakerID, uint64(ts)+1),
		TakerOrderID: agent.OrderID(agent.TakerID, uint64(ts)+1),
		MakerID:      agent.MarketMakerID,
		TakerID:      agent.TakerID,
		TakerSide:    takerSide,
		Price:        price,
		Quantity:     qty,
		Timestamp:    ts,
	}
}

// Snapshot builds a two-sided snapshot with the given last trade price.
func Snapshot(ts, bid, ask, last int64) book.MarketSnapshot {
	return book.MarketSnapshot{
		Timestamp:      ts,
		BestBid:        bid,
		BestAsk:        ask,
		BestBidQty:     10,
		BestAskQty:     10,
		LastTradePrice: last,
	}
}
