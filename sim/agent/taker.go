package agent

import (
	"math/rand"

	"github.com/lobsim/lobsim/sim/book"
)

// Taker consumes liquidity. Each step it draws Poisson(Intensity) arrivals;
// every arrival picks a side with P(buy) = SideBias and a Gaussian size.
type Taker struct {
	id       uint64
	cfg      TakerConfig
	rng      *rand.Rand
	arrivals ArrivalSampler
	sizes    QuantitySampler
	seq      uint64
}

// NewTaker creates a taker drawing from rng. cfg is assumed validated.
func NewTaker(id uint64, cfg TakerConfig, rng *rand.Rand) *Taker {
	return &Taker{
		id:       id,
		cfg:      cfg,
		rng:      rng,
		arrivals: NewArrivalSampler(cfg.Intensity),
		sizes:    NewQuantitySampler(cfg.QuantityMean, cfg.QuantityStd),
	}
}

func (t *Taker) ID() uint64   { return t.id }
func (t *Taker) Name() string { return "taker" }

func (t *Taker) Update(_ int64, view MarketView) []Intent {
	n := t.arrivals.Count(t.rng)
	if n == 0 {
		return nil
	}
	intents := make([]Intent, 0, n)
	for i := 0; i < n; i++ {
		side := book.Sell
		if t.rng.Float64() < t.cfg.SideBias {
			side = book.Buy
		}
		qty := t.sizes.Sample(t.rng)
		t.seq++
		in := Intent{Kind: book.Market, Side: side, Quantity: qty, OrderID: OrderID(t.id, t.seq)}
		if !t.cfg.UseMarketOrders {
			in.Kind = book.Limit
			in.Price = crossingPrice(side, view)
		}
		intents = append(intents, in)
	}
	return intents
}

// OnExecution is a no-op: fills are booked by the kernel and the taker never
// cancels, so it keeps no order state.
func (t *Taker) OnExecution(Execution) {}

// crossingPrice is the opposite best price, or the reference price when the
// opposite side is empty.
func crossingPrice(side book.Side, view MarketView) int64 {
	p := view.Snapshot.BestAsk
	if side == book.Sell {
		p = view.Snapshot.BestBid
	}
	if p <= 0 {
		return view.Reference
	}
	return p
}
