package agent

import (
	"math/rand"

	"github.com/lobsim/lobsim/sim/book"
)

// NoiseTrader scatters limit orders around the mid and occasionally pulls
// its oldest resting one.
type NoiseTrader struct {
	id      uint64
	cfg     NoiseTraderConfig
	rng     *rand.Rand
	limits  ArrivalSampler
	cancels ArrivalSampler
	sizes   QuantitySampler
	seq     uint64
	live    *orderTracker
}

// NewNoiseTrader creates a noise trader drawing from rng. cfg is assumed
// validated.
func NewNoiseTrader(id uint64, cfg NoiseTraderConfig, rng *rand.Rand) *NoiseTrader {
	return &NoiseTrader{
		id:      id,
		cfg:     cfg,
		rng:     rng,
		limits:  NewArrivalSampler(cfg.LimitIntensity),
		cancels: NewArrivalSampler(cfg.CancelIntensity),
		sizes:   NewQuantitySampler(cfg.QuantityMean, cfg.QuantityStd),
		live:    newOrderTracker(),
	}
}

func (n *NoiseTrader) ID() uint64   { return n.id }
func (n *NoiseTrader) Name() string { return "noise_trader" }

// Update draws limit arrivals first, then cancel arrivals. A cancel arrival
// only consumes a Bernoulli draw when there is something to cancel.
func (n *NoiseTrader) Update(_ int64, view MarketView) []Intent {
	var intents []Intent
	mid := view.Mid()

	for i, k := 0, n.limits.Count(n.rng); i < k; i++ {
		side := book.Sell
		if n.rng.Float64() < 0.5 {
			side = book.Buy
		}
		price := mid + offset(n.rng, n.cfg.PriceVolatility)
		if price < 1 {
			price = 1
		}
		qty := n.sizes.Sample(n.rng)
		n.seq++
		id := OrderID(n.id, n.seq)
		n.live.add(id, qty)
		intents = append(intents, Intent{Kind: book.Limit, Side: side, Price: price, Quantity: qty, OrderID: id})
	}

	for i, k := 0, n.cancels.Count(n.rng); i < k; i++ {
		if n.live.len() == 0 {
			break
		}
		if n.rng.Float64() >= n.cfg.CancelProbability {
			continue
		}
		id, _ := n.live.oldest()
		n.live.drop(id)
		intents = append(intents, Intent{Kind: book.Cancel, OrderID: id})
	}
	return intents
}

func (n *NoiseTrader) OnExecution(e Execution) {
	switch e.Kind {
	case Fill:
		n.live.fill(e.OrderID, e.Quantity)
	case Reject:
		n.live.drop(e.OrderID)
	}
}

// LiveOrders lists the trader's tracked resting orders, oldest first.
func (n *NoiseTrader) LiveOrders() []uint64 { return n.live.live() }
