package agent

import (
	"math"
	"math/rand"
)

// poissonNormalCutoff is the rate above which arrivals are drawn from the
// normal approximation instead of Knuth's product method.
const poissonNormalCutoff = 30.0

// ArrivalSampler draws the number of arrivals in one step from
// Poisson(intensity). Intensities above 1 routinely yield several arrivals.
type ArrivalSampler struct {
	intensity float64
	limit     float64 // exp(-intensity), cached for the product method
}

// NewArrivalSampler returns a sampler for Poisson(intensity) arrivals per step.
func NewArrivalSampler(intensity float64) ArrivalSampler {
	return ArrivalSampler{intensity: intensity, limit: math.Exp(-intensity)}
}

// Count returns a non-negative arrival count. A zero intensity consumes no
// random numbers.
func (s ArrivalSampler) Count(rng *rand.Rand) int {
	if s.intensity <= 0 {
		return 0
	}
	if s.intensity > poissonNormalCutoff {
		n := math.Round(s.intensity + math.Sqrt(s.intensity)*rng.NormFloat64())
		if n < 0 {
			return 0
		}
		return int(n)
	}
	k := 0
	p := rng.Float64()
	for p > s.limit {
		k++
		p *= rng.Float64()
	}
	return k
}

// QuantitySampler produces Gaussian order sizes rounded to whole units and
// truncated at 1.
type QuantitySampler struct {
	mean, stdDev float64
}

// NewQuantitySampler returns a sampler of sizes around mean with the given std dev.
func NewQuantitySampler(mean, stdDev float64) QuantitySampler {
	return QuantitySampler{mean: mean, stdDev: stdDev}
}

// Sample draws one order size of at least 1.
func (s QuantitySampler) Sample(rng *rand.Rand) int64 {
	val := math.Round(rng.NormFloat64()*s.stdDev + s.mean)
	if val < 1 {
		return 1
	}
	if val > float64(math.MaxInt32) {
		return math.MaxInt32
	}
	return int64(val)
}

// offset draws round(N(0, stdDev)) ticks.
func offset(rng *rand.Rand, stdDev float64) int64 {
	return roundToTicks(rng.NormFloat64() * stdDev)
}

func roundToTicks(v float64) int64 { return int64(math.Round(v)) }

// orderTracker remembers an agent's resting orders in submission order so
// the oldest can be found in amortized O(1). Removed ids are skipped lazily.
type orderTracker struct {
	queue     []uint64
	head      int
	remaining map[uint64]int64
}

func newOrderTracker() *orderTracker {
	return &orderTracker{remaining: make(map[uint64]int64)}
}

func (t *orderTracker) add(id uint64, qty int64) {
	if len(t.queue)-t.head > 2*len(t.remaining)+64 {
		t.compact()
	}
	t.queue = append(t.queue, id)
	t.remaining[id] = qty
}

// compact drops dead ids from the queue in place, keeping submission order.
func (t *orderTracker) compact() {
	kept := t.queue[:0]
	for _, id := range t.queue[t.head:] {
		if _, ok := t.remaining[id]; ok {
			kept = append(kept, id)
		}
	}
	t.queue = kept
	t.head = 0
}

// fill reduces the tracked quantity and forgets the order once it is done.
// Unknown ids (market orders, already cancelled orders) are ignored.
func (t *orderTracker) fill(id uint64, qty int64) {
	r, ok := t.remaining[id]
	if !ok {
		return
	}
	if r -= qty; r <= 0 {
		delete(t.remaining, id)
		return
	}
	t.remaining[id] = r
}

func (t *orderTracker) drop(id uint64) { delete(t.remaining, id) }

func (t *orderTracker) oldest() (uint64, bool) {
	for t.head < len(t.queue) {
		id := t.queue[t.head]
		if _, ok := t.remaining[id]; ok {
			return id, true
		}
		t.head++
	}
	return 0, false
}

// live lists tracked ids oldest first. The queue is compacted as a side
// effect, so callers that never use oldest still keep it bounded.
func (t *orderTracker) live() []uint64 {
	t.compact()
	return append([]uint64(nil), t.queue...)
}

func (t *orderTracker) len() int { return len(t.remaining) }
