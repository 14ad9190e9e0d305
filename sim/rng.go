package sim

import (
	"hash/fnv"
	"math/rand"
)

// === SimulationKey ===

// SimulationKey uniquely identifies a reproducible simulation run.
// Two simulations with the same SimulationKey and identical configuration
// MUST produce bit-for-bit identical results.
type SimulationKey int64

// NewSimulationKey creates a SimulationKey from a seed value.
func NewSimulationKey(seed int64) SimulationKey {
	return SimulationKey(seed)
}

// === Subsystem Constants ===

const (
	// SubsystemTaker drives taker arrivals, sides and sizes.
	SubsystemTaker = "taker"

	// SubsystemNoiseTrader drives noise-trader arrivals, prices, sizes and cancels.
	SubsystemNoiseTrader = "noise_trader"

	// SubsystemBook drives the reference-price walk.
	SubsystemBook = "book"
)

// === Stream ===

// countingSource wraps a Source64 and counts how many values were drawn.
type countingSource struct {
	src  rand.Source64
	seed int64
	n    uint64
}

func newCountingSource(seed int64) *countingSource {
	return &countingSource{src: rand.NewSource(seed).(rand.Source64), seed: seed}
}

func (s *countingSource) Int63() int64 {
	s.n++
	return s.src.Int63()
}

func (s *countingSource) Uint64() uint64 {
	s.n++
	return s.src.Uint64()
}

func (s *countingSource) Seed(seed int64) {
	s.src.Seed(seed)
	s.seed = seed
	s.n = 0
}

// Stream is a seekable random sequence. It embeds *rand.Rand so callers use
// the familiar API; every source draw advances Position by one.
type Stream struct {
	*rand.Rand
	name string
	src  *countingSource
}

func newStream(name string, seed int64) *Stream {
	src := newCountingSource(seed)
	return &Stream{Rand: rand.New(src), name: name, src: src}
}

// Name returns the subsystem the stream was derived for.
func (s *Stream) Name() string { return s.name }

// DerivedSeed returns the seed the stream was started from.
func (s *Stream) DerivedSeed() int64 { return s.src.seed }

// Position is the number of source values consumed so far.
func (s *Stream) Position() uint64 { return s.src.n }

// Seek repositions the stream so that the next draw is the one that was made
// at position pos. Seeking backwards reseeds and replays.
func (s *Stream) Seek(pos uint64) {
	if pos < s.src.n {
		s.Rand.Seed(s.src.seed)
	}
	for s.src.n < pos {
		s.src.Uint64()
	}
}

// === PartitionedRNG ===

// PartitionedRNG provides deterministic, isolated streams per subsystem.
//
// Derivation formula: masterSeed XOR fnv1a64(subsystemName). Drawing from one
// subsystem never perturbs another, so adding or removing an agent leaves the
// other agents' sequences untouched.
//
// Thread-safety: NOT thread-safe. Each run owns its own PartitionedRNG.
type PartitionedRNG struct {
	key        SimulationKey
	subsystems map[string]*Stream
}

// NewPartitionedRNG creates a PartitionedRNG from a SimulationKey.
func NewPartitionedRNG(key SimulationKey) *PartitionedRNG {
	return &PartitionedRNG{
		key:        key,
		subsystems: make(map[string]*Stream),
	}
}

// ForSubsystem returns a deterministically-seeded stream for the named subsystem.
// The same subsystem name always returns the same *Stream instance (cached).
// Never returns nil.
func (p *PartitionedRNG) ForSubsystem(name string) *Stream {
	if s, ok := p.subsystems[name]; ok {
		return s
	}
	s := newStream(name, int64(p.key)^fnv1a64(name))
	p.subsystems[name] = s
	return s
}

// Key returns the SimulationKey used to create this PartitionedRNG.
func (p *PartitionedRNG) Key() SimulationKey {
	return p.key
}

// Positions reports how far each derived stream has advanced.
func (p *PartitionedRNG) Positions() map[string]uint64 {
	out := make(map[string]uint64, len(p.subsystems))
	for name, s := range p.subsystems {
		out[name] = s.Position()
	}
	return out
}

// fnv1a64 computes a 64-bit FNV-1a hash of the input string.
func fnv1a64(s string) int64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return int64(h.Sum64())
}
