package sim

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/lobsim/lobsim/sim/agent"
	"github.com/lobsim/lobsim/sim/book"
	"github.com/lobsim/lobsim/sim/trace"
)

var (
	// ErrInvalidConfig fails a whole run before step 0.
	ErrInvalidConfig = errors.New("invalid config")

	// ErrInvariantViolation aborts a run whose state can no longer be trusted.
	ErrInvariantViolation = book.ErrInvariantViolation
)

// RunState is the lifecycle of one run. There is no pause or resume.
type RunState int

const (
	RunCreated RunState = iota
	RunRunning
	RunCompleted
	RunFailed
)

func (s RunState) String() string {
	switch s {
	case RunCreated:
		return "created"
	case RunRunning:
		return "running"
	case RunCompleted:
		return "completed"
	case RunFailed:
		return "failed"
	default:
		return fmt.Sprintf("RunState(%d)", int(s))
	}
}

// Option configures a Simulator.
type Option func(*Simulator)

// WithLogger routes kernel logging through l instead of the standard logger.
func WithLogger(l *logrus.Entry) Option {
	return func(s *Simulator) {
		if l != nil {
			s.log = l
		}
	}
}

// Simulator runs independent, reproducible simulations. It holds only
// immutable configuration, so Run may be called from many goroutines at once.
type Simulator struct {
	cfg SimulationConfig
	log *logrus.Entry
}

// NewSimulator validates cfg and returns a Simulator.
func NewSimulator(cfg SimulationConfig, opts ...Option) (*Simulator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Simulator{cfg: cfg, log: logrus.NewEntry(logrus.StandardLogger())}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Config returns a copy of the simulation config.
func (s *Simulator) Config() SimulationConfig { return s.cfg }

// Run executes min(nSteps, MaxSteps) steps with a fresh book, fresh agents and
// fresh RNG streams. Configs are copied; nothing outlives the call except the
// returned result. On error no result is returned.
func (s *Simulator) Run(nSteps int64, maker agent.MarketMakerConfig, taker agent.TakerConfig, noise agent.NoiseTraderConfig) (*RunResult, error) {
	if nSteps < 0 {
		return nil, fmt.Errorf("%w: n_steps must be non-negative, got %d", ErrInvalidConfig, nSteps)
	}
	if err := maker.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := taker.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := noise.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	steps := min(nSteps, s.cfg.MaxSteps)
	end, err := s.cfg.endClock(steps)
	if err != nil {
		return nil, err
	}

	rc := newRunContext(s.cfg, s.log.WithField("seed", s.cfg.Seed), steps, maker, taker, noise)
	rc.state = RunRunning
	rc.log.Infof("Simulation %s: %d steps of %d ns", rc.state, steps, s.cfg.TimeStep)

	wallStart := time.Now()
	for i := int64(0); i < steps; i++ {
		if err := rc.step(i); err != nil {
			rc.state = RunFailed
			rc.log.Errorf("[step %07d] Simulation %s: %v", i, rc.state, err)
			return nil, err
		}
	}
	wall := time.Since(wallStart).Seconds()

	rc.state = RunCompleted
	res := rc.agg.finalize(rc, steps, end-s.cfg.StartTime, wall)
	rc.log.Infof("Simulation %s: %d events, %d trades, %d rejected in %.3fs",
		rc.state, res.TotalEventsProcessed, res.TotalTrades, res.RejectedOrders, wall)
	return res, nil
}

// runContext is all mutable state of one run.
type runContext struct {
	cfg SimulationConfig
	log *logrus.Entry

	book      *book.Book
	rng       *PartitionedRNG
	refStream *Stream
	reference int64

	agents []agent.Agent
	states []agent.AgentState // aligned with agents
	index  map[uint64]int     // agent id -> position in agents
	dirty  []bool

	agg   *aggregator
	trace *trace.OrderTrace
	state RunState

	pending []pendingIntent
}

type pendingIntent struct {
	owner  int
	intent agent.Intent
}

func newRunContext(cfg SimulationConfig, log *logrus.Entry, steps int64, maker agent.MarketMakerConfig, taker agent.TakerConfig, noise agent.NoiseTraderConfig) *runContext {
	rng := NewPartitionedRNG(NewSimulationKey(cfg.Seed))
	agents := []agent.Agent{
		agent.NewMarketMaker(agent.MarketMakerID, maker),
		agent.NewTaker(agent.TakerID, taker, rng.ForSubsystem(SubsystemTaker).Rand),
		agent.NewNoiseTrader(agent.NoiseTraderID, noise, rng.ForSubsystem(SubsystemNoiseTrader).Rand),
	}
	rc := &runContext{
		cfg:       cfg,
		log:       log,
		book:      book.New(),
		rng:       rng,
		refStream: rng.ForSubsystem(SubsystemBook),
		reference: cfg.InitialPrice,
		agents:    agents,
		states:    make([]agent.AgentState, len(agents)),
		index:     make(map[uint64]int, len(agents)),
		dirty:     make([]bool, len(agents)),
		agg:       newAggregator(steps, cfg.SnapshotInterval),
		state:     RunCreated,
	}
	for i, a := range agents {
		rc.states[i].ID = a.ID()
		rc.index[a.ID()] = i
	}
	if cfg.TraceLevel.Enabled() {
		rc.trace = trace.NewOrderTrace(trace.TraceConfig{Level: cfg.TraceLevel, MaxRecords: cfg.TraceMaxRecords})
	}
	return rc
}

// step runs one simulated step: move the reference price, collect intents
// from every agent against the same snapshot, submit them in agent order,
// then record P&L rows and, on cadence, a snapshot.
func (rc *runContext) step(i int64) error {
	now := rc.cfg.StartTime + i*rc.cfg.TimeStep
	rc.advanceReference()

	snap := rc.book.Snapshot(now)
	rc.pending = rc.pending[:0]
	for idx, a := range rc.agents {
		view := agent.MarketView{Snapshot: snap, Reference: rc.reference, Self: rc.states[idx]}
		for _, in := range a.Update(now, view) {
			rc.pending = append(rc.pending, pendingIntent{owner: idx, intent: in})
		}
	}

	tradesBefore := len(rc.agg.trades)
	for _, p := range rc.pending {
		if err := rc.submit(i, now, p.owner, p.intent); err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}
	}
	rc.agg.events += int64(len(rc.pending))
	traded := len(rc.agg.trades) - tradesBefore
	if traded > 0 {
		rc.reference = rc.book.LastTradePrice()
	}

	for idx, d := range rc.dirty {
		if d {
			rc.agg.addPnL(now, rc.states[idx])
			rc.dirty[idx] = false
		}
	}
	if i%rc.cfg.SnapshotInterval == 0 {
		rc.agg.addSnapshot(rc.book.Snapshot(now))
	}

	if rc.log.Logger.IsLevelEnabled(logrus.TraceLevel) {
		s := rc.book.Snapshot(now)
		rc.log.Tracef("[step %07d] intents=%d trades=%d bid=%d ask=%d ref=%d",
			i, len(rc.pending), traded, s.BestBid, s.BestAsk, rc.reference)
	}
	return nil
}

// advanceReference applies the book-noise random walk to the reference price.
func (rc *runContext) advanceReference() {
	if rc.cfg.ReferenceVolatility <= 0 {
		return
	}
	move := int64(math.Round(rc.refStream.NormFloat64() * rc.cfg.ReferenceVolatility))
	rc.reference = min(max(rc.reference+move, 1), book.MaxTicks)
}

func (rc *runContext) submit(step, now int64, owner int, in agent.Intent) error {
	a := rc.agents[owner]
	if agent.OwnerOf(in.OrderID) != a.ID() {
		rc.reject(step, now, owner, in, fmt.Errorf("%w: order %d is not owned by agent %d", book.ErrInvalidOrder, in.OrderID, a.ID()))
		return nil
	}

	if in.Kind == book.Cancel {
		found := rc.book.Cancel(in.OrderID)
		if found {
			rc.agg.cancelled++
		}
		if rc.trace != nil {
			rc.trace.RecordCancel(trace.CancelRecord{Step: step, Clock: now, AgentID: a.ID(), OrderID: in.OrderID, Found: found})
		}
		return nil
	}

	o := book.Order{
		ID:        in.OrderID,
		Side:      in.Side,
		Kind:      in.Kind,
		Price:     in.Price,
		Quantity:  in.Quantity,
		Timestamp: now,
		OwnerID:   a.ID(),
	}
	var trades []book.Trade
	var err error
	switch in.Kind {
	case book.Limit:
		trades, err = rc.book.SubmitLimit(o)
	case book.Market:
		trades, err = rc.book.SubmitMarket(o)
	default:
		err = fmt.Errorf("%w: order %d: unknown kind %s", book.ErrInvalidOrder, in.OrderID, in.Kind)
	}
	if errors.Is(err, book.ErrInvariantViolation) {
		return err
	}
	if err != nil {
		rc.reject(step, now, owner, in, err)
		return nil
	}

	var filled int64
	for _, t := range trades {
		if err := rc.applyTrade(t); err != nil {
			return err
		}
		filled += t.Quantity
	}
	if rc.trace != nil {
		rc.trace.RecordOrder(trace.OrderRecord{
			Step: step, Clock: now, AgentID: a.ID(), OrderID: in.OrderID,
			Kind: in.Kind.String(), Side: in.Side.String(), Price: o.Price, Quantity: in.Quantity,
			Filled: filled, Trades: len(trades),
		})
	}
	return nil
}

func (rc *runContext) reject(step, now int64, owner int, in agent.Intent, err error) {
	a := rc.agents[owner]
	rc.agg.rejected++
	rc.log.Debugf("[step %07d] %s order %d rejected: %v", step, a.Name(), in.OrderID, err)
	a.OnExecution(agent.Execution{OrderID: in.OrderID, Kind: agent.Reject, Quantity: in.Quantity, Price: in.Price})
	if rc.trace != nil {
		rc.trace.RecordOrder(trace.OrderRecord{
			Step: step, Clock: now, AgentID: a.ID(), OrderID: in.OrderID,
			Kind: in.Kind.String(), Side: in.Side.String(), Price: in.Price, Quantity: in.Quantity,
			Rejected: true, Reason: err.Error(),
		})
	}
}

// applyTrade books one match on both counterparties and tells both owners.
func (rc *runContext) applyTrade(t book.Trade) error {
	mi, ok := rc.index[t.MakerID]
	if !ok {
		return fmt.Errorf("%w: trade maker %d is not a known agent", ErrInvariantViolation, t.MakerID)
	}
	ti, ok := rc.index[t.TakerID]
	if !ok {
		return fmt.Errorf("%w: trade taker %d is not a known agent", ErrInvariantViolation, t.TakerID)
	}
	rc.states[mi].Apply(t.MakerSide(), t.Price, t.Quantity)
	rc.states[ti].Apply(t.TakerSide, t.Price, t.Quantity)
	rc.dirty[mi] = true
	rc.dirty[ti] = true
	rc.agg.addTrade(t)

	rc.agents[mi].OnExecution(agent.Execution{OrderID: t.MakerOrderID, Kind: agent.Fill, Quantity: t.Quantity, Price: t.Price})
	rc.agents[ti].OnExecution(agent.Execution{OrderID: t.TakerOrderID, Kind: agent.Fill, Quantity: t.Quantity, Price: t.Price})
	return nil
}
