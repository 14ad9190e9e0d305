// Package runner executes simulation scenarios in the background and tracks
// their status, captured logs, and results for the HTTP status service.
//
// Each run gets its own goroutine and its own Simulator; runs share nothing.
// A Registry bounds how many runs execute at once. The context passed to
// Submit only decides whether a queued run starts; a run that has started
// always finishes.
package runner

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/lobsim/lobsim/sim"
	"github.com/lobsim/lobsim/sim/analysis"
)

// State is the lifecycle position of a submitted run.
type State string

const (
	StateQueued    State = "queued"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// Status is the externally visible view of one run.
type Status struct {
	ID          string     `json:"id"`
	State       State      `json:"state"`
	Running     bool       `json:"running"`
	SubmittedAt time.Time  `json:"submitted_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
	Scenario    Scenario   `json:"scenario"`
	Result      *Summary   `json:"result,omitempty"`
	Error       string     `json:"error,omitempty"`
	Logs        []string   `json:"logs"`
	LogsDropped int        `json:"logs_dropped,omitempty"`
}

// Summary is the compact result of a completed run.
type Summary struct {
	Seed                  int64          `json:"seed"`
	Steps                 int64          `json:"steps"`
	TotalEventsProcessed  int64          `json:"total_events_processed"`
	TotalTrades           int64          `json:"total_trades"`
	TotalVolume           int64          `json:"total_volume"`
	RejectedOrders        int64          `json:"rejected_orders"`
	CancelledOrders       int64          `json:"cancelled_orders"`
	SimulationDuration    int64          `json:"simulation_duration_ns"`
	SimulationTimeSeconds float64        `json:"simulation_time_seconds"`
	EventsPerSecond       float64        `json:"events_per_second"`
	VWAP                  float64        `json:"vwap"`
	TWAP                  float64        `json:"twap"`
	Agents                []AgentSummary `json:"agents"`
}

// AgentSummary is an agent's closing state.
type AgentSummary struct {
	ID        uint64  `json:"id"`
	Name      string  `json:"name"`
	PnL       float64 `json:"pnl"`
	Inventory int64   `json:"inventory"`
}

// Summarize builds the compact Summary of res.
func Summarize(res *sim.RunResult) *Summary {
	s := &Summary{
		Seed:                  res.Seed,
		Steps:                 res.Steps,
		TotalEventsProcessed:  res.TotalEventsProcessed,
		TotalTrades:           res.TotalTrades,
		TotalVolume:           res.TotalVolume,
		RejectedOrders:        res.RejectedOrders,
		CancelledOrders:       res.CancelledOrders,
		SimulationDuration:    res.SimulationDuration,
		SimulationTimeSeconds: res.SimulationTimeSeconds,
		EventsPerSecond:       res.EventsPerSecond(),
		VWAP:                  analysis.VWAP(res.Trades),
		TWAP:                  analysis.TWAP(res.MarketSnapshots),
	}
	for _, a := range res.FinalAgents {
		s.Agents = append(s.Agents, AgentSummary{ID: a.ID, Name: res.AgentNames[a.ID], PnL: a.PnL, Inventory: a.Inventory})
	}
	return s
}

type run struct {
	id        string
	scenario  Scenario
	state     State
	submitted time.Time
	started   time.Time
	finished  time.Time
	result    *sim.RunResult
	err       error
	logs      *logCapture
}

// Option configures a Registry.
type Option func(*Registry)

// WithConcurrency caps the number of runs executing at once (default 1).
func WithConcurrency(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.slots = make(chan struct{}, n)
		}
	}
}

// WithRegisterer registers the runner metrics with reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(r *Registry) { r.registerer = reg }
}

// WithLogger sets the logger for registry-level messages.
func WithLogger(l *logrus.Entry) Option {
	return func(r *Registry) {
		if l != nil {
			r.log = l
		}
	}
}

// WithRunLogLevel sets the level of the per-run captured logs (default Info).
func WithRunLogLevel(level logrus.Level) Option {
	return func(r *Registry) { r.runLevel = level }
}

// Registry owns all submitted runs.
type Registry struct {
	mu    sync.RWMutex
	runs  map[string]*run
	order []string

	slots      chan struct{}
	registerer prometheus.Registerer
	metrics    *Metrics
	log        *logrus.Entry
	runLevel   logrus.Level
	wg         sync.WaitGroup
}

// NewRegistry returns an empty Registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		runs:     make(map[string]*run),
		slots:    make(chan struct{}, 1),
		log:      logrus.NewEntry(logrus.StandardLogger()),
		runLevel: logrus.InfoLevel,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.metrics = NewMetrics(r.registerer)
	return r
}

// Metrics exposes the registry's collectors.
func (r *Registry) Metrics() *Metrics { return r.metrics }

// Submit validates sc and queues it. The returned id identifies the run. If
// ctx is done before a slot frees up, the run fails without starting.
func (r *Registry) Submit(ctx context.Context, sc Scenario) (string, error) {
	if err := sc.Validate(); err != nil {
		return "", err
	}
	rn := &run{
		id:        uuid.New().String(),
		scenario:  sc,
		state:     StateQueued,
		submitted: time.Now().UTC(),
		logs:      &logCapture{},
	}

	r.mu.Lock()
	r.runs[rn.id] = rn
	r.order = append(r.order, rn.id)
	r.mu.Unlock()

	r.metrics.RunsSubmitted.Inc()
	r.log.WithField("run_id", rn.id).Infof("run queued: %d steps, seed %d", sc.Steps, sc.Simulation.Seed)

	r.wg.Add(1)
	go r.execute(ctx, rn)
	return rn.id, nil
}

func (r *Registry) execute(ctx context.Context, rn *run) {
	defer r.wg.Done()
	log := r.log.WithField("run_id", rn.id)

	select {
	case r.slots <- struct{}{}:
	case <-ctx.Done():
		r.finish(rn, nil, fmt.Errorf("cancelled before start: %w", ctx.Err()))
		log.Warnf("run %s", StateFailed)
		return
	}
	defer func() { <-r.slots }()

	r.mu.Lock()
	rn.state = StateRunning
	rn.started = time.Now().UTC()
	r.mu.Unlock()
	r.metrics.RunsActive.Inc()
	defer r.metrics.RunsActive.Dec()

	runLogger := logrus.New()
	runLogger.SetOutput(io.Discard)
	runLogger.SetLevel(r.runLevel)
	runLogger.AddHook(rn.logs)

	res, err := rn.scenario.Run(logrus.NewEntry(runLogger).WithField("run_id", rn.id))
	r.finish(rn, res, err)
	if err != nil {
		log.Errorf("run %s: %v", StateFailed, err)
		return
	}
	log.Infof("run %s: %d trades in %.3fs", StateCompleted, res.TotalTrades, res.SimulationTimeSeconds)
}

func (r *Registry) finish(rn *run, res *sim.RunResult, err error) {
	r.mu.Lock()
	rn.finished = time.Now().UTC()
	if err != nil {
		rn.state = StateFailed
		rn.err = err
	} else {
		rn.state = StateCompleted
		rn.result = res
	}
	r.mu.Unlock()

	if err != nil {
		r.metrics.RunsFailed.Inc()
		return
	}
	r.metrics.RunsCompleted.Inc()
	r.metrics.EventsProcessed.Add(float64(res.TotalEventsProcessed))
	r.metrics.TradesTotal.Add(float64(res.TotalTrades))
	r.metrics.VolumeTotal.Add(float64(res.TotalVolume))
	r.metrics.RunWallSeconds.Observe(res.SimulationTimeSeconds)
}

// Get returns the status of run id.
func (r *Registry) Get(id string) (Status, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rn, ok := r.runs[id]
	if !ok {
		return Status{}, false
	}
	return rn.status(), true
}

// List returns all runs in submission order.
func (r *Registry) List() []Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Status, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.runs[id].status())
	}
	return out
}

// Result returns the full result of a completed run.
func (r *Registry) Result(id string) (*sim.RunResult, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rn, ok := r.runs[id]
	if !ok || rn.result == nil {
		return nil, false
	}
	return rn.result, true
}

// Wait blocks until every submitted run has finished.
func (r *Registry) Wait() { r.wg.Wait() }

// Counts returns the number of runs per state.
func (r *Registry) Counts() map[State]int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	counts := make(map[State]int, 4)
	for _, rn := range r.runs {
		counts[rn.state]++
	}
	return counts
}

// status must be called with r.mu held.
func (rn *run) status() Status {
	logs, dropped := rn.logs.snapshot()
	st := Status{
		ID:          rn.id,
		State:       rn.state,
		Running:     rn.state == StateRunning,
		SubmittedAt: rn.submitted,
		Scenario:    rn.scenario,
		Logs:        logs,
		LogsDropped: dropped,
	}
	if !rn.started.IsZero() {
		t := rn.started
		st.StartedAt = &t
	}
	if !rn.finished.IsZero() {
		t := rn.finished
		st.FinishedAt = &t
	}
	if rn.err != nil {
		st.Error = rn.err.Error()
	}
	if rn.result != nil {
		st.Result = Summarize(rn.result)
	}
	return st
}

