package sim

import (
	"fmt"
	"math"

	"github.com/lobsim/lobsim/sim/book"
	"github.com/lobsim/lobsim/sim/trace"
)

// SimulationConfig groups the run-wide kernel parameters.
type SimulationConfig struct {
	Seed                int64            `yaml:"seed" json:"seed"`
	StartTime           int64            `yaml:"start_time" json:"start_time"`                     // simulated ns of step 0
	TimeStep            int64            `yaml:"time_step" json:"time_step"`                       // simulated ns per step (> 0)
	MaxSteps            int64            `yaml:"max_steps" json:"max_steps"`                       // hard cap on steps per run (> 0)
	SnapshotInterval    int64            `yaml:"snapshot_interval" json:"snapshot_interval"`       // steps between recorded snapshots (> 0)
	InitialPrice        int64            `yaml:"initial_price" json:"initial_price"`               // starting reference price in ticks (> 0)
	ReferenceVolatility float64          `yaml:"reference_volatility" json:"reference_volatility"` // per-step std dev of the reference walk; 0 disables it
	TraceLevel          trace.TraceLevel `yaml:"trace_level" json:"trace_level"`
	TraceMaxRecords     int              `yaml:"trace_max_records" json:"trace_max_records"` // 0 = unbounded
}

// DefaultSimulationConfig returns the reference configuration.
func DefaultSimulationConfig() SimulationConfig {
	return SimulationConfig{
		Seed:             42,
		StartTime:        0,
		TimeStep:         1000,
		MaxSteps:         1_000_000,
		SnapshotInterval: 100,
		InitialPrice:     10_000,
		TraceLevel:       trace.TraceLevelNone,
	}
}

// Validate returns an error wrapping ErrInvalidConfig if the config is invalid.
func (c SimulationConfig) Validate() error {
	if c.TimeStep <= 0 {
		return fmt.Errorf("%w: time_step must be positive, got %d", ErrInvalidConfig, c.TimeStep)
	}
	if c.MaxSteps <= 0 {
		return fmt.Errorf("%w: max_steps must be positive, got %d", ErrInvalidConfig, c.MaxSteps)
	}
	if c.SnapshotInterval <= 0 {
		return fmt.Errorf("%w: snapshot_interval must be positive, got %d", ErrInvalidConfig, c.SnapshotInterval)
	}
	if c.InitialPrice <= 0 || c.InitialPrice > book.MaxTicks {
		return fmt.Errorf("%w: initial_price must be in [1, %d], got %d", ErrInvalidConfig, book.MaxTicks, c.InitialPrice)
	}
	if math.IsNaN(c.ReferenceVolatility) || math.IsInf(c.ReferenceVolatility, 0) || c.ReferenceVolatility < 0 {
		return fmt.Errorf("%w: reference_volatility must be a finite non-negative number, got %v", ErrInvalidConfig, c.ReferenceVolatility)
	}
	if !trace.IsValidTraceLevel(string(c.TraceLevel)) {
		return fmt.Errorf("%w: unknown trace_level %q; valid: none, orders", ErrInvalidConfig, c.TraceLevel)
	}
	if c.TraceMaxRecords < 0 {
		return fmt.Errorf("%w: trace_max_records must be non-negative, got %d", ErrInvalidConfig, c.TraceMaxRecords)
	}
	return nil
}

// endClock returns StartTime + steps*TimeStep, the clock after the last
// step, failing when it would leave the int64 range.
func (c SimulationConfig) endClock(steps int64) (int64, error) {
	if steps <= 0 {
		return c.StartTime, nil
	}
	if c.TimeStep > math.MaxInt64/steps || c.StartTime > math.MaxInt64-steps*c.TimeStep {
		return 0, fmt.Errorf("%w: clock overflows after %d steps of %d ns from %d", ErrInvariantViolation, steps, c.TimeStep, c.StartTime)
	}
	return c.StartTime + steps*c.TimeStep, nil
}
