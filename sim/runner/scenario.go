package runner

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/lobsim/lobsim/sim"
	"github.com/lobsim/lobsim/sim/agent"
)

// DefaultSteps is the run length used when a scenario does not set one.
const DefaultSteps int64 = 100_000

// Scenario is everything one Simulator.Run needs. It is the YAML preset
// format and the body of a run submission.
type Scenario struct {
	Steps       int64                   `yaml:"steps" json:"steps"`
	Simulation  sim.SimulationConfig    `yaml:"simulation" json:"simulation"`
	MarketMaker agent.MarketMakerConfig `yaml:"market_maker" json:"market_maker"`
	Taker       agent.TakerConfig       `yaml:"taker" json:"taker"`
	NoiseTrader agent.NoiseTraderConfig `yaml:"noise_trader" json:"noise_trader"`
}

// DefaultScenario returns the reference population on the default kernel config.
func DefaultScenario() Scenario {
	return Scenario{
		Steps:       DefaultSteps,
		Simulation:  sim.DefaultSimulationConfig(),
		MarketMaker: agent.DefaultMarketMakerConfig(),
		Taker:       agent.DefaultTakerConfig(),
		NoiseTrader: agent.DefaultNoiseTraderConfig(),
	}
}

// ParseScenario decodes a YAML (or JSON) scenario on top of DefaultScenario.
// Unknown fields are errors. An empty document yields the defaults.
func ParseScenario(r io.Reader) (Scenario, error) {
	sc := DefaultScenario()
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&sc); err != nil && !errors.Is(err, io.EOF) {
		return Scenario{}, fmt.Errorf("parsing scenario: %w", err)
	}
	if err := sc.Validate(); err != nil {
		return Scenario{}, err
	}
	return sc, nil
}

// LoadScenario reads and parses a scenario file.
func LoadScenario(path string) (Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Scenario{}, fmt.Errorf("reading scenario %s: %w", path, err)
	}
	sc, err := ParseScenario(bytes.NewReader(data))
	if err != nil {
		return Scenario{}, fmt.Errorf("%s: %w", path, err)
	}
	return sc, nil
}

// Validate checks the step count and every config.
func (s Scenario) Validate() error {
	if s.Steps < 0 {
		return fmt.Errorf("%w: steps must be >= 0, got %d", sim.ErrInvalidConfig, s.Steps)
	}
	if err := s.Simulation.Validate(); err != nil {
		return err
	}
	for _, v := range []interface{ Validate() error }{s.MarketMaker, s.Taker, s.NoiseTrader} {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("%w: %w", sim.ErrInvalidConfig, err)
		}
	}
	return nil
}

// Run executes the scenario synchronously. log may be nil.
func (s Scenario) Run(log *logrus.Entry) (*sim.RunResult, error) {
	var opts []sim.Option
	if log != nil {
		opts = append(opts, sim.WithLogger(log))
	}
	simulator, err := sim.NewSimulator(s.Simulation, opts...)
	if err != nil {
		return nil, err
	}
	return simulator.Run(s.Steps, s.MarketMaker, s.Taker, s.NoiseTrader)
}
