package runner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lobsim/lobsim/sim"
)

func quietEntry() *logrus.Entry {
	l, _ := test.NewNullLogger()
	return logrus.NewEntry(l)
}

func smallScenario(seed int64) Scenario {
	sc := DefaultScenario()
	sc.Steps = 2000
	sc.Simulation.Seed = seed
	return sc
}

// counterValue reads a counter or gauge from reg by name.
func counterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		m := f.GetMetric()[0]
		if c := m.GetCounter(); c != nil {
			return c.GetValue()
		}
		return m.GetGauge().GetValue()
	}
	t.Fatalf("metric %s not found", name)
	return 0
}

// === Scenario ===

func TestParseScenario_EmptyDocumentYieldsDefaults(t *testing.T) {
	sc, err := ParseScenario(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, DefaultScenario(), sc)
}

func TestParseScenario_PartialOverrideKeepsDefaults(t *testing.T) {
	// GIVEN a preset that only touches a few fields
	doc := `
steps: 5000
simulation:
  seed: 7
taker:
  intensity: 2.5
`
	// WHEN parsed
	sc, err := ParseScenario(strings.NewReader(doc))

	// THEN the named fields change and everything else keeps its default
	require.NoError(t, err)
	want := DefaultScenario()
	want.Steps = 5000
	want.Simulation.Seed = 7
	want.Taker.Intensity = 2.5
	assert.Equal(t, want, sc)
}

func TestParseScenario_AcceptsJSON(t *testing.T) {
	sc, err := ParseScenario(strings.NewReader(`{"steps": 10, "market_maker": {"spread": 4}}`))
	require.NoError(t, err)
	assert.Equal(t, int64(10), sc.Steps)
	assert.Equal(t, int64(4), sc.MarketMaker.Spread)
}

func TestParseScenario_UnknownFieldRejected(t *testing.T) {
	_, err := ParseScenario(strings.NewReader("taker:\n  intensty: 2\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "intensty")
}

func TestParseScenario_InvalidValues(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"negative steps", "steps: -1"},
		{"zero time step", "simulation:\n  time_step: 0"},
		{"bad side bias", "taker:\n  side_bias: 1.5"},
		{"zero spread", "market_maker:\n  spread: 0"},
		{"negative cancel intensity", "noise_trader:\n  cancel_intensity: -0.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario(strings.NewReader(tt.doc))
			assert.True(t, errors.Is(err, sim.ErrInvalidConfig), "got %v", err)
		})
	}
}

func TestLoadScenario_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "preset.yaml")
	require.NoError(t, os.WriteFile(path, []byte("steps: 42\n"), 0o644))

	sc, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, int64(42), sc.Steps)

	_, err = LoadScenario(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestScenario_RunMatchesKernel(t *testing.T) {
	sc := smallScenario(3)
	got, err := sc.Run(quietEntry())
	require.NoError(t, err)

	s, err := sim.NewSimulator(sc.Simulation, sim.WithLogger(quietEntry()))
	require.NoError(t, err)
	want, err := s.Run(sc.Steps, sc.MarketMaker, sc.Taker, sc.NoiseTrader)
	require.NoError(t, err)

	assert.Equal(t, want.Trades, got.Trades)
	assert.Equal(t, want.FinalAgents, got.FinalAgents)
}

// === Registry ===

func TestRegistry_SubmitCompletes(t *testing.T) {
	// GIVEN a registry with its own metrics registry
	reg := prometheus.NewRegistry()
	r := NewRegistry(WithRegisterer(reg), WithLogger(quietEntry()))

	// WHEN a scenario is submitted and finishes
	id, err := r.Submit(context.Background(), smallScenario(42))
	require.NoError(t, err)
	r.Wait()

	// THEN the status carries the result summary and captured kernel logs
	st, ok := r.Get(id)
	require.True(t, ok)
	assert.Equal(t, StateCompleted, st.State)
	assert.False(t, st.Running)
	assert.Empty(t, st.Error)
	require.NotNil(t, st.Result)
	require.NotNil(t, st.StartedAt)
	require.NotNil(t, st.FinishedAt)

	direct, err := smallScenario(42).Run(quietEntry())
	require.NoError(t, err)
	assert.Equal(t, direct.TotalTrades, st.Result.TotalTrades)
	assert.Equal(t, direct.TotalEventsProcessed, st.Result.TotalEventsProcessed)
	assert.Len(t, st.Result.Agents, 3)

	joined := strings.Join(st.Logs, "\n")
	assert.Contains(t, joined, "Simulation completed")

	res, ok := r.Result(id)
	require.True(t, ok)
	assert.Equal(t, direct.Trades, res.Trades)

	assert.Equal(t, 1.0, counterValue(t, reg, "lobsim_runs_submitted_total"))
	assert.Equal(t, 1.0, counterValue(t, reg, "lobsim_runs_completed_total"))
	assert.Equal(t, 0.0, counterValue(t, reg, "lobsim_runs_active"))
	assert.Equal(t, float64(direct.TotalEventsProcessed), counterValue(t, reg, "lobsim_events_processed_total"))
}

func TestRegistry_InvalidScenarioNotRegistered(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewRegistry(WithRegisterer(reg), WithLogger(quietEntry()))
	sc := smallScenario(1)
	sc.Taker.SideBias = 2

	_, err := r.Submit(context.Background(), sc)
	assert.ErrorIs(t, err, sim.ErrInvalidConfig)
	assert.Empty(t, r.List())
	assert.Equal(t, 0.0, counterValue(t, reg, "lobsim_runs_submitted_total"))
}

func TestRegistry_CancelledBeforeStart(t *testing.T) {
	// GIVEN every execution slot is taken
	reg := prometheus.NewRegistry()
	r := NewRegistry(WithRegisterer(reg), WithLogger(quietEntry()))
	r.slots <- struct{}{}

	// WHEN a run is submitted with a context that is already done
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	id, err := r.Submit(ctx, smallScenario(1))
	require.NoError(t, err)
	r.Wait()
	<-r.slots

	// THEN it fails without ever starting
	st, ok := r.Get(id)
	require.True(t, ok)
	assert.Equal(t, StateFailed, st.State)
	assert.Nil(t, st.StartedAt)
	assert.Contains(t, st.Error, "cancelled before start")
	_, ok = r.Result(id)
	assert.False(t, ok)
	assert.Equal(t, 1.0, counterValue(t, reg, "lobsim_runs_failed_total"))
}

func TestRegistry_ConcurrentRunsKeepSubmissionOrder(t *testing.T) {
	r := NewRegistry(WithConcurrency(3), WithLogger(quietEntry()))
	var ids []string
	for seed := int64(1); seed <= 6; seed++ {
		id, err := r.Submit(context.Background(), smallScenario(seed))
		require.NoError(t, err)
		ids = append(ids, id)
	}
	r.Wait()

	list := r.List()
	require.Len(t, list, 6)
	for i, st := range list {
		assert.Equal(t, ids[i], st.ID)
		assert.Equal(t, StateCompleted, st.State)
		assert.Equal(t, int64(i+1), st.Result.Seed)
	}
	assert.Equal(t, map[State]int{StateCompleted: 6}, r.Counts())
}

func TestRegistry_UnknownID(t *testing.T) {
	r := NewRegistry(WithLogger(quietEntry()))
	_, ok := r.Get("nope")
	assert.False(t, ok)
	_, ok = r.Result("nope")
	assert.False(t, ok)
}

func TestStatus_JSONShape(t *testing.T) {
	r := NewRegistry(WithLogger(quietEntry()))
	id, err := r.Submit(context.Background(), smallScenario(5))
	require.NoError(t, err)
	r.Wait()
	st, _ := r.Get(id)

	data, err := json.Marshal(st)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, "completed", decoded["state"])
	assert.Equal(t, false, decoded["running"])
	assert.Contains(t, decoded, "result")
	assert.Contains(t, decoded, "logs")
	scenario := decoded["scenario"].(map[string]any)
	assert.Contains(t, scenario["taker"], "side_bias")
}

// === Log capture ===

func TestLogCapture_KeepsMostRecentLines(t *testing.T) {
	c := &logCapture{}
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	logger.AddHook(c)

	for i := 0; i < maxLogLines+10; i++ {
		logger.Infof("line %d", i)
	}

	lines, dropped := c.snapshot()
	require.Len(t, lines, maxLogLines)
	assert.Equal(t, 10, dropped)
	assert.True(t, strings.HasSuffix(lines[0], "line 10"), lines[0])
	assert.True(t, strings.HasSuffix(lines[len(lines)-1], fmt.Sprintf("line %d", maxLogLines+9)))
}
