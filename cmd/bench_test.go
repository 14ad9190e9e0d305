package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lobsim/lobsim/sim/runner"
)

func benchScenario() runner.Scenario {
	sc := runner.DefaultScenario()
	sc.Steps = 500
	sc.Simulation.Seed = 11
	return sc
}

func TestRunBench_AggregatesIterations(t *testing.T) {
	// GIVEN three iterations run two at a time
	sc := benchScenario()

	// WHEN the benchmark runs
	br, err := runBench(sc, 3, 2)
	require.NoError(t, err)

	// THEN the event total equals the sequential runs with seeds 11, 12, 13
	var want int64
	for i := int64(0); i < 3; i++ {
		run := sc
		run.Simulation.Seed = sc.Simulation.Seed + i
		res, err := run.Run(nil)
		require.NoError(t, err)
		want += res.TotalEventsProcessed
	}
	assert.Equal(t, 3, br.Iterations)
	assert.Equal(t, want, br.TotalEvents)
	assert.LessOrEqual(t, br.MinTime, br.MeanTime)
	assert.LessOrEqual(t, br.MeanTime, br.MaxTime)
	assert.GreaterOrEqual(t, br.StdTime, 0.0)
	assert.Contains(t, br.String(), "Benchmark Results (3 iterations)")
}

func TestRunBench_RejectsNonPositiveIterations(t *testing.T) {
	_, err := runBench(benchScenario(), 0, 1)
	assert.Error(t, err)
}
