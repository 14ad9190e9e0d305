package cmd

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lobsim/lobsim/sim/runner"
	"github.com/lobsim/lobsim/sim/trace"
)

func newFlagCommand(o *scenarioFlags) *cobra.Command {
	c := &cobra.Command{Use: "test"}
	o.register(c)
	return c
}

func TestScenarioFlags_DefaultsWhenNothingSet(t *testing.T) {
	var o scenarioFlags
	c := newFlagCommand(&o)

	sc, err := o.resolve(c)

	require.NoError(t, err)
	assert.Equal(t, runner.DefaultScenario(), sc)
}

func TestScenarioFlags_OnlyChangedFlagsOverridePreset(t *testing.T) {
	// GIVEN a preset that sets steps and the taker intensity
	presets := writeFile(t, "defaults.yaml", testPresets)
	var o scenarioFlags
	c := newFlagCommand(&o)
	require.NoError(t, c.Flags().Set("presets-filepath", presets))
	require.NoError(t, c.Flags().Set("preset", "fast"))

	// WHEN the user overrides the seed, the trace level and a noise knob
	require.NoError(t, c.Flags().Set("seed", "99"))
	require.NoError(t, c.Flags().Set("trace", "orders"))
	require.NoError(t, c.Flags().Set("noise-cancel-probability", "0.25"))

	sc, err := o.resolve(c)
	require.NoError(t, err)

	// THEN preset values survive and the overrides win
	assert.Equal(t, int64(123), sc.Steps)
	assert.Equal(t, 3.0, sc.Taker.Intensity)
	assert.Equal(t, int64(99), sc.Simulation.Seed)
	assert.Equal(t, trace.TraceLevel("orders"), sc.Simulation.TraceLevel)
	assert.Equal(t, 0.25, sc.NoiseTrader.CancelProbability)
}

func TestScenarioFlags_EveryOverrideHasAFlag(t *testing.T) {
	var o scenarioFlags
	c := newFlagCommand(&o)
	for name := range o.overrides() {
		assert.NotNil(t, c.Flags().Lookup(name), name)
	}
}

func TestScenarioFlags_InvalidOverrideRejected(t *testing.T) {
	tests := []struct {
		flag, value string
	}{
		{"time-step", "0"},
		{"taker-side-bias", "1.5"},
		{"trace", "everything"},
		{"steps", "-1"},
	}
	for _, tt := range tests {
		t.Run(tt.flag, func(t *testing.T) {
			var o scenarioFlags
			c := newFlagCommand(&o)
			require.NoError(t, c.Flags().Set(tt.flag, tt.value))

			_, err := o.resolve(c)
			assert.Error(t, err)
		})
	}
}

func TestScenarioFlags_MissingPresetFails(t *testing.T) {
	var o scenarioFlags
	c := newFlagCommand(&o)
	require.NoError(t, c.Flags().Set("presets-filepath", writeFile(t, "defaults.yaml", testPresets)))
	require.NoError(t, c.Flags().Set("preset", "nope"))

	_, err := o.resolve(c)
	assert.Error(t, err)
}
