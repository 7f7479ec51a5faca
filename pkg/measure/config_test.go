package measure

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_WithDefaults(t *testing.T) {
	c := Config{MaxMeasurements: 20, MinimumWindow: 0, Settle: -1}.withDefaults()
	assert.Equal(t, 0.99, c.ConfidenceLevel)
	assert.Equal(t, 60, c.MaxIterations, "three times the round cap")
	assert.Zero(t, c.MinimumWindow, "zero disables the window")
	assert.Equal(t, 500*time.Millisecond, c.Settle)
	assert.False(t, c.InitializationRound)
	require.NoError(t, c.Validate())

	require.NoError(t, DefaultConfig().Validate())
}

func TestConfig_SampleFailureRatio(t *testing.T) {
	strict := Config{MaxSampleFailureRatio: 0}.withDefaults()
	assert.Zero(t, strict.MaxSampleFailureRatio, "zero tolerates no failed sample")
	require.NoError(t, strict.Validate())

	unset := Config{MaxSampleFailureRatio: -1}.withDefaults()
	assert.Equal(t, 0.5, unset.MaxSampleFailureRatio)
}

func TestConfig_Validate(t *testing.T) {
	cases := map[string]func(*Config){
		"confidence":     func(c *Config) { c.ConfidenceLevel = 1 },
		"relative error": func(c *Config) { c.RelativeError = -0.1 },
		"rounds":         func(c *Config) { c.MaxMeasurements = 1 },
		"iterations":     func(c *Config) { c.MaxIterations = 10 },
		"interval":       func(c *Config) { c.SamplingInterval = 0 },
		"xi":             func(c *Config) { c.Xi = 0 },
		"failure ratio":  func(c *Config) { c.MaxSampleFailureRatio = 1 },
		"round failures": func(c *Config) { c.MaxRoundFailures = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := DefaultConfig()
			mutate(&c)
			assert.ErrorIs(t, c.Validate(), ErrInvalidConfig)
		})
	}
}
