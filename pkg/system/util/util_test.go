package util

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapCorrect(t *testing.T) {
	const maxRange = 262143.328850

	t.Run("no_wrap", func(t *testing.T) {
		assert.InDelta(t, 10.0, WrapCorrect(110-100, maxRange), 1e-12)
	})
	t.Run("zero_delta", func(t *testing.T) {
		assert.Equal(t, 0.0, WrapCorrect(0, maxRange))
	})
	t.Run("wrapped", func(t *testing.T) {
		start, end := 262140.0, 3.0
		got := WrapCorrect(end-start, maxRange)
		require.InDelta(t, end-start+maxRange, got, 1e-9)
		assert.GreaterOrEqual(t, got, 0.0)
	})
	t.Run("wrapped_always_non_negative", func(t *testing.T) {
		// for any start > end with maxRange >= start, the corrected value is >= 0
		for start := 1.0; start <= maxRange; start *= 3 {
			for _, end := range []float64{0, start / 2, start - 1e-6} {
				if end >= start {
					continue
				}
				got := WrapCorrect(end-start, maxRange)
				assert.InDelta(t, end-start+maxRange, got, 1e-6, "start=%f end=%f", start, end)
				assert.GreaterOrEqual(t, got, 0.0, "start=%f end=%f", start, end)
			}
		}
	})
}

func TestDeltaU64(t *testing.T) {
	assert.Equal(t, uint64(10), DeltaU64(110, 100))
	assert.Equal(t, uint64(0), DeltaU64(100, 100))
	assert.Equal(t, uint64(0), DeltaU64(99, 100))
}

func TestSafeDiv(t *testing.T) {
	require.InDelta(t, 2.5, SafeDiv(5, 2), 1e-12)
	require.InDelta(t, -2.5, SafeDiv(5, -2), 1e-12)
	assert.Equal(t, 0.0, SafeDiv(123, 0))
	assert.Equal(t, 0.0, SafeDiv(1, 1e-13))
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 0.0, Clamp01(-1))
	assert.Equal(t, 1.0, Clamp01(42))
	assert.Equal(t, 0.0, Clamp01(math.NaN()))
	assert.InDelta(t, 0.25, Clamp01(0.25), 0)

	assert.Equal(t, 0.0, NonNegative(-0.01))
	assert.Equal(t, 0.0, NonNegative(math.NaN()))
	assert.Equal(t, 3.5, NonNegative(3.5))
}

func TestRepetitions(t *testing.T) {
	t.Run("window_over_single_run", func(t *testing.T) {
		n, ok := Repetitions(2.5, 0.6)
		require.True(t, ok)
		assert.Equal(t, 5, n)
	})
	t.Run("exact_multiple", func(t *testing.T) {
		n, ok := Repetitions(2.0, 0.5)
		require.True(t, ok)
		assert.Equal(t, 4, n)
	})
	t.Run("single_run_longer_than_window", func(t *testing.T) {
		n, ok := Repetitions(2.5, 10)
		require.True(t, ok)
		assert.Equal(t, 1, n)
	})
	t.Run("zero_duration_guarded", func(t *testing.T) {
		n, ok := Repetitions(2.5, 0)
		assert.False(t, ok)
		assert.Equal(t, 1, n)
	})
	t.Run("disabled_window", func(t *testing.T) {
		n, ok := Repetitions(0, 0.3)
		assert.True(t, ok)
		assert.Equal(t, 1, n)
	})
}
