package util

import "math"

// WrapCorrect turns a raw counter delta (end - start) into a non-negative
// amount. A negative delta means the counter cycled past maxRange between
// the two reads; maxRange is added back exactly once.
func WrapCorrect(delta, maxRange float64) float64 {
	if delta < 0 {
		return delta + maxRange
	}
	return delta
}

// DeltaU64 is the unsigned counterpart of WrapCorrect for integer counters
// without a known range: a wrapped or unset counter yields 0.
func DeltaU64(now, prev uint64) uint64 {
	if now >= prev {
		return now - prev
	}
	// counter wrapped or prev unset
	return 0
}

func SafeDiv(n, d float64) float64 {
	const eps = 1e-12
	if d > eps || d < -eps {
		return n / d
	}
	return 0
}

func Clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	// guard against NaN
	if math.IsNaN(x) {
		return 0
	}
	return x
}

// NonNegative clamps x to [0, +Inf); NaN becomes 0.
func NonNegative(x float64) float64 {
	if x < 0 || math.IsNaN(x) {
		return 0
	}
	return x
}

// Repetitions returns ceil(window/single), at least 1. ok is false when
// single is too small to divide by, in which case 1 is returned.
func Repetitions(window, single float64) (n int, ok bool) {
	const eps = 1e-9
	if !(single > eps) {
		return 1, false
	}
	if window <= 0 {
		return 1, true
	}
	n = int(math.Ceil(window / single))
	if n < 1 {
		n = 1
	}
	return n, true
}
