package types

import (
	"fmt"
	"math"
)

// Joules is a float64 wrapper representing an amount of energy.
type Joules float64

// Watts is a float64 wrapper representing instantaneous power.
type Watts float64

// FromMicrojoules converts a raw counter value in µJ (the unit used by
// powercap energy_uj files) to Joules.
func FromMicrojoules(uj float64) Joules { return Joules(uj / 1e6) }

// Humanized returns a human-readable string with automatic unit (µJ, mJ, J, kJ, MJ).
func (j Joules) Humanized() string {
	v := float64(j)
	a := math.Abs(v)
	switch {
	case a >= 1e6:
		return fmt.Sprintf("%.3f MJ", v/1e6)
	case a >= 1e3:
		return fmt.Sprintf("%.3f kJ", v/1e3)
	case a >= 1 || a == 0:
		return fmt.Sprintf("%.3f J", v)
	case a >= 1e-3:
		return fmt.Sprintf("%.3f mJ", v*1e3)
	default:
		return fmt.Sprintf("%.3f µJ", v*1e6)
	}
}

// Microjoules returns the energy in µJ.
func (j Joules) Microjoules() float64 { return float64(j) * 1e6 }

// WattHours returns the energy in Wh.
func (j Joules) WattHours() float64 { return float64(j) / 3600 }

// Over returns the energy drawn at power w for d seconds.
func (w Watts) Over(seconds float64) Joules { return Joules(float64(w) * seconds) }

// Humanized returns a human-readable string with automatic unit (mW, W, kW).
func (w Watts) Humanized() string {
	v := float64(w)
	a := math.Abs(v)
	switch {
	case a >= 1e3:
		return fmt.Sprintf("%.3f kW", v/1e3)
	case a >= 1 || a == 0:
		return fmt.Sprintf("%.3f W", v)
	default:
		return fmt.Sprintf("%.3f mW", v*1e3)
	}
}
