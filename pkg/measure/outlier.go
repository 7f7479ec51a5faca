package measure

import "slices"

// Outlier band around the median of net energies.
const (
	bandLow  = 0.75
	bandHigh = 1.25
)

// OutlierMask marks the rounds whose net energy lies strictly inside
// (0.75*median, 1.25*median). kept is the number of true entries.
func OutlierMask(net []float64) (keep []bool, kept int) {
	keep = make([]bool, len(net))
	if len(net) == 0 {
		return keep, 0
	}
	m := Median(net)
	lo, hi := bandLow*m, bandHigh*m
	for i, v := range net {
		if v > lo && v < hi {
			keep[i] = true
			kept++
		}
	}
	return keep, kept
}

// FilterOutliers drops whole rounds outside the median band. When the band
// would reject every round (a non-positive median leaves it empty), the
// series is returned unchanged with ok false.
func FilterOutliers(s Series, net []float64) (out Series, dropped int, ok bool) {
	keep, kept := OutlierMask(net)
	if kept == 0 {
		return s, 0, false
	}
	return s.Filter(keep), len(s) - kept, true
}

// Median returns the middle value of xs, averaging the two central values
// for even lengths. xs is not modified.
func Median(xs []float64) float64 {
	n := len(xs)
	if n == 0 {
		return 0
	}
	s := slices.Clone(xs)
	slices.Sort(s)
	if n%2 == 1 {
		return s[n/2]
	}
	return (s[n/2-1] + s[n/2]) / 2
}
