package measure

import "github.com/ja7ad/joules/pkg/system/util"

// Series is the ordered sequence of accepted rounds. It only grows by
// append and only shrinks through Filter, which keeps relative order.
type Series []Round

// Net returns load minus idle for every round. With clamp set, negative
// values (idle estimate above load through sampling noise) become zero.
func (s Series) Net(clamp bool) []float64 {
	out := make([]float64, len(s))
	for i, r := range s {
		v := r.Net()
		if clamp {
			v = util.NonNegative(v)
		}
		out[i] = v
	}
	return out
}

// Filter returns the rounds whose keep entry is true, in order. keep must
// be as long as s.
func (s Series) Filter(keep []bool) Series {
	out := make(Series, 0, len(s))
	for i, r := range s {
		if keep[i] {
			out = append(out, r)
		}
	}
	return out
}

// FailedRuns sums the non-zero workload exits across all rounds.
func (s Series) FailedRuns() int {
	var n int
	for _, r := range s {
		n += r.FailedRuns
	}
	return n
}

// Loads, Idles and Durations expose one column of the series.
func (s Series) Loads() []float64 { return s.column(func(r Round) float64 { return r.LoadEnergy }) }

func (s Series) Idles() []float64 { return s.column(func(r Round) float64 { return r.IdleEnergy }) }

func (s Series) Durations() []float64 { return s.column(func(r Round) float64 { return r.Duration }) }

func (s Series) column(f func(Round) float64) []float64 {
	out := make([]float64, len(s))
	for i, r := range s {
		out[i] = f(r)
	}
	return out
}
