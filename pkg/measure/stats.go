package measure

import (
	"math"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Policy holds the knobs that differ between sensor strategies.
type Policy struct {
	// MinRounds is the series length from which stabilization is evaluated.
	MinRounds int
	// ClampNet zeroes negative net energies before statistics.
	ClampNet bool
	// OutlierMinRounds enables median-band filtering once the series holds
	// at least this many rounds. Zero disables filtering.
	OutlierMinRounds int
	// CostBound additionally requires (Nq/q)*xi within 1±ErrorTolerance.
	CostBound bool
}

// CounterPolicy is the bracketed-window strategy: five rounds minimum and
// outlier filtering from ten rounds on.
var CounterPolicy = Policy{MinRounds: 5, OutlierMinRounds: 10}

// PowerPolicy is the integration strategy: two rounds minimum, clamped net
// energies and the sub-measurement cost bound.
var PowerPolicy = Policy{MinRounds: 2, ClampNet: true, CostBound: true}

// Evaluator computes the convergence state of a series.
type Evaluator struct {
	Confidence    float64
	RelativeError float64
	Tolerance     float64
	Xi            float64
	Policy        Policy
}

func newEvaluator(cfg Config, p Policy) Evaluator {
	return Evaluator{
		Confidence:    cfg.ConfidenceLevel,
		RelativeError: cfg.RelativeError,
		Tolerance:     cfg.ErrorTolerance,
		Xi:            cfg.Xi,
		Policy:        p,
	}
}

// Evaluate recomputes every statistic from net. q is the 1-based index of
// the iteration that produced the latest round.
//
// The half-width is stdDev/sqrt(n) * t(confidence, n-1), where stdDev is
// the population standard deviation. A series with zero spread is
// considered stable once MinRounds is reached, even if its threshold is
// zero or negative.
func (e Evaluator) Evaluate(net []float64, q int) ConvergenceState {
	n := len(net)
	st := ConvergenceState{N: n, HalfWidth: math.Inf(1)}
	if n == 0 {
		return st
	}
	st.Mean, st.StdDev = stat.PopMeanStdDev(net, nil)
	st.Threshold = e.RelativeError * st.Mean
	if n > 1 {
		st.HalfWidth = st.StdDev / math.Sqrt(float64(n)) * TInverse(e.Confidence, n-1)
	}
	if e.Policy.CostBound {
		st.Nq = SubMeasurements(q, e.Xi)
		st.Ratio = float64(st.Nq) / float64(max(q, 1)) * e.Xi
	}

	if n < e.Policy.MinRounds || n < 2 {
		return st
	}
	stable := st.HalfWidth < st.Threshold || st.HalfWidth == 0
	if e.Policy.CostBound {
		stable = stable && st.Ratio > 1-e.Tolerance && st.Ratio < 1+e.Tolerance
	}
	st.Stable = stable
	return st
}

// TInverse returns the p-quantile of Student's t distribution with df
// degrees of freedom.
func TInverse(p float64, df int) float64 {
	if df < 1 {
		return math.Inf(1)
	}
	return distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(df)}.Quantile(p)
}

// SubMeasurements returns Nq = ceil(q/xi), at least 1.
func SubMeasurements(q int, xi float64) int {
	if q < 1 || !(xi > 0) {
		return 1
	}
	return max(int(math.Ceil(float64(q)/xi)), 1)
}
