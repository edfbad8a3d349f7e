// Package calibration holds the two pieces of exact finite-sample math the
// driver relies on: the Clopper-Pearson upper bound on a binomial proportion
// and the order-statistic rank used to pick a calibrated threshold.
package calibration

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// ClopperPearson returns the exact one-sided upper confidence bound on a
// Binomial(K, p) success probability after observing tieSum successes. The
// bound holds with probability at least 1 - delta.
//
// It is the 1-delta quantile of Beta(tieSum+1, K-tieSum). When that quantile
// is undefined, which happens at tieSum == K, the result is 0: the estimate is
// already the maximal error of 1 and no further correction is applied.
func ClopperPearson(tieSum, K int, delta float64) float64 {
	bound := betaIncInv(float64(tieSum+1), float64(K-tieSum), 1-delta)
	if math.IsNaN(bound) {
		return 0
	}
	return bound
}

// ClopperPearsonAll applies ClopperPearson to a column of counts sharing K.
func ClopperPearsonAll(tieSums []int, K int, delta float64) []float64 {
	out := make([]float64, len(tieSums))
	for i, s := range tieSums {
		out[i] = ClopperPearson(s, K, delta)
	}
	return out
}

// betaIncInv is the inverse regularized incomplete beta function. It returns
// NaN outside the domain instead of panicking.
func betaIncInv(a, b, p float64) float64 {
	if !(a > 0) || !(b > 0) || !(p >= 0 && p <= 1) {
		return math.NaN()
	}
	return distuv.Beta{Alpha: a, Beta: b}.Quantile(p)
}
