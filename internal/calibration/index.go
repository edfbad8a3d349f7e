package calibration

import "math"

// Index returns the order-statistic rank selected as the calibrated
// threshold for K sorted simulations at pointwise level alpha:
//
//	max(floor((K+1) * max(alpha, 0)) - 1, 0)
//
// clamped to K-1 so it always addresses a simulated value. NaN levels are
// treated as 0.
func Index(K int, alpha float64) int {
	if K <= 0 {
		return 0
	}
	if math.IsNaN(alpha) || alpha < 0 {
		alpha = 0
	}
	idx := int(math.Floor(float64(K+1)*alpha)) - 1
	if idx < 0 {
		return 0
	}
	if idx > K-1 {
		return K - 1
	}
	return idx
}

// Threshold picks the calibrated threshold from statistics already sorted in
// ascending order. Indexing the sorted slice by the rank gives the value
// directly.
func Threshold(sorted []float64, alpha float64) (lam float64, idx int) {
	idx = Index(len(sorted), alpha)
	return sorted[idx], idx
}
