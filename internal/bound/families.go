package bound

import (
	"fmt"
	"math"

	"imprint/domain/core"
)

// binomialPartition: n Bernoulli trials per arm, theta = logit(p).
type binomialPartition struct{ n float64 }

func (p binomialPartition) A(theta []float64) float64 {
	s := 0.0
	for _, t := range theta {
		s += p.n * softplus(t)
	}
	return s
}

func (p binomialPartition) MaxStep(theta, v []float64) float64 { return math.Inf(1) }

// exponentialPartition: sum of n exponential draws per arm, theta = -rate.
type exponentialPartition struct{ n float64 }

func (p exponentialPartition) A(theta []float64) float64 {
	s := 0.0
	for _, t := range theta {
		if t >= 0 {
			return math.Inf(1)
		}
		s -= p.n * math.Log(-t)
	}
	return s
}

func (p exponentialPartition) MaxStep(theta, v []float64) float64 {
	return maxStepNegative(theta, v, allCoords)
}

// scaledChiSqPartition: a scaled chi-squared with n degrees of freedom per
// arm, i.e. Gamma(n/2) in theta = -1/(2 sigma^2).
type scaledChiSqPartition struct{ n float64 }

func (p scaledChiSqPartition) A(theta []float64) float64 {
	s := 0.0
	for _, t := range theta {
		if t >= 0 {
			return math.Inf(1)
		}
		s -= 0.5 * p.n * math.Log(-t)
	}
	return s
}

func (p scaledChiSqPartition) MaxStep(theta, v []float64) float64 {
	return maxStepNegative(theta, v, allCoords)
}

// normal2Partition: n draws of a normal with unknown mean and variance.
// Coordinates come in (theta1, theta2) pairs with theta2 < 0.
type normal2Partition struct{ n float64 }

func (p normal2Partition) A(theta []float64) float64 {
	s := 0.0
	for i := 0; i+1 < len(theta); i += 2 {
		t1, t2 := theta[i], theta[i+1]
		if t2 >= 0 {
			return math.Inf(1)
		}
		s += p.n * (-t1*t1/(4*t2) - 0.5*math.Log(-2*t2))
	}
	return s
}

func (p normal2Partition) MaxStep(theta, v []float64) float64 {
	return maxStepNegative(theta, v, func(i int) bool { return i%2 == 1 })
}

// pairedTilt rejects odd-dimensional tiles for families defined on pairs.
type pairedTilt struct{ tiltFamily }

func (f *pairedTilt) Forward(f0 float64, theta []float64, vertices [][]float64) float64 {
	if len(theta)%2 != 0 {
		return 1
	}
	return f.tiltFamily.Forward(f0, theta, vertices)
}

func (f *pairedTilt) Backward(alpha float64, theta []float64, vertices [][]float64) float64 {
	if len(theta)%2 != 0 {
		return 0
	}
	return f.tiltFamily.Backward(alpha, theta, vertices)
}

func newBinomial(params map[string]float64) (Family, error) {
	n, err := trialCount("binomial", params)
	if err != nil {
		return nil, err
	}
	return &tiltFamily{name: "binomial", lp: binomialPartition{n: n}}, nil
}

func newExponential(params map[string]float64) (Family, error) {
	n, err := trialCount("exponential", params)
	if err != nil {
		return nil, err
	}
	return &tiltFamily{name: "exponential", lp: exponentialPartition{n: n}}, nil
}

func newScaledChiSq(params map[string]float64) (Family, error) {
	n, err := trialCount("scaled_chisq", params)
	if err != nil {
		return nil, err
	}
	return &tiltFamily{name: "scaled_chisq", lp: scaledChiSqPartition{n: n}}, nil
}

func newNormal2(params map[string]float64) (Family, error) {
	n, err := trialCount("normal2", params)
	if err != nil {
		return nil, err
	}
	return &pairedTilt{tiltFamily{name: "normal2", lp: normal2Partition{n: n}}}, nil
}

func trialCount(family string, params map[string]float64) (float64, error) {
	p, err := readParams(family, params, map[string]float64{"n": 1}, "n")
	if err != nil {
		return 0, err
	}
	if p["n"] != math.Trunc(p["n"]) {
		return 0, core.NewFamilyParamsError(family, fmt.Sprintf("n must be a whole number, got %v", p["n"]))
	}
	return p["n"], nil
}

// softplus computes log(1 + e^t) without overflow.
func softplus(t float64) float64 {
	return math.Max(t, 0) + math.Log1p(math.Exp(-math.Abs(t)))
}
