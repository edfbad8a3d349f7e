package bound

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

const (
	// qCeiling caps the Hölder exponent search when the natural parameter
	// space is unbounded along a direction.
	qCeiling = 1e9
	// domainMargin keeps theta + q v strictly inside the parameter space.
	domainMargin = 1 - 1e-9

	goldenIters    = 100
	bisectionIters = 200
	bisectionTol   = 1e-13
)

// logPartition describes an exponential family in natural parameters.
type logPartition interface {
	// A returns the log-partition at theta, +Inf outside the domain.
	A(theta []float64) float64
	// MaxStep returns the supremum of q with theta + q v inside the domain.
	MaxStep(theta, v []float64) float64
}

// tiltFamily evaluates the tilt bound numerically: golden-section search
// over log q for Forward and bisection over log f0 for Backward.
type tiltFamily struct {
	name string
	lp   logPartition
}

func (f *tiltFamily) Name() string { return f.name }

func (f *tiltFamily) Forward(f0 float64, theta []float64, vertices [][]float64) float64 {
	if !(f0 > 0) {
		return 0
	}
	if f0 >= 1 {
		return 1
	}
	a0 := f.lp.A(theta)
	if math.IsInf(a0, 0) || math.IsNaN(a0) {
		// theta outside the family's parameter space: only the trivial bound holds
		return 1
	}
	logf0 := math.Log(f0)
	worst := math.Inf(-1)
	for _, vertex := range vertices {
		worst = math.Max(worst, f.logVertexBound(logf0, a0, theta, displacement(theta, vertex)))
	}
	return math.Min(math.Exp(worst), 1)
}

// logVertexBound minimizes log F(q) for one vertex.
func (f *tiltFamily) logVertexBound(logf0, a0 float64, theta, v []float64) float64 {
	if floats.Norm(v, math.Inf(1)) == 0 {
		return logf0
	}

	a1 := f.lp.A(shift(theta, v, 1)) - a0
	qMax := math.Min(f.lp.MaxStep(theta, v)*domainMargin, qCeiling)
	if !(qMax > 1) || math.IsInf(a1, 0) {
		return 0
	}

	objective := func(u float64) float64 {
		q := math.Exp(u)
		aq := f.lp.A(shift(theta, v, q)) - a0
		return (1-1/q)*logf0 + aq/q - a1
	}
	_, best := goldenMin(objective, 0, math.Log(qMax))
	// q = 1 always gives log F = 0
	return math.Min(best, 0)
}

func (f *tiltFamily) Backward(alpha float64, theta []float64, vertices [][]float64) float64 {
	if !(alpha > 0) {
		return 0
	}
	if alpha >= 1 {
		return 1
	}
	a0 := f.lp.A(theta)
	if math.IsInf(a0, 0) || math.IsNaN(a0) {
		return 0
	}

	target := math.Log(alpha)
	logForward := func(x float64) float64 {
		return math.Log(f.Forward(math.Exp(x), theta, vertices))
	}

	// Forward(f0) >= f0, so the root lies at or below log alpha.
	hi := target
	if logForward(hi) <= target {
		return alpha
	}
	lo := target - 1
	for logForward(lo) > target {
		hi = lo
		lo = target - 2*(target-lo)
		if lo < -745 {
			return 0
		}
	}
	for i := 0; i < bisectionIters && hi-lo > bisectionTol; i++ {
		mid := 0.5 * (lo + hi)
		if logForward(mid) > target {
			hi = mid
		} else {
			lo = mid
		}
	}
	return math.Exp(lo)
}

func shift(theta, v []float64, q float64) []float64 {
	return floats.AddScaledTo(make([]float64, len(theta)), theta, q, v)
}

var invPhi = (math.Sqrt(5) - 1) / 2

// goldenMin minimizes a unimodal function on [a, b].
func goldenMin(fn func(float64) float64, a, b float64) (float64, float64) {
	c := b - invPhi*(b-a)
	d := a + invPhi*(b-a)
	fc, fd := fn(c), fn(d)
	for i := 0; i < goldenIters; i++ {
		if fc < fd {
			b, d, fd = d, c, fc
			c = b - invPhi*(b-a)
			fc = fn(c)
		} else {
			a, c, fc = c, d, fd
			d = a + invPhi*(b-a)
			fd = fn(d)
		}
	}
	// the endpoints are candidates too: the optimum can sit at q = 1
	x, best := c, fc
	if fd < best {
		x, best = d, fd
	}
	if fa := fn(a); fa < best {
		x, best = a, fa
	}
	return x, best
}

// maxStepNegative bounds q for coordinates that must stay negative.
func maxStepNegative(theta, v []float64, coords func(i int) bool) float64 {
	qMax := math.Inf(1)
	for i := range theta {
		if coords(i) && v[i] > 0 {
			qMax = math.Min(qMax, -theta[i]/v[i])
		}
	}
	return qMax
}

func allCoords(int) bool { return true }
