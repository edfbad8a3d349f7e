package bound

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// normalFamily is the tilt bound for a normal sufficient statistic with known
// scale. Its optimum over q has a closed form in both directions:
// with c = scale^2 |v|^2 / 2 at the worst vertex and L = -log f0,
//
//	Forward  = exp(-(sqrt(L) - sqrt(c))^2)   for L >= c, else 1
//	Backward = exp(-(sqrt(c) + sqrt(-log alpha))^2)
type normalFamily struct {
	scale float64
}

func newNormal(params map[string]float64) (Family, error) {
	p, err := readParams("normal", params, map[string]float64{"scale": 1})
	if err != nil {
		return nil, err
	}
	return &normalFamily{scale: p["scale"]}, nil
}

func (f *normalFamily) Name() string { return "normal" }

// worstC returns the largest quadratic tilt cost over the tile's vertices.
func (f *normalFamily) worstC(theta []float64, vertices [][]float64) float64 {
	c := 0.0
	v := make([]float64, len(theta))
	for _, vertex := range vertices {
		floats.SubTo(v, vertex, theta)
		c = math.Max(c, 0.5*f.scale*f.scale*floats.Dot(v, v))
	}
	return c
}

func (f *normalFamily) Forward(f0 float64, theta []float64, vertices [][]float64) float64 {
	if !(f0 > 0) {
		return 0
	}
	if f0 >= 1 {
		return 1
	}
	c := f.worstC(theta, vertices)
	L := -math.Log(f0)
	if L <= c {
		return 1
	}
	d := math.Sqrt(L) - math.Sqrt(c)
	return math.Exp(-d * d)
}

func (f *normalFamily) Backward(alpha float64, theta []float64, vertices [][]float64) float64 {
	if !(alpha > 0) {
		return 0
	}
	if alpha >= 1 {
		return 1
	}
	c := f.worstC(theta, vertices)
	s := math.Sqrt(c) + math.Sqrt(-math.Log(alpha))
	return math.Exp(-s * s)
}
