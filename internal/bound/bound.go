// Package bound maps pointwise error estimates at a tile's representative
// point to bounds that hold over the whole tile, and back.
//
// Every family is a tilt bound for an exponential family with log-partition
// A in natural parameters. For a displacement v from theta to a vertex and a
// Hölder exponent q >= 1,
//
//	log F(q) = (1 - 1/q) log f0 + [A(theta+q v) - A(theta)]/q - [A(theta+v) - A(theta)]
//
// Forward minimizes over q and takes the worst vertex. Backward inverts
// Forward in f0 for a target level.
package bound

import "gonum.org/v1/gonum/floats"

// Family is a monotone forward/backward pair of bound transforms.
type Family interface {
	// Name is the registry key of the family.
	Name() string

	// Forward turns a pointwise bound f0 at theta into a bound over the tile
	// spanned by vertices. Forward(0) == 0 and Forward(1) == 1.
	Forward(f0 float64, theta []float64, vertices [][]float64) float64

	// Backward returns the pointwise level whose forward bound equals alpha.
	Backward(alpha float64, theta []float64, vertices [][]float64) float64
}

// ForwardAll applies Forward row by row.
func ForwardAll(f Family, f0 []float64, theta [][]float64, vertices [][][]float64) []float64 {
	out := make([]float64, len(f0))
	for i := range f0 {
		out[i] = f.Forward(f0[i], theta[i], vertices[i])
	}
	return out
}

// BackwardAll applies Backward with one shared target level.
func BackwardAll(f Family, alpha float64, theta [][]float64, vertices [][][]float64) []float64 {
	out := make([]float64, len(theta))
	for i := range theta {
		out[i] = f.Backward(alpha, theta[i], vertices[i])
	}
	return out
}

func displacement(theta, vertex []float64) []float64 {
	return floats.SubTo(make([]float64, len(theta)), vertex, theta)
}
