package grid

import (
	"fmt"

	"imprint/domain/core"
)

// Cartesian builds a regular grid of hyper-rectangular tiles covering
// [lower, upper] with n[i] cells along axis i. Tiles are ordered with the
// last axis varying fastest. Null truth is evaluated at each tile center.
func Cartesian(lower, upper []float64, n []int, nulls ...NullHypothesis) (*Grid, error) {
	d := len(lower)
	if d == 0 || len(upper) != d || len(n) != d {
		return nil, core.NewInvalidArgumentError("cartesian bounds",
			fmt.Sprintf("lower, upper and n must share a positive length, got %d, %d, %d", len(lower), len(upper), len(n)))
	}

	for i := 0; i < d; i++ {
		if !(upper[i] > lower[i]) {
			return nil, core.NewInvalidArgumentError("cartesian bounds", fmt.Sprintf("axis %d: upper %v <= lower %v", i, upper[i], lower[i]))
		}
	}
	total, err := CartesianSize(n)
	if err != nil {
		return nil, err
	}

	tiles := make([]Tile, total)
	cell := make([]int, d)
	for id := 0; id < total; id++ {
		rem := id
		for i := d - 1; i >= 0; i-- {
			cell[i] = rem % n[i]
			rem /= n[i]
		}

		theta := make([]float64, d)
		radii := make([]float64, d)
		for i := 0; i < d; i++ {
			width := (upper[i] - lower[i]) / float64(n[i])
			theta[i] = lower[i] + (float64(cell[i])+0.5)*width
			radii[i] = width / 2
		}

		tiles[id] = Tile{
			ID:        id,
			Theta:     theta,
			Radii:     radii,
			Vertices:  BoxVertices(theta, radii),
			NullTruth: EvaluateNulls(theta, nulls),
			Active:    true,
		}
	}
	return &Grid{D: d, Tiles: tiles}, nil
}

// CartesianSize returns the number of tiles in a grid with n[i] cells along
// axis i, or an error when the grid would exceed the size limits.
func CartesianSize(n []int) (int, error) {
	total := 1
	for i, cells := range n {
		if cells <= 0 {
			return 0, core.NewInvalidArgumentError("cartesian n", fmt.Sprintf("axis %d has %d cells", i, cells))
		}
		if total > MaxTiles/cells {
			return 0, core.NewInvalidArgumentError("cartesian n", fmt.Sprintf("grid %v has more than %d tiles", n, MaxTiles))
		}
		total *= cells
	}
	if err := CheckSize(len(n), total); err != nil {
		return 0, err
	}
	return total, nil
}

// BoxVertices returns the 2^d corners of the box centered at theta with the
// given half-widths. Bit i of the corner index picks the sign along axis i.
func BoxVertices(theta, radii []float64) [][]float64 {
	d := len(theta)
	out := make([][]float64, 1<<d)
	for c := range out {
		v := make([]float64, d)
		for i := 0; i < d; i++ {
			if c&(1<<i) != 0 {
				v[i] = theta[i] + radii[i]
			} else {
				v[i] = theta[i] - radii[i]
			}
		}
		out[c] = v
	}
	return out
}
