// Package grid holds the tiled partition of parameter space that the driver
// simulates over. Each tile carries its representative point, its boundary
// vertices, the null hypotheses that hold there and its simulation budget.
package grid

import (
	"encoding/binary"
	"fmt"
	"math"
	"sort"

	"imprint/domain/core"
)

// Size limits for grids built from caller input. Each tile carries 2^d
// vertices, so the vertex coordinate budget binds long before MaxTiles in
// higher dimensions.
const (
	MaxDim          = 16
	MaxTiles        = 1 << 20
	MaxVertexCoords = 1 << 24
)

// CheckSize reports whether tiles box-shaped tiles in d dimensions fit the
// size limits.
func CheckSize(d, tiles int) error {
	if d <= 0 || d > MaxDim {
		return core.NewInvalidArgumentError("grid dimension", fmt.Sprintf("must be in [1, %d], got %d", MaxDim, d))
	}
	if tiles > MaxTiles {
		return core.NewInvalidArgumentError("grid size", fmt.Sprintf("%d tiles exceeds the limit of %d", tiles, MaxTiles))
	}
	perTile := d << d
	if tiles > MaxVertexCoords/perTile {
		return core.NewInvalidArgumentError("grid size",
			fmt.Sprintf("%d tiles with %d vertices each exceeds the vertex limit", tiles, 1<<d))
	}
	return nil
}

// Tile is one row of per-tile data.
type Tile struct {
	ID        int         `json:"id"`
	Theta     []float64   `json:"theta"`
	Radii     []float64   `json:"radii,omitempty"`
	Vertices  [][]float64 `json:"vertices"`
	NullTruth []bool      `json:"null_truth"`
	K         int         `json:"K"`
	Active    bool        `json:"active"`
}

// Clone returns a deep copy of the tile.
func (t Tile) Clone() Tile {
	out := t
	out.Theta = append([]float64(nil), t.Theta...)
	out.Radii = append([]float64(nil), t.Radii...)
	out.NullTruth = append([]bool(nil), t.NullTruth...)
	out.Vertices = make([][]float64, len(t.Vertices))
	for i, v := range t.Vertices {
		out.Vertices[i] = append([]float64(nil), v...)
	}
	return out
}

// Grid is an ordered tile collection. Row order is the identity the driver
// preserves from input to output.
type Grid struct {
	D     int    `json:"d"`
	Tiles []Tile `json:"tiles"`
}

// New builds a grid from tiles and checks that every tile has dimension d.
func New(d int, tiles []Tile) (*Grid, error) {
	g := &Grid{D: d, Tiles: tiles}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}

// Validate checks tile dimensions. K is not checked here since setup fills it.
func (g *Grid) Validate() error {
	if g.D <= 0 {
		return core.NewInvalidArgumentError("grid dimension", fmt.Sprintf("must be positive, got %d", g.D))
	}
	for i, t := range g.Tiles {
		if len(t.Theta) != g.D {
			return core.NewInvalidTileError(i, fmt.Sprintf("theta has %d coordinates, grid dimension is %d", len(t.Theta), g.D))
		}
		if len(t.Vertices) == 0 {
			return core.NewInvalidTileError(i, "tile has no vertices")
		}
		for _, v := range t.Vertices {
			if len(v) != g.D {
				return core.NewInvalidTileError(i, fmt.Sprintf("vertex has %d coordinates, grid dimension is %d", len(v), g.D))
			}
		}
		if t.K < 0 {
			return core.NewInvalidTileError(i, fmt.Sprintf("K must be non-negative, got %d", t.K))
		}
	}
	return nil
}

// NTiles returns the number of tiles.
func (g *Grid) NTiles() int { return len(g.Tiles) }

// Clone returns a deep copy so callers' grids are never mutated.
func (g *Grid) Clone() *Grid {
	out := &Grid{D: g.D, Tiles: make([]Tile, len(g.Tiles))}
	for i, t := range g.Tiles {
		out.Tiles[i] = t.Clone()
	}
	return out
}

// PruneInactive returns a new grid holding deep copies of the active tiles.
func (g *Grid) PruneInactive() *Grid {
	out := &Grid{D: g.D}
	for _, t := range g.Tiles {
		if t.Active {
			out.Tiles = append(out.Tiles, t.Clone())
		}
	}
	return out
}

// Theta returns the representative points in row order.
func (g *Grid) Theta() [][]float64 {
	out := make([][]float64, len(g.Tiles))
	for i, t := range g.Tiles {
		out[i] = t.Theta
	}
	return out
}

// ThetaAndVertices returns points and vertex sets in row order.
func (g *Grid) ThetaAndVertices() ([][]float64, [][][]float64) {
	theta := make([][]float64, len(g.Tiles))
	vertices := make([][][]float64, len(g.Tiles))
	for i, t := range g.Tiles {
		theta[i] = t.Theta
		vertices[i] = t.Vertices
	}
	return theta, vertices
}

// NullTruth returns the null hypothesis indicators in row order.
func (g *Grid) NullTruth() [][]bool {
	out := make([][]bool, len(g.Tiles))
	for i, t := range g.Tiles {
		out[i] = t.NullTruth
	}
	return out
}

// Subset returns a view grid over the given row indices. Tiles are shared,
// not copied.
func (g *Grid) Subset(indices []int) *Grid {
	out := &Grid{D: g.D, Tiles: make([]Tile, len(indices))}
	for i, idx := range indices {
		out.Tiles[i] = g.Tiles[idx]
	}
	return out
}

// KGroup is the ordered set of row indices sharing one simulation count.
type KGroup struct {
	K       int
	Indices []int
}

// GroupByK partitions row indices by K. Groups are ordered by ascending K and
// indices inside a group keep row order.
func (g *Grid) GroupByK() []KGroup {
	byK := make(map[int][]int)
	for i, t := range g.Tiles {
		byK[t.K] = append(byK[t.K], i)
	}
	groups := make([]KGroup, 0, len(byK))
	for k, idx := range byK {
		groups = append(groups, KGroup{K: k, Indices: idx})
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].K < groups[j].K })
	return groups
}

// MaxK returns the largest simulation count in the grid.
func (g *Grid) MaxK() int {
	maxK := 0
	for _, t := range g.Tiles {
		if t.K > maxK {
			maxK = t.K
		}
	}
	return maxK
}

// Fingerprint hashes everything that determines simulation output for the
// grid: points, vertices, null truth and K, in row order.
func (g *Grid) Fingerprint() core.Hash {
	buf := make([]byte, 0, 64*len(g.Tiles))
	putF := func(x float64) { buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(x)) }
	putI := func(x int) { buf = binary.LittleEndian.AppendUint64(buf, uint64(int64(x))) }

	putI(g.D)
	for _, t := range g.Tiles {
		putI(t.ID)
		putI(t.K)
		for _, x := range t.Theta {
			putF(x)
		}
		for _, v := range t.Vertices {
			for _, x := range v {
				putF(x)
			}
		}
		for _, n := range t.NullTruth {
			if n {
				buf = append(buf, 1)
			} else {
				buf = append(buf, 0)
			}
		}
	}
	return core.NewHash(buf)
}
