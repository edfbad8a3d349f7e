package grid

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imprint/domain/core"
)

func TestCartesianLayout(t *testing.T) {
	null, err := ParseHypothesis("x0 < 0", 2)
	require.NoError(t, err)

	g, err := Cartesian([]float64{-1, 0}, []float64{1, 1}, []int{2, 4}, null)
	require.NoError(t, err)
	require.Equal(t, 8, g.NTiles())
	require.NoError(t, g.Validate())

	first := g.Tiles[0]
	assert.InDeltaSlice(t, []float64{-0.5, 0.125}, first.Theta, 1e-12)
	assert.InDeltaSlice(t, []float64{0.5, 0.125}, first.Radii, 1e-12)
	assert.Len(t, first.Vertices, 4)
	assert.Equal(t, []bool{true}, first.NullTruth)
	assert.True(t, first.Active)
	assert.Zero(t, first.K)

	// last axis varies fastest
	assert.InDeltaSlice(t, []float64{-0.5, 0.375}, g.Tiles[1].Theta, 1e-12)
	assert.Equal(t, []bool{false}, g.Tiles[4].NullTruth)
	for i, tile := range g.Tiles {
		assert.Equal(t, i, tile.ID)
	}
}

func TestCartesianRejectsBadBounds(t *testing.T) {
	_, err := Cartesian([]float64{0}, []float64{0}, []int{3})
	assert.True(t, errors.Is(err, core.ErrInvalidArgument))

	_, err = Cartesian([]float64{0, 1}, []float64{1}, []int{3})
	assert.True(t, errors.Is(err, core.ErrInvalidArgument))

	_, err = Cartesian([]float64{0}, []float64{1}, []int{0})
	assert.True(t, errors.Is(err, core.ErrInvalidArgument))
}

func TestCartesianSizeLimits(t *testing.T) {
	ones := func(d int) []int {
		n := make([]int, d)
		for i := range n {
			n[i] = 1
		}
		return n
	}
	twos := ones(MaxDim)
	for i := range twos {
		twos[i] = 2
	}

	tests := []struct {
		name    string
		n       []int
		want    int
		wantErr bool
	}{
		{name: "product overflows int", n: []int{3, 1 << 62}, wantErr: true},
		{name: "both axes huge", n: []int{1 << 40, 1 << 40}, wantErr: true},
		{name: "over the tile limit", n: []int{1 << 11, 1 << 11}, wantErr: true},
		{name: "too many dimensions", n: ones(MaxDim + 1), wantErr: true},
		{name: "vertex budget in high dimension", n: twos, wantErr: true},
		{name: "vertex budget in 3d", n: []int{100, 100, 100}, wantErr: true},
		{name: "non-positive axis", n: []int{4, 0}, wantErr: true},
		{name: "fits", n: []int{64, 64, 64}, want: 1 << 18},
		{name: "single tile", n: []int{1}, want: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CartesianSize(tt.n)
			if tt.wantErr {
				assert.True(t, errors.Is(err, core.ErrInvalidArgument), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCartesianRejectsOversizedGrids(t *testing.T) {
	g, err := Cartesian([]float64{0, 0}, []float64{1, 1}, []int{3, 1 << 62})
	assert.Nil(t, g)
	assert.True(t, errors.Is(err, core.ErrInvalidArgument))

	d := MaxDim + 1
	lower, upper, n := make([]float64, d), make([]float64, d), make([]int, d)
	for i := range upper {
		upper[i], n[i] = 1, 1
	}
	_, err = Cartesian(lower, upper, n)
	assert.True(t, errors.Is(err, core.ErrInvalidArgument))
}

func TestBoxVertices(t *testing.T) {
	v := BoxVertices([]float64{0, 10}, []float64{1, 2})
	assert.Equal(t, [][]float64{{-1, 8}, {1, 8}, {-1, 12}, {1, 12}}, v)
}

func TestParseHypothesis(t *testing.T) {
	tests := []struct {
		expr    string
		theta   []float64
		holds   bool
		wantErr bool
	}{
		{expr: "x0 < 0", theta: []float64{-0.1, 5}, holds: true},
		{expr: "x0 < 0", theta: []float64{0.1, 5}, holds: false},
		{expr: "x1 >= 0.25", theta: []float64{0, 0.25}, holds: true},
		{expr: "x1 > -1e-1", theta: []float64{0, -0.2}, holds: false},
		{expr: "x2 < 0", wantErr: true},
		{expr: "y0 < 0", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			h, err := ParseHypothesis(tt.expr, 2)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.holds, h.Holds(tt.theta))
		})
	}
}

func TestPruneInactiveAndClone(t *testing.T) {
	g, err := Cartesian([]float64{0}, []float64{1}, []int{4})
	require.NoError(t, err)
	g.Tiles[1].Active = false
	g.Tiles[3].Active = false

	pruned := g.PruneInactive()
	require.Equal(t, 2, pruned.NTiles())
	assert.Equal(t, 0, pruned.Tiles[0].ID)
	assert.Equal(t, 2, pruned.Tiles[1].ID)

	pruned.Tiles[0].Theta[0] = 42
	assert.NotEqual(t, 42.0, g.Tiles[0].Theta[0], "prune must deep copy")

	c := g.Clone()
	c.Tiles[2].Vertices[0][0] = 99
	assert.NotEqual(t, 99.0, g.Tiles[2].Vertices[0][0], "clone must deep copy vertices")
}

func TestGroupByK(t *testing.T) {
	g, err := Cartesian([]float64{0}, []float64{1}, []int{6})
	require.NoError(t, err)
	for i, k := range []int{200, 100, 200, 300, 100, 200} {
		g.Tiles[i].K = k
	}

	groups := g.GroupByK()
	require.Len(t, groups, 3)
	assert.Equal(t, KGroup{K: 100, Indices: []int{1, 4}}, groups[0])
	assert.Equal(t, KGroup{K: 200, Indices: []int{0, 2, 5}}, groups[1])
	assert.Equal(t, KGroup{K: 300, Indices: []int{3}}, groups[2])
	assert.Equal(t, 300, g.MaxK())
}

func TestFingerprintTracksSimulationInputs(t *testing.T) {
	g, err := Cartesian([]float64{0}, []float64{1}, []int{3})
	require.NoError(t, err)
	base := g.Fingerprint()
	assert.Equal(t, base, g.Clone().Fingerprint())

	changed := g.Clone()
	changed.Tiles[1].K = 10
	assert.NotEqual(t, base, changed.Fingerprint())
}

func TestValidateCatchesDimensionMismatch(t *testing.T) {
	_, err := New(2, []Tile{{Theta: []float64{0}, Vertices: [][]float64{{0}}}})
	assert.True(t, errors.Is(err, core.ErrInvalidTile))
}
